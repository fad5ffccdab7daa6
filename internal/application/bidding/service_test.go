package bidding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bidware/bidware/internal/domain/listing"
	"github.com/bidware/bidware/internal/domain/notification"
)

// fakeRepo implements listing.Repository over a mutex-guarded map, with the
// same compare-and-swap semantics the SQL store provides.
type fakeRepo struct {
	mu       sync.Mutex
	listings map[uuid.UUID]*listing.Listing

	getErrs  int // fail this many GetByID calls, then succeed
	swapErrs int // fail this many CompareAndSwapBid calls, then succeed

	// beforeSwap runs once under the lock before the next swap, to interleave
	// a concurrent commit between a caller's read and its swap.
	beforeSwap func(l *listing.Listing)
}

func newFakeRepo(ls ...*listing.Listing) *fakeRepo {
	r := &fakeRepo{listings: make(map[uuid.UUID]*listing.Listing)}
	for _, l := range ls {
		cp := *l
		r.listings[l.ID] = &cp
	}
	return r
}

func (r *fakeRepo) Create(_ context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.listings[l.ID] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*listing.Listing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErrs > 0 {
		r.getErrs--
		return nil, errors.New("store unavailable")
	}
	l, ok := r.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeRepo) Update(_ context.Context, l *listing.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *l
	r.listings[l.ID] = &cp
	return nil
}

func (r *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listings, id)
	return nil
}

func (r *fakeRepo) ListBySeller(context.Context, string) ([]*listing.Listing, error) {
	return nil, nil
}

func (r *fakeRepo) ListByStatus(context.Context, listing.Status) ([]*listing.Listing, error) {
	return nil, nil
}

func (r *fakeRepo) ListActive(context.Context) ([]*listing.Listing, error) { return nil, nil }

func (r *fakeRepo) ListWonBy(context.Context, string) ([]*listing.Listing, error) {
	return nil, nil
}

func (r *fakeRepo) CompareAndSetStatus(_ context.Context, id uuid.UUID, from, to listing.Status, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.listings[id]
	if !ok || l.Status != from {
		return false, nil
	}
	l.Status = to
	if to == listing.StatusRejected {
		l.RejectionReason = reason
	}
	return true, nil
}

func (r *fakeRepo) CompareAndSwapBid(_ context.Context, id uuid.UUID, candidate listing.Bid) (listing.Bid, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.swapErrs > 0 {
		r.swapErrs--
		return listing.Bid{}, false, errors.New("store unavailable")
	}
	l, ok := r.listings[id]
	if !ok {
		return listing.Bid{}, false, nil
	}
	if r.beforeSwap != nil {
		hook := r.beforeSwap
		r.beforeSwap = nil
		hook(l)
	}
	if l.Status != listing.StatusInAuction {
		return listing.Bid{}, false, nil
	}
	if !time.UnixMilli(candidate.PlacedAt).Before(l.EndAt) {
		return listing.Bid{}, false, nil
	}
	if l.CurrentBidderID == candidate.BidderID {
		return listing.Bid{}, false, nil
	}
	cur := listing.Bid{
		Amount:   l.CurrentBid,
		BidderID: l.CurrentBidderID,
		PlacedAt: l.CurrentBidPlacedAt,
		Tiebreak: l.CurrentBidTiebreak,
	}
	if l.CurrentBid > 0 && !candidate.Outranks(cur) {
		return listing.Bid{}, false, nil
	}
	l.ApplyBid(candidate)
	return cur, true, nil
}

func (r *fakeRepo) SetBuyerPaid(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.listings[id]; ok {
		l.BuyerPaid = true
	}
	return nil
}

func (r *fakeRepo) snapshot(id uuid.UUID) *listing.Listing {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.listings[id]
	return &cp
}

// captureNotifier records delivered outbid notices.
type captureNotifier struct {
	mu      sync.Mutex
	notices []notification.OutbidNotice
}

func (n *captureNotifier) NotifyOutbid(_ context.Context, notice notification.OutbidNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return nil
}

func openListing(base int64, endIn time.Duration) *listing.Listing {
	now := time.Now().UTC()
	l := listing.New("seller-1", "1967 Mustang", "", base, now.Add(-time.Hour), now.Add(endIn))
	l.Status = listing.StatusInAuction
	return l
}

func TestPlaceBidFirstBidAtBasePrice(t *testing.T) {
	l := openListing(12000, time.Hour)
	repo := newFakeRepo(l)
	svc := NewService(repo, notification.Nop{}, zerolog.Nop())

	got, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 12000)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), got.CurrentBid)
	assert.Equal(t, "buyer-1", got.CurrentBidderID)

	stored := repo.snapshot(l.ID)
	assert.Equal(t, int64(12000), stored.CurrentBid)
	assert.Equal(t, "buyer-1", stored.CurrentBidderID)
}

func TestPlaceBidBelowMinimum(t *testing.T) {
	l := openListing(12000, time.Hour)
	repo := newFakeRepo(l)
	svc := NewService(repo, notification.Nop{}, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 11999)
	assert.ErrorIs(t, err, listing.ErrBidBelowMinimum)

	// standing bid raises the bar to bid + increment
	_, err = svc.PlaceBid(context.Background(), l.ID, "buyer-1", 12000)
	require.NoError(t, err)

	_, err = svc.PlaceBid(context.Background(), l.ID, "buyer-2", 12499)
	assert.ErrorIs(t, err, listing.ErrBidBelowMinimum)

	_, err = svc.PlaceBid(context.Background(), l.ID, "buyer-2", 12500)
	assert.NoError(t, err)
}

func TestPlaceBidRejectsNonPositiveAmount(t *testing.T) {
	l := openListing(1000, time.Hour)
	svc := NewService(newFakeRepo(l), notification.Nop{}, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 0)
	assert.ErrorIs(t, err, listing.ErrBidBelowMinimum)

	_, err = svc.PlaceBid(context.Background(), l.ID, "", 1000)
	assert.Error(t, err)
}

func TestPlaceBidWinnerCannotRaiseOwnBid(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)
	svc := NewService(repo, notification.Nop{}, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 1000)
	require.NoError(t, err)

	_, err = svc.PlaceBid(context.Background(), l.ID, "buyer-1", 2000)
	assert.ErrorIs(t, err, listing.ErrAlreadyWinning)
}

func TestPlaceBidListingNotFound(t *testing.T) {
	svc := NewService(newFakeRepo(), notification.Nop{}, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), uuid.New(), "buyer-1", 1000)
	assert.ErrorIs(t, err, listing.ErrNotFound)
}

func TestPlaceBidOutsideAuctionWindow(t *testing.T) {
	now := time.Now().UTC()
	waiting := listing.New("seller-1", "car", "", 1000, now.Add(time.Hour), now.Add(10*24*time.Hour))
	waiting.Status = listing.StatusWaitingForStart
	ended := openListing(1000, -time.Minute)

	repo := newFakeRepo(waiting, ended)
	svc := NewService(repo, notification.Nop{}, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), waiting.ID, "buyer-1", 1000)
	assert.ErrorIs(t, err, listing.ErrNotBiddable)

	_, err = svc.PlaceBid(context.Background(), ended.ID, "buyer-1", 1000)
	assert.ErrorIs(t, err, listing.ErrAuctionEnded)
}

func TestPlaceBidLostRaceReturnsOutbid(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)

	// Both bids carry the same amount and millisecond; a rival with the lower
	// tiebreak commits between this caller's read and its swap.
	at := time.Now().UTC().Truncate(time.Millisecond)
	repo.beforeSwap = func(cur *listing.Listing) {
		cur.ApplyBid(listing.Bid{Amount: 1000, BidderID: "buyer-1", PlacedAt: at.UnixMilli(), Tiebreak: 1})
	}

	svc := NewService(repo, notification.Nop{}, zerolog.Nop(),
		WithClock(func() time.Time { return at }),
		WithTiebreak(func() int64 { return 2 }),
	)

	// The swap fails, the listing is still open, so the caller is told they
	// lost the race rather than being retried into a livelock.
	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-2", 1000)
	assert.ErrorIs(t, err, listing.ErrOutbid)

	stored := repo.snapshot(l.ID)
	assert.Equal(t, "buyer-1", stored.CurrentBidderID)
	assert.Equal(t, int64(1), stored.CurrentBidTiebreak)
}

func TestPlaceBidEqualAmountEarlierTimestampWins(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)

	// A later-stamped rival commits first; the earlier submission still
	// displaces it because equal amounts rank by submission time.
	base := time.Now().UTC().Truncate(time.Millisecond)
	repo.beforeSwap = func(cur *listing.Listing) {
		cur.ApplyBid(listing.Bid{Amount: 1000, BidderID: "buyer-late", PlacedAt: base.Add(5 * time.Millisecond).UnixMilli(), Tiebreak: 9})
	}

	early := NewService(repo, notification.Nop{}, zerolog.Nop(),
		WithClock(func() time.Time { return base }),
	)

	got, err := early.PlaceBid(context.Background(), l.ID, "buyer-early", 1000)
	require.NoError(t, err)
	assert.Equal(t, "buyer-early", got.CurrentBidderID)

	stored := repo.snapshot(l.ID)
	assert.Equal(t, "buyer-early", stored.CurrentBidderID)
	assert.Equal(t, base.UnixMilli(), stored.CurrentBidPlacedAt)
}

func TestPlaceBidTransientStoreFailureRetriesThenSucceeds(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)
	repo.swapErrs = 2

	svc := NewService(repo, notification.Nop{}, zerolog.Nop(), WithMaxAttempts(3))
	svc.backoff = time.Millisecond

	got, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.CurrentBid)
}

func TestPlaceBidTransientStoreFailureExhaustsAsConflict(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)
	repo.getErrs = 10

	svc := NewService(repo, notification.Nop{}, zerolog.Nop(), WithMaxAttempts(2))
	svc.backoff = time.Millisecond

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 1000)
	assert.ErrorIs(t, err, listing.ErrConflict)
}

func TestPlaceBidNotifiesOutbidBidder(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)
	notifier := &captureNotifier{}
	svc := NewService(repo, notifier, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 1000)
	require.NoError(t, err)
	assert.Empty(t, notifier.notices, "first bid displaces nobody")

	_, err = svc.PlaceBid(context.Background(), l.ID, "buyer-2", 1500)
	require.NoError(t, err)
	require.Len(t, notifier.notices, 1)
	assert.Equal(t, l.ID, notifier.notices[0].ListingID)
	assert.Equal(t, "buyer-1", notifier.notices[0].OutbidUserID)
	assert.Equal(t, "buyer-2", notifier.notices[0].NewBidderID)
	assert.Equal(t, int64(1500), notifier.notices[0].NewAmount)
}

type failingCache struct{}

func (failingCache) SetCurrentBid(context.Context, uuid.UUID, int64) error {
	return errors.New("redis down")
}

func (failingCache) GetCurrentBid(context.Context, uuid.UUID) (int64, bool, error) {
	return 0, false, errors.New("redis down")
}

// staticCache reports a fixed cached winning amount.
type staticCache struct {
	amount int64
}

func (c staticCache) SetCurrentBid(context.Context, uuid.UUID, int64) error { return nil }

func (c staticCache) GetCurrentBid(context.Context, uuid.UUID) (int64, bool, error) {
	return c.amount, true, nil
}

func TestPlaceBidCacheFailureDoesNotFailBid(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)
	svc := NewService(repo, notification.Nop{}, zerolog.Nop(), WithBidCache(failingCache{}))

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 1000)
	assert.NoError(t, err)
}

func TestPlaceBidSelfRaceReturnsAlreadyWinning(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)

	// The same bidder fires two bids concurrently; the first commits between
	// the second's read and its swap. The swap itself must refuse the second
	// bid: the standing winner may not raise their own bid.
	repo.beforeSwap = func(cur *listing.Listing) {
		cur.ApplyBid(listing.Bid{Amount: 1000, BidderID: "buyer-1", PlacedAt: 1, Tiebreak: 1})
	}

	svc := NewService(repo, notification.Nop{}, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-1", 1500)
	assert.ErrorIs(t, err, listing.ErrAlreadyWinning)

	stored := repo.snapshot(l.ID)
	assert.Equal(t, int64(1000), stored.CurrentBid, "second bid from the standing winner must not land")
}

func TestPlaceBidCachePreFiltersLosingBid(t *testing.T) {
	l := openListing(1000, time.Hour)
	l.ApplyBid(listing.Bid{Amount: 5000, BidderID: "buyer-1", PlacedAt: 1, Tiebreak: 1})
	repo := newFakeRepo(l)
	svc := NewService(repo, notification.Nop{}, zerolog.Nop(), WithBidCache(staticCache{amount: 5000}))

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-2", 4000)
	assert.ErrorIs(t, err, listing.ErrBidBelowMinimum)

	// an amount at or above the cached value passes the pre-filter and is
	// judged against the store
	_, err = svc.PlaceBid(context.Background(), l.ID, "buyer-2", 5500)
	assert.NoError(t, err)
}

func TestPlaceBidNotifiesDisplacedRivalNotStaleHolder(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)
	notifier := &captureNotifier{}

	// A rival commits between this caller's read (which saw no standing bid)
	// and its swap. The notice must go to the rival the swap displaced.
	repo.beforeSwap = func(cur *listing.Listing) {
		cur.ApplyBid(listing.Bid{Amount: 1000, BidderID: "buyer-rival", PlacedAt: 1, Tiebreak: 1})
	}

	svc := NewService(repo, notifier, zerolog.Nop())

	_, err := svc.PlaceBid(context.Background(), l.ID, "buyer-2", 1500)
	require.NoError(t, err)
	require.Len(t, notifier.notices, 1)
	assert.Equal(t, "buyer-rival", notifier.notices[0].OutbidUserID)
	assert.Equal(t, "buyer-2", notifier.notices[0].NewBidderID)
}

func TestPlaceBidConcurrent(t *testing.T) {
	l := openListing(1000, time.Hour)
	repo := newFakeRepo(l)
	svc := NewService(repo, notification.Nop{}, zerolog.Nop())

	const bidders = 20
	var wg sync.WaitGroup
	errs := make([]error, bidders)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			amount := int64(1000 + 500*i)
			_, errs[i] = svc.PlaceBid(context.Background(), l.ID, fmt.Sprintf("buyer-%d", i), amount)
		}(i)
	}
	wg.Wait()

	// The top amount always lands: nothing outranks it and every loss it could
	// suffer mid-flight only raises the bar below its own amount.
	stored := repo.snapshot(l.ID)
	assert.Equal(t, int64(1000+500*(bidders-1)), stored.CurrentBid)
	assert.Equal(t, fmt.Sprintf("buyer-%d", bidders-1), stored.CurrentBidderID)

	for i, err := range errs {
		if err != nil {
			assert.Truef(t,
				errors.Is(err, listing.ErrOutbid) || errors.Is(err, listing.ErrBidBelowMinimum),
				"bidder %d: unexpected error %v", i, err)
		}
	}
}
