package bidding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/bidware/bidware/internal/domain/listing"
	"github.com/bidware/bidware/internal/domain/notification"
)

// BidCache mirrors the current winning amount for cheap reads: obviously
// losing bids are pre-filtered against it before touching the store. Updates
// and reads are best effort; the store stays authoritative.
type BidCache interface {
	SetCurrentBid(ctx context.Context, listingID uuid.UUID, amount int64) error
	GetCurrentBid(ctx context.Context, listingID uuid.UUID) (int64, bool, error)
}

// Service resolves concurrent bid submissions into a single winner per
// listing. Each attempt is one read-decide-write sequence committed through
// the store's atomic compare-and-swap; contention never blocks a caller.
type Service struct {
	listings listing.Repository
	notifier notification.Notifier
	cache    BidCache

	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
	tiebreak    func() int64
	logger      zerolog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithBidCache attaches a current-bid cache.
func WithBidCache(c BidCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMaxAttempts bounds retries of transient store failures per bid attempt.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTiebreak overrides the tiebreak source.
func WithTiebreak(f func() int64) Option {
	return func(s *Service) { s.tiebreak = f }
}

// NewService creates a bidding service.
func NewService(listings listing.Repository, notifier notification.Notifier, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		listings:    listings,
		notifier:    notifier,
		maxAttempts: 3,
		backoff:     50 * time.Millisecond,
		now:         time.Now,
		tiebreak:    rand.Int63,
		logger:      logger.With().Str("service", "bidding").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notification.Nop{}
	}
	return s
}

// PlaceBid submits amount on behalf of bidderID. On success it returns the
// listing with the new winning bid installed. A lost race returns
// listing.ErrOutbid immediately; the caller re-reads and may retry with a
// higher amount. Transient store failures are retried a bounded number of
// times and then surface as listing.ErrConflict.
func (s *Service) PlaceBid(ctx context.Context, listingID uuid.UUID, bidderID string, amount int64) (*listing.Listing, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("bidder id is required")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", listing.ErrBidBelowMinimum)
	}

	// Accepted amounts only ever grow, so a bid strictly below the cached
	// winning amount can never commit; reject it without touching the store.
	if s.cache != nil {
		if cached, ok, err := s.cache.GetCurrentBid(ctx, listingID); err != nil {
			s.logger.Debug().Err(err).Str("listing_id", listingID.String()).Msg("bid cache read failed")
		} else if ok && amount < cached {
			return nil, fmt.Errorf("%w: got %d, standing bid is %d", listing.ErrBidBelowMinimum, amount, cached)
		}
	}

	var result *listing.Listing
	b := retry.WithMaxRetries(uint64(s.maxAttempts-1), retry.NewConstant(s.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		l, err := s.listings.GetByID(ctx, listingID)
		if err != nil {
			return retry.RetryableError(err)
		}
		if l == nil {
			return listing.ErrNotFound
		}

		now := s.now().UTC()
		if err := l.CheckBiddable(now); err != nil {
			return err
		}
		if prev, ok := l.WinningBid(); ok && prev.BidderID == bidderID {
			return listing.ErrAlreadyWinning
		}
		if min := l.MinimumBid(); amount < min {
			return fmt.Errorf("%w: got %d, need at least %d", listing.ErrBidBelowMinimum, amount, min)
		}

		candidate := listing.Bid{
			Amount:   amount,
			BidderID: bidderID,
			PlacedAt: now.UnixMilli(),
			Tiebreak: s.tiebreak(),
		}

		prev, ok, err := s.listings.CompareAndSwapBid(ctx, listingID, candidate)
		if err != nil {
			return retry.RetryableError(err)
		}
		if !ok {
			// Eligibility is re-checked inside the atomic update, so a zero-row
			// swap means the window closed, the bidder already holds the bid,
			// or a better bid got in first.
			return s.classifyRejection(ctx, listingID, bidderID)
		}

		s.afterAccept(ctx, l.ID, prev, candidate)
		l.ApplyBid(candidate)
		result = l
		return nil
	})
	if err != nil {
		if isExpectedBidError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", listing.ErrConflict, err)
	}
	return result, nil
}

// classifyRejection distinguishes a closed or transitioned listing and a
// bidder racing their own standing bid from a plain lost race after a failed
// swap.
func (s *Service) classifyRejection(ctx context.Context, listingID uuid.UUID, bidderID string) error {
	cur, err := s.listings.GetByID(ctx, listingID)
	if err == nil && cur != nil {
		if err := cur.CheckBiddable(s.now().UTC()); err != nil {
			return err
		}
		if cur.CurrentBidderID == bidderID {
			return listing.ErrAlreadyWinning
		}
	}
	return listing.ErrOutbid
}

// afterAccept delivers the outbid notice to the bidder the swap actually
// displaced, as returned by the store, not the holder seen on the pre-swap
// read.
func (s *Service) afterAccept(ctx context.Context, listingID uuid.UUID, prev, accepted listing.Bid) {
	if prev.Amount > 0 && prev.BidderID != accepted.BidderID {
		notice := notification.OutbidNotice{
			ListingID:    listingID,
			OutbidUserID: prev.BidderID,
			NewBidderID:  accepted.BidderID,
			NewAmount:    accepted.Amount,
			At:           time.UnixMilli(accepted.PlacedAt).UTC(),
		}
		if err := s.notifier.NotifyOutbid(ctx, notice); err != nil {
			s.logger.Warn().Err(err).
				Str("listing_id", listingID.String()).
				Str("outbid_user", prev.BidderID).
				Msg("failed to deliver outbid notice")
		}
	}
	if s.cache != nil {
		if err := s.cache.SetCurrentBid(ctx, listingID, accepted.Amount); err != nil {
			s.logger.Warn().Err(err).
				Str("listing_id", listingID.String()).
				Msg("failed to refresh bid cache")
		}
	}
}

func isExpectedBidError(err error) bool {
	for _, target := range []error{
		listing.ErrNotFound,
		listing.ErrOutbid,
		listing.ErrNotBiddable,
		listing.ErrAuctionEnded,
		listing.ErrAlreadyWinning,
		listing.ErrBidBelowMinimum,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
