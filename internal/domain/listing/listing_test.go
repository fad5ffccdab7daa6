package listing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLifecycleHappyPath(t *testing.T) {
	l := New("seller-1", "1967 Mustang", "restored", 12000, time.Now().Add(96*time.Hour), time.Now().Add(96*time.Hour).Add(8*24*time.Hour))
	assert.Equal(t, StatusPending, l.Status)

	require.NoError(t, l.Approve())
	assert.Equal(t, StatusApproved, l.Status)

	require.NoError(t, l.ConfirmFeePaid())
	assert.Equal(t, StatusWaitingForStart, l.Status)

	require.NoError(t, l.OpenAuction())
	assert.Equal(t, StatusInAuction, l.Status)

	require.NoError(t, l.Complete())
	assert.Equal(t, StatusCompleted, l.Status)
	assert.True(t, l.Status.IsTerminal())
}

func TestIllegalTransitions(t *testing.T) {
	l := New("seller-1", "car", "", 1000, time.Now(), time.Now())

	assert.ErrorIs(t, l.ConfirmFeePaid(), ErrIllegalTransition)
	assert.ErrorIs(t, l.OpenAuction(), ErrIllegalTransition)
	assert.ErrorIs(t, l.Complete(), ErrIllegalTransition)

	require.NoError(t, l.Approve())
	assert.ErrorIs(t, l.Approve(), ErrIllegalTransition)
	assert.ErrorIs(t, l.OpenAuction(), ErrIllegalTransition)

	require.NoError(t, l.ConfirmFeePaid())
	assert.ErrorIs(t, l.Reject("too late"), ErrIllegalTransition)
	assert.ErrorIs(t, l.Resubmit(), ErrIllegalTransition)

	require.NoError(t, l.OpenAuction())
	require.NoError(t, l.Complete())
	assert.ErrorIs(t, l.Approve(), ErrIllegalTransition)
	assert.ErrorIs(t, l.Resubmit(), ErrIllegalTransition)
}

func TestRejectFromApproved(t *testing.T) {
	l := New("seller-1", "car", "", 1000, time.Now(), time.Now())
	require.NoError(t, l.Approve())

	require.NoError(t, l.Reject(AutoRejectReason))
	assert.Equal(t, StatusRejected, l.Status)
	assert.Equal(t, AutoRejectReason, l.RejectionReason)
}

func TestResubmitResetsBidAndPaymentState(t *testing.T) {
	l := New("seller-1", "car", "", 1000, time.Now(), time.Now())
	require.NoError(t, l.Reject("photos missing"))

	l.ApplyBid(Bid{Amount: 5000, BidderID: "buyer-1", PlacedAt: 42, Tiebreak: 7})
	l.BuyerPaid = true

	require.NoError(t, l.Resubmit())
	assert.Equal(t, StatusPending, l.Status)
	assert.Empty(t, l.RejectionReason)
	assert.Zero(t, l.CurrentBid)
	assert.Empty(t, l.CurrentBidderID)
	assert.Zero(t, l.CurrentBidPlacedAt)
	assert.Zero(t, l.CurrentBidTiebreak)
	assert.False(t, l.BuyerPaid)

	// editing a pending listing stays pending
	require.NoError(t, l.Resubmit())
	assert.Equal(t, StatusPending, l.Status)
}

func TestValidateSchedule(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	start := now.Add(MinStartLead)
	end := start.Add(MinAuctionDuration)

	assert.NoError(t, ValidateSchedule(1000, start, end, now))
	assert.ErrorIs(t, ValidateSchedule(0, start, end, now), ErrInvalidBasePrice)
	assert.ErrorIs(t, ValidateSchedule(-5, start, end, now), ErrInvalidBasePrice)
	assert.ErrorIs(t, ValidateSchedule(1000, start.Add(-time.Second), end, now), ErrStartTooSoon)
	assert.ErrorIs(t, ValidateSchedule(1000, start, end.Add(-time.Second), now), ErrAuctionTooShort)

	// exact boundaries are acceptable
	assert.NoError(t, ValidateSchedule(1, start, start.Add(MinAuctionDuration), now))
}

func TestBidOutranks(t *testing.T) {
	base := Bid{Amount: 5000, BidderID: "a", PlacedAt: 1000, Tiebreak: 50}

	assert.True(t, Bid{Amount: 5500, PlacedAt: 2000, Tiebreak: 99}.Outranks(base), "higher amount wins regardless of time")
	assert.False(t, Bid{Amount: 4500, PlacedAt: 1, Tiebreak: 1}.Outranks(base), "lower amount loses regardless of time")

	assert.True(t, Bid{Amount: 5000, PlacedAt: 999, Tiebreak: 99}.Outranks(base), "equal amount, earlier time wins")
	assert.False(t, Bid{Amount: 5000, PlacedAt: 1001, Tiebreak: 1}.Outranks(base), "equal amount, later time loses")

	assert.True(t, Bid{Amount: 5000, PlacedAt: 1000, Tiebreak: 49}.Outranks(base), "full tie falls to tiebreak")
	assert.False(t, Bid{Amount: 5000, PlacedAt: 1000, Tiebreak: 51}.Outranks(base))

	assert.True(t, Bid{Amount: 1, PlacedAt: 5, Tiebreak: 5}.Outranks(Bid{}), "any bid beats the empty standing bid")
}

func TestMinimumBid(t *testing.T) {
	l := New("seller-1", "car", "", 12000, time.Now(), time.Now())
	assert.Equal(t, int64(12000), l.MinimumBid(), "no bid yet: base price")

	l.ApplyBid(Bid{Amount: 12000, BidderID: "buyer-1"})
	assert.Equal(t, int64(12500), l.MinimumBid(), "standing bid plus increment")
}

func TestCheckBiddable(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New("seller-1", "car", "", 1000, now.Add(-time.Hour), now.Add(time.Hour))

	assert.ErrorIs(t, l.CheckBiddable(now), ErrNotBiddable)

	l.Status = StatusInAuction
	assert.NoError(t, l.CheckBiddable(now))
	assert.ErrorIs(t, l.CheckBiddable(l.EndAt), ErrAuctionEnded, "end instant is closed")
	assert.ErrorIs(t, l.CheckBiddable(l.EndAt.Add(time.Minute)), ErrAuctionEnded)

	l.Status = StatusCompleted
	assert.ErrorIs(t, l.CheckBiddable(now), ErrNotBiddable)
}

func TestWinningBid(t *testing.T) {
	l := New("seller-1", "car", "", 1000, time.Now(), time.Now())

	_, ok := l.WinningBid()
	assert.False(t, ok)

	placed := Bid{Amount: 1500, BidderID: "buyer-1", PlacedAt: 77, Tiebreak: 3}
	l.ApplyBid(placed)
	got, ok := l.WinningBid()
	require.True(t, ok)
	assert.Equal(t, placed, got)
}

func TestDeletable(t *testing.T) {
	l := New("seller-1", "car", "", 1000, time.Now(), time.Now())
	assert.True(t, l.Deletable())

	require.NoError(t, l.Approve())
	assert.True(t, l.Deletable())

	require.NoError(t, l.ConfirmFeePaid())
	assert.False(t, l.Deletable(), "fee settled, deletion is off the table")

	require.NoError(t, l.OpenAuction())
	assert.False(t, l.Deletable())

	require.NoError(t, l.Complete())
	assert.False(t, l.Deletable())
}

func TestBuyerAccessFee(t *testing.T) {
	assert.Equal(t, int64(100), BuyerAccessFee(0))
	assert.Equal(t, int64(100), BuyerAccessFee(4999), "2% below the floor")
	assert.Equal(t, int64(100), BuyerAccessFee(5000), "floor boundary")
	assert.Equal(t, int64(101), BuyerAccessFee(5050))
	assert.Equal(t, int64(240), BuyerAccessFee(12000))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("in_auction")
	require.NoError(t, err)
	assert.Equal(t, StatusInAuction, s)

	_, err = ParseStatus("sold")
	assert.Error(t, err)
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "Pending Approval", FormatStatus(StatusPending))
	assert.Equal(t, "Waiting to Start", FormatStatus(StatusWaitingForStart))
	assert.Equal(t, "weird", FormatStatus(Status("weird")))
}
