package listing

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a listing.
type Status string

const (
	StatusPending         Status = "pending"
	StatusApproved        Status = "approved"
	StatusWaitingForStart Status = "waiting_for_start"
	StatusInAuction       Status = "in_auction"
	StatusRejected        Status = "rejected"
	StatusCompleted       Status = "completed"
)

// Commercial constants, in whole currency units.
const (
	// BidIncrement is the minimum step over the standing bid.
	BidIncrement int64 = 500
	// SellerListingFee is the flat fee the seller pays after approval.
	SellerListingFee int64 = 700
	// BuyerFeePercent and BuyerFeeMinimum define the post-auction access fee.
	BuyerFeePercent int64 = 2
	BuyerFeeMinimum int64 = 100
)

// Scheduling constraints on new submissions.
const (
	MinStartLead       = 3 * 24 * time.Hour
	MinAuctionDuration = 7 * 24 * time.Hour
)

// AutoRejectReason is recorded when the sweep rejects an unpaid approved listing.
const AutoRejectReason = "listing was automatically rejected due to non-payment before auction start time"

var (
	ErrNotFound          = errors.New("listing not found")
	ErrIllegalTransition = errors.New("illegal status transition")

	// Conflict errors, expected under contention.
	ErrOutbid   = errors.New("outbid: a better bid holds the listing")
	ErrConflict = errors.New("conflict: store update did not commit")

	// Validation errors, never retried.
	ErrInvalidBasePrice = errors.New("base price must be positive")
	ErrStartTooSoon     = errors.New("start time must be at least 3 days out")
	ErrAuctionTooShort  = errors.New("end time must be at least 7 days after start")
	ErrBidBelowMinimum  = errors.New("bid below minimum acceptable amount")
	ErrAlreadyWinning   = errors.New("bidder already holds the winning bid")
	ErrNotBiddable      = errors.New("listing is not open for bidding")
	ErrAuctionEnded     = errors.New("auction has ended")
)

// Bid is one candidate or standing winning bid. PlacedAt is the logical
// submission time in unix milliseconds; Tiebreak is a random value drawn per
// attempt so that equal-amount, equal-millisecond bids still have a total order.
type Bid struct {
	Amount   int64  `json:"amount"`
	BidderID string `json:"bidderId"`
	PlacedAt int64  `json:"placedAt"`
	Tiebreak int64  `json:"tiebreak"`
}

// Outranks reports whether b beats the standing bid cur: strictly higher
// amount, or equal amount submitted earlier, or equal on both with the lower
// tiebreak. A zero-amount cur (no bid yet) is beaten by any positive amount.
func (b Bid) Outranks(cur Bid) bool {
	if b.Amount != cur.Amount {
		return b.Amount > cur.Amount
	}
	if b.PlacedAt != cur.PlacedAt {
		return b.PlacedAt < cur.PlacedAt
	}
	return b.Tiebreak < cur.Tiebreak
}

// Listing is one item under auction together with its full lifecycle and bid
// state. Bid fields and lifecycle fields form separately-owned groups: the
// sweep only ever moves Status, bid arbitration only ever moves CurrentBid*.
type Listing struct {
	ID          uuid.UUID `json:"listingId"`
	SellerID    string    `json:"sellerId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	BasePrice   int64     `json:"basePrice"`
	StartAt     time.Time `json:"startAt"`
	EndAt       time.Time `json:"endAt"`

	Status          Status `json:"status"`
	RejectionReason string `json:"rejectionReason,omitempty"`

	CurrentBid         int64  `json:"currentBid"`
	CurrentBidderID    string `json:"currentBidderId,omitempty"`
	CurrentBidPlacedAt int64  `json:"currentBidPlacedAt,omitempty"`
	CurrentBidTiebreak int64  `json:"currentBidTiebreak,omitempty"`

	BuyerPaid bool `json:"buyerPaid"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a pending listing.
func New(sellerID, title, description string, basePrice int64, startAt, endAt time.Time) *Listing {
	now := time.Now().UTC()
	return &Listing{
		ID:          uuid.New(),
		SellerID:    sellerID,
		Title:       title,
		Description: description,
		BasePrice:   basePrice,
		StartAt:     startAt.UTC(),
		EndAt:       endAt.UTC(),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ValidateSchedule checks the commercial terms of a submission against the
// lead-time and minimum-duration rules, relative to now.
func ValidateSchedule(basePrice int64, startAt, endAt, now time.Time) error {
	if basePrice <= 0 {
		return ErrInvalidBasePrice
	}
	if startAt.Before(now.Add(MinStartLead)) {
		return ErrStartTooSoon
	}
	if endAt.Before(startAt.Add(MinAuctionDuration)) {
		return ErrAuctionTooShort
	}
	return nil
}

// IsTerminal reports whether no further transition can leave s, except that
// rejected listings may be resubmitted by the seller.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

// ActiveStatuses are the states the transition sweep has to look at.
var ActiveStatuses = []Status{StatusPending, StatusApproved, StatusWaitingForStart, StatusInAuction}

// CanTransitionTo checks the transition graph. Every trigger verifies the
// current status first, which makes each transition idempotent under replay.
func (l *Listing) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusPending:         {StatusApproved, StatusRejected},
		StatusApproved:        {StatusWaitingForStart, StatusRejected},
		StatusWaitingForStart: {StatusInAuction},
		StatusInAuction:       {StatusCompleted},
		StatusRejected:        {StatusPending}, // seller resubmits
		StatusCompleted:       {},
	}

	allowed, ok := transitions[l.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Approve records an external review approval.
func (l *Listing) Approve() error {
	if l.Status != StatusPending {
		return ErrIllegalTransition
	}
	l.Status = StatusApproved
	return nil
}

// Reject records an external review rejection with a reason.
func (l *Listing) Reject(reason string) error {
	if !l.CanTransitionTo(StatusRejected) {
		return ErrIllegalTransition
	}
	l.Status = StatusRejected
	l.RejectionReason = reason
	return nil
}

// ConfirmFeePaid moves an approved listing into the pre-start wait once the
// seller's listing fee settles.
func (l *Listing) ConfirmFeePaid() error {
	if l.Status != StatusApproved {
		return ErrIllegalTransition
	}
	l.Status = StatusWaitingForStart
	return nil
}

// OpenAuction starts the bidding window.
func (l *Listing) OpenAuction() error {
	if l.Status != StatusWaitingForStart {
		return ErrIllegalTransition
	}
	l.Status = StatusInAuction
	return nil
}

// Complete closes the auction.
func (l *Listing) Complete() error {
	if l.Status != StatusInAuction {
		return ErrIllegalTransition
	}
	l.Status = StatusCompleted
	return nil
}

// Resubmit returns an edited listing to pending review, dropping the rejection
// reason and any bid or payment state tied to the prior submission. Allowed
// from rejected (the resubmission proper) and from pending (plain edit).
func (l *Listing) Resubmit() error {
	switch l.Status {
	case StatusPending:
	case StatusRejected:
		l.Status = StatusPending
	default:
		return ErrIllegalTransition
	}
	l.RejectionReason = ""
	l.CurrentBid = 0
	l.CurrentBidderID = ""
	l.CurrentBidPlacedAt = 0
	l.CurrentBidTiebreak = 0
	l.BuyerPaid = false
	return nil
}

// CheckBiddable verifies the listing accepts bids at the given time.
func (l *Listing) CheckBiddable(now time.Time) error {
	if l.Status != StatusInAuction {
		return ErrNotBiddable
	}
	if !now.Before(l.EndAt) {
		return ErrAuctionEnded
	}
	return nil
}

// MinimumBid is the lowest acceptable amount: current bid plus the increment
// once a bid exists, otherwise the base price.
func (l *Listing) MinimumBid() int64 {
	if l.CurrentBid > 0 {
		return l.CurrentBid + BidIncrement
	}
	return l.BasePrice
}

// WinningBid returns the standing bid, if any.
func (l *Listing) WinningBid() (Bid, bool) {
	if l.CurrentBid <= 0 {
		return Bid{}, false
	}
	return Bid{
		Amount:   l.CurrentBid,
		BidderID: l.CurrentBidderID,
		PlacedAt: l.CurrentBidPlacedAt,
		Tiebreak: l.CurrentBidTiebreak,
	}, true
}

// ApplyBid installs b as the new winning bid on the in-memory copy. The
// authoritative application happens in the store's compare-and-swap.
func (l *Listing) ApplyBid(b Bid) {
	l.CurrentBid = b.Amount
	l.CurrentBidderID = b.BidderID
	l.CurrentBidPlacedAt = b.PlacedAt
	l.CurrentBidTiebreak = b.Tiebreak
}

// Deletable reports whether the listing may still be removed: only before the
// auction machinery is engaged and before the seller fee settled.
func (l *Listing) Deletable() bool {
	switch l.Status {
	case StatusPending, StatusRejected, StatusApproved:
		return true
	default:
		return false
	}
}

// BuyerAccessFee computes the post-auction access fee: a percentage of the
// winning bid, floored at a fixed minimum.
func BuyerAccessFee(winningBid int64) int64 {
	fee := winningBid * BuyerFeePercent / 100
	if fee < BuyerFeeMinimum {
		return BuyerFeeMinimum
	}
	return fee
}

// FormatStatus renders a status for display.
func FormatStatus(s Status) string {
	switch s {
	case StatusPending:
		return "Pending Approval"
	case StatusApproved:
		return "Approved"
	case StatusWaitingForStart:
		return "Waiting to Start"
	case StatusInAuction:
		return "In Auction"
	case StatusRejected:
		return "Rejected"
	case StatusCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ParseStatus validates a status string from the outside.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusWaitingForStart, StatusInAuction, StatusRejected, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown listing status %q", s)
}
