package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OutbidNotice tells the previous winning bidder they have been displaced.
type OutbidNotice struct {
	ListingID    uuid.UUID `json:"listingId"`
	OutbidUserID string    `json:"outbidUserId"`
	NewBidderID  string    `json:"newBidderId"`
	NewAmount    int64     `json:"newAmount"`
	At           time.Time `json:"at"`
}

// Notifier delivers notices through an external collaborator. Delivery is best
// effort; a failed notice never fails the bid that triggered it.
type Notifier interface {
	NotifyOutbid(ctx context.Context, n OutbidNotice) error
}

// Nop discards all notices.
type Nop struct{}

func (Nop) NotifyOutbid(context.Context, OutbidNotice) error { return nil }
