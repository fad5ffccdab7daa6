package paymentgate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bidware/bidware/internal/domain/listing"
	"github.com/bidware/bidware/internal/domain/payment"
)

// SettledEvent reports a successful gateway checkout.
type SettledEvent struct {
	ListingID   uuid.UUID
	PayerID     string
	Amount      int64
	ExternalRef string
}

// FailedEvent reports a failed gateway checkout.
type FailedEvent struct {
	ListingID   uuid.UUID
	PayerID     string
	Reason      string
	ExternalRef string
}

// Adapter translates payment-gateway outcomes into lifecycle events. Settled
// events apply exactly once: the payment record and the status transition are
// both guarded by compare-and-set, so duplicate deliveries are ignored.
type Adapter struct {
	payments payment.Repository
	listings listing.Repository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewAdapter creates a payment gate adapter.
func NewAdapter(payments payment.Repository, listings listing.Repository, logger zerolog.Logger) *Adapter {
	return &Adapter{
		payments: payments,
		listings: listings,
		now:      time.Now,
		logger:   logger.With().Str("service", "paymentgate").Logger(),
	}
}

// WithClock overrides the time source, for tests.
func (a *Adapter) WithClock(now func() time.Time) *Adapter {
	a.now = now
	return a
}

// PaymentSettled applies a settlement. For the seller's listing fee it fires
// approved -> waiting_for_start; for the winning bidder's access fee it only
// marks the buyer as paid. Replays of either are no-ops.
func (a *Adapter) PaymentSettled(ctx context.Context, ev SettledEvent) error {
	l, err := a.listings.GetByID(ctx, ev.ListingID)
	if err != nil {
		return fmt.Errorf("loading listing %s: %w", ev.ListingID, err)
	}
	if l == nil {
		return listing.ErrNotFound
	}

	matched, err := a.settleRecord(ctx, ev)
	if err != nil {
		return err
	}
	if !matched {
		return nil
	}

	if ev.PayerID == l.SellerID {
		applied, err := a.listings.CompareAndSetStatus(ctx, ev.ListingID, listing.StatusApproved, listing.StatusWaitingForStart, "")
		if err != nil {
			return fmt.Errorf("applying fee settlement on %s: %w", ev.ListingID, err)
		}
		if !applied {
			a.logger.Debug().
				Str("listing_id", ev.ListingID.String()).
				Msg("duplicate listing-fee settlement ignored")
		}
		return nil
	}

	// Buyer access fee: valid only for the winning bidder after completion.
	if l.Status != listing.StatusCompleted || l.CurrentBidderID != ev.PayerID {
		a.logger.Warn().
			Str("listing_id", ev.ListingID.String()).
			Str("payer_id", ev.PayerID).
			Str("status", string(l.Status)).
			Msg("ignoring access-fee settlement from non-winner")
		return nil
	}
	if err := a.listings.SetBuyerPaid(ctx, ev.ListingID); err != nil {
		return fmt.Errorf("marking buyer paid on %s: %w", ev.ListingID, err)
	}
	return nil
}

// PaymentFailed records the failure on the payment record only. Listing status
// is untouched; the payer may retry until the sweep's deadline rejection.
func (a *Adapter) PaymentFailed(ctx context.Context, ev FailedEvent) error {
	p, err := a.payments.FindPending(ctx, ev.ListingID, ev.PayerID)
	if err != nil {
		return fmt.Errorf("looking up pending payment for %s: %w", ev.ListingID, err)
	}
	if p == nil {
		a.logger.Debug().
			Str("listing_id", ev.ListingID.String()).
			Str("payer_id", ev.PayerID).
			Msg("failure event without pending payment ignored")
		return nil
	}
	if _, err := a.payments.MarkFailed(ctx, p.ID, ev.Reason, a.now().UTC()); err != nil {
		return fmt.Errorf("marking payment %s failed: %w", p.ID, err)
	}
	return nil
}

// settleRecord completes the pending payment record. It reports false when the
// event does not match the fee that is due, in which case no lifecycle effect
// may be applied.
func (a *Adapter) settleRecord(ctx context.Context, ev SettledEvent) (bool, error) {
	p, err := a.payments.FindPending(ctx, ev.ListingID, ev.PayerID)
	if err != nil {
		return false, fmt.Errorf("looking up pending payment for %s: %w", ev.ListingID, err)
	}
	if p == nil {
		// Replay after the record settled, or checkout opened out of band.
		a.logger.Debug().
			Str("listing_id", ev.ListingID.String()).
			Str("payer_id", ev.PayerID).
			Msg("settlement without pending payment record")
		return true, nil
	}
	if ev.Amount != p.Amount {
		a.logger.Warn().
			Str("payment_id", p.ID.String()).
			Int64("expected", p.Amount).
			Int64("settled", ev.Amount).
			Msg("settlement amount does not match the due fee; ignored")
		return false, nil
	}
	settled, err := a.payments.MarkCompleted(ctx, p.ID, ev.ExternalRef, a.now().UTC())
	if err != nil {
		return false, fmt.Errorf("settling payment %s: %w", p.ID, err)
	}
	if !settled {
		a.logger.Debug().
			Str("payment_id", p.ID.String()).
			Msg("payment already decided; duplicate settlement ignored")
	}
	return true, nil
}
