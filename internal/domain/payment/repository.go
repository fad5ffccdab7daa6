package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindPending returns the open fee-collection attempt for the listing and
	// payer, or nil when none exists.
	FindPending(ctx context.Context, listingID uuid.UUID, payerID string) (*Payment, error)

	ListByListing(ctx context.Context, listingID uuid.UUID) ([]*Payment, error)
	ListByPayer(ctx context.Context, payerID string) ([]*Payment, error)

	// MarkCompleted settles a pending payment exactly once. Returns false when
	// the payment was already decided (duplicate gateway event).
	MarkCompleted(ctx context.Context, id uuid.UUID, externalRef string, at time.Time) (bool, error)
	// MarkFailed records a gateway failure on a pending payment.
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)

	// DeleteByListing removes the listing's payment records; used only when a
	// pre-auction, unpaid listing is deleted.
	DeleteByListing(ctx context.Context, listingID uuid.UUID) error
}
