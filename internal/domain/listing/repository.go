package listing

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines persistence for listings. The store must provide atomic
// single-record conditional updates; the two compare-and-set operations each
// touch only the field group they own (lifecycle vs. bid state) so that the
// sweep and bid arbitration can race without clobbering each other.
type Repository interface {
	Create(ctx context.Context, l *Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*Listing, error)

	// Update writes the full record. Callers use it only for pre-auction
	// edits, never while bids or sweeps may be in flight.
	Update(ctx context.Context, l *Listing) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListBySeller(ctx context.Context, sellerID string) ([]*Listing, error)
	ListByStatus(ctx context.Context, status Status) ([]*Listing, error)
	// ListActive returns all listings not in a terminal state.
	ListActive(ctx context.Context) ([]*Listing, error)
	// ListWonBy returns completed listings whose winning bidder is bidderID.
	ListWonBy(ctx context.Context, bidderID string) ([]*Listing, error)

	// CompareAndSetStatus atomically moves status from -> to, recording reason
	// when to is rejected. Returns false when the current status no longer
	// matches from, which callers treat as an already-applied transition.
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to Status, reason string) (bool, error)

	// CompareAndSwapBid atomically installs candidate as the winning bid iff
	// the listing is still in auction, the candidate's submission time falls
	// before the end time, the candidate's bidder does not already hold the
	// winning bid, and the candidate outranks the stored bid per Bid.Outranks.
	// On success it returns the displaced bid, zero when none existed; all
	// checks run inside the atomic update so no interleaved writer can slip
	// between a caller's read and its swap.
	CompareAndSwapBid(ctx context.Context, id uuid.UUID, candidate Bid) (Bid, bool, error)

	// SetBuyerPaid marks the access fee settled. Idempotent.
	SetBuyerPaid(ctx context.Context, id uuid.UUID) error
}
