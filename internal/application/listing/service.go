package listing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domain "github.com/bidware/bidware/internal/domain/listing"
	"github.com/bidware/bidware/internal/domain/payment"
)

// BidCache holds cached bid state that must be dropped when a listing is
// removed or its bid state is reset. Invalidation is best effort.
type BidCache interface {
	Drop(ctx context.Context, listingID uuid.UUID) error
}

// Service manages the seller-facing listing lifecycle: submission, edit and
// resubmission, review decisions, deletion, and fee initiation. Review itself
// is an external collaborator; this service only records its outcome.
type Service struct {
	listings domain.Repository
	payments payment.Repository
	cache    BidCache
	validate *validator.Validate
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a listing service.
func NewService(listings domain.Repository, payments payment.Repository, logger zerolog.Logger) *Service {
	return &Service{
		listings: listings,
		payments: payments,
		validate: validator.New(),
		now:      time.Now,
		logger:   logger.With().Str("service", "listing").Logger(),
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithBidCache attaches a bid cache to invalidate on deletion and resubmission.
func (s *Service) WithBidCache(c BidCache) *Service {
	s.cache = c
	return s
}

// SubmitInput carries a new or edited submission.
type SubmitInput struct {
	SellerID    string    `validate:"required"`
	Title       string    `validate:"required"`
	Description string    ``
	BasePrice   int64     `validate:"required,gt=0"`
	StartAt     time.Time `validate:"required"`
	EndAt       time.Time `validate:"required"`
}

// Create validates and stores a new pending listing.
func (s *Service) Create(ctx context.Context, in SubmitInput) (*domain.Listing, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}
	now := s.now().UTC()
	if err := domain.ValidateSchedule(in.BasePrice, in.StartAt, in.EndAt, now); err != nil {
		return nil, err
	}

	l := domain.New(in.SellerID, in.Title, in.Description, in.BasePrice, in.StartAt, in.EndAt)
	if err := s.listings.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("storing listing: %w", err)
	}
	s.logger.Info().Str("listing_id", l.ID.String()).Str("seller_id", l.SellerID).Msg("listing submitted")
	return l, nil
}

// Update applies an edit while the listing is pending or rejected. An edit of
// a rejected listing is a resubmission: it clears the rejection reason, resets
// bid and payment state from the prior submission, and returns to pending.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in SubmitInput) (*domain.Listing, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("invalid submission: %w", err)
	}
	l, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.SellerID != in.SellerID {
		return nil, fmt.Errorf("listing %s does not belong to seller %s", id, in.SellerID)
	}
	now := s.now().UTC()
	if err := domain.ValidateSchedule(in.BasePrice, in.StartAt, in.EndAt, now); err != nil {
		return nil, err
	}

	if err := l.Resubmit(); err != nil {
		return nil, err
	}
	l.Title = in.Title
	l.Description = in.Description
	l.BasePrice = in.BasePrice
	l.StartAt = in.StartAt.UTC()
	l.EndAt = in.EndAt.UTC()
	l.UpdatedAt = now

	if err := s.listings.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("storing listing edit: %w", err)
	}
	s.dropCachedBid(ctx, l.ID)
	s.logger.Info().Str("listing_id", l.ID.String()).Msg("listing resubmitted")
	return l, nil
}

// Review records an external review outcome on a pending listing. The status
// write is a compare-and-set from pending, so a replayed decision is a no-op
// reported as an illegal transition.
func (s *Service) Review(ctx context.Context, id uuid.UUID, approve bool, comments string) error {
	target := domain.StatusRejected
	reason := comments
	if approve {
		target = domain.StatusApproved
		reason = ""
	}
	applied, err := s.listings.CompareAndSetStatus(ctx, id, domain.StatusPending, target, reason)
	if err != nil {
		return fmt.Errorf("recording review on %s: %w", id, err)
	}
	if !applied {
		return domain.ErrIllegalTransition
	}
	s.logger.Info().Str("listing_id", id.String()).Bool("approved", approve).Msg("review recorded")
	return nil
}

// Delete removes a listing and its payment records. Only permitted while the
// listing is pre-auction and unpaid.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	l, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !l.Deletable() {
		return fmt.Errorf("listing %s is %s and can no longer be deleted", id, l.Status)
	}
	if err := s.payments.DeleteByListing(ctx, id); err != nil {
		return fmt.Errorf("deleting payments for %s: %w", id, err)
	}
	if err := s.listings.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting listing %s: %w", id, err)
	}
	s.dropCachedBid(ctx, id)
	return nil
}

func (s *Service) dropCachedBid(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Drop(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("listing_id", id.String()).Msg("failed to drop cached bid")
	}
}

// Get returns one listing.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	return s.get(ctx, id)
}

// ListBySeller returns a seller's listings.
func (s *Service) ListBySeller(ctx context.Context, sellerID string) ([]*domain.Listing, error) {
	return s.listings.ListBySeller(ctx, sellerID)
}

// ListByStatus returns listings in one state.
func (s *Service) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Listing, error) {
	return s.listings.ListByStatus(ctx, status)
}

// ListOpenAuctions returns listings currently accepting bids.
func (s *Service) ListOpenAuctions(ctx context.Context) ([]*domain.Listing, error) {
	return s.listings.ListByStatus(ctx, domain.StatusInAuction)
}

// ListPurchases returns completed listings won by the bidder.
func (s *Service) ListPurchases(ctx context.Context, bidderID string) ([]*domain.Listing, error) {
	return s.listings.ListWonBy(ctx, bidderID)
}

// ListPayments returns the payment history of one listing.
func (s *Service) ListPayments(ctx context.Context, listingID uuid.UUID) ([]*payment.Payment, error) {
	return s.payments.ListByListing(ctx, listingID)
}

// ListPaymentsByPayer returns a user's payment history.
func (s *Service) ListPaymentsByPayer(ctx context.Context, payerID string) ([]*payment.Payment, error) {
	return s.payments.ListByPayer(ctx, payerID)
}

// StartListingFeePayment opens a fee-collection attempt for the seller's flat
// listing fee and reports "payment required". The gateway checkout itself is
// external; its outcome arrives through the payment gate adapter. An already
// open attempt is returned instead of a duplicate.
func (s *Service) StartListingFeePayment(ctx context.Context, listingID uuid.UUID, sellerID string) (*payment.Payment, error) {
	l, err := s.get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.SellerID != sellerID {
		return nil, fmt.Errorf("listing %s does not belong to seller %s", listingID, sellerID)
	}
	if l.Status != domain.StatusApproved {
		return nil, fmt.Errorf("listing %s is %s; listing fee is due only after approval", listingID, l.Status)
	}
	return s.openPayment(ctx, listingID, l.SellerID, domain.SellerListingFee)
}

// StartAccessFeePayment opens a fee-collection attempt for the winning
// bidder's post-auction access fee.
func (s *Service) StartAccessFeePayment(ctx context.Context, listingID uuid.UUID, buyerID string) (*payment.Payment, error) {
	l, err := s.get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != domain.StatusCompleted {
		return nil, fmt.Errorf("listing %s is %s; access fee is due only after completion", listingID, l.Status)
	}
	if l.CurrentBidderID != buyerID {
		return nil, fmt.Errorf("user %s is not the winning bidder on %s", buyerID, listingID)
	}
	if l.BuyerPaid {
		return nil, fmt.Errorf("access fee for %s is already settled", listingID)
	}
	return s.openPayment(ctx, listingID, buyerID, domain.BuyerAccessFee(l.CurrentBid))
}

func (s *Service) openPayment(ctx context.Context, listingID uuid.UUID, payerID string, amount int64) (*payment.Payment, error) {
	if existing, err := s.payments.FindPending(ctx, listingID, payerID); err != nil {
		return nil, fmt.Errorf("looking up pending payment: %w", err)
	} else if existing != nil {
		return existing, nil
	}

	p := payment.New(listingID, payerID, amount)
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating payment: %w", err)
	}
	s.logger.Info().
		Str("payment_id", p.ID.String()).
		Str("listing_id", listingID.String()).
		Int64("amount", amount).
		Msg("payment required")
	return p, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	l, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading listing %s: %w", id, err)
	}
	if l == nil {
		return nil, domain.ErrNotFound
	}
	return l, nil
}
