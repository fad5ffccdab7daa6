package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidware/bidware/internal/domain/listing"
)

const listingColumns = `listing_id, seller_id, title, description, base_price, start_at, end_at,
	status, rejection_reason, current_bid, current_bidder_id, current_bid_placed_at,
	current_bid_tiebreak, buyer_paid, created_at, updated_at`

// ListingRepository implements listing.Repository.
type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO listings (listing_id, seller_id, title, description, base_price, start_at, end_at,
			status, rejection_reason, current_bid, current_bidder_id, current_bid_placed_at,
			current_bid_tiebreak, buyer_paid, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, l.ID, l.SellerID, l.Title, l.Description, l.BasePrice, l.StartAt, l.EndAt,
		l.Status, l.RejectionReason, l.CurrentBid, l.CurrentBidderID, l.CurrentBidPlacedAt,
		l.CurrentBidTiebreak, l.BuyerPaid, l.CreatedAt, l.UpdatedAt)
	return err
}

func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE listing_id=$1`, id)
	l, err := scanListing(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Update writes the full record; reserved for pre-auction edits.
func (r *ListingRepository) Update(ctx context.Context, l *listing.Listing) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE listings SET seller_id=$2, title=$3, description=$4, base_price=$5, start_at=$6,
			end_at=$7, status=$8, rejection_reason=$9, current_bid=$10, current_bidder_id=$11,
			current_bid_placed_at=$12, current_bid_tiebreak=$13, buyer_paid=$14, updated_at=$15
		WHERE listing_id=$1
	`, l.ID, l.SellerID, l.Title, l.Description, l.BasePrice, l.StartAt,
		l.EndAt, l.Status, l.RejectionReason, l.CurrentBid, l.CurrentBidderID,
		l.CurrentBidPlacedAt, l.CurrentBidTiebreak, l.BuyerPaid, l.UpdatedAt)
	return err
}

func (r *ListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM listings WHERE listing_id=$1`, id)
	return err
}

func (r *ListingRepository) ListBySeller(ctx context.Context, sellerID string) ([]*listing.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE seller_id=$1 ORDER BY created_at DESC
	`, sellerID)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (r *ListingRepository) ListByStatus(ctx context.Context, status listing.Status) ([]*listing.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings WHERE status=$1 ORDER BY created_at DESC
	`, status)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (r *ListingRepository) ListActive(ctx context.Context) ([]*listing.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status = ANY($1) ORDER BY created_at
	`, statusStrings(listing.ActiveStatuses))
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

func (r *ListingRepository) ListWonBy(ctx context.Context, bidderID string) ([]*listing.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status=$1 AND current_bidder_id=$2 ORDER BY end_at DESC
	`, listing.StatusCompleted, bidderID)
	if err != nil {
		return nil, err
	}
	return collectListings(rows)
}

// CompareAndSetStatus moves status in a single conditional update touching
// only lifecycle fields.
func (r *ListingRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to listing.Status, reason string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE listings
		SET status=$3,
			rejection_reason = CASE WHEN $3 = 'rejected' THEN $4 ELSE rejection_reason END
		WHERE listing_id=$1 AND status=$2
	`, id, from, to, reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CompareAndSwapBid installs the candidate in a single conditional update
// touching only bid fields. Eligibility (still in auction, window open at the
// candidate's submission time, bidder not already winning) and the ordering
// rule are re-checked inside the statement, so no interleaved writer can be
// clobbered. The self-join returns the displaced bid for outbid notices.
func (r *ListingRepository) CompareAndSwapBid(ctx context.Context, id uuid.UUID, c listing.Bid) (listing.Bid, bool, error) {
	var prev listing.Bid
	err := r.pool.QueryRow(ctx, `
		UPDATE listings l
		SET current_bid=$2, current_bidder_id=$3, current_bid_placed_at=$4, current_bid_tiebreak=$5
		FROM listings old
		WHERE l.listing_id=$1 AND old.listing_id = l.listing_id
		  AND l.status='in_auction'
		  AND l.end_at > to_timestamp($4::double precision / 1000.0)
		  AND l.current_bidder_id <> $3
		  AND ($2 > l.current_bid
			OR ($2 = l.current_bid AND $4 < l.current_bid_placed_at)
			OR ($2 = l.current_bid AND $4 = l.current_bid_placed_at AND $5 < l.current_bid_tiebreak))
		RETURNING old.current_bid, old.current_bidder_id, old.current_bid_placed_at, old.current_bid_tiebreak
	`, id, c.Amount, c.BidderID, c.PlacedAt, c.Tiebreak).Scan(&prev.Amount, &prev.BidderID, &prev.PlacedAt, &prev.Tiebreak)
	if err == pgx.ErrNoRows {
		return listing.Bid{}, false, nil
	}
	if err != nil {
		return listing.Bid{}, false, err
	}
	return prev, true, nil
}

func (r *ListingRepository) SetBuyerPaid(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE listings SET buyer_paid=TRUE WHERE listing_id=$1`, id)
	return err
}

func scanListing(row pgx.Row) (*listing.Listing, error) {
	var l listing.Listing
	if err := row.Scan(&l.ID, &l.SellerID, &l.Title, &l.Description, &l.BasePrice, &l.StartAt, &l.EndAt,
		&l.Status, &l.RejectionReason, &l.CurrentBid, &l.CurrentBidderID, &l.CurrentBidPlacedAt,
		&l.CurrentBidTiebreak, &l.BuyerPaid, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func collectListings(rows pgx.Rows) ([]*listing.Listing, error) {
	defer rows.Close()
	var out []*listing.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func statusStrings(statuses []listing.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
