package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bidware/bidware/internal/domain/payment"
)

const paymentColumns = `payment_id, listing_id, payer_id, amount, status, external_ref, error_text,
	created_at, completed_at`

// PaymentRepository implements payment.Repository.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payments (payment_id, listing_id, payer_id, amount, status, external_ref, error_text, created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, p.ID, p.ListingID, p.PayerID, p.Amount, p.Status, p.ExternalRef, p.ErrorText, p.CreatedAt, p.CompletedAt)
	return err
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payment_id=$1`, id)
	p, err := scanPayment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) FindPending(ctx context.Context, listingID uuid.UUID, payerID string) (*payment.Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE listing_id=$1 AND payer_id=$2 AND status=$3
		ORDER BY created_at DESC LIMIT 1
	`, listingID, payerID, payment.StatusPending)
	p, err := scanPayment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE listing_id=$1 ORDER BY created_at DESC
	`, listingID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

func (r *PaymentRepository) ListByPayer(ctx context.Context, payerID string) ([]*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE payer_id=$1 ORDER BY created_at DESC
	`, payerID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// MarkCompleted settles the payment iff it is still pending.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id uuid.UUID, externalRef string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status=$2, external_ref=$3, completed_at=$4
		WHERE payment_id=$1 AND status=$5
	`, id, payment.StatusCompleted, externalRef, at, payment.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed records the failure iff the payment is still pending.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET status=$2, error_text=$3, completed_at=$4
		WHERE payment_id=$1 AND status=$5
	`, id, payment.StatusFailed, reason, at, payment.StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) DeleteByListing(ctx context.Context, listingID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE listing_id=$1`, listingID)
	return err
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var p payment.Payment
	if err := row.Scan(&p.ID, &p.ListingID, &p.PayerID, &p.Amount, &p.Status, &p.ExternalRef, &p.ErrorText,
		&p.CreatedAt, &p.CompletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]*payment.Payment, error) {
	defer rows.Close()
	var out []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
