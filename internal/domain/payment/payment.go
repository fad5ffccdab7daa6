package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the state of one fee-collection attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrNotFound       = errors.New("payment not found")
	ErrAlreadyDecided = errors.New("payment already completed or failed")
)

// Payment records one fee-collection attempt tied to a listing and a payer.
// It is decided (completed or failed) exactly once, by the payment gate.
type Payment struct {
	ID          uuid.UUID  `json:"paymentId"`
	ListingID   uuid.UUID  `json:"listingId"`
	PayerID     string     `json:"payerId"`
	Amount      int64      `json:"amount"`
	Status      Status     `json:"status"`
	ExternalRef string     `json:"externalRef,omitempty"`
	ErrorText   string     `json:"errorText,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// New creates a pending payment for a due fee.
func New(listingID uuid.UUID, payerID string, amount int64) *Payment {
	return &Payment{
		ID:        uuid.New(),
		ListingID: listingID,
		PayerID:   payerID,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// Complete settles the payment with the gateway reference.
func (p *Payment) Complete(externalRef string, at time.Time) error {
	if p.Status != StatusPending {
		return ErrAlreadyDecided
	}
	p.Status = StatusCompleted
	p.ExternalRef = externalRef
	t := at.UTC()
	p.CompletedAt = &t
	return nil
}

// Fail records a gateway failure. The payer may start a fresh attempt.
func (p *Payment) Fail(reason string, at time.Time) error {
	if p.Status != StatusPending {
		return ErrAlreadyDecided
	}
	p.Status = StatusFailed
	p.ErrorText = reason
	t := at.UTC()
	p.CompletedAt = &t
	return nil
}
