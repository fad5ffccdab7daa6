package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bidware/bidware/internal/domain/payment"
)

// MockRepository is a mock implementation of payment.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, p *payment.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockRepository) FindPending(ctx context.Context, listingID uuid.UUID, payerID string) (*payment.Payment, error) {
	args := m.Called(ctx, listingID, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockRepository) ListByListing(ctx context.Context, listingID uuid.UUID) ([]*payment.Payment, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

func (m *MockRepository) ListByPayer(ctx context.Context, payerID string) ([]*payment.Payment, error) {
	args := m.Called(ctx, payerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payment.Payment), args.Error(1)
}

func (m *MockRepository) MarkCompleted(ctx context.Context, id uuid.UUID, externalRef string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, externalRef, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error) {
	args := m.Called(ctx, id, reason, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) DeleteByListing(ctx context.Context, listingID uuid.UUID) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}
