package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bidware/bidware/internal/domain/listing"
)

// MockRepository is a mock implementation of listing.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, l *listing.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id uuid.UUID) (*listing.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, l *listing.Listing) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListBySeller(ctx context.Context, sellerID string) ([]*listing.Listing, error) {
	args := m.Called(ctx, sellerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*listing.Listing), args.Error(1)
}

func (m *MockRepository) ListByStatus(ctx context.Context, status listing.Status) ([]*listing.Listing, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*listing.Listing), args.Error(1)
}

func (m *MockRepository) ListActive(ctx context.Context) ([]*listing.Listing, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*listing.Listing), args.Error(1)
}

func (m *MockRepository) ListWonBy(ctx context.Context, bidderID string) ([]*listing.Listing, error) {
	args := m.Called(ctx, bidderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*listing.Listing), args.Error(1)
}

func (m *MockRepository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to listing.Status, reason string) (bool, error) {
	args := m.Called(ctx, id, from, to, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CompareAndSwapBid(ctx context.Context, id uuid.UUID, candidate listing.Bid) (listing.Bid, bool, error) {
	args := m.Called(ctx, id, candidate)
	return args.Get(0).(listing.Bid), args.Bool(1), args.Error(2)
}

func (m *MockRepository) SetBuyerPaid(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
