package payment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteOnce(t *testing.T) {
	p := New(uuid.New(), "seller-1", 700)
	assert.Equal(t, StatusPending, p.Status)
	assert.Nil(t, p.CompletedAt)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.Complete("txn-001", at))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "txn-001", p.ExternalRef)
	require.NotNil(t, p.CompletedAt)
	assert.Equal(t, at, *p.CompletedAt)

	assert.ErrorIs(t, p.Complete("txn-002", at), ErrAlreadyDecided)
	assert.ErrorIs(t, p.Fail("late failure", at), ErrAlreadyDecided)
	assert.Equal(t, "txn-001", p.ExternalRef, "first decision sticks")
}

func TestFailOnce(t *testing.T) {
	p := New(uuid.New(), "buyer-1", 240)

	at := time.Now().UTC()
	require.NoError(t, p.Fail("card declined", at))
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "card declined", p.ErrorText)
	require.NotNil(t, p.CompletedAt)

	assert.ErrorIs(t, p.Fail("again", at), ErrAlreadyDecided)
	assert.ErrorIs(t, p.Complete("txn-001", at), ErrAlreadyDecided)
}
