package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/safarmate/transit-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAvailability_EmptyLedger(t *testing.T) {
	env := newTestEnv(t)

	avail, err := env.ledger.GetAvailability(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, &models.SeatAvailability{Total: 40, Reserved: 0, Held: 0, Available: 40}, avail)
}

func TestGetAvailability_UnknownBus(t *testing.T) {
	env := newTestEnv(t)

	avail, err := env.ledger.GetAvailability(context.Background(), "missing-bus")
	require.NoError(t, err)
	assert.Nil(t, avail)
}

func TestHoldThenConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hold, err := env.ledger.HoldSeats(ctx, "b1", 5, 120000*time.Millisecond)
	require.NoError(t, err)
	require.True(t, hold.OK)
	require.NotNil(t, hold.Hold)
	assert.Equal(t, models.LedgerStatusHold, hold.Hold.Status)
	assert.Equal(t, env.clock.Add(2*time.Minute), *hold.Hold.HoldExpiresAt)

	avail, err := env.ledger.GetAvailability(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, &models.SeatAvailability{Total: 40, Reserved: 0, Held: 5, Available: 35}, avail)

	confirmed, err := env.ledger.ConfirmHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.OK)

	avail, err = env.ledger.GetAvailability(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, &models.SeatAvailability{Total: 40, Reserved: 5, Held: 0, Available: 35}, avail)

	entry, err := env.arena.Ledger().GetByID(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusReserved, entry.Status)
	assert.Nil(t, entry.HoldExpiresAt)
}

func TestHoldSeats_Failures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		busID  string
		seats  int
		reason models.FailureReason
	}{
		{"unknown bus", "missing-bus", 1, models.ReasonBusNotFound},
		{"zero seats", "b1", 0, models.ReasonInvalidSeatCount},
		{"negative seats", "b1", -3, models.ReasonInvalidSeatCount},
		{"over capacity", "b1", 41, models.ReasonInsufficientSeat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.ledger.HoldSeats(ctx, tt.busID, tt.seats, 0)
			require.NoError(t, err)
			assert.False(t, result.OK)
			assert.Nil(t, result.Hold)
			assert.Equal(t, tt.reason, result.Reason)
		})
	}
}

func TestHoldSeats_Boundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.ledger.HoldSeats(ctx, "b1", 12, 0)
	require.NoError(t, err)
	require.True(t, first.OK)

	avail, err := env.ledger.GetAvailability(ctx, "b1")
	require.NoError(t, err)
	require.Equal(t, 28, avail.Available)

	tooMany, err := env.ledger.HoldSeats(ctx, "b1", avail.Available+1, 0)
	require.NoError(t, err)
	assert.False(t, tooMany.OK)
	assert.Equal(t, models.ReasonInsufficientSeat, tooMany.Reason)

	exact, err := env.ledger.HoldSeats(ctx, "b1", avail.Available, 0)
	require.NoError(t, err)
	assert.True(t, exact.OK)

	avail, err = env.ledger.GetAvailability(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 0, avail.Available)
	assert.Equal(t, 40, avail.Held)
}

func TestHoldExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hold, err := env.ledger.HoldSeats(ctx, "b1", 3, time.Second)
	require.NoError(t, err)
	require.True(t, hold.OK)

	env.advance(1100 * time.Millisecond)

	avail, err := env.ledger.GetAvailability(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 0, avail.Held)
	assert.Equal(t, 40, avail.Available)

	result, err := env.ledger.ConfirmHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, models.ReasonHoldExpired, result.Reason)

	entry, err := env.arena.Ledger().GetByID(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusCancelled, entry.Status)
	assert.Equal(t, models.CancelReasonExpired, entry.CancelReason)
	assert.Nil(t, entry.HoldExpiresAt)

	result, err = env.ledger.CancelHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonHoldExpired, result.Reason)
}

func TestConfirmHold_ExpiredWithoutSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hold, err := env.ledger.HoldSeats(ctx, "b1", 2, time.Second)
	require.NoError(t, err)
	env.advance(2 * time.Second)

	result, err := env.ledger.ConfirmHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonHoldExpired, result.Reason)

	entry, err := env.arena.Ledger().GetByID(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LedgerStatusCancelled, entry.Status)

	// asking again keeps reporting the expiry
	result, err = env.ledger.ConfirmHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonHoldExpired, result.Reason)
}

func TestConfirmHold_InvalidTransitions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.ledger.ConfirmHold(ctx, "no-such-hold")
	require.NoError(t, err)
	assert.Equal(t, models.ReasonHoldNotFound, result.Reason)

	hold, err := env.ledger.HoldSeats(ctx, "b1", 1, 0)
	require.NoError(t, err)

	result, err = env.ledger.ConfirmHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	require.True(t, result.OK)

	result, err = env.ledger.ConfirmHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.False(t, result.OK)
	assert.Equal(t, models.ReasonInvalidState, result.Reason)

	result, err = env.ledger.CancelHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonInvalidState, result.Reason)
}

func TestCancelHold_ReleasesSeats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hold, err := env.ledger.HoldSeats(ctx, "b1", 10, 0)
	require.NoError(t, err)

	result, err := env.ledger.CancelHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.True(t, result.OK)

	avail, err := env.ledger.GetAvailability(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 40, avail.Available)

	// a released hold is not an expired one, even after its ttl
	env.advance(DefaultHoldTTL + time.Second)
	result, err = env.ledger.ConfirmHold(ctx, hold.Hold.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonInvalidState, result.Reason)
}

func TestHoldSeats_ConcurrentNeverOversells(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const attempts = 100
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		confirmed []string
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := env.ledger.HoldSeats(ctx, "b1", 1, 0)
			if err != nil || !result.OK {
				return
			}
			mu.Lock()
			succeeded++
			if i%2 == 0 {
				confirmed = append(confirmed, result.Hold.ID)
			}
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 40, succeeded)

	for _, id := range confirmed {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = env.ledger.ConfirmHold(ctx, id)
		}(id)
	}
	wg.Wait()

	avail, err := env.ledger.GetAvailability(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 40, avail.Reserved+avail.Held)
	assert.Equal(t, len(confirmed), avail.Reserved)
	assert.Equal(t, 0, avail.Available)
}
