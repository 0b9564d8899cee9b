package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/safarmate/transit-backend/internal/database/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitTest(t *testing.T) (*RateLimitService, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	arena := memory.NewArena()
	arena.SetClock(clock)
	service := NewRateLimitService(arena.RateLimits(), RateLimitConfig{
		MaxEmailAttempts: 3,
		EmailWindow:      10 * time.Minute,
		MaxIPAttempts:    5,
		IPWindow:         time.Hour,
	})
	service.now = clock
	return service, &now
}

func TestCheckLogin_NoAttempts(t *testing.T) {
	service, _ := setupRateLimitTest(t)

	assert.NoError(t, service.CheckLogin(context.Background(), "rider@example.com", "192.168.1.1"))
}

func TestCheckLogin_EmailExceeded(t *testing.T) {
	service, now := setupRateLimitTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, service.RecordFailure(ctx, "Rider@Example.com", "192.168.1.1"))
	}
	*now = now.Add(4 * time.Minute)

	err := service.CheckLogin(ctx, "rider@example.com", "192.168.1.1")
	require.Error(t, err)

	var rateLimitErr *RateLimitError
	require.True(t, errors.As(err, &rateLimitErr), "Error should be RateLimitError")
	assert.Equal(t, "email", rateLimitErr.Type)
	assert.Contains(t, rateLimitErr.Message, "Too many failed login attempts for this account")
	assert.Equal(t, now.Add(6*time.Minute), rateLimitErr.RetryAfter)

	// another account from the same IP is still allowed
	assert.NoError(t, service.CheckLogin(ctx, "crew@example.com", "192.168.1.1"))

	*now = now.Add(7 * time.Minute)
	assert.NoError(t, service.CheckLogin(ctx, "rider@example.com", "192.168.1.1"))
}

func TestCheckLogin_IPExceeded(t *testing.T) {
	service, _ := setupRateLimitTest(t)
	ctx := context.Background()

	emails := []string{"a@x.co", "b@x.co", "c@x.co", "d@x.co", "e@x.co"}
	for _, email := range emails {
		require.NoError(t, service.RecordFailure(ctx, email, "10.0.0.7"))
	}

	err := service.CheckLogin(ctx, "f@x.co", "10.0.0.7")
	var rateLimitErr *RateLimitError
	require.True(t, errors.As(err, &rateLimitErr))
	assert.Equal(t, "ip", rateLimitErr.Type)
	assert.Contains(t, rateLimitErr.Message, "from this IP address")

	assert.NoError(t, service.CheckLogin(ctx, "f@x.co", "10.0.0.8"))
}

func TestRecordSuccess_ClearsEmailOnly(t *testing.T) {
	service, _ := setupRateLimitTest(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, service.RecordFailure(ctx, "rider@example.com", "10.0.0.7"))
	}
	require.NoError(t, service.RecordSuccess(ctx, "rider@example.com"))

	err := service.CheckLogin(ctx, "rider@example.com", "")
	assert.NoError(t, err)

	err = service.CheckLogin(ctx, "rider@example.com", "10.0.0.7")
	var rateLimitErr *RateLimitError
	require.True(t, errors.As(err, &rateLimitErr))
	assert.Equal(t, "ip", rateLimitErr.Type)
}

func TestNewRateLimitService_Defaults(t *testing.T) {
	service := NewRateLimitService(memory.NewArena().RateLimits(), RateLimitConfig{})
	assert.Equal(t, DefaultRateLimitConfig(), service.config)
}
