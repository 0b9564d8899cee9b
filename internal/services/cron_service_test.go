package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/safarmate/transit-backend/internal/database/memory"
	"github.com/safarmate/transit-backend/internal/metrics"
	"github.com/safarmate/transit-backend/internal/models"
	"github.com/safarmate/transit-backend/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type failingJanitor struct{}

func (failingJanitor) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, errors.New("cache unavailable")
}

func newTestCron(t *testing.T, janitor CacheJanitor, config CronConfig) (*CronService, *AuthService) {
	t.Helper()
	arena := memory.NewArena()
	jwtService := jwt.NewService("access-secret-for-tests", "refresh-secret-for-tests", time.Hour, 24*time.Hour)
	auth := NewAuthService(arena.Users(), arena.RefreshTokens(), nil, jwtService, bcrypt.MinCost, newTestLogger())
	return NewCronService(auth, janitor, config, newTestLogger()), auth
}

func TestCronService_TokenPurge(t *testing.T) {
	cronService, auth := newTestCron(t, nil, DefaultCronConfig())
	ctx := context.Background()

	_, err := auth.Signup(ctx, &models.SignupRequest{FirstName: "A", LastName: "B", Email: "a@b.co", Password: "longenough"}, testClient)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("token_purge", "ok"))
	purged, err := cronService.RunTokenPurgeNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, purged)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("token_purge", "ok")))

	auth.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	purged, err = cronService.RunTokenPurgeNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestCronService_CachePurge(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	arena := memory.NewArena()
	arena.SetClock(func() time.Time { return now })
	cronService, _ := newTestCron(t, arena, DefaultCronConfig())
	ctx := context.Background()

	require.NoError(t, arena.Idempotency().Put(ctx, "k1", []byte(`{}`), time.Minute))
	now = now.Add(time.Hour)

	n, err := cronService.RunCachePurgeNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	before := testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("cache_purge", "error"))
	failing, _ := newTestCron(t, failingJanitor{}, DefaultCronConfig())
	_, err = failing.RunCachePurgeNow(ctx)
	assert.EqualError(t, err, "cache unavailable")
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.MaintenanceRuns.WithLabelValues("cache_purge", "error")))

	noJanitor, _ := newTestCron(t, nil, DefaultCronConfig())
	n, err = noJanitor.RunCachePurgeNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCronService_StartStop(t *testing.T) {
	cronService, _ := newTestCron(t, nil, DefaultCronConfig())

	require.NoError(t, cronService.Start())
	status := cronService.GetJobStatus()
	assert.Equal(t, 1, status["job_count"], "cache purge is skipped without a janitor")
	assert.Equal(t, true, status["running"])
	cronService.Stop()

	withJanitor, _ := newTestCron(t, memory.NewArena(), DefaultCronConfig())
	require.NoError(t, withJanitor.Start())
	assert.Equal(t, 2, withJanitor.GetJobStatus()["job_count"])
	withJanitor.Stop()
}

func TestCronService_InvalidSchedule(t *testing.T) {
	cronService, _ := newTestCron(t, nil, CronConfig{TokenPurgeSchedule: "every hour"})

	err := cronService.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_purge")
}
