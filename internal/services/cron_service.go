package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/safarmate/transit-backend/internal/metrics"
	"github.com/sirupsen/logrus"
)

// CronConfig holds the maintenance schedules, in six-field cron syntax (with seconds)
type CronConfig struct {
	TokenPurgeSchedule string
	CachePurgeSchedule string
	JobTimeout         time.Duration
}

// DefaultCronConfig purges tokens hourly and the in-process cache every five minutes
func DefaultCronConfig() CronConfig {
	return CronConfig{
		TokenPurgeSchedule: "0 0 * * * *",
		CachePurgeSchedule: "0 */5 * * * *",
		JobTimeout:         30 * time.Second,
	}
}

// CronService manages scheduled background jobs. Seat holds are never swept
// here; they lapse lazily on the next ledger access.
type CronService struct {
	cron    *cron.Cron
	auth    *AuthService
	janitor CacheJanitor // nil when the cache expires entries itself
	config  CronConfig
	logger  *logrus.Logger
}

// NewCronService creates a new CronService
func NewCronService(auth *AuthService, janitor CacheJanitor, config CronConfig, logger *logrus.Logger) *CronService {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultCronConfig().JobTimeout
	}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.Recover(cron.PrintfLogger(logger)), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &CronService{
		cron:    c,
		auth:    auth,
		janitor: janitor,
		config:  config,
		logger:  logger,
	}
}

// Start schedules the jobs and starts the scheduler. An empty schedule disables its job.
func (s *CronService) Start() error {
	jobs := []struct {
		name     string
		schedule string
		run      func()
	}{
		{"token_purge", s.config.TokenPurgeSchedule, s.tokenPurgeJob},
		{"cache_purge", s.config.CachePurgeSchedule, s.cachePurgeJob},
	}

	for _, job := range jobs {
		if job.schedule == "" || (job.name == "cache_purge" && s.janitor == nil) {
			continue
		}
		if _, err := s.cron.AddFunc(job.schedule, job.run); err != nil {
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
		s.logger.WithFields(logrus.Fields{
			"job":      job.name,
			"schedule": job.schedule,
		}).Info("Scheduled maintenance job")
	}

	s.cron.Start()
	s.logger.Info("Cron service started")
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Cron service stopped")
}

func (s *CronService) tokenPurgeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	_, _ = s.RunTokenPurgeNow(ctx)
}

func (s *CronService) cachePurgeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.JobTimeout)
	defer cancel()
	_, _ = s.RunCachePurgeNow(ctx)
}

// RunTokenPurgeNow deletes expired refresh tokens
func (s *CronService) RunTokenPurgeNow(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.auth.PurgeExpiredTokens(ctx)
	s.finish("token_purge", n, start, err)
	return n, err
}

// RunCachePurgeNow drops expired in-process cache entries
func (s *CronService) RunCachePurgeNow(ctx context.Context) (int64, error) {
	if s.janitor == nil {
		return 0, nil
	}
	start := time.Now()
	n, err := s.janitor.PurgeExpired(ctx)
	s.finish("cache_purge", n, start, err)
	return n, err
}

func (s *CronService) finish(job string, affected int64, start time.Time, err error) {
	entry := s.logger.WithFields(logrus.Fields{
		"job":         job,
		"affected":    affected,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(job, "error").Inc()
		entry.WithError(err).Error("Maintenance job failed")
		return
	}
	metrics.MaintenanceRuns.WithLabelValues(job, "ok").Inc()
	if affected > 0 {
		entry.Info("Maintenance job completed")
		return
	}
	entry.Debug("Maintenance job completed")
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
