package services

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RateLimitService throttles failed login attempts per email and per client IP
type RateLimitService struct {
	store  RateLimitStore
	config RateLimitConfig
	now    func() time.Time
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxEmailAttempts int           // failed logins per email
	EmailWindow      time.Duration // window for the email limit
	MaxIPAttempts    int           // failed logins per IP
	IPWindow         time.Duration // window for the IP limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxEmailAttempts: 5,
		EmailWindow:      15 * time.Minute,
		MaxIPAttempts:    20,
		IPWindow:         time.Hour,
	}
}

// NewRateLimitService creates a new rate limit service. Zero config fields take the defaults.
func NewRateLimitService(store RateLimitStore, config RateLimitConfig) *RateLimitService {
	defaults := DefaultRateLimitConfig()
	if config.MaxEmailAttempts <= 0 {
		config.MaxEmailAttempts = defaults.MaxEmailAttempts
	}
	if config.EmailWindow <= 0 {
		config.EmailWindow = defaults.EmailWindow
	}
	if config.MaxIPAttempts <= 0 {
		config.MaxIPAttempts = defaults.MaxIPAttempts
	}
	if config.IPWindow <= 0 {
		config.IPWindow = defaults.IPWindow
	}
	return &RateLimitService{store: store, config: config, now: time.Now}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func emailLimitKey(email string) string {
	return "login:email:" + strings.ToLower(strings.TrimSpace(email))
}

func ipLimitKey(ip string) string {
	return "login:ip:" + ip
}

// CheckLogin returns a *RateLimitError once the email or IP has used up its failed attempts
func (s *RateLimitService) CheckLogin(ctx context.Context, email, ip string) error {
	if email != "" {
		if err := s.check(ctx, emailLimitKey(email), s.config.MaxEmailAttempts, "email",
			"Too many failed login attempts for this account"); err != nil {
			return err
		}
	}
	if ip != "" {
		if err := s.check(ctx, ipLimitKey(ip), s.config.MaxIPAttempts, "ip",
			"Too many failed login attempts from this IP address"); err != nil {
			return err
		}
	}
	return nil
}

func (s *RateLimitService) check(ctx context.Context, key string, max int, kind, message string) error {
	count, left, err := s.store.Count(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check %s rate limit: %w", kind, err)
	}
	if count < int64(max) {
		return nil
	}
	retryAfter := s.now().Add(left)
	return &RateLimitError{
		Message:    fmt.Sprintf("%s. Please try again after %s", message, retryAfter.UTC().Format("15:04:05")),
		RetryAfter: retryAfter,
		Type:       kind,
	}
}

// RecordFailure counts one failed login against the email and the IP
func (s *RateLimitService) RecordFailure(ctx context.Context, email, ip string) error {
	if email != "" {
		if _, err := s.store.Hit(ctx, emailLimitKey(email), s.config.EmailWindow); err != nil {
			return fmt.Errorf("failed to record email attempt: %w", err)
		}
	}
	if ip != "" {
		if _, err := s.store.Hit(ctx, ipLimitKey(ip), s.config.IPWindow); err != nil {
			return fmt.Errorf("failed to record IP attempt: %w", err)
		}
	}
	return nil
}

// RecordSuccess clears the email counter. The IP counter keeps running.
func (s *RateLimitService) RecordSuccess(ctx context.Context, email string) error {
	return s.store.Reset(ctx, emailLimitKey(email))
}
