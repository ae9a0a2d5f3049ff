package config

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig holds the backoff settings used for remote image downloads.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialDelay is the delay before the first retry
	InitialDelay time.Duration
	// MaxDelay caps the delay between retries
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
}

// GetRetryConfig returns the retry configuration.
func (c Config) GetRetryConfig() RetryConfig {
	if c.IsTest() {
		return RetryConfig{MaxRetries: c.RetryMaxRetries, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2}
	}
	return RetryConfig{
		MaxRetries:   c.RetryMaxRetries,
		InitialDelay: c.RetryInitialDelay,
		MaxDelay:     c.RetryMaxDelay,
		Multiplier:   c.RetryMultiplier,
	}
}

// BackOff builds a bounded exponential backoff from the config.
func (r RetryConfig) BackOff() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.InitialDelay
	expo.MaxInterval = r.MaxDelay
	if r.Multiplier > 0 {
		expo.Multiplier = r.Multiplier
	}
	expo.MaxElapsedTime = 0
	return backoff.WithMaxRetries(expo, uint64(max(r.MaxRetries, 0)))
}

// GenerationPolicy bounds the rotating generation loop.
type GenerationPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	ExhaustionTTL  time.Duration
	BulkMinGap     time.Duration
	BulkMaxGap     time.Duration
}

// GetGenerationPolicy returns the generation policy for the current environment.
func (c Config) GetGenerationPolicy() GenerationPolicy {
	p := GenerationPolicy{
		MaxAttempts:    c.GenerationMaxAttempts,
		AttemptTimeout: c.GenerationAttemptTimeout,
		ExhaustionTTL:  c.QuotaExhaustionTTL,
		BulkMinGap:     c.BulkMinGap,
		BulkMaxGap:     c.BulkMaxGap,
	}
	if c.IsTest() {
		p.BulkMinGap, p.BulkMaxGap = time.Millisecond, 2*time.Millisecond
	}
	return p
}
