package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig tunes the backoff schedule. Zero values fall back to 3
// attempts starting at 100ms, doubling up to a 10s ceiling, with 10% jitter.
type RetryConfig struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Factor    float64
	Jitter    float64
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Factor <= 0 {
		cfg.Factor = 2.0
	}
	if cfg.Jitter <= 0 {
		cfg.Jitter = 0.1
	}
	return cfg
}

// Retry runs fn up to cfg.Attempts times with exponential backoff between
// attempts. It stops early when ctx is cancelled and returns the last error
// wrapped with the attempt count.
func Retry(ctx context.Context, name string, cfg RetryConfig, fn func() error) error {
	cfg = cfg.withDefaults()
	log := slog.Default().With("component", "retry", "operation", name)

	var lastErr error
	delay := cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				log.Info("succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt >= cfg.Attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.Attempts, lastErr)
		}

		wait := jittered(delay, cfg.Jitter)
		log.Warn("attempt failed, backing off",
			"attempt", attempt,
			"error", lastErr,
			"backoff", wait,
		)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("%s aborted during backoff: %w", name, ctx.Err())
		}

		delay = time.Duration(float64(delay) * cfg.Factor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// jittered spreads the delay by up to +/- fraction so synchronised callers
// don't hammer a recovering dependency in lockstep.
func jittered(d time.Duration, fraction float64) time.Duration {
	offset := (2*rand.Float64() - 1) * fraction * float64(d)
	out := time.Duration(float64(d) + offset)
	if out <= 0 {
		return d
	}
	return out
}
