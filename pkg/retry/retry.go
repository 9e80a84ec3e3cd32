// Package retry provides a generic exponential-backoff executor for fallible
// operations against the upstream platform.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
)

const logPrefix = "retry:execute"

// Config holds retry behavior for one operation class. Configs are immutable
// once constructed and shared across calls.
type Config struct {
	// MaxAttempts counts the initial attempt. Must be >= 1.
	MaxAttempts int
	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps the computed backoff.
	MaxDelay time.Duration
	// ExponentialBase multiplies the delay per attempt. Must be > 1.
	ExponentialBase float64
	// Jitter in [0,1) applies a symmetric random factor of ±delay*Jitter.
	Jitter float64
	// MaxElapsed bounds the total time spent including backoff sleeps.
	// Zero means unbounded.
	MaxElapsed time.Duration
	// RetryOn lists the taxonomy kinds worth another attempt. A failure of
	// any other kind propagates immediately.
	RetryOn []apierror.Kind
}

// DefaultConfig mirrors the standard transient-error policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        60 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          0.1,
		MaxElapsed:      5 * time.Minute,
		RetryOn: []apierror.Kind{
			apierror.KindNetwork,
			apierror.KindTimeout,
			apierror.KindServiceUnavailable,
			apierror.KindRateLimit,
		},
	}
}

// NetworkConfig is the policy for raw network operations.
func NetworkConfig() Config {
	c := DefaultConfig()
	c.MaxAttempts = 5
	c.InitialDelay = time.Second
	c.MaxDelay = 30 * time.Second
	c.RetryOn = []apierror.Kind{apierror.KindNetwork, apierror.KindTimeout}
	return c
}

// RateLimitConfig is the policy for operations expected to hit upstream
// throttling: fewer attempts, longer initial delay.
func RateLimitConfig() Config {
	c := DefaultConfig()
	c.InitialDelay = 5 * time.Second
	c.RetryOn = []apierror.Kind{apierror.KindRateLimit, apierror.KindServiceUnavailable}
	return c
}

// LoginConfig is the policy for authentication attempts. Deliberately tight:
// repeated failed logins risk upstream account lockout.
func LoginConfig() Config {
	return Config{
		MaxAttempts:     2,
		InitialDelay:    2 * time.Second,
		MaxDelay:        10 * time.Second,
		ExponentialBase: 2.0,
		Jitter:          0.1,
		RetryOn:         []apierror.Kind{apierror.KindNetwork, apierror.KindTimeout},
	}
}

func (c Config) retryable(err error) bool {
	kind := apierror.KindOf(err)
	// An exhausted inner retry keeps the kind of the failure that exhausted
	// it, so a policy layered on top matches against that cause.
	if kind == apierror.KindRetryExhausted {
		if e := apierror.As(err); e != nil && e.Cause != nil {
			kind = apierror.KindOf(e.Cause)
		}
	}
	for _, k := range c.RetryOn {
		if k == kind {
			return true
		}
	}
	return false
}

// Delay computes the backoff before attempt+1 (attempt starts at 1),
// applying the exponential curve, the MaxDelay cap and symmetric jitter.
// The result is never negative.
func (c Config) Delay(attempt int) time.Duration {
	base := c.InitialDelay
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	exp := c.ExponentialBase
	if exp <= 1 {
		exp = 2.0
	}

	d := float64(base)
	for i := 1; i < attempt; i++ {
		d *= exp
	}
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	if c.Jitter > 0 {
		span := d * c.Jitter
		d += (rand.Float64()*2 - 1) * span
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

// Do runs op until it succeeds, fails with a non-retryable kind, or the
// attempt/elapsed budget is exhausted. Exhaustion surfaces as a
// RetryExhausted error wrapping the last failure — except for MaxAttempts=1
// configs, where the original error propagates untouched since there was
// nothing to exhaust. Backoff sleeps are context-aware; a canceled context
// surfaces as a Timeout error.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := time.Now()
	var lastErr error
	attempts := 0

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !cfg.retryable(err) {
			return err
		}
		if maxAttempts == 1 {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		if cfg.MaxElapsed > 0 && time.Since(start) >= cfg.MaxElapsed {
			slog.Warn(fmt.Sprintf("%s - exceeded max elapsed time (%s)", logPrefix, cfg.MaxElapsed))
			break
		}

		delay := cfg.Delay(attempt)
		// An explicit upstream hint beats the computed backoff.
		if ra := apierror.RetryAfterOf(err); ra > 0 {
			hinted := time.Duration(ra) * time.Second
			if hinted > delay {
				delay = hinted
			}
		}

		slog.Warn(fmt.Sprintf("%s - attempt %d/%d failed (%s), retrying in %s",
			logPrefix, attempt, maxAttempts, apierror.KindOf(err), delay.Round(time.Millisecond)))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return apierror.Timeout("retry backoff interrupted: " + ctx.Err().Error())
		case <-timer.C:
		}
	}

	// Report the attempts actually made: MaxElapsed can cut the loop short
	// of MaxAttempts.
	return apierror.RetryExhausted(attempts, lastErr)
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, cfg Config, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
