package retry

import (
	"context"
	"testing"
	"time"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
)

// fastConfig keeps backoff sleeps negligible in tests.
func fastConfig(maxAttempts int, retryOn ...apierror.Kind) Config {
	return Config{
		MaxAttempts:     maxAttempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		ExponentialBase: 2.0,
		Jitter:          0.1,
		RetryOn:         retryOn,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5, apierror.KindNetwork), func(context.Context) error {
		calls++
		if calls <= 2 {
			return apierror.Network("flaky", nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 invocations, got %d", calls)
	}
}

func TestDo_ExhaustsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3, apierror.KindTimeout), func(context.Context) error {
		calls++
		return apierror.Timeout("always slow")
	})
	if calls != 3 {
		t.Errorf("expected exactly 3 invocations, got %d", calls)
	}
	e := apierror.As(err)
	if e == nil || e.Kind != apierror.KindRetryExhausted {
		t.Fatalf("expected RetryExhausted, got %v", err)
	}
	if !apierror.IsKind(err, apierror.KindTimeout) {
		t.Error("exhausted error should expose the wrapped cause kind")
	}
}

func TestDo_RetriesExhaustedTransientCause(t *testing.T) {
	// An inner retry layer surfaces transient failures wrapped in
	// RetryExhausted; an outer layer must match on the exhausting cause.
	calls := 0
	err := Do(context.Background(), fastConfig(3, apierror.KindServiceUnavailable), func(context.Context) error {
		calls++
		if calls == 1 {
			return apierror.RetryExhausted(3, apierror.ServiceUnavailable("upstream down", 0))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}
}

func TestDo_ExhaustedNonRetryableCauseFailsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(3, apierror.KindServiceUnavailable), func(context.Context) error {
		calls++
		return apierror.RetryExhausted(2, apierror.NotFound("job", "42"))
	})
	if calls != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", calls)
	}
	if apierror.KindOf(err) != apierror.KindRetryExhausted {
		t.Errorf("expected the original error, got %v", err)
	}
}

func TestDo_NonRetryableFailsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5, apierror.KindNetwork), func(context.Context) error {
		calls++
		return apierror.Authentication("bad credentials")
	})
	if calls != 1 {
		t.Errorf("expected exactly 1 invocation, got %d", calls)
	}
	if apierror.KindOf(err) != apierror.KindAuthentication {
		t.Errorf("expected the original error, got %v", err)
	}
}

func TestDo_SingleAttemptPropagatesOriginalError(t *testing.T) {
	err := Do(context.Background(), fastConfig(1, apierror.KindNetwork), func(context.Context) error {
		return apierror.Network("down", nil)
	})
	if apierror.KindOf(err) != apierror.KindNetwork {
		t.Errorf("single-attempt config must not wrap the error, got %v", err)
	}
}

func TestDo_SuccessStopsRetrying(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5, apierror.KindNetwork), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil || calls != 1 {
		t.Errorf("expected immediate success, err=%v calls=%d", err, calls)
	}
}

func TestDo_RespectsMaxElapsed(t *testing.T) {
	cfg := fastConfig(100, apierror.KindNetwork)
	cfg.InitialDelay = 10 * time.Millisecond
	cfg.MaxElapsed = 25 * time.Millisecond

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return apierror.Network("down", nil)
	})
	if apierror.KindOf(err) != apierror.KindRetryExhausted {
		t.Fatalf("expected RetryExhausted after elapsed budget, got %v", err)
	}
	if calls >= 100 {
		t.Errorf("elapsed budget did not stop retries, %d calls", calls)
	}
	// The exhaustion error reports the attempts actually made, not the
	// configured maximum.
	if e := apierror.As(err); e == nil || e.Details["attempts"] != calls {
		t.Errorf("expected attempts=%d in details, got %v", calls, err)
	}
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	cfg := fastConfig(3, apierror.KindNetwork)
	cfg.InitialDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := Do(ctx, cfg, func(context.Context) error {
		return apierror.Network("down", nil)
	})
	if time.Since(start) > 500*time.Millisecond {
		t.Error("backoff sleep ignored context cancellation")
	}
	if apierror.KindOf(err) != apierror.KindTimeout {
		t.Errorf("expected Timeout on canceled backoff, got %v", err)
	}
}

func TestDoValue_ReturnsResult(t *testing.T) {
	calls := 0
	got, err := DoValue(context.Background(), fastConfig(3, apierror.KindRateLimit), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", apierror.RateLimit("", 0)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("expected ok, got %q", got)
	}
	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}
}

func TestDelay_NeverNegative(t *testing.T) {
	cfg := Config{
		MaxAttempts:     3,
		InitialDelay:    time.Millisecond,
		MaxDelay:        time.Second,
		ExponentialBase: 2.0,
		Jitter:          0.99,
	}
	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 100; i++ {
			if d := cfg.Delay(attempt); d < 0 {
				t.Fatalf("Delay(%d) = %s, want >= 0", attempt, d)
			}
		}
	}
}

func TestDelay_CappedAtMaxDelay(t *testing.T) {
	cfg := Config{
		MaxAttempts:     10,
		InitialDelay:    time.Second,
		MaxDelay:        4 * time.Second,
		ExponentialBase: 2.0,
	}
	if d := cfg.Delay(8); d > 4*time.Second {
		t.Errorf("Delay(8) = %s, want <= MaxDelay", d)
	}
}
