package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		ShouldRetry: func(err error) bool { return err != nil },
	}
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	exec := NewExecutor[string](fastRetryConfig(), nil)

	attempts := 0
	got, err := exec.Execute(context.Background(), func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecutorReturnsFinalFailure(t *testing.T) {
	exec := NewExecutor[string](fastRetryConfig(), nil)

	attempts := 0
	_, err := exec.Execute(context.Background(), func() (string, error) {
		attempts++
		return "", errors.New("down")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts total, got %d", attempts)
	}
}

func TestExecutorDoesNotRetryFinalErrors(t *testing.T) {
	cfg := fastRetryConfig()
	final := errors.New("upstream said no")
	cfg.ShouldRetry = func(err error) bool { return !errors.Is(err, final) }
	exec := NewExecutor[string](cfg, nil)

	attempts := 0
	_, err := exec.Execute(context.Background(), func() (string, error) {
		attempts++
		return "", final
	})
	if !errors.Is(err, final) {
		t.Fatalf("expected final error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected a single attempt, got %d", attempts)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := fastRetryConfig()
	breakerCfg := DefaultBreakerConfig("test")
	breakerCfg.FailureThreshold = 2
	exec := NewExecutor[string](cfg, &breakerCfg)

	for i := 0; i < 2; i++ {
		exec.Execute(context.Background(), func() (string, error) {
			return "", errors.New("down")
		})
	}

	if exec.BreakerState() != gobreaker.StateOpen {
		t.Errorf("expected open breaker, got %v", exec.BreakerState())
	}

	_, err := exec.Execute(context.Background(), func() (string, error) {
		t.Fatal("breaker should short-circuit the call")
		return "", nil
	})
	if err == nil {
		t.Fatal("expected breaker error")
	}
}

func TestBreakerStateClosedWithoutBreaker(t *testing.T) {
	exec := NewExecutor[string](fastRetryConfig(), nil)
	if exec.BreakerState() != gobreaker.StateClosed {
		t.Errorf("expected closed state, got %v", exec.BreakerState())
	}
}
