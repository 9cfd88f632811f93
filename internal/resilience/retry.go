// Package resilience wraps failsafe-go retry policies and a gobreaker
// circuit breaker for calls to the Cloudflare API.
package resilience

import (
	"context"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/sony/gobreaker"
)

// RetryConfig controls retry behavior for upstream calls.
type RetryConfig struct {
	// MaxAttempts is the total number of tries including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; it doubles each attempt.
	BaseDelay time.Duration
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
	// ShouldRetry decides whether an error is worth another attempt.
	// Typically transport failures only; well-formed upstream error
	// responses are final.
	ShouldRetry func(err error) bool
}

// DefaultRetryConfig matches the upstream fetch contract: three attempts
// total with 1s/2s backoff between them.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   1 * time.Second,
	MaxDelay:    4 * time.Second,
	ShouldRetry: func(err error) bool { return err != nil },
}

// BreakerConfig controls the circuit breaker guarding the upstream host.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerConfig returns conservative breaker settings for a single
// upstream endpoint.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 5,
	}
}

// Executor runs functions under a retry policy with an optional breaker.
type Executor[R any] struct {
	executor failsafe.Executor[R]
	breaker  *gobreaker.CircuitBreaker
}

// NewExecutor builds an executor from the given retry and breaker configs.
// Pass a nil breaker config to retry without circuit breaking.
func NewExecutor[R any](retryCfg RetryConfig, breakerCfg *BreakerConfig) *Executor[R] {
	builder := retrypolicy.NewBuilder[R]().
		WithMaxRetries(retryCfg.MaxAttempts - 1).
		WithBackoff(retryCfg.BaseDelay, retryCfg.MaxDelay)
	if retryCfg.ShouldRetry != nil {
		builder = builder.HandleIf(func(_ R, err error) bool {
			return retryCfg.ShouldRetry(err)
		})
	}
	policy := builder.Build()

	var breaker *gobreaker.CircuitBreaker
	if breakerCfg != nil {
		breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        breakerCfg.Name,
			MaxRequests: breakerCfg.MaxRequests,
			Interval:    breakerCfg.Interval,
			Timeout:     breakerCfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerCfg.FailureThreshold
			},
		})
	}

	return &Executor[R]{
		executor: failsafe.With(policy),
		breaker:  breaker,
	}
}

// Execute runs fn under the retry policy, honoring ctx between attempts.
func (e *Executor[R]) Execute(ctx context.Context, fn func() (R, error)) (R, error) {
	if e.breaker != nil {
		result, err := e.breaker.Execute(func() (any, error) {
			return e.executor.WithContext(ctx).Get(fn)
		})
		if err != nil {
			var zero R
			return zero, err
		}
		return result.(R), nil
	}
	return e.executor.WithContext(ctx).Get(fn)
}

// BreakerState exposes the breaker state for health reporting.
func (e *Executor[R]) BreakerState() gobreaker.State {
	if e.breaker == nil {
		return gobreaker.StateClosed
	}
	return e.breaker.State()
}
