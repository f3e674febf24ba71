// Package resilience wraps outbound calls with bounded retries and a
// per-operation circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Verdict tells the executor how to treat one failed attempt.
type Verdict struct {
	Retry        bool
	TripsBreaker bool
}

// Classifier inspects an attempt error. A nil classifier treats every error
// as final and breaker-relevant.
type Classifier func(err error) Verdict

type Executor struct {
	cfg Config

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config) *Executor {
	return &Executor{
		cfg:      cfg.withDefaults(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// Execute runs call under the named operation's breaker, retrying attempts
// the classifier marks retryable. The breaker sees the final outcome of the
// whole retry loop, not individual attempts.
func (e *Executor) Execute(ctx context.Context, operation string, call func(context.Context) error, classify Classifier) error {
	if call == nil {
		return errors.New("resilience: call is nil")
	}
	if classify == nil {
		classify = func(error) Verdict { return Verdict{TripsBreaker: true} }
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unnamed"
	}

	breaker := e.breakerFor(operation, classify)
	_, err := breaker.Execute(func() (struct{}, error) {
		return struct{}{}, e.attempt(ctx, operation, call, classify)
	})
	return err
}

func (e *Executor) attempt(ctx context.Context, operation string, call func(context.Context) error, classify Classifier) error {
	delay := e.cfg.InitialBackoff

	var lastErr error
	for n := 1; n <= e.cfg.MaxAttempts; n++ {
		if n > 1 {
			slog.Warn("outbound_retry",
				"operation", operation,
				"attempt", n,
				"max_attempts", e.cfg.MaxAttempts,
				"error", lastErr,
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
			delay = min(time.Duration(float64(delay)*e.cfg.BackoffFactor), e.cfg.MaxBackoff)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = call(ctx)
		if lastErr == nil {
			return nil
		}
		if !classify(lastErr).Retry {
			return lastErr
		}
	}
	return lastErr
}

func (e *Executor) breakerFor(operation string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()

	if breaker, ok := e.breakers[operation]; ok {
		return breaker
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: e.cfg.BreakerProbeCalls,
		Timeout:     e.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < e.cfg.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= e.cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).TripsBreaker
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	})
	e.breakers[operation] = breaker
	return breaker
}

// IsCircuitOpen reports whether err means the breaker refused the call
// outright.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
