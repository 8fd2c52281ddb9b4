// Package resilience wraps outbound calls in a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stl-ledger/internal/platform/metrics"
)

// ErrCircuitOpen is returned while the breaker rejects calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a Breaker
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // Requests allowed through while half-open
	Interval            time.Duration // Cyclic period for clearing counts while closed
	Timeout             time.Duration // Time spent open before probing again
	ConsecutiveFailures uint32        // Failures that trip the breaker
}

// Breaker guards a dependency with a circuit breaker
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	metrics metrics.LedgerMetrics
	logger  *slog.Logger
}

func NewBreaker(cfg BreakerConfig, m metrics.LedgerMetrics, logger *slog.Logger) *Breaker {
	if m == nil {
		m = metrics.NoOpMetrics{}
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}

	b := &Breaker{metrics: m, logger: logger}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())

			state := metrics.BreakerClosed
			switch to {
			case gobreaker.StateOpen:
				state = metrics.BreakerOpen
			case gobreaker.StateHalfOpen:
				state = metrics.BreakerHalfOpen
			}
			b.metrics.RecordBreakerState(name, state)
		},
	})
	return b
}

// Execute runs fn through the breaker. Context cancellation is not counted as a dependency failure.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return nil, nil
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// State returns the current breaker state name
func (b *Breaker) State() string {
	return b.cb.State().String()
}
