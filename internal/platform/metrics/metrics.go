// Package metrics exposes ledger counters and timings.
package metrics

import (
	"time"
)

// Outcome labels for append metrics
const (
	OutcomeCommitted = "committed"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// LedgerMetrics records ledger activity. Implementations must be safe for concurrent use.
type LedgerMetrics interface {
	RecordAppend(chain, outcome string, duration time.Duration)
	RecordAppendConflict(chain string)
	RecordChainVerification(chain string, valid bool)
	RecordChainHalted(chain string)
	RecordOutboxPublish(success bool)
	RecordBreakerState(name string, state BreakerState)
}

// BreakerState represents the state of a circuit breaker
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOpMetrics is used when metrics are disabled
type NoOpMetrics struct{}

func (NoOpMetrics) RecordAppend(string, string, time.Duration) {}

func (NoOpMetrics) RecordAppendConflict(string) {}

func (NoOpMetrics) RecordChainVerification(string, bool) {}

func (NoOpMetrics) RecordChainHalted(string) {}

func (NoOpMetrics) RecordOutboxPublish(bool) {}

func (NoOpMetrics) RecordBreakerState(string, BreakerState) {}
