package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics("ledger")
	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	m.RecordAppend("transactions", OutcomeCommitted, 10*time.Millisecond)
	m.RecordAppend("transactions", OutcomeCommitted, 20*time.Millisecond)
	m.RecordAppend("audit", OutcomeConflict, time.Millisecond)
	m.RecordAppendConflict("transactions")
	m.RecordChainVerification("audit", false)
	m.RecordChainHalted("audit")
	m.RecordOutboxPublish(true)
	m.RecordBreakerState("kafka", BreakerOpen)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.appends.WithLabelValues("transactions", OutcomeCommitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.appends.WithLabelValues("audit", OutcomeConflict)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts.WithLabelValues("transactions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("audit", "violation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.halted.WithLabelValues("audit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outbox.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerState.WithLabelValues("kafka")))

	t.Run("DoubleRegistrationFails", func(t *testing.T) {
		assert.Error(t, m.Register(registry))
	})
}

func TestBreakerState_String(t *testing.T) {
	assert.Equal(t, "closed", BreakerClosed.String())
	assert.Equal(t, "open", BreakerOpen.String())
	assert.Equal(t, "half-open", BreakerHalfOpen.String())
	assert.Equal(t, "unknown", BreakerState(9).String())
}

func TestNoOpMetrics(t *testing.T) {
	var m LedgerMetrics = NoOpMetrics{}
	assert.NotPanics(t, func() {
		m.RecordAppend("transactions", OutcomeError, time.Second)
		m.RecordAppendConflict("audit")
		m.RecordChainVerification("audit", true)
		m.RecordChainHalted("audit")
		m.RecordOutboxPublish(false)
		m.RecordBreakerState("x", BreakerClosed)
	})
}
