package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements LedgerMetrics for Prometheus
type PrometheusMetrics struct {
	appends        *prometheus.CounterVec
	appendDuration *prometheus.HistogramVec
	conflicts      *prometheus.CounterVec
	verifications  *prometheus.CounterVec
	halted         *prometheus.GaugeVec
	outbox         *prometheus.CounterVec
	breakerState   *prometheus.GaugeVec
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	return &PrometheusMetrics{
		appends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "appends_total",
				Help:      "Total number of append attempts per chain and outcome",
			},
			[]string{"chain", "outcome"},
		),
		appendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "append_duration_seconds",
				Help:      "Duration of append operations including retries",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"chain"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "append_conflicts_total",
				Help:      "Total number of compare-and-append conflicts per chain",
			},
			[]string{"chain"},
		),
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chain_verifications_total",
				Help:      "Total number of chain verifications per chain and result",
			},
			[]string{"chain", "result"},
		),
		halted: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "chain_halted",
				Help:      "1 when appends to the chain are halted after an integrity violation",
			},
			[]string{"chain"},
		),
		outbox: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_published_total",
				Help:      "Total number of outbox publish attempts per result",
			},
			[]string{"result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
}

// Register registers all collectors with the given registerer
func (m *PrometheusMetrics) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.appends,
		m.appendDuration,
		m.conflicts,
		m.verifications,
		m.halted,
		m.outbox,
		m.breakerState,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *PrometheusMetrics) RecordAppend(chain, outcome string, duration time.Duration) {
	m.appends.WithLabelValues(chain, outcome).Inc()
	m.appendDuration.WithLabelValues(chain).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordAppendConflict(chain string) {
	m.conflicts.WithLabelValues(chain).Inc()
}

func (m *PrometheusMetrics) RecordChainVerification(chain string, valid bool) {
	result := "valid"
	if !valid {
		result = "violation"
	}
	m.verifications.WithLabelValues(chain, result).Inc()
}

func (m *PrometheusMetrics) RecordChainHalted(chain string) {
	m.halted.WithLabelValues(chain).Set(1)
}

func (m *PrometheusMetrics) RecordOutboxPublish(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.outbox.WithLabelValues(result).Inc()
}

func (m *PrometheusMetrics) RecordBreakerState(name string, state BreakerState) {
	m.breakerState.WithLabelValues(name).Set(float64(state))
}
