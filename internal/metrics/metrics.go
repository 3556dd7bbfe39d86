// Package metrics registers Prometheus instrumentation for ledger
// operations and the admin orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger and admin operations.
type Metrics struct {
	// Ledger operation outcomes by operation and result code
	LedgerOps *prometheus.CounterVec

	// Gateway transaction latency by operation
	GatewayLatency *prometheus.HistogramVec

	// Gateway retry attempts beyond the first
	GatewayRetries prometheus.Counter

	// Bulk batch sizes by operation
	BulkBatchSize *prometheus.HistogramVec

	// Verification outcomes by reason ("valid", "NOT_FOUND", ...)
	VerifyOutcome *prometheus.CounterVec
}

// New creates a Metrics instance with all collectors registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		LedgerOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idledger_ledger_operations_total",
			Help: "Total ledger operations by operation and result code",
		}, []string{"operation", "code"}),

		GatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idledger_gateway_duration_seconds",
			Help:    "Duration of gateway submit and evaluate calls by operation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),

		GatewayRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idledger_gateway_retries_total",
			Help: "Total gateway transaction retry attempts",
		}),

		BulkBatchSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idledger_bulk_batch_size",
			Help:    "Batch sizes of bulk operations",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"operation"}),

		VerifyOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idledger_verify_outcomes_total",
			Help: "Total verification outcomes by reason",
		}, []string{"reason"}),
	}
}

// IncrementLedgerOp records one ledger operation outcome. An empty code
// is recorded as "ok".
func (m *Metrics) IncrementLedgerOp(operation, code string) {
	if m != nil {
		if code == "" {
			code = "ok"
		}
		m.LedgerOps.WithLabelValues(operation, code).Inc()
	}
}

// ObserveGatewayLatency records the duration of one gateway call.
func (m *Metrics) ObserveGatewayLatency(operation string, d time.Duration) {
	if m != nil {
		m.GatewayLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// IncrementGatewayRetries records one retried gateway attempt.
func (m *Metrics) IncrementGatewayRetries() {
	if m != nil {
		m.GatewayRetries.Inc()
	}
}

// ObserveBulkBatchSize records the size of a bulk batch.
func (m *Metrics) ObserveBulkBatchSize(operation string, size int) {
	if m != nil {
		m.BulkBatchSize.WithLabelValues(operation).Observe(float64(size))
	}
}

// IncrementVerifyOutcome records one verification result.
func (m *Metrics) IncrementVerifyOutcome(reason string) {
	if m != nil {
		m.VerifyOutcome.WithLabelValues(reason).Inc()
	}
}
