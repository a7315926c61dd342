// Package metrics registers the Prometheus instruments of the case service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the application.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	StatusChanges     *prometheus.CounterVec
	DocumentsUploaded prometheus.Counter
	NotifyFailures    prometheus.Counter
}

// New creates and registers all instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_operations_total",
			Help: "Operations handled, by operation and outcome.",
		}, []string{"op", "outcome"}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_operation_duration_seconds",
			Help:    "Operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		StatusChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_status_changes_total",
			Help: "Case status transitions applied, by resulting status.",
		}, []string{"status"}),
		DocumentsUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_documents_uploaded_total",
			Help: "Documents uploaded to object storage.",
		}),
		NotifyFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "kyc_notify_failures_total",
			Help: "Lifecycle emails that failed to send.",
		}),
	}
}

// ObserveOp records one finished operation.
func (m *Metrics) ObserveOp(op string, seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(seconds)
}
