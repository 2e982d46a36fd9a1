package kino

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Field outcomes reported to Metrics.
const (
	OutcomeOK     = "ok"
	OutcomeError  = "error"
	OutcomeDenied = "denied"
)

// Metrics receives execution measurements. Implementations must be safe for
// concurrent use; sibling fields report from separate goroutines.
type Metrics interface {
	FieldResolved(typeName, fieldName, outcome string, elapsed time.Duration)
	OperationCompleted(operation, status string, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) FieldResolved(string, string, string, time.Duration) {}
func (nopMetrics) OperationCompleted(string, string, time.Duration)    {}

// PrometheusMetrics records operation and field counters and latencies.
type PrometheusMetrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Fields            *prometheus.CounterVec
	FieldDuration     *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors under namespace and registers
// them with reg. A nil reg skips registration.
func NewPrometheusMetrics(namespace string, reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if namespace == "" {
		namespace = "kino"
	}
	m := &PrometheusMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graphql_operations_total",
				Help:      "Total GraphQL operations by kind and status",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graphql_operation_duration_seconds",
				Help:      "GraphQL operation latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		Fields: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graphql_fields_total",
				Help:      "Resolved fields by coordinate and outcome",
			},
			[]string{"field", "outcome"},
		),
		FieldDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graphql_field_duration_seconds",
				Help:      "Field rule plus resolver latency",
				Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"field"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.Operations, m.OperationDuration, m.Fields, m.FieldDuration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) FieldResolved(typeName, fieldName, outcome string, elapsed time.Duration) {
	coordinate := typeName + "." + fieldName
	m.Fields.WithLabelValues(coordinate, outcome).Inc()
	m.FieldDuration.WithLabelValues(coordinate).Observe(elapsed.Seconds())
}

func (m *PrometheusMetrics) OperationCompleted(operation, status string, elapsed time.Duration) {
	m.Operations.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}
