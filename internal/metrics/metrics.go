package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

var (
	// OperationsTotal counts data access operations by outcome.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbaccess_operations_total",
			Help: "Total number of data access operations",
		},
		[]string{"operation", "status"},
	)
	// OperationDuration is the latency of data access operations.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dbaccess_operation_duration_seconds",
			Help:    "Data access operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	// PredicatesBuilt counts filtered selections handed to the database, by mode.
	PredicatesBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbaccess_predicates_built_total",
			Help: "Total number of composed filter predicates executed",
		},
		[]string{"mode"},
	)
)

// Observe records one finished operation.
func Observe(operation string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	OperationsTotal.WithLabelValues(operation, status).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
