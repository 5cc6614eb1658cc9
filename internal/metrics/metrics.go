// Package metrics provides Prometheus metrics for the plant metrics pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "plant_pipeline"

var (
	// FetchRequestsTotal tracks upstream plant requests by outcome
	FetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "requests_total",
			Help:      "Total number of upstream plant requests by outcome",
		},
		[]string{"outcome"},
	)

	// FetchRequestDuration tracks upstream request duration
	FetchRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "request_duration_seconds",
			Help:      "Duration of upstream plant requests in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	// RowsDroppedTotal tracks rows removed before load, by reason
	RowsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "rows_dropped_total",
			Help:      "Total number of rows dropped before load by reason",
		},
		[]string{"reason"},
	)

	// EmailsNulledTotal tracks botanist emails nulled by validation
	EmailsNulledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "emails_nulled_total",
			Help:      "Total number of invalid botanist emails replaced with null",
		},
	)

	// AnomaliesTotal tracks flagged readings by metric
	AnomaliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transform",
			Name:      "anomalies_total",
			Help:      "Total number of readings flagged as anomalous",
		},
		[]string{"metric"},
	)

	// RowsInsertedTotal tracks rows written to plant_metric
	RowsInsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "rows_inserted_total",
			Help:      "Total number of rows inserted into plant_metric",
		},
	)

	// UnresolvedBotanistsTotal tracks botanist names with no database id
	UnresolvedBotanistsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "load",
			Name:      "unresolved_botanists_total",
			Help:      "Total number of botanist names that did not resolve to an id",
		},
	)

	// RunsTotal tracks pipeline runs by terminal state
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total number of pipeline runs by terminal state",
		},
		[]string{"component", "state"},
	)

	// RunDuration tracks run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"component"},
	)
)

// Push sends the default registry to a Prometheus Pushgateway. It is a no-op when
// gatewayURL is empty.
func Push(gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).Push(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
