// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CRMCalls counts Salesforce round trips by operation and outcome.
	CRMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_crm_calls_total",
		Help: "Salesforce API calls by operation and status.",
	}, []string{"operation", "status"})

	// PipelineRuns counts analysis pipeline stages by engine and outcome.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_pipeline_runs_total",
		Help: "NBA pipeline stage executions by engine, stage, and status.",
	}, []string{"engine", "stage", "status"})

	// ActionSteps counts executed plan steps by final status.
	ActionSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_action_steps_total",
		Help: "Action plan steps by execution status.",
	}, []string{"status"})

	// HTTPDuration observes dashboard API latency.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nba_http_request_duration_seconds",
		Help:    "Dashboard API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

// ObserveHTTP records one handled request.
func ObserveHTTP(method, path, status string, elapsed time.Duration) {
	HTTPDuration.WithLabelValues(method, path, status).Observe(elapsed.Seconds())
}

// RecordPipeline records one pipeline stage outcome.
func RecordPipeline(engine, stage string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PipelineRuns.WithLabelValues(engine, stage, status).Inc()
}
