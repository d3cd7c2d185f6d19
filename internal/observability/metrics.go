// Package observability exposes the Prometheus collectors for the analytics
// service. Collectors are registered on the default registry at init and
// served by promhttp on /metrics.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexai_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortexai_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexai_pipeline_runs_total",
			Help: "Analytics pipeline runs by outcome (ok or error code).",
		},
		[]string{"outcome"},
	)
	pipelineDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cortexai_pipeline_duration_ms",
			Help:    "End-to-end pipeline latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	intentClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexai_intent_classifications_total",
			Help: "Intent classifications by intent and deciding source.",
		},
		[]string{"intent", "source"},
	)
	llmFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexai_llm_fallback_total",
			Help: "LLM fallback attempts by pipeline stage and outcome.",
		},
		[]string{"stage", "outcome"},
	)
	templateSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexai_sql_template_total",
			Help: "SQL generations by template.",
		},
		[]string{"template"},
	)
	sqlValidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexai_sql_validations_total",
			Help: "SQL validations by result.",
		},
		[]string{"result"},
	)
	catalogReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexai_catalog_reloads_total",
			Help: "Catalog reload attempts by result.",
		},
		[]string{"result"},
	)
	catalogVersion = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexai_catalog_version",
			Help: "Version of the catalog snapshot currently served.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		pipelineRunsTotal,
		pipelineDurationMs,
		intentClassificationsTotal,
		llmFallbackTotal,
		templateSelectionsTotal,
		sqlValidationsTotal,
		catalogReloadsTotal,
		catalogVersion,
	)
}

func ObservePipelineRun(outcome string, elapsed time.Duration) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
	pipelineDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveIntent(intent, source string) {
	intentClassificationsTotal.WithLabelValues(intent, source).Inc()
}

// ObserveLLMFallback records one LLM attempt; outcome is one of used, kept_rules,
// timeout, error
func ObserveLLMFallback(stage, outcome string) {
	llmFallbackTotal.WithLabelValues(stage, outcome).Inc()
}

func ObserveTemplate(template string) {
	templateSelectionsTotal.WithLabelValues(template).Inc()
}

func ObserveValidation(valid bool) {
	result := "rejected"
	if valid {
		result = "valid"
	}
	sqlValidationsTotal.WithLabelValues(result).Inc()
}

func ObserveCatalogReload(ok bool, version uint64) {
	if !ok {
		catalogReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	catalogReloadsTotal.WithLabelValues("ok").Inc()
	catalogVersion.Set(float64(version))
}
