package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factcheck_analyses_total",
		Help: "Analyses finished, by outcome (completed, unable_to_verify, failed, timeout).",
	}, []string{"outcome"})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "factcheck_analysis_duration_seconds",
		Help:    "Wall time of one analysis job.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
	})

	qualityGateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factcheck_quality_gate_total",
		Help: "Quality gate decisions.",
	}, []string{"result"})

	modelCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factcheck_model_calls_total",
		Help: "Model backend calls by kind (verify, bias, ocr, extract, chat), backend and outcome.",
	}, []string{"kind", "backend", "outcome"})

	searchCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factcheck_search_cache_total",
		Help: "Search cache lookups by result (hit, miss, error).",
	}, []string{"result"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factcheck_http_requests_total",
		Help: "HTTP requests by route template, method and status class.",
	}, []string{"route", "method", "status"})

	workerJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "factcheck_worker_jobs_total",
		Help: "Queue jobs handled by the worker, by outcome.",
	}, []string{"outcome"})
)

// ObserveAnalysis records a finished analysis.
func ObserveAnalysis(outcome string, seconds float64) {
	analysesTotal.WithLabelValues(outcome).Inc()
	if seconds >= 0 {
		analysisDuration.Observe(seconds)
	}
}

// IncQualityGate counts a gate decision.
func IncQualityGate(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	qualityGateTotal.WithLabelValues(result).Inc()
}

// IncModelCall counts one backend call.
func IncModelCall(kind, backend, outcome string) {
	modelCallsTotal.WithLabelValues(kind, backend, outcome).Inc()
}

// IncSearchCache counts a cache lookup.
func IncSearchCache(result string) {
	searchCacheTotal.WithLabelValues(result).Inc()
}

// IncWorkerJob counts a worker job outcome (received, completed, failed, deleted_unrecoverable).
func IncWorkerJob(outcome string) {
	workerJobsTotal.WithLabelValues(outcome).Inc()
}

// IncHTTPRequest counts one served request. status is collapsed to its class
// (2xx, 4xx, 5xx) to keep cardinality flat.
func IncHTTPRequest(route, method string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status/100)+"xx").Inc()
}

// Handler exposes the default registry in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
