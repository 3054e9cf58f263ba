package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "http_requests_total",
	Help: "Total number of requests labelled by path and status",
}, []string{"path", "status"})

var activeWorkerCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "active_worker_count",
	Help: "Number of active embedding workers",
})

var embeddingFallbackTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "embedding_fallback_total",
	Help: "How often the fallback embedding backend served a call",
})

var answerDegradedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "answer_degraded_total",
	Help: "Answers replaced by a static message, labelled by reason",
}, []string{"reason"})

var documentsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "documents_ingested_total",
	Help: "Document upserts labelled by outcome",
}, []string{"outcome"})

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "answer_cache_lookups_total",
	Help: "Semantic answer cache lookups labelled by result",
}, []string{"result"})

type HttpStatusRecorder struct {
	http.ResponseWriter
	Status int
}

func (r *HttpStatusRecorder) WriteHeader(code int) {
	r.Status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses (mcp) working through the recorder.
func (r *HttpStatusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func IncrementActiveWorkerCount() {
	activeWorkerCount.Inc()
}
func DecrementActiveWorkerCount() {
	activeWorkerCount.Dec()
}

func IncrementEmbeddingFallback() {
	embeddingFallbackTotal.Inc()
}

func IncrementDegradedAnswer(reason string) {
	answerDegradedTotal.WithLabelValues(reason).Inc()
}

func IncrementDocumentsIngested(outcome string) {
	documentsIngestedTotal.WithLabelValues(outcome).Inc()
}

func CaptureCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "process_request_duration_seconds",
	Help:    "Total time spent answering a question.",
	Buckets: []float64{.1, .5, 1, 2, 5, 10, 30},
}, []string{"status"})

var dependencyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "dependency_latency_seconds",
	Help:    "Latency of external service calls.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
}, []string{"service"})

func CaptureExecutionMetrics(label string, timeElapsed time.Duration) {
	dependencyLatency.WithLabelValues(label).Observe(timeElapsed.Seconds())
}

func CaptureRequestMetrics(label string, timeElapsed time.Duration) {
	requestDuration.WithLabelValues(label).Observe(timeElapsed.Seconds())
}
