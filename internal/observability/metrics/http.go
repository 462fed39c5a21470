package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractTotal    *prometheus.CounterVec
	extractDuration *prometheus.HistogramVec
	coverageAfter   *prometheus.HistogramVec
	cacheEventTotal *prometheus.CounterVec
	llmCallsTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extractd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extractd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "extractd",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	extractTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extractd",
			Subsystem: "pipeline",
			Name:      "extract_total",
			Help:      "Total extraction runs by label and status.",
		},
		[]string{"service", "label", "status"},
	)
	extractDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extractd",
			Subsystem: "pipeline",
			Name:      "extract_duration_seconds",
			Help:      "End-to-end extraction duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "label"},
	)
	coverageAfter := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "extractd",
			Subsystem: "pipeline",
			Name:      "coverage_after",
			Help:      "Coverage after all routes, per label.",
			Buckets:   []float64{0, 0.25, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"service", "label"},
	)
	cacheEventTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extractd",
			Subsystem: "cache",
			Name:      "events_total",
			Help:      "Result cache events by kind.",
		},
		[]string{"service", "event"},
	)
	llmCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "extractd",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "LLM fallback calls by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		extractTotal,
		extractDuration,
		coverageAfter,
		cacheEventTotal,
		llmCallsTotal,
	)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		extractTotal:    extractTotal,
		extractDuration: extractDuration,
		coverageAfter:   coverageAfter,
		cacheEventTotal: cacheEventTotal,
		llmCallsTotal:   llmCallsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/extract"):
		return "/v1/extract"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordExtraction(service, label, status string, coverageAfter float64, duration time.Duration) {
	if status == "" {
		status = "unknown"
	}
	m.extractTotal.WithLabelValues(service, label, status).Inc()
	m.extractDuration.WithLabelValues(service, label).Observe(duration.Seconds())
	if status == "success" || status == "degraded" {
		m.coverageAfter.WithLabelValues(service, label).Observe(coverageAfter)
	}
}

func (m *HTTPServerMetrics) RecordCacheEvent(service, event string) {
	if event == "" {
		event = "unknown"
	}
	m.cacheEventTotal.WithLabelValues(service, event).Inc()
}

func (m *HTTPServerMetrics) RecordLLMCall(service string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.llmCallsTotal.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}
