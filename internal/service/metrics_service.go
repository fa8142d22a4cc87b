package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// certificate pipeline. It satisfies pipeline.Metrics.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	stageTotal      *prometheus.CounterVec
	stageDepth      *prometheus.GaugeVec
	providerLatency *prometheus.HistogramVec
	reviewTotal     *prometheus.CounterVec
}

// NewMetricsService registers the collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	stageTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pipeline_stage_events_total",
		Help: "Pipeline stage outcomes",
	}, []string{"stage", "outcome"})

	stageDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pipeline_stream_pending",
		Help: "Pending entries per pipeline stream",
	}, []string{"topic"})

	providerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_call_duration_seconds",
		Help:    "Latency of OCR and LLM provider calls",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"provider"})

	reviewTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_decisions_total",
		Help: "Coordinator decisions by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, stageTotal, stageDepth, providerLatency, reviewTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		stageTotal:      stageTotal,
		stageDepth:      stageDepth,
		providerLatency: providerLatency,
		reviewTotal:     reviewTotal,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveStage counts one stage outcome (ok, skipped or failed).
func (m *MetricsService) ObserveStage(stage, outcome string) {
	if m == nil {
		return
	}
	m.stageTotal.WithLabelValues(stage, outcome).Inc()
}

// ObserveProvider records the latency of one provider call.
func (m *MetricsService) ObserveProvider(name string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(name).Observe(duration.Seconds())
}

// SetStreamPending publishes the pending-entry depth for a stream.
func (m *MetricsService) SetStreamPending(topic string, depth int64) {
	if m == nil {
		return
	}
	m.stageDepth.WithLabelValues(topic).Set(float64(depth))
}

// ObserveReview counts one coordinator decision.
func (m *MetricsService) ObserveReview(outcome string) {
	if m == nil {
		return
	}
	m.reviewTotal.WithLabelValues(outcome).Inc()
}
