package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the console.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	gatewayDuration  *prometheus.HistogramVec
	gatewayTotal     *prometheus.CounterVec
	settingsWrite    prometheus.Observer
	settingsFailures prometheus.Counter
	eventsTotal      *prometheus.CounterVec
}

// NewMetricsService registers the console collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of console HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of console HTTP requests",
	}, []string{"method", "path", "status"})

	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "backend_request_duration_seconds",
		Help:    "Duration of requests to the records backend",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "outcome"})

	gatewayTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "backend_requests_total",
		Help: "Total number of requests to the records backend",
	}, []string{"method", "route", "outcome"})

	settingsWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "settings_write_seconds",
		Help:    "Latency of sort preference writes",
		Buckets: prometheus.DefBuckets,
	})

	settingsFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settings_write_failures_total",
		Help: "Total failed sort preference writes",
	})

	eventsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_events_total",
		Help: "Total console events dispatched",
	}, []string{"event", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, gatewayDuration, gatewayTotal, settingsWrite, settingsFailures, eventsTotal, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		gatewayDuration:  gatewayDuration,
		gatewayTotal:     gatewayTotal,
		settingsWrite:    settingsWrite,
		settingsFailures: settingsFailures,
		eventsTotal:      eventsTotal,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records console HTTP request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveGatewayRequest records a backend call by route template and outcome.
func (m *MetricsService) ObserveGatewayRequest(method, route, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(method, route, outcome).Observe(duration.Seconds())
	m.gatewayTotal.WithLabelValues(method, route, outcome).Inc()
}

// ObserveSettingsWrite records a sort preference write.
func (m *MetricsService) ObserveSettingsWrite(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.settingsWrite.Observe(duration.Seconds())
	if err != nil {
		m.settingsFailures.Inc()
	}
}

// ObserveEvent counts a dispatched console event.
func (m *MetricsService) ObserveEvent(event string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.eventsTotal.WithLabelValues(event, outcome).Inc()
}
