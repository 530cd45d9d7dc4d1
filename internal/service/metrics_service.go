package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ticket lifecycle events.
const (
	TicketIssued   = "issued"
	TicketConsumed = "consumed"
	TicketRejected = "rejected"
	TicketSwept    = "swept"
)

// MetricsService encapsulates Prometheus instrumentation for the proxy.
type MetricsService struct {
	registry         *prometheus.Registry
	handler          http.Handler
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	ticketEvents     *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	timetableOutcome *prometheus.CounterVec
}

// NewMetricsService registers the proxy's Prometheus collectors.
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

	ticketEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_tickets_total",
		Help: "Session ticket lifecycle events",
	}, []string{"event"})

	upstreamDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_request_duration_seconds",
		Help:    "Duration of requests to the ERP portal by step",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"step", "outcome"})

	timetableOutcome := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_fetch_total",
		Help: "Timetable fetch attempts by result code",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, ticketEvents, upstreamDuration, timetableOutcome, goroutines)

	return &MetricsService{
		registry:         registry,
		handler:          promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:  requestDuration,
		requestTotal:     requestTotal,
		ticketEvents:     ticketEvents,
		upstreamDuration: upstreamDuration,
		timetableOutcome: timetableOutcome,
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

// RecordTicket counts n ticket events of the given kind.
func (m *MetricsService) RecordTicket(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ticketEvents.WithLabelValues(event).Add(float64(n))
}

// ObserveUpstream records one portal call. It satisfies erp.Observer.
func (m *MetricsService) ObserveUpstream(step string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.upstreamDuration.WithLabelValues(step, outcome).Observe(duration.Seconds())
}

// RecordTimetable counts a finished timetable fetch by result code.
func (m *MetricsService) RecordTimetable(result string) {
	if m == nil {
		return
	}
	m.timetableOutcome.WithLabelValues(result).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (m *MetricsService) Gatherer() prometheus.Gatherer {
	return m.registry
}
