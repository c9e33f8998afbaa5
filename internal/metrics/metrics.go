// Package metrics exposes Prometheus counters for shifts, interactions and
// HTTP traffic.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evn/shiftbot/internal/services/events"
)

type Metrics struct {
	registry *prometheus.Registry

	shiftsStarted prometheus.Counter
	shiftsEnded   prometheus.Counter
	resets        prometheus.Counter
	shiftDuration prometheus.Histogram
	interactions  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		shiftsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiftbot_shifts_started_total",
			Help: "Shifts opened.",
		}),
		shiftsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiftbot_shifts_ended_total",
			Help: "Shifts closed.",
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shiftbot_shift_resets_total",
			Help: "Full shift data resets.",
		}),
		shiftDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shiftbot_shift_duration_minutes",
			Help:    "Duration of closed shifts in whole minutes.",
			Buckets: []float64{15, 30, 60, 120, 240, 480, 720},
		}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shiftbot_interactions_total",
			Help: "Chat interactions by action and outcome.",
		}, []string{"action", "outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.shiftsStarted,
		m.shiftsEnded,
		m.resets,
		m.shiftDuration,
		m.interactions,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Publish records lifecycle events.
func (m *Metrics) Publish(_ context.Context, e events.Event) {
	if m == nil {
		return
	}
	switch e.Type {
	case events.ShiftStarted:
		m.shiftsStarted.Inc()
	case events.ShiftEnded:
		m.shiftsEnded.Inc()
		m.shiftDuration.Observe(float64(e.DurationMinutes))
	case events.ShiftsReset:
		m.resets.Inc()
	}
}

// Interaction counts one handled chat interaction.
func (m *Metrics) Interaction(action, outcome string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(action, outcome).Inc()
}

// Middleware records every request under its chi route pattern. The wrapped
// writer keeps http.Hijacker so websocket upgrades pass through.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
