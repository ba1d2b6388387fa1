// Package metrics exposes Prometheus counters for bot commands, sweeps,
// outbound sends and HTTP requests on a private registry.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/chamahub/backend/pkg/messaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. The zero value is not usable; use New.
type Metrics struct {
	registry *prometheus.Registry

	commands      *prometheus.CounterVec
	sweepRuns     *prometheus.CounterVec
	sweepItems    *prometheus.GaugeVec
	sweepDuration *prometheus.HistogramVec
	sends         *prometheus.CounterVec
	requests      *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_bot_commands_total",
			Help: "Inbound bot commands by keyword.",
		}, []string{"command"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_sweep_runs_total",
			Help: "Sweep runs by job and result.",
		}, []string{"job", "result"}),
		sweepItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chama_sweep_last_count",
			Help: "Count reported by the last run of each sweep.",
		}, []string{"job"}),
		sweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chama_sweep_duration_seconds",
			Help:    "Sweep run duration.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_messages_sent_total",
			Help: "Outbound messages by result.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chama_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chama_http_request_duration_seconds",
			Help:    "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commands, m.sweepRuns, m.sweepItems, m.sweepDuration, m.sends, m.requests, m.latency,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCommand counts one handled bot command.
func (m *Metrics) ObserveCommand(command string) {
	m.commands.WithLabelValues(command).Inc()
}

// ObserveSweep records a finished sweep run.
func (m *Metrics) ObserveSweep(job string, count int, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.sweepRuns.WithLabelValues(job, result).Inc()
	m.sweepItems.WithLabelValues(job).Set(float64(count))
	m.sweepDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// Transport wraps t so every send is counted.
func (m *Metrics) Transport(t messaging.Transport) messaging.Transport {
	return &countingTransport{next: t, sends: m.sends}
}

type countingTransport struct {
	next  messaging.Transport
	sends *prometheus.CounterVec
}

func (t *countingTransport) Send(ctx context.Context, to, body string) error {
	err := t.next.Send(ctx, to, body)
	result := "ok"
	if err != nil {
		result = "error"
	}
	t.sends.WithLabelValues(result).Inc()
	return err
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
