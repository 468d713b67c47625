package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the server.
//
// Each Metrics instance owns its own registry so independent servers
// (and tests) never fight over metric registration.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Connection metrics
	WSConnections  prometheus.Gauge
	WSMessages     *prometheus.CounterVec
	AuthRejections prometheus.Counter

	// Terminal session metrics
	SessionsActive    prometheus.Gauge
	SessionsTotal     prometheus.Counter
	TerminalBytesIn   prometheus.Counter
	TerminalBytesOut  prometheus.Counter
	MalformedMessages prometheus.Counter

	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runotebook_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "runotebook_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "runotebook_ws_connections",
				Help: "Number of open WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runotebook_ws_messages_total",
				Help: "Total protocol messages by type and direction",
			},
			[]string{"type", "direction"},
		),
		AuthRejections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runotebook_auth_rejections_total",
				Help: "Total rejected authentication attempts",
			},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "runotebook_sessions_active",
				Help: "Number of live terminal sessions",
			},
		),
		SessionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runotebook_sessions_total",
				Help: "Total terminal sessions created",
			},
		),
		TerminalBytesIn: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runotebook_terminal_bytes_in_total",
				Help: "Bytes written to terminal sessions",
			},
		),
		TerminalBytesOut: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runotebook_terminal_bytes_out_total",
				Help: "Bytes read from terminal sessions",
			},
		),
		MalformedMessages: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "runotebook_malformed_messages_total",
				Help: "Total inbound frames dropped as malformed",
			},
		),
	}
}

// Handler returns the Prometheus scrape handler for this collector.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Uptime returns time elapsed since the collector was created.
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// RecordMessage counts one protocol message.
func (m *Metrics) RecordMessage(msgType, direction string) {
	m.WSMessages.WithLabelValues(msgType, direction).Inc()
}
