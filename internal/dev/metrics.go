package dev

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/langyo/React-frontback-scaffold/internal/build"
	"github.com/langyo/React-frontback-scaffold/internal/errors"
)

// MetricsConfig configures the dev server metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pneumatic").
	Namespace string

	// Buckets are the histogram buckets for build duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	Registry prometheus.Registerer
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "pneumatic",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		Registry:  prometheus.NewRegistry(),
	}
}

type metrics struct {
	buildsTotal       *prometheus.CounterVec
	buildDuration     prometheus.Histogram
	sandboxInstalls   *prometheus.CounterVec
	callbackErrors    prometheus.Counter
	watchEvents       prometheus.Counter
	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter
	messagesTotal     prometheus.Counter
	malformedMessages prometheus.Counter
	sendErrors        prometheus.Counter
}

func newMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		buildsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "builds_total",
			Help:      "Total number of build cycles by result",
		}, []string{"result"}),

		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "build_duration_seconds",
			Help:      "Build cycle duration in seconds",
			Buckets:   config.Buckets,
		}),

		sandboxInstalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sandbox_installs_total",
			Help:      "Total number of server logic installs by result",
		}, []string{"result"}),

		callbackErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "sandbox_callback_errors_total",
			Help:      "Total number of exceptions thrown by server logic callbacks",
		}),

		watchEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "watch_events_total",
			Help:      "Total number of file changes observed",
		}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "active_connections",
			Help:      "Number of open WebSocket connections",
		}),

		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "connections_total",
			Help:      "Total number of WebSocket connections accepted",
		}),

		messagesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "messages_total",
			Help:      "Total number of inbound messages forwarded to server logic",
		}),

		malformedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "malformed_messages_total",
			Help:      "Total number of inbound messages dropped because they were not JSON",
		}),

		sendErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "send_errors_total",
			Help:      "Total number of failed writes to a WebSocket connection",
		}),
	}
}

// observeBuild records the outcome of a build cycle.
func (m *metrics) observeBuild(r *build.Report) {
	m.buildDuration.Observe(r.Duration.Seconds())
	m.buildsTotal.WithLabelValues(buildResult(r)).Inc()

	if r.Err != nil {
		return
	}
	switch {
	case r.SandboxErr == nil:
		m.sandboxInstalls.WithLabelValues("ok").Inc()
	case errors.HasCode(r.SandboxErr, "E302"):
		m.sandboxInstalls.WithLabelValues("timeout").Inc()
	default:
		m.sandboxInstalls.WithLabelValues("error").Inc()
	}
}

func buildResult(r *build.Report) string {
	if r.Err == nil {
		return "ok"
	}
	switch errors.CodeOf(r.Err) {
	case "E201":
		return "compile_error"
	case "E202":
		return "crash"
	case "E203":
		return "no_output"
	default:
		return "error"
	}
}
