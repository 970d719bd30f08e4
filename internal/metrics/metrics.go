// Package metrics exposes Prometheus counters for pipeline runs and the HTTP
// API. All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plugscan"

// Metrics holds all Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	LoadRuns      *prometheus.CounterVec
	LoadDuration  *prometheus.HistogramVec
	PluginsLoaded *prometheus.GaugeVec
}

// New creates a metrics collector with Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),

		LoadRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "load_runs_total",
				Help:      "Completed plugin load runs by mode.",
			},
			[]string{"mode"},
		),
		LoadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "load_duration_seconds",
				Help:      "Wall time of a plugin load run by mode.",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"mode"},
		),
		PluginsLoaded: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "plugins_loaded",
				Help:      "Plugins yielded by the most recent run of each mode.",
			},
			[]string{"mode"},
		),
	}
}

// ObserveRun records one finished pipeline run.
func (m *Metrics) ObserveRun(mode string, loaded int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LoadRuns.WithLabelValues(mode).Inc()
	m.LoadDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	m.PluginsLoaded.WithLabelValues(mode).Set(float64(loaded))
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
