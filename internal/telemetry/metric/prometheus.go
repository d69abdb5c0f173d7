package metric

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yndnr/tlsdir/internal/telemetry/logger"
)

const namespace = "tlsdir"

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseBytes   prometheus.Counter

	// Connection metrics
	ConnectionsActive  prometheus.Gauge
	HandshakeErrors    prometheus.Counter
	RateLimited        prometheus.Counter
	BuildInfo          *prometheus.GaugeVec
	CertificateReloads *prometheus.CounterVec
}

// NewRegistry creates a registry with all tlsdir metrics plus the Go and
// process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by method and status code.",
			},
			[]string{"method", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ResponseBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_bytes_total",
			Help:      "Total number of response body bytes written.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open client connections.",
		}),
		HandshakeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tls",
			Name:      "handshake_errors_total",
			Help:      "Total number of failed TLS handshakes.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter.",
		}),
		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information, always 1.",
			},
			[]string{"version", "commit", "go_version"},
		),
		CertificateReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tls",
				Name:      "certificate_reloads_total",
				Help:      "Certificate reload attempts by result.",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		r.RequestsTotal,
		r.RequestDuration,
		r.ResponseBytes,
		r.ConnectionsActive,
		r.HandshakeErrors,
		r.RateLimited,
		r.BuildInfo,
		r.CertificateReloads,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Register adds an extra collector, e.g. a CertCollector.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// Handler returns an HTTP handler exposing this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry: r.registry,
	})
}

// HandlerWithLog is Handler with exposition errors sent to l.
func (r *Registry) HandlerWithLog(l logger.Logger) http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		Registry:      r.registry,
		ErrorLog:      logger.Std(l, slog.LevelError),
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// RecordRequest records one completed HTTP request.
func (r *Registry) RecordRequest(method, code string, d time.Duration, bytes int64) {
	r.RequestsTotal.WithLabelValues(method, code).Inc()
	r.RequestDuration.WithLabelValues(method).Observe(d.Seconds())
	if bytes > 0 {
		r.ResponseBytes.Add(float64(bytes))
	}
}

// IncHandshakeError counts a failed TLS handshake.
func (r *Registry) IncHandshakeError() {
	r.HandshakeErrors.Inc()
}

// IncRateLimited counts a request rejected by the rate limiter.
func (r *Registry) IncRateLimited() {
	r.RateLimited.Inc()
}

// RecordCertReload counts a certificate reload attempt.
func (r *Registry) RecordCertReload(err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.CertificateReloads.WithLabelValues(result).Inc()
}

// SetBuildInfo publishes the build_info gauge.
func (r *Registry) SetBuildInfo(version, commit, goVersion string) {
	r.BuildInfo.Reset()
	r.BuildInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// ConnState is an http.Server ConnState hook that keeps
// ConnectionsActive in step with open connections.
func (r *Registry) ConnState(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		r.ConnectionsActive.Inc()
	case http.StateHijacked, http.StateClosed:
		r.ConnectionsActive.Dec()
	}
}
