package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/starchart/starchart/pkg/manifest"
)

// Compile results used as the result label.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics provides Prometheus metrics for manifest compilation and linting.
type Metrics struct {
	config MetricsConfig

	// Load metrics
	loads *prometheus.CounterVec

	// Compile metrics
	compiles        *prometheus.CounterVec
	compileDuration *prometheus.HistogramVec
	configErrors    *prometheus.CounterVec

	// Compiled site shape
	routes        prometheus.Gauge
	assetPatterns prometheus.Gauge
	assetOverlaps prometheus.Gauge

	// Lint metrics
	policyViolations *prometheus.CounterVec
	lintDuration     prometheus.Histogram

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifest_loads_total",
				Help:      "Total number of manifest loads by source format",
			},
			[]string{"format", "result"},
		),

		compiles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of manifest compilations",
			},
			[]string{"result"},
		),
		compileDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Duration of manifest compilation in seconds",
				Buckets:   buckets,
			},
			[]string{"result"},
		),
		configErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_errors_total",
				Help:      "Total number of configuration errors by kind",
			},
			[]string{"kind"},
		),

		routes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "routes",
				Help:      "Number of routes in the last compiled site",
			},
		),
		assetPatterns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "asset_patterns",
				Help:      "Number of asset include patterns in the last compiled site",
			},
		),
		assetOverlaps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "asset_overlaps",
				Help:      "Number of overlapping asset patterns in the last compiled site",
			},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of lint policy violations",
			},
			[]string{"policy", "severity"},
		),
		lintDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lint_duration_seconds",
				Help:      "Duration of policy evaluation in seconds",
				Buckets:   buckets,
			},
		),
	}

	registry.MustRegister(
		m.loads,
		m.compiles,
		m.compileDuration,
		m.configErrors,
		m.routes,
		m.assetPatterns,
		m.assetOverlaps,
		m.policyViolations,
		m.lintDuration,
	)

	return m, nil
}

// RecordLoad records a manifest load for the given source format.
func (m *Metrics) RecordLoad(format string, err error) {
	if m.loads == nil {
		return
	}
	m.loads.WithLabelValues(format, result(err)).Inc()
}

// RecordCompile records a compilation. On success the site gauges are
// updated; on failure the error is counted by its ConfigError kind.
func (m *Metrics) RecordCompile(site *manifest.CompiledSite, duration time.Duration, err error) {
	if m.compiles == nil {
		return
	}
	res := result(err)
	m.compiles.WithLabelValues(res).Inc()
	m.compileDuration.WithLabelValues(res).Observe(duration.Seconds())

	if err != nil {
		m.RecordConfigError(err)
		return
	}
	if site != nil {
		assets := site.Assets()
		m.routes.Set(float64(site.Len()))
		m.assetPatterns.Set(float64(len(assets.Patterns)))
		m.assetOverlaps.Set(float64(len(assets.Overlaps)))
	}
}

// RecordConfigError counts err by its ConfigError kind.
func (m *Metrics) RecordConfigError(err error) {
	if m.configErrors == nil || err == nil {
		return
	}
	m.configErrors.WithLabelValues(string(manifest.KindOf(err))).Inc()
}

// RecordPolicyViolation records one lint finding.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// ObserveLint records how long a policy evaluation took.
func (m *Metrics) ObserveLint(duration time.Duration) {
	if m.lintDuration == nil {
		return
	}
	m.lintDuration.Observe(duration.Seconds())
}

func result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer serves the metrics endpoint until ctx is cancelled.
// It does nothing when metrics are disabled or no listen address is set.
func (m *Metrics) StartMetricsServer(ctx context.Context, logger zerolog.Logger) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", m.config.ListenAddress).
		Str("path", path).
		Msg("Serving metrics")

	return nil
}
