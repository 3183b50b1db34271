// Package telemetry provides logging, tracing and metrics for starchart.
//
// Logging uses zerolog, tracing uses OpenTelemetry with stdout or OTLP
// exporters, and metrics are Prometheus collectors in a private registry.
//
// # Usage
//
// Initialize telemetry at startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = version
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//
// Wrap compilation so the span, the compiles_total counter and the site
// gauges are all updated together:
//
//	site, err := telemetry.RecordCompilation(ctx, path, func() (*manifest.CompiledSite, error) {
//	    return compiler.Compile(cfg)
//	})
//
// # Metrics
//
// All metrics are prefixed with the configured namespace (default
// "starchart"):
//
//   - manifest_loads_total{format,result}
//   - compiles_total{result}
//   - compile_duration_seconds{result}
//   - config_errors_total{kind}
//   - routes, asset_patterns, asset_overlaps
//   - policy_violations_total{policy,severity}
//   - lint_duration_seconds
//
// The metrics endpoint is only served when MetricsConfig.ListenAddress is
// set, which the watch command does for long-running sessions.
//
// # Tracing
//
// Spans are named manifest.load, manifest.compile, policy.evaluate and
// assets.resolve. Tracing is off by default; the stdout exporter writes
// to stderr so it never mixes with JSON artifacts on stdout.
package telemetry
