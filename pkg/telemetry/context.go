package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/starchart/starchart/pkg/manifest"
)

// Telemetry bundles logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance and its logger to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext retrieves the telemetry instance from the context,
// or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown flushes and stops the tracer.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return t.Tracer.Shutdown(ctx)
}

// StartMetricsServer starts the metrics HTTP server if an address is
// configured. It stops when ctx is cancelled.
func (t *Telemetry) StartMetricsServer(ctx context.Context) error {
	return t.Metrics.StartMetricsServer(ctx, t.Logger.NewComponentLogger("metrics").Zerolog())
}

// InstrumentedContext carries the span, logger and timer of one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing,
// and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)
	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span == nil {
		return
	}
	if err != nil {
		RecordError(ic.Span, err)
	} else {
		RecordSuccess(ic.Span)
	}
	ic.Span.End()
}

// CompileFunc produces a compiled site; it usually wraps a Compiler.
type CompileFunc func() (*manifest.CompiledSite, error)

// RecordCompilation runs fn inside a compile span and records the result
// in metrics. Configuration errors are tagged with their kind and location.
func RecordCompilation(ctx context.Context, source string, fn CompileFunc) (*manifest.CompiledSite, error) {
	tel := FromTelemetryContext(ctx)

	var span trace.Span
	if tel != nil {
		_, span = tel.Tracer.StartCompileSpan(ctx, source)
		defer span.End()
	}

	timer := NewTimer()
	site, err := fn()

	if tel == nil {
		return site, err
	}

	tel.Metrics.RecordCompile(site, timer.Duration(), err)
	if err != nil {
		var ce manifest.ConfigError
		if errors.As(err, &ce) {
			span.SetAttributes(
				AttrErrorKind.String(string(ce.Kind())),
				AttrErrorLocation.String(ce.Location()),
			)
		}
		RecordError(span, err)
		tel.Logger.WithManifest(source, "").WithError(err).Debug("Compilation failed")
		return nil, err
	}

	span.SetAttributes(
		AttrRouteCount.Int(site.Len()),
		AttrAssetPatterns.Int(len(site.Assets().Patterns)),
	)
	RecordSuccess(span)
	return site, nil
}
