package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"github.com/starchart/starchart/pkg/config"
	"github.com/starchart/starchart/pkg/manifest"
	"github.com/starchart/starchart/pkg/telemetry"
)

// manifestPath picks the manifest from the positional argument, the
// manifest setting, or the current directory, in that order.
func manifestPath(s *Settings, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if s.Manifest != "" {
		return s.Manifest, nil
	}
	return config.Find(".")
}

// compileManifest loads the manifest at path and compiles it.
func compileManifest(ctx context.Context, s *Settings, path string) (*manifest.CompiledSite, *config.Source, error) {
	tel := telemetry.FromTelemetryContext(ctx)

	logger := log.Logger
	if tel != nil {
		logger = tel.Logger.NewComponentLogger("loader").Zerolog()
	}
	loader := config.NewLoader(logger, s.StarlarkTimeout)

	loadCtx := ctx
	var span trace.Span
	if tel != nil {
		loadCtx, span = tel.Tracer.StartLoadSpan(ctx, path)
	}

	cfg, src, err := loader.LoadSite(loadCtx, path)
	if tel != nil {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		span.End()

		format := "unknown"
		if src != nil {
			format = string(src.Format)
		} else if f, ferr := config.DetectFormat(path); ferr == nil {
			format = string(f)
		}
		tel.Metrics.RecordLoad(format, err)
	}
	if err != nil {
		return nil, src, err
	}

	compiler := manifest.NewCompiler(
		manifest.WithMaxDepth(s.MaxDepth),
		manifest.WithCollapseOverlaps(s.CollapseOverlaps),
	)
	site, err := telemetry.RecordCompilation(ctx, src.Path, func() (*manifest.CompiledSite, error) {
		return compiler.Compile(cfg)
	})
	if err != nil {
		return nil, src, err
	}
	return site, src, nil
}

// describeError renders a load or compile failure for terminal output.
func describeError(err error) string {
	var ce manifest.ConfigError
	if errors.As(err, &ce) {
		return fmt.Sprintf("%s at %s: %v", ce.Kind(), ce.Location(), err)
	}
	var le *config.LoadError
	if errors.As(err, &le) && len(le.Errors) > 0 {
		msg := fmt.Sprintf("%s manifest %s is invalid:", le.Format, le.Source)
		for _, ve := range le.Errors {
			msg += "\n  - " + ve.String()
		}
		return msg
	}
	return err.Error()
}
