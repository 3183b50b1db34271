package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/starchart/starchart/pkg/manifest"
	"github.com/starchart/starchart/pkg/policy"
	"github.com/starchart/starchart/pkg/telemetry"
)

func newLintCommand() *cobra.Command {
	var (
		failOn         string
		maxLabelLength int
		disable        []string
	)

	cmd := &cobra.Command{
		Use:   "lint [manifest]",
		Short: "Check a compiled site against Rego policies",
		Long: `Compile a manifest and evaluate it against lint policies.

Builtin policies:
  - https-links: external links should use https
  - slug-format: slugs should be lowercase kebab-case
  - label-length: labels should stay short
  - duplicate-labels: sibling items should not share a label
  - asset-overlap: asset patterns should not cover each other

Custom policies are .rego files, named after the file and reporting the
deny set of their package, or JSON policy documents. A "# severity: error"
line in the leading comment block sets a .rego policy's severity.`,
		Example: `  # Lint with the builtin policies
  starchart lint

  # Add custom policies and fail on warnings
  starchart lint --policies ./policies --fail-on warning

  # Allow longer labels and skip a builtin
  starchart lint --max-label-length 64 --disable slug-format`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := settingsFrom(ctx)

			threshold, err := policy.ParseSeverity(failOn)
			if err != nil {
				return err
			}

			path, err := manifestPath(s, args)
			if err != nil {
				return err
			}

			log.Info().
				Str("manifest", path).
				Strs("policies", s.Policies).
				Str("fail_on", failOn).
				Msg("Linting manifest")

			site, src, err := compileManifest(ctx, s, path)
			if err != nil {
				return fmt.Errorf("compilation failed: %s", describeError(err))
			}

			engine, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if len(s.Policies) > 0 {
				if err := engine.LoadPolicies(ctx, s.Policies); err != nil {
					return fmt.Errorf("failed to load policies: %w", err)
				}
			}
			for _, name := range disable {
				if err := engine.DisablePolicy(name); err != nil {
					return err
				}
			}

			settings := map[string]interface{}{}
			if maxLabelLength > 0 {
				settings["max_label_length"] = maxLabelLength
			}

			report, err := lintSite(ctx, engine, site, src.Path, settings)
			if err != nil {
				return err
			}

			if err := printReport(cmd.OutOrStdout(), report); err != nil {
				return err
			}

			if report.Fails(threshold) {
				return fmt.Errorf("lint failed: %d violations at or above %s", countAtLeast(report, threshold), threshold)
			}
			return nil
		},
	}

	cmd.Flags().StringSlice("policies", nil, "policy files or directories to load")
	cmd.Flags().Int("max-depth", 0, "maximum sidebar group nesting depth")
	cmd.Flags().Duration("starlark-timeout", 0, "time limit for Starlark manifests")
	cmd.Flags().Bool("collapse-overlaps", false, "drop include globs covered by a broader pattern")
	cmd.Flags().StringVar(&failOn, "fail-on", string(policy.SeverityError), "lowest severity that fails the run (info, warning, error)")
	cmd.Flags().IntVar(&maxLabelLength, "max-label-length", 0, fmt.Sprintf("label length limit (default %d)", policy.DefaultMaxLabelLength))
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "policies to skip")

	return cmd
}

// lintSite evaluates the engine's policies against site and records the
// findings in telemetry.
func lintSite(ctx context.Context, engine *policy.Engine, site *manifest.CompiledSite, source string, settings map[string]interface{}) (*policy.Report, error) {
	tel := telemetry.FromTelemetryContext(ctx)

	evalCtx := ctx
	var span trace.Span
	if tel != nil {
		evalCtx, span = tel.Tracer.StartLintSpan(ctx, len(engine.ListPolicies()))
		defer span.End()
	}

	report, err := engine.Evaluate(evalCtx, site, policy.EvalContext{
		Source:    source,
		Timestamp: time.Now(),
		Settings:  settings,
	})
	if err != nil {
		if span != nil {
			telemetry.RecordError(span, err)
		}
		return nil, fmt.Errorf("policy evaluation failed: %w", err)
	}

	if tel != nil {
		span.SetAttributes(telemetry.AttrViolationCount.Int(len(report.Violations)))
		telemetry.RecordSuccess(span)
		tel.Metrics.ObserveLint(report.Duration)
		for _, v := range report.Violations {
			tel.Metrics.RecordPolicyViolation(v.Policy, string(v.Severity))
		}
	}
	return report, nil
}

func printReport(w io.Writer, report *policy.Report) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "! %s\n", warning)
	}
	for _, v := range report.Violations {
		if v.Location != "" {
			fmt.Fprintf(w, "[%s] %s %s: %s\n", v.Severity, v.Policy, v.Location, v.Message)
		} else {
			fmt.Fprintf(w, "[%s] %s: %s\n", v.Severity, v.Policy, v.Message)
		}
	}
	fmt.Fprintf(w, "%d policies evaluated: %d errors, %d warnings, %d info\n",
		len(report.EvaluatedPolicies),
		report.Count(policy.SeverityError),
		report.Count(policy.SeverityWarning),
		report.Count(policy.SeverityInfo))
	return nil
}

func countAtLeast(report *policy.Report, threshold policy.Severity) int {
	n := 0
	for _, v := range report.Violations {
		if v.Severity.Rank() >= threshold.Rank() {
			n++
		}
	}
	return n
}
