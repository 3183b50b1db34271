package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starchart/starchart/pkg/bundle"
	"github.com/starchart/starchart/pkg/manifest"
	"github.com/starchart/starchart/pkg/telemetry"
)

func newAssetsCommand() *cobra.Command {
	var (
		root    string
		workers int
		skip    []string
	)

	cmd := &cobra.Command{
		Use:   "assets [manifest]",
		Short: "Resolve the asset plan against the project tree",
		Long: `Compile a manifest and resolve its adapter include patterns against the
project tree.

For every matched file the command prints its size and the patterns that
selected it. Patterns covered by a broader pattern and patterns that match
nothing are reported as well.`,
		Example: `  # Resolve relative to the manifest directory
  starchart assets

  # Resolve against another root, skipping build output
  starchart assets --root ./site --skip dist

  # Full file list with digests
  starchart assets --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := settingsFrom(ctx)

			path, err := manifestPath(s, args)
			if err != nil {
				return err
			}

			site, src, err := compileManifest(ctx, s, path)
			if err != nil {
				return fmt.Errorf("compilation failed: %s", describeError(err))
			}

			if root == "" {
				root = filepath.Dir(src.Path)
			}
			plan := site.Assets()

			log.Info().
				Str("manifest", src.Path).
				Str("root", root).
				Int("patterns", len(plan.Patterns)).
				Msg("Resolving assets")

			res, err := resolveAssets(ctx, root, plan, workers, skip...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Plan       manifest.AssetPlan  `json:"plan"`
					Resolution *bundle.Resolution `json:"resolution"`
				}{plan, res})
			}

			for _, f := range res.Files {
				fmt.Fprintf(out, "%-48s %10s  %v\n", f.Path, humanize.Bytes(uint64(f.Size)), f.Patterns)
			}
			for _, o := range plan.Overlaps {
				fmt.Fprintf(out, "! %s is covered by %s\n", o.Pattern, o.CoveredBy)
			}
			for _, p := range res.Unmatched {
				fmt.Fprintf(out, "! %s matches no files\n", p)
			}
			fmt.Fprintf(out, "✓ %d files, %s\n", len(res.Files), res.HumanSize())
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "project root (default manifest directory)")
	cmd.Flags().IntVar(&workers, "workers", 0, "files hashed concurrently (default 2x CPUs)")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "extra directory names to skip")
	cmd.Flags().Int("max-depth", 0, "maximum sidebar group nesting depth")
	cmd.Flags().Duration("starlark-timeout", 0, "time limit for Starlark manifests")
	cmd.Flags().Bool("collapse-overlaps", false, "drop include globs covered by a broader pattern")

	return cmd
}

// resolveAssets resolves plan under root inside an assets span.
func resolveAssets(ctx context.Context, root string, plan manifest.AssetPlan, workers int, skip ...string) (*bundle.Resolution, error) {
	resolver := bundle.NewResolver(bundle.WithWorkers(workers), bundle.WithSkipDirs(skip...))

	tel := telemetry.FromTelemetryContext(ctx)
	if tel == nil {
		return resolver.Resolve(ctx, root, plan)
	}

	spanCtx, span := tel.Tracer.StartAssetsSpan(ctx, root, len(plan.Patterns))
	defer span.End()

	res, err := resolver.Resolve(spanCtx, root, plan)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to resolve assets: %w", err)
	}
	span.SetAttributes(telemetry.AttrAssetFiles.Int(len(res.Files)))
	telemetry.RecordSuccess(span)
	return res, nil
}
