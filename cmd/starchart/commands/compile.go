package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starchart/starchart/pkg/bundle"
)

func newCompileCommand() *cobra.Command {
	var (
		withAssets bool
		assetRoot  string
		stdout     bool
	)

	cmd := &cobra.Command{
		Use:   "compile [manifest]",
		Short: "Compile a site manifest into a JSON artifact",
		Long: `Compile a documentation-site manifest and write the compiled site as a JSON
artifact.

The artifact holds:
  - The ordered sidebar routes with resolved hrefs
  - The deduplicated asset plan and any overlapping patterns
  - Site metadata (title, logo, social links, adapter)

No artifact is written when the manifest is invalid.`,
		Example: `  # Compile the manifest found in the current directory
  starchart compile

  # Compile a specific manifest to a custom path
  starchart compile site.cue --out build/site.json

  # Resolve the asset plan against the project tree too
  starchart compile --assets --asset-root .

  # Print the artifact instead of writing it
  starchart compile --stdout`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s := settingsFrom(ctx)

			path, err := manifestPath(s, args)
			if err != nil {
				return err
			}

			log.Info().
				Str("manifest", path).
				Str("out", s.Out).
				Bool("assets", withAssets).
				Msg("Compiling manifest")

			site, src, err := compileManifest(ctx, s, path)
			if err != nil {
				return fmt.Errorf("compilation failed: %s", describeError(err))
			}

			env := bundle.NewEnvelope(src.Path, cmd.Root().Version, site)
			if withAssets {
				root := assetRoot
				if root == "" {
					root = filepath.Dir(src.Path)
				}
				res, err := resolveAssets(ctx, root, site.Assets(), 0)
				if err != nil {
					return err
				}
				env.Assets = res
			}

			if stdout {
				return env.Encode(cmd.OutOrStdout())
			}

			if err := bundle.WriteArtifact(s.Out, env); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Compiled %s (%s): %d routes, %d asset patterns\n",
				src.Path, src.Format, site.Len(), len(site.Assets().Patterns))
			if env.Assets != nil {
				fmt.Fprintf(out, "✓ Resolved %d files (%s)\n", len(env.Assets.Files), env.Assets.HumanSize())
			}
			fmt.Fprintf(out, "✓ Wrote artifact: %s\n", s.Out)
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "artifact output path (default dist/starchart.json)")
	cmd.Flags().Int("max-depth", 0, "maximum sidebar group nesting depth")
	cmd.Flags().Duration("starlark-timeout", 0, "time limit for Starlark manifests")
	cmd.Flags().Bool("collapse-overlaps", false, "drop include globs covered by a broader pattern")
	cmd.Flags().BoolVar(&withAssets, "assets", false, "resolve the asset plan and embed the file list")
	cmd.Flags().StringVar(&assetRoot, "asset-root", "", "project root for asset resolution (default manifest directory)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "print the artifact instead of writing it")

	return cmd
}
