package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starchart/starchart/pkg/manifest"
)

// validationResult is the --json output of validate.
type validationResult struct {
	Manifest string `json:"manifest"`
	Format   string `json:"format,omitempty"`
	Valid    bool   `json:"valid"`
	Routes   int    `json:"routes,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Validate a site manifest",
		Long: `Validate a documentation-site manifest without writing an artifact.

This command checks:
  - Manifest syntax and schema conformance (CUE manifests against #Site)
  - Labels, slugs and external links of every sidebar item
  - Slug uniqueness across the whole sidebar
  - Group nesting depth
  - Asset include patterns

The first problem found is reported with its kind and manifest path.`,
		Example: `  # Validate the manifest in the current directory
  starchart validate

  # Validate a specific manifest with a tighter nesting limit
  starchart validate docs/starchart.toml --max-depth 3

  # Machine-readable result
  starchart validate --json`,
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
				Int("max_depth", s.MaxDepth).
				Msg("Validating manifest")

			site, src, err := compileManifest(ctx, s, path)

			res := validationResult{Manifest: path, Valid: err == nil}
			if src != nil {
				res.Manifest = src.Path
				res.Format = string(src.Format)
			}
			if err != nil {
				res.Error = err.Error()
				var ce manifest.ConfigError
				if errors.As(err, &ce) {
					res.Kind = string(ce.Kind())
					res.Location = ce.Location()
				}
			} else {
				res.Routes = site.Len()
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
			} else if err == nil {
				fmt.Fprintf(out, "✓ %s is valid (%d routes)\n", res.Manifest, res.Routes)
			} else {
				fmt.Fprintf(out, "✗ %s\n", describeError(err))
			}

			if err != nil {
				return fmt.Errorf("manifest %s is invalid", res.Manifest)
			}
			return nil
		},
	}

	cmd.Flags().Int("max-depth", 0, "maximum sidebar group nesting depth")
	cmd.Flags().Duration("starlark-timeout", 0, "time limit for Starlark manifests")

	return cmd
}
