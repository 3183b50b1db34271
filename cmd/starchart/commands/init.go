package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starchart/starchart/pkg/config"
	"github.com/starchart/starchart/pkg/manifest"
)

func newInitCommand() *cobra.Command {
	var (
		contentDir string
		format     string
		title      string
		target     string
		rootGroup  string
		output     string
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a manifest from a content directory",
		Long: `Scaffold a site manifest from an existing content directory.

Pages at the content root form one sidebar group and every subdirectory
becomes a group of its own. Item labels come from each page's front matter
(sidebar.label, then title) and fall back to the title-cased file name.

The generated manifest is compiled before it is written, and an existing
manifest is never overwritten unless --force is given.`,
		Example: `  # Scaffold starchart.yaml from src/content/docs
  starchart init

  # Scaffold a TOML manifest for Netlify
  starchart init --content ./docs --format toml --target netlify

  # Replace an existing manifest
  starchart init --force --title "Sentry Docs"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f := config.Format(format)
			if output == "" {
				output = "starchart." + format
			}

			log.Info().
				Str("content", contentDir).
				Str("format", format).
				Str("output", output).
				Msg("Scaffolding manifest")

			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			site, err := config.Scaffold(ctx, contentDir, config.ScaffoldOptions{
				Title:     title,
				Target:    target,
				RootGroup: rootGroup,
			})
			if err != nil {
				return err
			}

			compiled, err := manifest.Compile(site)
			if err != nil {
				return fmt.Errorf("scaffolded manifest is invalid: %s", describeError(err))
			}

			data, err := config.Encode(f, config.FromSiteConfig(site))
			if err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write manifest: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Scanned content directory: %s\n", contentDir)
			fmt.Fprintf(out, "✓ Created manifest: %s (%d groups, %d routes)\n", output, len(site.Sidebar), compiled.Len())
			fmt.Fprintf(out, "\nNext steps:\n")
			fmt.Fprintf(out, "  1. Review the generated sidebar labels\n")
			fmt.Fprintf(out, "  2. Compile the site:\n")
			fmt.Fprintf(out, "     starchart compile %s\n", output)

			return nil
		},
	}

	cmd.Flags().StringVar(&contentDir, "content", "src/content/docs", "content directory to scan")
	cmd.Flags().StringVar(&format, "format", string(config.FormatYAML), "manifest format (yaml, json, toml)")
	cmd.Flags().StringVar(&title, "title", "", "site title (default derived from the content directory)")
	cmd.Flags().StringVar(&target, "target", manifest.TargetStatic, "adapter target (vercel, netlify, node, static)")
	cmd.Flags().StringVar(&rootGroup, "root-group", "", "label of the group holding root pages (default Docs)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "manifest path (default starchart.<format>)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing manifest")

	return cmd
}
