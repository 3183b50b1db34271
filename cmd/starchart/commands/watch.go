package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/starchart/starchart/pkg/bundle"
	"github.com/starchart/starchart/pkg/config"
	"github.com/starchart/starchart/pkg/policy"
	"github.com/starchart/starchart/pkg/telemetry"
)

func newWatchCommand() *cobra.Command {
	var (
		write    bool
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [manifest]",
		Short: "Recompile the manifest whenever it changes",
		Long: `Compile the manifest, then watch it and recompile on every change.

While watching:
  - Each rebuild is validated and linted with the loaded policies
  - --write rewrites the artifact after every successful rebuild
  - Policy files given with --policies are reloaded when they change
  - --metrics-addr serves Prometheus metrics for the session

Stop with Ctrl+C.`,
		Example: `  # Watch the manifest in the current directory
  starchart watch

  # Keep the artifact current and lint with custom policies
  starchart watch --write --policies ./policies

  # Expose metrics while watching
  starchart watch --metrics-addr :9464`,
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
				Bool("write", write).
				Strs("policies", s.Policies).
				Msg("Starting watch")

			if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
				if err := tel.StartMetricsServer(ctx); err != nil {
					return err
				}
			}

			engine, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}

			b := &builder{
				out:      cmd.OutOrStdout(),
				settings: s,
				path:     path,
				engine:   engine,
				write:    write,
				version:  cmd.Root().Version,
			}

			if len(s.Policies) > 0 {
				loader := policy.NewLoader(log.Logger)
				policies, err := loader.LoadFromPaths(ctx, s.Policies)
				if err != nil {
					return err
				}
				if err := engine.ReplacePolicies(ctx, policies); err != nil {
					return err
				}

				err = loader.Watch(ctx, s.Policies, func(policies []policy.Policy) error {
					if err := engine.ReplacePolicies(ctx, policies); err != nil {
						return err
					}
					b.rebuild(ctx, "policies changed")
					return nil
				})
				if err != nil {
					return err
				}
				defer loader.StopWatching()
			}

			b.rebuild(ctx, "initial build")

			return watchManifest(ctx, path, debounce, func() {
				b.rebuild(ctx, "manifest changed")
			})
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "write the artifact after each successful rebuild")
	cmd.Flags().DurationVar(&debounce, "debounce", 300*time.Millisecond, "quiet period before rebuilding")
	cmd.Flags().StringP("out", "o", "", "artifact output path (default dist/starchart.json)")
	cmd.Flags().StringSlice("policies", nil, "policy files or directories to load and watch")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().Int("max-depth", 0, "maximum sidebar group nesting depth")
	cmd.Flags().Duration("starlark-timeout", 0, "time limit for Starlark manifests")
	cmd.Flags().Bool("collapse-overlaps", false, "drop include globs covered by a broader pattern")

	return cmd
}

// builder runs one compile and lint cycle at a time.
type builder struct {
	mu sync.Mutex

	out      io.Writer
	settings *Settings
	path     string
	engine   *policy.Engine
	write    bool
	version  string
}

func (b *builder) rebuild(ctx context.Context, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.Debug().Str("reason", reason).Str("manifest", b.path).Msg("Rebuilding")

	site, src, err := compileManifest(ctx, b.settings, b.path)
	if err != nil {
		fmt.Fprintf(b.out, "✗ %s\n", describeError(err))
		return
	}

	report, err := lintSite(ctx, b.engine, site, src.Path, nil)
	if err != nil {
		log.Error().Err(err).Msg("Lint failed")
	} else if len(report.Violations) > 0 || len(report.Warnings) > 0 {
		_ = printReport(b.out, report)
	}

	if b.write {
		if err := bundle.WriteArtifact(b.settings.Out, bundle.NewEnvelope(src.Path, b.version, site)); err != nil {
			fmt.Fprintf(b.out, "✗ %v\n", err)
			return
		}
	}

	fmt.Fprintf(b.out, "✓ %s: %d routes, %d asset patterns (%s)\n",
		src.Path, site.Len(), len(site.Assets().Patterns), reason)
}

// watchManifest calls rebuild after changes to the manifest settle, until
// ctx is cancelled. CUE package directories are watched as a whole. It
// returns only once no rebuild is running.
func watchManifest(ctx context.Context, path string, debounce time.Duration, rebuild func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	dir := filepath.Dir(target)
	isDir := false
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		dir = target
		isDir = true
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	relevant := func(name string) bool {
		name = filepath.Clean(name)
		if isDir {
			_, err := config.DetectFormat(name)
			return err == nil && !strings.HasPrefix(filepath.Base(name), ".")
		}
		return name == target
	}

	// pending counts scheduled and running rebuilds so none outlives the
	// watch.
	var (
		timer   *time.Timer
		pending sync.WaitGroup
	)
	fire := func() {
		defer pending.Done()
		rebuild()
	}
	defer func() {
		if timer != nil && timer.Stop() {
			pending.Done()
		}
		pending.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Stopping watch")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Change detected")

			if timer != nil && timer.Stop() {
				pending.Done()
			}
			pending.Add(1)
			timer = time.AfterFunc(debounce, fire)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}
