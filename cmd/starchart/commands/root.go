package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/starchart/starchart/pkg/telemetry"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Settings are the CLI options resolved from flags, STARCHART_* variables
// and the optional .starchart.yaml file, in that order of precedence.
type Settings struct {
	Manifest        string        `mapstructure:"manifest"`
	Out             string        `mapstructure:"out"`
	MaxDepth        int           `mapstructure:"max_depth"`
	Policies        []string      `mapstructure:"policies"`
	LogLevel        string        `mapstructure:"log_level"`
	MetricsAddr     string        `mapstructure:"metrics_addr"`
	StarlarkTimeout time.Duration `mapstructure:"starlark_timeout"`

	// CollapseOverlaps drops include globs covered by a broader one.
	CollapseOverlaps bool `mapstructure:"collapse_overlaps"`
}

// settingFlags maps settings keys to the flag names that override them.
var settingFlags = map[string]string{
	"manifest":          "manifest",
	"out":               "out",
	"max_depth":         "max-depth",
	"policies":          "policies",
	"log_level":         "log-level",
	"metrics_addr":      "metrics-addr",
	"starlark_timeout":  "starlark-timeout",
	"collapse_overlaps": "collapse-overlaps",
}

type settingsContextKey struct{}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	var tel *telemetry.Telemetry

	rootCmd := &cobra.Command{
		Use:   "starchart",
		Short: "Starchart - documentation site manifest compiler",
		Long: `Starchart compiles a documentation-site manifest into a validated site model:
an ordered list of sidebar routes and a deduplicated asset plan.

Features:
  - Manifests in YAML, JSON, TOML, CUE or Starlark
  - Fail-fast validation naming the offending node
  - Rego lint policies with hot reload
  - Asset plan resolution against the project tree
  - Prometheus metrics and OpenTelemetry traces`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			level := s.LogLevel
			if verbose {
				level = "debug"
			}
			if level != "" {
				zerolog.SetGlobalLevel(telemetry.ParseLevel(level))
			}

			cfg := telemetry.DefaultConfig()
			cfg.ServiceVersion = version
			if level != "" {
				cfg.Logging.Level = level
			}
			cfg.Metrics.ListenAddress = s.MetricsAddr

			tel, err = telemetry.NewTelemetry(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialise telemetry: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), settingsContextKey{}, s)
			cmd.SetContext(tel.WithContext(ctx))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if tel == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tel.Shutdown(ctx)
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path (default is ./.starchart.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newCompileCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newLintCommand())
	rootCmd.AddCommand(newAssetsCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newInitCommand())

	return rootCmd
}

// loadSettings layers defaults, the settings file, the environment and the
// flags of cmd into Settings.
func loadSettings(cmd *cobra.Command) (*Settings, error) {
	v := viper.New()

	v.SetDefault("manifest", "")
	v.SetDefault("out", "dist/starchart.json")
	v.SetDefault("max_depth", 0)
	v.SetDefault("policies", []string{})
	v.SetDefault("log_level", "")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("starlark_timeout", 5*time.Second)
	v.SetDefault("collapse_overlaps", false)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(".starchart")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("STARCHART")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Using settings file")
	}

	for key, name := range settingFlags {
		if f := lookupFlag(cmd, name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}
	return &s, nil
}

func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	return cmd.InheritedFlags().Lookup(name)
}

// settingsFrom returns the settings resolved for the running command.
func settingsFrom(ctx context.Context) *Settings {
	if s, ok := ctx.Value(settingsContextKey{}).(*Settings); ok {
		return s
	}
	return &Settings{}
}
