package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/integrations/faa/faasource"
	"github.com/BearBump/RIDBox/internal/services/syncer"
	"github.com/spf13/cobra"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigPath string
	DBPath     string
	Format     string // "text" | "json"
	Verbose    bool

	// Overridable for tests.
	newSource func(cfg *config.Config) faa.Source
	clock     syncer.Clock
}

var validFormats = []string{"text", "json"}

func newRootCommand(opts *rootOptions) *cobra.Command {
	if opts.newSource == nil {
		opts.newSource = faasource.FromConfig
	}
	if opts.clock == nil {
		opts.clock = syncer.SystemClock{}
	}

	cmd := &cobra.Command{
		Use:           "ridctl",
		Short:         "ridctl - FAA Remote ID serial lookup database",
		Long:          "Build, sync and query a local database of drone serial numbers declared to the FAA under Remote ID.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, validFormats))
			}
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config (defaults to $configPath)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to SQLite database, overrides config")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging to stderr")

	cmd.AddCommand(newLookupCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newBuildCommand(opts))
	cmd.AddCommand(newStatsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads --config, then $configPath, then falls back to defaults.
// --db always wins and selects the SQLite backend.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv("configPath")
	}

	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.LoadConfig(path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load config", err)
		}
	}
	if o.DBPath != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = o.DBPath
	}
	return cfg, nil
}
