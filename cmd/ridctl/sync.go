package main

import (
	"context"
	"fmt"

	"github.com/BearBump/RIDBox/config"
	"github.com/BearBump/RIDBox/internal/integrations/faa"
	"github.com/BearBump/RIDBox/internal/models"
	"github.com/BearBump/RIDBox/internal/services/syncer"
	"github.com/BearBump/RIDBox/internal/storage"
	"github.com/spf13/cobra"
)

type syncOptions struct {
	*rootOptions
	Since         string
	Days          int
	SinceLastSync bool
	Count         int
	All           bool
	Limit         int
	DryRun        bool
}

func newSyncCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &syncOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pull recently updated FAA records into the local database",
		Long: `Check FAA Remote ID records updated after a boundary and store what
changed. Remote calls are throttled to one every 5 seconds.

Without a boundary flag the sync starts from the last successful sync, or
checks the 50 most recent records on a database that was never synced.

Example:
  ridctl sync --days 7 --dry-run
  ridctl sync --since 2024-06-01
  ridctl sync --count 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "records updated after this date or RFC3339 time")
	cmd.Flags().IntVar(&opts.Days, "days", 0, "records updated in the last N days")
	cmd.Flags().BoolVar(&opts.SinceLastSync, "since-last-sync", false, "records updated after the last successful sync (default)")
	cmd.Flags().IntVar(&opts.Count, "count", 0, "the N most recently updated records")
	cmd.Flags().BoolVar(&opts.All, "all", false, "every record (slow)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "stop after this many records")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report what would change without writing")
	cmd.MarkFlagsMutuallyExclusive("since", "days", "since-last-sync", "count", "all")

	return cmd
}

func (o *syncOptions) boundary(cmd *cobra.Command) (syncer.Boundary, error) {
	var b syncer.Boundary
	flags := cmd.Flags()
	switch {
	case flags.Changed("since"):
		t, err := faa.ParseTimestamp(o.Since)
		if err != nil {
			return b, fmt.Errorf("%w: --since: %w", models.ErrInvalidArgument, err)
		}
		b = syncer.Since(t)
	case flags.Changed("days"):
		b = syncer.DaysBack(o.Days)
	case flags.Changed("count"):
		b = syncer.Count(o.Count)
	case flags.Changed("all"):
		b = syncer.All()
	default:
		b = syncer.SinceLastSync()
	}
	if o.Limit != 0 {
		b = b.WithLimit(o.Limit)
	}
	return b, b.Validate()
}

func runSync(cmd *cobra.Command, opts *syncOptions) error {
	b, err := opts.boundary(cmd)
	if err != nil {
		return classify("invalid sync boundary", err)
	}
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := storage.Open(ctx, cfg, storage.MustExist)
	if err != nil {
		return classify("open database", err)
	}
	defer st.Close()

	rep, err := newEngine(opts.rootOptions, cfg, st).Sync(ctx, b, opts.DryRun)
	return finishRun(cmd, opts.rootOptions, "sync", rep, err)
}

func newBuildCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Create or refill the local database from every FAA record",
		Long: `List every FAA Remote ID record and store all of their serials. The
database is created when missing. Remote calls are throttled to one every
5 seconds, so a full build takes hours.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := storage.Open(ctx, cfg, storage.OpenOrCreate)
			if err != nil {
				return classify("open database", err)
			}
			defer st.Close()

			rep, err := newEngine(rootOpts, cfg, st).Build(ctx)
			return finishRun(cmd, rootOpts, "build", rep, err)
		},
	}
}

func newEngine(opts *rootOptions, cfg *config.Config, st syncer.Store) *syncer.Engine {
	return syncer.New(opts.newSource(cfg), st).
		WithClock(opts.clock).
		WithPageSize(cfg.FAA.PageSize)
}

// finishRun prints the report, partial ones included, and turns a run error
// into an exit code.
func finishRun(cmd *cobra.Command, opts *rootOptions, kind string, rep models.SyncReport, runErr error) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		if err := writeJSON(out, rep); err != nil {
			return err
		}
	} else {
		status := "completed"
		if runErr != nil {
			status = "failed"
		}
		writeReportText(out, kind+" "+status, rep)
	}
	if runErr == nil {
		return nil
	}
	if ctxErr := cmd.Context().Err(); ctxErr == context.Canceled {
		return WrapExitError(ExitFailure, kind+" interrupted", runErr)
	}
	return classify(kind+" failed", runErr)
}
