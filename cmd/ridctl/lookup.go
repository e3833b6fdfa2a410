package main

import (
	"fmt"

	"github.com/BearBump/RIDBox/internal/services/resolver"
	"github.com/BearBump/RIDBox/internal/storage"
	"github.com/spf13/cobra"
)

type lookupOptions struct {
	*rootOptions
	API     bool
	AddToDB bool
}

func newLookupCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &lookupOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "lookup <serial>",
		Short: "Look up a drone serial number",
		Long: `Look up a serial number in the local database: exact match first, then
the tightest serial range containing it. With --api a local miss is checked
against the live FAA API; --add-to-db stores such a hit locally.

A serial that is not found is not an error; the command exits 0.

Example:
  ridctl lookup 2146BF3300000000
  ridctl lookup --api --add-to-db 1581F5BK000000000003`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLookup(cmd, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.API, "api", false, "fall back to the live FAA API on a local miss")
	cmd.Flags().BoolVar(&opts.AddToDB, "add-to-db", false, "store a live FAA hit in the local database (requires --api)")
	return cmd
}

func runLookup(cmd *cobra.Command, opts *lookupOptions, serial string) error {
	if opts.AddToDB && !opts.API {
		return NewExitError(ExitCommandError, "--add-to-db requires --api")
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

	var remote resolver.RemoteLookup
	if opts.API {
		remote = opts.newSource(cfg)
	}
	res, err := resolver.New(st, remote).Resolve(ctx, serial, resolver.Options{
		AllowRemoteFallback: opts.API,
		CacheRemoteResult:   opts.AddToDB,
	})
	if err != nil {
		return classify(fmt.Sprintf("lookup %s", serial), err)
	}

	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	writeLookupText(cmd.OutOrStdout(), res)
	return nil
}
