package main

import (
	"github.com/BearBump/RIDBox/internal/storage"
	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database metadata and row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			st, err := storage.Open(cmd.Context(), cfg, storage.MustExist)
			if err != nil {
				return classify("open database", err)
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return classify("read stats", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			writeStatsText(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}
