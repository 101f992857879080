package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shuttle/internal/history"
)

func newHistoryCommand(cmdCtx *commandContext) *cobra.Command {
	var limit int
	var runID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show outcomes from past runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := history.Open(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			defer store.Close()

			var records []history.Record
			if runID != "" {
				records, err = store.ListRun(cmd.Context(), runID)
			} else {
				records, err = store.Recent(cmd.Context(), limit)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No history recorded yet.")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				detail := rec.Detail
				if detail == "" {
					detail = rec.LogPath
				}
				rows = append(rows, []string{
					rec.CreatedAt.Local().Format(time.DateTime),
					rec.Item,
					rec.Branch,
					rec.Outcome,
					detail,
				})
			}
			fmt.Fprintln(out, renderTable([]string{"When", "Item", "Branch", "Outcome", "Detail"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to show")
	cmd.Flags().StringVar(&runID, "run", "", "Show every entry for one run id")
	return cmd
}
