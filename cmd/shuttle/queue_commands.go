package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shuttle/internal/queue"
)

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and edit the pending file queue",
	}

	queueCmd.AddCommand(newQueueListCommand(cmdCtx))
	queueCmd.AddCommand(newQueueAddCommand(cmdCtx))
	queueCmd.AddCommand(newQueueRemoveCommand(cmdCtx))

	return queueCmd
}

func newQueueListCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show queued files in processing order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			items, err := queue.NewStore(cfg.Paths.QueueFile).Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Queue is empty.")
				return nil
			}
			rows := make([][]string, 0, len(items))
			for i, item := range items {
				rows = append(rows, []string{strconv.Itoa(i + 1), item})
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Path"}, rows))
			return nil
		},
	}
}

func newQueueAddCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path> [path...]",
		Short: "Append files to the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store := queue.NewStore(cfg.Paths.QueueFile)
			for _, item := range args {
				if err := store.Append(item); err != nil {
					return fmt.Errorf("add %q: %w", item, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d file(s) to %s\n", len(args), store.Path())
			return nil
		},
	}
}

func newQueueRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path> [path...]",
		Short: "Remove files from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			store := queue.NewStore(cfg.Paths.QueueFile)
			for _, item := range args {
				if err := store.Remove(item); err != nil {
					return fmt.Errorf("remove %q: %w", item, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d file(s) from %s\n", len(args), store.Path())
			return nil
		},
	}
}
