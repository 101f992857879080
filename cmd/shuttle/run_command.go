package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"shuttle/internal/convert"
	"shuttle/internal/history"
	"shuttle/internal/logging"
	"shuttle/internal/publish"
	"shuttle/internal/queue"
	"shuttle/internal/run"
	"shuttle/internal/services/gemini"
	"shuttle/internal/validate"
	"shuttle/internal/workspace"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	var items int

	cmd := &cobra.Command{
		Use:   "run [n]",
		Short: "Process queued files through convert, validate, and publish",
		Long: "Processes the first n queued files (or the whole queue when n is omitted).\n" +
			"Each file gets a fresh isolation branch; failed items stay in the queue.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			limit := items
			if len(args) == 1 {
				parsed, err := strconv.Atoi(args[0])
				if err != nil || parsed < 1 {
					return fmt.Errorf("item count must be a positive integer, got %q", args[0])
				}
				limit = parsed
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, err := logging.New(logging.Options{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Writer: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}

			controller, err := workspace.Open(cfg.Paths.RepoDir, cfg.Convert.BranchPrefix)
			if err != nil {
				return err
			}

			client := gemini.NewClient(gemini.Config{
				APIKey:         cfg.LLM.APIKey,
				BaseURL:        cfg.LLM.BaseURL,
				Model:          cfg.LLM.Model,
				TimeoutSeconds: cfg.LLM.TimeoutSeconds,
			})
			converter := convert.New(client,
				convert.WithMaxAttempts(cfg.Convert.MaxAttempts),
				convert.WithTempSuffix(cfg.Convert.TempSuffix),
				convert.WithLogger(logger),
			)

			validator := validate.NewRunner(cfg.Paths.RepoDir, cfg.Paths.LogDir, cfg.Validation.Command)

			var publisher run.Publisher
			if cfg.Publish.Enabled {
				publisher = publish.New(controller, cfg.Paths.RepoDir, publish.Config{
					UploadCommand: cfg.Publish.UploadCommand,
					Reviewers:     cfg.Publish.Reviewers,
					TopicTag:      cfg.Publish.TopicTag,
					TrackingID:    cfg.Publish.TrackingID,
				})
			}

			journal, err := history.Open(cfg.Paths.DataDir)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer journal.Close()

			orchestrator, err := run.New(run.Options{
				Queue:     queue.NewStore(cfg.Paths.QueueFile),
				Workspace: controller,
				Converter: converter,
				Validator: validator,
				Publisher: publisher,
				Journal:   journal,
				Logger:    logger,
				LockPath:  filepath.Join(cfg.Paths.DataDir, "shuttle.lock"),
			})
			if err != nil {
				return err
			}

			summary, err := orchestrator.Run(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(summary.Results) == 0 {
				fmt.Fprintln(out, "Queue is empty.")
				return nil
			}
			rows := make([][]string, 0, len(summary.Results))
			for _, result := range summary.Results {
				detail := result.LogPath
				if result.Err != nil {
					detail = result.Err.Error()
				}
				rows = append(rows, []string{result.Item, result.Branch, result.Outcome, detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Item", "Branch", "Outcome", "Detail"}, rows))
			fmt.Fprintf(out, "%d succeeded, %d failed", summary.Succeeded(), summary.Failed())
			if summary.Interrupted {
				fmt.Fprint(out, " (interrupted)")
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().IntVarP(&items, "items", "n", 0, "Maximum queue items to process (0 = all)")
	return cmd
}
