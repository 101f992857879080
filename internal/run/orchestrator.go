// Package run drives queue items through the conversion pipeline.
//
// Items are processed strictly sequentially because the repository checkout is
// a single shared mutable resource: every item is fully resolved, and the
// workspace returned to the run baseline, before the next item starts.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"shuttle/internal/convert"
	"shuttle/internal/history"
	"shuttle/internal/logging"
	"shuttle/internal/validate"
	"shuttle/internal/workspace"
)

// Item outcomes recorded in results and the history journal.
const (
	OutcomeConverted        = "converted"
	OutcomeNoChange         = "no-change"
	OutcomeValidationFailed = "validation-failed"
	OutcomePublishFailed    = "publish-failed"
	OutcomeError            = "error"
	OutcomeInterrupted      = "interrupted"
)

// Converter produces the converted form of one file.
type Converter interface {
	Convert(ctx context.Context, path string) (convert.Outcome, error)
}

// Validator runs the external validation command for one relative path.
type Validator interface {
	Run(ctx context.Context, relPath string) (validate.Result, error)
}

// Publisher commits and uploads one validated change.
type Publisher interface {
	Publish(ctx context.Context, relPath string) (string, error)
}

// Workspace is the repository control surface the orchestrator drives.
type Workspace interface {
	Root() string
	CaptureBaseline() (workspace.Baseline, error)
	Reset(ctx context.Context) error
	AllocateBranch(ctx context.Context) (string, error)
	Checkout(ctx context.Context, branch string) error
	ResetHard(ctx context.Context, commit string) error
	HasChanges(relPath string) (bool, error)
}

// Queue is the pending-item store.
type Queue interface {
	Load() ([]string, error)
	Remove(item string) error
}

// Journal records per-item outcomes. Journal failures never affect the run.
type Journal interface {
	Append(ctx context.Context, rec history.Record) error
}

// ItemResult is the terminal state one queue item reached.
type ItemResult struct {
	Item    string
	Branch  string
	Outcome string
	LogPath string
	Err     error
}

// Summary reports one full run.
type Summary struct {
	RunID       string
	Results     []ItemResult
	Interrupted bool
}

// Succeeded counts items that reached a terminal success state.
func (s Summary) Succeeded() int {
	count := 0
	for _, r := range s.Results {
		if r.Outcome == OutcomeConverted || r.Outcome == OutcomeNoChange {
			count++
		}
	}
	return count
}

// Failed counts items left in the queue for another run.
func (s Summary) Failed() int {
	return len(s.Results) - s.Succeeded()
}

// Options wires the orchestrator's collaborators.
type Options struct {
	Queue     Queue
	Workspace Workspace
	Converter Converter
	Validator Validator
	// Publisher may be nil when publishing is disabled; validated changes
	// then count as converted without a commit.
	Publisher Publisher
	// Journal may be nil; outcomes are then only logged.
	Journal Journal
	Logger  *slog.Logger
	// LockPath guards the shared checkout against concurrent runs. Empty
	// disables locking.
	LockPath string
	// RunID defaults to a fresh UUID.
	RunID string
}

// Orchestrator executes the per-item state machine over the queue.
type Orchestrator struct {
	queue     Queue
	workspace Workspace
	converter Converter
	validator Validator
	publisher Publisher
	journal   Journal
	logger    *slog.Logger
	lockPath  string
	runID     string
}

// New constructs an orchestrator. Queue, Workspace, Converter, and Validator
// are required.
func New(opts Options) (*Orchestrator, error) {
	if opts.Queue == nil || opts.Workspace == nil || opts.Converter == nil || opts.Validator == nil {
		return nil, errors.New("run: queue, workspace, converter, and validator are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	runID := strings.TrimSpace(opts.RunID)
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Orchestrator{
		queue:     opts.Queue,
		workspace: opts.Workspace,
		converter: opts.Converter,
		validator: opts.Validator,
		publisher: opts.Publisher,
		journal:   opts.Journal,
		logger:    logger,
		lockPath:  opts.LockPath,
		runID:     runID,
	}, nil
}

// Run processes up to limit items from the front of the queue (limit <= 0
// means the whole queue). Cancellation rolls back the in-flight item and
// stops; remaining items stay queued.
func (o *Orchestrator) Run(ctx context.Context, limit int) (Summary, error) {
	summary := Summary{RunID: o.runID}

	if o.lockPath != "" {
		lock := flock.New(o.lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return summary, fmt.Errorf("run: acquire lock %s: %w", o.lockPath, err)
		}
		if !ok {
			return summary, fmt.Errorf("run: another run holds %s", o.lockPath)
		}
		defer func() { _ = lock.Unlock() }()
	}

	items, err := o.queue.Load()
	if err != nil {
		return summary, fmt.Errorf("run: load queue: %w", err)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if len(items) == 0 {
		o.logger.Info("queue empty, nothing to do")
		return summary, nil
	}

	baseline, err := o.workspace.CaptureBaseline()
	if err != nil {
		return summary, fmt.Errorf("run: capture baseline: %w", err)
	}
	o.logger.Info("run started",
		logging.String("run_id", o.runID),
		logging.String("baseline_branch", baseline.Branch),
		logging.Int("items", len(items)))

	for _, item := range items {
		result := o.processItem(ctx, baseline, item)
		summary.Results = append(summary.Results, result)
		o.record(ctx, result)

		if result.Outcome == OutcomeInterrupted {
			summary.Interrupted = true
			o.logger.Warn("run interrupted", logging.String(logging.FieldItem, item))
			break
		}
	}

	o.logger.Info("run finished",
		logging.String("run_id", o.runID),
		logging.Int("succeeded", summary.Succeeded()),
		logging.Int("failed", summary.Failed()))
	return summary, nil
}

// processItem executes the state machine for one item. Every failure path
// funnels through the same rollback transition; the workspace always ends on
// the baseline branch.
func (o *Orchestrator) processItem(ctx context.Context, baseline workspace.Baseline, item string) ItemResult {
	result := ItemResult{Item: item}

	absPath, relPath, err := o.resolve(item)
	if err != nil {
		result.Outcome = OutcomeError
		result.Err = err
		return result
	}
	logger := o.logger.With(logging.String(logging.FieldItem, relPath))
	logger.Info("processing item")

	if err := o.workspace.Reset(ctx); err != nil {
		return o.fail(ctx, baseline, logger, result, err)
	}

	branch, err := o.workspace.AllocateBranch(ctx)
	if err != nil {
		return o.fail(ctx, baseline, logger, result, err)
	}
	result.Branch = branch
	logger = logger.With(logging.String(logging.FieldBranch, branch))

	outcome, err := o.converter.Convert(ctx, absPath)
	if err != nil {
		return o.fail(ctx, baseline, logger, result, err)
	}

	if outcome == convert.OutcomeNoChange {
		logger.Info("conversion produced no change")
		return o.succeed(ctx, baseline, logger, result, OutcomeNoChange)
	}

	validation, err := o.validator.Run(ctx, relPath)
	if err != nil {
		return o.fail(ctx, baseline, logger, result, err)
	}
	result.LogPath = validation.LogPath
	if !validation.Passed {
		logger.Warn("validation failed",
			logging.Int("exit_code", validation.ExitCode),
			logging.String("log", validation.LogPath))
		result.Outcome = OutcomeValidationFailed
		o.rollback(ctx, baseline, logger)
		return result
	}
	logger.Info("validation passed", logging.String("log", validation.LogPath))

	changed, err := o.workspace.HasChanges(relPath)
	if err != nil {
		return o.fail(ctx, baseline, logger, result, err)
	}
	if !changed {
		logger.Info("no staged or working tree changes after validation")
		return o.succeed(ctx, baseline, logger, result, OutcomeNoChange)
	}

	if o.publisher != nil {
		commit, err := o.publisher.Publish(ctx, relPath)
		if err != nil {
			if isInterrupt(ctx, err) {
				return o.fail(ctx, baseline, logger, result, err)
			}
			logger.Error("publish failed", logging.Error(err))
			result.Outcome = OutcomePublishFailed
			result.Err = err
			o.rollback(ctx, baseline, logger)
			return result
		}
		logger.Info("published", logging.String("commit", commit))
	}
	return o.succeed(ctx, baseline, logger, result, OutcomeConverted)
}

// succeed finishes a terminal success: back to the baseline branch, then the
// item leaves the queue.
func (o *Orchestrator) succeed(ctx context.Context, baseline workspace.Baseline, logger *slog.Logger, result ItemResult, outcome string) ItemResult {
	if err := o.workspace.Checkout(context.WithoutCancel(ctx), baseline.Branch); err != nil {
		return o.fail(ctx, baseline, logger, result, err)
	}
	if err := o.queue.Remove(result.Item); err != nil {
		// The item already reached its terminal state; a queue rewrite
		// failure only means it may be reprocessed next run.
		logger.Error("queue remove failed", logging.Error(err))
	}
	result.Outcome = outcome
	logger.Info("item done", logging.String("outcome", outcome))
	return result
}

// isInterrupt reports whether err or the surrounding context signals a
// run-level cancellation rather than an item-level fault.
func isInterrupt(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil
}

// fail classifies an in-pipeline error, rolls back, and retains the item.
func (o *Orchestrator) fail(ctx context.Context, baseline workspace.Baseline, logger *slog.Logger, result ItemResult, err error) ItemResult {
	if isInterrupt(ctx, err) {
		result.Outcome = OutcomeInterrupted
	} else {
		result.Outcome = OutcomeError
	}
	result.Err = err
	logger.Error("item failed", logging.String("outcome", result.Outcome), logging.Error(err))
	o.rollback(ctx, baseline, logger)
	return result
}

// rollback is the single recovery transition: baseline branch checked out and
// hard reset to the baseline commit. It runs even when the surrounding
// context is already canceled.
func (o *Orchestrator) rollback(ctx context.Context, baseline workspace.Baseline, logger *slog.Logger) {
	detached := context.WithoutCancel(ctx)
	if err := o.workspace.Checkout(detached, baseline.Branch); err != nil {
		logger.Error("rollback checkout failed", logging.Error(err))
		return
	}
	if err := o.workspace.ResetHard(detached, baseline.Commit); err != nil {
		logger.Error("rollback reset failed", logging.Error(err))
	}
}

// resolve maps a queue entry to the absolute path used for conversion and the
// repository-relative path used everywhere else.
func (o *Orchestrator) resolve(item string) (absPath, relPath string, err error) {
	item = strings.TrimSpace(item)
	root := o.workspace.Root()
	if filepath.IsAbs(item) {
		rel, relErr := filepath.Rel(root, item)
		if relErr != nil || strings.HasPrefix(rel, "..") {
			return "", "", fmt.Errorf("run: %s is outside the workspace %s", item, root)
		}
		return item, filepath.ToSlash(rel), nil
	}
	return filepath.Join(root, filepath.FromSlash(item)), filepath.ToSlash(item), nil
}

func (o *Orchestrator) record(ctx context.Context, result ItemResult) {
	if o.journal == nil {
		return
	}
	rec := history.Record{
		RunID:   o.runID,
		Item:    result.Item,
		Branch:  result.Branch,
		Outcome: result.Outcome,
		LogPath: result.LogPath,
	}
	if result.Err != nil {
		rec.Detail = result.Err.Error()
	}
	if err := o.journal.Append(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Error("history append failed", logging.Error(err))
	}
}
