package run

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"shuttle/internal/convert"
	"shuttle/internal/history"
	"shuttle/internal/validate"
	"shuttle/internal/workspace"
)

type fakeQueue struct {
	items     []string
	removed   []string
	removeErr error
}

func (q *fakeQueue) Load() ([]string, error) {
	return append([]string{}, q.items...), nil
}

func (q *fakeQueue) Remove(item string) error {
	if q.removeErr != nil {
		return q.removeErr
	}
	q.removed = append(q.removed, item)
	return nil
}

type fakeWorkspace struct {
	root        string
	resets      int
	allocations int
	checkouts   []string
	hardResets  []string
	hasChanges  bool
	resetErr    error
	allocateErr error
}

func (w *fakeWorkspace) Root() string { return w.root }

func (w *fakeWorkspace) CaptureBaseline() (workspace.Baseline, error) {
	return workspace.Baseline{Branch: "main", Commit: "base0"}, nil
}

func (w *fakeWorkspace) Reset(context.Context) error {
	w.resets++
	return w.resetErr
}

func (w *fakeWorkspace) AllocateBranch(context.Context) (string, error) {
	if w.allocateErr != nil {
		return "", w.allocateErr
	}
	w.allocations++
	return fmt.Sprintf("automate%d", w.allocations), nil
}

func (w *fakeWorkspace) Checkout(_ context.Context, branch string) error {
	w.checkouts = append(w.checkouts, branch)
	return nil
}

func (w *fakeWorkspace) ResetHard(_ context.Context, commit string) error {
	w.hardResets = append(w.hardResets, commit)
	return nil
}

func (w *fakeWorkspace) HasChanges(string) (bool, error) { return w.hasChanges, nil }

type fakeConverter struct {
	outcome convert.Outcome
	err     error
	calls   int
}

func (c *fakeConverter) Convert(context.Context, string) (convert.Outcome, error) {
	c.calls++
	return c.outcome, c.err
}

type fakeValidator struct {
	result validate.Result
	err    error
}

func (v *fakeValidator) Run(context.Context, string) (validate.Result, error) {
	return v.result, v.err
}

type fakePublisher struct {
	published []string
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, relPath string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.published = append(p.published, relPath)
	return "commit1", nil
}

type memJournal struct {
	records []history.Record
}

func (j *memJournal) Append(_ context.Context, rec history.Record) error {
	j.records = append(j.records, rec)
	return nil
}

func newTestOrchestrator(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	orch, err := New(opts)
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch
}

func TestRunConvertedItemIsPublishedAndRemoved(t *testing.T) {
	queue := &fakeQueue{items: []string{"webaudio/a.html"}}
	ws := &fakeWorkspace{root: "/repo", hasChanges: true}
	publisher := &fakePublisher{}
	journal := &memJournal{}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: &fakeConverter{outcome: convert.OutcomeModified},
		Validator: &fakeValidator{result: validate.Result{Passed: true, LogPath: "/logs/a.log"}},
		Publisher: publisher,
		Journal:   journal,
		RunID:     "run-1",
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(summary.Results) != 1 || summary.Results[0].Outcome != OutcomeConverted {
		t.Fatalf("unexpected results: %+v", summary.Results)
	}
	if len(publisher.published) != 1 || publisher.published[0] != "webaudio/a.html" {
		t.Fatalf("published %v", publisher.published)
	}
	if len(queue.removed) != 1 || queue.removed[0] != "webaudio/a.html" {
		t.Fatalf("queue removals %v", queue.removed)
	}
	if ws.resets != 1 || ws.allocations != 1 {
		t.Fatalf("resets=%d allocations=%d", ws.resets, ws.allocations)
	}
	if len(ws.checkouts) != 1 || ws.checkouts[0] != "main" {
		t.Fatalf("checkouts %v", ws.checkouts)
	}
	if len(ws.hardResets) != 0 {
		t.Fatalf("unexpected hard resets %v", ws.hardResets)
	}
	if len(journal.records) != 1 || journal.records[0].Outcome != OutcomeConverted {
		t.Fatalf("journal %+v", journal.records)
	}
	if journal.records[0].RunID != "run-1" {
		t.Fatalf("journal run id %q", journal.records[0].RunID)
	}
}

func TestRunNoChangeSkipsValidationAndPublish(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html"}}
	ws := &fakeWorkspace{root: "/repo"}
	publisher := &fakePublisher{}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: &fakeConverter{outcome: convert.OutcomeNoChange},
		Validator: &fakeValidator{result: validate.Result{Passed: false}},
		Publisher: publisher,
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Results[0].Outcome != OutcomeNoChange {
		t.Fatalf("outcome %q", summary.Results[0].Outcome)
	}
	if len(publisher.published) != 0 {
		t.Fatal("publish should not run for no-change")
	}
	if len(queue.removed) != 1 {
		t.Fatalf("queue removals %v", queue.removed)
	}
}

func TestRunValidationFailureRollsBackAndRetains(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html"}}
	ws := &fakeWorkspace{root: "/repo"}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: &fakeConverter{outcome: convert.OutcomeModified},
		Validator: &fakeValidator{result: validate.Result{Passed: false, ExitCode: 1, LogPath: "/logs/a.log"}},
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	result := summary.Results[0]
	if result.Outcome != OutcomeValidationFailed {
		t.Fatalf("outcome %q", result.Outcome)
	}
	if result.LogPath != "/logs/a.log" {
		t.Fatalf("log path %q", result.LogPath)
	}
	if len(queue.removed) != 0 {
		t.Fatal("failed item must stay queued")
	}
	if len(ws.checkouts) != 1 || ws.checkouts[0] != "main" {
		t.Fatalf("checkouts %v", ws.checkouts)
	}
	if len(ws.hardResets) != 1 || ws.hardResets[0] != "base0" {
		t.Fatalf("hard resets %v", ws.hardResets)
	}
}

func TestRunValidatedButUnchangedIsRemovedWithoutPublish(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html"}}
	ws := &fakeWorkspace{root: "/repo", hasChanges: false}
	publisher := &fakePublisher{}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: &fakeConverter{outcome: convert.OutcomeModified},
		Validator: &fakeValidator{result: validate.Result{Passed: true}},
		Publisher: publisher,
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Results[0].Outcome != OutcomeNoChange {
		t.Fatalf("outcome %q", summary.Results[0].Outcome)
	}
	if len(publisher.published) != 0 {
		t.Fatal("publish should not run without changes")
	}
	if len(queue.removed) != 1 {
		t.Fatalf("queue removals %v", queue.removed)
	}
}

func TestRunPublishFailureRollsBackAndRetains(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html"}}
	ws := &fakeWorkspace{root: "/repo", hasChanges: true}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: &fakeConverter{outcome: convert.OutcomeModified},
		Validator: &fakeValidator{result: validate.Result{Passed: true}},
		Publisher: &fakePublisher{err: errors.New("upload rejected")},
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Results[0].Outcome != OutcomePublishFailed {
		t.Fatalf("outcome %q", summary.Results[0].Outcome)
	}
	if len(queue.removed) != 0 {
		t.Fatal("failed item must stay queued")
	}
	if len(ws.hardResets) != 1 {
		t.Fatalf("hard resets %v", ws.hardResets)
	}
}

func TestRunInfrastructureErrorContinuesToNextItem(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html", "b.html"}}
	ws := &fakeWorkspace{root: "/repo"}
	converter := &fakeConverter{err: errors.New("disk full")}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: converter,
		Validator: &fakeValidator{},
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("expected both items attempted, got %d", len(summary.Results))
	}
	for _, result := range summary.Results {
		if result.Outcome != OutcomeError {
			t.Fatalf("outcome %q", result.Outcome)
		}
	}
	if converter.calls != 2 {
		t.Fatalf("converter calls %d", converter.calls)
	}
	if summary.Failed() != 2 || summary.Succeeded() != 0 {
		t.Fatalf("failed=%d succeeded=%d", summary.Failed(), summary.Succeeded())
	}
}

func TestRunInterruptStopsAfterRollback(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html", "b.html"}}
	ws := &fakeWorkspace{root: "/repo"}
	ctx, cancel := context.WithCancel(context.Background())
	converter := &fakeConverter{err: context.Canceled}
	cancel()
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: converter,
		Validator: &fakeValidator{},
	})

	summary, err := orch.Run(ctx, 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !summary.Interrupted {
		t.Fatal("summary should be marked interrupted")
	}
	if len(summary.Results) != 1 || summary.Results[0].Outcome != OutcomeInterrupted {
		t.Fatalf("results %+v", summary.Results)
	}
	// Rollback still ran despite the canceled context.
	if len(ws.checkouts) != 1 || len(ws.hardResets) != 1 {
		t.Fatalf("checkouts=%v hardResets=%v", ws.checkouts, ws.hardResets)
	}
}

func TestRunInterruptDuringPublishStopsRun(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html", "b.html"}}
	ws := &fakeWorkspace{root: "/repo", hasChanges: true}
	converter := &fakeConverter{outcome: convert.OutcomeModified}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: converter,
		Validator: &fakeValidator{result: validate.Result{Passed: true}},
		Publisher: &fakePublisher{err: context.Canceled},
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !summary.Interrupted {
		t.Fatal("summary should be marked interrupted")
	}
	if len(summary.Results) != 1 || summary.Results[0].Outcome != OutcomeInterrupted {
		t.Fatalf("results %+v", summary.Results)
	}
	// The second item was never started.
	if converter.calls != 1 || ws.resets != 1 {
		t.Fatalf("converter calls=%d resets=%d", converter.calls, ws.resets)
	}
	if len(queue.removed) != 0 {
		t.Fatal("interrupted item must stay queued")
	}
	if len(ws.hardResets) != 1 {
		t.Fatalf("hard resets %v", ws.hardResets)
	}
}

func TestRunHonorsItemLimit(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html", "b.html", "c.html"}}
	ws := &fakeWorkspace{root: "/repo"}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: &fakeConverter{outcome: convert.OutcomeNoChange},
		Validator: &fakeValidator{},
	})

	summary, err := orch.Run(context.Background(), 2)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(summary.Results) != 2 {
		t.Fatalf("expected 2 items, got %d", len(summary.Results))
	}
	if len(queue.removed) != 2 {
		t.Fatalf("queue removals %v", queue.removed)
	}
}

func TestRunQueueRemoveFailureDoesNotFailItem(t *testing.T) {
	queue := &fakeQueue{items: []string{"a.html"}, removeErr: errors.New("read-only fs")}
	ws := &fakeWorkspace{root: "/repo"}
	orch := newTestOrchestrator(t, Options{
		Queue:     queue,
		Workspace: ws,
		Converter: &fakeConverter{outcome: convert.OutcomeNoChange},
		Validator: &fakeValidator{},
	})

	summary, err := orch.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if summary.Results[0].Outcome != OutcomeNoChange {
		t.Fatalf("outcome %q", summary.Results[0].Outcome)
	}
}

func TestRunRejectsConcurrentLockHolder(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "shuttle.lock")
	holder := flock.New(lockPath)
	held, err := holder.TryLock()
	if err != nil || !held {
		t.Fatalf("seed lock: held=%v err=%v", held, err)
	}
	defer func() { _ = holder.Unlock() }()

	orch := newTestOrchestrator(t, Options{
		Queue:     &fakeQueue{items: []string{"a.html"}},
		Workspace: &fakeWorkspace{root: "/repo"},
		Converter: &fakeConverter{outcome: convert.OutcomeNoChange},
		Validator: &fakeValidator{},
		LockPath:  lockPath,
	})

	if _, err := orch.Run(context.Background(), 0); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestResolveRejectsPathOutsideWorkspace(t *testing.T) {
	orch := newTestOrchestrator(t, Options{
		Queue:     &fakeQueue{},
		Workspace: &fakeWorkspace{root: "/repo"},
		Converter: &fakeConverter{},
		Validator: &fakeValidator{},
	})
	if _, _, err := orch.resolve("/elsewhere/file.html"); err == nil {
		t.Fatal("expected error for path outside workspace")
	}

	abs, rel, err := orch.resolve("/repo/webaudio/t.html")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if abs != "/repo/webaudio/t.html" || rel != "webaudio/t.html" {
		t.Fatalf("abs=%q rel=%q", abs, rel)
	}
}
