package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shuttle/internal/services"
)

type scriptedGenerator struct {
	responses []string
	errs      []error
	calls     int
}

func (g *scriptedGenerator) Generate(_ context.Context, _ string) (string, error) {
	idx := g.calls
	g.calls++
	if idx < len(g.errs) && g.errs[idx] != nil {
		return "", g.errs[idx]
	}
	if idx < len(g.responses) {
		return g.responses[idx], nil
	}
	return "", errors.New("no scripted response")
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestConvertReplacesFileOnNewContent(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "legacy-test.html", "old content\n")

	generator := &scriptedGenerator{responses: []string{"converted content\n"}}
	converter := New(generator, WithSleeper(func(time.Duration) {}))

	outcome, err := converter.Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if outcome != OutcomeModified {
		t.Fatalf("expected modified outcome, got %s", outcome)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "converted content\n" {
		t.Fatalf("unexpected file content %q", data)
	}
	if _, err := os.Stat(path + ".converted.tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("temp sibling left behind")
	}
}

func TestConvertLeavesFileWhenContentMatches(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "same-test.html", "unchanged content\n")

	// Trailing whitespace differences alone do not count as a change.
	generator := &scriptedGenerator{responses: []string{"\nunchanged content\n\n"}}
	converter := New(generator)

	outcome, err := converter.Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if outcome != OutcomeNoChange {
		t.Fatalf("expected no-change outcome, got %s", outcome)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "unchanged content\n" {
		t.Fatalf("file should be untouched, got %q", data)
	}
}

func TestConvertRetriesThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "retry-test.html", "old\n")

	generator := &scriptedGenerator{
		errs:      []error{errors.New("boom"), errors.New("boom again"), nil},
		responses: []string{"", "", "new\n"},
	}
	var delays []time.Duration
	converter := New(generator, WithSleeper(func(d time.Duration) { delays = append(delays, d) }))

	outcome, err := converter.Convert(context.Background(), path)
	if err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	if outcome != OutcomeModified {
		t.Fatalf("expected modified outcome, got %s", outcome)
	}
	if generator.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", generator.calls)
	}

	want := []time.Duration{
		1100 * time.Millisecond, // 1.5^0 + 0.1
		1700 * time.Millisecond, // 1.5^1 + 0.2
	}
	if len(delays) != len(want) {
		t.Fatalf("expected %d sleeps, got %v", len(want), delays)
	}
	for i, d := range delays {
		diff := d - want[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Millisecond {
			t.Fatalf("sleep %d: got %v, want ~%v", i, d, want[i])
		}
	}
}

func TestConvertExhaustsAttempts(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "fail-test.html", "old\n")

	generator := &scriptedGenerator{
		errs: []error{errors.New("e1"), errors.New("e2"), errors.New("e3"), errors.New("e4")},
	}
	var sleeps int
	converter := New(generator, WithSleeper(func(time.Duration) { sleeps++ }))

	_, err := converter.Convert(context.Background(), path)
	if !errors.Is(err, services.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if generator.calls != 4 {
		t.Fatalf("expected 4 attempts, got %d", generator.calls)
	}
	// No sleep after the final attempt.
	if sleeps != 3 {
		t.Fatalf("expected 3 sleeps, got %d", sleeps)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "old\n" {
		t.Fatalf("file should be untouched after exhaustion, got %q", data)
	}
}

func TestConvertMissingFile(t *testing.T) {
	converter := New(&scriptedGenerator{})
	_, err := converter.Convert(context.Background(), filepath.Join(t.TempDir(), "absent.html"))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConvertStopsOnCanceledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "cancel-test.html", "old\n")

	ctx, cancel := context.WithCancel(context.Background())
	generator := &scriptedGenerator{errs: []error{errors.New("boom")}}
	converter := New(generator, WithSleeper(func(time.Duration) { cancel() }))

	_, err := converter.Convert(ctx, path)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if generator.calls != 1 {
		t.Fatalf("expected 1 attempt before cancellation, got %d", generator.calls)
	}
}

func TestBackoffDelaySchedule(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1100 * time.Millisecond},
		{2, 1700 * time.Millisecond},
		{3, 2550 * time.Millisecond},
	}
	for _, tc := range cases {
		got := backoffDelay(tc.attempt)
		diff := got - tc.want
		if diff < 0 {
			diff = -diff
		}
		if diff > time.Millisecond {
			t.Fatalf("attempt %d: got %v, want ~%v", tc.attempt, got, tc.want)
		}
	}
}
