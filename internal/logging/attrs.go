package logging

import "log/slog"

type Attr = slog.Attr

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Common field names shared between the orchestrator and the CLI so log
// filtering stays stable across the codebase.
const (
	FieldItem    = "item"
	FieldBranch  = "branch"
	FieldAttempt = "attempt"
)
