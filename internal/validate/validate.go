// Package validate runs the external validation command against a converted
// file and preserves the full command output as a per-item log.
package validate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"shuttle/internal/services"
)

const stderrSeparator = "\n=== STDERR ===\n"

// Result reports one validation run.
type Result struct {
	Passed   bool
	ExitCode int
	LogPath  string
}

// Runner executes the configured validation command inside the workspace.
type Runner struct {
	repoDir       string
	logDir        string
	command       []string
	commandRunner func(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// NewRunner constructs a validation runner. command is the argv prefix; the
// item's repository-relative path is appended as the final argument.
func NewRunner(repoDir, logDir string, command []string) *Runner {
	return &Runner{
		repoDir: repoDir,
		logDir:  logDir,
		command: command,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Runner) WithCommandRunner(runner func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, int, error)) {
	r.commandRunner = runner
}

// Run executes the validation command for relPath and writes the captured
// output to the log directory. The log is written whether the command passes
// or fails; only failure to launch the command skips it.
func (r *Runner) Run(ctx context.Context, relPath string) (Result, error) {
	var result Result
	if len(r.command) == 0 {
		return result, services.Wrap(services.ErrConfiguration, "validate", "run", "validation command not configured", nil)
	}

	stdout, stderr, exitCode, err := r.execute(ctx, relPath)
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "validate", "run", strings.Join(r.command, " "), err)
	}

	logPath, err := r.writeLog(relPath, stdout, stderr)
	if err != nil {
		return result, services.Wrap(services.ErrTransient, "validate", "write log", relPath, err)
	}

	result.Passed = exitCode == 0
	result.ExitCode = exitCode
	result.LogPath = logPath
	return result, nil
}

func (r *Runner) execute(ctx context.Context, relPath string) (stdout, stderr []byte, exitCode int, err error) {
	args := append(append([]string{}, r.command[1:]...), relPath)
	if r.commandRunner != nil {
		return r.commandRunner(ctx, r.repoDir, r.command[0], args...)
	}

	cmd := exec.CommandContext(ctx, r.command[0], args...) //nolint:gosec
	cmd.Dir = r.repoDir
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	runErr := cmd.Run()
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return outBuf.Bytes(), errBuf.Bytes(), exitErr.ExitCode(), nil
		}
		return nil, nil, -1, runErr
	}
	return outBuf.Bytes(), errBuf.Bytes(), 0, nil
}

// LogFileName maps a repository-relative path to a flat log file name by
// replacing both path separator styles with underscores.
func LogFileName(relPath string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_")
	return replacer.Replace(relPath) + ".log"
}

func (r *Runner) writeLog(relPath string, stdout, stderr []byte) (string, error) {
	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure log dir: %w", err)
	}
	logPath := filepath.Join(r.logDir, LogFileName(relPath))

	var content bytes.Buffer
	content.Write(stdout)
	content.WriteString(stderrSeparator)
	content.Write(stderr)

	if err := os.WriteFile(logPath, content.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write log: %w", err)
	}
	return logPath, nil
}
