// Package publish stages, commits, and uploads a validated conversion.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"shuttle/internal/services"
)

// Workspace is the slice of repository control the publisher needs.
type Workspace interface {
	Stage(relPath string) error
	Commit(message string) (string, error)
}

// Config carries the commit and upload settings.
type Config struct {
	// UploadCommand is the full argv executed after committing, for example
	// ["git", "cl", "upload", "--send-mail", "--force"]. Empty disables the
	// upload step.
	UploadCommand []string
	// Reviewers, when set, is appended to the upload command as
	// "-r a@x,b@y".
	Reviewers []string
	// TopicTag becomes the bracketed prefix of the commit title.
	TopicTag string
	// TrackingID is referenced in the commit body's Bug line when set.
	TrackingID string
}

// Publisher commits a converted file on its isolation branch and hands the
// change to the external upload tool.
type Publisher struct {
	workspace     Workspace
	repoDir       string
	cfg           Config
	commandRunner func(ctx context.Context, dir, name string, args ...string) error
}

// New constructs a publisher operating in repoDir.
func New(workspace Workspace, repoDir string, cfg Config) *Publisher {
	return &Publisher{
		workspace: workspace,
		repoDir:   repoDir,
		cfg:       cfg,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (p *Publisher) WithCommandRunner(runner func(ctx context.Context, dir, name string, args ...string) error) {
	p.commandRunner = runner
}

// CommitMessage builds the commit message for one converted file. filename is
// the base name of the converted file.
func CommitMessage(topicTag, filename, trackingID string) string {
	var b strings.Builder
	if topicTag = strings.TrimSpace(topicTag); topicTag != "" {
		fmt.Fprintf(&b, "[%s] ", topicTag)
	}
	fmt.Fprintf(&b, "Migrate %s\n\n", filename)
	fmt.Fprintf(&b, "Convert %s from the legacy test runner to testharness.js.\n", filename)
	if trackingID = strings.TrimSpace(trackingID); trackingID != "" {
		fmt.Fprintf(&b, "\nBug: %s\n", trackingID)
	}
	return b.String()
}

// Publish stages exactly relPath, commits it, and runs the upload command.
// Any failure is terminal for the item; nothing here is retried.
func (p *Publisher) Publish(ctx context.Context, relPath string) (string, error) {
	if err := p.workspace.Stage(relPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "publish", "stage", relPath, err)
	}

	message := CommitMessage(p.cfg.TopicTag, path.Base(filepath.ToSlash(relPath)), p.cfg.TrackingID)
	commit, err := p.workspace.Commit(message)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "publish", "commit", relPath, err)
	}

	if err := p.upload(ctx); err != nil {
		return commit, err
	}
	return commit, nil
}

func (p *Publisher) upload(ctx context.Context) error {
	command := p.uploadArgv()
	if len(command) == 0 {
		return nil
	}
	if p.commandRunner != nil {
		if err := p.commandRunner(ctx, p.repoDir, command[0], command[1:]...); err != nil {
			return services.Wrap(services.ErrExternalTool, "publish", "upload", strings.Join(command, " "), err)
		}
		return nil
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...) //nolint:gosec
	cmd.Dir = p.repoDir
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(output.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, detail)
		}
		return services.Wrap(services.ErrExternalTool, "publish", "upload", strings.Join(command, " "), err)
	}
	return nil
}

func (p *Publisher) uploadArgv() []string {
	if len(p.cfg.UploadCommand) == 0 {
		return nil
	}
	argv := append([]string{}, p.cfg.UploadCommand...)
	if len(p.cfg.Reviewers) > 0 {
		argv = append(argv, "-r", strings.Join(p.cfg.Reviewers, ","))
	}
	return argv
}
