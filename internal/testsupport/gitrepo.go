// Package testsupport provides shared test fixtures.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// InitRepo creates a repository in a fresh temp directory, commits the given
// files, and returns the checkout path. The commit author is seeded into the
// repository config so later commits work without global git configuration.
func InitRepo(t testing.TB, files map[string]string) (string, *git.Repository) {
	t.Helper()

	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}

	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("read repo config: %v", err)
	}
	cfg.User.Name = "Shuttle Test"
	cfg.User.Email = "shuttle@example.invalid"
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("write repo config: %v", err)
	}

	for rel, content := range files {
		WriteFile(t, root, rel, content)
	}
	CommitAll(t, repo, "initial commit")
	return root, repo
}

// WriteFile writes content to a repository-relative path, creating parent
// directories as needed.
func WriteFile(t testing.TB, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// CommitAll stages every change and commits it, returning the commit hash.
func CommitAll(t testing.TB, repo *git.Repository, message string) string {
	t.Helper()

	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		t.Fatalf("stage all: %v", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Shuttle Test",
			Email: "shuttle@example.invalid",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash.String()
}
