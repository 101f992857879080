// Package workspace manages the single shared repository checkout.
//
// All branch, reset, and staging operations go through go-git so the pipeline
// never depends on a git binary being on PATH. The checkout is a shared
// mutable resource: callers must fully resolve one item before touching the
// next, and every item starts from a pristine tree.
package workspace

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"shuttle/internal/services"
)

// Baseline is the branch and commit active before a run starts. It is the
// rollback target for every item in that run.
type Baseline struct {
	Branch string
	Commit string
}

// Controller performs repository operations for the orchestrator.
type Controller struct {
	repo   *git.Repository
	root   string
	prefix string
}

// Open attaches a controller to an existing repository checkout.
func Open(root, branchPrefix string) (*Controller, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "workspace", "open", fmt.Sprintf("no repository at %s", root), err)
	}
	return &Controller{repo: repo, root: root, prefix: branchPrefix}, nil
}

// Root returns the checkout directory.
func (c *Controller) Root() string {
	return c.root
}

// CaptureBaseline reads the current branch name and commit. It is called once
// per run, before the item loop; isolation branches are never merged back into
// the baseline branch, which is what keeps one captured baseline valid for
// every item's rollback.
func (c *Controller) CaptureBaseline() (Baseline, error) {
	head, err := c.repo.Head()
	if err != nil {
		return Baseline{}, fmt.Errorf("workspace baseline: read HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return Baseline{}, fmt.Errorf("workspace baseline: HEAD is detached at %s", head.Hash())
	}
	return Baseline{Branch: head.Name().Short(), Commit: head.Hash().String()}, nil
}

// Reset returns the checkout to a pristine state: a hard reset to the current
// commit followed by removal of untracked files and directories. Runs before
// every item's branch allocation so artifacts from a failed attempt cannot
// leak into the next item's conversion or diff.
func (c *Controller) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("workspace reset: worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("workspace reset: hard reset: %w", err)
	}
	if err := wt.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("workspace reset: clean untracked: %w", err)
	}
	return nil
}

// AllocateBranch creates and checks out the next isolation branch from the
// current HEAD and returns its name. Allocated branches are never deleted,
// regardless of how the item ends.
func (c *Controller) AllocateBranch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	names, err := c.BranchNames()
	if err != nil {
		return "", err
	}
	name := NextBranchName(c.prefix, names)

	wt, err := c.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("workspace branch: worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
	})
	if err != nil {
		return "", fmt.Errorf("workspace branch: create %s: %w", name, err)
	}
	return name, nil
}

// BranchNames lists all local branch names.
func (c *Controller) BranchNames() ([]string, error) {
	iter, err := c.repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("workspace branch: list: %w", err)
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("workspace branch: iterate: %w", err)
	}
	return names, nil
}

// Checkout switches the checkout to an existing branch, discarding any
// remaining working tree state. All processing paths either committed their
// changes or are abandoning them when this runs.
func (c *Controller) Checkout(ctx context.Context, branch string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("workspace checkout: worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Force:  true,
	})
	if err != nil {
		return fmt.Errorf("workspace checkout %s: %w", branch, err)
	}
	return nil
}

// ResetHard moves the current branch to the given commit, discarding every
// change after it.
func (c *Controller) ResetHard(ctx context.Context, commit string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("workspace reset: worktree: %w", err)
	}
	err = wt.Reset(&git.ResetOptions{
		Commit: plumbing.NewHash(commit),
		Mode:   git.HardReset,
	})
	if err != nil {
		return fmt.Errorf("workspace reset to %s: %w", commit, err)
	}
	return nil
}

// HasChanges reports whether the given repository-relative path differs from
// HEAD in the working tree or in the staged index. A file staged but not yet
// committed still counts as changed.
func (c *Controller) HasChanges(relPath string) (bool, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("workspace status: worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("workspace status: %w", err)
	}
	fileStatus, ok := status[relPath]
	if !ok {
		return false, nil
	}
	return fileStatus.Worktree != git.Unmodified || fileStatus.Staging != git.Unmodified, nil
}

// Stage adds exactly the given repository-relative path to the index.
func (c *Controller) Stage(relPath string) error {
	wt, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("workspace stage: worktree: %w", err)
	}
	if _, err := wt.Add(relPath); err != nil {
		return fmt.Errorf("workspace stage %s: %w", relPath, err)
	}
	return nil
}

// Commit records the staged changes and returns the new commit hash. Author
// identity comes from the repository's git configuration.
func (c *Controller) Commit(message string) (string, error) {
	wt, err := c.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("workspace commit: worktree: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{})
	if err != nil {
		return "", fmt.Errorf("workspace commit: %w", err)
	}
	return hash.String(), nil
}

// CommitsOnBranchSince counts commits reachable from the branch tip that are
// not the given base commit. Used by tests and diagnostics to confirm a failed
// validation left no commit behind.
func (c *Controller) CommitsOnBranchSince(branch, baseCommit string) (int, error) {
	ref, err := c.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return 0, fmt.Errorf("workspace history: resolve %s: %w", branch, err)
	}
	count := 0
	hash := ref.Hash()
	for hash.String() != baseCommit {
		commit, err := c.repo.CommitObject(hash)
		if err != nil {
			return 0, fmt.Errorf("workspace history: read %s: %w", hash, err)
		}
		count++
		if commit.NumParents() == 0 {
			break
		}
		parent, err := commit.Parent(0)
		if err != nil {
			return 0, fmt.Errorf("workspace history: parent of %s: %w", hash, err)
		}
		hash = parent.Hash
	}
	return count, nil
}
