// Package git wraps the git CLI for the healing loop's version-control
// needs: branch creation under a strict naming grammar, commit-all with
// an enforced message prefix, and pushes that refuse protected
// branches.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Operations provides git operations for the orchestrator. The
// interface exists so tests can substitute a fake.
type Operations interface {
	// CreateBranch creates and checks out a new branch. The name must
	// satisfy the branch grammar; an already-existing branch is an
	// error, not a checkout.
	CreateBranch(ctx context.Context, repoPath, name string) error

	// CommitAll stages everything and commits with the given message.
	// Returns false with no error when there is nothing to commit.
	CommitAll(ctx context.Context, repoPath, message string) (bool, error)

	// Push pushes the branch to origin. Protected branch names are
	// always refused.
	Push(ctx context.Context, repoPath, branch string) error

	// Clone acquires a repository into dest, wiping any stale checkout.
	Clone(ctx context.Context, url, dest string) error
}

// Git implements Operations using the git CLI.
type Git struct {
	gitPath string
	token   string // optional GitHub token for authenticated clones
}

// NewGit creates a new Git instance, verifying that git is available.
func NewGit(ctx context.Context) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, gitPath, "version")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git command failed: %w", err)
	}

	return &Git{gitPath: gitPath, token: os.Getenv("GITHUB_TOKEN")}, nil
}

// Version returns the installed git version string, e.g. "2.39.2".
func (g *Git) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, g.gitPath, "version").Output()
	if err != nil {
		return "", fmt.Errorf("git version failed: %w", err)
	}
	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 3 {
		return "", fmt.Errorf("unexpected git version output %q", string(out))
	}
	return fields[2], nil
}

// CreateBranch enforces the branch grammar and protected-branch rules,
// then creates and checks out the branch. A branch that already exists
// locally or on origin yields ErrBranchExists.
func (g *Git) CreateBranch(ctx context.Context, repoPath, name string) error {
	if err := ValidateBranchName(name); err != nil {
		return err
	}
	if err := EnsureNotProtected(name); err != nil {
		return err
	}

	exists, err := g.branchExists(ctx, repoPath, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "checkout", "-b", name)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout -b %s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (g *Git) branchExists(ctx context.Context, repoPath, name string) (bool, error) {
	out, err := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "branch", "--list", name).Output()
	if err != nil {
		return false, fmt.Errorf("git branch --list failed: %w", err)
	}
	if strings.TrimSpace(string(out)) != "" {
		return true, nil
	}

	// Remote refs too: a branch on origin blocks reuse of the name.
	out, err = exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "branch", "-r", "--list", "origin/"+name).Output()
	if err != nil {
		// Repositories without remotes are fine.
		return false, nil
	}
	return strings.TrimSpace(string(out)) != "", nil
}

// CommitAll stages all changes and commits. Returns (false, nil) when
// the working tree is clean.
func (g *Git) CommitAll(ctx context.Context, repoPath, message string) (bool, error) {
	if err := ValidateCommitMessage(message); err != nil {
		return false, err
	}

	add := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "add", "-A")
	if out, err := add.CombinedOutput(); err != nil {
		return false, fmt.Errorf("git add failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	status, err := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "status", "--porcelain").Output()
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	if strings.TrimSpace(string(status)) == "" {
		return false, nil
	}

	commit := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "commit", "-m", message)
	if out, err := commit.CombinedOutput(); err != nil {
		return false, fmt.Errorf("git commit failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return true, nil
}

// Push pushes the branch to origin, refusing protected branch names.
func (g *Git) Push(ctx context.Context, repoPath, branch string) error {
	if err := EnsureNotProtected(branch); err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, g.gitPath, "-C", repoPath, "push", "origin", branch)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git push origin %s failed: %w: %s", branch, err, strings.TrimSpace(string(out)))
	}
	return nil
}
