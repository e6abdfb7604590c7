// Package git wraps the git CLI: repository discovery, worktree lifecycle,
// and Host, the git-backed source host the suite reads sources from and
// commits generated tests to.
package git

import (
	"context"
	"path/filepath"
	"strings"

	"utgen/cli/internal/erruser"
)

// RepoRoot returns the absolute path of the git repository root containing dir.
func RepoRoot(ctx context.Context, dir string) (string, error) {
	out, err := output(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", erruser.New("This directory is not inside a Git repository.", err)
	}
	return filepath.Abs(strings.TrimSpace(out))
}

// IsClean reports whether tracked files at repoRoot have no uncommitted
// changes. Untracked files (the state and scratch dirs among them) are ignored.
func IsClean(ctx context.Context, repoRoot string) (bool, error) {
	out, err := output(ctx, repoRoot, "status", "--porcelain", "--untracked-files=no")
	if err != nil {
		return false, erruser.New("Could not check working tree status.", err)
	}
	return strings.TrimSpace(out) == "", nil
}

// RevParse resolves ref to a full commit SHA.
func RevParse(ctx context.Context, repoRoot, ref string) (string, error) {
	out, err := output(ctx, repoRoot, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", erruser.New("Invalid ref or commit.", err)
	}
	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the checked-out branch name, or "HEAD" when detached.
func CurrentBranch(ctx context.Context, repoRoot string) (string, error) {
	out, err := output(ctx, repoRoot, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", erruser.New("Could not read the current branch.", err)
	}
	return strings.TrimSpace(out), nil
}
