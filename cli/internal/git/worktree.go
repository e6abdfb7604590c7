package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrWorktreeExists indicates a worktree already exists at the target path.
var ErrWorktreeExists = errors.New("worktree already exists")

// WorktreeInfo holds parsed output from git worktree list.
type WorktreeInfo struct {
	Path   string // absolute path to worktree
	HEAD   string // SHA at HEAD
	Branch string // branch name if not detached; empty if detached
}

// PathForBranch derives a fresh worktree path for branch. If worktreeRoot is
// empty, uses repoRoot/.utgen/worktrees. The name carries a timestamp so two
// writes to the same branch never collide.
func PathForBranch(repoRoot, worktreeRoot, branch string) (string, error) {
	base := worktreeRoot
	if base == "" {
		base = filepath.Join(repoRoot, ".utgen", "worktrees")
	}
	name := strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(branch)
	return filepath.Abs(filepath.Join(base, fmt.Sprintf("utgen-%s-%d", name, time.Now().UnixNano())))
}

// BranchExists reports whether refs/heads/branch exists.
func BranchExists(ctx context.Context, repoRoot, branch string) (bool, error) {
	err := command(ctx, repoRoot, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch).Run()
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("git rev-parse: %w", err)
}

// AddBranchWorktree checks out branch in a new worktree at path. When the
// branch does not exist it is created from startRef.
func AddBranchWorktree(ctx context.Context, repoRoot, path, branch, startRef string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s: %w", path, ErrWorktreeExists)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create worktree parent dir: %w", err)
	}
	exists, err := BranchExists(ctx, repoRoot, branch)
	if err != nil {
		return err
	}
	args := []string{"worktree", "add", path, branch}
	if !exists {
		args = []string{"worktree", "add", "-b", branch, path, startRef}
	}
	out, runErr := command(ctx, repoRoot, args...).CombinedOutput()
	if runErr != nil {
		msg := strings.TrimSpace(string(out))
		if isWorktreeExistsError(msg, path) {
			return fmt.Errorf("%s: %w", path, ErrWorktreeExists)
		}
		return fmt.Errorf("git worktree add: %w: %s", runErr, msg)
	}
	return nil
}

// List returns all worktrees for the repo.
func List(ctx context.Context, repoRoot string) ([]WorktreeInfo, error) {
	out, err := output(ctx, repoRoot, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreeList(out), nil
}

// BranchWorktree returns the path of the worktree that has branch checked
// out, or "" when none does.
func BranchWorktree(ctx context.Context, repoRoot, branch string) (string, error) {
	list, err := List(ctx, repoRoot)
	if err != nil {
		return "", err
	}
	for _, w := range list {
		if w.Branch == branch {
			return w.Path, nil
		}
	}
	return "", nil
}

func parseWorktreeList(s string) []WorktreeInfo {
	var list []WorktreeInfo
	var cur WorktreeInfo
	for _, line := range strings.Split(s, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			if cur.Path != "" {
				list = append(list, cur)
			}
			cur = WorktreeInfo{Path: strings.TrimPrefix(line, "worktree ")}
		case strings.HasPrefix(line, "HEAD "):
			cur.HEAD = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(line, "branch refs/heads/")
		}
	}
	if cur.Path != "" {
		list = append(list, cur)
	}
	return list
}

// Remove force-removes the worktree at path. The checkout only ever holds
// files this tool wrote.
func Remove(ctx context.Context, repoRoot, path string) error {
	out, err := command(ctx, repoRoot, "worktree", "remove", "--force", path).CombinedOutput()
	if err != nil {
		return fmt.Errorf("git worktree remove: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func isWorktreeExistsError(msg, path string) bool {
	lc := strings.ToLower(msg)
	return strings.Contains(lc, "already checked out") ||
		strings.Contains(lc, "already exists") ||
		(strings.Contains(msg, path) && strings.Contains(lc, "fatal:"))
}
