package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathForBranch(t *testing.T) {
	t.Parallel()
	repo := t.TempDir()
	p, err := PathForBranch(repo, "", "feature/tests")
	if err != nil {
		t.Fatalf("PathForBranch: %v", err)
	}
	wantBase := filepath.Join(repo, ".utgen", "worktrees")
	if !strings.HasPrefix(p, wantBase) {
		t.Errorf("path %q should be under %q", p, wantBase)
	}
	if !strings.HasPrefix(filepath.Base(p), "utgen-feature-tests-") {
		t.Errorf("path base %q", filepath.Base(p))
	}
	custom := filepath.Join(repo, "wt")
	p, err = PathForBranch(repo, custom, "b")
	if err != nil {
		t.Fatalf("PathForBranch: %v", err)
	}
	if !strings.HasPrefix(p, custom) {
		t.Errorf("path %q should be under %q", p, custom)
	}
}

func TestAddBranchWorktree_newAndExistingBranch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := initRepo(t)

	ok, err := BranchExists(ctx, repo, "gen")
	if err != nil || ok {
		t.Fatalf("BranchExists(gen) = %v, %v; want false, nil", ok, err)
	}
	p := filepath.Join(t.TempDir(), "wt1")
	if err := AddBranchWorktree(ctx, repo, p, "gen", "HEAD~1"); err != nil {
		t.Fatalf("AddBranchWorktree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p, "src", "math.ts")); err != nil {
		t.Errorf("math.ts should exist in worktree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p, "README.md")); err == nil {
		t.Error("README.md should not exist at HEAD~1")
	}
	if ok, _ := BranchExists(ctx, repo, "gen"); !ok {
		t.Error("branch gen should exist after AddBranchWorktree")
	}

	got, err := BranchWorktree(ctx, repo, "gen")
	if err != nil {
		t.Fatalf("BranchWorktree: %v", err)
	}
	gotReal, _ := filepath.EvalSymlinks(got)
	wantReal, _ := filepath.EvalSymlinks(p)
	if gotReal != wantReal {
		t.Errorf("BranchWorktree = %q, want %q", got, p)
	}

	if err := AddBranchWorktree(ctx, repo, p, "gen", "HEAD"); !errors.Is(err, ErrWorktreeExists) {
		t.Errorf("second add at same path: want ErrWorktreeExists, got %v", err)
	}

	if err := Remove(ctx, repo, p); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, err = BranchWorktree(ctx, repo, "gen")
	if err != nil || got != "" {
		t.Errorf("after Remove BranchWorktree = %q, %v; want empty", got, err)
	}

	p2 := filepath.Join(t.TempDir(), "wt2")
	if err := AddBranchWorktree(ctx, repo, p2, "gen", "HEAD"); err != nil {
		t.Fatalf("AddBranchWorktree existing branch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p2, "README.md")); err == nil {
		t.Error("existing branch must keep its own tip, not startRef")
	}
	_ = Remove(ctx, repo, p2)
}

func TestParseWorktreeList(t *testing.T) {
	t.Parallel()
	input := "worktree /a/main\nHEAD abc123\nbranch refs/heads/main\n\nworktree /a/utgen-x\nHEAD abc123\ndetached\n\n"
	list := parseWorktreeList(input)
	if len(list) != 2 {
		t.Fatalf("expected 2 worktrees, got %d", len(list))
	}
	if list[0].Path != "/a/main" || list[0].HEAD != "abc123" || list[0].Branch != "main" {
		t.Errorf("first: %+v", list[0])
	}
	if list[1].Path != "/a/utgen-x" || list[1].Branch != "" {
		t.Errorf("second: %+v", list[1])
	}
}
