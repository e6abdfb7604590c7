package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestHost_ReadFile(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	h := &Host{RepoRoot: repo}
	got, err := h.ReadFile(context.Background(), "HEAD", "src/math.ts")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(got, "function add") {
		t.Errorf("ReadFile = %q", got)
	}
	if _, err := h.ReadFile(context.Background(), "HEAD~1", "README.md"); err == nil {
		t.Error("ReadFile of file absent at ref: expected error")
	}
}

func TestHost_ListFiles(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	h := &Host{RepoRoot: repo}
	tests := []struct {
		name string
		ref  string
		dir  string
		want []string
	}{
		{"recursive", "HEAD", "src", []string{"src/math.ts", "src/util/str.ts"}},
		{"trailing_slash", "HEAD", "src/", []string{"src/math.ts", "src/util/str.ts"}},
		{"whole_tree", "HEAD", "", []string{"README.md", "src/math.ts", "src/util/str.ts"}},
		{"older_ref", "HEAD~1", ".", []string{"src/math.ts"}},
		{"missing_dir", "HEAD", "lib", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := h.ListFiles(context.Background(), tt.ref, tt.dir)
			if err != nil {
				t.Fatalf("ListFiles: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListFiles(%q, %q) = %v, want %v", tt.ref, tt.dir, got, tt.want)
			}
		})
	}
	if _, err := h.ListFiles(context.Background(), "no-such-ref", "src"); err == nil {
		t.Error("ListFiles(bad ref): expected error")
	}
}

func TestHost_ChangedFiles(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	writeFile(t, repo, "src/math.ts", "export function add(a: number, b: number) { return b + a; }\n")
	run(t, repo, "git", "rm", "-q", "README.md")
	run(t, repo, "git", "add", ".")
	run(t, repo, "git", "commit", "-m", "c3")
	h := &Host{RepoRoot: repo}
	got, err := h.ChangedFiles(context.Background(), "HEAD~1", "HEAD")
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	want := []string{"src/math.ts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ChangedFiles = %v, want %v (deleted files excluded)", got, want)
	}
}

func TestHost_Markers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := initRepo(t)
	h := &Host{RepoRoot: repo}
	ok, err := h.HasMarker(ctx, "auto-unit-test-baseline")
	if err != nil || ok {
		t.Fatalf("HasMarker before create = %v, %v", ok, err)
	}
	if err := h.CreateMarker(ctx, "auto-unit-test-baseline", "HEAD~1"); err != nil {
		t.Fatalf("CreateMarker: %v", err)
	}
	ok, err = h.HasMarker(ctx, "auto-unit-test-baseline")
	if err != nil || !ok {
		t.Fatalf("HasMarker after create = %v, %v", ok, err)
	}
	want := runOut(t, repo, "git", "rev-parse", "HEAD~1")
	if got := runOut(t, repo, "git", "rev-parse", "auto-unit-test-baseline^{commit}"); got != want {
		t.Errorf("marker at %s, want %s", got, want)
	}
	if err := h.CreateMarker(ctx, "auto-unit-test-baseline", "HEAD"); err == nil {
		t.Error("CreateMarker for existing tag: expected error")
	}
}

func TestHost_WriteFiles_newBranchTemporaryWorktree(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := initRepo(t)
	wtRoot := filepath.Join(t.TempDir(), "wt")
	h := &Host{RepoRoot: repo, WorktreeRoot: wtRoot}

	files := map[string]string{"test/math.test.ts": "test('add', () => {});\n"}
	if err := h.WriteFiles(ctx, "utgen/tests", files, "Add generated unit tests"); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if got := runOut(t, repo, "git", "show", "utgen/tests:test/math.test.ts"); got != "test('add', () => {});" {
		t.Errorf("committed content = %q", got)
	}
	if got := runOut(t, repo, "git", "log", "-1", "--format=%s", "utgen/tests"); got != "Add generated unit tests" {
		t.Errorf("commit message = %q", got)
	}
	entries, _ := os.ReadDir(wtRoot)
	if len(entries) != 0 {
		t.Errorf("temporary worktree not removed: %v", entries)
	}
	if _, err := os.Stat(filepath.Join(repo, "test", "math.test.ts")); err == nil {
		t.Error("main worktree must not be touched")
	}

	before := runOut(t, repo, "git", "rev-parse", "utgen/tests")
	if err := h.WriteFiles(ctx, "utgen/tests", files, "again"); err != nil {
		t.Fatalf("WriteFiles unchanged: %v", err)
	}
	if after := runOut(t, repo, "git", "rev-parse", "utgen/tests"); after != before {
		t.Error("unchanged content must not create a commit")
	}
}

func TestHost_WriteFiles_checkedOutBranch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := initRepo(t)
	branch := runOut(t, repo, "git", "rev-parse", "--abbrev-ref", "HEAD")
	writeFile(t, repo, "unrelated.txt", "staged but not ours\n")
	run(t, repo, "git", "add", "unrelated.txt")

	h := &Host{RepoRoot: repo}
	if err := h.WriteFiles(ctx, branch, map[string]string{"test/str.test.ts": "x\n"}, "tests"); err != nil {
		t.Fatalf("WriteFiles: %v", err)
	}
	if got := runOut(t, repo, "git", "show", "--name-only", "--format=", "HEAD"); got != "test/str.test.ts" {
		t.Errorf("commit touched %q, want only test/str.test.ts", got)
	}
	if got := runOut(t, repo, "git", "diff", "--cached", "--name-only"); got != "unrelated.txt" {
		t.Errorf("user's staged change should remain staged, got %q", got)
	}
}

func TestHost_WriteFiles_errors(t *testing.T) {
	t.Parallel()
	repo := initRepo(t)
	h := &Host{RepoRoot: repo, WorktreeRoot: filepath.Join(t.TempDir(), "wt")}
	if err := h.WriteFiles(context.Background(), "", map[string]string{"a": "b"}, "m"); !errors.Is(err, ErrEmptyBranch) {
		t.Errorf("empty branch: got %v", err)
	}
	if err := h.WriteFiles(context.Background(), "b", nil, "m"); err != nil {
		t.Errorf("no files: got %v", err)
	}
	if err := h.WriteFiles(context.Background(), "b", map[string]string{"../escape.ts": "x"}, "m"); err == nil {
		t.Error("escaping path: expected error")
	}
}
