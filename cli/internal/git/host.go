package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrEmptyBranch is returned by WriteFiles when no branch is given.
var ErrEmptyBranch = errors.New("target branch is required")

// Host reads sources from and commits tests to a local repository.
// Markers are lightweight tags.
type Host struct {
	RepoRoot     string
	WorktreeRoot string // Temporary checkouts for WriteFiles; "" uses <RepoRoot>/.utgen/worktrees.
}

// ReadFile returns the content of path at ref.
func (h *Host) ReadFile(ctx context.Context, ref, p string) (string, error) {
	cmd := command(ctx, h.RepoRoot, "show", ref+":"+p)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("read %s at %s: %w", p, ref, err)
	}
	return string(out), nil
}

// ListFiles returns all file paths under dir at ref, recursively, sorted.
// An empty dir or "." lists the whole tree.
func (h *Host) ListFiles(ctx context.Context, ref, dir string) ([]string, error) {
	args := []string{"ls-tree", "-r", "--name-only", "--full-tree", ref}
	if d := cleanDir(dir); d != "" {
		args = append(args, "--", d+"/")
	}
	out, err := output(ctx, h.RepoRoot, args...)
	if err != nil {
		return nil, fmt.Errorf("list %q at %s: %w", dir, ref, err)
	}
	return splitLines(out), nil
}

// ChangedFiles returns paths added, copied, modified, or renamed between
// base and head, sorted.
func (h *Host) ChangedFiles(ctx context.Context, base, head string) ([]string, error) {
	out, err := output(ctx, h.RepoRoot, "diff", "--name-only", "--diff-filter=ACMR", base, head)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", base, head, err)
	}
	return splitLines(out), nil
}

// HasMarker reports whether tag name exists.
func (h *Host) HasMarker(ctx context.Context, name string) (bool, error) {
	err := command(ctx, h.RepoRoot, "rev-parse", "--verify", "--quiet", "refs/tags/"+name).Run()
	if err == nil {
		return true, nil
	}
	if exitCode(err) == 1 {
		return false, nil
	}
	return false, fmt.Errorf("check marker %s: %w", name, err)
}

// CreateMarker creates tag name at ref.
func (h *Host) CreateMarker(ctx context.Context, name, ref string) error {
	if _, err := output(ctx, h.RepoRoot, "tag", name, ref); err != nil {
		return fmt.Errorf("create marker %s: %w", name, err)
	}
	return nil
}

// WriteFiles writes files (repo-relative path to content) on branch and
// commits them with message. If branch is checked out in an existing
// worktree the files are written and committed there, touching only these
// paths; otherwise a temporary worktree is added (creating the branch from
// HEAD when missing) and removed afterwards. No commit is made when nothing
// changed.
func (h *Host) WriteFiles(ctx context.Context, branch string, files map[string]string, message string) (err error) {
	if branch == "" {
		return ErrEmptyBranch
	}
	if len(files) == 0 {
		return nil
	}
	dir, err := BranchWorktree(ctx, h.RepoRoot, branch)
	if err != nil {
		return fmt.Errorf("find worktree for %s: %w", branch, err)
	}
	if dir == "" {
		dir, err = PathForBranch(h.RepoRoot, h.WorktreeRoot, branch)
		if err != nil {
			return err
		}
		if err := AddBranchWorktree(ctx, h.RepoRoot, dir, branch, "HEAD"); err != nil {
			return err
		}
		defer func() {
			if rmErr := Remove(context.WithoutCancel(ctx), h.RepoRoot, dir); rmErr != nil && err == nil {
				err = rmErr
			}
		}()
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if !filepath.IsLocal(filepath.FromSlash(p)) {
			return fmt.Errorf("write %s: path escapes repository", p)
		}
		abs := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
		if err := os.WriteFile(abs, []byte(files[p]), 0644); err != nil {
			return fmt.Errorf("write %s: %w", p, err)
		}
	}

	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := output(ctx, dir, addArgs...); err != nil {
		return err
	}
	diffArgs := append([]string{"diff", "--cached", "--quiet", "--"}, paths...)
	if diffErr := command(ctx, dir, diffArgs...).Run(); diffErr == nil {
		return nil // nothing changed
	} else if exitCode(diffErr) != 1 {
		return fmt.Errorf("git diff --cached: %w", diffErr)
	}
	commitArgs := append([]string{"commit", "-m", message, "--"}, paths...)
	if _, err := output(ctx, dir, commitArgs...); err != nil {
		return err
	}
	return nil
}

func cleanDir(dir string) string {
	d := path.Clean(filepath.ToSlash(strings.TrimSpace(dir)))
	if d == "." || d == "/" {
		return ""
	}
	return strings.Trim(d, "/")
}

func splitLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
