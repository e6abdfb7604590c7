package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/coverage"
)

func scratchEntries(t *testing.T, root string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(root, DefaultScratchDir))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		source     string
		wantStatus collector.Status
		wantErr    string
	}{
		{"pass", "PASS", collector.StatusPassed, ""},
		{"fail_reports_output", "nope", collector.StatusFailed, "expected PASS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			r := New(Config{
				TestCommand: []string{"sh", "-c", "grep -q PASS {test} || { echo 'expected PASS in {test}'; exit 1; }"},
				Timeout:     10 * time.Second,
			})
			got := r.Validate(context.Background(), "test_1_"+tt.name, tt.source, root)
			assert.Equal(t, tt.wantStatus, got.Status)
			if tt.wantErr != "" {
				assert.Contains(t, got.Error, tt.wantErr)
			} else {
				assert.Empty(t, got.Error)
			}
			assert.Empty(t, scratchEntries(t, root), "candidate file must be removed")
		})
	}
}

func TestValidate_runsInRootWithSuffix(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := New(Config{
		TestCommand: []string{"sh", "-c", `test "$(pwd -P)" = "$(cd {root} && pwd -P)" && test -f {test} && case {test} in *.spec.js) exit 0;; esac; exit 1`},
		TestSuffix:  ".spec.js",
		Timeout:     10 * time.Second,
	})
	got := r.Validate(context.Background(), "test_2_1", "x", root)
	assert.True(t, got.OK(), got.Error)
}

func TestValidate_timeout(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := New(Config{TestCommand: []string{"sh", "-c", "sleep 5"}, Timeout: 100 * time.Millisecond})
	start := time.Now()
	got := r.Validate(context.Background(), "test_3_1", "x", root)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Equal(t, collector.StatusFailed, got.Status)
	assert.True(t, strings.HasPrefix(got.Error, "timeout after"), got.Error)
	assert.Empty(t, scratchEntries(t, root))
}

func TestValidate_startFailure(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := New(Config{TestCommand: []string{"utgen-no-such-binary-xyz"}, Timeout: time.Second})
	got := r.Validate(context.Background(), "test_4_1", "x", root)
	assert.Equal(t, collector.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
	assert.Empty(t, scratchEntries(t, root))
}

func TestValidate_invalidName(t *testing.T) {
	t.Parallel()
	r := New(Config{TestCommand: []string{"true"}})
	got := r.Validate(context.Background(), "../escape", "x", t.TempDir())
	assert.Equal(t, collector.StatusFailed, got.Status)
}

func TestValidate_truncatesLongOutput(t *testing.T) {
	t.Parallel()
	r := New(Config{TestCommand: []string{"sh", "-c", "head -c 20000 /dev/zero | tr '\\0' 'a'; echo END; exit 1"}, Timeout: 10 * time.Second})
	got := r.Validate(context.Background(), "test_5_1", "x", t.TempDir())
	assert.LessOrEqual(t, len(got.Error), maxErrorBytes+3)
	assert.True(t, strings.HasSuffix(got.Error, "END"))
}

const summaryJSON = `{"total":{"lines":{"total":4,"covered":3,"skipped":0,"pct":75},"statements":{"total":4,"covered":3,"skipped":0,"pct":75},"functions":{"total":1,"covered":1,"skipped":0,"pct":100},"branches":{"total":0,"covered":0,"skipped":0,"pct":"Unknown"}}}`

func TestCoverage(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	r := New(Config{
		TestCommand:     []string{"true"},
		CoverageCommand: []string{"sh", "-c", "mkdir -p {coverage_dir} && cp {test} {coverage_dir}/" + CoverageSummaryFile},
		Timeout:         10 * time.Second,
	})
	got := r.Coverage(context.Background(), "test_6_1", summaryJSON, "src/math.ts", root)
	assert.Equal(t, coverage.Metric{Total: 4, Covered: 3, Pct: 75}, got.Lines)
	assert.Equal(t, 100.0, got.Branches.Pct)
	assert.Empty(t, scratchEntries(t, root), "test file and coverage dir must be removed")
}

func TestCoverage_failuresYieldAllZero(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cmd  []string
	}{
		{"disabled", nil},
		{"no_summary", []string{"sh", "-c", "exit 1"}},
		{"bad_summary", []string{"sh", "-c", "mkdir -p {coverage_dir} && echo '{' > {coverage_dir}/" + CoverageSummaryFile}},
		{"missing_binary", []string{"/nonexistent/cov-binary", "{test}"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			r := New(Config{TestCommand: []string{"true"}, CoverageCommand: tt.cmd, Timeout: 10 * time.Second})
			got := r.Coverage(context.Background(), "test_7_1", "x", "src/a.ts", root)
			assert.Equal(t, coverage.Summary{}, got)
			for _, m := range []coverage.Metric{got.Statements, got.Branches, got.Functions, got.Lines} {
				assert.Zero(t, m.Pct)
			}
			assert.Empty(t, scratchEntries(t, root))
		})
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()
	got := expand([]string{"jest", "{test}", "--dir={coverage_dir}", "{source}"}, map[string]string{
		PlaceholderTest:        "a.test.ts",
		PlaceholderCoverageDir: "cov",
		PlaceholderSource:      "src/a.ts",
	})
	assert.Equal(t, []string{"jest", "a.test.ts", "--dir=cov", "src/a.ts"}, got)
}
