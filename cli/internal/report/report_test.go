package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/coverage"
	"utgen/cli/internal/engine"
	"utgen/cli/internal/history"
)

func sampleReport() *Report {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	cov := coverage.Summary{
		Statements: coverage.Metric{Total: 4, Covered: 3, Pct: 75},
		Branches:   coverage.Metric{Total: 2, Covered: 1, Pct: 50},
		Functions:  coverage.Metric{Total: 2, Covered: 2, Pct: 100},
		Lines:      coverage.Metric{Total: 4, Covered: 3, Pct: 75},
	}
	return &Report{
		RunID:      "run-1",
		Mode:       "full",
		HeadRef:    "abc123",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Files: []FileReport{{
			Path:     "src/math.ts",
			TestPath: "test/math.test.ts",
			Tests:    1,
			Functions: []engine.FunctionResult{
				{Name: "add", Passed: true, Prompts: 2, TestName: "test_1_1"},
				{Name: "sub", Passed: false, Prompts: 20},
			},
			Coverage: cov,
		}},
		TestsGenerated:  1,
		FunctionsTotal:  2,
		FunctionsPassed: 1,
		Attempts:        collector.Tally{Total: 22, Passed: 1, Failed: 21},
		Prompts:         22,
		Completions:     22,
		Coverage:        cov,
	}
}

func TestWrite_andLoad(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "state")
	r := sampleReport()
	require.NoError(t, Write(dir, r))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, got.RunID)
	assert.Equal(t, r.Files, got.Files)
	assert.Equal(t, r.Attempts, got.Attempts)
	assert.True(t, r.FinishedAt.Equal(got.FinishedAt))

	md, err := os.ReadFile(filepath.Join(dir, MarkdownFilename))
	require.NoError(t, err)
	assert.Equal(t, Markdown(r), string(md))
}

func TestMarkdown(t *testing.T) {
	t.Parallel()
	md := Markdown(sampleReport())
	assert.Contains(t, md, "# Generated unit tests")
	assert.Contains(t, md, "- Tests generated: 1 for 1/2 functions")
	assert.Contains(t, md, "| src/math.ts | test/math.test.ts | 1/2 | 75.00% | 50.00% | 75.00% |")
	assert.Contains(t, md, "- `sub` in src/math.ts")
	assert.NotContains(t, md, "`add` in")
	assert.NotContains(t, md, "Dry run")
}

func TestMarkdown_noFiles(t *testing.T) {
	t.Parallel()
	r := &Report{RunID: "r", Mode: "incremental", BaseRef: "base", HeadRef: "head", DryRun: true, Coverage: coverage.Zero()}
	md := Markdown(r)
	assert.Contains(t, md, "- Range: `base..head`")
	assert.Contains(t, md, "No source files matched.")
	assert.Contains(t, md, "Dry run")
}

func TestLoad_missing(t *testing.T) {
	t.Parallel()
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestWrite_nil(t *testing.T) {
	t.Parallel()
	assert.Error(t, Write(t.TempDir(), nil))
}

func TestAppendHistory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cfg := &history.RunConfig{Provider: "ollama", Model: "m", Temperatures: []float64{0.2}, MaxAttempts: 5, Policy: "lifo"}
	require.NoError(t, AppendHistory(dir, sampleReport(), "succeeded", cfg))

	rec, ok, err := history.Last(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, 1, rec.Files)
	assert.Equal(t, 2, rec.FunctionsTotal)
	assert.InDelta(t, 90.0, rec.DurationSeconds, 0.001)
	assert.Equal(t, cfg, rec.Config)
}
