// Package runner executes candidate tests with the project's own test command
// and reports a PASSED/FAILED verdict, and measures coverage for a test by
// running the coverage command and reading its json-summary output.
//
// Each call writes the candidate to a unique file under the scratch directory
// and removes it (and any coverage artifacts) before returning. Subprocess
// failures, timeouts, and I/O errors become FAILED outcomes or a zero
// coverage summary; they are never returned as errors.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/coverage"
)

// Placeholders substituted in every argv element of the commands.
const (
	PlaceholderTest        = "{test}"
	PlaceholderSource      = "{source}"
	PlaceholderCoverageDir = "{coverage_dir}"
	PlaceholderRoot        = "{root}"
)

// CoverageSummaryFile is the Istanbul json-summary reporter's output name.
const CoverageSummaryFile = "coverage-summary.json"

// maxErrorBytes caps the failure output kept in an outcome. The tail is kept
// because runners print the assertion diff last.
const maxErrorBytes = 8 << 10

// waitDelay bounds how long output pipes are drained after the process is killed.
const waitDelay = 2 * time.Second

// Defaults for a Jest project.
var (
	DefaultTestCommand     = []string{"npx", "jest", "--ci", "--runTestsByPath", PlaceholderTest}
	DefaultCoverageCommand = []string{
		"npx", "jest", "--ci", "--runTestsByPath", PlaceholderTest,
		"--coverage", "--coverageReporters=json-summary",
		"--coverageDirectory=" + PlaceholderCoverageDir,
		"--collectCoverageFrom=" + PlaceholderSource,
	}
)

const (
	DefaultScratchDir = ".utgen/scratch"
	DefaultTestSuffix = ".test.ts"
	DefaultTimeout    = 2 * time.Minute
)

// Config describes how to run tests in the project.
type Config struct {
	TestCommand     []string
	CoverageCommand []string // Empty disables coverage (Coverage returns Zero).
	ScratchDir      string   // Relative to the project root.
	TestSuffix      string
	Timeout         time.Duration
	Env             []string // Extra KEY=VALUE pairs appended to the process environment.
	Logger          *slog.Logger
}

// Runner validates candidate tests. Safe for sequential use; concurrent
// callers must use distinct test names.
type Runner struct {
	cfg Config
	log *slog.Logger
}

// New returns a Runner; zero fields take the Jest defaults.
func New(cfg Config) *Runner {
	if len(cfg.TestCommand) == 0 {
		cfg.TestCommand = DefaultTestCommand
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = DefaultScratchDir
	}
	if cfg.TestSuffix == "" {
		cfg.TestSuffix = DefaultTestSuffix
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Runner{cfg: cfg, log: log}
}

// Validate writes testSource as <root>/<scratch>/<testName><suffix>, runs the
// test command in rootDir, and maps the exit status to an outcome.
func (r *Runner) Validate(ctx context.Context, testName, testSource, rootDir string) collector.Outcome {
	rel, cleanup, err := r.writeTest(testName, testSource, rootDir)
	if err != nil {
		return collector.Failed(err.Error())
	}
	defer cleanup()

	vars := map[string]string{PlaceholderTest: rel, PlaceholderRoot: rootDir}
	out, err := r.exec(ctx, r.cfg.TestCommand, vars, rootDir)
	if err != nil {
		r.log.Debug("test failed", "test", testName, "err", err)
		return collector.Failed(failureMessage(out, err))
	}
	return collector.Passed()
}

// Coverage runs the coverage command for testSource against sourcePath and
// returns the summary for sourcePath (or the run total). Any failure yields
// coverage.Zero().
func (r *Runner) Coverage(ctx context.Context, testName, testSource, sourcePath, rootDir string) coverage.Summary {
	if len(r.cfg.CoverageCommand) == 0 {
		return coverage.Zero()
	}
	rel, cleanup, err := r.writeTest(testName, testSource, rootDir)
	if err != nil {
		r.log.Warn("coverage skipped", "test", testName, "err", err)
		return coverage.Zero()
	}
	defer cleanup()

	covRel := filepath.Join(r.cfg.ScratchDir, "coverage-"+testName)
	covAbs := filepath.Join(rootDir, covRel)
	defer os.RemoveAll(covAbs)

	vars := map[string]string{
		PlaceholderTest:        rel,
		PlaceholderSource:      sourcePath,
		PlaceholderCoverageDir: covRel,
		PlaceholderRoot:        rootDir,
	}
	out, err := r.exec(ctx, r.cfg.CoverageCommand, vars, rootDir)
	if err != nil {
		// Jest exits non-zero on coverage thresholds; a summary may still exist.
		r.log.Debug("coverage command failed", "test", testName, "err", err, "output", truncateTail(out, 512))
	}
	data, err := os.ReadFile(filepath.Join(covAbs, CoverageSummaryFile))
	if err != nil {
		r.log.Warn("coverage summary missing", "test", testName, "err", err)
		return coverage.Zero()
	}
	s, err := coverage.ParseIstanbul(data, sourcePath)
	if err != nil {
		r.log.Warn("coverage summary unreadable", "test", testName, "err", err)
		return coverage.Zero()
	}
	return s
}

// writeTest writes the candidate and returns its root-relative path and a
// cleanup func that removes it.
func (r *Runner) writeTest(testName, testSource, rootDir string) (string, func(), error) {
	if testName == "" || strings.ContainsAny(testName, `/\`) {
		return "", nil, fmt.Errorf("invalid test name %q", testName)
	}
	rel := filepath.Join(r.cfg.ScratchDir, testName+r.cfg.TestSuffix)
	abs := filepath.Join(rootDir, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	if err := os.WriteFile(abs, []byte(testSource), 0644); err != nil {
		return "", nil, fmt.Errorf("write test file: %w", err)
	}
	return rel, func() { _ = os.Remove(abs) }, nil
}

// exec runs argv (placeholders substituted) in dir under the runner timeout
// and returns combined output.
func (r *Runner) exec(ctx context.Context, argv []string, vars map[string]string, dir string) (string, error) {
	args := expand(argv, vars)
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), r.cfg.Env...)
	cmd.WaitDelay = waitDelay
	out, err := cmd.CombinedOutput()
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return string(out), fmt.Errorf("%w after %s", errTimeout, r.cfg.Timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return string(out), context.Canceled
		}
		return string(out), err
	}
	return string(out), nil
}

var errTimeout = errors.New("timeout")

func expand(argv []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	rep := strings.NewReplacer(pairs...)
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = rep.Replace(a)
	}
	return out
}

// failureMessage prefers the runner's own output; timeouts and start
// failures (no output) use the error text.
func failureMessage(out string, err error) string {
	if errors.Is(err, errTimeout) {
		msg := err.Error()
		if t := strings.TrimSpace(out); t != "" {
			msg += "\n" + truncateTail(t, maxErrorBytes)
		}
		return msg
	}
	if t := strings.TrimSpace(out); t != "" {
		return truncateTail(t, maxErrorBytes)
	}
	return err.Error()
}

func truncateTail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
