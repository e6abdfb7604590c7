// Package suite drives a whole run: it picks the source files to cover
// (changed since the baseline marker, or everything on the first run), runs
// the engine on each, merges the accepted tests into one test file per
// source file, commits them through the source host, and writes the run
// report and metrics.
package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/coverage"
	"utgen/cli/internal/engine"
	"utgen/cli/internal/metrics"
	"utgen/cli/internal/report"
)

// ErrNoTests is returned when a run finishes without a single passing test.
var ErrNoTests = errors.New("no test cases generated")

// Run modes.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// DefaultBaselineTag marks the commit of the last full run.
const DefaultBaselineTag = "auto-unit-test-baseline"

// SourceHost reads sources and persists generated tests. git.Host implements it.
type SourceHost interface {
	ReadFile(ctx context.Context, ref, path string) (string, error)
	ListFiles(ctx context.Context, ref, dir string) ([]string, error)
	ChangedFiles(ctx context.Context, base, head string) ([]string, error)
	HasMarker(ctx context.Context, name string) (bool, error)
	CreateMarker(ctx context.Context, name, ref string) error
	WriteFiles(ctx context.Context, branch string, files map[string]string, message string) error
}

// Generator produces tests for one file. *engine.Engine implements it.
type Generator interface {
	GenerateForFile(ctx context.Context, f engine.File) engine.FileResult
}

// Options configure Run. Host, Engine, and Collector are required.
type Options struct {
	Host      SourceHost
	Engine    Generator
	Collector *collector.Collector
	Metrics   *metrics.Recorder // Optional; written to StateDir when set.

	RunID        string // Empty mints a new one.
	BaseRef      string // Incremental base; empty uses the baseline marker.
	HeadRef      string // Empty is HEAD.
	Branch       string // Branch the tests are committed to.
	SourceFolder string
	Extensions   []string
	TestDir      string
	TestSuffix   string
	BaselineTag  string // Empty uses DefaultBaselineTag.
	DryRun       bool   // Generate and report, but write nothing to the host.
	StateDir     string // Report and metrics; empty skips both.
	RootDir      string // Project root the tests run in.

	Logger *slog.Logger
	Now    func() time.Time
}

// Result is the outcome of Run.
type Result struct {
	Mode      string
	Files     []engine.FileResult
	TestFiles map[string]string // Test path to merged test source.
	Coverage  coverage.Summary  // Aggregate over all files.
	Tally     collector.Tally
	Report    *report.Report
}

// TestCount is the number of accepted tests across all files.
func (r *Result) TestCount() int {
	n := 0
	for _, f := range r.Files {
		n += len(f.Tests)
	}
	return n
}

// Run executes one suite run. Discovery, read, and write failures are
// returned; so is ctx cancellation, after the partial report is written.
// A run that accepted no test returns its Result with ErrNoTests.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Host == nil || opts.Engine == nil || opts.Collector == nil {
		return nil, fmt.Errorf("suite: host, engine, and collector are required")
	}
	opts = withDefaults(opts)
	log := opts.Logger
	started := opts.Now()

	mode, base, paths, err := discover(ctx, opts)
	if err != nil {
		return nil, err
	}
	log.Info("source files selected", "mode", mode, "base", base, "head", opts.HeadRef, "files", len(paths))

	res := &Result{Mode: mode, TestFiles: make(map[string]string)}
	testPaths := make(map[string]string, len(paths))
	var runErr error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		content, err := opts.Host.ReadFile(ctx, opts.HeadRef, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		fr := opts.Engine.GenerateForFile(ctx, engine.File{Path: p, Content: content, RootDir: opts.RootDir})
		res.Files = append(res.Files, fr)
		if len(fr.Tests) > 0 {
			tp := TestPath(p, opts.TestDir, opts.TestSuffix)
			testPaths[p] = tp
			merged := strings.Join(fr.Tests, "\n\n")
			if prev, ok := res.TestFiles[tp]; ok {
				merged = prev + "\n\n" + merged
			}
			res.TestFiles[tp] = DedupImports(merged)
		}
		if fr.Err != nil {
			runErr = fr.Err
			break
		}
	}

	covs := make([]coverage.Summary, 0, len(res.Files))
	for _, f := range res.Files {
		covs = append(covs, f.Coverage)
	}
	res.Coverage = coverage.Aggregate(covs...)
	res.Tally = opts.Collector.Tally()

	if runErr == nil && !opts.DryRun && len(res.TestFiles) > 0 {
		msg := fmt.Sprintf("test: add generated unit tests for %d file(s)", len(res.TestFiles))
		if err := opts.Host.WriteFiles(ctx, opts.Branch, res.TestFiles, msg); err != nil {
			return nil, fmt.Errorf("write tests: %w", err)
		}
		log.Info("tests committed", "branch", opts.Branch, "files", len(res.TestFiles))
		if mode == ModeFull {
			if err := opts.Host.CreateMarker(ctx, opts.BaselineTag, opts.HeadRef); err != nil {
				log.Warn("could not create baseline marker", "tag", opts.BaselineTag, "err", err)
			}
		}
	}

	finished := opts.Now()
	res.Report = buildReport(opts, mode, base, res, testPaths, started, finished)
	if opts.StateDir != "" {
		if err := report.Write(opts.StateDir, res.Report); err != nil {
			return nil, err
		}
		if opts.Metrics != nil {
			opts.Metrics.ObserveRun(res.Coverage, finished.Sub(started), finished)
			if _, err := opts.Metrics.WriteTextfile(opts.StateDir); err != nil {
				log.Warn("could not write metrics", "err", err)
			}
		}
	}

	if runErr != nil {
		return res, runErr
	}
	if res.TestCount() == 0 {
		return res, ErrNoTests
	}
	return res, nil
}

func withDefaults(opts Options) Options {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.HeadRef == "" {
		opts.HeadRef = "HEAD"
	}
	if opts.BaselineTag == "" {
		opts.BaselineTag = DefaultBaselineTag
	}
	if opts.TestDir == "" {
		opts.TestDir = "test"
	}
	if opts.TestSuffix == "" {
		opts.TestSuffix = ".test.ts"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// discover returns the run mode, the base ref used (incremental only), and
// the source paths to process in order.
func discover(ctx context.Context, opts Options) (mode, base string, paths []string, err error) {
	hasMarker, err := opts.Host.HasMarker(ctx, opts.BaselineTag)
	if err != nil {
		return "", "", nil, fmt.Errorf("check baseline marker: %w", err)
	}
	var candidates []string
	if hasMarker || opts.BaseRef != "" {
		mode = ModeIncremental
		base = opts.BaseRef
		if base == "" {
			base = opts.BaselineTag
		}
		candidates, err = opts.Host.ChangedFiles(ctx, base, opts.HeadRef)
		if err != nil {
			return "", "", nil, fmt.Errorf("list changed files: %w", err)
		}
	} else {
		mode = ModeFull
		candidates, err = opts.Host.ListFiles(ctx, opts.HeadRef, opts.SourceFolder)
		if err != nil {
			return "", "", nil, fmt.Errorf("list source files: %w", err)
		}
	}
	for _, p := range candidates {
		if isSource(p, opts) {
			paths = append(paths, p)
		}
	}
	slices.Sort(paths)
	return mode, base, slices.Compact(paths), nil
}

// isSource reports whether p lies under the source folder, has a configured
// extension, and is not itself a test file.
func isSource(p string, opts Options) bool {
	p = path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if dir := strings.Trim(path.Clean(opts.SourceFolder), "/"); dir != "" && dir != "." {
		if !strings.HasPrefix(p, dir+"/") {
			return false
		}
	}
	if strings.HasSuffix(p, opts.TestSuffix) || strings.Contains(path.Base(p), ".spec.") {
		return false
	}
	if len(opts.Extensions) == 0 {
		return true
	}
	return slices.Contains(opts.Extensions, path.Ext(p))
}

// TestPath maps a source path to <testDir>/<base name><suffix>, e.g.
// src/util/math.ts to test/math.test.ts.
func TestPath(sourcePath, testDir, suffix string) string {
	base := path.Base(strings.ReplaceAll(sourcePath, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	return path.Join(testDir, base+suffix)
}

func buildReport(opts Options, mode, base string, res *Result, testPaths map[string]string, started, finished time.Time) *report.Report {
	r := &report.Report{
		RunID:       opts.RunID,
		Mode:        mode,
		BaseRef:     base,
		HeadRef:     opts.HeadRef,
		Branch:      opts.Branch,
		DryRun:      opts.DryRun,
		StartedAt:   started,
		FinishedAt:  finished,
		Attempts:    res.Tally,
		Prompts:     opts.Collector.PromptCount(),
		Completions: opts.Collector.CompletionCount(),
		Coverage:    res.Coverage,
	}
	for _, f := range res.Files {
		fr := report.FileReport{
			Path:      f.File,
			TestPath:  testPaths[f.File],
			Tests:     len(f.Tests),
			Functions: f.Functions,
			Coverage:  f.Coverage,
		}
		if f.Err != nil {
			fr.Error = f.Err.Error()
		}
		r.Files = append(r.Files, fr)
		r.TestsGenerated += len(f.Tests)
		r.FunctionsTotal += len(f.Functions)
		for _, fn := range f.Functions {
			if fn.Passed {
				r.FunctionsPassed++
			}
		}
	}
	return r
}
