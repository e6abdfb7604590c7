// Package engine implements the generate-validate-refine loop. For each
// function in a file it tries each configured temperature in order; within a
// temperature it runs a bounded worklist search where every failing candidate
// yields a refinement prompt carrying the failed test and its error. The
// first passing candidate ends the search for that function.
//
// Domain failures (no candidates, failing tests, runner timeouts) never
// surface as errors; they are recorded in the collector. Only context
// cancellation stops a file early.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/completion"
	"utgen/cli/internal/coverage"
	"utgen/cli/internal/prompt"
	"utgen/cli/internal/snippet"
	"utgen/cli/internal/tokens"
	"utgen/cli/internal/trace"
)

// EmptyCompletionError is the failure recorded when the provider returns no
// candidates or a candidate contains no code.
const EmptyCompletionError = "empty completion"

// DefaultMaxAttempts bounds prompts issued per (function, temperature).
const DefaultMaxAttempts = 5

// DefaultTemperatures are tried in order; the first success wins.
var DefaultTemperatures = []float64{0.2, 0.5, 0.8, 1.0}

// ErrInvalidOptions is returned by New for malformed configuration.
var ErrInvalidOptions = errors.New("invalid engine options")

// Runner validates a candidate test and measures coverage.
type Runner interface {
	Validate(ctx context.Context, testName, testSource, rootDir string) collector.Outcome
	Coverage(ctx context.Context, testName, testSource, sourcePath, rootDir string) coverage.Summary
}

// Observer receives loop events, e.g. for metrics. All methods must be cheap.
type Observer interface {
	ObservePrompt(refinement bool, candidates int)
	ObserveAttempt(status collector.Status)
	ObserveFunction(passed bool)
}

// Options configure an Engine. Provider, Runner, and Collector are required.
type Options struct {
	Temperatures []float64 // nil uses DefaultTemperatures.
	MaxAttempts  int       // 0 uses DefaultMaxAttempts.
	Policy       Policy    // "" uses PolicyLIFO.
	Provider     completion.Provider
	Runner       Runner
	Collector    *collector.Collector
	Snippets     *snippet.Store // Optional.
	Prompts      prompt.Factory // Zero value uses TypeScript/Jest and default templates.
	Budget       tokens.Budget  // Context-size warning; zero disables.
	Observer     Observer       // Optional.
	Logger       *slog.Logger
	Trace        *trace.Tracer
}

// Engine runs the search. Not safe for concurrent GenerateForFile calls
// sharing a runner scratch directory.
type Engine struct {
	temps       []float64
	maxAttempts int
	policy      Policy
	provider    completion.Provider
	runner      Runner
	collector   *collector.Collector
	snippets    *snippet.Store
	prompts     prompt.Factory
	budget      tokens.Budget
	observer    Observer
	log         *slog.Logger
	trace       *trace.Tracer
	seq         atomic.Uint64
}

// New validates opts and returns an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Provider == nil || opts.Runner == nil || opts.Collector == nil {
		return nil, fmt.Errorf("%w: provider, runner, and collector are required", ErrInvalidOptions)
	}
	temps := opts.Temperatures
	if temps == nil {
		temps = DefaultTemperatures
	}
	if len(temps) == 0 {
		return nil, fmt.Errorf("%w: at least one temperature is required", ErrInvalidOptions)
	}
	for _, t := range temps {
		if t < 0 || t > 2 {
			return nil, fmt.Errorf("%w: temperature %v out of range [0, 2]", ErrInvalidOptions, t)
		}
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if maxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be at least 1, got %d", ErrInvalidOptions, maxAttempts)
	}
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	prompts := opts.Prompts
	if prompts == (prompt.Factory{}) {
		prompts = prompt.NewFactory(prompt.Language{}, prompt.Templates{})
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		temps:       append([]float64(nil), temps...),
		maxAttempts: maxAttempts,
		policy:      policy,
		provider:    opts.Provider,
		runner:      opts.Runner,
		collector:   opts.Collector,
		snippets:    opts.Snippets,
		prompts:     prompts,
		budget:      opts.Budget,
		observer:    opts.Observer,
		log:         log,
		trace:       opts.Trace,
	}, nil
}

// File is one source file to generate tests for.
type File struct {
	Path    string // Repo-relative path.
	Content string
	RootDir string // Project root the runner executes in.
}

// FunctionUnit is a function under test together with its file context.
type FunctionUnit struct {
	Name        string
	Source      string
	DocComments string
	FilePath    string
	FileName    string
	FileContent string
	RootDir     string
}

// FunctionResult summarizes the search for one function.
type FunctionResult struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Prompts  int    `json:"prompts"` // Prompts issued across all temperatures.
	TestName string `json:"test_name,omitempty"`
}

// FileResult is what GenerateForFile produced for one file.
type FileResult struct {
	File      string           `json:"file"`
	Tests     []string         `json:"-"`
	Functions []FunctionResult `json:"functions"`
	Coverage  coverage.Summary `json:"coverage"`
	Err       error            `json:"-"`
}

// validated is a candidate that reached the runner.
type validated struct {
	name   string
	source string
}

// GenerateForFile extracts the file's functions and searches for a passing
// test for each. Coverage is measured once, over the accepted tests merged
// together (or the last validated candidate when none passed), and recorded
// in the collector. Err is set only when ctx ends the run early.
func (e *Engine) GenerateForFile(ctx context.Context, f File) FileResult {
	res := FileResult{File: f.Path}
	units := e.Units(f)
	e.log.Info("generating tests", "file", f.Path, "functions", len(units))

	var last *validated
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}
		fr, test, lastTried, err := e.searchFunction(ctx, u)
		if lastTried != nil {
			last = lastTried
		}
		res.Functions = append(res.Functions, fr)
		if test != "" {
			res.Tests = append(res.Tests, test)
		}
		if err != nil {
			res.Err = err
			break
		}
	}

	res.Coverage = e.measureCoverage(ctx, f, res.Tests, last)
	e.collector.RecordCoverage(f.Path, res.Coverage)
	return res
}

// Units extracts the functions in f with their file context.
func (e *Engine) Units(f File) []FunctionUnit {
	var fns []Function
	if e.prompts.Language.Fence == "python" {
		fns = ExtractPythonFunctions(f.Content)
	} else {
		fns = ExtractFunctions(f.Content)
	}
	units := make([]FunctionUnit, 0, len(fns))
	for _, fn := range fns {
		units = append(units, FunctionUnit{
			Name:        fn.Name,
			Source:      fn.Source,
			DocComments: fn.DocComments,
			FilePath:    f.Path,
			FileName:    filepath.Base(f.Path),
			FileContent: f.Content,
			RootDir:     f.RootDir,
		})
	}
	return units
}

// searchFunction runs the per-temperature worklist search for u. It returns
// the accepted test source ("" when none passed) and the last candidate that
// reached the runner.
func (e *Engine) searchFunction(ctx context.Context, u FunctionUnit) (FunctionResult, string, *validated, error) {
	fr := FunctionResult{Name: u.Name}
	target := prompt.Target{
		Name:        u.Name,
		Source:      u.Source,
		FilePath:    u.FilePath,
		FileName:    u.FileName,
		FileContent: u.FileContent,
		DocComments: u.DocComments,
	}
	snips := e.snippets.Get(u.Name)
	var last *validated

	for _, temp := range e.temps {
		wl := newWorklist(e.policy, e.prompts.New(target, snips))
		attempts := 0
		for wl.len() > 0 && attempts < e.maxAttempts {
			if err := ctx.Err(); err != nil {
				e.observeFunction(false)
				return fr, "", last, err
			}
			p := wl.pop()
			if e.collector.HasSeen(p) {
				continue
			}
			text := p.Render()
			if est, warn := e.budget.Check(text); warn != "" {
				e.log.Warn("prompt may exceed context window", "function", u.Name, "tokens", est, "detail", warn)
			}
			e.trace.Section(fmt.Sprintf("%s t=%.2f attempt %d", u.Name, temp, attempts+1))
			e.trace.Block("prompt "+string(p.ID()), text)

			candidates := e.provider.Completions(ctx, text, temp)
			e.collector.RecordPromptInfo(p, len(candidates))
			fr.Prompts++
			if e.observer != nil {
				e.observer.ObservePrompt(p.IsRefinement(), len(candidates))
			}
			if len(candidates) == 0 {
				e.log.Debug("no candidates", "function", u.Name, "temperature", temp)
				candidates = []string{""}
			}

			for _, c := range candidates {
				name, source, outcome := e.validate(ctx, u, c)
				e.collector.RecordTestAttempt(collector.TestAttempt{
					TestName:    name,
					TestSource:  source,
					PromptID:    p.ID(),
					Temperature: temp,
					Function:    u.Name,
					File:        u.FilePath,
					Outcome:     outcome,
				})
				if e.observer != nil {
					e.observer.ObserveAttempt(outcome.Status)
				}
				e.trace.Block("candidate "+name, source)
				e.trace.Printf("[utgen:trace] outcome %s %s\n", outcome.Status, firstLine(outcome.Error))
				if source != "" {
					last = &validated{name: name, source: source}
				}
				if outcome.OK() {
					fr.Passed = true
					fr.TestName = name
					e.log.Info("test passed", "function", u.Name, "temperature", temp, "attempt", attempts+1)
					e.observeFunction(true)
					return fr, source, last, nil
				}
				wl.push(p.WithRefinement(source, outcome.Error))
			}
			attempts++
		}
		e.log.Debug("temperature exhausted", "function", u.Name, "temperature", temp, "attempts", attempts)
	}
	e.log.Info("no passing test", "function", u.Name)
	e.observeFunction(false)
	return fr, "", last, nil
}

// validate extracts code from candidate and runs it under a fresh test name.
// Empty code is a failure without running the runner.
func (e *Engine) validate(ctx context.Context, u FunctionUnit, candidate string) (string, string, collector.Outcome) {
	name := e.testName()
	source, ok := ExtractCodeBlock(candidate)
	if source == "" {
		return name, "", collector.Failed(EmptyCompletionError)
	}
	if !ok {
		e.log.Warn("no fenced code block in completion; using raw text", "function", u.Name)
	}
	return name, source, e.runner.Validate(ctx, name, source, u.RootDir)
}

func (e *Engine) measureCoverage(ctx context.Context, f File, accepted []string, last *validated) coverage.Summary {
	if ctx.Err() != nil {
		return coverage.Zero()
	}
	switch {
	case len(accepted) > 0:
		return e.runner.Coverage(ctx, e.testName(), strings.Join(accepted, "\n\n"), f.Path, f.RootDir)
	case last != nil:
		return e.runner.Coverage(ctx, last.name, last.source, f.Path, f.RootDir)
	default:
		return coverage.Zero()
	}
}

// testName returns test_<unix-nanos>_<seq>; seq makes names unique even
// when the clock does not advance between calls.
func (e *Engine) testName() string {
	return fmt.Sprintf("test_%d_%d", time.Now().UnixNano(), e.seq.Add(1))
}

func (e *Engine) observeFunction(passed bool) {
	if e.observer != nil {
		e.observer.ObserveFunction(passed)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
