// Package report writes the per-run artifacts to the state directory:
// report.json (machine-readable) and report.md (for PR descriptions and
// humans), and appends the run summary to history.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/coverage"
	"utgen/cli/internal/engine"
	"utgen/cli/internal/erruser"
	"utgen/cli/internal/history"
	"utgen/cli/internal/session"
)

const (
	JSONFilename     = "report.json"
	MarkdownFilename = "report.md"
)

// FileReport is the outcome for one source file.
type FileReport struct {
	Path      string                  `json:"path"`
	TestPath  string                  `json:"test_path,omitempty"`
	Tests     int                     `json:"tests"`
	Functions []engine.FunctionResult `json:"functions"`
	Coverage  coverage.Summary        `json:"coverage"`
	Error     string                  `json:"error,omitempty"`
}

// Report is everything a run produced, minus the test sources themselves.
type Report struct {
	RunID           string           `json:"run_id"`
	Mode            string           `json:"mode"`
	BaseRef         string           `json:"base_ref,omitempty"`
	HeadRef         string           `json:"head_ref"`
	Branch          string           `json:"branch,omitempty"`
	DryRun          bool             `json:"dry_run"`
	StartedAt       time.Time        `json:"started_at"`
	FinishedAt      time.Time        `json:"finished_at"`
	Files           []FileReport     `json:"files"`
	TestsGenerated  int              `json:"tests_generated"`
	FunctionsTotal  int              `json:"functions_total"`
	FunctionsPassed int              `json:"functions_passed"`
	Attempts        collector.Tally  `json:"attempts"`
	Prompts         int              `json:"prompts"`
	Completions     int              `json:"completions"`
	Coverage        coverage.Summary `json:"coverage"`
}

// Duration is FinishedAt minus StartedAt.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// JSON returns the indented JSON encoding of r with a trailing newline.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Write writes report.json and report.md to stateDir atomically.
func Write(stateDir string, r *Report) error {
	if r == nil {
		return erruser.New("Could not write run report.", fmt.Errorf("nil report"))
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return erruser.New("Could not create state directory for report.", err)
	}
	data, err := r.JSON()
	if err != nil {
		return erruser.New("Could not encode run report.", err)
	}
	if err := session.WriteFileAtomic(filepath.Join(stateDir, JSONFilename), data); err != nil {
		return erruser.New("Could not write run report.", err)
	}
	if err := session.WriteFileAtomic(filepath.Join(stateDir, MarkdownFilename), []byte(Markdown(r))); err != nil {
		return erruser.New("Could not write run report.", err)
	}
	return nil
}

// Load reads report.json from stateDir.
func Load(stateDir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, JSONFilename))
	if err != nil {
		return nil, erruser.New("Could not read run report.", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, erruser.New("Run report is corrupted.", err)
	}
	return &r, nil
}

// Markdown renders r as a short Markdown document.
func Markdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# Generated unit tests\n\n")
	fmt.Fprintf(&b, "- Run: `%s` (%s)\n", r.RunID, r.Mode)
	if r.BaseRef != "" {
		fmt.Fprintf(&b, "- Range: `%s..%s`\n", r.BaseRef, r.HeadRef)
	} else {
		fmt.Fprintf(&b, "- Ref: `%s`\n", r.HeadRef)
	}
	fmt.Fprintf(&b, "- Tests generated: %d for %d/%d functions\n", r.TestsGenerated, r.FunctionsPassed, r.FunctionsTotal)
	fmt.Fprintf(&b, "- Attempts: %d (%d passed, %d failed), %d prompts\n", r.Attempts.Total, r.Attempts.Passed, r.Attempts.Failed, r.Prompts)
	fmt.Fprintf(&b, "- Coverage: %s\n", r.Coverage)
	if r.DryRun {
		b.WriteString("- Dry run: nothing was committed\n")
	}
	if len(r.Files) == 0 {
		b.WriteString("\nNo source files matched.\n")
		return b.String()
	}
	b.WriteString("\n| File | Test file | Functions | Statements | Branches | Lines |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, f := range r.Files {
		passed := 0
		for _, fn := range f.Functions {
			if fn.Passed {
				passed++
			}
		}
		test := f.TestPath
		if test == "" {
			test = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %d/%d | %.2f%% | %.2f%% | %.2f%% |\n",
			f.Path, test, passed, len(f.Functions),
			f.Coverage.Statements.Pct, f.Coverage.Branches.Pct, f.Coverage.Lines.Pct)
	}
	var failed []string
	for _, f := range r.Files {
		for _, fn := range f.Functions {
			if !fn.Passed {
				failed = append(failed, fmt.Sprintf("`%s` in %s", fn.Name, f.Path))
			}
		}
	}
	if len(failed) > 0 {
		b.WriteString("\nNo passing test found for:\n\n")
		for _, s := range failed {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return b.String()
}

// AppendHistory appends a summary of r with the given final status to the
// run history in stateDir.
func AppendHistory(stateDir string, r *Report, status string, cfg *history.RunConfig) error {
	return history.Append(stateDir, history.Record{
		RunID:           r.RunID,
		FinishedAt:      r.FinishedAt,
		DurationSeconds: r.Duration().Seconds(),
		Status:          status,
		Mode:            r.Mode,
		BaseRef:         r.BaseRef,
		HeadRef:         r.HeadRef,
		Files:           len(r.Files),
		TestsGenerated:  r.TestsGenerated,
		FunctionsTotal:  r.FunctionsTotal,
		Attempts:        r.Attempts,
		Prompts:         r.Prompts,
		Coverage:        r.Coverage,
		Config:          cfg,
	}, history.DefaultMaxRecords)
}
