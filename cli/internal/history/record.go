// Package history keeps a bounded log of utgen runs in
// stateDir/history.jsonl, one JSON object per line, newest last. Older lines
// are rotated into gzipped archives so the active file stays small.
package history

import (
	"time"

	"utgen/cli/internal/collector"
	"utgen/cli/internal/coverage"
)

// RunConfig is the subset of configuration that explains a run's results.
type RunConfig struct {
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Temperatures []float64 `json:"temperatures"`
	MaxAttempts  int       `json:"max_attempts"`
	Policy       string    `json:"policy"`
	Candidates   int       `json:"candidates,omitempty"`
}

// Record is one line in history.jsonl.
type Record struct {
	RunID           string           `json:"run_id"`
	FinishedAt      time.Time        `json:"finished_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Status          string           `json:"status"`
	Mode            string           `json:"mode"`
	BaseRef         string           `json:"base_ref,omitempty"`
	HeadRef         string           `json:"head_ref"`
	Files           int              `json:"files"`
	TestsGenerated  int              `json:"tests_generated"`
	FunctionsTotal  int              `json:"functions_total"`
	Attempts        collector.Tally  `json:"attempts"`
	Prompts         int              `json:"prompts"`
	Coverage        coverage.Summary `json:"coverage"`
	Config          *RunConfig       `json:"config,omitempty"`
}
