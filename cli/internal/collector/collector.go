// Package collector records what the generation loop did: which prompts were
// issued (keyed by prompt identity), every validated candidate, and the
// coverage measured per file. Records are append-only; readers get copies.
package collector

import (
	"maps"
	"slices"
	"sync"

	"utgen/cli/internal/coverage"
	"utgen/cli/internal/prompt"
)

// Status is the runner verdict for one candidate.
type Status string

const (
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
)

// Outcome is a runner verdict. Error is the failure output ("" when passed).
type Outcome struct {
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Passed returns a PASSED outcome.
func Passed() Outcome { return Outcome{Status: StatusPassed} }

// Failed returns a FAILED outcome carrying msg.
func Failed(msg string) Outcome { return Outcome{Status: StatusFailed, Error: msg} }

// OK reports whether the outcome is PASSED.
func (o Outcome) OK() bool { return o.Status == StatusPassed }

// TestAttempt is one validated candidate.
type TestAttempt struct {
	TestName    string    `json:"test_name"`
	TestSource  string    `json:"test_source"`
	PromptID    prompt.ID `json:"prompt_id"`
	Temperature float64   `json:"temperature"`
	Function    string    `json:"function"`
	File        string    `json:"file,omitempty"`
	Outcome     Outcome   `json:"outcome"`
}

// Tally counts attempts by outcome.
type Tally struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Collector is safe for concurrent use. The zero value is not valid; use New.
type Collector struct {
	mu       sync.Mutex
	prompts  map[prompt.ID]int
	attempts []TestAttempt
	coverage map[string]coverage.Summary
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{
		prompts:  make(map[prompt.ID]int),
		coverage: make(map[string]coverage.Summary),
	}
}

// RecordPromptInfo marks p as issued with the number of completions it produced.
func (c *Collector) RecordPromptInfo(p *prompt.Prompt, completions int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts[p.ID()] = completions
}

// HasSeen reports whether this exact prompt instance was recorded. A
// structurally identical prompt with a different identity is not seen.
func (c *Collector) HasSeen(p *prompt.Prompt) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.prompts[p.ID()]
	return ok
}

// RecordTestAttempt appends a validated candidate.
func (c *Collector) RecordTestAttempt(a TestAttempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, a)
}

// RecordCoverage stores the summary for file; a later call replaces it.
func (c *Collector) RecordCoverage(file string, s coverage.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.coverage[file] = s
}

// Attempts returns a copy of all attempts in record order.
func (c *Collector) Attempts() []TestAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.attempts)
}

// Coverage returns a copy of the per-file coverage map.
func (c *Collector) Coverage() map[string]coverage.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.coverage)
}

// PromptCount returns the number of distinct prompts issued.
func (c *Collector) PromptCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

// CompletionCount returns the total completions received across prompts.
func (c *Collector) CompletionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.prompts {
		n += v
	}
	return n
}

// Tally counts attempts by outcome.
func (c *Collector) Tally() Tally {
	c.mu.Lock()
	defer c.mu.Unlock()
	var t Tally
	for _, a := range c.attempts {
		t.Total++
		if a.Outcome.OK() {
			t.Passed++
		} else {
			t.Failed++
		}
	}
	return t
}
