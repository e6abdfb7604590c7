package engine

import (
	"fmt"
	"strings"

	"utgen/cli/internal/prompt"
)

// Policy orders pending prompts within one (function, temperature) search.
type Policy string

const (
	// PolicyLIFO retries the most recent refinement first (depth-first).
	PolicyLIFO Policy = "lifo"
	// PolicyFIFO retries refinements in the order they were produced (breadth-first).
	PolicyFIFO Policy = "fifo"
)

// ParsePolicy accepts "lifo", "fifo", or "" (LIFO).
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyLIFO, nil
	case PolicyLIFO, PolicyFIFO:
		return p, nil
	default:
		return "", fmt.Errorf("unknown worklist policy %q (want lifo or fifo)", s)
	}
}

// worklist is a slice-backed stack or queue of pending prompts.
type worklist struct {
	policy Policy
	items  []*prompt.Prompt
}

func newWorklist(policy Policy, first *prompt.Prompt) *worklist {
	return &worklist{policy: policy, items: []*prompt.Prompt{first}}
}

func (w *worklist) push(p *prompt.Prompt) { w.items = append(w.items, p) }

func (w *worklist) len() int { return len(w.items) }

func (w *worklist) pop() *prompt.Prompt {
	var p *prompt.Prompt
	if w.policy == PolicyFIFO {
		p = w.items[0]
		w.items[0] = nil
		w.items = w.items[1:]
		return p
	}
	last := len(w.items) - 1
	p = w.items[last]
	w.items[last] = nil
	w.items = w.items[:last]
	return p
}
