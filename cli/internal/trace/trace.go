// Package trace provides a small Tracer for dumping the generate-validate-refine
// loop (rendered prompts, raw candidates, runner outcomes) to stderr when
// --trace is set. No-op when the writer is nil.
package trace

import (
	"fmt"
	"io"
	"strings"
)

const prefix = "[utgen:trace]"

// Tracer writes sectioned trace output. When the underlying writer is nil, all methods no-op.
type Tracer struct {
	w io.Writer
}

// New returns a Tracer that writes to w. If w is nil, all methods no-op.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Enabled returns true if the tracer has a non-nil writer.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Section writes a section header: "\n[utgen:trace] === name ===\n"
func (t *Tracer) Section(name string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "\n%s === %s ===\n", prefix, name)
}

// Printf writes to the trace writer when enabled.
func (t *Tracer) Printf(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, format, args...)
}

// Block writes a titled multi-line body, each line indented by two spaces,
// so prompt and candidate text stays readable between section headers.
func (t *Tracer) Block(title, body string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "%s --- %s ---\n", prefix, title)
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		fmt.Fprintf(t.w, "  %s\n", line)
	}
}
