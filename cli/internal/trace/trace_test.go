package trace

import (
	"bytes"
	"strings"
	"testing"
)

func TestEnabled(t *testing.T) {
	t.Parallel()
	var nilTracer *Tracer
	if nilTracer.Enabled() {
		t.Error("(*Tracer)(nil).Enabled() = true, want false")
	}
	if New(nil).Enabled() {
		t.Error("Enabled() with nil writer = true, want false")
	}
	if !New(&bytes.Buffer{}).Enabled() {
		t.Error("Enabled() with writer = false, want true")
	}
}

func TestDisabled_noOutputNoPanic(t *testing.T) {
	t.Parallel()
	tr := New(nil)
	tr.Section("Prompt")
	tr.Printf("x=%d\n", 1)
	tr.Block("Candidate", "a\nb")
}

func TestSection_writesHeader(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	New(&buf).Section("add @ 0.2")
	if got, want := buf.String(), "\n[utgen:trace] === add @ 0.2 ===\n"; got != want {
		t.Errorf("Section output = %q, want %q", got, want)
	}
}

func TestBlock_indentsBody(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	New(&buf).Block("Rendered prompt", "line one\nline two\n")
	out := buf.String()
	if !strings.HasPrefix(out, "[utgen:trace] --- Rendered prompt ---\n") {
		t.Errorf("missing block title: %q", out)
	}
	if !strings.Contains(out, "  line one\n  line two\n") {
		t.Errorf("body not indented: %q", out)
	}
}
