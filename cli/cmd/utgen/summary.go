package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"utgen/cli/internal/history"
	"utgen/cli/internal/report"
	"utgen/cli/internal/session"
)

var (
	colorAccent  = lipgloss.Color("#2CD7C7")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#6C7A89")

	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleOK      = lipgloss.NewStyle().Foreground(colorAccent)
	styleWarning = lipgloss.NewStyle().Foreground(colorWarning)
	styleError   = lipgloss.NewStyle().Foreground(colorError)
	styleMuted   = lipgloss.NewStyle().Foreground(colorMuted)
	styleBox     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)
)

// renderSummary formats a finished run for the terminal.
func renderSummary(r *report.Report) string {
	var b strings.Builder
	b.WriteString(styleTitle.Render("utgen run "+r.RunID) + "\n")
	head := fmt.Sprintf("mode %s, head %s", r.Mode, r.HeadRef)
	if r.BaseRef != "" {
		head += ", base " + r.BaseRef
	}
	b.WriteString(styleMuted.Render(head) + "\n\n")

	if len(r.Files) == 0 {
		b.WriteString("No source files matched.\n")
	}
	for _, f := range r.Files {
		passed := 0
		for _, fn := range f.Functions {
			if fn.Passed {
				passed++
			}
		}
		line := fmt.Sprintf("%s: %d test(s), %d/%d function(s)", f.Path, f.Tests, passed, len(f.Functions))
		switch {
		case f.Error != "":
			b.WriteString(styleError.Render("✗ "+line) + "  " + f.Error + "\n")
		case f.Tests == 0:
			b.WriteString(styleWarning.Render("○ "+line) + "\n")
		default:
			b.WriteString(styleOK.Render("✓ "+line))
			if f.TestPath != "" {
				b.WriteString(styleMuted.Render(" -> " + f.TestPath))
			}
			b.WriteString("\n")
		}
	}

	totals := []string{
		fmt.Sprintf("tests generated: %d", r.TestsGenerated),
		fmt.Sprintf("functions covered: %d/%d", r.FunctionsPassed, r.FunctionsTotal),
		fmt.Sprintf("attempts: %d (%d passed, %d failed)", r.Attempts.Total, r.Attempts.Passed, r.Attempts.Failed),
		fmt.Sprintf("prompts: %d, completions: %d", r.Prompts, r.Completions),
		"coverage: " + r.Coverage.String(),
		"duration: " + r.Duration().Round(time.Millisecond).String(),
	}
	b.WriteString("\n" + styleBox.Render(strings.Join(totals, "\n")))
	if r.DryRun {
		b.WriteString("\n" + styleWarning.Render("Dry run: no tests were written."))
	}
	return b.String()
}

// renderRecord formats one history record as key: value lines.
func renderRecord(rec history.Record) string {
	status := rec.Status
	switch rec.Status {
	case session.StatusSucceeded:
		status = styleOK.Render(status)
	case session.StatusFailed:
		status = styleError.Render(status)
	case session.StatusNoTests:
		status = styleWarning.Render(status)
	}
	lines := []string{
		styleTitle.Render("last run " + rec.RunID),
		"status: " + status,
		"mode: " + rec.Mode,
		"head: " + rec.HeadRef,
	}
	if rec.BaseRef != "" {
		lines = append(lines, "base: "+rec.BaseRef)
	}
	lines = append(lines,
		"finished_at: "+rec.FinishedAt.Format(time.RFC3339),
		fmt.Sprintf("duration: %.1fs", rec.DurationSeconds),
		fmt.Sprintf("files: %d", rec.Files),
		fmt.Sprintf("tests_generated: %d", rec.TestsGenerated),
		fmt.Sprintf("attempts: %d (%d passed)", rec.Attempts.Total, rec.Attempts.Passed),
		"coverage: "+rec.Coverage.String(),
	)
	if rec.Config != nil {
		lines = append(lines, fmt.Sprintf("model: %s/%s", rec.Config.Provider, rec.Config.Model))
	}
	return strings.Join(lines, "\n")
}
