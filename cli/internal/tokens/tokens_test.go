package tokens

import (
	"strings"
	"testing"
)

func TestEstimate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"one_char", "x", 1},
		{"four_chars", "abcd", 1},
		{"five_chars", "abcde", 2},
		{"100_chars", strings.Repeat("x", 100), 25},
		{"unicode_multi_byte", "café", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestBudget_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		budget       Budget
		text         string
		wantEstimate int
		wantWarn     bool
		wantContains []string
	}{
		{"disabled", Budget{}, strings.Repeat("x", 400), 100, false, nil},
		{"under", Budget{ContextLimit: 32768}, strings.Repeat("x", 400), 100, false, nil},
		{"over_with_default_reserve", Budget{ContextLimit: 2000}, strings.Repeat("x", 40), 10, true, []string{"2058", "reserve 2048", "90%", "2000"}},
		{"no_reserve_at_threshold", Budget{ContextLimit: 100, WarnThreshold: 0.5, ResponseReserve: -1}, strings.Repeat("x", 200), 50, true, []string{"prompt 50", "reserve 0", "50%"}},
		{"no_reserve_under_threshold", Budget{ContextLimit: 100, WarnThreshold: 0.5, ResponseReserve: -1}, strings.Repeat("x", 196), 49, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			est, warn := tt.budget.Check(tt.text)
			if est != tt.wantEstimate {
				t.Errorf("estimate = %d, want %d", est, tt.wantEstimate)
			}
			if (warn != "") != tt.wantWarn {
				t.Fatalf("warning = %q, wantWarn %v", warn, tt.wantWarn)
			}
			for _, s := range tt.wantContains {
				if !strings.Contains(warn, s) {
					t.Errorf("warning %q missing %q", warn, s)
				}
			}
		})
	}
}
