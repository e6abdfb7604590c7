// Package coverage models Istanbul-style coverage summaries: per-metric
// totals, aggregation across runs, and parsing of the json-summary reporter
// output (coverage-summary.json).
package coverage

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
)

// Metric is one coverage dimension. Pct is 0..100.
type Metric struct {
	Total   int     `json:"total"`
	Covered int     `json:"covered"`
	Skipped int     `json:"skipped"`
	Pct     float64 `json:"pct"`
}

// Summary holds the four Istanbul dimensions.
type Summary struct {
	Statements Metric `json:"statements"`
	Branches   Metric `json:"branches"`
	Functions  Metric `json:"functions"`
	Lines      Metric `json:"lines"`
}

// Zero returns the all-zero summary reported when coverage could not be
// measured. Every Pct is 0; only Aggregate treats zero totals as full coverage.
func Zero() Summary { return Summary{} }

// pct returns covered/total as a percentage rounded to two decimals; 100 when total is 0.
func pct(covered, total int) float64 {
	if total <= 0 {
		return 100
	}
	return math.Round(float64(covered)/float64(total)*10000) / 100
}

func (m Metric) add(o Metric) Metric {
	return Metric{
		Total:   m.Total + o.Total,
		Covered: m.Covered + o.Covered,
		Skipped: m.Skipped + o.Skipped,
	}
}

func (m Metric) withPct() Metric {
	m.Pct = pct(m.Covered, m.Total)
	return m
}

// Aggregate sums Total, Covered, and Skipped per dimension and recomputes Pct.
// Zero totals give Pct 100, so Aggregate() with no arguments is full coverage.
func Aggregate(summaries ...Summary) Summary {
	var out Summary
	for _, s := range summaries {
		out.Statements = out.Statements.add(s.Statements)
		out.Branches = out.Branches.add(s.Branches)
		out.Functions = out.Functions.add(s.Functions)
		out.Lines = out.Lines.add(s.Lines)
	}
	out.Statements = out.Statements.withPct()
	out.Branches = out.Branches.withPct()
	out.Functions = out.Functions.withPct()
	out.Lines = out.Lines.withPct()
	return out
}

// String formats the summary as a single line, e.g.
// "statements 80.00% (4/5), branches 100.00% (0/0), ...".
func (s Summary) String() string {
	f := func(name string, m Metric) string {
		return fmt.Sprintf("%s %.2f%% (%d/%d)", name, m.Pct, m.Covered, m.Total)
	}
	return strings.Join([]string{
		f("statements", s.Statements),
		f("branches", s.Branches),
		f("functions", s.Functions),
		f("lines", s.Lines),
	}, ", ")
}

// ParseIstanbul parses json-summary output. When sourcePath is non-empty and
// an entry whose key equals it or ends with "/"+sourcePath exists, that entry
// is returned; otherwise the "total" entry. Pct is recomputed from counts.
func ParseIstanbul(data []byte, sourcePath string) (Summary, error) {
	var doc map[string]istanbulEntry
	if err := json.Unmarshal(data, &doc); err != nil {
		return Summary{}, fmt.Errorf("parse coverage summary: %w", err)
	}
	if sourcePath != "" {
		want := filepath.ToSlash(sourcePath)
		keys := make([]string, 0, len(doc))
		for k := range doc {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == "total" {
				continue
			}
			key := filepath.ToSlash(k)
			if key == want || strings.HasSuffix(key, "/"+want) {
				return doc[k].summary(), nil
			}
		}
	}
	total, ok := doc["total"]
	if !ok {
		return Summary{}, fmt.Errorf("parse coverage summary: no %q entry", "total")
	}
	return total.summary(), nil
}

// istanbulMetric omits pct: the reporter writes the string "Unknown" when total is 0.
type istanbulMetric struct {
	Total   int `json:"total"`
	Covered int `json:"covered"`
	Skipped int `json:"skipped"`
}

type istanbulEntry struct {
	Statements istanbulMetric `json:"statements"`
	Branches   istanbulMetric `json:"branches"`
	Functions  istanbulMetric `json:"functions"`
	Lines      istanbulMetric `json:"lines"`
}

func (e istanbulEntry) summary() Summary {
	conv := func(m istanbulMetric) Metric {
		return Metric{Total: m.Total, Covered: m.Covered, Skipped: m.Skipped}
	}
	return Aggregate(Summary{
		Statements: conv(e.Statements),
		Branches:   conv(e.Branches),
		Functions:  conv(e.Functions),
		Lines:      conv(e.Lines),
	})
}
