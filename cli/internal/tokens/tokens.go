// Package tokens estimates prompt size against the model context window.
// Estimation is byte-based (about four bytes per token for code and English),
// which is close enough to decide when a prompt risks truncation.
package tokens

import (
	"fmt"
	"math"
)

const charsPerToken = 4

// DefaultResponseReserve is the number of tokens kept free for the generated
// test when checking a prompt against the context limit.
const DefaultResponseReserve = 2048

// DefaultWarnThreshold is the fraction of the context limit at which a
// prompt is reported as too large.
const DefaultWarnThreshold = 0.9

// Estimate returns ceil(len(text)/4); 0 for empty text.
func Estimate(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// Budget is the context window a rendered prompt must fit.
// A ContextLimit <= 0 disables checking.
type Budget struct {
	ContextLimit    int
	WarnThreshold   float64 // 0 uses DefaultWarnThreshold.
	ResponseReserve int     // 0 uses DefaultResponseReserve; negative means none.
}

// Check estimates text and returns a warning when the estimate plus the
// response reserve reaches the warn threshold of the limit. The returned
// estimate is valid even when warning is "".
func (b Budget) Check(text string) (estimate int, warning string) {
	estimate = Estimate(text)
	if b.ContextLimit <= 0 {
		return estimate, ""
	}
	threshold := b.WarnThreshold
	if threshold <= 0 {
		threshold = DefaultWarnThreshold
	}
	reserve := b.ResponseReserve
	switch {
	case reserve == 0:
		reserve = DefaultResponseReserve
	case reserve < 0:
		reserve = 0
	}
	if reserve > math.MaxInt-estimate {
		return estimate, fmt.Sprintf("token estimate overflow (prompt %d + reserve %d)", estimate, reserve)
	}
	total := estimate + reserve
	limit := int(math.Ceil(float64(b.ContextLimit) * threshold))
	if total < limit {
		return estimate, ""
	}
	return estimate, fmt.Sprintf("estimated tokens %d (prompt %d + reserve %d) exceeds %.0f%% of context limit %d",
		total, estimate, reserve, threshold*100, b.ContextLimit)
}
