// Package completion adapts model backends to the generation loop. A Provider
// returns zero or more candidate completions for a prompt; every backend
// failure (transport, HTTP status, timeout, empty body) is logged and
// reported as an empty list so the loop can move on.
package completion

import (
	"context"
	"time"
)

// Provider produces candidate completions for text at temperature.
// Implementations never return an error; failure is an empty slice.
type Provider interface {
	Completions(ctx context.Context, text string, temperature float64) []string
}

// Func adapts a plain function to Provider.
type Func func(ctx context.Context, text string, temperature float64) []string

// Completions calls f.
func (f Func) Completions(ctx context.Context, text string, temperature float64) []string {
	return f(ctx, text, temperature)
}

// DefaultTimeout bounds one completion call when the caller configures none.
const DefaultTimeout = 5 * time.Minute

// SystemPrompt is sent as the system message to chat-style backends.
const SystemPrompt = "You write correct, self-contained unit tests. Reply with a single fenced code block containing the complete test file."

// withTimeout derives a bounded context; d <= 0 uses DefaultTimeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}
