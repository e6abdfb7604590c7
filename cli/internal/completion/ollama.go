package completion

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"utgen/cli/internal/ollama"
)

// OllamaOptions configure the Ollama provider.
type OllamaOptions struct {
	System  string        // Optional system prompt; "" sends none.
	NumCtx  int           // Context window passed as options.num_ctx; 0 uses the server default.
	Timeout time.Duration // Per-call bound; 0 uses DefaultTimeout.
	Logger  *slog.Logger
}

// Ollama requests one candidate per call from /api/generate.
type Ollama struct {
	client *ollama.Client
	model  string
	opts   OllamaOptions
	log    *slog.Logger
}

// NewOllama returns a provider backed by client and model.
func NewOllama(client *ollama.Client, model string, opts OllamaOptions) *Ollama {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Ollama{client: client, model: model, opts: opts, log: log}
}

// Completions implements Provider.
func (o *Ollama) Completions(ctx context.Context, text string, temperature float64) []string {
	ctx, cancel := withTimeout(ctx, o.opts.Timeout)
	defer cancel()
	res, err := o.client.Generate(ctx, o.model, o.opts.System, text, &ollama.GenerateOptions{
		Temperature: temperature,
		NumCtx:      o.opts.NumCtx,
	})
	if err != nil {
		o.log.Warn("completion failed", "provider", "ollama", "model", o.model, "temperature", temperature, "err", err)
		return nil
	}
	if strings.TrimSpace(res.Response) == "" {
		o.log.Warn("completion empty", "provider", "ollama", "model", o.model, "temperature", temperature)
		return nil
	}
	o.log.Debug("completion received", "provider", "ollama", "prompt_tokens", res.PromptEvalCount, "completion_tokens", res.EvalCount)
	return []string{res.Response}
}
