package completion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // "" uses the public OpenAI endpoint.
	Model      string
	Candidates int // Choices requested per call (N); values < 1 mean 1.
	System     string
	Timeout    time.Duration
	Logger     *slog.Logger
}

// ErrNoModel is returned by NewOpenAI when cfg.Model is empty.
var ErrNoModel = errors.New("openai provider: model is required")

// OpenAI requests cfg.Candidates choices per chat completion call.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
	log    *slog.Logger
}

// NewOpenAI builds the provider. Any OpenAI-compatible server (vLLM,
// llama.cpp, LM Studio) works by setting BaseURL.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, ErrNoModel
	}
	if cfg.Candidates < 1 {
		cfg.Candidates = 1
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &OpenAI{client: openai.NewClientWithConfig(oc), cfg: cfg, log: log}, nil
}

// Completions implements Provider. Empty choices are dropped.
func (o *OpenAI) Completions(ctx context.Context, text string, temperature float64) []string {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	var msgs []openai.ChatCompletionMessage
	if o.cfg.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.cfg.System})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.cfg.Model,
		Messages:    msgs,
		Temperature: wireTemperature(temperature),
		N:           o.cfg.Candidates,
	})
	if err != nil {
		o.log.Warn("completion failed", "provider", "openai", "model", o.cfg.Model, "temperature", temperature, "err", err)
		return nil
	}
	out := make([]string, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		if strings.TrimSpace(c.Message.Content) != "" {
			out = append(out, c.Message.Content)
		}
	}
	if len(out) == 0 {
		o.log.Warn("completion empty", "provider", "openai", "model", o.cfg.Model, "temperature", temperature)
		return nil
	}
	o.log.Debug("completion received", "provider", "openai", "choices", len(out), "prompt_tokens", resp.Usage.PromptTokens)
	return out
}

// wireTemperature converts temperature for the request. The client omits a
// zero temperature, which servers read as their default (1.0), so zero is sent
// as the smallest positive float32 instead.
func wireTemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// Models lists the model IDs the endpoint serves.
func (o *OpenAI) Models(ctx context.Context) ([]string, error) {
	ctx, cancel := withTimeout(ctx, o.cfg.Timeout)
	defer cancel()
	list, err := o.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("openai list models: %w", err)
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
