// Package ollama provides an HTTP client for the Ollama API: health/model
// check (/api/tags) and non-streaming completion (/api/generate).
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"utgen/cli/internal/version"
)

// _defaultTimeout bounds a single HTTP round trip. Generation calls are
// additionally bounded by the caller's context deadline.
const _defaultTimeout = 10 * time.Minute

// maxErrorBody caps how much of a non-2xx response body is echoed in errors.
const maxErrorBody = 512

// ErrUnreachable indicates the Ollama server could not be reached (connection refused, timeout, or 5xx).
var ErrUnreachable = errors.New("ollama server unreachable")

// ErrBadRequest indicates Ollama rejected the request (4xx), e.g. unknown model.
var ErrBadRequest = errors.New("ollama bad request")

// Client calls the Ollama API. Zero value is not valid; use NewClient.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// CheckResult is the result of a health/model check.
type CheckResult struct {
	Reachable    bool     // Server responded with 200.
	ModelPresent bool     // Requested model name appears in the tags list.
	ModelNames   []string // All model names from /api/tags (for diagnostics).
}

// GenerateOptions are model runtime options sent in the "options" object.
// Temperature is always sent (0 is a valid sampling temperature); NumCtx is
// omitted when zero so the server default applies.
type GenerateOptions struct {
	Temperature float64
	NumCtx      int
}

// GenerateResult is the parsed non-streaming /api/generate response.
type GenerateResult struct {
	Response        string
	PromptEvalCount int
	EvalCount       int
	EvalDurationNs  int64
}

// NewClient builds an Ollama client. baseURL is the API root (e.g. http://localhost:11434).
// If httpClient is nil, a default client is used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: _defaultTimeout}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Check verifies the server is reachable and whether the given model is present.
// It GETs /api/tags and parses the response. On connection/HTTP error returns ErrUnreachable (via %w).
func (c *Client) Check(ctx context.Context, model string) (*CheckResult, error) {
	url := c.baseURL + "/api/tags"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ollama tags request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama tags: %w", errors.Join(ErrUnreachable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags: %w: HTTP %d", ErrUnreachable, resp.StatusCode)
	}
	var body tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ollama tags: parse response: %w", err)
	}
	names := make([]string, 0, len(body.Models))
	for _, m := range body.Models {
		names = append(names, m.Name)
	}
	return &CheckResult{Reachable: true, ModelPresent: slices.Contains(names, model), ModelNames: names}, nil
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	EvalDuration    int64  `json:"eval_duration"`
	Error           string `json:"error"`
}

// Generate POSTs a non-streaming /api/generate request and returns the full
// response text. system may be empty. opts may be nil (server defaults).
// 4xx responses wrap ErrBadRequest; transport errors and 5xx wrap ErrUnreachable.
func (c *Client) Generate(ctx context.Context, model, system, prompt string, opts *GenerateOptions) (*GenerateResult, error) {
	payload := generateRequest{
		Model:  model,
		Prompt: prompt,
		System: system,
		Stream: false,
	}
	if opts != nil {
		payload.Options = map[string]interface{}{"temperature": opts.Temperature}
		if opts.NumCtx > 0 {
			payload.Options["num_ctx"] = opts.NumCtx
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ollama generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", errors.Join(ErrUnreachable, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		sentinel := ErrUnreachable
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			sentinel = ErrBadRequest
		}
		return nil, fmt.Errorf("ollama generate: %w: HTTP %d: %s", sentinel, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var body generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("ollama generate: parse response: %w", err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("ollama generate: %s", body.Error)
	}
	return &GenerateResult{
		Response:        body.Response,
		PromptEvalCount: body.PromptEvalCount,
		EvalCount:       body.EvalCount,
		EvalDurationNs:  body.EvalDuration,
	}, nil
}
