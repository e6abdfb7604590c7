package completion

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utgen/cli/internal/ollama"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFunc(t *testing.T) {
	t.Parallel()
	var p Provider = Func(func(_ context.Context, text string, temp float64) []string {
		return []string{text}
	})
	assert.Equal(t, []string{"x"}, p.Completions(context.Background(), "x", 0.2))
}

func TestOllama_Completions(t *testing.T) {
	t.Parallel()
	var gotTemp float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Prompt  string                 `json:"prompt"`
			Options map[string]interface{} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotTemp, _ = body.Options["temperature"].(float64)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"` + "```ts\\ntest\\n```" + `","done":true}`))
	}))
	defer srv.Close()

	p := NewOllama(ollama.NewClient(srv.URL, srv.Client()), "m", OllamaOptions{Logger: quietLogger()})
	got := p.Completions(context.Background(), "write a test", 0.8)
	require.Len(t, got, 1)
	assert.Equal(t, "```ts\ntest\n```", got[0])
	assert.Equal(t, 0.8, gotTemp)
}

func TestOllama_failSoft(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server_error", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"bad_request", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"empty_response", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"response":"  ","done":true}`)) }},
		{"malformed", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`not json`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			p := NewOllama(ollama.NewClient(srv.URL, srv.Client()), "m", OllamaOptions{Logger: quietLogger()})
			assert.Empty(t, p.Completions(context.Background(), "x", 0.2))
		})
	}
}

func TestOllama_timeoutIsEmpty(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	p := NewOllama(ollama.NewClient(srv.URL, srv.Client()), "m", OllamaOptions{Timeout: 50 * time.Millisecond, Logger: quietLogger()})
	start := time.Now()
	assert.Empty(t, p.Completions(context.Background(), "x", 0.2))
	assert.Less(t, time.Since(start), time.Second)
}

func TestOllama_unreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	p := NewOllama(ollama.NewClient(url, nil), "m", OllamaOptions{Logger: quietLogger()})
	assert.Empty(t, p.Completions(context.Background(), "x", 0.2))
}

func chatServer(t *testing.T, contents []string, gotReq *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if gotReq != nil {
			_ = json.NewDecoder(r.Body).Decode(gotReq)
		}
		choices := make([]map[string]interface{}, 0, len(contents))
		for i, c := range contents {
			choices = append(choices, map[string]interface{}{
				"index":         i,
				"message":       map[string]string{"role": "assistant", "content": c},
				"finish_reason": "stop",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"model":   "m",
			"choices": choices,
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestOpenAI_Completions(t *testing.T) {
	t.Parallel()
	var req map[string]interface{}
	srv := chatServer(t, []string{"first", "", "second"}, &req)
	defer srv.Close()

	p, err := NewOpenAI(OpenAIConfig{
		APIKey:     "k",
		BaseURL:    srv.URL + "/v1/",
		Model:      "m",
		Candidates: 3,
		System:     SystemPrompt,
		Logger:     quietLogger(),
	})
	require.NoError(t, err)
	got := p.Completions(context.Background(), "write a test", 0.5)
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Equal(t, "m", req["model"])
	assert.Equal(t, 3.0, req["n"])
	assert.Equal(t, 0.5, req["temperature"])
	msgs, ok := req["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, msgs, 2)
}

func TestOpenAI_Completions_zeroTemperatureSent(t *testing.T) {
	t.Parallel()
	var req map[string]interface{}
	srv := chatServer(t, []string{"only"}, &req)
	defer srv.Close()

	p, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "m", Logger: quietLogger()})
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, p.Completions(context.Background(), "x", 0))
	temp, ok := req["temperature"].(float64)
	require.True(t, ok, "temperature must be present in the request: %v", req)
	assert.Greater(t, temp, 0.0)
	assert.Less(t, temp, 1e-6)
}

func TestOpenAI_failSoft(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()
	p, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "m", Logger: quietLogger()})
	require.NoError(t, err)
	assert.Empty(t, p.Completions(context.Background(), "x", 0.2))

	empty := chatServer(t, nil, nil)
	defer empty.Close()
	p, err = NewOpenAI(OpenAIConfig{BaseURL: empty.URL + "/v1", Model: "m", Logger: quietLogger()})
	require.NoError(t, err)
	assert.Empty(t, p.Completions(context.Background(), "x", 0.2))
}

func TestNewOpenAI_requiresModel(t *testing.T) {
	t.Parallel()
	_, err := NewOpenAI(OpenAIConfig{})
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestOpenAI_Models(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"gpt-4o-mini","object":"model"},{"id":"m","object":"model"}]}`))
	}))
	defer srv.Close()
	p, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL + "/v1", Model: "m", Logger: quietLogger()})
	require.NoError(t, err)
	ids, err := p.Models(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gpt-4o-mini", "m"}, ids)

	srv.Close()
	_, err = p.Models(context.Background())
	assert.Error(t, err)
}
