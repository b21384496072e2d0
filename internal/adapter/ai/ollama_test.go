package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/port"
)

func newProvider(t *testing.T, h http.HandlerFunc) *OllamaProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOllamaProvider(
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "bge-m3", Token: "embed-tok"},
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "qwen3"},
	)
}

func TestOllamaProvider_Embed(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		assert.Equal(t, "Bearer embed-tok", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "bge-m3", body["model"])
		_, _ = w.Write([]byte(`{"embeddings":[[0.1,0.2,0.3]]}`))
	})

	vec, err := p.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "bge-m3", p.EmbeddingModel())
}

func TestOllamaProvider_EmbedMalformed(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	})

	_, err := p.Embed(context.Background(), "hello")

	assert.ErrorIs(t, err, port.ErrMalformedResponse)
}

func TestOllamaProvider_Generate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string   `json:"role"`
			Content string   `json:"content"`
			Images  []string `json:"images"`
		} `json:"messages"`
	}
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"it is a CLI"}}`))
	})

	out, err := p.WithChatModel("llama3").Generate(context.Background(), port.GenerateRequest{
		System:  "be brief",
		Prompt:  "what is this?",
		Image:   []byte("png"),
		History: []port.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "it is a CLI", out)
	assert.Equal(t, "llama3", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Equal(t, []string{"cG5n"}, got.Messages[3].Images)
	assert.Equal(t, "qwen3", p.ModelName())
}

func TestOllamaProvider_RateLimited(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	})

	_, err := p.Generate(context.Background(), port.GenerateRequest{Prompt: "x"})

	assert.ErrorIs(t, err, port.ErrRateLimited)
}
