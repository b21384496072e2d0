package port

import "context"

// Embedder turns text into a vector.
type Embedder interface {
	// EmbeddingModel identifies the model; vectors from different models are never compared.
	EmbeddingModel() string

	Embed(ctx context.Context, text string) ([]float32, error)
}

// Message is one turn of a prior conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is a single completion request.
type GenerateRequest struct {
	System  string
	Prompt  string
	Image   []byte
	History []Message
}

// Generator produces a text completion.
type Generator interface {
	ModelName() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
