package domain

import "time"

// Chunk is a contiguous slice of one file's content.
// Byte offsets are half-open; lines are 1-based and inclusive.
type Chunk struct {
	FilePath  string
	Ordinal   int
	Content   string
	StartByte int
	EndByte   int
	StartLine int
	EndLine   int
}

// ChunkMetadata is the structured metadata persisted next to a chunk.
type ChunkMetadata struct {
	Ordinal   int    `json:"ordinal"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Language  string `json:"language"`
}

// EmbeddingChunk is a persisted chunk with its embedding vector.
type EmbeddingChunk struct {
	ID             string        `json:"id"              db:"id"`
	ProjectID      string        `json:"project_id"      db:"project_id"`
	FilePath       string        `json:"file_path"       db:"file_path"`
	Ordinal        int           `json:"ordinal"         db:"ordinal"`
	Content        string        `json:"content"         db:"content"`
	ContentHash    string        `json:"content_hash"    db:"content_hash"`
	EmbeddingModel string        `json:"embedding_model" db:"embedding_model"`
	Vector         []float32     `json:"-"               db:"embedding"`
	Metadata       ChunkMetadata `json:"metadata"        db:"metadata"`
	CreatedAt      time.Time     `json:"created_at"      db:"created_at"`
}

// ScoredChunk is a chunk returned by a similarity search.
// Similarity is cosine similarity, higher is closer.
type ScoredChunk struct {
	EmbeddingChunk
	Similarity float64 `json:"similarity"`
}
