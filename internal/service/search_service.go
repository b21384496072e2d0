package service

import (
	"context"
	"fmt"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// SearchService answers similarity queries over a project's chunks.
type SearchService struct {
	chunks   port.ChunkStore
	embedder port.Embedder
}

// NewSearchService creates a new search service.
func NewSearchService(chunks port.ChunkStore, embedder port.Embedder) *SearchService {
	return &SearchService{chunks: chunks, embedder: embedder}
}

// Similar embeds query with the ingestion embedder and returns the top k chunks.
// A project without chunks yields an empty result without calling the embedder.
func (s *SearchService) Similar(ctx context.Context, projectID, query string, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || query == "" {
		return nil, nil
	}
	n, err := s.chunks.ProjectChunkCount(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.chunks.SearchSimilar(ctx, projectID, s.embedder.EmbeddingModel(), vec, k)
}
