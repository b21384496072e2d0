package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// MemoryStore implements port.ChunkStore and port.ProjectStore in process.
// Vector ranking is delegated to one chromem-go collection per project; an
// index of chunk records answers path, tree and time queries.
type MemoryStore struct {
	mu        sync.RWMutex
	db        *chromem.DB
	dimension int
	projects  map[string]domain.Project
	chunks    map[string]map[string]domain.EmbeddingChunk // project -> chunk id -> chunk
	now       func() time.Time
}

// NewMemoryStore creates an empty store. dimension <= 0 disables the dimension check.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		db:        chromem.NewDB(),
		dimension: dimension,
		projects:  map[string]domain.Project{},
		chunks:    map[string]map[string]domain.EmbeddingChunk{},
		now:       time.Now,
	}
}

var errEmbeddingRequired = errors.New("memory store: embeddings must be supplied by the caller")

// noEmbedding rejects text embedding; every document and query carries its own vector.
func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errEmbeddingRequired
}

func collectionName(projectID string) string {
	return "p_" + projectID
}

const metaModel = "embedding_model"

// --- Projects ---

// CreateProject stores a project, filling CreatedAt.
func (m *MemoryStore) CreateProject(_ context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[p.ID]; ok {
		return fmt.Errorf("create project: duplicate id %s", p.ID)
	}
	p.CreatedAt = m.now()
	m.projects[p.ID] = *p
	return nil
}

// GetProject returns a project by ID.
func (m *MemoryStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, fmt.Errorf("get project %s: %w", id, port.ErrProjectNotFound)
	}
	return &p, nil
}

// ListProjects returns an owner's projects, newest first.
func (m *MemoryStore) ListProjects(_ context.Context, ownerID string) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Project) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// DeleteProject removes a project together with its chunks.
func (m *MemoryStore) DeleteProject(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.projects[id]; !ok {
		return fmt.Errorf("delete project %s: %w", id, port.ErrProjectNotFound)
	}
	delete(m.projects, id)
	return m.dropChunksLocked(id)
}

// --- Chunks ---

func (m *MemoryStore) collection(projectID string) (*chromem.Collection, error) {
	col, err := m.db.GetOrCreateCollection(collectionName(projectID), nil, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", projectID, err)
	}
	return col, nil
}

func (m *MemoryStore) addLocked(ctx context.Context, col *chromem.Collection, c domain.EmbeddingChunk) error {
	if m.dimension > 0 && len(c.Vector) != m.dimension {
		return fmt.Errorf("chunk %s#%d has %d dims, want %d: %w",
			c.FilePath, c.Ordinal, len(c.Vector), m.dimension, port.ErrDimensionMismatch)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = m.now()
	}
	err := col.AddDocument(ctx, chromem.Document{
		ID:        c.ID,
		Metadata:  map[string]string{metaModel: c.EmbeddingModel, "file_path": c.FilePath},
		Embedding: slices.Clone(c.Vector),
		Content:   c.Content,
	})
	if err != nil {
		return fmt.Errorf("add chunk %s#%d: %w", c.FilePath, c.Ordinal, err)
	}
	idx, ok := m.chunks[c.ProjectID]
	if !ok {
		idx = map[string]domain.EmbeddingChunk{}
		m.chunks[c.ProjectID] = idx
	}
	idx[c.ID] = c
	return nil
}

// InsertChunks appends chunks, stopping at the first failure.
func (m *MemoryStore) InsertChunks(ctx context.Context, chunks []domain.EmbeddingChunk) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		col, err := m.collection(c.ProjectID)
		if err != nil {
			return i, err
		}
		if err := m.addLocked(ctx, col, c); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// ReplaceFileChunks swaps a file's chunks under the store lock.
func (m *MemoryStore) ReplaceFileChunks(ctx context.Context, projectID, filePath string, chunks []domain.EmbeddingChunk) (int, error) {
	for _, c := range chunks {
		if m.dimension > 0 && len(c.Vector) != m.dimension {
			return 0, fmt.Errorf("chunk %s#%d has %d dims, want %d: %w",
				c.FilePath, c.Ordinal, len(c.Vector), m.dimension, port.ErrDimensionMismatch)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	col, err := m.collection(projectID)
	if err != nil {
		return 0, err
	}

	var stale []string
	for id, c := range m.chunks[projectID] {
		if c.FilePath == filePath {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := col.Delete(ctx, nil, nil, stale...); err != nil {
			return 0, fmt.Errorf("delete file chunks %s: %w", filePath, err)
		}
		for _, id := range stale {
			delete(m.chunks[projectID], id)
		}
	}

	for i, c := range chunks {
		if err := m.addLocked(ctx, col, c); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// FileHashes returns the stored content hash of every file in the project.
func (m *MemoryStore) FileHashes(_ context.Context, projectID string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hashes := map[string]string{}
	for _, c := range m.chunks[projectID] {
		if h, ok := hashes[c.FilePath]; !ok || c.ContentHash < h {
			hashes[c.FilePath] = c.ContentHash
		}
	}
	return hashes, nil
}

// SearchSimilar ranks the project's chunks of one embedding model by cosine similarity.
func (m *MemoryStore) SearchSimilar(ctx context.Context, projectID, model string, vector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	if m.dimension > 0 && len(vector) != m.dimension {
		return nil, fmt.Errorf("query has %d dims, want %d: %w", len(vector), m.dimension, port.ErrDimensionMismatch)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	available := 0
	for _, c := range m.chunks[projectID] {
		if c.EmbeddingModel == model {
			available++
		}
	}
	if available == 0 {
		return nil, nil
	}

	col := m.db.GetCollection(collectionName(projectID), noEmbedding)
	if col == nil {
		return nil, nil
	}

	// Rank every candidate so ties are broken by creation time before the cut.
	results, err := col.QueryEmbedding(ctx, slices.Clone(vector), available, map[string]string{metaModel: model}, nil)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}

	out := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		c, ok := m.chunks[projectID][r.ID]
		if !ok {
			continue
		}
		c.Vector = nil
		out = append(out, domain.ScoredChunk{EmbeddingChunk: c, Similarity: float64(r.Similarity)})
	}
	slices.SortStableFunc(out, func(a, b domain.ScoredChunk) int {
		return cmp.Or(
			cmp.Compare(b.Similarity, a.Similarity),
			a.CreatedAt.Compare(b.CreatedAt),
			cmp.Compare(a.FilePath, b.FilePath),
			cmp.Compare(a.Ordinal, b.Ordinal),
		)
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// FindByPathPatterns returns chunks whose path matches any LIKE pattern, by path then ordinal.
func (m *MemoryStore) FindByPathPatterns(_ context.Context, projectID string, patterns []string, limit int) ([]domain.EmbeddingChunk, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []domain.EmbeddingChunk
	for _, c := range m.chunks[projectID] {
		if matchesAny(patterns, c.FilePath) {
			c.Vector = nil
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.EmbeddingChunk) int {
		return cmp.Or(cmp.Compare(a.FilePath, b.FilePath), cmp.Compare(a.Ordinal, b.Ordinal))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DistinctPaths lists unique file paths in byte order.
func (m *MemoryStore) DistinctPaths(_ context.Context, projectID string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := map[string]struct{}{}
	for _, c := range m.chunks[projectID] {
		seen[c.FilePath] = struct{}{}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	return paths, nil
}

// LastSyncedAt returns the newest chunk creation time, or nil.
func (m *MemoryStore) LastSyncedAt(_ context.Context, projectID string) (*time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *time.Time
	for _, c := range m.chunks[projectID] {
		if last == nil || c.CreatedAt.After(*last) {
			t := c.CreatedAt
			last = &t
		}
	}
	return last, nil
}

// ProjectChunkCount returns the number of stored chunks for the project.
func (m *MemoryStore) ProjectChunkCount(_ context.Context, projectID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks[projectID]), nil
}

// DeleteProjectChunks drops the project's collection and record index.
func (m *MemoryStore) DeleteProjectChunks(_ context.Context, projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropChunksLocked(projectID)
}

func (m *MemoryStore) dropChunksLocked(projectID string) error {
	delete(m.chunks, projectID)
	if err := m.db.DeleteCollection(collectionName(projectID)); err != nil {
		return fmt.Errorf("drop collection %s: %w", projectID, err)
	}
	return nil
}
