package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

const testModel = "test-embed"

func chunk(projectID, path string, ordinal int, vec ...float32) domain.EmbeddingChunk {
	return domain.EmbeddingChunk{
		ID:             path + "#" + string(rune('a'+ordinal)),
		ProjectID:      projectID,
		FilePath:       path,
		Ordinal:        ordinal,
		Content:        "content of " + path,
		ContentHash:    "h-" + path,
		EmbeddingModel: testModel,
		Vector:         vec,
	}
}

func newStoreWithProject(t *testing.T) (*MemoryStore, string) {
	t.Helper()
	s := NewMemoryStore(3)
	p := &domain.Project{ID: "p1", OwnerID: "u1", Name: "demo"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return s, p.ID
}

func TestMemoryStore_SearchSimilar_FewerThanK(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()
	_, err := s.InsertChunks(ctx, []domain.EmbeddingChunk{
		chunk(pid, "a.go", 0, 1, 0, 0),
		chunk(pid, "b.go", 0, 0, 1, 0),
	})
	require.NoError(t, err)

	got, err := s.SearchSimilar(ctx, pid, testModel, []float32{1, 0.1, 0}, 3)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.go", got[0].FilePath)
	assert.GreaterOrEqual(t, got[0].Similarity, got[1].Similarity)
}

func TestMemoryStore_SearchSimilar_TiesGoToEarliest(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var chunks []domain.EmbeddingChunk
	for i := 7; i >= 0; i-- {
		c := chunk(pid, fmt.Sprintf("f%02d.go", i), 0, 1, 1, 0)
		c.CreatedAt = base.Add(time.Duration(i) * time.Second)
		chunks = append(chunks, c)
	}
	_, err := s.InsertChunks(ctx, chunks)
	require.NoError(t, err)

	for range 20 {
		got, err := s.SearchSimilar(ctx, pid, testModel, []float32{1, 1, 0}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "f00.go", got[0].FilePath)
		assert.Equal(t, "f01.go", got[1].FilePath)
	}
}

func TestMemoryStore_SearchSimilar_EmptyAndZeroK(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()

	got, err := s.SearchSimilar(ctx, pid, testModel, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = s.InsertChunks(ctx, []domain.EmbeddingChunk{chunk(pid, "a.go", 0, 1, 0, 0)})
	require.NoError(t, err)

	got, err = s.SearchSimilar(ctx, pid, testModel, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_SearchSimilar_IsolatesModels(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()
	other := chunk(pid, "old.go", 0, 1, 0, 0)
	other.EmbeddingModel = "legacy-embed"
	_, err := s.InsertChunks(ctx, []domain.EmbeddingChunk{other, chunk(pid, "new.go", 0, 0, 1, 0)})
	require.NoError(t, err)

	got, err := s.SearchSimilar(ctx, pid, testModel, []float32{1, 0, 0}, 5)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new.go", got[0].FilePath)
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	s, pid := newStoreWithProject(t)

	_, err := s.InsertChunks(context.Background(), []domain.EmbeddingChunk{chunk(pid, "a.go", 0, 1, 0)})

	assert.ErrorIs(t, err, port.ErrDimensionMismatch)
}

func TestMemoryStore_ReplaceFileChunks(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()
	_, err := s.InsertChunks(ctx, []domain.EmbeddingChunk{
		chunk(pid, "a.go", 0, 1, 0, 0),
		chunk(pid, "a.go", 1, 1, 1, 0),
		chunk(pid, "b.go", 0, 0, 1, 0),
	})
	require.NoError(t, err)

	replacement := chunk(pid, "a.go", 0, 0, 0, 1)
	replacement.ID = "a.go#new"
	replacement.ContentHash = "h-a2"
	n, err := s.ReplaceFileChunks(ctx, pid, "a.go", []domain.EmbeddingChunk{replacement})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := s.ProjectChunkCount(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	hashes, err := s.FileHashes(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.go": "h-a2", "b.go": "h-b.go"}, hashes)

	got, err := s.SearchSimilar(ctx, pid, testModel, []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.go#new", got[0].ID)
}

func TestMemoryStore_FindByPathPatterns(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()
	_, err := s.InsertChunks(ctx, []domain.EmbeddingChunk{
		chunk(pid, "src/index.js", 1, 1, 0, 0),
		chunk(pid, "README.md", 0, 1, 0, 0),
		chunk(pid, "src/index.js", 0, 1, 0, 0),
		chunk(pid, "lib/util.js", 0, 1, 0, 0),
	})
	require.NoError(t, err)

	got, err := s.FindByPathPatterns(ctx, pid, []string{"%readme.md", "%index.%"}, 0)

	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "README.md", got[0].FilePath)
	assert.Equal(t, "src/index.js", got[1].FilePath)
	assert.Equal(t, 0, got[1].Ordinal)
	assert.Equal(t, 1, got[2].Ordinal)
}

func TestMemoryStore_DistinctPathsAndLastSynced(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()

	last, err := s.LastSyncedAt(ctx, pid)
	require.NoError(t, err)
	assert.Nil(t, last)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	_, err = s.InsertChunks(ctx, []domain.EmbeddingChunk{
		chunk(pid, "b.go", 0, 1, 0, 0),
		chunk(pid, "B.go", 0, 1, 0, 0),
		chunk(pid, "a.go", 0, 1, 0, 0),
		chunk(pid, "a.go", 1, 1, 0, 0),
	})
	require.NoError(t, err)

	paths, err := s.DistinctPaths(ctx, pid, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"B.go", "a.go", "b.go"}, paths)

	paths, err = s.DistinctPaths(ctx, pid, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"B.go", "a.go"}, paths)

	last, err = s.LastSyncedAt(ctx, pid)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, base.Add(4*time.Minute), *last)
}

func TestMemoryStore_DeleteProjectCascades(t *testing.T) {
	s, pid := newStoreWithProject(t)
	ctx := context.Background()
	_, err := s.InsertChunks(ctx, []domain.EmbeddingChunk{chunk(pid, "a.go", 0, 1, 0, 0)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(ctx, pid))

	_, err = s.GetProject(ctx, pid)
	assert.ErrorIs(t, err, port.ErrNotFound)
	count, err := s.ProjectChunkCount(ctx, pid)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.ErrorIs(t, s.DeleteProject(ctx, pid), port.ErrProjectNotFound)
}

func TestMemoryStore_ListProjects(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	require.NoError(t, s.CreateProject(ctx, &domain.Project{ID: "old", OwnerID: "u1"}))
	require.NoError(t, s.CreateProject(ctx, &domain.Project{ID: "other", OwnerID: "u2"}))
	require.NoError(t, s.CreateProject(ctx, &domain.Project{ID: "new", OwnerID: "u1"}))

	got, err := s.ListProjects(ctx, "u1")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
}
