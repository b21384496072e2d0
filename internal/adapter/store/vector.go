package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// VectorStore implements port.ChunkStore on Postgres with pgvector.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
// dimension <= 0 disables the dimension check.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

const insertChunkSQL = `INSERT INTO embedding_chunks
	(id, project_id, file_path, ordinal, content, content_hash, embedding_model, embedding, metadata)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector, $9::jsonb)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (v *VectorStore) checkDimension(c domain.EmbeddingChunk) error {
	if v.dimension > 0 && len(c.Vector) != v.dimension {
		return fmt.Errorf("chunk %s#%d has %d dims, want %d: %w",
			c.FilePath, c.Ordinal, len(c.Vector), v.dimension, port.ErrDimensionMismatch)
	}
	return nil
}

func (v *VectorStore) insert(ctx context.Context, db execer, c domain.EmbeddingChunk) error {
	if err := v.checkDimension(c); err != nil {
		return err
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = db.ExecContext(ctx, insertChunkSQL,
		c.ID, c.ProjectID, c.FilePath, c.Ordinal, c.Content, c.ContentHash,
		c.EmbeddingModel, vectorToString(c.Vector), string(meta),
	)
	if err != nil {
		return fmt.Errorf("insert chunk %s#%d: %w", c.FilePath, c.Ordinal, err)
	}
	return nil
}

// InsertChunks appends chunks one statement at a time; it stops at the first
// failure and reports how many were stored before it.
func (v *VectorStore) InsertChunks(ctx context.Context, chunks []domain.EmbeddingChunk) (int, error) {
	for i, c := range chunks {
		if err := v.insert(ctx, v.store.db, c); err != nil {
			return i, err
		}
	}
	return len(chunks), nil
}

// ReplaceFileChunks deletes the file's chunks and inserts the new set in one transaction.
func (v *VectorStore) ReplaceFileChunks(ctx context.Context, projectID, filePath string, chunks []domain.EmbeddingChunk) (int, error) {
	for _, c := range chunks {
		if err := v.checkDimension(c); err != nil {
			return 0, err
		}
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM embedding_chunks WHERE project_id = $1 AND file_path = $2`,
		projectID, filePath,
	); err != nil {
		return 0, fmt.Errorf("delete file chunks %s: %w", filePath, err)
	}

	for _, c := range chunks {
		if err := v.insert(ctx, tx, c); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit file chunks %s: %w", filePath, err)
	}
	return len(chunks), nil
}

// FileHashes returns the stored content hash of every file in the project.
func (v *VectorStore) FileHashes(ctx context.Context, projectID string) (map[string]string, error) {
	query := `SELECT file_path, MIN(content_hash) FROM embedding_chunks
	          WHERE project_id = $1 GROUP BY file_path`

	rows, err := v.store.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("file hashes: %w", err)
	}
	defer rows.Close()

	hashes := map[string]string{}
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("scan file hash: %w", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// SearchSimilar performs a cosine similarity search restricted to one embedding model.
func (v *VectorStore) SearchSimilar(ctx context.Context, projectID, model string, queryVector []float32, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	if v.dimension > 0 && len(queryVector) != v.dimension {
		return nil, fmt.Errorf("query has %d dims, want %d: %w", len(queryVector), v.dimension, port.ErrDimensionMismatch)
	}

	query := `SELECT id, project_id, file_path, ordinal, content, content_hash, embedding_model,
	                 metadata, created_at, 1 - (embedding <=> $1::vector) AS similarity
	          FROM embedding_chunks
	          WHERE project_id = $2 AND embedding_model = $3
	          ORDER BY embedding <=> $1::vector, created_at, file_path, ordinal
	          LIMIT $4`

	rows, err := v.store.db.QueryContext(ctx, query, vectorToString(queryVector), projectID, model, k)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		var meta []byte
		if err := rows.Scan(
			&sc.ID, &sc.ProjectID, &sc.FilePath, &sc.Ordinal, &sc.Content, &sc.ContentHash,
			&sc.EmbeddingModel, &meta, &sc.CreatedAt, &sc.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan similar: %w", err)
		}
		sc.Metadata = decodeMetadata(sc.ID, meta)
		results = append(results, sc)
	}
	return results, rows.Err()
}

// FindByPathPatterns returns chunks whose path matches any pattern (ILIKE), by path then ordinal.
func (v *VectorStore) FindByPathPatterns(ctx context.Context, projectID string, patterns []string, limit int) ([]domain.EmbeddingChunk, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	normalized := make([]string, len(patterns))
	for i, p := range patterns {
		normalized[i] = normalizePattern(p)
	}

	query := `SELECT id, project_id, file_path, ordinal, content, content_hash, embedding_model, metadata, created_at
	          FROM embedding_chunks
	          WHERE project_id = $1 AND file_path ILIKE ANY($2)
	          ORDER BY file_path COLLATE "C", ordinal`
	args := []any{projectID, pq.Array(normalized)}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find by path patterns: %w", err)
	}
	defer rows.Close()

	var results []domain.EmbeddingChunk
	for rows.Next() {
		var c domain.EmbeddingChunk
		var meta []byte
		if err := rows.Scan(
			&c.ID, &c.ProjectID, &c.FilePath, &c.Ordinal, &c.Content, &c.ContentHash,
			&c.EmbeddingModel, &meta, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Metadata = decodeMetadata(c.ID, meta)
		results = append(results, c)
	}
	return results, rows.Err()
}

// DistinctPaths lists unique file paths in byte order.
func (v *VectorStore) DistinctPaths(ctx context.Context, projectID string, limit int) ([]string, error) {
	query := `SELECT DISTINCT file_path COLLATE "C" AS p FROM embedding_chunks
	          WHERE project_id = $1 ORDER BY p`
	args := []any{projectID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("distinct paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// LastSyncedAt returns the newest chunk creation time, or nil.
func (v *VectorStore) LastSyncedAt(ctx context.Context, projectID string) (*time.Time, error) {
	var t sql.NullTime
	err := v.store.db.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM embedding_chunks WHERE project_id = $1`, projectID,
	).Scan(&t)
	if err != nil {
		return nil, fmt.Errorf("last synced: %w", err)
	}
	if !t.Valid {
		return nil, nil
	}
	return &t.Time, nil
}

// ProjectChunkCount returns the number of stored chunks for the project.
func (v *VectorStore) ProjectChunkCount(ctx context.Context, projectID string) (int, error) {
	var n int
	err := v.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embedding_chunks WHERE project_id = $1`, projectID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// DeleteProjectChunks deletes all chunks of a project.
func (v *VectorStore) DeleteProjectChunks(ctx context.Context, projectID string) error {
	_, err := v.store.db.ExecContext(ctx, `DELETE FROM embedding_chunks WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project chunks: %w", err)
	}
	return nil
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, val := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(val), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// decodeMetadata tolerates a corrupt metadata column: the chunk is still
// served, without line numbers or language.
func decodeMetadata(chunkID string, raw []byte) domain.ChunkMetadata {
	var m domain.ChunkMetadata
	if len(raw) == 0 {
		return m
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		slog.Warn("decode chunk metadata failed", "chunk_id", chunkID, "error", err)
		return domain.ChunkMetadata{}
	}
	return m
}
