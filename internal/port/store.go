package port

import (
	"context"
	"time"

	"github.com/arturoeanton/stackmemory/internal/domain"
)

// ChunkStore persists embedded chunks and answers retrieval queries.
type ChunkStore interface {
	// InsertChunks appends chunks without touching existing rows and reports how many were stored.
	InsertChunks(ctx context.Context, chunks []domain.EmbeddingChunk) (int, error)

	// ReplaceFileChunks atomically swaps every chunk of one file for the given set.
	ReplaceFileChunks(ctx context.Context, projectID, filePath string, chunks []domain.EmbeddingChunk) (int, error)

	// FileHashes maps each stored file path to its content hash.
	FileHashes(ctx context.Context, projectID string) (map[string]string, error)

	// SearchSimilar returns at most k chunks of the given embedding model ordered
	// by descending similarity, ties broken by creation time.
	SearchSimilar(ctx context.Context, projectID, model string, vector []float32, k int) ([]domain.ScoredChunk, error)

	// FindByPathPatterns returns chunks whose path matches any SQL LIKE pattern, case-insensitively.
	FindByPathPatterns(ctx context.Context, projectID string, patterns []string, limit int) ([]domain.EmbeddingChunk, error)

	// DistinctPaths lists stored file paths in byte order, at most limit (0 = all).
	DistinctPaths(ctx context.Context, projectID string, limit int) ([]string, error)

	// LastSyncedAt returns the newest chunk creation time, nil when none exist.
	LastSyncedAt(ctx context.Context, projectID string) (*time.Time, error)

	ProjectChunkCount(ctx context.Context, projectID string) (int, error)
	DeleteProjectChunks(ctx context.Context, projectID string) error
}

// ProjectStore persists projects.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// AuditWriter records audit entries.
type AuditWriter interface {
	WriteAudit(ctx context.Context, log *domain.AuditLog) error
}

// AuditStore records audit entries and lists the newest ones, optionally
// filtered by action.
type AuditStore interface {
	AuditWriter
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}
