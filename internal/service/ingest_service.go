package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/metrics"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// IngestRequest asks for one repository to be synced into a project.
type IngestRequest struct {
	ProjectID  string
	Repo       domain.RepoRef
	Credential string
	MaxFiles   int
}

// IngestService runs Walker → Chunker → Embedder → ChunkStore.
type IngestService struct {
	projects port.ProjectStore
	chunks   port.ChunkStore
	walker   *Walker
	chunker  Chunker
	embedder port.Embedder
	mode     string
	metrics  *metrics.Metrics
	newID    func() string
}

// NewIngestService creates an ingestion service. mode is domain.SyncModeReplace
// (default) or domain.SyncModeAppend.
func NewIngestService(
	projects port.ProjectStore,
	chunks port.ChunkStore,
	walker *Walker,
	chunker Chunker,
	embedder port.Embedder,
	mode string,
	m *metrics.Metrics,
) *IngestService {
	if mode != domain.SyncModeAppend {
		mode = domain.SyncModeReplace
	}
	return &IngestService{
		projects: projects,
		chunks:   chunks,
		walker:   walker,
		chunker:  chunker,
		embedder: embedder,
		mode:     mode,
		metrics:  m,
		newID:    uuid.NewString,
	}
}

// Ingest syncs the repository into the project. Partial failures are counted
// in the result; an error means the run aborted (unknown project, listing
// failure or cancellation) and chunks written before it remain stored.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (res *domain.IngestResult, err error) {
	start := time.Now()
	res = &domain.IngestResult{ProjectID: req.ProjectID, Repo: req.Repo.String(), Mode: s.mode}
	unchanged := 0
	defer func() {
		s.metrics.IngestRun(err, time.Since(start), res.FilesSelected, res.FilesSkipped, unchanged, res.ChunksStored, res.ChunksFailed)
	}()

	if _, err := s.projects.GetProject(ctx, req.ProjectID); err != nil {
		return res, err
	}

	slog.Info("ingest started", "project_id", req.ProjectID, "repo", req.Repo.String(), "mode", s.mode)

	walk, err := s.walker.Walk(ctx, req.Repo, req.Credential, req.MaxFiles)
	if err != nil {
		return res, fmt.Errorf("ingest %s: %w", req.Repo, err)
	}
	res.FilesFound = walk.Found
	res.FilesSelected = walk.Selected
	res.FilesSkipped = len(walk.Skipped)
	res.ListingTruncated = walk.Truncated
	res.Files = append(res.Files, walk.Skipped...)

	var stored map[string]string
	if s.mode == domain.SyncModeReplace {
		stored, err = s.chunks.FileHashes(ctx, req.ProjectID)
		if err != nil {
			return res, fmt.Errorf("ingest %s: %w", req.Repo, err)
		}
	}

	for _, f := range walk.Files {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("ingest %s: %w", req.Repo, err)
		}
		report := s.ingestFile(ctx, req.ProjectID, f, stored)
		if report.Unchanged {
			unchanged++
		}
		res.ChunksStored += report.Chunks
		res.ChunksFailed += report.Failed
		res.Files = append(res.Files, report)
	}

	slog.Info("ingest finished",
		"project_id", req.ProjectID,
		"repo", req.Repo.String(),
		"files_found", res.FilesFound,
		"files_selected", res.FilesSelected,
		"files_skipped", res.FilesSkipped,
		"listing_truncated", res.ListingTruncated,
		"files_unchanged", unchanged,
		"chunks_stored", res.ChunksStored,
		"chunks_failed", res.ChunksFailed,
		"duration", time.Since(start),
	)
	return res, nil
}

func (s *IngestService) ingestFile(ctx context.Context, projectID string, f domain.FetchedFile, stored map[string]string) domain.FileReport {
	report := domain.FileReport{Path: f.Path, Size: f.Size, Language: f.Language}
	hash := contentHash(f.Content)

	if stored != nil {
		if prev, ok := stored[f.Path]; ok && prev == hash {
			report.Unchanged = true
			return report
		}
	}

	model := s.embedder.EmbeddingModel()
	var batch []domain.EmbeddingChunk
	for ch := range s.chunker.Chunks(f.Path, f.Content) {
		vec, err := s.embedWithRetry(ctx, ch.Content)
		if err != nil {
			slog.Warn("skipping chunk", "project_id", projectID, "path", f.Path, "ordinal", ch.Ordinal, "error", err)
			report.Failed++
			continue
		}
		batch = append(batch, domain.EmbeddingChunk{
			ID:             s.newID(),
			ProjectID:      projectID,
			FilePath:       f.Path,
			Ordinal:        ch.Ordinal,
			Content:        ch.Content,
			ContentHash:    hash,
			EmbeddingModel: model,
			Vector:         vec,
			Metadata: domain.ChunkMetadata{
				Ordinal:   ch.Ordinal,
				StartByte: ch.StartByte,
				EndByte:   ch.EndByte,
				StartLine: ch.StartLine,
				EndLine:   ch.EndLine,
				Language:  f.Language,
			},
		})
	}
	if len(batch) == 0 {
		if report.Failed > 0 {
			report.Error = "no chunk could be embedded"
			return report
		}
		// The file is now empty; drop what an earlier sync stored for it.
		if _, had := stored[f.Path]; had && s.mode == domain.SyncModeReplace {
			if _, err := s.chunks.ReplaceFileChunks(ctx, projectID, f.Path, nil); err != nil {
				slog.Warn("clearing emptied file failed", "project_id", projectID, "path", f.Path, "error", err)
				report.Error = err.Error()
			}
		}
		return report
	}
	if report.Failed > 0 {
		// An empty hash never matches, so the next sync retries this file.
		for i := range batch {
			batch[i].ContentHash = ""
		}
	}

	var n int
	var err error
	if s.mode == domain.SyncModeReplace {
		n, err = s.chunks.ReplaceFileChunks(ctx, projectID, f.Path, batch)
	} else {
		n, err = s.chunks.InsertChunks(ctx, batch)
	}
	report.Chunks = n
	if err != nil {
		slog.Warn("storing chunks failed", "project_id", projectID, "path", f.Path, "error", err)
		report.Failed += len(batch) - n
		report.Error = err.Error()
	}
	return report
}

// embedWithRetry embeds text, retrying once on failure.
func (s *IngestService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err == nil {
		return vec, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	vec, retryErr := s.embedder.Embed(ctx, text)
	if retryErr != nil {
		return nil, fmt.Errorf("embed after retry: %w", retryErr)
	}
	return vec, nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
