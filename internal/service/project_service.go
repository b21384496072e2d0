package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// ProjectService manages the project catalog and reports sync status.
type ProjectService struct {
	projects port.ProjectStore
	chunks   port.ChunkStore
}

// NewProjectService creates a new project service.
func NewProjectService(projects port.ProjectStore, chunks port.ChunkStore) *ProjectService {
	return &ProjectService{projects: projects, chunks: chunks}
}

// Create registers a project for ownerID.
func (s *ProjectService) Create(ctx context.Context, ownerID, name, repoURL string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create project: name is required: %w", port.ErrInvalidInput)
	}
	p := &domain.Project{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Name:    name,
		RepoURL: strings.TrimSpace(repoURL),
	}
	if err := s.projects.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	slog.Info("project created", "project_id", p.ID, "owner_id", ownerID)
	return p, nil
}

// Get returns a project. A non-empty ownerID hides projects of other owners.
func (s *ProjectService) Get(ctx context.Context, id, ownerID string) (*domain.Project, error) {
	p, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && p.OwnerID != ownerID {
		return nil, fmt.Errorf("get project %s: %w", id, port.ErrProjectNotFound)
	}
	return p, nil
}

// List returns the owner's projects, newest first.
func (s *ProjectService) List(ctx context.Context, ownerID string) ([]domain.Project, error) {
	return s.projects.ListProjects(ctx, ownerID)
}

// Delete removes a project and all of its chunks.
func (s *ProjectService) Delete(ctx context.Context, id, ownerID string) error {
	if _, err := s.Get(ctx, id, ownerID); err != nil {
		return err
	}
	if err := s.chunks.DeleteProjectChunks(ctx, id); err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	if err := s.projects.DeleteProject(ctx, id); err != nil {
		return err
	}
	slog.Info("project deleted", "project_id", id)
	return nil
}

// LastSynced returns the newest chunk creation time, nil when never synced.
func (s *ProjectService) LastSynced(ctx context.Context, projectID string) (*time.Time, error) {
	return s.chunks.LastSyncedAt(ctx, projectID)
}

// SyncStatus reports the last sync time and chunk count of a project.
func (s *ProjectService) SyncStatus(ctx context.Context, projectID string) (*domain.SyncStatus, error) {
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	last, err := s.LastSynced(ctx, projectID)
	if err != nil {
		return nil, err
	}
	count, err := s.chunks.ProjectChunkCount(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &domain.SyncStatus{
		ProjectID:    projectID,
		LastSyncedAt: last,
		Synced:       last != nil,
		ChunkCount:   count,
	}, nil
}

// Files lists the project's stored file paths in byte order.
func (s *ProjectService) Files(ctx context.Context, projectID string, limit int) ([]string, error) {
	if _, err := s.projects.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.chunks.DistinctPaths(ctx, projectID, limit)
}
