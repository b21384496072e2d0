package domain

import "time"

// Project identifies an indexed codebase owned by a user.
type Project struct {
	ID        string    `json:"id"         db:"id"`
	OwnerID   string    `json:"owner_id"   db:"owner_id"`
	Name      string    `json:"name"       db:"name"`
	RepoURL   string    `json:"repo_url"   db:"repo_url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SyncStatus reports when a project's chunks were last written.
// LastSyncedAt is nil when the project has never been synced.
type SyncStatus struct {
	ProjectID    string     `json:"project_id"`
	LastSyncedAt *time.Time `json:"last_synced_at"`
	Synced       bool       `json:"synced"`
	ChunkCount   int        `json:"chunk_count"`
}
