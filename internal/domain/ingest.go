package domain

// Sync modes for ingestion.
const (
	SyncModeReplace = "replace"
	SyncModeAppend  = "append"
)

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	ProjectID     string       `json:"project_id"`
	Repo          string       `json:"repo"`
	Mode          string       `json:"mode"`
	FilesFound    int          `json:"files_found"`
	FilesSelected int          `json:"files_selected"`
	FilesSkipped  int          `json:"files_skipped"`
	ChunksStored  int          `json:"chunks_stored"`
	ChunksFailed  int          `json:"chunks_failed"`
	Files         []FileReport `json:"files"`

	// ListingTruncated is set when the host listed only part of the repository.
	ListingTruncated bool `json:"listing_truncated,omitempty"`
}

// FileReport is the per-file outcome of an ingestion run.
type FileReport struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Language  string `json:"language"`
	Chunks    int    `json:"chunks"`
	Failed    int    `json:"failed"`
	Skipped   bool   `json:"skipped,omitempty"`
	Unchanged bool   `json:"unchanged,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SyncEvent is published to subscribers when a project finishes a sync.
type SyncEvent struct {
	ProjectID    string `json:"project_id"`
	OwnerID      string `json:"-"`
	Repo         string `json:"repo"`
	ChunksStored int    `json:"chunks_stored"`
	ChunksFailed int    `json:"chunks_failed"`
	Error        string `json:"error,omitempty"`
}
