package port

import (
	"context"

	"github.com/arturoeanton/stackmemory/internal/domain"
)

// SourceFetcher reads files from a hosted repository.
// An empty credential is allowed only by hosts that do not require one.
type SourceFetcher interface {
	// ListFiles returns every blob in the repository at ref.Ref. When the host
	// cuts the listing short it returns the partial listing together with an
	// error wrapping ErrListingTruncated.
	ListFiles(ctx context.Context, ref domain.RepoRef, credential string) ([]domain.FileEntry, error)

	// FetchFile returns the UTF-8 text of a single file.
	FetchFile(ctx context.Context, ref domain.RepoRef, credential, path string) (string, error)
}
