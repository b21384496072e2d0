package source

import (
	"context"
	"fmt"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// Registry dispatches to a SourceFetcher by repository host.
type Registry struct {
	fetchers map[string]port.SourceFetcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]port.SourceFetcher{}}
}

// Register binds a fetcher to a host.
func (r *Registry) Register(host string, f port.SourceFetcher) {
	r.fetchers[host] = f
}

func (r *Registry) lookup(ref domain.RepoRef) (port.SourceFetcher, error) {
	host := ref.Host
	if host == "" {
		host = domain.HostGitHub
	}
	f, ok := r.fetchers[host]
	if !ok {
		return nil, fmt.Errorf("host %q: %w", host, port.ErrUnsupportedHost)
	}
	return f, nil
}

// ListFiles implements port.SourceFetcher.
func (r *Registry) ListFiles(ctx context.Context, ref domain.RepoRef, credential string) ([]domain.FileEntry, error) {
	f, err := r.lookup(ref)
	if err != nil {
		return nil, err
	}
	return f.ListFiles(ctx, ref, credential)
}

// FetchFile implements port.SourceFetcher.
func (r *Registry) FetchFile(ctx context.Context, ref domain.RepoRef, credential, path string) (string, error) {
	f, err := r.lookup(ref)
	if err != nil {
		return "", err
	}
	return f.FetchFile(ctx, ref, credential, path)
}
