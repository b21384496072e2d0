package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

type stubFetcher struct {
	files []domain.FileEntry
}

func (s stubFetcher) ListFiles(context.Context, domain.RepoRef, string) ([]domain.FileEntry, error) {
	return s.files, nil
}

func (s stubFetcher) FetchFile(_ context.Context, _ domain.RepoRef, _, path string) (string, error) {
	return "content of " + path, nil
}

func TestRegistry_DispatchesByHost(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.HostGitHub, stubFetcher{files: []domain.FileEntry{{Path: "gh.go"}}})
	r.Register(domain.HostLocal, stubFetcher{files: []domain.FileEntry{{Path: "local.go"}}})

	gh, err := r.ListFiles(context.Background(), domain.RepoRef{Owner: "a", Name: "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, "gh.go", gh[0].Path)

	local, err := r.ListFiles(context.Background(), domain.RepoRef{Host: domain.HostLocal, Owner: "a", Name: "b"}, "")
	require.NoError(t, err)
	assert.Equal(t, "local.go", local[0].Path)
}

func TestRegistry_UnknownHost(t *testing.T) {
	r := NewRegistry()

	_, err := r.FetchFile(context.Background(), domain.RepoRef{Host: "gitlab.com", Owner: "a", Name: "b"}, "", "x")

	assert.ErrorIs(t, err, port.ErrUnsupportedHost)
}
