package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/adapter/store"
	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

const testDim = 3

type fakeFetcher struct {
	mu        sync.Mutex
	files     map[string]string
	sizes     map[string]int64
	fileErrs  map[string]error
	listErr   error
	truncated bool
	fetched   []string
	listCalls int
}

func newFakeFetcher(files map[string]string) *fakeFetcher {
	return &fakeFetcher{files: files, sizes: map[string]int64{}, fileErrs: map[string]error{}}
}

func (f *fakeFetcher) ListFiles(context.Context, domain.RepoRef, string) ([]domain.FileEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.FileEntry
	for p, c := range f.files {
		size := int64(len(c))
		if s, ok := f.sizes[p]; ok {
			size = s
		}
		out = append(out, domain.FileEntry{Path: p, Size: size, Language: domain.DetectLanguage(p)})
	}
	if f.truncated {
		return out, fmt.Errorf("list: %w", port.ErrListingTruncated)
	}
	return out, nil
}

func (f *fakeFetcher) FetchFile(ctx context.Context, _ domain.RepoRef, _ string, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, path)
	if err := f.fileErrs[path]; err != nil {
		return "", err
	}
	c, ok := f.files[path]
	if !ok {
		return "", port.ErrNotFound
	}
	return c, nil
}

func (f *fakeFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

type fakeEmbedder struct {
	mu      sync.Mutex
	model   string
	vectors map[string][]float32
	fail    map[string]int // remaining failures per text
	calls   int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{model: "fake-embed", vectors: map[string][]float32{}, fail: map[string]int{}}
}

func (e *fakeEmbedder) EmbeddingModel() string { return e.model }

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.fail[text] > 0 {
		e.fail[text]--
		return nil, errors.New("embedding backend unavailable")
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, float32(len(text)%5) + 1, float32(strings.Count(text, "\n")%3) + 1}, nil
}

type fakeGenerator struct {
	model   string
	reply   string
	err     error
	calls   int
	lastReq port.GenerateRequest
}

func (g *fakeGenerator) ModelName() string { return g.model }

func (g *fakeGenerator) Generate(_ context.Context, req port.GenerateRequest) (string, error) {
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func newTestStore(t *testing.T) (*store.MemoryStore, string) {
	t.Helper()
	s := store.NewMemoryStore(testDim)
	p := &domain.Project{ID: "proj-1", OwnerID: "user-1", Name: "demo"}
	require.NoError(t, s.CreateProject(context.Background(), p))
	return s, p.ID
}

// sampleRepo is a README of 50 bytes, a package.json of 200 bytes and an
// index.js of 100 lines of 50 bytes each.
func sampleRepo() map[string]string {
	var js strings.Builder
	for i := range 100 {
		js.WriteString(fmt.Sprintf("console.log(%03d);", i))
		js.WriteString(strings.Repeat(" ", 49-len(fmt.Sprintf("console.log(%03d);", i))))
		js.WriteByte('\n')
	}
	return map[string]string{
		"README.md":    strings.Repeat("r", 49) + "\n",
		"package.json": "{" + strings.Repeat(" ", 197) + "}\n",
		"src/index.js": js.String(),
	}
}
