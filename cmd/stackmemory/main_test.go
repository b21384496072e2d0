package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/app"
	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/pkg/config"
)

type repoFetcher struct{}

func (repoFetcher) ListFiles(context.Context, domain.RepoRef, string) ([]domain.FileEntry, error) {
	return []domain.FileEntry{{Path: "README.md", Size: 7}, {Path: "main.go", Size: 13}}, nil
}

func (repoFetcher) FetchFile(_ context.Context, _ domain.RepoRef, _, path string) (string, error) {
	if path == "README.md" {
		return "# Demo\n", nil
	}
	return "package main\n", nil
}

type axisEmbedder struct{}

func (axisEmbedder) EmbeddingModel() string { return "axis" }

func (axisEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.Contains(text, "package") {
		return []float32{1, 0}, nil
	}
	return []float32{0, 1}, nil
}

type silentGenerator struct{}

func (silentGenerator) ModelName() string { return "silent" }

func (silentGenerator) Generate(context.Context, port.GenerateRequest) (string, error) {
	return "", nil
}

func useMemoryApp(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", config.StoreDriverMemory)
	t.Setenv("EMBEDDING_DIMENSION", "2")
	t.Setenv("JWT_SECRET", "cli-test")

	var shared *app.App
	prev := buildApp
	buildApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		if shared != nil {
			return shared, nil
		}
		a, err := app.Build(ctx, cfg, app.Overrides{Fetcher: repoFetcher{}, Embedder: axisEmbedder{}, Generator: silentGenerator{}})
		shared = a
		return a, err
	}
	t.Cleanup(func() { buildApp = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_IngestAndAssemble(t *testing.T) {
	useMemoryApp(t)

	out, err := run(t, "project", "create", "demo", "acme/demo")
	require.NoError(t, err)
	var p domain.Project
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "cli", p.OwnerID)

	out, err = run(t, "ingest", p.ID, "--token", "ghp_test")
	require.NoError(t, err)
	var res domain.IngestResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2, res.ChunksStored)

	out, err = run(t, "status", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"synced": true`)

	out, err = run(t, "context", p.ID, "--task", "tour")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "## File tree\nREADME.md\nmain.go\n"))

	out, err = run(t, "search", p.ID, "package layout", "--top-k", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "main.go#0")

	_, err = run(t, "context", p.ID, "--task", "poem")
	assert.ErrorIs(t, err, port.ErrUnknownTask)

	_, err = run(t, "status", p.ID, "--owner", "someone-else")
	assert.ErrorIs(t, err, port.ErrNotFound)
}

func TestCLI_Token(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-test")

	out, err := run(t, "token", "alice", "--role", "admin")

	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "."), 3)
}

func TestCLI_MirrorRejectsLocalRef(t *testing.T) {
	t.Setenv("CLONE_BASE_PATH", t.TempDir())

	_, err := run(t, "mirror", "local:acme/demo")

	assert.ErrorIs(t, err, port.ErrUnsupportedHost)
}
