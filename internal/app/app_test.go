package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/middleware"
	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/pkg/config"
)

type oneFileFetcher struct{}

func (oneFileFetcher) ListFiles(context.Context, domain.RepoRef, string) ([]domain.FileEntry, error) {
	return []domain.FileEntry{{Path: "README.md", Size: 7}}, nil
}

func (oneFileFetcher) FetchFile(context.Context, domain.RepoRef, string, string) (string, error) {
	return "# Demo\n", nil
}

type unitEmbedder struct{}

func (unitEmbedder) EmbeddingModel() string { return "unit" }

func (unitEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type echoGenerator struct{}

func (echoGenerator) ModelName() string { return "echo" }

func (echoGenerator) Generate(_ context.Context, req port.GenerateRequest) (string, error) {
	return "echo", nil
}

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.StoreDriver = config.StoreDriverMemory
	cfg.EmbeddingDimension = 3
	cfg.JWTSecret = "app-test"
	cfg.GitHubToken = "ghp_test"
	return cfg
}

func TestBuild_MemoryStoreServesAPI(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), Overrides{
		Fetcher:   oneFileFetcher{},
		Embedder:  unitEmbedder{},
		Generator: echoGenerator{},
	})
	require.NoError(t, err)
	defer a.Close()
	srv := a.HTTP()

	resp, err := srv.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	token, err := middleware.GenerateJWT(&domain.UserContext{UserID: "alice"}, a.JWTConfig())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", strings.NewReader(`{"name":"demo","repo_url":"acme/demo"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = srv.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	projects, err := a.Projects.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	id := projects[0].ID

	req = httptest.NewRequest(http.MethodPost, "/api/v1/projects/"+id+"/ingest", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = srv.Test(req, fiberTestConfig())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = srv.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "stackmemory_ingest_runs_total")
}

func TestBuild_UnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.StoreDriver = "sqlite"

	_, err := Build(context.Background(), cfg, Overrides{})

	assert.ErrorIs(t, err, port.ErrInvalidInput)
}

func TestBuild_MCPServer(t *testing.T) {
	a, err := Build(context.Background(), testConfig(), Overrides{Embedder: unitEmbedder{}, Generator: echoGenerator{}})
	require.NoError(t, err)
	assert.NotNil(t, a.MCP())
}

func TestSetupLogging(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logger := SetupLogging("warn", "json", &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
}

func fiberTestConfig() fiber.TestConfig {
	return fiber.TestConfig{Timeout: 5 * time.Second}
}
