// Package app wires configuration, adapters and services into the HTTP
// server, the MCP server and the CLI.
package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arturoeanton/stackmemory/internal/adapter/ai"
	"github.com/arturoeanton/stackmemory/internal/adapter/source"
	"github.com/arturoeanton/stackmemory/internal/adapter/store"
	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/handler"
	"github.com/arturoeanton/stackmemory/internal/mcp"
	"github.com/arturoeanton/stackmemory/internal/metrics"
	"github.com/arturoeanton/stackmemory/internal/middleware"
	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/internal/service"
	"github.com/arturoeanton/stackmemory/pkg/config"
)

// Version is reported by the health endpoint and the MCP server.
const Version = "1.0.0"

const (
	auditRingSize   = 1000
	generateTimeout = 2 * time.Minute
	sseMaxIdle      = 10 * time.Minute
)

// Overrides replaces adapters, mainly for tests. Nil fields use the
// configured adapters.
type Overrides struct {
	Fetcher   port.SourceFetcher
	Embedder  port.Embedder
	Generator port.Generator
}

// App holds the wired services.
type App struct {
	Config   *config.Config
	Projects *service.ProjectService
	Ingest   *service.IngestService
	Search   *service.SearchService
	Contexts *service.ContextService
	AI       *service.AIService
	Audit    port.AuditStore
	Metrics  *metrics.Metrics
	Events   *handler.SyncEventBus

	closers []func() error
}

// Build opens the configured store and wires every service.
func Build(ctx context.Context, cfg *config.Config, ov Overrides) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New(), Events: handler.NewSyncEventBus()}

	var (
		projects port.ProjectStore
		chunks   port.ChunkStore
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		mem := store.NewMemoryStore(cfg.EmbeddingDimension)
		projects, chunks = mem, mem
		a.Audit = store.NewAuditRing(auditRingSize)
	case config.StoreDriverPostgres, "":
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect %s: %w", cfg.DSN(), err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		projects, chunks = pg, store.NewVectorStore(pg, cfg.EmbeddingDimension)
		a.Audit = pg
	default:
		return nil, fmt.Errorf("store driver %q: %w", cfg.StoreDriver, port.ErrInvalidInput)
	}

	fetcher := ov.Fetcher
	if fetcher == nil {
		gh, err := source.NewGitHubFetcher(cfg.GitHubAPIURL, cfg.GitHubRPS)
		if err != nil {
			a.Close()
			return nil, err
		}
		reg := source.NewRegistry()
		reg.Register(domain.HostGitHub, gh)
		reg.Register(domain.HostLocal, source.NewGitFetcher(cfg.CloneBasePath))
		fetcher = reg
	}

	ollama := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{BaseURL: cfg.OllamaEmbedURL, Model: cfg.OllamaEmbedModel, Token: cfg.OllamaEmbedToken},
		ai.OllamaEndpointConfig{BaseURL: cfg.OllamaChatURL, Model: cfg.OllamaChatModel, Token: cfg.OllamaChatToken},
	)
	var embedder port.Embedder = ollama
	if ov.Embedder != nil {
		embedder = ov.Embedder
	}
	var gen port.Generator
	if ov.Generator != nil {
		gen = ov.Generator
	} else {
		var secondary port.Generator
		if cfg.OllamaChatFallbackModel != "" {
			secondary = ollama.WithChatModel(cfg.OllamaChatFallbackModel)
		}
		gen = service.GenerateWithFallback(ollama, secondary, nil)
	}

	ing := cfg.Pipeline.Ingest
	walker := service.NewWalker(fetcher, service.WalkerConfig{
		MaxFiles:         ing.MaxFiles,
		MaxFileBytes:     ing.MaxFileBytes,
		FetchConcurrency: ing.FetchConcurrency,
	})

	a.Projects = service.NewProjectService(projects, chunks)
	a.Ingest = service.NewIngestService(projects, chunks, walker, service.Chunker{Size: ing.ChunkSize}, embedder, ing.SyncMode, a.Metrics)
	a.Search = service.NewSearchService(chunks, embedder)
	a.Contexts = service.NewContextService(projects, chunks, a.Search, service.ContextConfig{
		MaxChars:     cfg.Pipeline.Context.MaxChars,
		MaxTreePaths: cfg.Pipeline.Context.MaxTreePaths,
		TopK:         cfg.Pipeline.Context.TopK,
	}, a.Metrics)
	a.AI = service.NewAIService(a.Contexts, gen, a.Metrics)

	slog.Info("services wired",
		"store", cmp.Or(cfg.StoreDriver, config.StoreDriverPostgres),
		"embed_model", embedder.EmbeddingModel(),
		"chat_model", gen.ModelName(),
		"sync_mode", ing.SyncMode,
	)
	return a, nil
}

// Close releases the store connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// JWTConfig returns the bearer token settings.
func (a *App) JWTConfig() middleware.JWTConfig {
	return middleware.JWTConfig{
		Secret:    a.Config.JWTSecret,
		Issuer:    a.Config.JWTIssuer,
		ExpiresIn: time.Duration(a.Config.JWTExpiration) * time.Hour,
	}
}

// HTTP builds the fiber application with every route registered.
func (a *App) HTTP() *fiber.App {
	cfg := a.Config
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Pipeline.Ingest.Timeout + 30*time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", handler.RepoTokenHeader},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
	}))
	app.Use(middleware.AuditMiddleware(a.Audit))

	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": Version,
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1", middleware.JWTMiddleware(a.JWTConfig()))

	// Registered before the project routes so "events" is not read as an id.
	handler.NewEventsHandler(a.Events, sseMaxIdle).Register(api)
	handler.NewProjectHandler(a.Projects).Register(api)
	handler.NewIngestHandler(a.Ingest, a.Projects, a.Events, cfg.GitHubToken, cfg.Pipeline.Ingest.Timeout).Register(api)
	handler.NewContextHandler(a.Contexts, a.Search, a.Projects, cfg.Pipeline.Context.TopK).Register(api)
	handler.NewAIHandler(a.AI, a.Projects, generateTimeout).Register(api)
	handler.NewAuditHandler(a.Audit).Register(api)

	return app
}

// MCP builds the MCP tool server.
func (a *App) MCP() *mcp.Server {
	return mcp.NewServer(a.Search, a.Contexts, a.Projects, a.Audit, a.JWTConfig(), a.Config.MCPPort, Version)
}
