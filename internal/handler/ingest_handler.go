package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/adapter/source"
	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/service"
)

// RepoTokenHeader carries a per-request repository credential.
const RepoTokenHeader = "X-Repo-Token"

// IngestHandler runs synchronous repository syncs.
type IngestHandler struct {
	ingest       *service.IngestService
	projects     *service.ProjectService
	events       *SyncEventBus
	defaultToken string
	timeout      time.Duration
}

// NewIngestHandler creates a new ingest handler. defaultToken is used when a
// request carries no X-Repo-Token.
func NewIngestHandler(ingest *service.IngestService, projects *service.ProjectService, events *SyncEventBus, defaultToken string, timeout time.Duration) *IngestHandler {
	return &IngestHandler{
		ingest:       ingest,
		projects:     projects,
		events:       events,
		defaultToken: defaultToken,
		timeout:      timeout,
	}
}

// Register sets up ingestion routes.
func (h *IngestHandler) Register(api fiber.Router) {
	api.Post("/projects/:id/ingest", h.Ingest)
}

// Ingest crawls the repository into the project's chunk index.
// The body's repo_url overrides the project's repository.
func (h *IngestHandler) Ingest(c fiber.Ctx) error {
	uc, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}

	var body struct {
		RepoURL  string `json:"repo_url"`
		MaxFiles int    `json:"max_files"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid body")
		}
	}
	if body.MaxFiles < 0 {
		return badRequest(c, "max_files must not be negative")
	}

	repoURL := body.RepoURL
	if repoURL == "" {
		repoURL = p.RepoURL
	}
	if repoURL == "" {
		return badRequest(c, "repo_url is required")
	}
	ref, err := source.ParseRepoRef(repoURL)
	if err != nil {
		return fail(c, err)
	}

	credential := c.Get(RepoTokenHeader)
	if credential == "" {
		credential = h.defaultToken
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	slog.Info("ingest requested", "project_id", p.ID, "repo", ref.String(), "user_id", uc.UserID)
	res, err := h.ingest.Ingest(ctx, service.IngestRequest{
		ProjectID:  p.ID,
		Repo:       ref,
		Credential: credential,
		MaxFiles:   body.MaxFiles,
	})

	evt := domain.SyncEvent{ProjectID: p.ID, OwnerID: p.OwnerID, Repo: ref.String()}
	if res != nil {
		evt.ChunksStored = res.ChunksStored
		evt.ChunksFailed = res.ChunksFailed
	}
	if err != nil {
		evt.Error = err.Error()
	}
	h.events.Publish(evt)

	if err != nil {
		if res != nil && ctx.Err() != nil {
			// Chunks stored before the deadline stay in the index.
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
				"error":  err.Error(),
				"result": res,
			})
		}
		return fail(c, err)
	}
	return c.JSON(res)
}
