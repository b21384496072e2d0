package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/internal/service"
)

// ContextHandler exposes context assembly and similarity search.
type ContextHandler struct {
	contexts *service.ContextService
	search   *service.SearchService
	projects *service.ProjectService
	topK     int
}

// NewContextHandler creates a new context handler. topK is the default
// result count of searches.
func NewContextHandler(contexts *service.ContextService, search *service.SearchService, projects *service.ProjectService, topK int) *ContextHandler {
	return &ContextHandler{contexts: contexts, search: search, projects: projects, topK: topK}
}

// Register sets up context routes.
func (h *ContextHandler) Register(api fiber.Router) {
	api.Post("/projects/:id/context", h.Assemble)
	api.Post("/projects/:id/search", h.Search)
}

// Assemble returns the bounded context bundle of a task.
func (h *ContextHandler) Assemble(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}

	var body struct {
		Task     string   `json:"task"`
		Query    string   `json:"query"`
		TopK     int      `json:"top_k"`
		MaxChars int      `json:"max_chars"`
		Patterns []string `json:"patterns"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	task, ok := domain.ParseTaskType(body.Task)
	if !ok {
		return fail(c, fmt.Errorf("task %q: %w", body.Task, port.ErrUnknownTask))
	}
	if body.TopK < 0 || body.MaxChars < 0 {
		return badRequest(c, "top_k and max_chars must not be negative")
	}

	bundle, err := h.contexts.Assemble(c.Context(), p.ID, task, service.ContextParams{
		Query:    body.Query,
		TopK:     body.TopK,
		MaxChars: body.MaxChars,
		Patterns: body.Patterns,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(bundle)
}

// Search returns the chunks most similar to a query.
func (h *ContextHandler) Search(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}

	var body struct {
		Query string `json:"query"`
		TopK  int    `json:"top_k"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}
	if body.Query == "" {
		return badRequest(c, "query is required")
	}
	k := body.TopK
	if k <= 0 {
		k = h.topK
	}

	chunks, err := h.search.Similar(c.Context(), p.ID, body.Query, k)
	if err != nil {
		return fail(c, err)
	}

	results := make([]fiber.Map, len(chunks))
	for i, ch := range chunks {
		results[i] = fiber.Map{
			"file_path":  ch.FilePath,
			"ordinal":    ch.Ordinal,
			"content":    ch.Content,
			"similarity": ch.Similarity,
			"metadata":   ch.Metadata,
		}
	}
	return c.JSON(fiber.Map{"results": results, "count": len(results)})
}
