package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/middleware"
	"github.com/arturoeanton/stackmemory/internal/service"
)

// ProjectHandler handles project CRUD and sync status.
type ProjectHandler struct {
	projects *service.ProjectService
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(projects *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{projects: projects}
}

// Register sets up project routes on a protected group.
func (h *ProjectHandler) Register(api fiber.Router) {
	projects := api.Group("/projects")
	projects.Get("/", h.List)
	projects.Post("/", h.Create)
	projects.Get("/:id", h.Get)
	projects.Delete("/:id", h.Delete)
	projects.Get("/:id/sync-status", h.SyncStatus)
	projects.Get("/:id/files", h.Files)
}

// List returns the caller's projects.
func (h *ProjectHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}
	projects, err := h.projects.List(c.Context(), uc.UserID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"projects": projects, "count": len(projects)})
}

// Create registers a new project.
func (h *ProjectHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var body struct {
		Name    string `json:"name"`
		RepoURL string `json:"repo_url"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid body")
	}

	p, err := h.projects.Create(c.Context(), uc.UserID, body.Name, body.RepoURL)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// Get returns one project.
func (h *ProjectHandler) Get(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(p)
}

// Delete removes a project and its chunks.
func (h *ProjectHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}
	if err := h.projects.Delete(c.Context(), c.Params("id"), uc.UserID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SyncStatus reports when the project was last synced.
func (h *ProjectHandler) SyncStatus(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}
	status, err := h.projects.SyncStatus(c.Context(), p.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status)
}

// Files lists the stored file paths of the project.
func (h *ProjectHandler) Files(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}
	files, err := h.projects.Files(c.Context(), p.ID, max(queryInt(c, "limit", 0), 0))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"files": files, "count": len(files)})
}
