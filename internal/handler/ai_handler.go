package handler

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/internal/service"
)

// AIHandler serves the AI features built on assembled context.
type AIHandler struct {
	ai       *service.AIService
	projects *service.ProjectService
	timeout  time.Duration
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(ai *service.AIService, projects *service.ProjectService, timeout time.Duration) *AIHandler {
	return &AIHandler{ai: ai, projects: projects, timeout: timeout}
}

// Register sets up AI routes.
func (h *AIHandler) Register(api fiber.Router) {
	api.Post("/projects/:id/chat", h.Chat)
	api.Post("/projects/:id/insight", h.Insight)
	api.Post("/projects/:id/onboarding", h.Onboarding)
	api.Post("/projects/:id/tour", h.Tour)
}

// Chat answers a question about the project.
func (h *AIHandler) Chat(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}

	var body struct {
		Message     string         `json:"message"`
		History     []port.Message `json:"history"`
		ImageBase64 string         `json:"image_base64"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request")
	}
	var image []byte
	if body.ImageBase64 != "" {
		image, err = base64.StdEncoding.DecodeString(body.ImageBase64)
		if err != nil {
			return badRequest(c, "image_base64 is not valid base64")
		}
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	answer, err := h.ai.Chat(ctx, p.ID, service.ChatRequest{
		Message: body.Message,
		History: body.History,
		Image:   image,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(answer)
}

// Insight returns a structured assessment of the project.
func (h *AIHandler) Insight(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	report, err := h.ai.Insight(ctx, p.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(report)
}

// Onboarding returns a guide for new contributors.
func (h *AIHandler) Onboarding(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	guide, err := h.ai.Onboarding(ctx, p.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(guide)
}

// Tour returns a guided walk through the project's files.
func (h *AIHandler) Tour(c fiber.Ctx) error {
	_, p, err := ownedProject(c, h.projects)
	if err != nil {
		return fail(c, err)
	}
	ctx, cancel := context.WithTimeout(c.Context(), h.timeout)
	defer cancel()

	tour, err := h.ai.Tour(ctx, p.ID)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tour)
}
