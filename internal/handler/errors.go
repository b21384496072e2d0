package handler

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/middleware"
	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/internal/service"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, port.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, port.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, port.ErrUnknownTask),
		errors.Is(err, port.ErrInvalidInput),
		errors.Is(err, port.ErrInvalidRepoRef),
		errors.Is(err, port.ErrUnsupportedHost),
		errors.Is(err, port.ErrDimensionMismatch):
		return fiber.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	}
	return fiber.StatusInternalServerError
}

// fail writes err as a JSON error body with its mapped status.
func fail(c fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// ownedProject resolves the :id project for the authenticated caller.
// Projects of other owners are reported as not found.
func ownedProject(c fiber.Ctx, projects *service.ProjectService) (*domain.UserContext, *domain.Project, error) {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return nil, nil, port.ErrUnauthorized
	}
	p, err := projects.Get(c.Context(), c.Params("id"), uc.UserID)
	if err != nil {
		return uc, nil, err
	}
	return uc, p, nil
}

// queryInt reads an integer query param with a default value.
func queryInt(c fiber.Ctx, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
