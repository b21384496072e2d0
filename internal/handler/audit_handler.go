package handler

import (
	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/middleware"
	"github.com/arturoeanton/stackmemory/internal/port"
)

// RoleAdmin is the token role allowed to read audit logs.
const RoleAdmin = "admin"

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	store port.AuditStore
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(store port.AuditStore) *AuditHandler {
	return &AuditHandler{store: store}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit")
	audit.Get("/logs", h.ListLogs)
}

// ListLogs returns the newest audit logs, optionally filtered by action.
// Admins only.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}
	if uc.Role != RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "admin role required"})
	}
	limit := min(max(queryInt(c, "limit", 100), 1), 1000)
	logs, err := h.store.ListAuditLogs(c.Context(), limit, c.Query("action"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"logs": logs, "count": len(logs)})
}
