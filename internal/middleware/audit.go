package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

const auditWriteTimeout = 5 * time.Second

// AuditMiddleware records every request. Writes happen off the request path.
func AuditMiddleware(writer port.AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Fiber reuses context buffers; the write outlives the request.
		method := strings.Clone(c.Method())
		path := strings.Clone(c.Path())
		ip := strings.Clone(c.IP())
		userAgent := strings.Clone(c.Get("User-Agent"))

		err := c.Next()

		userID := "anonymous"
		if uc := GetUserContext(c); uc != nil {
			userID = uc.UserID
		}

		action, resource, resourceID := classifyPath(path)
		details, _ := json.Marshal(map[string]any{
			"method":      method,
			"path":        path,
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		entry := &domain.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			Details:    string(details),
			IP:         ip,
			UserAgent:  userAgent,
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if writeErr := writer.WriteAudit(ctx, entry); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}

// classifyPath maps an API path to its audit action, resource and resource id.
func classifyPath(path string) (action, resource, resourceID string) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if p != "projects" || i+1 >= len(parts) {
			continue
		}
		resourceID = parts[i+1]
		if resourceID == "events" {
			return domain.AuditActionHTTPRequest, "project", ""
		}
		if i+2 >= len(parts) {
			return domain.AuditActionProject, "project", resourceID
		}
		switch parts[i+2] {
		case "ingest":
			return domain.AuditActionIngest, "project", resourceID
		case "context":
			return domain.AuditActionContext, "project", resourceID
		case "search":
			return domain.AuditActionSearch, "project", resourceID
		case "chat", "insight", "onboarding", "tour":
			return domain.AuditActionGenerate, parts[i+2], resourceID
		}
		return domain.AuditActionProject, "project", resourceID
	}
	if len(parts) > 0 && parts[len(parts)-1] == "projects" {
		return domain.AuditActionProject, "project", ""
	}
	return domain.AuditActionHTTPRequest, "api", path
}
