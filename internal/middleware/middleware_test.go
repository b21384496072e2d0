package middleware

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

var testJWT = JWTConfig{Secret: "s3cret", Issuer: "stackmemory", ExpiresIn: time.Hour}

func newProtectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTMiddleware(testJWT), func(c fiber.Ctx) error {
		return c.JSON(GetUserContext(c))
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	token, err := GenerateJWT(&domain.UserContext{UserID: "user-1", Email: "a@b.c"}, testJWT)
	require.NoError(t, err)
	app := newProtectedApp()

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("query fallback", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/me?token="+token, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("missing", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/me", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("tampered", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token+"x")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})
}

func TestValidateJWT(t *testing.T) {
	expired, err := GenerateJWT(&domain.UserContext{UserID: "u"}, JWTConfig{Secret: "s3cret", Issuer: "stackmemory", ExpiresIn: -time.Minute})
	require.NoError(t, err)
	_, err = validateJWT(expired, "s3cret", "stackmemory")
	assert.ErrorIs(t, err, port.ErrTokenExpired)

	other, err := GenerateJWT(&domain.UserContext{UserID: "u"}, JWTConfig{Secret: "s3cret", Issuer: "elsewhere", ExpiresIn: time.Hour})
	require.NoError(t, err)
	_, err = validateJWT(other, "s3cret", "stackmemory")
	assert.ErrorIs(t, err, port.ErrTokenInvalid)

	_, err = validateJWT("not-a-token", "s3cret", "stackmemory")
	assert.ErrorIs(t, err, port.ErrTokenInvalid)

	_, err = GenerateJWT(&domain.UserContext{}, testJWT)
	assert.ErrorIs(t, err, port.ErrInvalidInput)
}

func TestAuthenticateBearer(t *testing.T) {
	token, err := GenerateJWT(&domain.UserContext{UserID: "u1", Role: "admin"}, testJWT)
	require.NoError(t, err)

	uc, err := AuthenticateBearer("Bearer "+token, testJWT)
	require.NoError(t, err)
	assert.Equal(t, "u1", uc.UserID)
	assert.Equal(t, "admin", uc.Role)

	_, err = AuthenticateBearer("", testJWT)
	assert.ErrorIs(t, err, port.ErrUnauthorized)
	_, err = AuthenticateBearer("Basic "+token, testJWT)
	assert.ErrorIs(t, err, port.ErrUnauthorized)
	_, err = AuthenticateBearer("Bearer "+token+"x", testJWT)
	assert.ErrorIs(t, err, port.ErrTokenInvalid)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken("abc"))
}

type recordingWriter struct {
	mu   sync.Mutex
	logs []domain.AuditLog
	done chan struct{}
}

func (w *recordingWriter) WriteAudit(_ context.Context, l *domain.AuditLog) error {
	w.mu.Lock()
	w.logs = append(w.logs, *l)
	w.mu.Unlock()
	w.done <- struct{}{}
	return nil
}

func TestAuditMiddleware(t *testing.T) {
	w := &recordingWriter{done: make(chan struct{}, 1)}
	app := fiber.New()
	app.Use(AuditMiddleware(w))
	app.Post("/api/v1/projects/:id/ingest", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/api/v1/projects/p1/ingest", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	select {
	case <-w.done:
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry not written")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.logs, 1)
	assert.Equal(t, domain.AuditActionIngest, w.logs[0].Action)
	assert.Equal(t, "p1", w.logs[0].ResourceID)
	assert.Equal(t, "anonymous", w.logs[0].UserID)
	assert.Contains(t, w.logs[0].Details, `"status":202`)
}

func TestClassifyPath(t *testing.T) {
	tests := []struct {
		path, action, resource, id string
	}{
		{"/api/v1/projects", domain.AuditActionProject, "project", ""},
		{"/api/v1/projects/p1", domain.AuditActionProject, "project", "p1"},
		{"/api/v1/projects/p1/context", domain.AuditActionContext, "project", "p1"},
		{"/api/v1/projects/p1/search", domain.AuditActionSearch, "project", "p1"},
		{"/api/v1/projects/p1/tour", domain.AuditActionGenerate, "tour", "p1"},
		{"/api/v1/projects/events", domain.AuditActionHTTPRequest, "project", ""},
		{"/api/v1/health", domain.AuditActionHTTPRequest, "api", "/api/v1/health"},
	}
	for _, tt := range tests {
		action, resource, id := classifyPath(tt.path)
		assert.Equal(t, tt.action, action, tt.path)
		assert.Equal(t, tt.resource, resource, tt.path)
		assert.Equal(t, tt.id, id, tt.path)
	}
}
