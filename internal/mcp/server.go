package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/middleware"
	"github.com/arturoeanton/stackmemory/internal/port"
	"github.com/arturoeanton/stackmemory/internal/service"
)

const (
	defaultTopK      = 8
	maxTopK          = 50
	defaultFileLimit = 200
	endpointPath     = "/mcp"
)

type userKey struct{}

// Server exposes retrieval tools to external agents over the Model Context Protocol.
type Server struct {
	search   *service.SearchService
	contexts *service.ContextService
	projects *service.ProjectService
	audit    port.AuditWriter
	jwt      middleware.JWTConfig
	port     string
	mcp      *server.MCPServer
}

// NewServer creates a new MCP server. Callers authenticate with the same
// bearer tokens as the HTTP API. audit may be nil.
func NewServer(search *service.SearchService, contexts *service.ContextService, projects *service.ProjectService, audit port.AuditWriter, jwtCfg middleware.JWTConfig, listenPort, version string) *Server {
	s := &Server{
		search:   search,
		contexts: contexts,
		projects: projects,
		audit:    audit,
		jwt:      jwtCfg,
		port:     listenPort,
	}
	s.mcp = server.NewMCPServer("stackmemory", version, server.WithToolCapabilities(false))
	s.mcp.AddTool(searchChunksTool(), s.handleSearchChunks)
	s.mcp.AddTool(assembleContextTool(), s.handleAssembleContext)
	s.mcp.AddTool(syncStatusTool(), s.handleSyncStatus)
	s.mcp.AddTool(listFilesTool(), s.handleListFiles)
	s.mcp.AddTool(listTasksTool(), s.handleListTasks)
	return s
}

// Handler returns the streamable HTTP transport behind bearer authentication.
func (s *Server) Handler() http.Handler {
	streamable := server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(endpointPath))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uc, err := middleware.AuthenticateBearer(r.Header.Get("Authorization"), s.jwt)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		streamable.ServeHTTP(w, r.WithContext(withUser(r.Context(), uc)))
	})
}

// Start serves the transport at /mcp. It blocks.
func (s *Server) Start() error {
	slog.Info("MCP server starting", "port", s.port)
	mux := http.NewServeMux()
	mux.Handle(endpointPath, s.Handler())
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func withUser(ctx context.Context, uc *domain.UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, uc)
}

// ownedProject resolves projectID for the authenticated caller. Projects of
// other owners read as not found.
func (s *Server) ownedProject(ctx context.Context, projectID string) (*domain.UserContext, error) {
	uc, ok := ctx.Value(userKey{}).(*domain.UserContext)
	if !ok || uc == nil {
		return nil, port.ErrUnauthorized
	}
	if _, err := s.projects.Get(ctx, projectID, uc.UserID); err != nil {
		return nil, err
	}
	return uc, nil
}

func searchChunksTool() mcp.Tool {
	return mcp.NewTool("search_chunks",
		mcp.WithDescription("Find the indexed code chunks of a project most similar to a query"),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or code query")),
		mcp.WithNumber("top_k", mcp.Description("Maximum results (default 8, max 50)")),
	)
}

func assembleContextTool() mcp.Tool {
	return mcp.NewTool("assemble_context",
		mcp.WithDescription("Build the bounded context bundle used for a task: file tree, key files and similar chunks"),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithString("task", mcp.Required(), mcp.Description("One of: chat, insight, onboarding, tour")),
		mcp.WithString("query", mcp.Description("Query for similar chunks")),
		mcp.WithNumber("max_chars", mcp.Description("Size budget in bytes")),
	)
}

func syncStatusTool() mcp.Tool {
	return mcp.NewTool("sync_status",
		mcp.WithDescription("Report when a project was last synced and how many chunks it has"),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
	)
}

func listFilesTool() mcp.Tool {
	return mcp.NewTool("list_files",
		mcp.WithDescription("List the file paths indexed for a project"),
		mcp.WithString("project_id", mcp.Required(), mcp.Description("Project ID")),
		mcp.WithNumber("limit", mcp.Description("Maximum paths (default 200)")),
	)
}

func listTasksTool() mcp.Tool {
	return mcp.NewTool("list_tasks",
		mcp.WithDescription("List the supported context tasks and their key-file patterns"),
	)
}

func (s *Server) handleSearchChunks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	k := min(max(req.GetInt("top_k", defaultTopK), 1), maxTopK)
	uc, err := s.ownedProject(ctx, projectID)
	if err != nil {
		return toolError("search", err), nil
	}
	s.record(ctx, uc, req.Params.Name, projectID)

	chunks, err := s.search.Similar(ctx, projectID, query, k)
	if err != nil {
		return toolError("search", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d result(s) for %q\n", len(chunks), query)
	for _, c := range chunks {
		fmt.Fprintf(&sb, "\n### %s (chunk %d, similarity %.3f)\n%s\n", c.FilePath, c.Ordinal, c.Similarity, c.Content)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleAssembleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawTask, err := req.RequireString("task")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	task, ok := domain.ParseTaskType(rawTask)
	if !ok {
		return toolError("assemble", fmt.Errorf("task %q: %w", rawTask, port.ErrUnknownTask)), nil
	}
	uc, err := s.ownedProject(ctx, projectID)
	if err != nil {
		return toolError("assemble", err), nil
	}
	s.record(ctx, uc, req.Params.Name, projectID)

	bundle, err := s.contexts.Assemble(ctx, projectID, task, service.ContextParams{
		Query:    req.GetString("query", ""),
		MaxChars: max(req.GetInt("max_chars", 0), 0),
	})
	if err != nil {
		return toolError("assemble", err), nil
	}
	return mcp.NewToolResultText(bundle.Text), nil
}

func (s *Server) handleSyncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.ownedProject(ctx, projectID); err != nil {
		return toolError("sync status", err), nil
	}
	status, err := s.projects.SyncStatus(ctx, projectID)
	if err != nil {
		return toolError("sync status", err), nil
	}
	out, _ := json.Marshal(status)
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleListFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, err := req.RequireString("project_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.ownedProject(ctx, projectID); err != nil {
		return toolError("list files", err), nil
	}
	files, err := s.projects.Files(ctx, projectID, max(req.GetInt("limit", defaultFileLimit), 0))
	if err != nil {
		return toolError("list files", err), nil
	}
	return mcp.NewToolResultText(strings.Join(files, "\n")), nil
}

func (s *Server) handleListTasks(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	for _, t := range domain.TaskTypes {
		fmt.Fprintf(&sb, "%s: %s\n", t, strings.Join(service.CriticalPatterns(t), ", "))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) record(ctx context.Context, uc *domain.UserContext, tool, projectID string) {
	if s.audit == nil {
		return
	}
	details, _ := json.Marshal(map[string]string{"tool": tool})
	err := s.audit.WriteAudit(ctx, &domain.AuditLog{
		UserID:     uc.UserID,
		Action:     domain.AuditActionMCPCall,
		Resource:   tool,
		ResourceID: projectID,
		Details:    string(details),
	})
	if err != nil {
		slog.Warn("failed to write MCP audit log", "tool", tool, "error", err)
	}
}

// toolError reports a failed call to the agent as a tool-level error.
func toolError(op string, err error) *mcp.CallToolResult {
	slog.Warn("MCP tool failed", "op", op, "error", err)
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", op, err))
}
