package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/arturoeanton/stackmemory/internal/domain"
	"github.com/arturoeanton/stackmemory/internal/port"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Projects ---

// CreateProject inserts a project, filling CreatedAt.
func (s *PostgresStore) CreateProject(ctx context.Context, p *domain.Project) error {
	query := `INSERT INTO projects (id, owner_id, name, repo_url)
	          VALUES ($1, $2, $3, $4)
	          RETURNING created_at`

	if err := s.db.QueryRowContext(ctx, query, p.ID, p.OwnerID, p.Name, p.RepoURL).Scan(&p.CreatedAt); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetProject returns a project by ID.
func (s *PostgresStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT id, owner_id, name, repo_url, created_at FROM projects WHERE id = $1`

	var p domain.Project
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.RepoURL, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidUUID(err) {
			return nil, fmt.Errorf("get project %s: %w", id, port.ErrProjectNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns all projects of an owner, newest first.
func (s *PostgresStore) ListProjects(ctx context.Context, ownerID string) ([]domain.Project, error) {
	query := `SELECT id, owner_id, name, repo_url, created_at
	          FROM projects WHERE owner_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.RepoURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project; its chunks go with it via ON DELETE CASCADE.
func (s *PostgresStore) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		if isInvalidUUID(err) {
			return fmt.Errorf("delete project %s: %w", id, port.ErrProjectNotFound)
		}
		return fmt.Errorf("delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete project %s: %w", id, port.ErrProjectNotFound)
	}
	return nil
}

// --- Audit Logs ---

// WriteAudit implements port.AuditWriter.
func (s *PostgresStore) WriteAudit(ctx context.Context, l *domain.AuditLog) error {
	details := l.Details
	if details == "" {
		details = "{}"
	}
	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		l.UserID, l.Action, l.Resource, l.ResourceID, details, l.IP, l.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// ListAuditLogs returns the newest audit entries, at most limit.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, user_id, action, resource, resource_id, details::text, ip, user_agent, created_at
	          FROM audit_logs
	          WHERE ($1 = '' OR action = $1)
	          ORDER BY created_at DESC, id DESC
	          LIMIT $2`
	rows, err := s.db.QueryContext(ctx, query, action, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.AuditLog{}
	for rows.Next() {
		var (
			l  domain.AuditLog
			id int64
		)
		if err := rows.Scan(&id, &l.UserID, &l.Action, &l.Resource, &l.ResourceID, &l.Details, &l.IP, &l.UserAgent, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		l.ID = strconv.FormatInt(id, 10)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// isInvalidUUID reports a malformed uuid literal (SQLSTATE 22P02).
func isInvalidUUID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "22P02"
}
