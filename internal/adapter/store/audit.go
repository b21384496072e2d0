package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/arturoeanton/stackmemory/internal/domain"
)

// AuditRing keeps the most recent audit entries in memory. It backs the
// audit endpoints when no database is configured.
type AuditRing struct {
	mu      sync.Mutex
	entries []domain.AuditLog
	size    int
	next    int64
}

// NewAuditRing creates a ring holding at most size entries.
func NewAuditRing(size int) *AuditRing {
	return &AuditRing{size: max(size, 1)}
}

// WriteAudit implements port.AuditWriter.
func (r *AuditRing) WriteAudit(_ context.Context, l *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	entry := *l
	entry.ID = strconv.FormatInt(r.next, 10)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	r.entries = append(r.entries, entry)
	if len(r.entries) > r.size {
		r.entries = r.entries[len(r.entries)-r.size:]
	}
	return nil
}

// ListAuditLogs returns the newest entries first.
func (r *AuditRing) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	out := []domain.AuditLog{}
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if action != "" && r.entries[i].Action != action {
			continue
		}
		out = append(out, r.entries[i])
	}
	return out, nil
}
