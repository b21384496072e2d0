package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/stackmemory/internal/domain"
)

func TestAuditRing(t *testing.T) {
	r := NewAuditRing(3)
	ctx := context.Background()
	for _, action := range []string{"ingest", "context", "ingest", "search"} {
		require.NoError(t, r.WriteAudit(ctx, &domain.AuditLog{UserID: "u", Action: action}))
	}

	all, err := r.ListAuditLogs(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "search", all[0].Action)
	assert.Equal(t, "4", all[0].ID)
	assert.Equal(t, "{}", all[0].Details)
	assert.False(t, all[0].CreatedAt.IsZero())

	ingests, err := r.ListAuditLogs(ctx, 10, "ingest")
	require.NoError(t, err)
	require.Len(t, ingests, 1)
	assert.Equal(t, "3", ingests[0].ID)

	limited, err := r.ListAuditLogs(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
