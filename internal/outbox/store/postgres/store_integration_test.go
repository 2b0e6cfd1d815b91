//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow/internal/outbox"
	"careflow/pkg/testutil/containers"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	pg := containers.GetManager().GetPostgres(t)
	require.NoError(t, pg.TruncateAll(context.Background()))
	return New(pg.DB)
}

func TestAppendAndFetchPending(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	first := outbox.NewEntry("patient", "p-1", "CREATED", []byte(`{"eventType":"CREATED"}`))
	second := outbox.NewEntry("patient", "p-1", "UPDATED", []byte(`{"eventType":"UPDATED"}`))
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, second))

	entries, err := s.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Oldest first so per-patient order survives the retry path.
	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, second.ID, entries[1].ID)
	assert.Equal(t, outbox.StatusPending, entries[0].Status)
}

func TestMarkProcessedBatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		entry := outbox.NewEntry("patient", "p-1", "CREATED", []byte(`{}`))
		require.NoError(t, s.Append(ctx, entry))
		ids = append(ids, entry.ID)
	}

	require.NoError(t, s.MarkProcessed(ctx, ids[:2]))

	count, err := s.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	entries, err := s.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ids[2], entries[0].ID)
}

func TestFetchPendingHonorsLimit(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, outbox.NewEntry("patient", "p-1", "CREATED", []byte(`{}`))))
	}

	entries, err := s.FetchPending(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
