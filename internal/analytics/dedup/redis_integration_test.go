//go:build integration

package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow/pkg/testutil/containers"
)

func TestRedisFirstClaimWins(t *testing.T) {
	ctx := context.Background()
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(ctx))

	tracker := NewRedis(rc.Client, time.Minute)

	first, err := tracker.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := tracker.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, second)
}

func TestRedisDedupSharedAcrossInstances(t *testing.T) {
	ctx := context.Background()
	rc := containers.GetManager().GetRedis(t)
	require.NoError(t, rc.FlushAll(ctx))

	// Two trackers over one store model two consumer instances: only one
	// may win the claim for a given event.
	a := NewRedis(rc.Client, time.Minute)
	b := NewRedis(rc.Client, time.Minute)

	first, err := a.MarkProcessed(ctx, "evt-shared")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := b.MarkProcessed(ctx, "evt-shared")
	require.NoError(t, err)
	assert.False(t, second)
}
