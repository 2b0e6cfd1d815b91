package dedup

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFirstClaimWins(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemory()

	first, err := tracker.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := tracker.MarkProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, second)

	other, err := tracker.MarkProcessed(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemory()

	const claimers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, claimers)

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := tracker.MarkProcessed(ctx, "evt-1")
			assert.NoError(t, err)
			wins <- first
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for first := range wins {
		if first {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}
