package user

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"careflow/internal/auth"
	"careflow/pkg/sentinel"
)

func TestMemoryCreateAndFind(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	u := auth.User{
		ID:        uuid.New(),
		Email:     "john@demo.com",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(ctx, u))

	found, err := store.FindByEmail(ctx, "john@demo.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	// Lookup is case-insensitive on email.
	found, err = store.FindByEmail(ctx, "John@Demo.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
}

func TestMemoryDuplicateEmail(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	u := auth.User{ID: uuid.New(), Email: "john@demo.com"}
	require.NoError(t, store.Create(ctx, u))

	err := store.Create(ctx, auth.User{ID: uuid.New(), Email: "JOHN@demo.com"})
	assert.ErrorIs(t, err, sentinel.ErrConflict)
}

func TestMemoryFindMissing(t *testing.T) {
	store := NewMemory()
	_, err := store.FindByEmail(context.Background(), "nobody@demo.com")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
