package user

import (
	"context"
	"strings"
	"sync"

	"careflow/internal/auth"
	"careflow/pkg/sentinel"
)

// Memory is an in-memory user store for tests and local development.
type Memory struct {
	mu      sync.RWMutex
	byEmail map[string]auth.User
}

func NewMemory() *Memory {
	return &Memory{byEmail: make(map[string]auth.User)}
}

func (m *Memory) Create(_ context.Context, u auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(u.Email)
	if _, exists := m.byEmail[key]; exists {
		return sentinel.ErrConflict
	}
	m.byEmail[key] = u
	return nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return auth.User{}, sentinel.ErrNotFound
	}
	return u, nil
}
