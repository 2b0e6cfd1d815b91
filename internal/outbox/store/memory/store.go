package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"careflow/internal/outbox"
)

// Store is an in-memory outbox for tests and local development.
type Store struct {
	mu      sync.Mutex
	entries []outbox.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Store) FetchPending(_ context.Context, limit int) ([]outbox.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []outbox.Entry
	for _, entry := range s.entries {
		if entry.Status != outbox.StatusPending {
			continue
		}
		pending = append(pending, entry)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *Store) MarkProcessed(_ context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	processed := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		processed[id] = true
	}
	for i := range s.entries {
		if processed[s.entries[i].ID] {
			s.entries[i].Status = outbox.StatusProcessed
			s.entries[i].ProcessedAt = &now
		}
	}
	return nil
}

func (s *Store) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, entry := range s.entries {
		if entry.Status == outbox.StatusPending {
			count++
		}
	}
	return count, nil
}
