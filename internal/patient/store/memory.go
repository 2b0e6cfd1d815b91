package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"careflow/internal/patient"
	"careflow/pkg/sentinel"
)

// Memory is an in-memory patient store for tests and local development.
// Writes are last-write-wins, matching the storage contract.
type Memory struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]patient.Patient
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[uuid.UUID]patient.Patient)}
}

func (m *Memory) Create(_ context.Context, p patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, p.Email) {
			return sentinel.ErrConflict
		}
	}
	m.byID[p.ID] = p
	return nil
}

func (m *Memory) Update(_ context.Context, p patient.Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for id, existing := range m.byID {
		if id != p.ID && strings.EqualFold(existing.Email, p.Email) {
			return sentinel.ErrConflict
		}
	}
	m.byID[p.ID] = p
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (patient.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.byID[id]
	if !ok {
		return patient.Patient{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (m *Memory) List(_ context.Context) ([]patient.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	patients := make([]patient.Patient, 0, len(m.byID))
	for _, p := range m.byID {
		patients = append(patients, p)
	}
	sort.Slice(patients, func(i, j int) bool {
		return patients[i].Name < patients[j].Name
	})
	return patients, nil
}

func (m *Memory) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}
