package analytics

import "sync"

// Stats accumulates per-type event counts. It is the consumer's derived
// state; replays must not inflate it, which is what the dedup tracker
// guarantees upstream.
type Stats struct {
	mu       sync.RWMutex
	byType   map[string]int64
	patients map[string]struct{}
}

func NewStats() *Stats {
	return &Stats{
		byType:   make(map[string]int64),
		patients: make(map[string]struct{}),
	}
}

// Record counts one event and tracks the distinct patient it concerns.
func (s *Stats) Record(eventType, patientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byType[eventType]++
	if patientID != "" {
		s.patients[patientID] = struct{}{}
	}
}

// Snapshot reports current counts for the stats endpoint.
type Snapshot struct {
	EventsByType     map[string]int64 `json:"eventsByType"`
	DistinctPatients int              `json:"distinctPatients"`
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string]int64, len(s.byType))
	for k, v := range s.byType {
		byType[k] = v
	}
	return Snapshot{
		EventsByType:     byType,
		DistinctPatients: len(s.patients),
	}
}
