package session

import (
	"sync"
	"time"

	"reconboard/internal/domain"
)

// Snapshot is one complete dashboard state. A new upload or demo load
// replaces it as a whole.
type Snapshot struct {
	RunID      string                  `json:"runId"`
	Source     domain.DataSource       `json:"source"`
	Records    []domain.OrderRecord    `json:"records"`
	Metrics    domain.DashboardMetrics `json:"metrics"`
	Stats      domain.ImportStats      `json:"stats"`
	ImportedAt time.Time               `json:"importedAt"`
}

type Store struct {
	mu      sync.RWMutex
	current *Snapshot
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Replace(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &snapshot
}

// Current returns the active snapshot, or false when nothing has been
// imported yet. Callers must treat the record slice as read-only.
func (s *Store) Current() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
