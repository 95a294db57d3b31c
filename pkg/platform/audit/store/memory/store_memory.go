package memory

import (
	"context"
	"sync"

	audit "credready/pkg/platform/audit"
)

// Store keeps audit events in memory. Used by unit tests and single-process
// deployments; fan-out to Kafka happens through the postgres outbox store.
type Store struct {
	mu     sync.RWMutex
	events []audit.Event
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Store) ListByClinician(_ context.Context, clinicianID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if e.ClinicianID.String() == clinicianID {
			out = append(out, e)
		}
	}
	return out, nil
}

// All returns every event in append order. Test helper; reporting queries go
// through ListByClinician.
func (s *Store) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
