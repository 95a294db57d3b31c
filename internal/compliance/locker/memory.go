// Package locker serializes status recomputation per clinician. Two
// concurrent triggers for the same clinician (a review landing while the
// expiration sweep runs) could otherwise interleave reads and persist a stale
// final status.
package locker

import (
	"context"
	"sync"

	id "credready/pkg/domain"
)

// Memory is a keyed mutex for single-process deployments. Locks are created
// on first use and never reaped; the key space is bounded by the clinician
// population.
type Memory struct {
	mu    sync.Mutex
	locks map[id.ClinicianID]*sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[id.ClinicianID]*sync.Mutex)}
}

func (m *Memory) Lock(_ context.Context, clinicianID id.ClinicianID) (func(), error) {
	m.mu.Lock()
	lock, ok := m.locks[clinicianID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[clinicianID] = lock
	}
	m.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}
