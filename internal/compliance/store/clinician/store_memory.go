package clinician

import (
	"context"
	"sync"
	"time"

	"credready/internal/compliance/models"
	itemstore "credready/internal/compliance/store/item"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
)

// Memory is the in-memory clinician store. Onboarding writes the clinician
// and their item set under one lock, mirroring the postgres store's single
// transaction.
type Memory struct {
	mu         sync.RWMutex
	clinicians map[id.ClinicianID]models.Clinician
	items      *itemstore.Memory
}

func NewMemory(items *itemstore.Memory) *Memory {
	return &Memory{
		clinicians: make(map[id.ClinicianID]models.Clinician),
		items:      items,
	}
}

func (s *Memory) Get(_ context.Context, clinicianID id.ClinicianID) (*models.Clinician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.clinicians[clinicianID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := c
	return &out, nil
}

func (s *Memory) Update(_ context.Context, clinician *models.Clinician) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clinicians[clinician.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.clinicians[clinician.ID] = *clinician
	return nil
}

func (s *Memory) CreateWithItems(_ context.Context, clinician *models.Clinician, items []*models.ClinicianChecklistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clinicians[clinician.ID]; ok {
		return sentinel.ErrConflict
	}
	s.clinicians[clinician.ID] = *clinician
	for _, item := range items {
		s.items.Put(item)
	}
	return nil
}

func (s *Memory) ListWithLapsedOverrides(_ context.Context, now time.Time) ([]*models.Clinician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Clinician
	for _, c := range s.clinicians {
		if c.Override.LapsedAt(now) {
			clinician := c
			out = append(out, &clinician)
		}
	}
	return out, nil
}
