package item

import (
	"context"
	"sort"
	"sync"
	"time"

	"credready/internal/compliance/models"
	"credready/internal/compliance/ports"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
)

// Memory is the in-memory item store. Items are stored by value and returned
// as copies so mutations only land through Update, matching the persistence
// semantics of the postgres store.
type Memory struct {
	mu          sync.RWMutex
	items       map[id.ItemID]models.ClinicianChecklistItem
	definitions ports.DefinitionStore
}

func NewMemory(definitions ports.DefinitionStore) *Memory {
	return &Memory{
		items:       make(map[id.ItemID]models.ClinicianChecklistItem),
		definitions: definitions,
	}
}

// Put inserts or replaces an item directly. Used by the clinician store's
// atomic onboarding and by tests.
func (s *Memory) Put(item *models.ClinicianChecklistItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = *item
}

func (s *Memory) Get(_ context.Context, itemID id.ItemID) (*models.ClinicianChecklistItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := item
	return &out, nil
}

func (s *Memory) Update(_ context.Context, item *models.ClinicianChecklistItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.items[item.ID] = *item
	return nil
}

func (s *Memory) ListByClinician(ctx context.Context, clinicianID id.ClinicianID) ([]models.ItemWithDefinition, error) {
	s.mu.RLock()
	var matched []models.ClinicianChecklistItem
	for _, item := range s.items {
		if item.ClinicianID == clinicianID {
			matched = append(matched, item)
		}
	}
	s.mu.RUnlock()

	return s.join(ctx, matched)
}

func (s *Memory) ListApprovedExpiringBefore(ctx context.Context, cutoff time.Time) ([]models.ItemWithDefinition, error) {
	s.mu.RLock()
	var matched []models.ClinicianChecklistItem
	for _, item := range s.items {
		if item.Status == models.ItemApproved && item.ExpiresAt != nil && !item.ExpiresAt.After(cutoff) {
			matched = append(matched, item)
		}
	}
	s.mu.RUnlock()

	return s.join(ctx, matched)
}

func (s *Memory) ListApprovedExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ItemWithDefinition, error) {
	s.mu.RLock()
	var matched []models.ClinicianChecklistItem
	for _, item := range s.items {
		if item.Status != models.ItemApproved || item.ExpiresAt == nil {
			continue
		}
		at := *item.ExpiresAt
		if !at.Before(from) && at.Before(to) {
			matched = append(matched, item)
		}
	}
	s.mu.RUnlock()

	return s.join(ctx, matched)
}

func (s *Memory) join(ctx context.Context, items []models.ClinicianChecklistItem) ([]models.ItemWithDefinition, error) {
	out := make([]models.ItemWithDefinition, 0, len(items))
	for i := range items {
		item := items[i]
		def, err := s.definitions.Get(ctx, item.DefinitionID)
		if err != nil {
			return nil, err
		}
		out = append(out, models.ItemWithDefinition{Item: &item, Definition: def})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Definition.Section != out[j].Definition.Section {
			return out[i].Definition.Section < out[j].Definition.Section
		}
		return out[i].Definition.SortOrder < out[j].Definition.SortOrder
	})
	return out, nil
}
