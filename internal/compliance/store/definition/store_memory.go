package definition

import (
	"context"
	"sort"
	"sync"

	"credready/internal/compliance/models"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
)

// Memory is the in-memory definition store. Definitions are authored outside
// the engine, so beyond Get/List it only offers Put for seeding and tests.
type Memory struct {
	mu   sync.RWMutex
	defs map[id.DefinitionID]models.ChecklistItemDefinition
}

func NewMemory() *Memory {
	return &Memory{defs: make(map[id.DefinitionID]models.ChecklistItemDefinition)}
}

func (s *Memory) Put(def *models.ChecklistItemDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[def.ID] = *def
}

func (s *Memory) Get(_ context.Context, definitionID id.DefinitionID) (*models.ChecklistItemDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.defs[definitionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := def
	return &out, nil
}

func (s *Memory) ListEnabledByOrg(_ context.Context, orgID id.OrgID) ([]*models.ChecklistItemDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.ChecklistItemDefinition
	for _, def := range s.defs {
		if def.OrgID == orgID && def.Enabled {
			d := def
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Section != out[j].Section {
			return out[i].Section < out[j].Section
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}
