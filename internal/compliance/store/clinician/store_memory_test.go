package clinician

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credready/internal/compliance/models"
	definitionstore "credready/internal/compliance/store/definition"
	itemstore "credready/internal/compliance/store/item"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
)

type MemoryClinicianStoreSuite struct {
	suite.Suite
	items *itemstore.Memory
	store *Memory
	now   time.Time
}

func TestMemoryClinicianStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryClinicianStoreSuite))
}

func (s *MemoryClinicianStoreSuite) SetupTest() {
	defs := definitionstore.NewMemory()
	s.items = itemstore.NewMemory(defs)
	s.store = NewMemory(s.items)
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func (s *MemoryClinicianStoreSuite) newClinician() *models.Clinician {
	return &models.Clinician{
		ID:     id.NewClinicianID(),
		OrgID:  id.NewOrgID(),
		UserID: id.NewUserID(),
		Email:  "dana@example.com",
		Status: models.ClinicianOnboarding,
	}
}

func (s *MemoryClinicianStoreSuite) TestCreateWithItems() {
	ctx := context.Background()
	c := s.newClinician()
	items := []*models.ClinicianChecklistItem{
		models.NewItem(c.ID, id.NewDefinitionID(), s.now),
		models.NewItem(c.ID, id.NewDefinitionID(), s.now),
	}

	s.Require().NoError(s.store.CreateWithItems(ctx, c, items))

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(c.Email, got.Email)

	for _, item := range items {
		_, err := s.items.Get(ctx, item.ID)
		s.NoError(err)
	}
}

func (s *MemoryClinicianStoreSuite) TestCreateWithItemsConflict() {
	ctx := context.Background()
	c := s.newClinician()

	s.Require().NoError(s.store.CreateWithItems(ctx, c, nil))
	s.ErrorIs(s.store.CreateWithItems(ctx, c, nil), sentinel.ErrConflict)
}

func (s *MemoryClinicianStoreSuite) TestGetReturnsCopies() {
	ctx := context.Background()
	c := s.newClinician()
	s.Require().NoError(s.store.CreateWithItems(ctx, c, nil))

	got, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	got.Status = models.ClinicianReady

	again, err := s.store.Get(ctx, c.ID)
	s.Require().NoError(err)
	s.Equal(models.ClinicianOnboarding, again.Status)
}

func (s *MemoryClinicianStoreSuite) TestUpdateUnknownClinician() {
	s.ErrorIs(s.store.Update(context.Background(), s.newClinician()), sentinel.ErrNotFound)
}

func (s *MemoryClinicianStoreSuite) TestListWithLapsedOverrides() {
	ctx := context.Background()

	lapsed := s.newClinician()
	lapsed.ApplyOverride(models.ClinicianReady, "grace", time.Hour, id.NewUserID(), s.now.Add(-2*time.Hour))
	s.Require().NoError(s.store.CreateWithItems(ctx, lapsed, nil))

	active := s.newClinician()
	active.ApplyOverride(models.ClinicianReady, "grace", 48*time.Hour, id.NewUserID(), s.now)
	s.Require().NoError(s.store.CreateWithItems(ctx, active, nil))

	plain := s.newClinician()
	s.Require().NoError(s.store.CreateWithItems(ctx, plain, nil))

	got, err := s.store.ListWithLapsedOverrides(ctx, s.now)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(lapsed.ID, got[0].ID)
}
