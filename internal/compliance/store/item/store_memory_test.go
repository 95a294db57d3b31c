package item

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"credready/internal/compliance/models"
	definitionstore "credready/internal/compliance/store/definition"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
)

type MemoryItemStoreSuite struct {
	suite.Suite
	defs  *definitionstore.Memory
	store *Memory

	orgID       id.OrgID
	clinicianID id.ClinicianID
	now         time.Time
}

func TestMemoryItemStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryItemStoreSuite))
}

func (s *MemoryItemStoreSuite) SetupTest() {
	s.defs = definitionstore.NewMemory()
	s.store = NewMemory(s.defs)
	s.orgID = id.NewOrgID()
	s.clinicianID = id.NewClinicianID()
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func (s *MemoryItemStoreSuite) seed(label string, section string, order int, status models.ItemStatus, expiresAt *time.Time) *models.ClinicianChecklistItem {
	def := &models.ChecklistItemDefinition{
		ID:        id.NewDefinitionID(),
		OrgID:     s.orgID,
		Label:     label,
		Section:   section,
		SortOrder: order,
		Type:      models.TypeFileUpload,
		Enabled:   true,
	}
	s.defs.Put(def)

	item := models.NewItem(s.clinicianID, def.ID, s.now)
	item.Status = status
	item.ExpiresAt = expiresAt
	s.store.Put(item)
	return item
}

func (s *MemoryItemStoreSuite) TestGetReturnsCopies() {
	ctx := context.Background()
	item := s.seed("RN License", "credentials", 1, models.ItemNotStarted, nil)

	got, err := s.store.Get(ctx, item.ID)
	s.Require().NoError(err)

	got.Status = models.ItemApproved

	again, err := s.store.Get(ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(models.ItemNotStarted, again.Status)
}

func (s *MemoryItemStoreSuite) TestGetNotFound() {
	_, err := s.store.Get(context.Background(), id.NewItemID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryItemStoreSuite) TestUpdate() {
	ctx := context.Background()
	item := s.seed("RN License", "credentials", 1, models.ItemNotStarted, nil)

	item.Status = models.ItemSubmitted
	s.Require().NoError(s.store.Update(ctx, item))

	got, err := s.store.Get(ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(models.ItemSubmitted, got.Status)

	unknown := models.NewItem(s.clinicianID, id.NewDefinitionID(), s.now)
	s.ErrorIs(s.store.Update(ctx, unknown), sentinel.ErrNotFound)
}

func (s *MemoryItemStoreSuite) TestListByClinicianOrdersBySectionAndSortOrder() {
	ctx := context.Background()
	s.seed("TB Test", "health", 1, models.ItemNotStarted, nil)
	s.seed("RN License", "credentials", 2, models.ItemNotStarted, nil)
	s.seed("CPR Card", "credentials", 1, models.ItemNotStarted, nil)

	// Another clinician's item stays out of the listing.
	other := models.NewItem(id.NewClinicianID(), id.NewDefinitionID(), s.now)
	s.defs.Put(&models.ChecklistItemDefinition{ID: other.DefinitionID, OrgID: s.orgID, Label: "Other", Enabled: true})
	s.store.Put(other)

	items, err := s.store.ListByClinician(ctx, s.clinicianID)
	s.Require().NoError(err)
	s.Require().Len(items, 3)
	s.Equal("CPR Card", items[0].Definition.Label)
	s.Equal("RN License", items[1].Definition.Label)
	s.Equal("TB Test", items[2].Definition.Label)
}

func (s *MemoryItemStoreSuite) TestExpiryQueries() {
	ctx := context.Background()
	past := s.now.Add(-time.Hour)
	nearFuture := s.now.Add(24 * time.Hour)
	farFuture := s.now.Add(30 * 24 * time.Hour)

	lapsed := s.seed("RN License", "credentials", 1, models.ItemApproved, &past)
	upcoming := s.seed("CPR Card", "credentials", 2, models.ItemApproved, &nearFuture)
	s.seed("TB Test", "health", 1, models.ItemApproved, &farFuture)
	s.seed("Flu Shot", "health", 2, models.ItemExpired, &past)    // already expired
	s.seed("Badge Photo", "profile", 1, models.ItemApproved, nil) // no expiry

	s.Run("before excludes non-approved and unexpiring items", func() {
		got, err := s.store.ListApprovedExpiringBefore(ctx, s.now)
		require.NoError(s.T(), err)
		require.Len(s.T(), got, 1)
		assert.Equal(s.T(), lapsed.ID, got[0].Item.ID)
	})

	s.Run("between is half-open", func() {
		got, err := s.store.ListApprovedExpiringBetween(ctx, s.now, s.now.Add(48*time.Hour))
		require.NoError(s.T(), err)
		require.Len(s.T(), got, 1)
		assert.Equal(s.T(), upcoming.ID, got[0].Item.ID)

		// Lower bound inclusive, upper bound exclusive.
		got, err = s.store.ListApprovedExpiringBetween(ctx, nearFuture, nearFuture)
		require.NoError(s.T(), err)
		assert.Empty(s.T(), got)

		got, err = s.store.ListApprovedExpiringBetween(ctx, nearFuture, nearFuture.Add(time.Second))
		require.NoError(s.T(), err)
		assert.Len(s.T(), got, 1)
	})
}
