package onboarding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credready/internal/compliance/models"
	clinicianstore "credready/internal/compliance/store/clinician"
	definitionstore "credready/internal/compliance/store/definition"
	itemstore "credready/internal/compliance/store/item"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
	"credready/pkg/platform/audit"
	"credready/pkg/testutil"
)

type recordingSink struct {
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, event audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

type OnboardingSuite struct {
	suite.Suite
	defs    *definitionstore.Memory
	items   *itemstore.Memory
	clins   *clinicianstore.Memory
	sink    *recordingSink
	service *Service

	orgID id.OrgID
	admin id.Actor
	now   time.Time
}

func TestOnboardingSuite(t *testing.T) {
	suite.Run(t, new(OnboardingSuite))
}

func (s *OnboardingSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.orgID = id.NewOrgID()
	s.defs = definitionstore.NewMemory()
	s.items = itemstore.NewMemory(s.defs)
	s.clins = clinicianstore.NewMemory(s.items)
	s.sink = &recordingSink{}

	var err error
	s.service, err = New(s.clins, s.defs,
		WithClock(testutil.NewFakeClock(s.now)),
		WithAuditSink(s.sink),
	)
	s.Require().NoError(err)

	s.admin = id.Actor{UserID: id.NewUserID(), OrgID: s.orgID, Role: id.RoleAdmin}
}

func (s *OnboardingSuite) seedDefinition(label string, enabled bool) {
	s.defs.Put(&models.ChecklistItemDefinition{
		ID:      id.NewDefinitionID(),
		OrgID:   s.orgID,
		Label:   label,
		Type:    models.TypeFileUpload,
		Enabled: enabled,
	})
}

func (s *OnboardingSuite) request() Request {
	return Request{
		OrgID:      s.orgID,
		UserID:     id.NewUserID(),
		FirstName:  "Dana",
		LastName:   "Reyes",
		Email:      "dana@example.com",
		Discipline: "RN",
	}
}

func (s *OnboardingSuite) TestOnboard() {
	ctx := context.Background()
	s.seedDefinition("RN License", true)
	s.seedDefinition("TB Test", true)
	s.seedDefinition("Retired Item", false)

	s.Run("clinicians cannot onboard", func() {
		clinician := id.Actor{UserID: id.NewUserID(), OrgID: s.orgID, Role: id.RoleClinician}
		_, err := s.service.Onboard(ctx, clinician, s.request())
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("cross-org onboarding is forbidden", func() {
		req := s.request()
		req.OrgID = id.NewOrgID()
		_, err := s.service.Onboard(ctx, s.admin, req)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("email is required", func() {
		req := s.request()
		req.Email = ""
		_, err := s.service.Onboard(ctx, s.admin, req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("creates the clinician with one item per enabled definition", func() {
		clinician, err := s.service.Onboard(ctx, s.admin, s.request())
		s.Require().NoError(err)

		s.Equal(models.ClinicianOnboarding, clinician.Status)
		s.Equal("dana@example.com", clinician.Email)

		items, err := s.items.ListByClinician(ctx, clinician.ID)
		s.Require().NoError(err)
		s.Require().Len(items, 2)
		for _, iwd := range items {
			s.Equal(models.ItemNotStarted, iwd.Item.Status)
		}

		s.Require().Len(s.sink.events, 1)
		s.Equal(audit.ActionClinicianCreated, s.sink.events[0].Action)
		s.Equal(2, s.sink.events[0].Details.(audit.ClinicianCreatedDetails).ItemCount)
	})
}
