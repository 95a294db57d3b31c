// Package onboarding creates clinicians with their full checklist item set in
// one atomic write. Items are never added or removed afterward by this
// engine; template-level enable/disable is authoring tooling's concern.
package onboarding

import (
	"context"
	"fmt"
	"log/slog"

	"credready/internal/compliance/models"
	"credready/internal/compliance/ports"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
	"credready/pkg/platform/audit"
)

type Service struct {
	clinicians  ports.ClinicianStore
	definitions ports.DefinitionStore
	clock       ports.Clock
	sink        audit.Sink
	logger      *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditSink(sink audit.Sink) Option {
	return func(s *Service) { s.sink = sink }
}

func WithClock(clock ports.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func New(clinicians ports.ClinicianStore, definitions ports.DefinitionStore, opts ...Option) (*Service, error) {
	if clinicians == nil {
		return nil, fmt.Errorf("clinician store is required")
	}
	if definitions == nil {
		return nil, fmt.Errorf("definition store is required")
	}

	s := &Service{
		clinicians:  clinicians,
		definitions: definitions,
		clock:       ports.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Request carries the profile for a new clinician.
type Request struct {
	OrgID      id.OrgID
	UserID     id.UserID
	FirstName  string
	LastName   string
	Email      string
	Discipline string
}

// Onboard creates the clinician in onboarding status together with one
// not_started item per enabled definition in the org's template. All rows
// land in a single transaction: a clinician with a partial checklist never
// exists.
func (s *Service) Onboard(ctx context.Context, actor id.Actor, req Request) (*models.Clinician, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may onboard clinicians")
	}
	if actor.OrgID != req.OrgID {
		return nil, dErrors.New(dErrors.CodeForbidden, "cannot onboard into another organization")
	}
	if req.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}

	defs, err := s.definitions.ListEnabledByOrg(ctx, req.OrgID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load checklist template")
	}

	now := s.clock.Now()
	clinician := &models.Clinician{
		ID:         id.NewClinicianID(),
		OrgID:      req.OrgID,
		UserID:     req.UserID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Discipline: req.Discipline,
		Status:     models.ClinicianOnboarding,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	items := make([]*models.ClinicianChecklistItem, 0, len(defs))
	for _, def := range defs {
		items = append(items, models.NewItem(clinician.ID, def.ID, now))
	}

	if err := s.clinicians.CreateWithItems(ctx, clinician, items); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create clinician")
	}

	ports.RecordAudit(ctx, s.logger, s.sink, audit.Event{
		OrgID:       clinician.OrgID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		ClinicianID: clinician.ID,
		EntityType:  audit.EntityClinician,
		EntityID:    clinician.ID.String(),
		Action:      audit.ActionClinicianCreated,
		Details:     audit.ClinicianCreatedDetails{ItemCount: len(items)},
	})

	return clinician, nil
}
