// Package override implements the time-boxed admin status override: a bounded
// escape hatch that pins the clinician's status, audited on every set and
// clear, and never valid while a blocking license is expired.
package override

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credready/internal/compliance/models"
	"credready/internal/compliance/ports"
	"credready/internal/compliance/status"
	"credready/internal/platform/metrics"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
	"credready/pkg/platform/audit"
	"credready/pkg/platform/sentinel"
)

type Service struct {
	clinicians  ports.ClinicianStore
	items       ports.ItemStore
	engine      *status.Engine
	clock       ports.Clock
	sink        audit.Sink
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxDuration time.Duration
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxDuration lowers the override ceiling below the policy default.
// Values above models.OverrideMaxDuration are ignored; deployments can
// tighten the window, never widen it.
func WithMaxDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 && d < models.OverrideMaxDuration {
			s.maxDuration = d
		}
	}
}

func New(clinicians ports.ClinicianStore, items ports.ItemStore, engine *status.Engine, opts ...Option) (*Service, error) {
	if clinicians == nil {
		return nil, fmt.Errorf("clinician store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("status engine is required")
	}

	s := &Service{
		clinicians:  clinicians,
		items:       items,
		engine:      engine,
		clock:       ports.RealClock{},
		maxDuration: models.OverrideMaxDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetRequest asks for a forced status. ExpiresInHours above the 72-hour
// ceiling is clamped silently; callers must not rely on an exact echo of the
// requested duration.
type SetRequest struct {
	Value          models.ClinicianStatus
	Reason         string
	ExpiresInHours int
}

// Set activates an override and pins the clinician's persisted status to its
// value immediately, without waiting for the next recomputation. Refused with
// an invariant violation when an expired blocking license item exists: the
// safety rule is checked at set-time, not only when the engine next runs.
func (s *Service) Set(ctx context.Context, actor id.Actor, clinicianID id.ClinicianID, req SetRequest) (*models.Clinician, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may set a status override")
	}
	if req.ExpiresInHours <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "expires_in_hours must be positive")
	}

	clinician, err := s.loadClinician(ctx, actor, clinicianID)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListByClinician(ctx, clinicianID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load checklist items")
	}
	if err := clinician.CanSetOverride(req.Value, items); err != nil {
		return nil, err
	}

	duration := time.Duration(req.ExpiresInHours) * time.Hour
	if duration > s.maxDuration {
		duration = s.maxDuration
	}
	now := s.clock.Now()
	clinician.ApplyOverride(req.Value, req.Reason, duration, actor.UserID, now)

	if err := s.clinicians.Update(ctx, clinician); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist override")
	}

	if s.metrics != nil {
		s.metrics.OverridesSetTotal.Inc()
	}
	ports.RecordAudit(ctx, s.logger, s.sink, audit.Event{
		OrgID:       clinician.OrgID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		ClinicianID: clinician.ID,
		EntityType:  audit.EntityClinician,
		EntityID:    clinician.ID.String(),
		Action:      audit.ActionOverrideSet,
		Details: audit.OverrideSetDetails{
			Value:     string(req.Value),
			Reason:    req.Reason,
			ExpiresAt: *clinician.Override.ExpiresAt,
		},
	})

	return clinician, nil
}

// Clear unconditionally removes the override, then re-runs the status engine
// so the persisted status reverts to the freshly computed value.
func (s *Service) Clear(ctx context.Context, actor id.Actor, clinicianID id.ClinicianID, reason string) (*models.Clinician, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may clear a status override")
	}

	clinician, err := s.loadClinician(ctx, actor, clinicianID)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason = audit.ClearReasonManual
	}
	previousValue := clinician.Override.Value

	now := s.clock.Now()
	clinician.ClearOverride(now)
	if err := s.clinicians.Update(ctx, clinician); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist override clear")
	}

	if s.metrics != nil {
		s.metrics.OverridesClearedTotal.WithLabelValues(reason).Inc()
	}
	ports.RecordAudit(ctx, s.logger, s.sink, audit.Event{
		OrgID:       clinician.OrgID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		ClinicianID: clinician.ID,
		EntityType:  audit.EntityClinician,
		EntityID:    clinician.ID.String(),
		Action:      audit.ActionOverrideCleared,
		Details: audit.OverrideClearedDetails{
			Value:  string(previousValue),
			Reason: reason,
		},
	})

	if _, err := s.engine.Recompute(ctx, clinicianID, status.TriggerOverrideCleared); err != nil {
		return nil, err
	}

	// Re-read so the caller sees the post-recompute status.
	refreshed, err := s.clinicians.Get(ctx, clinicianID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload clinician")
	}
	return refreshed, nil
}

func (s *Service) loadClinician(ctx context.Context, actor id.Actor, clinicianID id.ClinicianID) (*models.Clinician, error) {
	clinician, err := s.clinicians.Get(ctx, clinicianID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "clinician not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load clinician")
	}
	if clinician.OrgID != actor.OrgID {
		return nil, dErrors.New(dErrors.CodeNotFound, "clinician not found")
	}
	return clinician, nil
}
