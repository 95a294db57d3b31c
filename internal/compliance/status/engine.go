// Package status implements the ready-to-staff computation: the pure decision
// function over a clinician's item set plus the recomputation orchestration
// that resolves overrides and conditionally persists the result.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"credready/internal/compliance/models"
	"credready/internal/compliance/ports"
	"credready/internal/platform/metrics"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
	"credready/pkg/platform/audit"
	"credready/pkg/platform/sentinel"
)

// Trigger names what caused a recomputation; recorded in the audit trail.
type Trigger string

const (
	TriggerSubmission        Trigger = "submission"
	TriggerReview            Trigger = "review"
	TriggerOverrideCleared   Trigger = "override_cleared"
	TriggerItemExpiration    Trigger = "item_expiration_sweep"
	TriggerOverrideExpiration Trigger = "override_expiration_sweep"
	TriggerManual            Trigger = "manual"
)

// Computed is the base decision before override resolution.
type Computed struct {
	Status              models.ClinicianStatus
	BlockingCount       int
	AllBlockingApproved bool
	AnyBlockingExpired  bool
	AnyNotStarted       bool
}

// Compute is the pure ready-to-staff function.
//
//	ready      iff every blocking item is approved, none expired, and at
//	           least one blocking item exists
//	onboarding iff anything is still not_started and no blocking item expired
//	not_ready  otherwise
//
// A clinician whose template defines no blocking items can never be ready:
// with nothing gating readiness there is nothing vouching for it either.
func Compute(items []models.ItemWithDefinition) Computed {
	c := Computed{AllBlockingApproved: true}

	for _, iwd := range items {
		if iwd.Item.Status == models.ItemNotStarted {
			c.AnyNotStarted = true
		}
		if !iwd.Definition.Blocking {
			continue
		}
		c.BlockingCount++
		if iwd.Item.Status != models.ItemApproved {
			c.AllBlockingApproved = false
		}
		if iwd.Item.Status == models.ItemExpired {
			c.AnyBlockingExpired = true
		}
	}

	switch {
	case c.AllBlockingApproved && !c.AnyBlockingExpired && c.BlockingCount > 0:
		c.Status = models.ClinicianReady
	case c.AnyNotStarted && !c.AnyBlockingExpired:
		c.Status = models.ClinicianOnboarding
	default:
		c.Status = models.ClinicianNotReady
	}
	return c
}

// Outcome reports what a recomputation did.
type Outcome struct {
	// Skipped is true when the clinician has no checklist items yet (a
	// transient onboarding window, not a fault).
	Skipped bool
	// Previous and Final are the persisted statuses before and after.
	Previous models.ClinicianStatus
	Final    models.ClinicianStatus
	// Computed is the base decision before override resolution.
	Computed Computed
	// Changed is true when Final differed from Previous and was persisted.
	Changed bool
	// OverrideApplied is true when Final came from a still-valid override.
	OverrideApplied bool
	// OverrideCleared is non-empty when this recomputation cleared the
	// override, holding the audit reason.
	OverrideCleared string
}

// Engine orchestrates recomputation: lock, read, compute, resolve override,
// persist on change, audit.
type Engine struct {
	clinicians ports.ClinicianStore
	items      ports.ItemStore
	locker     ports.RecomputeLocker
	clock      ports.Clock
	sink       audit.Sink
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithAuditSink(sink audit.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithClock(clock ports.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithLocker(locker ports.RecomputeLocker) Option {
	return func(e *Engine) { e.locker = locker }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(clinicians ports.ClinicianStore, items ports.ItemStore, opts ...Option) (*Engine, error) {
	if clinicians == nil {
		return nil, fmt.Errorf("clinician store is required")
	}
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}

	e := &Engine{
		clinicians: clinicians,
		items:      items,
		clock:      ports.RealClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Recompute re-derives and conditionally persists the clinician's aggregate
// status. Idempotent: calling it again with no intervening item change
// performs no write and records no audit entry, so every item mutation site
// and the sweeps can invoke it without debouncing.
func (e *Engine) Recompute(ctx context.Context, clinicianID id.ClinicianID, trigger Trigger) (*Outcome, error) {
	if e.locker != nil {
		unlock, err := e.locker.Lock(ctx, clinicianID)
		if err != nil {
			// Serialization is an optimization of the lost-update window,
			// not a correctness requirement: recomputation is idempotent.
			if e.logger != nil {
				e.logger.WarnContext(ctx, "recompute lock unavailable, proceeding unserialized",
					"clinician_id", clinicianID.String(), "error", err)
			}
		} else {
			defer unlock()
		}
	}

	clinician, err := e.clinicians.Get(ctx, clinicianID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "clinician not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load clinician")
	}

	items, err := e.items.ListByClinician(ctx, clinicianID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load checklist items")
	}
	if len(items) == 0 {
		return &Outcome{Skipped: true, Previous: clinician.Status, Final: clinician.Status}, nil
	}

	if e.metrics != nil {
		e.metrics.RecomputationsTotal.Inc()
	}

	now := e.clock.Now()
	computed := Compute(items)

	outcome := &Outcome{
		Previous: clinician.Status,
		Computed: computed,
	}

	// Override resolution. Order matters: a lapsed override clears before the
	// license rule is consulted, and the license rule beats any still-valid
	// override unconditionally.
	overrideDirty := false
	switch {
	case clinician.Override.LapsedAt(now):
		e.auditOverrideCleared(ctx, clinician, audit.ClearReasonOverrideExpired)
		clinician.ClearOverride(now)
		outcome.OverrideCleared = audit.ClearReasonOverrideExpired
		overrideDirty = true
		outcome.Final = computed.Status
	case clinician.Override.Active && models.HasExpiredBlockingLicense(items):
		e.auditOverrideCleared(ctx, clinician, audit.ClearReasonExpiredLicense)
		clinician.ClearOverride(now)
		outcome.OverrideCleared = audit.ClearReasonExpiredLicense
		overrideDirty = true
		outcome.Final = computed.Status
	case clinician.Override.Active:
		outcome.OverrideApplied = true
		outcome.Final = clinician.Override.Value
	default:
		outcome.Final = computed.Status
	}

	outcome.Changed = outcome.Final != outcome.Previous
	if !outcome.Changed && !overrideDirty {
		return outcome, nil
	}

	if outcome.Changed {
		clinician.ApplyStatus(outcome.Final, now)
	}
	if err := e.clinicians.Update(ctx, clinician); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist clinician status")
	}

	if outcome.Changed {
		if e.metrics != nil {
			e.metrics.StatusChangesTotal.WithLabelValues(string(outcome.Final)).Inc()
		}
		ports.RecordAudit(ctx, e.logger, e.sink, audit.Event{
			OrgID:       clinician.OrgID,
			ClinicianID: clinician.ID,
			EntityType:  audit.EntityClinician,
			EntityID:    clinician.ID.String(),
			Action:      audit.ActionStatusChanged,
			Details: audit.StatusChangeDetails{
				Previous:       string(outcome.Previous),
				New:            string(outcome.Final),
				Computed:       string(computed.Status),
				OverrideActive: outcome.OverrideApplied,
				Trigger:        string(trigger),
			},
		})
	}

	return outcome, nil
}

func (e *Engine) auditOverrideCleared(ctx context.Context, clinician *models.Clinician, reason string) {
	if e.metrics != nil {
		e.metrics.OverridesClearedTotal.WithLabelValues(reason).Inc()
	}
	ports.RecordAudit(ctx, e.logger, e.sink, audit.Event{
		OrgID:       clinician.OrgID,
		ClinicianID: clinician.ID,
		EntityType:  audit.EntityClinician,
		EntityID:    clinician.ID.String(),
		Action:      audit.ActionOverrideCleared,
		Details: audit.OverrideClearedDetails{
			Value:  string(clinician.Override.Value),
			Reason: reason,
		},
	})
}
