package models

import (
	"time"

	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
)

// Override is the time-boxed admin-forced status attached to a clinician.
// Active overrides supersede the computed status until they expire, are
// cleared manually, or are force-cleared by the expired-license safety rule.
type Override struct {
	Active    bool
	Value     ClinicianStatus
	Reason    string
	SetByID   id.UserID
	SetAt     *time.Time
	ExpiresAt *time.Time
}

// LapsedAt reports whether the override's own expiry has passed.
func (o Override) LapsedAt(now time.Time) bool {
	return o.Active && o.ExpiresAt != nil && !o.ExpiresAt.After(now)
}

// Clinician is the aggregate root for one contract clinician's onboarding.
//
// Invariants:
//   - Status always equals either the engine's freshly computed status or a
//     currently valid override value; it is never written directly by
//     controllers
//   - The item set is created atomically with the clinician at onboarding and
//     items are never added or removed afterward by this engine
//   - An override is never active while an expired blocking license item
//     exists (enforced at set-time and at every recomputation)
type Clinician struct {
	ID         id.ClinicianID
	OrgID      id.OrgID
	UserID     id.UserID
	FirstName  string
	LastName   string
	Email      string
	Discipline string
	Status     ClinicianStatus
	Override   Override
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OverrideMaxDuration is the hard ceiling on override lifetime. Requests for
// longer windows are clamped, not rejected.
const OverrideMaxDuration = 72 * time.Hour

// CanSetOverride validates an override request against the clinician's
// current item set. The expired-license check happens here at set-time, not
// only at recomputation time.
func (c *Clinician) CanSetOverride(value ClinicianStatus, items []ItemWithDefinition) error {
	if !value.IsOverridable() {
		return dErrors.Newf(dErrors.CodeValidation, "status %s cannot be forced by override", value)
	}
	if HasExpiredBlockingLicense(items) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"override refused: clinician has an expired blocking license item")
	}
	return nil
}

// ApplyOverride activates an override and immediately pins the persisted
// status to its value. Duration is clamped to OverrideMaxDuration; callers
// must not rely on an exact echo of the requested window.
func (c *Clinician) ApplyOverride(value ClinicianStatus, reason string, duration time.Duration, setBy id.UserID, now time.Time) {
	if duration > OverrideMaxDuration {
		duration = OverrideMaxDuration
	}
	setAt := now
	expiresAt := now.Add(duration)
	c.Override = Override{
		Active:    true,
		Value:     value,
		Reason:    reason,
		SetByID:   setBy,
		SetAt:     &setAt,
		ExpiresAt: &expiresAt,
	}
	c.Status = value
	c.UpdatedAt = now
}

// ClearOverride deactivates the override. The caller is responsible for
// recomputing the status afterward; until then Status still holds the
// override value.
func (c *Clinician) ClearOverride(now time.Time) {
	c.Override = Override{}
	c.UpdatedAt = now
}

// ApplyStatus records a freshly computed (or override-resolved) status.
func (c *Clinician) ApplyStatus(status ClinicianStatus, now time.Time) {
	c.Status = status
	c.UpdatedAt = now
}

// FullName is a display helper for reminder notifications.
func (c *Clinician) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}
