// Package audit defines the append-only audit trail emitted by the compliance
// engine. Events are write-once: nothing in this module ever updates or
// deletes one. Reporting code outside this module queries them by clinician or
// organization.
package audit

import (
	"time"

	id "credready/pkg/domain"
)

// Action names what happened. Each action has exactly one Details type; the
// pairing is closed on purpose so reporting code can switch exhaustively.
type Action string

const (
	ActionItemSubmitted    Action = "item_submitted"
	ActionItemAutoApproved Action = "item_auto_approved"
	ActionItemApproved     Action = "item_approved"
	ActionItemRejected     Action = "item_rejected"
	ActionItemExpired      Action = "item_expired"
	ActionStatusChanged    Action = "status_changed"
	ActionOverrideSet      Action = "override_set"
	ActionOverrideCleared  Action = "override_cleared"
	ActionReminderSent     Action = "reminder_sent"
	ActionClinicianCreated Action = "clinician_created"
)

// Override clear reasons recorded in OverrideClearedDetails.
const (
	ClearReasonManual          = "manual"
	ClearReasonOverrideExpired = "override_expired"
	ClearReasonExpiredLicense  = "expired_license_detected"
)

// EntityType tags which aggregate an event is about.
type EntityType string

const (
	EntityClinician     EntityType = "clinician"
	EntityChecklistItem EntityType = "checklist_item"
)

// Details is the closed union of per-action payloads. Implementations are the
// only legal values for Event.Details; an open map never appears on the wire.
// ItemTransitionDetails serves every item_* action; the rest pair one-to-one.
type Details interface {
	isAuditDetails()
}

// ItemTransitionDetails records an item state change driven by submission,
// review, or the expiration sweep.
type ItemTransitionDetails struct {
	DefinitionLabel string `json:"definition_label"`
	FromStatus      string `json:"from_status"`
	ToStatus        string `json:"to_status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	SignatureHash   string `json:"signature_hash,omitempty"`
}

// StatusChangeDetails records a persisted change of the clinician's aggregate
// status, including what the engine computed before override resolution.
type StatusChangeDetails struct {
	Previous       string `json:"previous"`
	New            string `json:"new"`
	Computed       string `json:"computed"`
	OverrideActive bool   `json:"override_active"`
	Trigger        string `json:"trigger"`
}

// OverrideSetDetails records an admin forcing a status value.
type OverrideSetDetails struct {
	Value     string    `json:"value"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OverrideClearedDetails records an override being removed and why.
type OverrideClearedDetails struct {
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ReminderDetails records one expiration reminder sent for one item.
type ReminderDetails struct {
	DefinitionLabel string    `json:"definition_label"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	ExpiresAt       time.Time `json:"expires_at"`
	AdminsAlerted   int       `json:"admins_alerted"`
}

// ClinicianCreatedDetails records the atomic onboarding of a clinician with
// their full item set.
type ClinicianCreatedDetails struct {
	ItemCount int `json:"item_count"`
}

func (ItemTransitionDetails) isAuditDetails()   {}
func (StatusChangeDetails) isAuditDetails()     {}
func (OverrideSetDetails) isAuditDetails()      {}
func (OverrideClearedDetails) isAuditDetails()  {}
func (ReminderDetails) isAuditDetails()         {}
func (ClinicianCreatedDetails) isAuditDetails() {}

// Event is one audit trail entry. ActorID is zero for sweep-driven events
// (the system acted, not a user).
type Event struct {
	Timestamp   time.Time
	OrgID       id.OrgID
	ActorID     id.UserID
	ActorRole   id.Role
	ClinicianID id.ClinicianID
	EntityType  EntityType
	EntityID    string
	Action      Action
	Details     Details
}
