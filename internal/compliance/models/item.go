package models

import (
	"time"

	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
)

// ClinicianChecklistItem is one clinician's instance of a checklist
// requirement: exactly one row per (clinician, definition), created when the
// clinician is onboarded and never deleted afterward (audit trail
// requirement).
//
// Only the submission/review workflow and the expiration sweep mutate an
// item, and every mutation goes through a CanX/ApplyX pair below so the
// transition table in status.go is the single source of legality.
type ClinicianChecklistItem struct {
	ID           id.ItemID
	ClinicianID  id.ClinicianID
	DefinitionID id.DefinitionID
	Status       ItemStatus

	// Value fields; which ones are populated depends on the definition type.
	ValueText   string
	ValueDate   *time.Time
	ValueSelect string

	// Document metadata for file_upload items. DocStoragePath is an opaque
	// object-storage key; the engine never reads file contents.
	DocStoragePath  string
	DocOriginalName string
	DocMimeType     string

	ExpiresAt *time.Time

	// Review metadata.
	ReviewedByID     id.UserID
	ReviewedAt       *time.Time
	RejectionReason  string
	RejectionComment string

	// Signature metadata for e_signature items. SignatureHash is
	// content-derived tamper evidence, not a secret.
	SignerName         string
	SignatureTimestamp *time.Time
	SignerIP           string
	SignatureHash      string
	SignedDocPath      string

	// ReceiptStored reports whether the best-effort signature receipt upload
	// succeeded. Not persisted; informational on the returned item.
	ReceiptStored bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewItem creates a not_started item for a definition at onboarding time.
func NewItem(clinicianID id.ClinicianID, definitionID id.DefinitionID, now time.Time) *ClinicianChecklistItem {
	return &ClinicianChecklistItem{
		ID:           id.NewItemID(),
		ClinicianID:  clinicianID,
		DefinitionID: definitionID,
		Status:       ItemNotStarted,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanSubmit checks whether a clinician submission is legal from the current
// state. Approved items must not be resubmitted; expired items need
// re-issuance, not resubmission.
func (i *ClinicianChecklistItem) CanSubmit() error {
	if i.Status == ItemApproved {
		return dErrors.New(dErrors.CodeInvalidState, "item is already approved")
	}
	if !i.Status.CanTransitionTo(ItemSubmitted) && !i.Status.CanTransitionTo(ItemApproved) {
		return dErrors.Newf(dErrors.CodeInvalidState, "item cannot be submitted from status %s", i.Status)
	}
	return nil
}

// ApplySubmission moves the item to submitted, clearing stale review metadata
// from a prior rejection.
func (i *ClinicianChecklistItem) ApplySubmission(now time.Time) {
	i.Status = ItemSubmitted
	i.ReviewedByID = id.UserID{}
	i.ReviewedAt = nil
	i.RejectionReason = ""
	i.RejectionComment = ""
	i.UpdatedAt = now
}

// CanReview checks whether an admin decision is legal from the current state.
func (i *ClinicianChecklistItem) CanReview() error {
	if !i.Status.Reviewable() {
		return dErrors.Newf(dErrors.CodeInvalidState, "item cannot be reviewed from status %s", i.Status)
	}
	return nil
}

// ApplyApproval records an approval, clearing any prior rejection metadata.
func (i *ClinicianChecklistItem) ApplyApproval(reviewer id.UserID, now time.Time) {
	i.Status = ItemApproved
	i.ReviewedByID = reviewer
	reviewedAt := now
	i.ReviewedAt = &reviewedAt
	i.RejectionReason = ""
	i.RejectionComment = ""
	i.UpdatedAt = now
}

// ApplyRejection records a rejection. Reason and comment are optional; an
// absent reason is presented as "unspecified" by UI layers, not defaulted
// here.
func (i *ClinicianChecklistItem) ApplyRejection(reviewer id.UserID, reason, comment string, now time.Time) {
	i.Status = ItemRejected
	i.ReviewedByID = reviewer
	reviewedAt := now
	i.ReviewedAt = &reviewedAt
	i.RejectionReason = reason
	i.RejectionComment = comment
	i.UpdatedAt = now
}

// CanExpire checks whether the expiration sweep may flip this item. Only
// approved items with a lapsed expiry qualify; the sweep's query enforces the
// same predicate, which is what makes re-runs idempotent.
func (i *ClinicianChecklistItem) CanExpire(now time.Time) error {
	if i.Status != ItemApproved {
		return dErrors.Newf(dErrors.CodeInvalidState, "only approved items expire, item is %s", i.Status)
	}
	if i.ExpiresAt == nil || i.ExpiresAt.After(now) {
		return dErrors.New(dErrors.CodeInvalidState, "item expiry has not passed")
	}
	return nil
}

// ApplyExpiration moves an approved item to expired.
func (i *ClinicianChecklistItem) ApplyExpiration(now time.Time) {
	i.Status = ItemExpired
	i.UpdatedAt = now
}

// ItemWithDefinition joins an item with its definition; the unit the status
// engine computes over.
type ItemWithDefinition struct {
	Item       *ClinicianChecklistItem
	Definition *ChecklistItemDefinition
}

// HasExpiredBlockingLicense reports whether any item in the set is an expired
// instance of a blocking, license-labeled definition. This is the absolute
// override safety predicate: when true, no override may be set and any active
// override is force-cleared on recomputation.
func HasExpiredBlockingLicense(items []ItemWithDefinition) bool {
	for _, iwd := range items {
		if iwd.Item.Status == ItemExpired && iwd.Definition.IsLicense() {
			return true
		}
	}
	return false
}
