package models

// ClinicianStatus is the aggregate ready-to-staff status persisted on the
// clinician record. It is always either the engine's freshly computed value or
// a currently valid override value; nothing else writes it.
type ClinicianStatus string

const (
	ClinicianOnboarding ClinicianStatus = "onboarding"
	ClinicianReady      ClinicianStatus = "ready"
	ClinicianNotReady   ClinicianStatus = "not_ready"
	ClinicianInactive   ClinicianStatus = "inactive"
)

func (s ClinicianStatus) IsValid() bool {
	switch s {
	case ClinicianOnboarding, ClinicianReady, ClinicianNotReady, ClinicianInactive:
		return true
	}
	return false
}

// IsOverridable reports whether an admin override may force this value.
// Overrides exist to staff someone whose paperwork is in flight (or bench
// someone whose paperwork technically passes), not to mark people inactive.
func (s ClinicianStatus) IsOverridable() bool {
	return s == ClinicianReady || s == ClinicianNotReady
}

// ItemStatus is the per-checklist-item state machine state.
type ItemStatus string

const (
	ItemNotStarted    ItemStatus = "not_started"
	ItemSubmitted     ItemStatus = "submitted"
	ItemPendingReview ItemStatus = "pending_review"
	ItemApproved      ItemStatus = "approved"
	ItemRejected      ItemStatus = "rejected"
	ItemExpired       ItemStatus = "expired"
)

func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemNotStarted, ItemSubmitted, ItemPendingReview, ItemApproved, ItemRejected, ItemExpired:
		return true
	}
	return false
}

// itemTransitions is the full legal transition table. expired is terminal:
// re-issuance goes through template tooling, not this engine.
var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemNotStarted:    {ItemSubmitted, ItemApproved},
	ItemSubmitted:     {ItemApproved, ItemRejected},
	ItemPendingReview: {ItemApproved, ItemRejected},
	ItemApproved:      {ItemExpired},
	ItemRejected:      {ItemSubmitted, ItemApproved},
	ItemExpired:       {},
}

func (s ItemStatus) CanTransitionTo(target ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Reviewable reports whether an admin decision is legal from this state.
func (s ItemStatus) Reviewable() bool {
	return s == ItemSubmitted || s == ItemPendingReview
}

// ItemType discriminates the per-type submission validation and mutation.
type ItemType string

const (
	TypeFileUpload  ItemType = "file_upload"
	TypeText        ItemType = "text"
	TypeDate        ItemType = "date"
	TypeSelect      ItemType = "select"
	TypeESignature  ItemType = "e_signature"
	TypeAdminStatus ItemType = "admin_status"
)

func (t ItemType) IsValid() bool {
	switch t {
	case TypeFileUpload, TypeText, TypeDate, TypeSelect, TypeESignature, TypeAdminStatus:
		return true
	}
	return false
}

// AutoApproves reports whether submission skips human review entirely.
func (t ItemType) AutoApproves() bool {
	return t == TypeESignature || t == TypeAdminStatus
}
