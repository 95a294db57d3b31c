// Package domain holds the typed identifiers shared across the compliance
// engine. IDs are distinct uuid newtypes so a clinician ID can never be passed
// where an item ID is expected; the compiler enforces what code review would
// otherwise have to catch.
package domain

import (
	"github.com/google/uuid"

	dErrors "credready/pkg/domain-errors"
)

type (
	// OrgID identifies a home-health agency (tenant boundary).
	OrgID uuid.UUID
	// UserID identifies an account (admin or clinician login).
	UserID uuid.UUID
	// ClinicianID identifies a contract clinician being onboarded.
	ClinicianID uuid.UUID
	// DefinitionID identifies a checklist item definition (template-scoped).
	DefinitionID uuid.UUID
	// ItemID identifies a clinician's instance of a checklist item.
	ItemID uuid.UUID
)

func NewOrgID() OrgID               { return OrgID(uuid.New()) }
func NewUserID() UserID             { return UserID(uuid.New()) }
func NewClinicianID() ClinicianID   { return ClinicianID(uuid.New()) }
func NewDefinitionID() DefinitionID { return DefinitionID(uuid.New()) }
func NewItemID() ItemID             { return ItemID(uuid.New()) }

func (id OrgID) String() string        { return uuid.UUID(id).String() }
func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id ClinicianID) String() string  { return uuid.UUID(id).String() }
func (id DefinitionID) String() string { return uuid.UUID(id).String() }
func (id ItemID) String() string       { return uuid.UUID(id).String() }

func (id OrgID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id ClinicianID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id DefinitionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ItemID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared parsing invariant: IDs must be valid,
// non-empty, non-nil UUIDs. All Parse* helpers funnel through here so trust
// boundaries reject malformed input uniformly.
func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrapf(err, dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be the nil uuid", kind)
	}
	return parsed, nil
}

func ParseOrgID(raw string) (OrgID, error) {
	u, err := parseUUID(raw, "org id")
	return OrgID(u), err
}

func ParseUserID(raw string) (UserID, error) {
	u, err := parseUUID(raw, "user id")
	return UserID(u), err
}

func ParseClinicianID(raw string) (ClinicianID, error) {
	u, err := parseUUID(raw, "clinician id")
	return ClinicianID(u), err
}

func ParseDefinitionID(raw string) (DefinitionID, error) {
	u, err := parseUUID(raw, "definition id")
	return DefinitionID(u), err
}

func ParseItemID(raw string) (ItemID, error) {
	u, err := parseUUID(raw, "item id")
	return ItemID(u), err
}
