package models

import (
	"encoding/json"
	"strings"
	"time"

	id "credready/pkg/domain"
)

// ChecklistItemDefinition is the template-level schema for one compliance
// requirement. Immutable from the engine's point of view: authoring tooling
// creates these, the engine only reads them joined against clinician items.
//
// Invariants:
//   - Label is non-empty
//   - Type is one of the ItemType values
//   - Once clinician items reference a definition it is soft-disabled
//     (Enabled=false) rather than deleted
type ChecklistItemDefinition struct {
	ID            id.DefinitionID
	OrgID         id.OrgID
	Label         string
	Section       string
	Type          ItemType
	Required      bool
	Blocking      bool
	AdminOnly     bool
	HasExpiration bool
	SortOrder     int
	Enabled       bool
	// Config carries type-specific settings: agreement text and linked
	// document path for e-signatures, option lists for selects.
	Config    json.RawMessage
	CreatedAt time.Time
}

// IsLicense reports whether this definition represents a state license for
// the purposes of the override safety rule. The match is a case-insensitive
// "license" substring on the label of a blocking item, a fragile proxy kept
// for compatibility with existing templates. A dedicated IsStateLicense flag
// would replace exactly this function.
func (d *ChecklistItemDefinition) IsLicense() bool {
	return d.Blocking && strings.Contains(strings.ToLower(d.Label), "license")
}

// SignatureConfig is the parsed Config for e_signature definitions.
type SignatureConfig struct {
	AgreementText string `json:"agreement_text"`
	// DocumentPath links a document the signer is attesting to. When set, a
	// JSON signature receipt is stored alongside it on submission.
	DocumentPath string `json:"document_path,omitempty"`
}

// SelectConfig is the parsed Config for select and admin_status definitions.
type SelectConfig struct {
	Options []string `json:"options"`
}

// ParseSignatureConfig decodes the signature settings; an empty Config yields
// the zero value, not an error, because agreement text is optional.
func (d *ChecklistItemDefinition) ParseSignatureConfig() (SignatureConfig, error) {
	var cfg SignatureConfig
	if len(d.Config) == 0 {
		return cfg, nil
	}
	err := json.Unmarshal(d.Config, &cfg)
	return cfg, err
}
