package handler

import (
	"time"

	"credready/internal/compliance/models"
	"credready/internal/compliance/sweep"
)

type itemBody struct {
	ID           string `json:"id"`
	ClinicianID  string `json:"clinician_id"`
	DefinitionID string `json:"definition_id"`
	Status       string `json:"status"`

	ValueText   string     `json:"value_text,omitempty"`
	ValueDate   *time.Time `json:"value_date,omitempty"`
	ValueSelect string     `json:"value_select,omitempty"`

	DocStoragePath  string `json:"doc_storage_path,omitempty"`
	DocOriginalName string `json:"doc_original_name,omitempty"`
	DocMimeType     string `json:"doc_mime_type,omitempty"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	ReviewedBy       string     `json:"reviewed_by,omitempty"`
	ReviewedAt       *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`
	RejectionComment string     `json:"rejection_comment,omitempty"`

	SignerName         string     `json:"signer_name,omitempty"`
	SignatureTimestamp *time.Time `json:"signature_timestamp,omitempty"`
	SignatureHash      string     `json:"signature_hash,omitempty"`
	SignedDocPath      string     `json:"signed_doc_path,omitempty"`
	ReceiptStored      bool       `json:"receipt_stored,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func itemResponse(item *models.ClinicianChecklistItem) itemBody {
	body := itemBody{
		ID:                 item.ID.String(),
		ClinicianID:        item.ClinicianID.String(),
		DefinitionID:       item.DefinitionID.String(),
		Status:             string(item.Status),
		ValueText:          item.ValueText,
		ValueDate:          item.ValueDate,
		ValueSelect:        item.ValueSelect,
		DocStoragePath:     item.DocStoragePath,
		DocOriginalName:    item.DocOriginalName,
		DocMimeType:        item.DocMimeType,
		ExpiresAt:          item.ExpiresAt,
		ReviewedAt:         item.ReviewedAt,
		RejectionReason:    item.RejectionReason,
		RejectionComment:   item.RejectionComment,
		SignerName:         item.SignerName,
		SignatureTimestamp: item.SignatureTimestamp,
		SignatureHash:      item.SignatureHash,
		SignedDocPath:      item.SignedDocPath,
		ReceiptStored:      item.ReceiptStored,
		UpdatedAt:          item.UpdatedAt,
	}
	if !item.ReviewedByID.IsNil() {
		body.ReviewedBy = item.ReviewedByID.String()
	}
	return body
}

type overrideBody struct {
	Active    bool       `json:"active"`
	Value     string     `json:"value,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	SetBy     string     `json:"set_by,omitempty"`
	SetAt     *time.Time `json:"set_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type clinicianBody struct {
	ID         string       `json:"id"`
	OrgID      string       `json:"org_id"`
	UserID     string       `json:"user_id"`
	FirstName  string       `json:"first_name"`
	LastName   string       `json:"last_name"`
	Email      string       `json:"email"`
	Discipline string       `json:"discipline,omitempty"`
	Status     string       `json:"status"`
	Override   overrideBody `json:"override"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func clinicianResponse(c *models.Clinician) clinicianBody {
	body := clinicianBody{
		ID:         c.ID.String(),
		OrgID:      c.OrgID.String(),
		UserID:     c.UserID.String(),
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Discipline: c.Discipline,
		Status:     string(c.Status),
		UpdatedAt:  c.UpdatedAt,
	}
	if c.Override.Active {
		body.Override = overrideBody{
			Active:    true,
			Value:     string(c.Override.Value),
			Reason:    c.Override.Reason,
			SetAt:     c.Override.SetAt,
			ExpiresAt: c.Override.ExpiresAt,
		}
		if !c.Override.SetByID.IsNil() {
			body.Override.SetBy = c.Override.SetByID.String()
		}
	}
	return body
}

type blockingSummary struct {
	Total       int  `json:"total"`
	AllApproved bool `json:"all_approved"`
	AnyExpired  bool `json:"any_expired"`
}

type itemSummary struct {
	ID        string     `json:"id"`
	Label     string     `json:"label"`
	Section   string     `json:"section,omitempty"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Blocking  bool       `json:"blocking"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type statusResponse struct {
	Clinician clinicianBody   `json:"clinician"`
	Computed  string          `json:"computed_status"`
	Blocking  blockingSummary `json:"blocking"`
	Items     []itemSummary   `json:"items,omitempty"`
}

type sweepBody struct {
	ItemsExpired         int      `json:"items_expired"`
	OverridesLapsed      int      `json:"overrides_lapsed"`
	RemindersSent        int      `json:"reminders_sent"`
	AdminAlertsSent      int      `json:"admin_alerts_sent"`
	DeliveryFailures     int      `json:"delivery_failures"`
	CliniciansRecomputed int      `json:"clinicians_recomputed"`
	RecomputeErrors      []string `json:"recompute_errors,omitempty"`
}

func sweepResponse(result *sweep.Result) sweepBody {
	body := sweepBody{
		ItemsExpired:         result.ItemsExpired,
		OverridesLapsed:      result.OverridesLapsed,
		RemindersSent:        result.RemindersSent,
		AdminAlertsSent:      result.AdminAlertsSent,
		DeliveryFailures:     result.DeliveryFailures,
		CliniciansRecomputed: result.CliniciansRecomputed,
	}
	for _, err := range result.RecomputeErrors {
		body.RecomputeErrors = append(body.RecomputeErrors, err.Error())
	}
	return body
}
