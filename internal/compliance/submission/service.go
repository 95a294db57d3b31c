// Package submission implements the item-level workflow: clinician
// submissions validated per definition type, admin review decisions, and the
// side effects each transition carries (signature hashing, receipt upload,
// status recomputation).
package submission

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credready/internal/compliance/models"
	"credready/internal/compliance/ports"
	"credready/internal/compliance/status"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
	"credready/pkg/platform/audit"
	"credready/pkg/platform/sentinel"
)

type Service struct {
	items       ports.ItemStore
	definitions ports.DefinitionStore
	clinicians  ports.ClinicianStore
	engine      *status.Engine
	receipts    ports.ReceiptStorage
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

func WithReceiptStorage(storage ports.ReceiptStorage) Option {
	return func(s *Service) { s.receipts = storage }
}

func New(items ports.ItemStore, definitions ports.DefinitionStore, clinicians ports.ClinicianStore, engine *status.Engine, opts ...Option) (*Service, error) {
	if items == nil {
		return nil, fmt.Errorf("item store is required")
	}
	if definitions == nil {
		return nil, fmt.Errorf("definition store is required")
	}
	if clinicians == nil {
		return nil, fmt.Errorf("clinician store is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("status engine is required")
	}

	s := &Service{
		items:       items,
		definitions: definitions,
		clinicians:  clinicians,
		engine:      engine,
		clock:       ports.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitRequest carries the type-specific payload of a submission. Which
// fields matter depends on the definition type; the rest are ignored.
type SubmitRequest struct {
	// file_upload
	StoragePath  string
	OriginalName string
	MimeType     string
	ExpiresAt    *time.Time

	// text / date / select
	ValueText   string
	ValueDate   *time.Time
	ValueSelect string

	// e_signature
	SignerName        string
	AgreementAccepted bool
}

// Submit records a clinician's (or admin's) submission against one checklist
// item. E-signature and admin_status items auto-approve; everything else
// lands in submitted awaiting review. An approval outcome triggers status
// recomputation before returning.
func (s *Service) Submit(ctx context.Context, actor id.Actor, itemID id.ItemID, req SubmitRequest) (*models.ClinicianChecklistItem, error) {
	item, def, clinician, err := s.load(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}

	if def.AdminOnly && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "item is admin-only")
	}
	if err := item.CanSubmit(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	from := item.Status

	switch def.Type {
	case models.TypeFileUpload:
		if req.StoragePath == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "storage path is required for file upload items")
		}
		item.ApplySubmission(now)
		item.DocStoragePath = req.StoragePath
		item.DocOriginalName = req.OriginalName
		item.DocMimeType = req.MimeType
		if def.HasExpiration && req.ExpiresAt != nil {
			item.ExpiresAt = req.ExpiresAt
		}

	case models.TypeText:
		if req.ValueText == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "value_text is required")
		}
		item.ApplySubmission(now)
		item.ValueText = req.ValueText

	case models.TypeDate:
		if req.ValueDate == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "value_date is required")
		}
		item.ApplySubmission(now)
		item.ValueDate = req.ValueDate
		if def.HasExpiration {
			item.ExpiresAt = req.ValueDate
		}

	case models.TypeSelect:
		if req.ValueSelect == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "value_select is required")
		}
		item.ApplySubmission(now)
		item.ValueSelect = req.ValueSelect

	case models.TypeESignature:
		if err := s.applySignature(ctx, actor, item, def, clinician, req, now); err != nil {
			return nil, err
		}

	case models.TypeAdminStatus:
		if !actor.IsAdmin() {
			return nil, dErrors.New(dErrors.CodeForbidden, "admin status items can only be set by admins")
		}
		if req.ValueSelect == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "value_select is required")
		}
		item.ValueSelect = req.ValueSelect
		item.ApplyApproval(actor.UserID, now)

	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown item type %s", def.Type)
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist item")
	}

	action := audit.ActionItemSubmitted
	if item.Status == models.ItemApproved {
		action = audit.ActionItemAutoApproved
	}
	ports.RecordAudit(ctx, s.logger, s.sink, audit.Event{
		OrgID:       clinician.OrgID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		ClinicianID: clinician.ID,
		EntityType:  audit.EntityChecklistItem,
		EntityID:    item.ID.String(),
		Action:      action,
		Details: audit.ItemTransitionDetails{
			DefinitionLabel: def.Label,
			FromStatus:      string(from),
			ToStatus:        string(item.Status),
			SignatureHash:   item.SignatureHash,
		},
	})

	if item.Status == models.ItemApproved {
		if _, err := s.engine.Recompute(ctx, clinician.ID, status.TriggerSubmission); err != nil {
			return nil, err
		}
	}
	return item, nil
}

// ReviewDecision is an admin's verdict on a submitted item.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

type ReviewRequest struct {
	Decision ReviewDecision
	// Reason and Comment are optional on rejection; an absent reason is a UI
	// presentation concern, not an error here.
	Reason  string
	Comment string
}

// Review applies an admin decision to a submitted or pending_review item and
// unconditionally recomputes the clinician's status afterward, since
// rejections can change the aggregate too.
func (s *Service) Review(ctx context.Context, actor id.Actor, itemID id.ItemID, req ReviewRequest) (*models.ClinicianChecklistItem, error) {
	if !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins may review items")
	}

	item, def, clinician, err := s.load(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}
	if err := item.CanReview(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	from := item.Status

	var action audit.Action
	switch req.Decision {
	case DecisionApproved:
		item.ApplyApproval(actor.UserID, now)
		action = audit.ActionItemApproved
	case DecisionRejected:
		item.ApplyRejection(actor.UserID, req.Reason, req.Comment, now)
		action = audit.ActionItemRejected
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown review decision %q", req.Decision)
	}

	if err := s.items.Update(ctx, item); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist item")
	}

	ports.RecordAudit(ctx, s.logger, s.sink, audit.Event{
		OrgID:       clinician.OrgID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		ClinicianID: clinician.ID,
		EntityType:  audit.EntityChecklistItem,
		EntityID:    item.ID.String(),
		Action:      action,
		Details: audit.ItemTransitionDetails{
			DefinitionLabel: def.Label,
			FromStatus:      string(from),
			ToStatus:        string(item.Status),
			RejectionReason: item.RejectionReason,
		},
	})

	if _, err := s.engine.Recompute(ctx, clinician.ID, status.TriggerReview); err != nil {
		return nil, err
	}
	return item, nil
}

// load fetches the item with its definition and owning clinician, enforcing
// tenant isolation: anything outside the actor's org reads as not found, and
// a clinician actor can only touch their own checklist.
func (s *Service) load(ctx context.Context, actor id.Actor, itemID id.ItemID) (*models.ClinicianChecklistItem, *models.ChecklistItemDefinition, *models.Clinician, error) {
	item, err := s.items.Get(ctx, itemID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, nil, dErrors.New(dErrors.CodeNotFound, "item not found")
		}
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load item")
	}

	def, err := s.definitions.Get(ctx, item.DefinitionID)
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load item definition")
	}

	clinician, err := s.clinicians.Get(ctx, item.ClinicianID)
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load clinician")
	}

	if clinician.OrgID != actor.OrgID {
		return nil, nil, nil, dErrors.New(dErrors.CodeNotFound, "item not found")
	}
	if !actor.IsAdmin() && actor.ClinicianID != clinician.ID {
		return nil, nil, nil, dErrors.New(dErrors.CodeNotFound, "item not found")
	}
	return item, def, clinician, nil
}

// applySignature handles the e_signature type: validates the attestation,
// computes the tamper-evidence hash, auto-approves, and best-effort stores a
// JSON receipt when the definition links a document.
func (s *Service) applySignature(ctx context.Context, actor id.Actor, item *models.ClinicianChecklistItem, def *models.ChecklistItemDefinition, clinician *models.Clinician, req SubmitRequest, now time.Time) error {
	if req.SignerName == "" {
		return dErrors.New(dErrors.CodeValidation, "signer_name is required")
	}
	if !req.AgreementAccepted {
		return dErrors.New(dErrors.CodeValidation, "agreement must be explicitly accepted")
	}

	item.SignerName = req.SignerName
	ts := now
	item.SignatureTimestamp = &ts
	item.SignerIP = actor.IP
	item.SignatureHash = SignatureHash(req.SignerName, item.ClinicianID, item.ID, now)

	var reviewer id.UserID
	if actor.IsAdmin() {
		reviewer = actor.UserID
	}
	item.ApplyApproval(reviewer, now)

	cfg, err := def.ParseSignatureConfig()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "malformed signature configuration")
	}
	if cfg.DocumentPath == "" || s.receipts == nil {
		return nil
	}

	receipt := signatureReceipt{
		SignerName:    req.SignerName,
		ClinicianID:   item.ClinicianID.String(),
		ItemID:        item.ID.String(),
		DocumentPath:  cfg.DocumentPath,
		SignedAt:      now.UTC().Format(time.RFC3339Nano),
		SignerIP:      actor.IP,
		SignatureHash: item.SignatureHash,
	}
	data, err := json.Marshal(receipt)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode signature receipt")
	}

	key := fmt.Sprintf("receipts/%s/%s.json", item.ClinicianID, item.ID)
	if err := s.receipts.StoreReceipt(ctx, key, data); err != nil {
		// Non-fatal: the signature stands on its hash; the receipt is a
		// convenience copy.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "signature receipt upload failed",
				"item_id", item.ID.String(), "error", err)
		}
		item.ReceiptStored = false
		return nil
	}
	item.SignedDocPath = key
	item.ReceiptStored = true
	return nil
}

type signatureReceipt struct {
	SignerName    string `json:"signer_name"`
	ClinicianID   string `json:"clinician_id"`
	ItemID        string `json:"item_id"`
	DocumentPath  string `json:"document_path"`
	SignedAt      string `json:"signed_at"`
	SignerIP      string `json:"signer_ip,omitempty"`
	SignatureHash string `json:"signature_hash"`
}

// SignatureHash derives the deterministic tamper-evidence digest over the
// signer name, clinician, item, and signing instant. Content-derived, not
// secret: anyone holding the inputs can verify it.
func SignatureHash(signerName string, clinicianID id.ClinicianID, itemID id.ItemID, signedAt time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", signerName, clinicianID, itemID, signedAt.UTC().Format(time.RFC3339Nano))
	return hex.EncodeToString(h.Sum(nil))
}
