package submission

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"credready/internal/compliance/models"
	"credready/internal/compliance/status"
	clinicianstore "credready/internal/compliance/store/clinician"
	definitionstore "credready/internal/compliance/store/definition"
	itemstore "credready/internal/compliance/store/item"
	"credready/internal/storage"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
	"credready/pkg/platform/audit"
	"credready/pkg/testutil"
)

type recordingSink struct {
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, event audit.Event) error {
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) last() audit.Event {
	return s.events[len(s.events)-1]
}

// failingReceipts simulates an object storage outage.
type failingReceipts struct{}

func (failingReceipts) StoreReceipt(context.Context, string, []byte) error {
	return errors.New("bucket unavailable")
}

type SubmissionSuite struct {
	suite.Suite
	defs     *definitionstore.Memory
	items    *itemstore.Memory
	clins    *clinicianstore.Memory
	clock    *testutil.FakeClock
	sink     *recordingSink
	receipts *storage.MemoryReceipts
	service  *Service

	orgID     id.OrgID
	clinician *models.Clinician
	actor     id.Actor // the clinician acting on their own checklist
	admin     id.Actor
	now       time.Time
}

func TestSubmissionSuite(t *testing.T) {
	suite.Run(t, new(SubmissionSuite))
}

func (s *SubmissionSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)
	s.orgID = id.NewOrgID()
	s.defs = definitionstore.NewMemory()
	s.items = itemstore.NewMemory(s.defs)
	s.clins = clinicianstore.NewMemory(s.items)
	s.clock = testutil.NewFakeClock(s.now)
	s.sink = &recordingSink{}
	s.receipts = storage.NewMemoryReceipts()

	engine, err := status.New(s.clins, s.items, status.WithClock(s.clock))
	s.Require().NoError(err)

	s.service, err = New(s.items, s.defs, s.clins, engine,
		WithClock(s.clock),
		WithAuditSink(s.sink),
		WithReceiptStorage(s.receipts),
	)
	s.Require().NoError(err)

	s.clinician = &models.Clinician{
		ID:        id.NewClinicianID(),
		OrgID:     s.orgID,
		UserID:    id.NewUserID(),
		FirstName: "Dana",
		LastName:  "Reyes",
		Email:     "dana@example.com",
		Status:    models.ClinicianOnboarding,
	}
	s.Require().NoError(s.clins.CreateWithItems(context.Background(), s.clinician, nil))

	s.actor = id.Actor{
		UserID:      s.clinician.UserID,
		OrgID:       s.orgID,
		Role:        id.RoleClinician,
		ClinicianID: s.clinician.ID,
	}
	s.admin = id.Actor{
		UserID: id.NewUserID(),
		OrgID:  s.orgID,
		Role:   id.RoleAdmin,
	}
}

func (s *SubmissionSuite) seedDefinition(label string, itemType models.ItemType, mut ...func(*models.ChecklistItemDefinition)) *models.ChecklistItemDefinition {
	def := &models.ChecklistItemDefinition{
		ID:      id.NewDefinitionID(),
		OrgID:   s.orgID,
		Label:   label,
		Type:    itemType,
		Enabled: true,
	}
	for _, m := range mut {
		m(def)
	}
	s.defs.Put(def)
	return def
}

func (s *SubmissionSuite) seedItem(def *models.ChecklistItemDefinition) *models.ClinicianChecklistItem {
	item := models.NewItem(s.clinician.ID, def.ID, s.now)
	s.items.Put(item)
	return item
}

// =============================================================================
// Submit: per-type validation and outcomes
// =============================================================================

func (s *SubmissionSuite) TestSubmitFileUpload() {
	ctx := context.Background()
	def := s.seedDefinition("TB Test Results", models.TypeFileUpload, func(d *models.ChecklistItemDefinition) {
		d.HasExpiration = true
	})
	item := s.seedItem(def)

	s.Run("missing storage path is rejected", func() {
		_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{})
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("upload lands in submitted with document metadata", func() {
		expires := s.now.AddDate(1, 0, 0)
		got, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{
			StoragePath:  "uploads/tb-test.pdf",
			OriginalName: "tb-test.pdf",
			MimeType:     "application/pdf",
			ExpiresAt:    &expires,
		})
		s.Require().NoError(err)

		s.Equal(models.ItemSubmitted, got.Status)
		s.Equal("uploads/tb-test.pdf", got.DocStoragePath)
		s.Require().NotNil(got.ExpiresAt)
		s.Equal(expires, *got.ExpiresAt)

		s.Equal(audit.ActionItemSubmitted, s.sink.last().Action)
	})
}

func (s *SubmissionSuite) TestSubmitIgnoresExpiryWhenDefinitionHasNone() {
	ctx := context.Background()
	def := s.seedDefinition("Resume", models.TypeFileUpload)
	item := s.seedItem(def)

	expires := s.now.AddDate(1, 0, 0)
	got, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{
		StoragePath: "uploads/resume.pdf",
		ExpiresAt:   &expires,
	})
	s.Require().NoError(err)
	s.Nil(got.ExpiresAt)
}

func (s *SubmissionSuite) TestSubmitText() {
	ctx := context.Background()
	item := s.seedItem(s.seedDefinition("NPI Number", models.TypeText))

	_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	got, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{ValueText: "1234567890"})
	s.Require().NoError(err)
	s.Equal(models.ItemSubmitted, got.Status)
	s.Equal("1234567890", got.ValueText)
}

func (s *SubmissionSuite) TestSubmitDateSetsExpiry() {
	ctx := context.Background()
	def := s.seedDefinition("CPR Certification Date", models.TypeDate, func(d *models.ChecklistItemDefinition) {
		d.HasExpiration = true
	})
	item := s.seedItem(def)

	date := time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)
	got, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{ValueDate: &date})
	s.Require().NoError(err)

	s.Require().NotNil(got.ValueDate)
	s.Equal(date, *got.ValueDate)
	s.Require().NotNil(got.ExpiresAt)
	s.Equal(date, *got.ExpiresAt)
}

func (s *SubmissionSuite) TestSubmitSelect() {
	ctx := context.Background()
	item := s.seedItem(s.seedDefinition("Preferred Region", models.TypeSelect))

	_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	got, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{ValueSelect: "north"})
	s.Require().NoError(err)
	s.Equal("north", got.ValueSelect)
}

func (s *SubmissionSuite) TestSubmitESignature() {
	ctx := context.Background()
	cfg, _ := json.Marshal(models.SignatureConfig{
		AgreementText: "I agree to the code of conduct.",
		DocumentPath:  "documents/code-of-conduct.pdf",
	})
	def := s.seedDefinition("Code of Conduct", models.TypeESignature, func(d *models.ChecklistItemDefinition) {
		d.Config = cfg
	})
	item := s.seedItem(def)

	s.Run("signer name is required", func() {
		_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{AgreementAccepted: true})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("agreement must be accepted", func() {
		_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{SignerName: "Dana Reyes"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("valid signature auto-approves with hash and receipt", func() {
		got, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{
			SignerName:        "Dana Reyes",
			AgreementAccepted: true,
		})
		s.Require().NoError(err)

		s.Equal(models.ItemApproved, got.Status)
		s.Equal("Dana Reyes", got.SignerName)
		s.Equal(SignatureHash("Dana Reyes", s.clinician.ID, item.ID, s.now), got.SignatureHash)
		// Clinician self-signature has no admin reviewer.
		s.True(got.ReviewedByID.IsNil())

		s.True(got.ReceiptStored)
		_, ok := s.receipts.Get(got.SignedDocPath)
		s.True(ok)

		s.Equal(audit.ActionItemAutoApproved, s.sink.last().Action)
	})
}

func (s *SubmissionSuite) TestSubmitESignatureReceiptFailureIsNonFatal() {
	ctx := context.Background()
	cfg, _ := json.Marshal(models.SignatureConfig{DocumentPath: "documents/handbook.pdf"})
	def := s.seedDefinition("Handbook Acknowledgement", models.TypeESignature, func(d *models.ChecklistItemDefinition) {
		d.Config = cfg
	})
	item := s.seedItem(def)

	svc, err := New(s.items, s.defs, s.clins, s.mustEngine(),
		WithClock(s.clock),
		WithReceiptStorage(failingReceipts{}),
	)
	s.Require().NoError(err)

	got, err := svc.Submit(ctx, s.actor, item.ID, SubmitRequest{
		SignerName:        "Dana Reyes",
		AgreementAccepted: true,
	})
	s.Require().NoError(err)

	s.Equal(models.ItemApproved, got.Status)
	s.NotEmpty(got.SignatureHash)
	s.False(got.ReceiptStored)
	s.Empty(got.SignedDocPath)
}

func (s *SubmissionSuite) TestSubmitAdminStatus() {
	ctx := context.Background()
	def := s.seedDefinition("Background Check", models.TypeAdminStatus, func(d *models.ChecklistItemDefinition) {
		d.AdminOnly = true
	})
	item := s.seedItem(def)

	s.Run("clinician cannot set an admin status item", func() {
		_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{ValueSelect: "clear"})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("admin submission auto-approves with the admin as reviewer", func() {
		got, err := s.service.Submit(ctx, s.admin, item.ID, SubmitRequest{ValueSelect: "clear"})
		s.Require().NoError(err)

		s.Equal(models.ItemApproved, got.Status)
		s.Equal("clear", got.ValueSelect)
		s.Equal(s.admin.UserID, got.ReviewedByID)
	})
}

func (s *SubmissionSuite) TestSubmitGuards() {
	ctx := context.Background()
	item := s.seedItem(s.seedDefinition("NPI Number", models.TypeText))

	s.Run("approved item cannot be resubmitted", func() {
		item.ApplyApproval(s.admin.UserID, s.now)
		s.Require().NoError(s.items.Update(ctx, item))

		_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{ValueText: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("unknown item reads as not found", func() {
		_, err := s.service.Submit(ctx, s.actor, id.NewItemID(), SubmitRequest{ValueText: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("another clinician's item reads as not found", func() {
		stranger := id.Actor{
			UserID:      id.NewUserID(),
			OrgID:       s.orgID,
			Role:        id.RoleClinician,
			ClinicianID: id.NewClinicianID(),
		}
		_, err := s.service.Submit(ctx, stranger, item.ID, SubmitRequest{ValueText: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("cross-org admin reads as not found", func() {
		foreignAdmin := id.Actor{UserID: id.NewUserID(), OrgID: id.NewOrgID(), Role: id.RoleAdmin}
		_, err := s.service.Submit(ctx, foreignAdmin, item.ID, SubmitRequest{ValueText: "x"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *SubmissionSuite) TestSubmitResubmissionAfterRejection() {
	ctx := context.Background()
	item := s.seedItem(s.seedDefinition("NPI Number", models.TypeText))

	_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{ValueText: "111"})
	s.Require().NoError(err)
	_, err = s.service.Review(ctx, s.admin, item.ID, ReviewRequest{Decision: DecisionRejected, Reason: "typo"})
	s.Require().NoError(err)

	got, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{ValueText: "1234567890"})
	s.Require().NoError(err)

	s.Equal(models.ItemSubmitted, got.Status)
	s.Empty(got.RejectionReason)
	s.True(got.ReviewedByID.IsNil())
}

// =============================================================================
// Review
// =============================================================================

func (s *SubmissionSuite) TestReview() {
	ctx := context.Background()
	// A single blocking definition so an approval flips the clinician ready.
	def := s.seedDefinition("RN License", models.TypeFileUpload, func(d *models.ChecklistItemDefinition) {
		d.Blocking = true
		d.HasExpiration = true
	})
	item := s.seedItem(def)

	_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{StoragePath: "uploads/license.pdf"})
	s.Require().NoError(err)

	s.Run("clinicians cannot review", func() {
		_, err := s.service.Review(ctx, s.actor, item.ID, ReviewRequest{Decision: DecisionApproved})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown decision is rejected", func() {
		_, err := s.service.Review(ctx, s.admin, item.ID, ReviewRequest{Decision: "maybe"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("approval recomputes the clinician status", func() {
		got, err := s.service.Review(ctx, s.admin, item.ID, ReviewRequest{Decision: DecisionApproved})
		s.Require().NoError(err)
		s.Equal(models.ItemApproved, got.Status)
		s.Equal(s.admin.UserID, got.ReviewedByID)

		stored, err := s.clins.Get(ctx, s.clinician.ID)
		s.Require().NoError(err)
		s.Equal(models.ClinicianReady, stored.Status)
	})

	s.Run("approved item cannot be reviewed again", func() {
		_, err := s.service.Review(ctx, s.admin, item.ID, ReviewRequest{Decision: DecisionRejected})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *SubmissionSuite) TestReviewRejectionRecomputes() {
	ctx := context.Background()
	def := s.seedDefinition("RN License", models.TypeFileUpload, func(d *models.ChecklistItemDefinition) {
		d.Blocking = true
	})
	item := s.seedItem(def)

	_, err := s.service.Submit(ctx, s.actor, item.ID, SubmitRequest{StoragePath: "uploads/license.pdf"})
	s.Require().NoError(err)

	got, err := s.service.Review(ctx, s.admin, item.ID, ReviewRequest{
		Decision: DecisionRejected,
		Reason:   "expired document",
		Comment:  "license lapsed in January",
	})
	s.Require().NoError(err)

	s.Equal(models.ItemRejected, got.Status)
	s.Equal("expired document", got.RejectionReason)

	stored, err := s.clins.Get(ctx, s.clinician.ID)
	s.Require().NoError(err)
	s.Equal(models.ClinicianNotReady, stored.Status)

	s.Equal(audit.ActionItemRejected, s.sink.last().Action)
}

// =============================================================================
// Signature hash
// =============================================================================

func TestSignatureHashIsDeterministic(t *testing.T) {
	clinicianID := id.NewClinicianID()
	itemID := id.NewItemID()
	signedAt := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

	a := SignatureHash("Dana Reyes", clinicianID, itemID, signedAt)
	b := SignatureHash("Dana Reyes", clinicianID, itemID, signedAt)
	if a != b {
		t.Fatalf("same inputs produced different hashes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256 digest, got %d chars", len(a))
	}

	if SignatureHash("Dana R", clinicianID, itemID, signedAt) == a {
		t.Fatal("different signer produced the same hash")
	}
	if SignatureHash("Dana Reyes", clinicianID, itemID, signedAt.Add(time.Nanosecond)) == a {
		t.Fatal("different timestamp produced the same hash")
	}
}

func (s *SubmissionSuite) mustEngine() *status.Engine {
	engine, err := status.New(s.clins, s.items, status.WithClock(s.clock))
	s.Require().NoError(err)
	return engine
}
