// Package handler exposes the compliance engine over HTTP. The surface is
// deliberately thin: decode, delegate to a service, encode. All authorization
// beyond actor extraction lives in the services themselves.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"credready/internal/compliance/models"
	"credready/internal/compliance/onboarding"
	"credready/internal/compliance/override"
	"credready/internal/compliance/status"
	"credready/internal/compliance/submission"
	"credready/internal/compliance/sweep"
	"credready/internal/platform/middleware"
	"credready/internal/transport/http/shared"
	id "credready/pkg/domain"
	dErrors "credready/pkg/domain-errors"
)

// SubmissionService covers item submission and admin review.
type SubmissionService interface {
	Submit(ctx context.Context, actor id.Actor, itemID id.ItemID, req submission.SubmitRequest) (*models.ClinicianChecklistItem, error)
	Review(ctx context.Context, actor id.Actor, itemID id.ItemID, req submission.ReviewRequest) (*models.ClinicianChecklistItem, error)
}

// OverrideService covers the time-boxed status override.
type OverrideService interface {
	Set(ctx context.Context, actor id.Actor, clinicianID id.ClinicianID, req override.SetRequest) (*models.Clinician, error)
	Clear(ctx context.Context, actor id.Actor, clinicianID id.ClinicianID, reason string) (*models.Clinician, error)
}

// OnboardingService provisions a clinician with their checklist.
type OnboardingService interface {
	Onboard(ctx context.Context, actor id.Actor, req onboarding.Request) (*models.Clinician, error)
}

// SweepService runs the daily jobs on demand.
type SweepService interface {
	RunItemExpiration(ctx context.Context) (*sweep.Result, error)
	RunOverrideExpiration(ctx context.Context) (*sweep.Result, error)
	RunReminders(ctx context.Context) (*sweep.Result, error)
}

// StatusReader serves the read side of clinician status.
type StatusReader interface {
	Get(ctx context.Context, clinicianID id.ClinicianID) (*models.Clinician, error)
	ListItems(ctx context.Context, clinicianID id.ClinicianID) ([]models.ItemWithDefinition, error)
}

type Handler struct {
	logger      *slog.Logger
	submissions SubmissionService
	overrides   OverrideService
	onboarding  OnboardingService
	sweeps      SweepService
	statusRead  StatusReader
	signingKey  []byte
	rateLimit   func(http.Handler) http.Handler
}

func New(
	submissions SubmissionService,
	overrides OverrideService,
	onboard OnboardingService,
	sweeps SweepService,
	statusRead StatusReader,
	signingKey []byte,
	logger *slog.Logger) *Handler {
	return &Handler{
		logger:      logger,
		submissions: submissions,
		overrides:   overrides,
		onboarding:  onboard,
		sweeps:      sweeps,
		statusRead:  statusRead,
		signingKey:  signingKey,
	}
}

// UseRateLimit inserts a rate limiting middleware ahead of authentication.
// Call before Register.
func (h *Handler) UseRateLimit(mw func(http.Handler) http.Handler) {
	h.rateLimit = mw
}

// Register mounts the compliance routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	if h.rateLimit != nil {
		router.Use(h.rateLimit)
	}
	router.Use(middleware.RequireAuth(h.signingKey, h.logger))

	router.Post("/clinicians", h.handleOnboard)
	router.Get("/clinicians/{clinicianID}/status", h.handleGetStatus)
	router.Put("/clinicians/{clinicianID}/override", h.handleSetOverride)
	router.Delete("/clinicians/{clinicianID}/override", h.handleClearOverride)
	router.Post("/items/{itemID}/submit", h.handleSubmit)
	router.Post("/items/{itemID}/review", h.handleReview)
	router.Post("/jobs/{job}/run", h.handleRunJob)

	r.Mount("/", router)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.Actor, bool) {
	actor, ok := middleware.GetActor(r.Context())
	if !ok {
		h.logger.ErrorContext(r.Context(), "actor missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()))
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return id.Actor{}, false
	}
	return actor, true
}

type submitBody struct {
	StoragePath  string     `json:"storage_path,omitempty"`
	OriginalName string     `json:"original_name,omitempty"`
	MimeType     string     `json:"mime_type,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`

	ValueText   string     `json:"value_text,omitempty"`
	ValueDate   *time.Time `json:"value_date,omitempty"`
	ValueSelect string     `json:"value_select,omitempty"`

	SignerName        string `json:"signer_name,omitempty"`
	AgreementAccepted bool   `json:"agreement_accepted,omitempty"`
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	item, err := h.submissions.Submit(ctx, actor, itemID, submission.SubmitRequest{
		StoragePath:       body.StoragePath,
		OriginalName:      body.OriginalName,
		MimeType:          body.MimeType,
		ExpiresAt:         body.ExpiresAt,
		ValueText:         body.ValueText,
		ValueDate:         body.ValueDate,
		ValueSelect:       body.ValueSelect,
		SignerName:        body.SignerName,
		AgreementAccepted: body.AgreementAccepted,
	})
	if err != nil {
		h.logWhenInternal(ctx, "submit failed", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, itemResponse(item))
}

type reviewBody struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	itemID, err := id.ParseItemID(chi.URLParam(r, "itemID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body reviewBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	item, err := h.submissions.Review(ctx, actor, itemID, submission.ReviewRequest{
		Decision: submission.ReviewDecision(body.Decision),
		Reason:   body.Reason,
		Comment:  body.Comment,
	})
	if err != nil {
		h.logWhenInternal(ctx, "review failed", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, itemResponse(item))
}

type setOverrideBody struct {
	Value          string `json:"value"`
	Reason         string `json:"reason"`
	ExpiresInHours int    `json:"expires_in_hours"`
}

func (h *Handler) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	clinicianID, err := id.ParseClinicianID(chi.URLParam(r, "clinicianID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var body setOverrideBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	clinician, err := h.overrides.Set(ctx, actor, clinicianID, override.SetRequest{
		Value:          models.ClinicianStatus(body.Value),
		Reason:         body.Reason,
		ExpiresInHours: body.ExpiresInHours,
	})
	if err != nil {
		h.logWhenInternal(ctx, "override set failed", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, clinicianResponse(clinician))
}

type clearOverrideBody struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	clinicianID, err := id.ParseClinicianID(chi.URLParam(r, "clinicianID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	// Body is optional on clear; an empty reason defaults downstream.
	var body clearOverrideBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	clinician, err := h.overrides.Clear(ctx, actor, clinicianID, body.Reason)
	if err != nil {
		h.logWhenInternal(ctx, "override clear failed", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, clinicianResponse(clinician))
}

type onboardBody struct {
	OrgID      string `json:"org_id"`
	UserID     string `json:"user_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Discipline string `json:"discipline"`
}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var body onboardBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	orgID, err := id.ParseOrgID(body.OrgID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	userID, err := id.ParseUserID(body.UserID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	clinician, err := h.onboarding.Onboard(ctx, actor, onboarding.Request{
		OrgID:      orgID,
		UserID:     userID,
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Email:      body.Email,
		Discipline: body.Discipline,
	})
	if err != nil {
		h.logWhenInternal(ctx, "onboarding failed", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, clinicianResponse(clinician))
}

func (h *Handler) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	clinicianID, err := id.ParseClinicianID(chi.URLParam(r, "clinicianID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	clinician, err := h.statusRead.Get(ctx, clinicianID)
	if err != nil {
		h.logWhenInternal(ctx, "status read failed", err)
		shared.WriteError(w, err)
		return
	}
	// Same tenant-isolation rule the services apply: anything outside the
	// actor's org (or another clinician's checklist) reads as not found.
	if clinician.OrgID != actor.OrgID || (!actor.IsAdmin() && actor.ClinicianID != clinician.ID) {
		shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "clinician not found"))
		return
	}

	items, err := h.statusRead.ListItems(ctx, clinicianID)
	if err != nil {
		h.logWhenInternal(ctx, "status read failed", err)
		shared.WriteError(w, err)
		return
	}

	computed := status.Compute(items)
	resp := statusResponse{
		Clinician: clinicianResponse(clinician),
		Computed:  string(computed.Status),
		Blocking: blockingSummary{
			Total:       computed.BlockingCount,
			AllApproved: computed.AllBlockingApproved,
			AnyExpired:  computed.AnyBlockingExpired,
		},
	}
	for _, it := range items {
		resp.Items = append(resp.Items, itemSummary{
			ID:        it.Item.ID.String(),
			Label:     it.Definition.Label,
			Section:   it.Definition.Section,
			Type:      string(it.Definition.Type),
			Status:    string(it.Item.Status),
			Blocking:  it.Definition.Blocking,
			ExpiresAt: it.Item.ExpiresAt,
		})
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRunJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		shared.WriteError(w, dErrors.New(dErrors.CodeForbidden, "only admins may run jobs"))
		return
	}

	var result *sweep.Result
	var err error
	switch job := chi.URLParam(r, "job"); job {
	case "item_expiration":
		result, err = h.sweeps.RunItemExpiration(ctx)
	case "override_expiration":
		result, err = h.sweeps.RunOverrideExpiration(ctx)
	case "reminders":
		result, err = h.sweeps.RunReminders(ctx)
	default:
		shared.WriteError(w, dErrors.Newf(dErrors.CodeNotFound, "unknown job %q", job))
		return
	}
	if err != nil {
		h.logWhenInternal(ctx, "sweep job failed", err)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, sweepResponse(result))
}

// logWhenInternal logs only errors the client will see masked as 500; the
// expected domain errors travel to the client verbatim and need no log line.
func (h *Handler) logWhenInternal(ctx context.Context, msg string, err error) {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}
