// Package ports defines shared interfaces for the compliance module.
// Interfaces live here when consumed by more than one service so the
// submission, status, override, and sweep packages agree on a single
// contract.
package ports

import (
	"context"
	"log/slog"
	"time"

	"credready/internal/compliance/models"
	id "credready/pkg/domain"
	"credready/pkg/platform/audit"
)

// ClinicianStore persists clinician aggregates.
type ClinicianStore interface {
	// Get returns the clinician or sentinel.ErrNotFound.
	Get(ctx context.Context, clinicianID id.ClinicianID) (*models.Clinician, error)

	// Update persists mutations to an existing clinician.
	Update(ctx context.Context, clinician *models.Clinician) error

	// CreateWithItems creates the clinician and their full checklist item set
	// atomically. Onboarding either fully happens or not at all.
	CreateWithItems(ctx context.Context, clinician *models.Clinician, items []*models.ClinicianChecklistItem) error

	// ListWithLapsedOverrides returns clinicians whose override is active and
	// expired as of now. Fed to the override-expiration sweep.
	ListWithLapsedOverrides(ctx context.Context, now time.Time) ([]*models.Clinician, error)
}

// ItemStore persists checklist items. Items are never deleted; there is no
// delete operation on purpose.
type ItemStore interface {
	// Get returns the item or sentinel.ErrNotFound.
	Get(ctx context.Context, itemID id.ItemID) (*models.ClinicianChecklistItem, error)

	// Update persists mutations to an existing item.
	Update(ctx context.Context, item *models.ClinicianChecklistItem) error

	// ListByClinician returns the clinician's full item set joined with
	// definitions, the unit the status engine computes over.
	ListByClinician(ctx context.Context, clinicianID id.ClinicianID) ([]models.ItemWithDefinition, error)

	// ListApprovedExpiringBefore returns approved items with a set expiry at
	// or before the cutoff. Already-expired items are excluded by status,
	// which is what makes the expiration sweep idempotent.
	ListApprovedExpiringBefore(ctx context.Context, cutoff time.Time) ([]models.ItemWithDefinition, error)

	// ListApprovedExpiringBetween returns approved items whose expiry falls
	// in the half-open interval [from, to). Used by the reminder sweep's
	// day-offset windows.
	ListApprovedExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ItemWithDefinition, error)
}

// DefinitionStore reads checklist item definitions. The engine never writes
// definitions; authoring tooling owns them.
type DefinitionStore interface {
	// Get returns the definition or sentinel.ErrNotFound.
	Get(ctx context.Context, definitionID id.DefinitionID) (*models.ChecklistItemDefinition, error)

	// ListEnabledByOrg returns enabled definitions for onboarding, ordered by
	// section and sort order.
	ListEnabledByOrg(ctx context.Context, orgID id.OrgID) ([]*models.ChecklistItemDefinition, error)
}

// Recipient is who a notification goes to.
type Recipient struct {
	Name  string
	Email string
}

// Notifier delivers expiration reminders. Fire-and-forget from the sweep's
// point of view: a delivery error is logged and counted, never fatal.
type Notifier interface {
	SendExpirationReminder(ctx context.Context, to Recipient, itemLabel string, daysUntilExpiry int, expiresAt time.Time) error
	SendAdminExpirationAlert(ctx context.Context, to Recipient, clinicianName, itemLabel string, daysUntilExpiry int, expiresAt time.Time) error
}

// AdminDirectory resolves the admins and super-admins of an organization for
// near-term expiration alerts.
type AdminDirectory interface {
	ListOrgAdmins(ctx context.Context, orgID id.OrgID) ([]Recipient, error)
}

// ReceiptStorage stores signature receipts by opaque key. Best-effort: a
// failure must not block the signature itself.
type ReceiptStorage interface {
	StoreReceipt(ctx context.Context, key string, data []byte) error
}

// Clock abstracts wall-clock time so expiration and reminder logic is
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// RecomputeLocker serializes status recomputation per clinician, closing the
// lost-update window between concurrent triggers (a review landing while the
// sweep runs). Lock blocks until held or ctx is done; the returned func
// releases.
type RecomputeLocker interface {
	Lock(ctx context.Context, clinicianID id.ClinicianID) (func(), error)
}

// RecordAudit writes an audit event through the sink and mirrors it to the
// structured log. A sink failure is logged and swallowed: the domain
// transition already happened and must not be rolled back over telemetry.
func RecordAudit(ctx context.Context, logger *slog.Logger, sink audit.Sink, event audit.Event) {
	if logger != nil {
		logger.InfoContext(ctx, string(event.Action),
			"log_type", "audit",
			"clinician_id", event.ClinicianID.String(),
			"entity_type", string(event.EntityType),
			"entity_id", event.EntityID,
		)
	}
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, event); err != nil && logger != nil {
		logger.WarnContext(ctx, "failed to record audit event",
			"action", string(event.Action), "error", err)
	}
}
