package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "credready/pkg/domain"
	audit "credready/pkg/platform/audit"
	txcontext "credready/pkg/platform/tx"
)

// Store persists audit events to postgres and, via the transactional outbox,
// to Kafka. The audit_events table serves reporting queries; the outbox row is
// drained by the worker and published, so downstream consumers never miss an
// event that was durably recorded.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// wirePayload is the JSON structure stored in the details column and
// published to Kafka.
type wirePayload struct {
	ID          string          `json:"id"`
	Timestamp   string          `json:"timestamp"`
	OrgID       string          `json:"org_id"`
	ActorID     string          `json:"actor_id,omitempty"`
	ActorRole   string          `json:"actor_role,omitempty"`
	ClinicianID string          `json:"clinician_id,omitempty"`
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Action      string          `json:"action"`
	Details     json.RawMessage `json:"details,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()

	var detailsJSON []byte
	if event.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(event.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	payload := wirePayload{
		ID:         eventID.String(),
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
		OrgID:      event.OrgID.String(),
		EntityType: string(event.EntityType),
		EntityID:   event.EntityID,
		Action:     string(event.Action),
		Details:    detailsJSON,
	}
	if !event.ActorID.IsNil() {
		payload.ActorID = event.ActorID.String()
		payload.ActorRole = string(event.ActorRole)
	}
	if !event.ClinicianID.IsNil() {
		payload.ClinicianID = event.ClinicianID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	exec := s.execer(ctx)

	var actorID, actorRole, clinicianID any
	if !event.ActorID.IsNil() {
		actorID = event.ActorID.String()
		actorRole = string(event.ActorRole)
	}
	if !event.ClinicianID.IsNil() {
		clinicianID = event.ClinicianID.String()
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_events (id, org_id, actor_id, actor_role, clinician_id, entity_type, entity_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, eventID.String(), event.OrgID.String(), actorID, actorRole, clinicianID,
		string(event.EntityType), event.EntityID, string(event.Action), detailsJSON, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New().String(), "clinician", payload.ClinicianID, string(event.Action), payloadBytes, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert audit outbox row: %w", err)
	}

	return nil
}

func (s *Store) ListByClinician(ctx context.Context, clinicianID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT org_id, actor_id, actor_role, clinician_id, entity_type, entity_id, action, created_at
		FROM audit_events
		WHERE clinician_id = $1
		ORDER BY created_at ASC
	`, clinicianID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e               audit.Event
			orgRaw          string
			actorRaw        sql.NullString
			roleRaw         sql.NullString
			clinRaw         sql.NullString
			entityType, act string
		)
		if err := rows.Scan(&orgRaw, &actorRaw, &roleRaw, &clinRaw, &entityType, &e.EntityID, &act, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if orgID, err := id.ParseOrgID(orgRaw); err == nil {
			e.OrgID = orgID
		}
		if actorRaw.Valid {
			if userID, err := id.ParseUserID(actorRaw.String); err == nil {
				e.ActorID = userID
			}
			e.ActorRole = id.Role(roleRaw.String)
		}
		if clinRaw.Valid {
			if cid, err := id.ParseClinicianID(clinRaw.String); err == nil {
				e.ClinicianID = cid
			}
		}
		e.EntityType = audit.EntityType(entityType)
		e.Action = audit.Action(act)
		events = append(events, e)
	}
	return events, rows.Err()
}
