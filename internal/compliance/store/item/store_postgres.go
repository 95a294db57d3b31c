package item

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credready/internal/compliance/models"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
)

// Postgres persists checklist items. Every list query joins the definition,
// because nothing in the engine consumes an item without its schema.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const joinedColumns = `
	i.id, i.clinician_id, i.definition_id, i.status,
	i.value_text, i.value_date, i.value_select,
	i.doc_storage_path, i.doc_original_name, i.doc_mime_type,
	i.expires_at, i.reviewed_by, i.reviewed_at,
	i.rejection_reason, i.rejection_comment,
	i.signer_name, i.signature_timestamp, i.signer_ip, i.signature_hash, i.signed_doc_path,
	i.created_at, i.updated_at,
	d.id, d.org_id, d.label, d.section, d.type, d.required, d.blocking,
	d.admin_only, d.has_expiration, d.sort_order, d.enabled, d.config, d.created_at`

const joinedFrom = `
	FROM checklist_items i
	JOIN checklist_item_definitions d ON d.id = i.definition_id`

func (s *Postgres) Get(ctx context.Context, itemID id.ItemID) (*models.ClinicianChecklistItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+joinedColumns+joinedFrom+` WHERE i.id = $1`, itemID.String())

	iwd, err := scanJoined(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return iwd.Item, nil
}

func (s *Postgres) Update(ctx context.Context, item *models.ClinicianChecklistItem) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE checklist_items SET
			status = $2, value_text = $3, value_date = $4, value_select = $5,
			doc_storage_path = $6, doc_original_name = $7, doc_mime_type = $8,
			expires_at = $9, reviewed_by = $10, reviewed_at = $11,
			rejection_reason = $12, rejection_comment = $13,
			signer_name = $14, signature_timestamp = $15, signer_ip = $16,
			signature_hash = $17, signed_doc_path = $18, updated_at = $19
		WHERE id = $1
	`, item.ID.String(), string(item.Status), item.ValueText, item.ValueDate,
		item.ValueSelect, item.DocStoragePath, item.DocOriginalName, item.DocMimeType,
		item.ExpiresAt, nullUserID(item.ReviewedByID), item.ReviewedAt,
		item.RejectionReason, item.RejectionComment,
		item.SignerName, item.SignatureTimestamp, item.SignerIP,
		item.SignatureHash, item.SignedDocPath, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update checklist item: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListByClinician(ctx context.Context, clinicianID id.ClinicianID) ([]models.ItemWithDefinition, error) {
	return s.list(ctx,
		`SELECT `+joinedColumns+joinedFrom+`
		 WHERE i.clinician_id = $1
		 ORDER BY d.section, d.sort_order`, clinicianID.String())
}

func (s *Postgres) ListApprovedExpiringBefore(ctx context.Context, cutoff time.Time) ([]models.ItemWithDefinition, error) {
	return s.list(ctx,
		`SELECT `+joinedColumns+joinedFrom+`
		 WHERE i.status = 'approved' AND i.expires_at IS NOT NULL AND i.expires_at <= $1`,
		cutoff)
}

func (s *Postgres) ListApprovedExpiringBetween(ctx context.Context, from, to time.Time) ([]models.ItemWithDefinition, error) {
	return s.list(ctx,
		`SELECT `+joinedColumns+joinedFrom+`
		 WHERE i.status = 'approved' AND i.expires_at >= $1 AND i.expires_at < $2`,
		from, to)
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]models.ItemWithDefinition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checklist items: %w", err)
	}
	defer rows.Close()

	var out []models.ItemWithDefinition
	for rows.Next() {
		iwd, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, iwd)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJoined(row rowScanner) (models.ItemWithDefinition, error) {
	var (
		item models.ClinicianChecklistItem
		def  models.ChecklistItemDefinition

		itemIDRaw, clinRaw, defIDRaw, statusRaw string
		valueDate, expiresAt                    sql.NullTime
		reviewedBy                              sql.NullString
		reviewedAt, signatureTS                 sql.NullTime
		dIDRaw, dOrgRaw, dTypeRaw               string
		config                                  sql.NullString
	)

	err := row.Scan(&itemIDRaw, &clinRaw, &defIDRaw, &statusRaw,
		&item.ValueText, &valueDate, &item.ValueSelect,
		&item.DocStoragePath, &item.DocOriginalName, &item.DocMimeType,
		&expiresAt, &reviewedBy, &reviewedAt,
		&item.RejectionReason, &item.RejectionComment,
		&item.SignerName, &signatureTS, &item.SignerIP, &item.SignatureHash, &item.SignedDocPath,
		&item.CreatedAt, &item.UpdatedAt,
		&dIDRaw, &dOrgRaw, &def.Label, &def.Section, &dTypeRaw, &def.Required, &def.Blocking,
		&def.AdminOnly, &def.HasExpiration, &def.SortOrder, &def.Enabled, &config, &def.CreatedAt)
	if err != nil {
		return models.ItemWithDefinition{}, err
	}

	if item.ID, err = id.ParseItemID(itemIDRaw); err != nil {
		return models.ItemWithDefinition{}, fmt.Errorf("scan item id: %w", err)
	}
	if item.ClinicianID, err = id.ParseClinicianID(clinRaw); err != nil {
		return models.ItemWithDefinition{}, fmt.Errorf("scan item clinician id: %w", err)
	}
	if item.DefinitionID, err = id.ParseDefinitionID(defIDRaw); err != nil {
		return models.ItemWithDefinition{}, fmt.Errorf("scan item definition id: %w", err)
	}
	item.Status = models.ItemStatus(statusRaw)
	if valueDate.Valid {
		t := valueDate.Time
		item.ValueDate = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		item.ExpiresAt = &t
	}
	if reviewedBy.Valid {
		if item.ReviewedByID, err = id.ParseUserID(reviewedBy.String); err != nil {
			return models.ItemWithDefinition{}, fmt.Errorf("scan reviewed_by: %w", err)
		}
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		item.ReviewedAt = &t
	}
	if signatureTS.Valid {
		t := signatureTS.Time
		item.SignatureTimestamp = &t
	}

	if def.ID, err = id.ParseDefinitionID(dIDRaw); err != nil {
		return models.ItemWithDefinition{}, fmt.Errorf("scan definition id: %w", err)
	}
	if def.OrgID, err = id.ParseOrgID(dOrgRaw); err != nil {
		return models.ItemWithDefinition{}, fmt.Errorf("scan definition org id: %w", err)
	}
	def.Type = models.ItemType(dTypeRaw)
	if config.Valid {
		def.Config = []byte(config.String)
	}

	return models.ItemWithDefinition{Item: &item, Definition: &def}, nil
}

func nullUserID(userID id.UserID) any {
	if userID.IsNil() {
		return nil
	}
	return userID.String()
}
