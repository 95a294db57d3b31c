package definition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"credready/internal/compliance/models"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
)

// Postgres reads checklist item definitions. The engine never writes them;
// template authoring happens in a separate service against the same table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const definitionColumns = `
	id, org_id, label, section, type, required, blocking, admin_only,
	has_expiration, sort_order, enabled, config, created_at`

func (s *Postgres) Get(ctx context.Context, definitionID id.DefinitionID) (*models.ChecklistItemDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM checklist_item_definitions WHERE id = $1`,
		definitionID.String())

	def, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return def, err
}

func (s *Postgres) ListEnabledByOrg(ctx context.Context, orgID id.OrgID) ([]*models.ChecklistItemDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+definitionColumns+`
		FROM checklist_item_definitions
		WHERE org_id = $1 AND enabled
		ORDER BY section, sort_order
	`, orgID.String())
	if err != nil {
		return nil, fmt.Errorf("query definitions: %w", err)
	}
	defer rows.Close()

	var out []*models.ChecklistItemDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (*models.ChecklistItemDefinition, error) {
	var (
		def             models.ChecklistItemDefinition
		idRaw, orgRaw   string
		typeRaw, config sql.NullString
	)
	err := row.Scan(&idRaw, &orgRaw, &def.Label, &def.Section, &typeRaw,
		&def.Required, &def.Blocking, &def.AdminOnly, &def.HasExpiration,
		&def.SortOrder, &def.Enabled, &config, &def.CreatedAt)
	if err != nil {
		return nil, err
	}

	if def.ID, err = id.ParseDefinitionID(idRaw); err != nil {
		return nil, fmt.Errorf("scan definition id: %w", err)
	}
	if def.OrgID, err = id.ParseOrgID(orgRaw); err != nil {
		return nil, fmt.Errorf("scan definition org id: %w", err)
	}
	def.Type = models.ItemType(typeRaw.String)
	if config.Valid {
		def.Config = []byte(config.String)
	}
	return &def, nil
}
