package clinician

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"credready/internal/compliance/models"
	id "credready/pkg/domain"
	"credready/pkg/platform/sentinel"
	txcontext "credready/pkg/platform/tx"
)

// Postgres persists clinicians. Onboarding runs in a single transaction so
// the clinician and their full item set appear atomically.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const clinicianColumns = `
	id, org_id, user_id, first_name, last_name, email, discipline, status,
	override_active, override_value, override_reason, override_set_by,
	override_set_at, override_expires_at, created_at, updated_at`

func (s *Postgres) Get(ctx context.Context, clinicianID id.ClinicianID) (*models.Clinician, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+clinicianColumns+`
		FROM clinicians WHERE id = $1
	`, clinicianID.String())

	c, err := scanClinician(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return c, err
}

func (s *Postgres) Update(ctx context.Context, c *models.Clinician) error {
	var exec interface {
		ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	} = s.db
	if tx, ok := txcontext.From(ctx); ok {
		exec = tx
	}

	res, err := exec.ExecContext(ctx, `
		UPDATE clinicians SET
			first_name = $2, last_name = $3, email = $4, discipline = $5,
			status = $6, override_active = $7, override_value = $8,
			override_reason = $9, override_set_by = $10, override_set_at = $11,
			override_expires_at = $12, updated_at = $13
		WHERE id = $1
	`, c.ID.String(), c.FirstName, c.LastName, c.Email, c.Discipline,
		string(c.Status), c.Override.Active, string(c.Override.Value),
		c.Override.Reason, nullUUID(c.Override.SetByID), c.Override.SetAt,
		c.Override.ExpiresAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update clinician: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateWithItems(ctx context.Context, c *models.Clinician, items []*models.ClinicianChecklistItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin onboarding tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO clinicians (`+clinicianColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, c.ID.String(), c.OrgID.String(), c.UserID.String(),
		c.FirstName, c.LastName, c.Email, c.Discipline, string(c.Status),
		c.Override.Active, string(c.Override.Value), c.Override.Reason,
		nullUUID(c.Override.SetByID), c.Override.SetAt, c.Override.ExpiresAt,
		c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert clinician: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO checklist_items (id, clinician_id, definition_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, item.ID.String(), item.ClinicianID.String(), item.DefinitionID.String(),
			string(item.Status), item.CreatedAt, item.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert checklist item: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Postgres) ListWithLapsedOverrides(ctx context.Context, now time.Time) ([]*models.Clinician, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+clinicianColumns+`
		FROM clinicians
		WHERE override_active AND override_expires_at <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("query lapsed overrides: %w", err)
	}
	defer rows.Close()

	var out []*models.Clinician
	for rows.Next() {
		c, err := scanClinician(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClinician(row rowScanner) (*models.Clinician, error) {
	var (
		c                           models.Clinician
		idRaw, orgRaw, userRaw      string
		statusRaw, overrideValueRaw string
		setByRaw                    sql.NullString
		setAt, expiresAt            sql.NullTime
	)
	err := row.Scan(&idRaw, &orgRaw, &userRaw,
		&c.FirstName, &c.LastName, &c.Email, &c.Discipline, &statusRaw,
		&c.Override.Active, &overrideValueRaw, &c.Override.Reason,
		&setByRaw, &setAt, &expiresAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if c.ID, err = id.ParseClinicianID(idRaw); err != nil {
		return nil, fmt.Errorf("scan clinician id: %w", err)
	}
	if c.OrgID, err = id.ParseOrgID(orgRaw); err != nil {
		return nil, fmt.Errorf("scan clinician org id: %w", err)
	}
	if c.UserID, err = id.ParseUserID(userRaw); err != nil {
		return nil, fmt.Errorf("scan clinician user id: %w", err)
	}
	c.Status = models.ClinicianStatus(statusRaw)
	c.Override.Value = models.ClinicianStatus(overrideValueRaw)
	if setByRaw.Valid {
		if c.Override.SetByID, err = id.ParseUserID(setByRaw.String); err != nil {
			return nil, fmt.Errorf("scan override set_by: %w", err)
		}
	}
	if setAt.Valid {
		t := setAt.Time
		c.Override.SetAt = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		c.Override.ExpiresAt = &t
	}
	return &c, nil
}

func nullUUID(userID id.UserID) any {
	if userID.IsNil() {
		return nil
	}
	return userID.String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
