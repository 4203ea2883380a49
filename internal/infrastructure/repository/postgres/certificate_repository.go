package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/fleet-compliance/internal/core/domain"
)

type CertificateRepository struct {
	db *sql.DB
}

func NewCertificateRepository(db *sql.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CertificateRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS certificates (
	id TEXT PRIMARY KEY,
	ship_id TEXT NOT NULL,
	name TEXT NOT NULL,
	number TEXT NOT NULL,
	number_normalized TEXT NOT NULL,
	category TEXT,
	issue_date TEXT,
	expiry_date TEXT,
	endorsement_date TEXT,
	next_survey_date TEXT,
	issuing_authority TEXT,
	notes TEXT,
	override BOOLEAN NOT NULL DEFAULT FALSE,
	file_ref TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_certificates_ship_number ON certificates(ship_id, number_normalized);
CREATE INDEX IF NOT EXISTS idx_certificates_created_at ON certificates(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CertificateRepository) Create(ctx context.Context, cert *domain.Certificate) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO certificates (
	id, ship_id, name, number, number_normalized, category,
	issue_date, expiry_date, endorsement_date, next_survey_date,
	issuing_authority, notes, override, file_ref, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
`,
		cert.ID, cert.ShipID, cert.Name, cert.Number, cert.NumberNormalized, cert.Category,
		cert.IssueDate, cert.ExpiryDate, cert.EndorsementDate, cert.NextSurveyDate,
		cert.IssuingAuthority, cert.Notes, cert.Override, cert.FileRef, cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert certificate: %w", err)
	}
	return nil
}

func (r *CertificateRepository) GetByID(ctx context.Context, id string) (*domain.Certificate, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, ship_id, name, number, number_normalized, category,
	issue_date, expiry_date, endorsement_date, next_survey_date,
	issuing_authority, notes, override, file_ref, created_at, updated_at
FROM certificates
WHERE id = $1
`, id)

	var cert domain.Certificate
	err := row.Scan(
		&cert.ID, &cert.ShipID, &cert.Name, &cert.Number, &cert.NumberNormalized, &cert.Category,
		&cert.IssueDate, &cert.ExpiryDate, &cert.EndorsementDate, &cert.NextSurveyDate,
		&cert.IssuingAuthority, &cert.Notes, &cert.Override, &cert.FileRef, &cert.CreatedAt, &cert.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrCertificateNotFound, "get certificate", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan certificate: %w", err)
	}
	return &cert, nil
}

func (r *CertificateRepository) FindDuplicate(ctx context.Context, shipID, numberNormalized string) (*domain.CertificateSummary, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, ship_id, name, number, COALESCE(expiry_date, '')
FROM certificates
WHERE ship_id = $1 AND number_normalized = $2
ORDER BY created_at DESC
LIMIT 1
`, shipID, numberNormalized)

	var summary domain.CertificateSummary
	err := row.Scan(&summary.ID, &summary.ShipID, &summary.Name, &summary.Number, &summary.ExpiryDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan duplicate candidate: %w", err)
	}
	return &summary, nil
}
