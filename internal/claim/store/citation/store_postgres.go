package citation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	txcontext "yeto/pkg/platform/tx"
)

// PostgresStore persists citations in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Add(ctx context.Context, c *models.Citation) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO citations (
			id, claim_id, source_id, publisher, source_type, url,
			retrieved_at, license_open, estimate, archived
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, FALSE)`,
		c.ID.String(), c.ClaimID.String(), c.SourceID, c.Publisher, c.SourceType,
		c.URL, c.RetrievedAt, c.LicenseOpen, c.Estimate,
	)
	if err != nil {
		return fmt.Errorf("add citation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Archive(ctx context.Context, id domain.CitationID) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE citations SET archived = TRUE WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("archive citation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive citation: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByClaim(ctx context.Context, claimID domain.ClaimID) ([]models.Citation, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, claim_id, source_id, publisher, source_type, COALESCE(url, ''),
			retrieved_at, license_open, estimate, archived
		FROM citations WHERE claim_id = $1 ORDER BY retrieved_at`,
		claimID.String())
	if err != nil {
		return nil, fmt.Errorf("list citations: %w", err)
	}
	defer rows.Close()

	var out []models.Citation
	for rows.Next() {
		var c models.Citation
		var id, claim string
		if err := rows.Scan(&id, &claim, &c.SourceID, &c.Publisher, &c.SourceType,
			&c.URL, &c.RetrievedAt, &c.LicenseOpen, &c.Estimate, &c.Archived); err != nil {
			return nil, fmt.Errorf("scan citation: %w", err)
		}
		if c.ID, err = domain.ParseCitationID(id); err != nil {
			return nil, fmt.Errorf("scan citation id: %w", err)
		}
		if c.ClaimID, err = domain.ParseClaimID(claim); err != nil {
			return nil, fmt.Errorf("scan citation claim id: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountActiveByEntity(ctx context.Context, entityID domain.EntityID) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM citations ci
		JOIN claims cl ON cl.id = ci.claim_id
		WHERE cl.entity_id = $1 AND NOT ci.archived`,
		entityID.String()).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count citations by entity: %w", err)
	}
	return count, nil
}
