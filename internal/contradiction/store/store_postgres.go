package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"yeto/internal/contradiction/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	txcontext "yeto/pkg/platform/tx"
	"yeto/pkg/requestcontext"
)

// PostgresStore persists contradiction records in PostgreSQL. The unique
// index on (claim_a, claim_b) makes Upsert race-safe across detector runs.
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

const recordColumns = `
	id, entity_id, indicator, period, claim_a, claim_b, value_a, value_b,
	sources_a, sources_b, variance_pct, severity, status,
	COALESCE(plausible_reason, ''), COALESCE(resolution_notes, ''),
	created_at, updated_at`

func (s *PostgresStore) Upsert(ctx context.Context, record *models.Record) (*models.Record, error) {
	// Claim pairs are stored in a canonical order so (a,b) and (b,a) hit the
	// same row. Values and source attributions travel with their claim.
	a, b := record.ClaimA, record.ClaimB
	va, vb := record.ValueA, record.ValueB
	sa, sb := record.SourcesA, record.SourcesB
	if a.String() > b.String() {
		a, b = b, a
		va, vb = vb, va
		sa, sb = sb, sa
	}

	now := requestcontext.Now(ctx)
	row := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO contradictions (
			id, entity_id, indicator, period, claim_a, claim_b,
			value_a, value_b, sources_a, sources_b,
			variance_pct, severity, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (claim_a, claim_b) DO UPDATE SET
			value_a = EXCLUDED.value_a,
			value_b = EXCLUDED.value_b,
			sources_a = EXCLUDED.sources_a,
			sources_b = EXCLUDED.sources_b,
			variance_pct = EXCLUDED.variance_pct,
			severity = EXCLUDED.severity,
			updated_at = EXCLUDED.updated_at
		RETURNING`+recordColumns,
		record.ID.String(), record.Subject.EntityID.String(), record.Subject.Indicator,
		record.Subject.Period, a.String(), b.String(), va, vb,
		pq.Array(sa), pq.Array(sb),
		record.Variance, string(record.Severity), string(models.StatusDetected), now,
	)
	stored, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("upsert contradiction: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ContradictionID) (*models.Record, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT`+recordColumns+` FROM contradictions WHERE id = $1`, id.String())
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get contradiction: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) List(ctx context.Context, entityID domain.EntityID, status models.Status) ([]*models.Record, error) {
	query := `SELECT` + recordColumns + ` FROM contradictions WHERE 1=1`
	var args []any
	if !entityID.IsNil() {
		args = append(args, entityID.String())
		query += fmt.Sprintf(" AND entity_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at"

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contradictions: %w", err)
	}
	defer rows.Close()

	var out []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, record *models.Record) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE contradictions
		SET status = $2, plausible_reason = NULLIF($3, ''), resolution_notes = NULLIF($4, ''), updated_at = $5
		WHERE id = $1`,
		record.ID.String(), string(record.Status), string(record.PlausibleReason),
		record.ResolutionNotes, requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("update contradiction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update contradiction: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*models.Record, error) {
	var r models.Record
	var id, entityID, claimA, claimB, severity, status, reason string
	var sourcesA, sourcesB pq.StringArray
	err := scanner.Scan(&id, &entityID, &r.Subject.Indicator, &r.Subject.Period,
		&claimA, &claimB, &r.ValueA, &r.ValueB, &sourcesA, &sourcesB,
		&r.Variance, &severity, &status,
		&reason, &r.ResolutionNotes, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan contradiction: %w", err)
	}
	if r.ID, err = domain.ParseContradictionID(id); err != nil {
		return nil, fmt.Errorf("scan contradiction id: %w", err)
	}
	if r.Subject.EntityID, err = domain.ParseEntityID(entityID); err != nil {
		return nil, fmt.Errorf("scan contradiction entity id: %w", err)
	}
	if r.ClaimA, err = domain.ParseClaimID(claimA); err != nil {
		return nil, fmt.Errorf("scan contradiction claim id: %w", err)
	}
	if r.ClaimB, err = domain.ParseClaimID(claimB); err != nil {
		return nil, fmt.Errorf("scan contradiction claim id: %w", err)
	}
	r.SourcesA = []string(sourcesA)
	r.SourcesB = []string(sourcesB)
	r.Severity = models.Severity(severity)
	r.Status = models.Status(status)
	r.PlausibleReason = models.PlausibleReason(reason)
	return &r, nil
}
