package reviewcase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"yeto/internal/entity/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	txcontext "yeto/pkg/platform/tx"
	"yeto/pkg/requestcontext"
)

// PostgresStore persists review cases in PostgreSQL. A partial unique index
// on (normalized_name, reason) WHERE status = 'pending' backs the upsert.
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

const caseColumns = `
	id, candidate_name, normalized_name, reason,
	COALESCE(proposed_action, ''), COALESCE(evidence_summary, ''), status,
	COALESCE(decided_by, ''), COALESCE(decision_note, ''),
	COALESCE(resolved_entity_id::text, ''), created_at, updated_at`

func (s *PostgresStore) UpsertPending(ctx context.Context, rc *models.ReviewCase) (*models.ReviewCase, error) {
	now := requestcontext.Now(ctx)
	row := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO review_cases (
			id, candidate_name, normalized_name, reason,
			proposed_action, evidence_summary, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), 'pending', $7, $7)
		ON CONFLICT (normalized_name, reason) WHERE status = 'pending'
		DO UPDATE SET updated_at = EXCLUDED.updated_at
		RETURNING`+caseColumns,
		rc.ID.String(), rc.CandidateName, rc.NormalizedName, string(rc.Reason),
		rc.ProposedAction, rc.EvidenceSummary, now,
	)
	return scanCase(row)
}

func (s *PostgresStore) Get(ctx context.Context, id domain.ReviewCaseID) (*models.ReviewCase, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT`+caseColumns+` FROM review_cases WHERE id = $1`, id.String())
	return scanCase(row)
}

func (s *PostgresStore) Update(ctx context.Context, rc *models.ReviewCase) error {
	now := requestcontext.Now(ctx)
	resolved := ""
	if !rc.ResolvedEntityID.IsNil() {
		resolved = rc.ResolvedEntityID.String()
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE review_cases SET
			status = $2, decided_by = NULLIF($3, ''), decision_note = NULLIF($4, ''),
			resolved_entity_id = NULLIF($5, '')::uuid, updated_at = $6
		WHERE id = $1`,
		rc.ID.String(), string(rc.Status), rc.DecidedBy, rc.DecisionNote, resolved, now,
	)
	if err != nil {
		return fmt.Errorf("update review case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update review case: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	rc.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.ReviewStatus) ([]*models.ReviewCase, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT`+caseColumns+` FROM review_cases WHERE status = $1 ORDER BY created_at`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}
	defer rows.Close()

	var out []*models.ReviewCase
	for rows.Next() {
		rc, err := scanCaseRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInto(scanner rowScanner) (*models.ReviewCase, error) {
	var rc models.ReviewCase
	var id, reason, status, resolved string
	err := scanner.Scan(&id, &rc.CandidateName, &rc.NormalizedName, &reason,
		&rc.ProposedAction, &rc.EvidenceSummary, &status,
		&rc.DecidedBy, &rc.DecisionNote, &resolved, &rc.CreatedAt, &rc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rc.ID, err = domain.ParseReviewCaseID(id)
	if err != nil {
		return nil, fmt.Errorf("scan review case id: %w", err)
	}
	rc.Reason = models.ReviewReason(reason)
	rc.Status = models.ReviewStatus(status)
	if resolved != "" {
		rc.ResolvedEntityID, err = domain.ParseEntityID(resolved)
		if err != nil {
			return nil, fmt.Errorf("scan resolved entity id: %w", err)
		}
	}
	return &rc, nil
}

func scanCase(row *sql.Row) (*models.ReviewCase, error) {
	rc, err := scanInto(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan review case: %w", err)
	}
	return rc, nil
}

func scanCaseRows(rows *sql.Rows) (*models.ReviewCase, error) {
	rc, err := scanInto(rows)
	if err != nil {
		return nil, fmt.Errorf("scan review case: %w", err)
	}
	return rc, nil
}
