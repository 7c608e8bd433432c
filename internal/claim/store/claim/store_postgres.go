package claim

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	txcontext "yeto/pkg/platform/tx"
	"yeto/pkg/requestcontext"
)

// PostgresStore persists claims in PostgreSQL. Grade and conflict writes are
// guarded by the version column: UPDATE ... WHERE version = $n.
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

func (s *PostgresStore) Create(ctx context.Context, c *models.Claim) error {
	now := requestcontext.Now(ctx)
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO claims (
			id, entity_id, indicator, period, value, unit, vintage,
			conflict_status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, 1, $9, $9)`,
		c.ID.String(), c.Subject.EntityID.String(), c.Subject.Indicator, c.Subject.Period,
		c.Value, c.Unit, c.Vintage, string(domain.ConflictNone), now,
	)
	if err != nil {
		return fmt.Errorf("create claim: %w", err)
	}
	c.Version = 1
	c.ConflictStatus = domain.ConflictNone
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

const claimColumns = `
	id, entity_id, indicator, period, value, unit, COALESCE(vintage, ''),
	COALESCE(grade, ''), COALESCE(grade_explanation, ''), conflict_status,
	COALESCE(superseded_by::text, ''), version, created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id domain.ClaimID) (*models.Claim, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT`+claimColumns+` FROM claims WHERE id = $1`, id.String())
	c, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subject models.Subject) ([]*models.Claim, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT`+claimColumns+` FROM claims
		WHERE entity_id = $1 AND indicator = $2 AND period = $3
		ORDER BY created_at`,
		subject.EntityID.String(), subject.Indicator, subject.Period)
	if err != nil {
		return nil, fmt.Errorf("list claims by subject: %w", err)
	}
	defer rows.Close()

	var out []*models.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListSubjects(ctx context.Context) ([]models.Subject, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT DISTINCT entity_id, indicator, period FROM claims`)
	if err != nil {
		return nil, fmt.Errorf("list claim subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.Subject
	for rows.Next() {
		var entityID, indicator, period string
		if err := rows.Scan(&entityID, &indicator, &period); err != nil {
			return nil, fmt.Errorf("scan claim subject: %w", err)
		}
		id, err := domain.ParseEntityID(entityID)
		if err != nil {
			return nil, fmt.Errorf("scan claim subject: %w", err)
		}
		subjects = append(subjects, models.Subject{EntityID: id, Indicator: indicator, Period: period})
	}
	return subjects, rows.Err()
}

func (s *PostgresStore) UpdateGrade(ctx context.Context, id domain.ClaimID, version int64, grade domain.Grade, explanation string) error {
	return s.conditionalUpdate(ctx, id, version, `
		UPDATE claims SET grade = $3, grade_explanation = $4, version = version + 1, updated_at = $5
		WHERE id = $1 AND version = $2`,
		string(grade), explanation)
}

func (s *PostgresStore) UpdateConflict(ctx context.Context, id domain.ClaimID, version int64, status domain.ConflictStatus) error {
	return s.conditionalUpdate(ctx, id, version, `
		UPDATE claims SET conflict_status = $3, version = version + 1, updated_at = $4
		WHERE id = $1 AND version = $2`,
		string(status))
}

func (s *PostgresStore) conditionalUpdate(ctx context.Context, id domain.ClaimID, version int64, query string, extra ...any) error {
	args := append([]any{id.String(), version}, extra...)
	args = append(args, requestcontext.Now(ctx))
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if affected == 0 {
		// Either the claim is gone or the version moved. Distinguish so
		// callers can retry on version conflicts.
		var exists bool
		checkErr := s.execer(ctx).QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM claims WHERE id = $1)`, id.String()).Scan(&exists)
		if checkErr != nil {
			return fmt.Errorf("update claim: %w", checkErr)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) MarkSuperseded(ctx context.Context, id domain.ClaimID, by domain.ClaimID) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE claims SET superseded_by = $2, version = version + 1, updated_at = $3
		WHERE id = $1`,
		id.String(), by.String(), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("mark claim superseded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark claim superseded: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(scanner rowScanner) (*models.Claim, error) {
	var c models.Claim
	var id, entityID, grade, conflict, superseded string
	err := scanner.Scan(&id, &entityID, &c.Subject.Indicator, &c.Subject.Period,
		&c.Value, &c.Unit, &c.Vintage, &grade, &c.GradeExplanation, &conflict,
		&superseded, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("scan claim: %w", err)
	}
	c.ID, err = domain.ParseClaimID(id)
	if err != nil {
		return nil, fmt.Errorf("scan claim id: %w", err)
	}
	c.Subject.EntityID, err = domain.ParseEntityID(entityID)
	if err != nil {
		return nil, fmt.Errorf("scan claim entity id: %w", err)
	}
	c.Grade = domain.Grade(grade)
	c.ConflictStatus = domain.ConflictStatus(conflict)
	if superseded != "" {
		c.SupersededBy, err = domain.ParseClaimID(superseded)
		if err != nil {
			return nil, fmt.Errorf("scan superseded_by: %w", err)
		}
	}
	return &c, nil
}
