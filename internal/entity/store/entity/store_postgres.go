package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"yeto/internal/entity/models"
	"yeto/internal/normalize"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	txcontext "yeto/pkg/platform/tx"
	"yeto/pkg/requestcontext"
)

// PostgresStore persists entities, aliases and external references in
// PostgreSQL. Writes go through the transaction carried in ctx when one is
// present, so a resolution applies atomically.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed entity store.
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

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func (s *PostgresStore) Create(ctx context.Context, e *models.Entity) error {
	now := requestcontext.Now(ctx)
	execer := s.execer(ctx)
	_, err := execer.ExecContext(ctx, `
		INSERT INTO entities (
			id, name_en, name_ar, normalized_name_en, normalized_name_ar,
			kind, regime_tag, regime_status, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $10)`,
		e.ID.String(), e.NameEn, e.NameAr,
		normalize.Name(e.NameEn), normalize.Name(e.NameAr),
		string(e.Kind), string(e.RegimeTag), string(e.RegimeStatus), string(e.Status), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("entity %q: %w", e.NameEn, sentinel.ErrConflict)
		}
		return fmt.Errorf("create entity: %w", err)
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

const entityColumns = `
	id, name_en, COALESCE(name_ar, ''), kind, regime_tag, regime_status,
	status, COALESCE(merged_into::text, ''), created_at, updated_at`

func (s *PostgresStore) Get(ctx context.Context, id domain.EntityID) (*models.Entity, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT`+entityColumns+` FROM entities WHERE id = $1`, id.String())
	return scanEntity(row)
}

func (s *PostgresStore) Update(ctx context.Context, e *models.Entity) error {
	now := requestcontext.Now(ctx)
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE entities SET
			name_en = $2, name_ar = NULLIF($3, ''),
			normalized_name_en = $4, normalized_name_ar = NULLIF($5, ''),
			kind = $6, regime_tag = $7, regime_status = $8,
			status = $9, merged_into = NULLIF($10, '')::uuid, updated_at = $11
		WHERE id = $1`,
		e.ID.String(), e.NameEn, e.NameAr,
		normalize.Name(e.NameEn), normalize.Name(e.NameAr),
		string(e.Kind), string(e.RegimeTag), string(e.RegimeStatus),
		string(e.Status), mergedIntoParam(e), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("entity %q: %w", e.NameEn, sentinel.ErrConflict)
		}
		return fmt.Errorf("update entity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	e.UpdatedAt = now
	return nil
}

func mergedIntoParam(e *models.Entity) string {
	if e.MergedInto.IsNil() {
		return ""
	}
	return e.MergedInto.String()
}

func (s *PostgresStore) FindByNormalizedName(ctx context.Context, normalized string) (*models.Entity, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT`+entityColumns+` FROM entities
		WHERE (normalized_name_en = $1 OR normalized_name_ar = $1)
		  AND status <> 'merged'`, normalized)
	return scanEntity(row)
}

func (s *PostgresStore) FindByAlias(ctx context.Context, normalized string) (*models.Entity, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT`+entityColumns+` FROM entities e
		JOIN entity_aliases a ON a.entity_id = e.id
		WHERE a.normalized_alias = $1`, normalized)
	return scanEntity(row)
}

func (s *PostgresStore) FindByExternalRef(ctx context.Context, system, externalID string) (*models.Entity, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT`+entityColumns+` FROM entities e
		JOIN entity_external_refs r ON r.entity_id = e.id
		WHERE r.system = $1 AND r.external_id = $2`, system, externalID)
	return scanEntity(row)
}

func (s *PostgresStore) AddAlias(ctx context.Context, alias models.Alias) error {
	normalized := normalize.Name(alias.Alias)
	if normalized == "" {
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO entity_aliases (entity_id, alias, normalized_alias, language, source, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (normalized_alias) DO NOTHING`,
		alias.EntityID.String(), alias.Alias, normalized,
		alias.Language, alias.Source, alias.Confidence,
	)
	if err != nil {
		return fmt.Errorf("add alias: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddExternalRef(ctx context.Context, ref models.ExternalReference) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO entity_external_refs (entity_id, system, external_id, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (system, external_id) DO NOTHING`,
		ref.EntityID.String(), ref.System, ref.ExternalID, ref.URL,
	)
	if err != nil {
		return fmt.Errorf("add external ref: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAliases(ctx context.Context, id domain.EntityID) ([]models.Alias, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT entity_id, alias, COALESCE(language, ''), COALESCE(source, ''), confidence
		FROM entity_aliases WHERE entity_id = $1 ORDER BY alias`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list aliases: %w", err)
	}
	defer rows.Close()

	var aliases []models.Alias
	for rows.Next() {
		var a models.Alias
		var entityID string
		if err := rows.Scan(&entityID, &a.Alias, &a.Language, &a.Source, &a.Confidence); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		a.EntityID, err = domain.ParseEntityID(entityID)
		if err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (s *PostgresStore) ListExternalRefs(ctx context.Context, id domain.EntityID) ([]models.ExternalReference, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT entity_id, system, external_id, COALESCE(url, '')
		FROM entity_external_refs WHERE entity_id = $1 ORDER BY system, external_id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list external refs: %w", err)
	}
	defer rows.Close()

	var refs []models.ExternalReference
	for rows.Next() {
		var r models.ExternalReference
		var entityID string
		if err := rows.Scan(&entityID, &r.System, &r.ExternalID, &r.URL); err != nil {
			return nil, fmt.Errorf("scan external ref: %w", err)
		}
		r.EntityID, err = domain.ParseEntityID(entityID)
		if err != nil {
			return nil, fmt.Errorf("scan external ref: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *PostgresStore) MoveAliases(ctx context.Context, from, to domain.EntityID) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE entity_aliases SET entity_id = $2 WHERE entity_id = $1`,
		from.String(), to.String())
	if err != nil {
		return fmt.Errorf("move aliases: %w", err)
	}
	return nil
}

func (s *PostgresStore) MoveExternalRefs(ctx context.Context, from, to domain.EntityID) error {
	_, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE entity_external_refs SET entity_id = $2 WHERE entity_id = $1`,
		from.String(), to.String())
	if err != nil {
		return fmt.Errorf("move external refs: %w", err)
	}
	return nil
}

func scanEntity(row *sql.Row) (*models.Entity, error) {
	var e models.Entity
	var id, kind, regimeTag, regimeStatus, status, mergedInto string
	err := row.Scan(&id, &e.NameEn, &e.NameAr, &kind, &regimeTag, &regimeStatus,
		&status, &mergedInto, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan entity: %w", err)
	}
	e.ID, err = domain.ParseEntityID(id)
	if err != nil {
		return nil, fmt.Errorf("scan entity id: %w", err)
	}
	e.Kind = domain.EntityKind(kind)
	e.RegimeTag = domain.RegimeTag(regimeTag)
	e.RegimeStatus = domain.RegimeStatus(regimeStatus)
	e.Status = models.Status(status)
	if mergedInto != "" {
		e.MergedInto, err = domain.ParseEntityID(mergedInto)
		if err != nil {
			return nil, fmt.Errorf("scan merged_into: %w", err)
		}
	}
	return &e, nil
}
