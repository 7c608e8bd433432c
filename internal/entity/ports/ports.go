// Package ports defines shared interfaces for the entity module. Interfaces
// live here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"

	"yeto/internal/entity/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/audit"
)

// EntityStore persists entities together with their aliases and external
// references. Lookups take names already normalized by internal/normalize.
type EntityStore interface {
	Create(ctx context.Context, entity *models.Entity) error
	Get(ctx context.Context, id domain.EntityID) (*models.Entity, error)
	Update(ctx context.Context, entity *models.Entity) error

	// FindByNormalizedName matches an active entity's primary or secondary name.
	FindByNormalizedName(ctx context.Context, normalized string) (*models.Entity, error)
	// FindByAlias matches a row in the alias table.
	FindByAlias(ctx context.Context, normalized string) (*models.Entity, error)
	// FindByExternalRef matches an (external system, external id) pair.
	FindByExternalRef(ctx context.Context, system, externalID string) (*models.Entity, error)

	AddAlias(ctx context.Context, alias models.Alias) error
	AddExternalRef(ctx context.Context, ref models.ExternalReference) error
	ListAliases(ctx context.Context, id domain.EntityID) ([]models.Alias, error)
	ListExternalRefs(ctx context.Context, id domain.EntityID) ([]models.ExternalReference, error)

	// MoveAliases and MoveExternalRefs reassign child rows during a merge.
	MoveAliases(ctx context.Context, from, to domain.EntityID) error
	MoveExternalRefs(ctx context.Context, from, to domain.EntityID) error
}

// ReviewCaseStore persists pending human decisions.
type ReviewCaseStore interface {
	// UpsertPending creates a case, or refreshes the existing pending case for
	// the same normalized name and reason instead of duplicating it.
	UpsertPending(ctx context.Context, rc *models.ReviewCase) (*models.ReviewCase, error)
	Get(ctx context.Context, id domain.ReviewCaseID) (*models.ReviewCase, error)
	Update(ctx context.Context, rc *models.ReviewCase) error
	ListByStatus(ctx context.Context, status models.ReviewStatus) ([]*models.ReviewCase, error)
}

// NameLocker serializes entity creation per normalized name so concurrent
// ingestion jobs cannot create duplicate entities.
type NameLocker interface {
	// Acquire blocks until the lock for key is held or ctx is done. The
	// returned release function must be called exactly once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// TxRunner wraps a function in a single transaction so a resolution or review
// decision either fully applies its writes or applies none.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher emits audit events for irreversible decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
