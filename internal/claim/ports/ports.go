// Package ports defines shared interfaces for the claim module.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/audit"
)

// ClaimStore persists claims. UpdateGraded and UpdateConflict are
// version-conditioned: they fail with a conflict when the stored version has
// moved past the caller's read.
type ClaimStore interface {
	Create(ctx context.Context, claim *models.Claim) error
	Get(ctx context.Context, id domain.ClaimID) (*models.Claim, error)
	ListBySubject(ctx context.Context, subject models.Subject) ([]*models.Claim, error)
	// ListSubjects returns every distinct subject with at least one claim.
	ListSubjects(ctx context.Context) ([]models.Subject, error)

	// UpdateGrade writes grade and explanation conditioned on version.
	UpdateGrade(ctx context.Context, id domain.ClaimID, version int64, grade domain.Grade, explanation string) error
	// UpdateConflict writes conflict status conditioned on version.
	UpdateConflict(ctx context.Context, id domain.ClaimID, version int64, status domain.ConflictStatus) error
	// MarkSuperseded points an old claim at its replacement.
	MarkSuperseded(ctx context.Context, id domain.ClaimID, by domain.ClaimID) error
}

// CitationStore persists evidence citations.
type CitationStore interface {
	Add(ctx context.Context, citation *models.Citation) error
	Archive(ctx context.Context, id domain.CitationID) error
	ListByClaim(ctx context.Context, claimID domain.ClaimID) ([]models.Citation, error)
	// CountActiveByEntity supports the provenance sweep: evidence records
	// resolvable by subject entity, regardless of grading state.
	CountActiveByEntity(ctx context.Context, entityID domain.EntityID) (int, error)
}

// TxRunner wraps a function in one transaction.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AuditPublisher emits audit events for grading decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
