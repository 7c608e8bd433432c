// Package ports defines shared interfaces for the contradiction module.
package ports

import (
	"context"

	claimmodels "yeto/internal/claim/models"
	"yeto/internal/contradiction/models"
	"yeto/pkg/domain"
	"yeto/pkg/platform/audit"
)

// ContradictionStore persists contradiction records. Records are unique per
// claim pair: Upsert refreshes an existing pair instead of duplicating it.
type ContradictionStore interface {
	// Upsert inserts the record, or refreshes values, sources, variance,
	// severity, and updated_at of the existing record for the same claim pair.
	// It returns the stored record; status and notes of an existing record are
	// preserved.
	Upsert(ctx context.Context, record *models.Record) (*models.Record, error)
	Get(ctx context.Context, id domain.ContradictionID) (*models.Record, error)
	// List filters by subject entity and status; zero values mean no filter.
	List(ctx context.Context, entityID domain.EntityID, status models.Status) ([]*models.Record, error)
	Update(ctx context.Context, record *models.Record) error
}

// ClaimReader is the slice of the claim store the detector scans over.
type ClaimReader interface {
	Get(ctx context.Context, id domain.ClaimID) (*claimmodels.Claim, error)
	ListBySubject(ctx context.Context, subject claimmodels.Subject) ([]*claimmodels.Claim, error)
	ListSubjects(ctx context.Context) ([]claimmodels.Subject, error)
	UpdateConflict(ctx context.Context, id domain.ClaimID, version int64, status domain.ConflictStatus) error
}

// CitationReader resolves a claim's citations so the detector can attribute
// each side of a disagreement to its sources.
type CitationReader interface {
	ListByClaim(ctx context.Context, claimID domain.ClaimID) ([]claimmodels.Citation, error)
}

// Grader re-grades a claim after its conflict status changes.
type Grader interface {
	GradeClaim(ctx context.Context, id domain.ClaimID) (*claimmodels.Claim, error)
}

// AuditPublisher emits audit events for detections and transitions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
