// Package models defines claims and their evidence citations.
package models

import (
	"strings"
	"time"

	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
)

// Subject is the (entity, indicator, period) triple a claim asserts about.
// Contradiction detection groups claims by subject.
type Subject struct {
	EntityID  domain.EntityID
	Indicator string
	Period    string
}

// Key returns a stable string form for grouping and locking.
func (s Subject) Key() string {
	return s.EntityID.String() + "|" + s.Indicator + "|" + s.Period
}

// Claim is an atomic factual assertion about an entity, indicator, and
// period. The grade and conflict status are owned by the grader and the
// contradiction detector respectively; ingestion never sets them.
type Claim struct {
	ID      domain.ClaimID
	Subject Subject
	Value   float64
	Unit    string
	// Vintage distinguishes successive revisions of the same figure
	// (e.g. "2024-Q3-preliminary" vs "2024-Q3-final").
	Vintage string

	// Grade is empty until the grader first runs.
	Grade            domain.Grade
	GradeExplanation string
	ConflictStatus   domain.ConflictStatus

	// SupersededBy marks a claim replaced by a newer vintage. Superseded
	// claims are kept, never deleted.
	SupersededBy domain.ClaimID

	// Version guards concurrent grade/conflict writes: a write carries the
	// version it read and fails if the stored version moved.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks claim shape at the ingestion boundary.
func (c *Claim) Validate() error {
	if c.Subject.EntityID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "claim subject entity is required")
	}
	if strings.TrimSpace(c.Subject.Indicator) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "claim indicator is required")
	}
	if strings.TrimSpace(c.Subject.Period) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "claim period is required")
	}
	if strings.TrimSpace(c.Unit) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "claim unit is required")
	}
	return nil
}

// Citation is one evidence record backing a claim.
type Citation struct {
	ID       domain.CitationID
	ClaimID  domain.ClaimID
	SourceID string
	// Publisher is the organization that published the source document.
	Publisher string
	// SourceType feeds the grading config's primary/secondary classification
	// (e.g. "official", "multilateral", "research", "media").
	SourceType  string
	URL         string
	RetrievedAt time.Time
	// LicenseOpen records whether the source license permits redistribution.
	LicenseOpen bool
	// Estimate flags a modeled or projected figure rather than an observed one.
	Estimate bool
	// Archived citations no longer count as evidence.
	Archived bool
}

// Validate checks citation shape at the ingestion boundary.
func (c *Citation) Validate() error {
	if c.ClaimID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "citation claim id is required")
	}
	if strings.TrimSpace(c.SourceID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "citation source id is required")
	}
	if strings.TrimSpace(c.Publisher) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "citation publisher is required")
	}
	if c.RetrievedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "citation retrieval date is required")
	}
	return nil
}

// Active reports whether the citation currently counts as evidence.
func (c *Citation) Active() bool { return !c.Archived }
