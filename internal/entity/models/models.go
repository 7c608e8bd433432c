// Package models defines the entity-resolution domain records.
package models

import (
	"time"

	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
)

// Status is the entity lifecycle. Entities are never hard-deleted.
type Status string

const (
	StatusActive     Status = "active"
	StatusMerged     Status = "merged"
	StatusDeprecated Status = "deprecated"
)

// Entity is a tracked real-world organization or institution.
type Entity struct {
	ID           domain.EntityID
	NameEn       string
	NameAr       string
	Kind         domain.EntityKind
	RegimeTag    domain.RegimeTag
	RegimeStatus domain.RegimeStatus
	Status       Status
	// MergedInto points at the absorbing entity when Status is merged.
	MergedInto domain.EntityID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate enforces the regime invariant: an entity of a split-prone kind may
// carry tag "both" only after an explicit reviewed decision.
func (e *Entity) Validate() error {
	if e.NameEn == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "entity name is required")
	}
	if e.Kind.SplitProne() && e.RegimeTag == domain.RegimeBoth && e.RegimeStatus != domain.RegimeStatusReviewed {
		return dErrors.New(dErrors.CodeInvariantViolation,
			"split-prone entity cannot carry regime tag 'both' without explicit review")
	}
	return nil
}

// Alias is one known spelling of an entity's name, with its provenance and a
// confidence weight.
type Alias struct {
	EntityID   domain.EntityID
	Alias      string
	Language   string
	Source     string
	Confidence float64
}

// ExternalReference binds an entity to an identifier in an external system.
// The (system, external id) pair is unique across the whole entity population
// and is the strongest identity signal.
type ExternalReference struct {
	EntityID   domain.EntityID
	System     string
	ExternalID string
	URL        string
}

// MatchType records which rung of the resolution ladder produced a result.
type MatchType string

const (
	MatchExact      MatchType = "exact"
	MatchAlias      MatchType = "alias"
	MatchExternalID MatchType = "external_id"
	MatchNew        MatchType = "new"
)

// Outcome is the top-level shape of a resolution result.
type Outcome string

const (
	OutcomeMatched     Outcome = "matched"
	OutcomeCreated     Outcome = "created"
	OutcomeNeedsReview Outcome = "needs_review"
)

// ReviewReason codes why resolution could not proceed automatically.
type ReviewReason string

const (
	ReasonAmbiguousRegimeSplit ReviewReason = "ambiguous regime split"
	ReasonNoCanonicalMatch     ReviewReason = "new entity not in canonical list"
	ReasonLowConfidenceFuzzy   ReviewReason = "low-confidence fuzzy match"
)

// ResolutionResult is the outcome of a single resolveEntity call.
type ResolutionResult struct {
	Outcome      Outcome
	EntityID     domain.EntityID
	MatchType    MatchType
	Confidence   float64
	ReviewCaseID domain.ReviewCaseID
	Reason       ReviewReason
}

// ReviewStatus is the lifecycle of a review case. A case never resolves
// itself; it is closed only by an explicit reviewer decision.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ParseReviewStatus constructs a ReviewStatus from external input.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch st := ReviewStatus(s); st {
	case ReviewPending, ReviewApproved, ReviewRejected:
		return st, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid review status %q", s)
}

// ReviewCase is a pending human decision required when automated resolution
// cannot safely proceed.
type ReviewCase struct {
	ID              domain.ReviewCaseID
	CandidateName   string
	NormalizedName  string
	Reason          ReviewReason
	ProposedAction  string
	EvidenceSummary string
	Status          ReviewStatus
	// Decision fields, set when the case is closed.
	DecidedBy        string
	DecisionNote     string
	ResolvedEntityID domain.EntityID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ReviewDecision is the reviewer's instruction for closing a case.
type ReviewDecision struct {
	Approve bool
	Note    string
	// LinkEntityID links the candidate name to an existing entity.
	LinkEntityID domain.EntityID
	// NewEntity creates a fresh entity for the candidate name. Exactly one of
	// LinkEntityID / NewEntity must be supplied on approval.
	NewEntity *NewEntitySpec
}

// NewEntitySpec describes the entity a reviewer wants created.
type NewEntitySpec struct {
	NameEn    string
	NameAr    string
	Kind      domain.EntityKind
	RegimeTag domain.RegimeTag
}

// Validate checks decision consistency before any store write.
func (d *ReviewDecision) Validate() error {
	if !d.Approve {
		return nil
	}
	hasLink := !d.LinkEntityID.IsNil()
	hasNew := d.NewEntity != nil
	if hasLink == hasNew {
		return dErrors.New(dErrors.CodeInvalidInput,
			"approval must supply exactly one of link_entity_id or new_entity")
	}
	if hasNew {
		if d.NewEntity.NameEn == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "new entity name is required")
		}
		if _, err := domain.ParseEntityKind(string(d.NewEntity.Kind)); err != nil {
			return err
		}
		if _, err := domain.ParseRegimeTag(string(d.NewEntity.RegimeTag)); err != nil {
			return err
		}
	}
	return nil
}
