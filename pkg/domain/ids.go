// Package domain holds typed identifiers and shared domain primitives.
//
// IDs are distinct types over uuid.UUID so an EntityID can never be passed
// where a ClaimID is expected. Enumerated primitives (regime tags, grades,
// entity kinds) are constructed via ParseX at trust boundaries; direct casting
// bypasses validation.
package domain

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// EntityID identifies a tracked real-world organization or institution.
type EntityID uuid.UUID

// ClaimID identifies an atomic factual assertion.
type ClaimID uuid.UUID

// CitationID identifies an evidence citation attached to a claim.
type CitationID uuid.UUID

// ReviewCaseID identifies a pending human resolution decision.
type ReviewCaseID uuid.UUID

// ContradictionID identifies a detected disagreement between sourced values.
type ContradictionID uuid.UUID

func NewEntityID() EntityID               { return EntityID(uuid.New()) }
func NewClaimID() ClaimID                 { return ClaimID(uuid.New()) }
func NewCitationID() CitationID           { return CitationID(uuid.New()) }
func NewReviewCaseID() ReviewCaseID       { return ReviewCaseID(uuid.New()) }
func NewContradictionID() ContradictionID { return ContradictionID(uuid.New()) }

func (id EntityID) String() string        { return uuid.UUID(id).String() }
func (id ClaimID) String() string         { return uuid.UUID(id).String() }
func (id CitationID) String() string      { return uuid.UUID(id).String() }
func (id ReviewCaseID) String() string    { return uuid.UUID(id).String() }
func (id ContradictionID) String() string { return uuid.UUID(id).String() }

// LogValue renders IDs as their canonical string form in structured logs,
// not as raw 16-byte arrays.
func (id EntityID) LogValue() slog.Value        { return slog.StringValue(id.String()) }
func (id ClaimID) LogValue() slog.Value         { return slog.StringValue(id.String()) }
func (id CitationID) LogValue() slog.Value      { return slog.StringValue(id.String()) }
func (id ReviewCaseID) LogValue() slog.Value    { return slog.StringValue(id.String()) }
func (id ContradictionID) LogValue() slog.Value { return slog.StringValue(id.String()) }

func (id EntityID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id ClaimID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id CitationID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ReviewCaseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ContradictionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseEntityID validates and returns an EntityID from external input.
func ParseEntityID(s string) (EntityID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return EntityID{}, fmt.Errorf("invalid entity id %q: %w", s, err)
	}
	return EntityID(u), nil
}

// ParseClaimID validates and returns a ClaimID from external input.
func ParseClaimID(s string) (ClaimID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ClaimID{}, fmt.Errorf("invalid claim id %q: %w", s, err)
	}
	return ClaimID(u), nil
}

// ParseCitationID validates and returns a CitationID from external input.
func ParseCitationID(s string) (CitationID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CitationID{}, fmt.Errorf("invalid citation id %q: %w", s, err)
	}
	return CitationID(u), nil
}

// ParseReviewCaseID validates and returns a ReviewCaseID from external input.
func ParseReviewCaseID(s string) (ReviewCaseID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ReviewCaseID{}, fmt.Errorf("invalid review case id %q: %w", s, err)
	}
	return ReviewCaseID(u), nil
}

// ParseContradictionID validates and returns a ContradictionID from external input.
func ParseContradictionID(s string) (ContradictionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ContradictionID{}, fmt.Errorf("invalid contradiction id %q: %w", s, err)
	}
	return ContradictionID(u), nil
}
