// Package models defines contradiction records and their status machine.
package models

import (
	"strings"
	"time"

	claimmodels "yeto/internal/claim/models"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
)

// Status tracks a contradiction through adjudication. Records are never
// deleted; they only move forward through this machine.
type Status string

const (
	StatusDetected    Status = "detected"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
)

var validStatuses = map[Status]bool{
	StatusDetected:    true,
	StatusUnderReview: true,
	StatusResolved:    true,
}

// ParseStatus constructs a Status from external input.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid contradiction status %q", s)
	}
	return st, nil
}

// CanTransition reports whether the status machine permits the move.
// detected -> under_review -> resolved, no skipping backward.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusDetected:
		return to == StatusUnderReview || to == StatusResolved
	case StatusUnderReview:
		return to == StatusResolved
	default:
		return false
	}
}

// Severity buckets a variance by magnitude.
type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
)

// PlausibleReason is a fixed vocabulary explaining why two sources can
// legitimately disagree. Attached by reviewers during resolution, or by the
// detector when the disagreement pattern is recognizable.
type PlausibleReason string

const (
	ReasonMethodology  PlausibleReason = "methodology"
	ReasonTiming       PlausibleReason = "timing"
	ReasonCoverage     PlausibleReason = "coverage"
	ReasonRevision     PlausibleReason = "revision"
	ReasonRegime       PlausibleReason = "regime"
	ReasonExchangeRate PlausibleReason = "exchange_rate"
	ReasonSampling     PlausibleReason = "sampling"
)

var validReasons = map[PlausibleReason]bool{
	ReasonMethodology:  true,
	ReasonTiming:       true,
	ReasonCoverage:     true,
	ReasonRevision:     true,
	ReasonRegime:       true,
	ReasonExchangeRate: true,
	ReasonSampling:     true,
}

// ParsePlausibleReason constructs a PlausibleReason from external input.
// Empty is allowed: not every disagreement has a known benign explanation.
func ParsePlausibleReason(s string) (PlausibleReason, error) {
	if s == "" {
		return "", nil
	}
	r := PlausibleReason(s)
	if !validReasons[r] {
		return "", dErrors.Newf(dErrors.CodeValidation, "invalid plausible reason %q", s)
	}
	return r, nil
}

// Record is one detected disagreement between two sourced values for the same
// subject. It is an audit trail: created once per claim pair, updated in
// place on re-detection, transitioned but never removed.
type Record struct {
	ID      domain.ContradictionID
	Subject claimmodels.Subject

	ClaimA domain.ClaimID
	ClaimB domain.ClaimID
	ValueA float64
	ValueB float64

	// SourcesA and SourcesB name the source ids backing each side, resolved
	// from the claims' active citations at detection time. Reviewers settle
	// disputes by weighing sources, so the record keeps both attributions.
	SourcesA []string
	SourcesB []string

	// Variance is the relative difference |a-b| / max(|a|,|b|), in [0,1].
	Variance float64
	Severity Severity

	Status          Status
	PlausibleReason PlausibleReason
	// ResolutionNotes accumulates one line per transition, newest last.
	ResolutionNotes string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PairKey returns an order-independent key for the claim pair.
func (r *Record) PairKey() string {
	a, b := r.ClaimA.String(), r.ClaimB.String()
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// AppendNote adds one timestamped line to the resolution trail.
func (r *Record) AppendNote(note string, at time.Time, actor string) {
	line := at.UTC().Format(time.RFC3339) + " " + actor + ": " + strings.TrimSpace(note)
	if r.ResolutionNotes == "" {
		r.ResolutionNotes = line
		return
	}
	r.ResolutionNotes += "\n" + line
}
