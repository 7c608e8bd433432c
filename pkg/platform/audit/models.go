// Package audit captures the engine's irreversible decisions as an append-only
// event stream. Entity creation, review adjudication, grading, and
// contradiction transitions all emit events here so every displayed figure can
// be traced back to the decision that produced it.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose. This
// enables different retention policies and routing.
type EventCategory string

const (
	// CategoryProvenance covers events that form the trust chain behind
	// displayed figures. These require tamper-proof storage and long retention.
	CategoryProvenance EventCategory = "provenance"

	// CategoryAdjudication covers explicit human decisions: review-case
	// closures, merge attempts, contradiction resolutions.
	CategoryAdjudication EventCategory = "adjudication"

	// CategoryOperations covers routine engine activity useful for debugging.
	// These can be sampled or aggregated with shorter retention.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	// Subject identifies what the event is about: an entity id, claim id,
	// review case id, or contradiction id.
	Subject string
	Action  string
	// Reason carries the human-readable why (review reason, rejection cause,
	// grade explanation).
	Reason string
	// Decision is the outcome where one applies ("approved", "rejected",
	// "grade=A", "detected").
	Decision string
	// ActorID is the reviewer who performed the action, empty for automated
	// decisions.
	ActorID   string
	RequestID string
}

type AuditEvent string

const (
	// Resolution events
	EventEntityCreated      AuditEvent = "entity_created"
	EventEntityMatched      AuditEvent = "entity_matched"
	EventReviewCaseOpened   AuditEvent = "review_case_opened"
	EventReviewCaseResolved AuditEvent = "review_case_resolved"
	EventEntitiesMerged     AuditEvent = "entities_merged"
	EventMergeRejected      AuditEvent = "merge_rejected"
	EventEntityDeprecated   AuditEvent = "entity_deprecated"

	// Grading events
	EventClaimGraded     AuditEvent = "claim_graded"
	EventClaimSuperseded AuditEvent = "claim_superseded"

	// Contradiction events
	EventContradictionDetected     AuditEvent = "contradiction_detected"
	EventContradictionTransitioned AuditEvent = "contradiction_transitioned"
	EventClaimDisputed             AuditEvent = "claim_disputed"

	// Provenance enforcement events
	EventProvenanceViolation AuditEvent = "provenance_violation"
)

// eventCategories maps each audit event to its category.
var eventCategories = map[AuditEvent]EventCategory{
	EventEntityCreated:       CategoryProvenance,
	EventClaimGraded:         CategoryProvenance,
	EventClaimSuperseded:     CategoryProvenance,
	EventClaimDisputed:       CategoryProvenance,
	EventProvenanceViolation: CategoryProvenance,

	EventReviewCaseOpened:          CategoryAdjudication,
	EventReviewCaseResolved:        CategoryAdjudication,
	EventEntitiesMerged:            CategoryAdjudication,
	EventMergeRejected:             CategoryAdjudication,
	EventEntityDeprecated:          CategoryAdjudication,
	EventContradictionDetected:     CategoryAdjudication,
	EventContradictionTransitioned: CategoryAdjudication,

	EventEntityMatched: CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events. The postgres implementation writes to the
// transactional outbox; the memory implementation backs tests and
// single-process runs.
type Store interface {
	Append(ctx context.Context, event Event) error
	// List returns events for a subject in append order.
	List(ctx context.Context, subject string) ([]Event, error)
}
