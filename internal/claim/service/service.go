// Package service orchestrates claim ingestion, evidence intake, and grading.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"yeto/internal/claim/metrics"
	"yeto/internal/claim/models"
	"yeto/internal/claim/ports"
	"yeto/internal/grading"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/audit"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/requestcontext"
)

// maxGradeRetries bounds the version-conflict retry loop. A grade write races
// only with the contradiction detector flipping conflict status, so conflicts
// resolve within a retry or two.
const maxGradeRetries = 3

// Service owns the claim lifecycle: ingestion, citation intake, grading, and
// supersession. Every citation change triggers a regrade so the stored grade
// never drifts from the evidence backing it.
type Service struct {
	claims    ports.ClaimStore
	citations ports.CitationStore
	grader    *grading.Grader
	txRunner  ports.TxRunner

	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher ports.AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a claim Service.
func New(
	claims ports.ClaimStore,
	citations ports.CitationStore,
	grader *grading.Grader,
	txRunner ports.TxRunner,
	opts ...Option,
) *Service {
	s := &Service{
		claims:    claims,
		citations: citations,
		grader:    grader,
		txRunner:  txRunner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest accepts one claim from an ingestion job. The claim enters ungraded;
// it earns a grade only once citations arrive.
func (s *Service) Ingest(ctx context.Context, claim *models.Claim) (*models.Claim, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}
	claim.ID = domain.NewClaimID()
	claim.Grade = ""
	claim.GradeExplanation = ""
	claim.ConflictStatus = domain.ConflictNone
	claim.SupersededBy = domain.ClaimID{}

	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store claim")
	}
	s.metrics.IncrementIngested()
	if s.logger != nil {
		s.logger.InfoContext(ctx, "claim ingested",
			slog.String("claim_id", claim.ID.String()),
			slog.String("subject", claim.Subject.Key()))
	}
	return claim, nil
}

// Get returns one claim by id.
func (s *Service) Get(ctx context.Context, id domain.ClaimID) (*models.Claim, error) {
	claim, err := s.claims.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load claim")
	}
	return claim, nil
}

// AddCitation attaches one evidence record to a claim and regrades it.
func (s *Service) AddCitation(ctx context.Context, citation *models.Citation) (*models.Citation, error) {
	if err := citation.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, citation.ClaimID); err != nil {
		return nil, err
	}
	citation.ID = domain.NewCitationID()
	citation.Archived = false

	if err := s.citations.Add(ctx, citation); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store citation")
	}
	s.metrics.RecordCitation("added")

	if _, err := s.GradeClaim(ctx, citation.ClaimID); err != nil {
		return nil, err
	}
	return citation, nil
}

// ArchiveCitation retires one evidence record and regrades the claim. Losing
// the last active citation drops the claim to undisplayable.
func (s *Service) ArchiveCitation(ctx context.Context, claimID domain.ClaimID, citationID domain.CitationID) error {
	existing, err := s.citations.ListByClaim(ctx, claimID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load citations")
	}
	found := false
	for _, c := range existing {
		if c.ID == citationID {
			found = true
			break
		}
	}
	if !found {
		return dErrors.New(dErrors.CodeNotFound, "citation not found on claim")
	}

	if err := s.citations.Archive(ctx, citationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "citation not found")
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to archive citation")
	}
	s.metrics.RecordCitation("archived")

	_, err = s.GradeClaim(ctx, claimID)
	return err
}

// GradeClaim recomputes and persists the grade for one claim from its current
// citations and conflict status. The write is version-guarded: if the claim
// moved underneath us (a contradiction flip, a concurrent regrade) the pass
// re-reads and recomputes.
func (s *Service) GradeClaim(ctx context.Context, id domain.ClaimID) (*models.Claim, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)

	var graded *models.Claim
	for attempt := 0; ; attempt++ {
		claim, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		citations, err := s.citations.ListByClaim(ctx, id)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load citations")
		}

		grade, explanation := s.grader.Grade(claim, citations, now)
		if grade == claim.Grade && explanation == claim.GradeExplanation {
			s.metrics.ObserveGradeLatency(time.Since(start))
			return claim, nil
		}

		err = s.claims.UpdateGrade(ctx, id, claim.Version, grade, explanation)
		if err == nil {
			claim.Grade = grade
			claim.GradeExplanation = explanation
			claim.Version++
			graded = claim
			break
		}
		if errors.Is(err, sentinel.ErrConflict) && attempt < maxGradeRetries {
			s.metrics.IncrementGradeRetry()
			continue
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "claim not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to store grade")
	}

	s.metrics.IncrementGrade(string(graded.Grade))
	s.metrics.ObserveGradeLatency(time.Since(start))
	s.logAudit(ctx, audit.EventClaimGraded, graded.ID.String(),
		graded.GradeExplanation, "grade="+graded.Grade.String())
	if s.logger != nil {
		s.logger.InfoContext(ctx, "claim graded",
			slog.String("claim_id", graded.ID.String()),
			slog.String("grade", graded.Grade.String()))
	}
	return graded, nil
}

// GetGrade returns the stored grade without recomputing. Read paths must be
// side-effect free.
func (s *Service) GetGrade(ctx context.Context, id domain.ClaimID) (domain.Grade, string, error) {
	claim, err := s.Get(ctx, id)
	if err != nil {
		return "", "", err
	}
	if claim.Grade == "" {
		return domain.GradeUndisplayable, "not yet graded", nil
	}
	return claim.Grade, claim.GradeExplanation, nil
}

// Supersede ingests a replacement claim and points the old claim at it. The
// old claim is kept: revision chains stay auditable end to end.
func (s *Service) Supersede(ctx context.Context, oldID domain.ClaimID, replacement *models.Claim) (*models.Claim, error) {
	old, err := s.Get(ctx, oldID)
	if err != nil {
		return nil, err
	}
	if !old.SupersededBy.IsNil() {
		return nil, dErrors.New(dErrors.CodeConflict, "claim is already superseded")
	}
	if err := replacement.Validate(); err != nil {
		return nil, err
	}
	if replacement.Subject != old.Subject {
		return nil, dErrors.New(dErrors.CodeInvalidInput,
			"replacement claim must share the superseded claim's subject")
	}

	replacement.ID = domain.NewClaimID()
	replacement.Grade = ""
	replacement.GradeExplanation = ""
	replacement.ConflictStatus = domain.ConflictNone
	replacement.SupersededBy = domain.ClaimID{}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.claims.Create(ctx, replacement); err != nil {
			return err
		}
		return s.claims.MarkSuperseded(ctx, oldID, replacement.ID)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to supersede claim")
	}

	s.metrics.IncrementIngested()
	s.logAudit(ctx, audit.EventClaimSuperseded, oldID.String(),
		"replaced by newer vintage "+replacement.Vintage, replacement.ID.String())
	if s.logger != nil {
		s.logger.InfoContext(ctx, "claim superseded",
			slog.String("old_claim_id", oldID.String()),
			slog.String("new_claim_id", replacement.ID.String()))
	}
	return replacement, nil
}

// ListBySubject returns every claim for a subject, superseded ones included.
func (s *Service) ListBySubject(ctx context.Context, subject models.Subject) ([]*models.Claim, error) {
	claims, err := s.claims.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list claims")
	}
	return claims, nil
}

func (s *Service) logAudit(ctx context.Context, action audit.AuditEvent, subject, reason, decision string) {
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Subject:   subject,
		Action:    string(action),
		Reason:    reason,
		Decision:  decision,
		ActorID:   requestcontext.ReviewerID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
}
