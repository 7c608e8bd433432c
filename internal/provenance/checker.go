// Package provenance enforces the platform's core trust guarantee: a grade
// may be shown only when at least one evidence record resolves for its
// subject. The check deliberately re-derives nothing from the grader; it is
// an independent audit pass over stored claims and citations.
package provenance

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	claimmodels "yeto/internal/claim/models"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/audit"
	"yeto/pkg/requestcontext"
)

const defaultSweepConcurrency = 8

// ClaimReader is the slice of the claim store the checker reads.
type ClaimReader interface {
	ListBySubject(ctx context.Context, subject claimmodels.Subject) ([]*claimmodels.Claim, error)
	ListSubjects(ctx context.Context) ([]claimmodels.Subject, error)
}

// CitationReader resolves evidence records.
type CitationReader interface {
	ListByClaim(ctx context.Context, claimID domain.ClaimID) ([]claimmodels.Citation, error)
	CountActiveByEntity(ctx context.Context, entityID domain.EntityID) (int, error)
}

// AuditPublisher records violations on the audit trail.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Checker verifies displayability independently of the grader.
type Checker struct {
	claims    ClaimReader
	citations CitationReader

	concurrency    int
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Checker)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(c *Checker) {
		c.auditPublisher = publisher
	}
}

func WithSweepConcurrency(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New constructs a Checker.
func New(claims ClaimReader, citations CitationReader, opts ...Option) *Checker {
	c := &Checker{
		claims:      claims,
		citations:   citations,
		concurrency: defaultSweepConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Displayable reports whether any grade may be shown for an entity: at least
// one active evidence record must resolve by its identifier. Callers seeing
// false render a data-gap state, never a grade.
func (c *Checker) Displayable(ctx context.Context, entityID domain.EntityID) (bool, error) {
	count, err := c.citations.CountActiveByEntity(ctx, entityID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count evidence records")
	}
	return count > 0, nil
}

// Violation is one claim carrying a displayable grade without resolvable
// evidence.
type Violation struct {
	ClaimID domain.ClaimID
	Subject claimmodels.Subject
	Grade   domain.Grade
}

// SweepReport summarizes one enforcement pass.
type SweepReport struct {
	ClaimsChecked int
	Violations    []Violation
}

// Sweep re-verifies every claim with a displayable grade against its
// citations. A violation means the grader and the store disagree; it is
// reported and audited, never silently repaired.
func (c *Checker) Sweep(ctx context.Context) (*SweepReport, error) {
	subjects, err := c.claims.ListSubjects(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list claim subjects")
	}

	var mu sync.Mutex
	report := &SweepReport{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, subject := range subjects {
		g.Go(func() error {
			claims, err := c.claims.ListBySubject(gctx, subject)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list claims")
			}
			for _, claim := range claims {
				if !claim.Grade.Displayable() {
					continue
				}
				citations, err := c.citations.ListByClaim(gctx, claim.ID)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to list citations")
				}
				mu.Lock()
				report.ClaimsChecked++
				mu.Unlock()
				if hasActive(citations) {
					continue
				}

				violation := Violation{ClaimID: claim.ID, Subject: claim.Subject, Grade: claim.Grade}
				mu.Lock()
				report.Violations = append(report.Violations, violation)
				mu.Unlock()
				c.reportViolation(gctx, violation)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(report.Violations, func(i, j int) bool {
		return report.Violations[i].ClaimID.String() < report.Violations[j].ClaimID.String()
	})
	if c.logger != nil {
		c.logger.InfoContext(ctx, "provenance sweep complete",
			slog.Int("claims_checked", report.ClaimsChecked),
			slog.Int("violations", len(report.Violations)))
	}
	return report, nil
}

func hasActive(citations []claimmodels.Citation) bool {
	for _, c := range citations {
		if c.Active() {
			return true
		}
	}
	return false
}

func (c *Checker) reportViolation(ctx context.Context, v Violation) {
	if c.logger != nil {
		c.logger.ErrorContext(ctx, "displayable grade without resolvable evidence",
			slog.String("claim_id", v.ClaimID.String()),
			slog.String("subject", v.Subject.Key()),
			slog.String("grade", v.Grade.String()))
	}
	if c.auditPublisher == nil {
		return
	}
	_ = c.auditPublisher.Emit(ctx, audit.Event{
		Subject: v.ClaimID.String(),
		Action:  string(audit.EventProvenanceViolation),
		Reason: fmt.Sprintf("grade %s held by %s with no active citation",
			v.Grade, v.Subject.Key()),
		RequestID: requestcontext.RequestID(ctx),
	})
}
