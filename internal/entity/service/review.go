package service

import (
	"context"
	"errors"
	"log/slog"

	"yeto/internal/entity/metrics"
	"yeto/internal/entity/models"
	"yeto/internal/entity/ports"
	"yeto/internal/normalize"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/audit"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/requestcontext"
)

// Review adjudicates pending review cases and performs entity merges. Every
// decision is attributed to the reviewer in context and audited; a case never
// closes itself.
type Review struct {
	entities ports.EntityStore
	reviews  ports.ReviewCaseStore
	locks    ports.NameLocker
	txRunner ports.TxRunner
	resolver *Resolver

	logger         *slog.Logger
	auditPublisher ports.AuditPublisher
	metrics        *metrics.Metrics
}

type ReviewOption func(*Review)

func WithReviewLogger(logger *slog.Logger) ReviewOption {
	return func(s *Review) {
		s.logger = logger
	}
}

func WithReviewAuditPublisher(publisher ports.AuditPublisher) ReviewOption {
	return func(s *Review) {
		s.auditPublisher = publisher
	}
}

func WithReviewMetrics(m *metrics.Metrics) ReviewOption {
	return func(s *Review) {
		s.metrics = m
	}
}

// NewReview constructs the adjudication service. The resolver reference is
// used only to drop cached name resolutions invalidated by a decision.
func NewReview(
	entities ports.EntityStore,
	reviews ports.ReviewCaseStore,
	locks ports.NameLocker,
	txRunner ports.TxRunner,
	resolver *Resolver,
	opts ...ReviewOption,
) *Review {
	s := &Review{
		entities: entities,
		reviews:  reviews,
		locks:    locks,
		txRunner: txRunner,
		resolver: resolver,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListCases returns review cases in the given status.
func (s *Review) ListCases(ctx context.Context, status models.ReviewStatus) ([]*models.ReviewCase, error) {
	cases, err := s.reviews.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "list review cases")
	}
	return cases, nil
}

// GetEntity loads one entity by id.
func (s *Review) GetEntity(ctx context.Context, id domain.EntityID) (*models.Entity, error) {
	e, err := s.entities.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "entity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load entity")
	}
	return e, nil
}

// ResolveCase closes a pending review case with the reviewer's decision.
// Approval either links the candidate name to an existing entity or creates
// the entity the reviewer described. Returns the linked or created entity,
// nil on rejection.
func (s *Review) ResolveCase(ctx context.Context, caseID domain.ReviewCaseID, decision models.ReviewDecision) (*models.Entity, error) {
	reviewer := requestcontext.ReviewerID(ctx)
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "review decisions require an authenticated reviewer")
	}
	if err := decision.Validate(); err != nil {
		return nil, err
	}

	rc, err := s.reviews.Get(ctx, caseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "review case not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load review case")
	}
	if rc.Status != models.ReviewPending {
		return nil, dErrors.Newf(dErrors.CodeConflict, "review case already %s", rc.Status)
	}

	if !decision.Approve {
		return nil, s.reject(ctx, rc, reviewer, decision.Note)
	}
	if !decision.LinkEntityID.IsNil() {
		return s.approveLink(ctx, rc, reviewer, decision)
	}
	return s.approveCreate(ctx, rc, reviewer, decision)
}

func (s *Review) reject(ctx context.Context, rc *models.ReviewCase, reviewer, note string) error {
	rc.Status = models.ReviewRejected
	rc.DecidedBy = reviewer
	rc.DecisionNote = note
	if err := s.reviews.Update(ctx, rc); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "update review case")
	}
	s.afterDecision(ctx, rc, "rejected")
	return nil
}

func (s *Review) approveLink(ctx context.Context, rc *models.ReviewCase, reviewer string, decision models.ReviewDecision) (*models.Entity, error) {
	target, err := s.entities.Get(ctx, decision.LinkEntityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "link target entity does not exist")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "load link target")
	}
	if target.Status == models.StatusMerged {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cannot link to a merged entity")
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		alias := models.Alias{
			EntityID:   target.ID,
			Alias:      rc.CandidateName,
			Source:     "review:" + reviewer,
			Confidence: 1,
		}
		if err := s.entities.AddAlias(ctx, alias); err != nil {
			return err
		}
		rc.Status = models.ReviewApproved
		rc.DecidedBy = reviewer
		rc.DecisionNote = decision.Note
		rc.ResolvedEntityID = target.ID
		return s.reviews.Update(ctx, rc)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "candidate name is already an alias of another entity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "apply review decision")
	}

	s.afterDecision(ctx, rc, "approved")
	return target, nil
}

func (s *Review) approveCreate(ctx context.Context, rc *models.ReviewCase, reviewer string, decision models.ReviewDecision) (*models.Entity, error) {
	spec := decision.NewEntity
	e := &models.Entity{
		ID:        domain.NewEntityID(),
		NameEn:    spec.NameEn,
		NameAr:    spec.NameAr,
		Kind:      spec.Kind,
		RegimeTag: spec.RegimeTag,
		// The reviewer's explicit decision is what authorizes this tag, so
		// split-prone kinds may carry "both" here and nowhere else.
		RegimeStatus: domain.RegimeStatusReviewed,
		Status:       models.StatusActive,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	key := normalize.Name(e.NameEn)
	release, err := s.locks.Acquire(ctx, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire name lock")
	}
	defer release()

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.entities.Create(ctx, e); err != nil {
			return err
		}
		if normalize.Name(rc.CandidateName) != key {
			alias := models.Alias{
				EntityID:   e.ID,
				Alias:      rc.CandidateName,
				Source:     "review:" + reviewer,
				Confidence: 1,
			}
			if err := s.entities.AddAlias(ctx, alias); err != nil {
				return err
			}
		}
		rc.Status = models.ReviewApproved
		rc.DecidedBy = reviewer
		rc.DecisionNote = decision.Note
		rc.ResolvedEntityID = e.ID
		return s.reviews.Update(ctx, rc)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an entity with this name already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "apply review decision")
	}

	s.logAudit(ctx, audit.EventEntityCreated, e.ID.String(), "created by review decision", "approved")
	s.afterDecision(ctx, rc, "approved")
	return e, nil
}

func (s *Review) afterDecision(ctx context.Context, rc *models.ReviewCase, outcome string) {
	if s.resolver != nil {
		s.resolver.InvalidateName(rc.NormalizedName)
	}
	s.metrics.IncrementReviewCase("resolved", string(rc.Reason))
	s.logAudit(ctx, audit.EventReviewCaseResolved, rc.ID.String(), string(rc.Reason), outcome)
	if s.logger != nil {
		s.logger.InfoContext(ctx, "review case resolved",
			"case_id", rc.ID, "name", rc.CandidateName, "outcome", outcome, "reviewer", rc.DecidedBy)
	}
}

// Merge folds the source entity into the target. Aliases and external
// references move to the target; the source remains as a redirect. Entities
// under different rival authorities can never be merged.
func (s *Review) Merge(ctx context.Context, sourceID, targetID domain.EntityID, note string) (*models.Entity, error) {
	reviewer := requestcontext.ReviewerID(ctx)
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "merges require an authenticated reviewer")
	}
	if sourceID == targetID {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "cannot merge an entity into itself")
	}

	source, err := s.GetEntity(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.GetEntity(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if source.Status != models.StatusActive {
		return nil, dErrors.Newf(dErrors.CodeConflict, "source entity is %s", source.Status)
	}
	if target.Status != models.StatusActive {
		return nil, dErrors.Newf(dErrors.CodeConflict, "target entity is %s", target.Status)
	}

	if !source.RegimeTag.Mergeable(target.RegimeTag) {
		s.metrics.IncrementMerge("rejected")
		s.logAudit(ctx, audit.EventMergeRejected, sourceID.String(),
			"regime tags "+source.RegimeTag.String()+" and "+target.RegimeTag.String()+" denote rival authorities",
			"rejected")
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation,
			"cannot merge entities across the regime split (%s vs %s)",
			source.RegimeTag, target.RegimeTag)
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.entities.MoveAliases(ctx, sourceID, targetID); err != nil {
			return err
		}
		if err := s.entities.MoveExternalRefs(ctx, sourceID, targetID); err != nil {
			return err
		}
		// The source's own names survive as aliases so they keep resolving.
		for _, name := range []string{source.NameEn, source.NameAr} {
			if name == "" {
				continue
			}
			alias := models.Alias{
				EntityID:   targetID,
				Alias:      name,
				Source:     "merge:" + reviewer,
				Confidence: 1,
			}
			if err := s.entities.AddAlias(ctx, alias); err != nil && !errors.Is(err, sentinel.ErrConflict) {
				return err
			}
		}
		source.Status = models.StatusMerged
		source.MergedInto = targetID
		return s.entities.Update(ctx, source)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "apply merge")
	}

	if s.resolver != nil {
		// Anything cached for either entity's names is now stale.
		s.resolver.FlushCache()
	}
	s.metrics.IncrementMerge("merged")
	s.logAudit(ctx, audit.EventEntitiesMerged, sourceID.String(), note, "merged into "+targetID.String())
	if s.logger != nil {
		s.logger.InfoContext(ctx, "entities merged",
			"source_id", sourceID, "target_id", targetID, "reviewer", reviewer)
	}
	return target, nil
}

// Deprecate retires an entity without destroying its history.
func (s *Review) Deprecate(ctx context.Context, id domain.EntityID, note string) (*models.Entity, error) {
	reviewer := requestcontext.ReviewerID(ctx)
	if reviewer == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "deprecation requires an authenticated reviewer")
	}

	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusActive {
		return nil, dErrors.Newf(dErrors.CodeConflict, "entity is %s", e.Status)
	}

	e.Status = models.StatusDeprecated
	if err := s.entities.Update(ctx, e); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "deprecate entity")
	}

	if s.resolver != nil {
		s.resolver.InvalidateName(normalize.Name(e.NameEn))
	}
	s.logAudit(ctx, audit.EventEntityDeprecated, id.String(), note, "deprecated")
	return e, nil
}

func (s *Review) logAudit(ctx context.Context, action audit.AuditEvent, subject, reason, decision string) {
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
