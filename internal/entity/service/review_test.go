package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"yeto/internal/entity/lock"
	"yeto/internal/entity/models"
	entityStore "yeto/internal/entity/store/entity"
	reviewcaseStore "yeto/internal/entity/store/reviewcase"
	"yeto/internal/registry"
	"yeto/internal/storage"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/audit"
	auditmemory "yeto/pkg/platform/audit/store/memory"
	"yeto/pkg/platform/audit/publisher"
	"yeto/pkg/requestcontext"
)

// =============================================================================
// Review Service Test Suite
// =============================================================================
// Adjudication closes the loop the resolver opens: approving, rejecting,
// linking, merging. The cross-regime merge rejection is the invariant the
// whole module exists to protect, so it is tested here directly.

type ReviewSuite struct {
	suite.Suite
	entities *entityStore.InMemoryStore
	reviews  *reviewcaseStore.InMemoryStore
	audit    *auditmemory.InMemoryStore
	resolver *Resolver
	service  *Review
}

func TestReviewSuite(t *testing.T) {
	suite.Run(t, new(ReviewSuite))
}

func (s *ReviewSuite) SetupTest() {
	reg, err := registry.Load()
	s.Require().NoError(err)

	s.entities = entityStore.NewInMemoryStore()
	s.reviews = reviewcaseStore.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()
	locks := lock.NewInMemoryLocker()
	txRunner := storage.NewNoopTxRunner()
	pub := publisher.NewPublisher(s.audit)

	s.resolver = NewResolver(reg, s.entities, s.reviews, locks, txRunner,
		WithAuditPublisher(pub))
	s.service = NewReview(s.entities, s.reviews, locks, txRunner, s.resolver,
		WithReviewAuditPublisher(pub))
}

// reviewerCtx simulates an authenticated adjudication request.
func (s *ReviewSuite) reviewerCtx() context.Context {
	return requestcontext.WithReviewerID(context.Background(), "analyst-1")
}

// openCase resolves an unknown name and returns its pending case id.
func (s *ReviewSuite) openCase(name string) domain.ReviewCaseID {
	result, err := s.resolver.Resolve(context.Background(), ResolveRequest{Name: name})
	s.Require().NoError(err)
	s.Require().Equal(models.OutcomeNeedsReview, result.Outcome)
	return result.ReviewCaseID
}

func (s *ReviewSuite) auditActions() []string {
	var actions []string
	for _, e := range s.audit.All() {
		actions = append(actions, e.Action)
	}
	return actions
}

// =============================================================================
// ResolveCase
// =============================================================================

func (s *ReviewSuite) TestResolveCase_RequiresReviewer() {
	caseID := s.openCase("Aden Chamber of Commerce")
	_, err := s.service.ResolveCase(context.Background(), caseID, models.ReviewDecision{Approve: false})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ReviewSuite) TestResolveCase_Reject() {
	caseID := s.openCase("Aden Chamber of Commerce")

	entity, err := s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{
		Approve: false,
		Note:    "duplicate of an existing submission",
	})
	s.Require().NoError(err)
	s.Nil(entity)

	rc, err := s.reviews.Get(context.Background(), caseID)
	s.Require().NoError(err)
	s.Equal(models.ReviewRejected, rc.Status)
	s.Equal("analyst-1", rc.DecidedBy)
	s.Equal("duplicate of an existing submission", rc.DecisionNote)

	s.Contains(s.auditActions(), string(audit.EventReviewCaseResolved))
}

func (s *ReviewSuite) TestResolveCase_ApproveCreate() {
	caseID := s.openCase("Aden Chamber of Commerce")

	entity, err := s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{
		Approve: true,
		NewEntity: &models.NewEntitySpec{
			NameEn:    "Aden Chamber of Commerce and Industry",
			Kind:      domain.KindPrivateSector,
			RegimeTag: domain.RegimeAden,
		},
	})
	s.Require().NoError(err)
	s.Require().NotNil(entity)
	s.Equal(domain.RegimeStatusReviewed, entity.RegimeStatus)

	// The candidate spelling becomes an alias, so the raw name now resolves.
	result, err := s.resolver.Resolve(context.Background(), ResolveRequest{Name: "Aden Chamber of Commerce"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeMatched, result.Outcome)
	s.Equal(entity.ID, result.EntityID)

	rc, err := s.reviews.Get(context.Background(), caseID)
	s.Require().NoError(err)
	s.Equal(models.ReviewApproved, rc.Status)
	s.Equal(entity.ID, rc.ResolvedEntityID)
}

func (s *ReviewSuite) TestResolveCase_ApproveLink() {
	// Materialize a canonical entity to link against.
	created, err := s.resolver.Resolve(context.Background(), ResolveRequest{Name: "World Food Programme"})
	s.Require().NoError(err)

	caseID := s.openCase("WFP Yemen Country Office")

	entity, err := s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{
		Approve:      true,
		LinkEntityID: created.EntityID,
		Note:         "country office reports under the global programme",
	})
	s.Require().NoError(err)
	s.Equal(created.EntityID, entity.ID)

	result, err := s.resolver.Resolve(context.Background(), ResolveRequest{Name: "WFP Yemen Country Office"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeMatched, result.Outcome)
	s.Equal(created.EntityID, result.EntityID)
}

func (s *ReviewSuite) TestResolveCase_AlreadyDecided() {
	caseID := s.openCase("Aden Chamber of Commerce")

	_, err := s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{Approve: false})
	s.Require().NoError(err)

	_, err = s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{Approve: false})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ReviewSuite) TestResolveCase_DecisionShape() {
	caseID := s.openCase("Aden Chamber of Commerce")

	s.Run("approval without link or new entity", func() {
		_, err := s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{Approve: true})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("approval with both link and new entity", func() {
		_, err := s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{
			Approve:      true,
			LinkEntityID: domain.NewEntityID(),
			NewEntity:    &models.NewEntitySpec{NameEn: "X", Kind: domain.KindThinkTank, RegimeTag: domain.RegimeNeutral},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("link target must exist", func() {
		_, err := s.service.ResolveCase(s.reviewerCtx(), caseID, models.ReviewDecision{
			Approve:      true,
			LinkEntityID: domain.NewEntityID(),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

// =============================================================================
// Merge
// =============================================================================

func (s *ReviewSuite) materialize(name string) domain.EntityID {
	result, err := s.resolver.Resolve(context.Background(), ResolveRequest{Name: name})
	s.Require().NoError(err)
	s.Require().NotEqual(models.OutcomeNeedsReview, result.Outcome)
	return result.EntityID
}

func (s *ReviewSuite) TestMerge_CrossRegimeRejected() {
	aden := s.materialize("Central Bank of Yemen - Aden")
	sanaa := s.materialize("Central Bank of Yemen - Sana'a")
	s.Require().NotEqual(aden, sanaa)

	_, err := s.service.Merge(s.reviewerCtx(), aden, sanaa, "consolidate duplicates")
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	// Both entities are untouched and the rejection is audited.
	srcAfter, err := s.entities.Get(context.Background(), aden)
	s.Require().NoError(err)
	s.Equal(models.StatusActive, srcAfter.Status)
	s.Contains(s.auditActions(), string(audit.EventMergeRejected))
}

func (s *ReviewSuite) TestMerge_SameRegimeSucceeds() {
	ctx := context.Background()

	src := &models.Entity{
		ID:           domain.NewEntityID(),
		NameEn:       "Sana'a Centre for Strategic Studies",
		Kind:         domain.KindThinkTank,
		RegimeTag:    domain.RegimeNeutral,
		RegimeStatus: domain.RegimeStatusReviewed,
		Status:       models.StatusActive,
	}
	s.Require().NoError(s.entities.Create(ctx, src))
	s.Require().NoError(s.entities.AddExternalRef(ctx, models.ExternalReference{
		EntityID: src.ID, System: "fts", ExternalID: "scss-alt",
	}))

	dst := s.materialize("Sana'a Center for Strategic Studies")

	target, err := s.service.Merge(s.reviewerCtx(), src.ID, dst, "British spelling duplicate")
	s.Require().NoError(err)
	s.Equal(dst, target.ID)

	// Source is a redirect now.
	srcAfter, err := s.entities.Get(ctx, src.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusMerged, srcAfter.Status)
	s.Equal(dst, srcAfter.MergedInto)

	// External references moved to the absorbing entity.
	found, err := s.entities.FindByExternalRef(ctx, "fts", "scss-alt")
	s.Require().NoError(err)
	s.Equal(dst, found.ID)

	// The source's name keeps resolving, now to the target.
	result, err := s.resolver.Resolve(ctx, ResolveRequest{Name: "Sana'a Centre for Strategic Studies"})
	s.Require().NoError(err)
	s.Equal(models.OutcomeMatched, result.Outcome)
	s.Equal(dst, result.EntityID)

	s.Contains(s.auditActions(), string(audit.EventEntitiesMerged))
}

func (s *ReviewSuite) TestMerge_SelfRejected() {
	id := s.materialize("World Bank")
	_, err := s.service.Merge(s.reviewerCtx(), id, id, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// =============================================================================
// Deprecate
// =============================================================================

func (s *ReviewSuite) TestDeprecate() {
	id := s.materialize("World Bank")

	e, err := s.service.Deprecate(s.reviewerCtx(), id, "superseded data source")
	s.Require().NoError(err)
	s.Equal(models.StatusDeprecated, e.Status)

	// Deprecation is not deletion: the record remains readable.
	loaded, err := s.service.GetEntity(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(models.StatusDeprecated, loaded.Status)

	_, err = s.service.Deprecate(s.reviewerCtx(), id, "again")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
