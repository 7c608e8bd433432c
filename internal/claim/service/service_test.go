package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"yeto/internal/claim/models"
	claimStore "yeto/internal/claim/store/claim"
	citationStore "yeto/internal/claim/store/citation"
	"yeto/internal/grading"
	"yeto/internal/storage"
	"yeto/pkg/domain"
	dErrors "yeto/pkg/domain-errors"
	"yeto/pkg/platform/audit"
	"yeto/pkg/platform/audit/publisher"
	auditmemory "yeto/pkg/platform/audit/store/memory"
	"yeto/pkg/requestcontext"
)

// =============================================================================
// Claim Service Test Suite
// =============================================================================
// Grading runs as a side effect of citation changes, so most tests drive the
// service through Ingest and AddCitation and assert on the stored grade.

type ClaimSuite struct {
	suite.Suite
	claims    *claimStore.InMemoryStore
	citations *citationStore.InMemoryStore
	audit     *auditmemory.InMemoryStore
	service   *Service

	now      time.Time
	entityID domain.EntityID
}

func TestClaimSuite(t *testing.T) {
	suite.Run(t, new(ClaimSuite))
}

func (s *ClaimSuite) SetupTest() {
	s.claims = claimStore.NewInMemoryStore()
	s.citations = citationStore.NewInMemory(s.claims)
	s.audit = auditmemory.NewInMemoryStore()

	grader, err := grading.New(grading.DefaultConfig())
	s.Require().NoError(err)

	s.service = New(s.claims, s.citations, grader, storage.NewNoopTxRunner(),
		WithAuditPublisher(publisher.NewPublisher(s.audit)))

	s.now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.entityID = domain.NewEntityID()
}

func (s *ClaimSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ClaimSuite) newClaim() *models.Claim {
	return &models.Claim{
		Subject: models.Subject{
			EntityID:  s.entityID,
			Indicator: "fx_reserves_usd",
			Period:    "2025-Q1",
		},
		Value: 1.2e9,
		Unit:  "USD",
	}
}

func (s *ClaimSuite) citation(claimID domain.ClaimID, sourceID, publisher, sourceType string, age time.Duration) *models.Citation {
	return &models.Citation{
		ClaimID:     claimID,
		SourceID:    sourceID,
		Publisher:   publisher,
		SourceType:  sourceType,
		URL:         "https://example.org/" + sourceID,
		RetrievedAt: s.now.Add(-age),
		LicenseOpen: true,
	}
}

// =============================================================================
// Ingestion
// =============================================================================

func (s *ClaimSuite) TestIngest_ValidClaim() {
	claim, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)
	s.False(claim.ID.IsNil())
	s.Equal(int64(1), claim.Version)
	s.Equal(domain.ConflictNone, claim.ConflictStatus)

	// An ungraded claim reads back as undisplayable.
	grade, explanation, err := s.service.GetGrade(s.ctx(), claim.ID)
	s.Require().NoError(err)
	s.Equal(domain.GradeUndisplayable, grade)
	s.Equal("not yet graded", explanation)
}

func (s *ClaimSuite) TestIngest_RejectsMissingFields() {
	cases := map[string]func(*models.Claim){
		"no entity":    func(c *models.Claim) { c.Subject.EntityID = domain.EntityID{} },
		"no indicator": func(c *models.Claim) { c.Subject.Indicator = "" },
		"no period":    func(c *models.Claim) { c.Subject.Period = "  " },
		"no unit":      func(c *models.Claim) { c.Unit = "" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			claim := s.newClaim()
			mutate(claim)
			_, err := s.service.Ingest(s.ctx(), claim)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

// =============================================================================
// Citations trigger grading
// =============================================================================

func (s *ClaimSuite) TestAddCitation_GradesClaim() {
	claim, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)

	_, err = s.service.AddCitation(s.ctx(),
		s.citation(claim.ID, "cby-aden-bulletin-2025q1", "Central Bank of Yemen - Aden", "central_bank", 30*24*time.Hour))
	s.Require().NoError(err)

	grade, _, err := s.service.GetGrade(s.ctx(), claim.ID)
	s.Require().NoError(err)
	s.Equal(domain.GradeA, grade)

	events, err := s.audit.List(context.Background(), claim.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventClaimGraded), events[0].Action)
	s.Equal("grade=A", events[0].Decision)
}

func (s *ClaimSuite) TestAddCitation_UnknownClaim() {
	_, err := s.service.AddCitation(s.ctx(),
		s.citation(domain.NewClaimID(), "src", "Somebody", "official", 0))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ClaimSuite) TestArchiveCitation_LastCitationDropsToUndisplayable() {
	claim, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)
	cit, err := s.service.AddCitation(s.ctx(),
		s.citation(claim.ID, "imf-art4-2025", "IMF", "multilateral", 10*24*time.Hour))
	s.Require().NoError(err)

	s.Require().NoError(s.service.ArchiveCitation(s.ctx(), claim.ID, cit.ID))

	grade, explanation, err := s.service.GetGrade(s.ctx(), claim.ID)
	s.Require().NoError(err)
	s.Equal(domain.GradeUndisplayable, grade)
	s.Contains(explanation, "no evidence citations")
}

func (s *ClaimSuite) TestArchiveCitation_WrongClaim() {
	a, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)
	b := s.newClaim()
	b.Subject.Period = "2025-Q2"
	bStored, err := s.service.Ingest(s.ctx(), b)
	s.Require().NoError(err)
	cit, err := s.service.AddCitation(s.ctx(),
		s.citation(bStored.ID, "src", "IMF", "multilateral", 0))
	s.Require().NoError(err)

	err = s.service.ArchiveCitation(s.ctx(), a.ID, cit.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// =============================================================================
// Dispute interaction
// =============================================================================

// A disputed claim with A-strength evidence surfaces as at most C. The
// contradiction detector flips the conflict status; grading picks it up on
// the next pass.
func (s *ClaimSuite) TestGradeClaim_DisputeCapsStrongEvidence() {
	claim, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)
	_, err = s.service.AddCitation(s.ctx(),
		s.citation(claim.ID, "cby-aden-bulletin-2025q1", "Central Bank of Yemen - Aden", "central_bank", 30*24*time.Hour))
	s.Require().NoError(err)

	stored, err := s.service.Get(s.ctx(), claim.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.claims.UpdateConflict(s.ctx(), claim.ID, stored.Version, domain.ConflictDisputed))

	regraded, err := s.service.GradeClaim(s.ctx(), claim.ID)
	s.Require().NoError(err)
	s.Equal(domain.GradeC, regraded.Grade)
	s.Contains(regraded.GradeExplanation, "unresolved contradiction")
}

func (s *ClaimSuite) TestGradeClaim_NoChangeSkipsWrite() {
	claim, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)
	_, err = s.service.AddCitation(s.ctx(),
		s.citation(claim.ID, "imf-art4-2025", "IMF", "multilateral", 0))
	s.Require().NoError(err)

	before, err := s.service.Get(s.ctx(), claim.ID)
	s.Require().NoError(err)

	regraded, err := s.service.GradeClaim(s.ctx(), claim.ID)
	s.Require().NoError(err)
	s.Equal(before.Version, regraded.Version)

	// Only the first grading pass emitted an audit event.
	events, err := s.audit.List(context.Background(), claim.ID.String())
	s.Require().NoError(err)
	s.Len(events, 1)
}

// =============================================================================
// Supersession
// =============================================================================

func (s *ClaimSuite) TestSupersede() {
	old, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)

	replacement := s.newClaim()
	replacement.Value = 1.35e9
	replacement.Vintage = "2025-Q1-final"
	stored, err := s.service.Supersede(s.ctx(), old.ID, replacement)
	s.Require().NoError(err)
	s.False(stored.ID.IsNil())
	s.NotEqual(old.ID, stored.ID)

	// The old claim is kept and points forward.
	oldStored, err := s.service.Get(s.ctx(), old.ID)
	s.Require().NoError(err)
	s.Equal(stored.ID, oldStored.SupersededBy)

	// Both appear under the subject.
	claims, err := s.service.ListBySubject(s.ctx(), old.Subject)
	s.Require().NoError(err)
	s.Len(claims, 2)

	events, err := s.audit.List(context.Background(), old.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventClaimSuperseded), events[0].Action)
}

func (s *ClaimSuite) TestSupersede_AlreadySuperseded() {
	old, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)
	_, err = s.service.Supersede(s.ctx(), old.ID, s.newClaim())
	s.Require().NoError(err)

	_, err = s.service.Supersede(s.ctx(), old.ID, s.newClaim())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ClaimSuite) TestSupersede_SubjectMustMatch() {
	old, err := s.service.Ingest(s.ctx(), s.newClaim())
	s.Require().NoError(err)

	replacement := s.newClaim()
	replacement.Subject.Period = "2025-Q2"
	_, err = s.service.Supersede(s.ctx(), old.ID, replacement)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
