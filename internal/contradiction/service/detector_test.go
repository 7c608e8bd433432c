package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	claimmodels "yeto/internal/claim/models"
	claimservice "yeto/internal/claim/service"
	claimStore "yeto/internal/claim/store/claim"
	citationStore "yeto/internal/claim/store/citation"
	"yeto/internal/contradiction"
	"yeto/internal/contradiction/models"
	"yeto/internal/contradiction/store"
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
// Contradiction Detector Test Suite
// =============================================================================
// The canonical scenario: two sources report fuel imports of 1620 and 530 for
// the same port and month. That is a ~67% disagreement, well past the high
// threshold, and must produce a detected record, flip both claims to
// disputed, and cap their grades.

type DetectorSuite struct {
	suite.Suite
	claims    *claimStore.InMemoryStore
	citations *citationStore.InMemoryStore
	records   *store.InMemoryStore
	audit     *auditmemory.InMemoryStore
	claimSvc  *claimservice.Service
	detector  *Detector

	now      time.Time
	entityID domain.EntityID
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.claims = claimStore.NewInMemoryStore()
	s.citations = citationStore.NewInMemory(s.claims)
	s.records = store.NewInMemoryStore()
	s.audit = auditmemory.NewInMemoryStore()

	grader, err := grading.New(grading.DefaultConfig())
	s.Require().NoError(err)
	pub := publisher.NewPublisher(s.audit)

	s.claimSvc = claimservice.New(s.claims, s.citations, grader, storage.NewNoopTxRunner(),
		claimservice.WithAuditPublisher(pub))

	s.detector, err = New(contradiction.DefaultConfig(), s.records, s.claims, s.citations, s.claimSvc,
		WithAuditPublisher(pub))
	s.Require().NoError(err)

	s.now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s.entityID = domain.NewEntityID()
}

func (s *DetectorSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *DetectorSuite) reviewerCtx() context.Context {
	return requestcontext.WithReviewerID(s.ctx(), "analyst-1")
}

// ingestClaim stores a claim with one strong citation so it starts at grade A.
func (s *DetectorSuite) ingestClaim(value float64, sourceID, publisher string) *claimmodels.Claim {
	claim, err := s.claimSvc.Ingest(s.ctx(), &claimmodels.Claim{
		Subject: claimmodels.Subject{
			EntityID:  s.entityID,
			Indicator: "fuel_imports_mt",
			Period:    "2025-05",
		},
		Value: value,
		Unit:  "metric_tons",
	})
	s.Require().NoError(err)
	_, err = s.claimSvc.AddCitation(s.ctx(), &claimmodels.Citation{
		ClaimID:     claim.ID,
		SourceID:    sourceID,
		Publisher:   publisher,
		SourceType:  "official",
		RetrievedAt: s.now.Add(-15 * 24 * time.Hour),
	})
	s.Require().NoError(err)
	return claim
}

func (s *DetectorSuite) TestScan_HighVarianceDetected() {
	a := s.ingestClaim(1620, "aden-port-authority-may", "Aden Port Authority")
	b := s.ingestClaim(530, "sanaa-customs-may", "Sana'a Customs Authority")

	result, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	s.Equal(1, result.SubjectsScanned)
	s.Equal(1, result.PairsCompared)
	s.Equal(1, result.Detections)

	records, err := s.detector.List(s.ctx(), s.entityID, models.StatusDetected)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	record := records[0]
	s.Equal(models.SeverityHigh, record.Severity)
	s.InDelta(0.6728, record.Variance, 0.001)

	// Each side of the record names the sources backing its value.
	wantSources := map[domain.ClaimID][]string{
		a.ID: {"aden-port-authority-may"},
		b.ID: {"sanaa-customs-may"},
	}
	s.Equal(wantSources[record.ClaimA], record.SourcesA)
	s.Equal(wantSources[record.ClaimB], record.SourcesB)

	// Both claims flip to disputed and their A-strength evidence caps at C.
	for _, id := range []domain.ClaimID{a.ID, b.ID} {
		claim, err := s.claimSvc.Get(s.ctx(), id)
		s.Require().NoError(err)
		s.Equal(domain.ConflictDisputed, claim.ConflictStatus)
		s.Equal(domain.GradeC, claim.Grade)
		s.Contains(claim.GradeExplanation, "unresolved contradiction")
	}

	events, err := s.audit.List(context.Background(), record.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(string(audit.EventContradictionDetected), events[0].Action)
}

func (s *DetectorSuite) TestScan_ModerateVariance() {
	s.ingestClaim(1000, "src-a", "Publisher A")
	s.ingestClaim(750, "src-b", "Publisher B")

	result, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	s.Equal(1, result.Detections)

	records, err := s.detector.List(s.ctx(), s.entityID, "")
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(models.SeverityModerate, records[0].Severity)
}

func (s *DetectorSuite) TestScan_LowVarianceIgnored() {
	s.ingestClaim(1000, "src-a", "Publisher A")
	s.ingestClaim(950, "src-b", "Publisher B")

	result, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	s.Equal(1, result.PairsCompared)
	s.Equal(0, result.Detections)

	records, err := s.detector.List(s.ctx(), s.entityID, "")
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *DetectorSuite) TestScan_DifferentUnitsNotCompared() {
	a := s.ingestClaim(1620, "src-a", "Publisher A")
	// Same subject, different unit; the pair is incomparable.
	other, err := s.claimSvc.Ingest(s.ctx(), &claimmodels.Claim{
		Subject: a.Subject,
		Value:   530,
		Unit:    "usd",
	})
	s.Require().NoError(err)
	_, err = s.claimSvc.AddCitation(s.ctx(), &claimmodels.Citation{
		ClaimID:     other.ID,
		SourceID:    "src-b",
		Publisher:   "Publisher B",
		SourceType:  "official",
		RetrievedAt: s.now.Add(-15 * 24 * time.Hour),
	})
	s.Require().NoError(err)

	result, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	s.Equal(0, result.PairsCompared)
	s.Equal(0, result.Detections)
}

func (s *DetectorSuite) TestScan_UncitedClaimsNotCompared() {
	// Two bare claims disagree wildly, but neither carries a citation. With no
	// source to attribute either value to, the pair is never compared and
	// neither claim is disputed.
	subject := claimmodels.Subject{EntityID: s.entityID, Indicator: "fuel_imports_mt", Period: "2025-05"}
	a, err := s.claimSvc.Ingest(s.ctx(), &claimmodels.Claim{Subject: subject, Value: 100, Unit: "metric_tons"})
	s.Require().NoError(err)
	b, err := s.claimSvc.Ingest(s.ctx(), &claimmodels.Claim{Subject: subject, Value: 10, Unit: "metric_tons"})
	s.Require().NoError(err)

	result, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	s.Equal(0, result.PairsCompared)
	s.Equal(0, result.Detections)

	records, err := s.detector.List(s.ctx(), s.entityID, "")
	s.Require().NoError(err)
	s.Empty(records)
	for _, id := range []domain.ClaimID{a.ID, b.ID} {
		claim, err := s.claimSvc.Get(s.ctx(), id)
		s.Require().NoError(err)
		s.Equal(domain.ConflictNone, claim.ConflictStatus)
	}
}

func (s *DetectorSuite) TestScan_OneSidedCitationNotCompared() {
	// A sourced value cannot contradict an unsourced one either.
	a := s.ingestClaim(1620, "src-a", "Publisher A")
	_, err := s.claimSvc.Ingest(s.ctx(), &claimmodels.Claim{Subject: a.Subject, Value: 530, Unit: "metric_tons"})
	s.Require().NoError(err)

	result, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	s.Equal(0, result.PairsCompared)
	s.Equal(0, result.Detections)
}

func (s *DetectorSuite) TestScan_RedetectionDoesNotDuplicate() {
	s.ingestClaim(1620, "src-a", "Publisher A")
	s.ingestClaim(530, "src-b", "Publisher B")

	_, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	_, err = s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)

	records, err := s.detector.List(s.ctx(), s.entityID, "")
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *DetectorSuite) TestScan_SupersededClaimsSkipped() {
	old := s.ingestClaim(1620, "src-a", "Publisher A")
	replacement := &claimmodels.Claim{Subject: old.Subject, Value: 540, Unit: old.Unit, Vintage: "final"}
	superseding, err := s.claimSvc.Supersede(s.ctx(), old.ID, replacement)
	s.Require().NoError(err)
	_, err = s.claimSvc.AddCitation(s.ctx(), &claimmodels.Citation{
		ClaimID:     superseding.ID,
		SourceID:    "src-a-final",
		Publisher:   "Publisher A",
		SourceType:  "official",
		RetrievedAt: s.now.Add(-5 * 24 * time.Hour),
	})
	s.Require().NoError(err)

	// The superseded 1620 must not contradict anything; only live claims count.
	result, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	s.Equal(0, result.Detections)
}

// =============================================================================
// Transitions
// =============================================================================

func (s *DetectorSuite) detect() *models.Record {
	s.ingestClaim(1620, "src-a", "Publisher A")
	s.ingestClaim(530, "src-b", "Publisher B")
	_, err := s.detector.ScanAll(s.ctx())
	s.Require().NoError(err)
	records, err := s.detector.List(s.ctx(), s.entityID, models.StatusDetected)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	return records[0]
}

func (s *DetectorSuite) TestTransition_RequiresReviewer() {
	record := s.detect()
	_, err := s.detector.Transition(s.ctx(), record.ID, models.StatusUnderReview, "", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *DetectorSuite) TestTransition_FullLifecycle() {
	record := s.detect()

	underReview, err := s.detector.Transition(s.reviewerCtx(), record.ID,
		models.StatusUnderReview, "", "checking both customs ledgers")
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, underReview.Status)
	s.Contains(underReview.ResolutionNotes, "analyst-1: checking both customs ledgers")

	resolved, err := s.detector.Transition(s.reviewerCtx(), record.ID,
		models.StatusResolved, models.ReasonCoverage, "figures cover different port jurisdictions")
	s.Require().NoError(err)
	s.Equal(models.StatusResolved, resolved.Status)
	s.Equal(models.ReasonCoverage, resolved.PlausibleReason)

	// The note trail keeps both lines.
	s.Contains(resolved.ResolutionNotes, "customs ledgers")
	s.Contains(resolved.ResolutionNotes, "port jurisdictions")

	// Claims settle and their grades recover.
	claim, err := s.claimSvc.Get(s.ctx(), record.ClaimA)
	s.Require().NoError(err)
	s.Equal(domain.ConflictResolved, claim.ConflictStatus)
	s.Equal(domain.GradeA, claim.Grade)
}

func (s *DetectorSuite) TestTransition_BackwardRejected() {
	record := s.detect()
	_, err := s.detector.Transition(s.reviewerCtx(), record.ID,
		models.StatusResolved, models.ReasonTiming, "resolved directly")
	s.Require().NoError(err)

	_, err = s.detector.Transition(s.reviewerCtx(), record.ID, models.StatusUnderReview, "", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *DetectorSuite) TestTransition_InvalidReason() {
	_, err := models.ParsePlausibleReason("vibes")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}
