//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	claimmodels "yeto/internal/claim/models"
	claimstore "yeto/internal/claim/store/claim"
	"yeto/internal/contradiction/models"
	"yeto/internal/contradiction/store"
	entitymodels "yeto/internal/entity/models"
	entitystore "yeto/internal/entity/store/entity"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	entities *entitystore.PostgresStore
	claims   *claimstore.PostgresStore

	subject claimmodels.Subject
	claimA  domain.ClaimID
	claimB  domain.ClaimID
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.entities = entitystore.NewPostgres(s.postgres.DB)
	s.claims = claimstore.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "contradictions", "claims", "entities")
	s.Require().NoError(err)

	// Contradiction rows reference an entity and two claims.
	e := &entitymodels.Entity{
		ID:           domain.NewEntityID(),
		NameEn:       "Ministry of Finance " + uuid.NewString(),
		Kind:         domain.KindMinistry,
		RegimeTag:    domain.RegimeSanaa,
		RegimeStatus: domain.RegimeStatusTagged,
		Status:       entitymodels.StatusActive,
	}
	s.Require().NoError(s.entities.Create(ctx, e))

	s.subject = claimmodels.Subject{
		EntityID:  e.ID,
		Indicator: "customs_revenue_yer",
		Period:    "2025-Q1",
	}
	s.claimA = s.seedClaim(ctx, 1620)
	s.claimB = s.seedClaim(ctx, 530)
}

func (s *PostgresStoreSuite) seedClaim(ctx context.Context, value float64) domain.ClaimID {
	c := &claimmodels.Claim{
		ID:      domain.NewClaimID(),
		Subject: s.subject,
		Value:   value,
		Unit:    "yer_billions",
	}
	s.Require().NoError(s.claims.Create(ctx, c))
	return c.ID
}

func (s *PostgresStoreSuite) newRecord(a, b domain.ClaimID, va, vb float64) *models.Record {
	return &models.Record{
		ID:       domain.NewContradictionID(),
		Subject:  s.subject,
		ClaimA:   a,
		ClaimB:   b,
		ValueA:   va,
		ValueB:   vb,
		SourcesA: []string{"src-" + a.String()[:8]},
		SourcesB: []string{"src-" + b.String()[:8]},
		Variance: 0.6728,
		Severity: models.SeverityHigh,
		Status:   models.StatusDetected,
	}
}

func (s *PostgresStoreSuite) TestUpsertAndGet() {
	ctx := context.Background()

	record := s.newRecord(s.claimA, s.claimB, 1620, 530)
	stored, err := s.store.Upsert(ctx, record)
	s.Require().NoError(err)
	s.Equal(record.ID, stored.ID)
	s.Equal(models.StatusDetected, stored.Status)

	found, err := s.store.Get(ctx, stored.ID)
	s.Require().NoError(err)
	s.Equal(s.subject, found.Subject)
	s.InDelta(0.6728, found.Variance, 1e-9)
	s.Equal(models.SeverityHigh, found.Severity)
	s.Equal([]string{"src-" + found.ClaimA.String()[:8]}, found.SourcesA)
	s.Equal([]string{"src-" + found.ClaimB.String()[:8]}, found.SourcesB)
}

// TestUpsertPairOrderIndependent verifies that (a,b) and (b,a) land on the
// same row regardless of comparison order.
func (s *PostgresStoreSuite) TestUpsertPairOrderIndependent() {
	ctx := context.Background()

	first, err := s.store.Upsert(ctx, s.newRecord(s.claimA, s.claimB, 1620, 530))
	s.Require().NoError(err)

	// Same pair, reversed. The existing row must be refreshed, not duplicated.
	reversed := s.newRecord(s.claimB, s.claimA, 540, 1620)
	reversed.Variance = 0.6667
	second, err := s.store.Upsert(ctx, reversed)
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID, "re-detection must hit the existing row")
	s.InDelta(0.6667, second.Variance, 1e-9)
	// Sources travel with their claim through the canonical reordering.
	s.Equal([]string{"src-" + second.ClaimA.String()[:8]}, second.SourcesA)
	s.Equal([]string{"src-" + second.ClaimB.String()[:8]}, second.SourcesB)

	records, err := s.store.List(ctx, s.subject.EntityID, "")
	s.Require().NoError(err)
	s.Len(records, 1)
}

// TestUpsertPreservesReviewState verifies that re-detection refreshes the
// measured values but never resets a reviewer's status or notes.
func (s *PostgresStoreSuite) TestUpsertPreservesReviewState() {
	ctx := context.Background()

	stored, err := s.store.Upsert(ctx, s.newRecord(s.claimA, s.claimB, 1620, 530))
	s.Require().NoError(err)

	stored.Status = models.StatusUnderReview
	stored.PlausibleReason = models.ReasonMethodology
	stored.AppendNote("checking collection methodology", time.Now(), "analyst-1")
	s.Require().NoError(s.store.Update(ctx, stored))

	refreshed, err := s.store.Upsert(ctx, s.newRecord(s.claimA, s.claimB, 1600, 530))
	s.Require().NoError(err)
	s.Equal(stored.ID, refreshed.ID)
	s.Equal(models.StatusUnderReview, refreshed.Status)
	s.Equal(models.ReasonMethodology, refreshed.PlausibleReason)
	s.Contains(refreshed.ResolutionNotes, "checking collection methodology")
	s.InDelta(1600, refreshed.ValueA, 1e-9)
}

func (s *PostgresStoreSuite) TestListFilters() {
	ctx := context.Background()

	stored, err := s.store.Upsert(ctx, s.newRecord(s.claimA, s.claimB, 1620, 530))
	s.Require().NoError(err)

	detected, err := s.store.List(ctx, s.subject.EntityID, models.StatusDetected)
	s.Require().NoError(err)
	s.Len(detected, 1)

	resolved, err := s.store.List(ctx, s.subject.EntityID, models.StatusResolved)
	s.Require().NoError(err)
	s.Empty(resolved)

	other, err := s.store.List(ctx, domain.NewEntityID(), "")
	s.Require().NoError(err)
	s.Empty(other)

	stored.Status = models.StatusResolved
	stored.PlausibleReason = models.ReasonRegime
	s.Require().NoError(s.store.Update(ctx, stored))

	resolved, err = s.store.List(ctx, s.subject.EntityID, models.StatusResolved)
	s.Require().NoError(err)
	s.Len(resolved, 1)
	s.Equal(models.ReasonRegime, resolved[0].PlausibleReason)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, domain.NewContradictionID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	ghost := s.newRecord(s.claimA, s.claimB, 1, 2)
	err = s.store.Update(ctx, ghost)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
