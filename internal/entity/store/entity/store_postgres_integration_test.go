//go:build integration

package entity_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"yeto/internal/entity/models"
	"yeto/internal/entity/store/entity"
	"yeto/internal/normalize"
	"yeto/pkg/domain"
	"yeto/pkg/platform/sentinel"
	"yeto/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *entity.PostgresStore
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
	s.store = entity.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"entity_aliases", "entity_external_refs", "entities")
	s.Require().NoError(err)
}

func newTestEntity(name string) *models.Entity {
	return &models.Entity{
		ID:           domain.NewEntityID(),
		NameEn:       name,
		Kind:         domain.KindMultilateral,
		RegimeTag:    domain.RegimeInternational,
		RegimeStatus: domain.RegimeStatusTagged,
		Status:       models.StatusActive,
	}
}

func (s *PostgresStoreSuite) TestCreateAndGet() {
	ctx := context.Background()

	e := newTestEntity("World Bank " + uuid.NewString())
	s.Require().NoError(s.store.Create(ctx, e))

	found, err := s.store.Get(ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)
	s.Equal(e.NameEn, found.NameEn)
	s.Equal(domain.KindMultilateral, found.Kind)
	s.Equal(models.StatusActive, found.Status)
}

// TestConcurrentDuplicateName verifies that concurrent creates with the
// same name resolve to exactly one row via the normalized-name index.
func (s *PostgresStoreSuite) TestConcurrentDuplicateName() {
	ctx := context.Background()
	name := "Central Bank of Yemen " + uuid.NewString()
	const goroutines = 30

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newTestEntity(name))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one create should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load(), "all others should get conflict error")
}

// TestNormalizedLookup verifies that case and punctuation variants resolve
// to the same canonical row.
func (s *PostgresStoreSuite) TestNormalizedLookup() {
	ctx := context.Background()

	e := newTestEntity("World Food Programme")
	s.Require().NoError(s.store.Create(ctx, e))

	for _, variant := range []string{
		"world food programme",
		"WORLD FOOD PROGRAMME",
		"World  Food   Programme",
	} {
		found, err := s.store.FindByNormalizedName(ctx, normalize.Name(variant))
		s.Require().NoError(err, "variant %q", variant)
		s.Equal(e.ID, found.ID)
	}

	_, err := s.store.FindByNormalizedName(ctx, normalize.Name("Unknown Agency"))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestAliasRoundtrip() {
	ctx := context.Background()

	e := newTestEntity("World Food Programme " + uuid.NewString())
	s.Require().NoError(s.store.Create(ctx, e))

	alias := models.Alias{
		EntityID:   e.ID,
		Alias:      "WFP",
		Language:   "en",
		Source:     "seed",
		Confidence: 0.95,
	}
	s.Require().NoError(s.store.AddAlias(ctx, alias))

	found, err := s.store.FindByAlias(ctx, normalize.Name("wfp"))
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)

	aliases, err := s.store.ListAliases(ctx, e.ID)
	s.Require().NoError(err)
	s.Require().Len(aliases, 1)
	s.Equal("WFP", aliases[0].Alias)
	s.InDelta(0.95, aliases[0].Confidence, 1e-9)
}

func (s *PostgresStoreSuite) TestExternalRefRoundtrip() {
	ctx := context.Background()

	e := newTestEntity("UNDP " + uuid.NewString())
	s.Require().NoError(s.store.Create(ctx, e))

	ref := models.ExternalReference{
		EntityID:   e.ID,
		System:     "iati",
		ExternalID: "41119",
		URL:        "https://iatistandard.org/en/iati-tools-and-resources/",
	}
	s.Require().NoError(s.store.AddExternalRef(ctx, ref))

	found, err := s.store.FindByExternalRef(ctx, "iati", "41119")
	s.Require().NoError(err)
	s.Equal(e.ID, found.ID)

	_, err = s.store.FindByExternalRef(ctx, "iati", "99999")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestMoveAliases covers the merge path: aliases and external refs follow
// the absorbing entity.
func (s *PostgresStoreSuite) TestMoveAliases() {
	ctx := context.Background()

	winner := newTestEntity("Ministry of Planning " + uuid.NewString())
	loser := newTestEntity("Min. of Planning " + uuid.NewString())
	s.Require().NoError(s.store.Create(ctx, winner))
	s.Require().NoError(s.store.Create(ctx, loser))

	s.Require().NoError(s.store.AddAlias(ctx, models.Alias{
		EntityID: loser.ID, Alias: "MoPIC", Confidence: 1,
	}))
	s.Require().NoError(s.store.AddExternalRef(ctx, models.ExternalReference{
		EntityID: loser.ID, System: "iati", ExternalID: uuid.NewString(),
	}))

	s.Require().NoError(s.store.MoveAliases(ctx, loser.ID, winner.ID))
	s.Require().NoError(s.store.MoveExternalRefs(ctx, loser.ID, winner.ID))

	aliases, err := s.store.ListAliases(ctx, winner.ID)
	s.Require().NoError(err)
	s.Len(aliases, 1)

	refs, err := s.store.ListExternalRefs(ctx, winner.ID)
	s.Require().NoError(err)
	s.Len(refs, 1)

	remaining, err := s.store.ListAliases(ctx, loser.ID)
	s.Require().NoError(err)
	s.Empty(remaining)
}

func (s *PostgresStoreSuite) TestNotFound() {
	ctx := context.Background()

	_, err := s.store.Get(ctx, domain.NewEntityID())
	s.ErrorIs(err, sentinel.ErrNotFound)

	ghost := newTestEntity("Ghost " + uuid.NewString())
	err = s.store.Update(ctx, ghost)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
