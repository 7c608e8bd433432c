package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
)

// =============================================================================
// Grader Test Suite
// =============================================================================
// The grader is a pure function, so every rule and the dispute cap are
// exercised directly against fixed citation sets and a fixed clock.

type GraderSuite struct {
	suite.Suite
	grader *Grader
	now    time.Time
}

func TestGraderSuite(t *testing.T) {
	suite.Run(t, new(GraderSuite))
}

func (s *GraderSuite) SetupTest() {
	grader, err := New(DefaultConfig())
	s.Require().NoError(err)
	s.grader = grader
	s.now = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
}

func (s *GraderSuite) claim(conflict domain.ConflictStatus) *models.Claim {
	return &models.Claim{
		ID:             domain.NewClaimID(),
		Subject:        models.Subject{EntityID: domain.NewEntityID(), Indicator: "fx_rate", Period: "2025-05"},
		Value:          1620,
		Unit:           "YER/USD",
		ConflictStatus: conflict,
	}
}

func (s *GraderSuite) citation(sourceID, publisher, sourceType string, age time.Duration) models.Citation {
	return models.Citation{
		ID:          domain.NewCitationID(),
		SourceID:    sourceID,
		Publisher:   publisher,
		SourceType:  sourceType,
		RetrievedAt: s.now.Add(-age),
	}
}

func (s *GraderSuite) TestZeroCitationsUndisplayable() {
	grade, explanation := s.grader.Grade(s.claim(domain.ConflictNone), nil, s.now)
	s.Equal(domain.GradeUndisplayable, grade)
	s.Contains(explanation, "no evidence citations")

	// Archived citations do not count as evidence.
	archived := s.citation("cby-bulletin-44", "CBY Aden", "central_bank", time.Hour)
	archived.Archived = true
	grade, _ = s.grader.Grade(s.claim(domain.ConflictNone), []models.Citation{archived}, s.now)
	s.Equal(domain.GradeUndisplayable, grade)
}

func (s *GraderSuite) TestGradeA_RecentPrimary() {
	citations := []models.Citation{
		s.citation("cby-bulletin-44", "CBY Aden", "central_bank", 30*24*time.Hour),
	}
	grade, explanation := s.grader.Grade(s.claim(domain.ConflictNone), citations, s.now)
	s.Equal(domain.GradeA, grade)
	s.Contains(explanation, "primary source")
	s.Contains(explanation, "cby-bulletin-44")
}

func (s *GraderSuite) TestGradeB_CorroboratedSecondary() {
	citations := []models.Citation{
		s.citation("scss-econ-2025", "Sana'a Center", "think_tank", 30*24*time.Hour),
		s.citation("acaps-brief-12", "ACAPS", "research", 45*24*time.Hour),
	}
	grade, explanation := s.grader.Grade(s.claim(domain.ConflictNone), citations, s.now)
	s.Equal(domain.GradeB, grade)
	s.Contains(explanation, "independent publishers")
}

func (s *GraderSuite) TestGradeC() {
	s.Run("single citation", func() {
		citations := []models.Citation{
			s.citation("acaps-brief-12", "ACAPS", "research", 30*24*time.Hour),
		}
		grade, explanation := s.grader.Grade(s.claim(domain.ConflictNone), citations, s.now)
		s.Equal(domain.GradeC, grade)
		s.Contains(explanation, "single uncorroborated citation")
	})

	s.Run("stale primary falls to C", func() {
		citations := []models.Citation{
			s.citation("cby-bulletin-12", "CBY Aden", "central_bank", 500*24*time.Hour),
			s.citation("mof-annual-2023", "MoF Aden", "official", 600*24*time.Hour),
		}
		grade, explanation := s.grader.Grade(s.claim(domain.ConflictNone), citations, s.now)
		s.Equal(domain.GradeC, grade)
		s.Contains(explanation, "outside the 365-day window")
	})

	s.Run("estimates only", func() {
		a := s.citation("wb-model-2025", "World Bank", "multilateral", 30*24*time.Hour)
		a.Estimate = true
		b := s.citation("imf-proj-2025", "IMF", "multilateral", 30*24*time.Hour)
		b.Estimate = true
		grade, explanation := s.grader.Grade(s.claim(domain.ConflictNone), []models.Citation{a, b}, s.now)
		s.Equal(domain.GradeC, grade)
		s.Contains(explanation, "estimate-flagged")
	})
}

func (s *GraderSuite) TestDisputeCapsGrade() {
	s.Run("disputed A-grade evidence caps at C", func() {
		citations := []models.Citation{
			s.citation("cby-bulletin-44", "CBY Aden", "central_bank", 30*24*time.Hour),
		}
		grade, explanation := s.grader.Grade(s.claim(domain.ConflictDisputed), citations, s.now)
		s.Equal(domain.GradeC, grade)
		s.Contains(explanation, "unresolved contradiction")
	})

	s.Run("disputed weak evidence falls to D", func() {
		citations := []models.Citation{
			s.citation("news-item-9", "Yemen Monitor", "media", 30*24*time.Hour),
		}
		grade, _ := s.grader.Grade(s.claim(domain.ConflictDisputed), citations, s.now)
		s.Equal(domain.GradeD, grade)
	})
}

func (s *GraderSuite) TestDeterminism() {
	citations := []models.Citation{
		s.citation("scss-econ-2025", "Sana'a Center", "think_tank", 30*24*time.Hour),
		s.citation("acaps-brief-12", "ACAPS", "research", 45*24*time.Hour),
		s.citation("cby-bulletin-44", "CBY Aden", "central_bank", 30*24*time.Hour),
	}
	claim := s.claim(domain.ConflictNone)

	grade1, exp1 := s.grader.Grade(claim, citations, s.now)

	// Same citation set in a different order grades identically.
	reordered := []models.Citation{citations[2], citations[0], citations[1]}
	grade2, exp2 := s.grader.Grade(claim, reordered, s.now)

	s.Equal(grade1, grade2)
	s.Equal(exp1, exp2)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecencyWindow = 0
	_, err := New(cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.PrimarySourceTypes = nil
	_, err = New(cfg)
	require.Error(t, err)
}
