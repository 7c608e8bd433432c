package grading

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"yeto/internal/claim/models"
	"yeto/pkg/domain"
)

// Grader derives a claim's confidence grade from its citation set. Grading is
// a pure function of (claim conflict status, active citations, now): the same
// inputs always produce the same grade and explanation.
type Grader struct {
	cfg Config
}

// New constructs a Grader.
func New(cfg Config) (*Grader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Grader{cfg: cfg}, nil
}

// Grade computes the grade and a deterministic explanation. now anchors the
// recency window so re-grading in tests and replays is reproducible.
func (g *Grader) Grade(claim *models.Claim, citations []models.Citation, now time.Time) (domain.Grade, string) {
	active := activeCitations(citations)

	// Zero evidence means no letter grade, ever. The provenance rule enforces
	// the same guarantee independently; neither side trusts the other.
	if len(active) == 0 {
		return domain.GradeUndisplayable, "no evidence citations; grade withheld"
	}

	grade, explanation := g.evidenceGrade(active, now)

	// An unresolved contradiction caps the result regardless of evidence
	// strength: strong evidence on both sides is exactly what a dispute is.
	if claim.ConflictStatus == domain.ConflictDisputed {
		ceiling := domain.GradeD
		if grade == domain.GradeA || grade == domain.GradeB {
			ceiling = domain.GradeC
		}
		grade = grade.AtMost(ceiling)
		explanation += "; unresolved contradiction caps the grade"
	}

	return grade, explanation
}

func (g *Grader) evidenceGrade(active []models.Citation, now time.Time) (domain.Grade, string) {
	cutoff := now.Add(-g.cfg.RecencyWindow)
	windowDays := int(g.cfg.RecencyWindow / (24 * time.Hour))

	var recentPrimary []models.Citation
	allStale := true
	allEstimates := true
	for _, c := range active {
		if !c.RetrievedAt.Before(cutoff) {
			allStale = false
			if g.cfg.isPrimary(c.SourceType) && !c.Estimate {
				recentPrimary = append(recentPrimary, c)
			}
		}
		if !c.Estimate {
			allEstimates = false
		}
	}

	if len(recentPrimary) > 0 {
		return domain.GradeA, fmt.Sprintf(
			"primary source evidence (%s) retrieved within the %d-day window",
			sourceList(recentPrimary), windowDays)
	}

	hasSecondary := false
	for _, c := range active {
		if g.cfg.isSecondary(c.SourceType) && !c.Estimate {
			hasSecondary = true
			break
		}
	}
	if hasSecondary && independentPublishers(active) >= 2 {
		return domain.GradeB, fmt.Sprintf(
			"secondary source evidence corroborated across %d independent publishers (%s)",
			independentPublishers(active), sourceList(active))
	}

	switch {
	case len(active) == 1:
		return domain.GradeC, fmt.Sprintf("single uncorroborated citation (%s)", sourceList(active))
	case allStale:
		return domain.GradeC, fmt.Sprintf(
			"all citations retrieved outside the %d-day window (%s)", windowDays, sourceList(active))
	case allEstimates:
		return domain.GradeC, fmt.Sprintf("estimate-flagged citations only (%s)", sourceList(active))
	default:
		return domain.GradeC, fmt.Sprintf("no primary or corroborated secondary evidence (%s)", sourceList(active))
	}
}

func activeCitations(citations []models.Citation) []models.Citation {
	var active []models.Citation
	for _, c := range citations {
		if c.Active() {
			active = append(active, c)
		}
	}
	return active
}

func independentPublishers(citations []models.Citation) int {
	publishers := make(map[string]struct{})
	for _, c := range citations {
		publishers[c.Publisher] = struct{}{}
	}
	return len(publishers)
}

// sourceList renders a sorted, deduplicated source id list so explanations do
// not depend on citation order.
func sourceList(citations []models.Citation) string {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range citations {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		ids = append(ids, c.SourceID)
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}
