package domain

import dErrors "yeto/pkg/domain-errors"

// Grade is the computed trust level A-D for a claim based on its evidence.
//
// GradeUndisplayable is distinct from D: the claim exists but must never
// surface a letter grade to a consumer because no evidence backs it.
type Grade string

const (
	GradeA             Grade = "A"
	GradeB             Grade = "B"
	GradeC             Grade = "C"
	GradeD             Grade = "D"
	GradeUndisplayable Grade = "undisplayable"
)

var validGrades = map[Grade]bool{
	GradeA:             true,
	GradeB:             true,
	GradeC:             true,
	GradeD:             true,
	GradeUndisplayable: true,
}

// ParseGrade constructs a Grade from external input.
func ParseGrade(s string) (Grade, error) {
	g := Grade(s)
	if !validGrades[g] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid grade %q", s)
	}
	return g, nil
}

func (g Grade) String() string { return string(g) }

// Displayable reports whether the grade may be shown to a consumer.
func (g Grade) Displayable() bool {
	return g == GradeA || g == GradeB || g == GradeC || g == GradeD
}

// order maps displayable grades to a rank for comparisons; A is best.
var gradeOrder = map[Grade]int{GradeA: 4, GradeB: 3, GradeC: 2, GradeD: 1}

// AtMost returns the weaker of g and ceiling. Used when a dispute caps a
// claim's grade regardless of its evidence strength.
func (g Grade) AtMost(ceiling Grade) Grade {
	if !g.Displayable() || !ceiling.Displayable() {
		return g
	}
	if gradeOrder[g] > gradeOrder[ceiling] {
		return ceiling
	}
	return g
}

// ConflictStatus tracks whether a claim is entangled in a contradiction.
// It is owned exclusively by the contradiction detector.
type ConflictStatus string

const (
	ConflictNone     ConflictStatus = "none"
	ConflictDisputed ConflictStatus = "disputed"
	ConflictResolved ConflictStatus = "resolved"
)

var validConflictStatuses = map[ConflictStatus]bool{
	ConflictNone:     true,
	ConflictDisputed: true,
	ConflictResolved: true,
}

// ParseConflictStatus constructs a ConflictStatus from external input.
func ParseConflictStatus(s string) (ConflictStatus, error) {
	c := ConflictStatus(s)
	if !validConflictStatuses[c] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid conflict status %q", s)
	}
	return c, nil
}

func (c ConflictStatus) String() string { return string(c) }
