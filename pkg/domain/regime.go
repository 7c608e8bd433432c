package domain

import dErrors "yeto/pkg/domain-errors"

// RegimeTag marks which rival authority an entity belongs to.
//
// "both" means the name is shared harmlessly between authorities (e.g. a
// technical agency that is not split). It is never assigned automatically to
// split-prone entity kinds; see RegimeStatus.
type RegimeTag string

const (
	RegimeAden          RegimeTag = "aden"
	RegimeSanaa         RegimeTag = "sanaa"
	RegimeBoth          RegimeTag = "both"
	RegimeInternational RegimeTag = "international"
	RegimeNeutral       RegimeTag = "neutral"
)

var validRegimeTags = map[RegimeTag]bool{
	RegimeAden:          true,
	RegimeSanaa:         true,
	RegimeBoth:          true,
	RegimeInternational: true,
	RegimeNeutral:       true,
}

// ParseRegimeTag constructs a RegimeTag from external input.
func ParseRegimeTag(s string) (RegimeTag, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "regime tag cannot be empty")
	}
	t := RegimeTag(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid regime tag %q", s)
	}
	return t, nil
}

// IsValid checks if the tag is one of the supported enum values.
func (t RegimeTag) IsValid() bool { return validRegimeTags[t] }

func (t RegimeTag) String() string { return string(t) }

// Mergeable reports whether two entities carrying these tags may be merged.
// Entities under different rival authorities can never be merged; a name match
// alone is insufficient evidence of identity across rival governments.
func (t RegimeTag) Mergeable(other RegimeTag) bool {
	if t == other {
		return true
	}
	// A split-tagged entity never merges with anything under a different
	// authority, including "both".
	if t.isAuthority() || other.isAuthority() {
		return false
	}
	return true
}

func (t RegimeTag) isAuthority() bool {
	return t == RegimeAden || t == RegimeSanaa
}

// RegimeStatus records how an entity acquired its regime tag. Names whose tag
// is still contested never reach the entity store at all; they sit in a
// review case until a reviewer decides. Split-prone kinds must be "reviewed"
// before carrying tag "both".
type RegimeStatus string

const (
	// RegimeStatusTagged: tag assigned from the canonical registry.
	RegimeStatusTagged RegimeStatus = "tagged"
	// RegimeStatusReviewed: tag confirmed by an explicit reviewer decision.
	RegimeStatusReviewed RegimeStatus = "reviewed"
)

var validRegimeStatuses = map[RegimeStatus]bool{
	RegimeStatusTagged:   true,
	RegimeStatusReviewed: true,
}

// ParseRegimeStatus constructs a RegimeStatus from external input.
func ParseRegimeStatus(s string) (RegimeStatus, error) {
	st := RegimeStatus(s)
	if !validRegimeStatuses[st] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid regime status %q", s)
	}
	return st, nil
}

func (s RegimeStatus) String() string { return string(s) }
