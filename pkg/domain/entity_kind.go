package domain

import dErrors "yeto/pkg/domain-errors"

// EntityKind is the fixed vocabulary of tracked organization kinds.
type EntityKind string

const (
	KindMultilateral       EntityKind = "multilateral"
	KindEUInstitution      EntityKind = "eu_institution"
	KindUNAgency           EntityKind = "un_agency"
	KindNationalAuthority  EntityKind = "national_authority"
	KindMinistry           EntityKind = "ministry"
	KindCentralBank        EntityKind = "central_bank"
	KindDevelopmentProgram EntityKind = "development_program"
	KindThinkTank          EntityKind = "think_tank"
	KindPrivateSector      EntityKind = "private_sector"
	KindMediaCivilSociety  EntityKind = "media_civil_society"
)

var validEntityKinds = map[EntityKind]bool{
	KindMultilateral:       true,
	KindEUInstitution:      true,
	KindUNAgency:           true,
	KindNationalAuthority:  true,
	KindMinistry:           true,
	KindCentralBank:        true,
	KindDevelopmentProgram: true,
	KindThinkTank:          true,
	KindPrivateSector:      true,
	KindMediaCivilSociety:  true,
}

// ParseEntityKind constructs an EntityKind from external input.
func ParseEntityKind(s string) (EntityKind, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "entity kind cannot be empty")
	}
	k := EntityKind(s)
	if !validEntityKinds[k] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid entity kind %q", s)
	}
	return k, nil
}

func (k EntityKind) String() string { return string(k) }

// SplitProne reports whether entities of this kind exist in duplicate under
// rival governments. Split-prone kinds must never carry regime tag "both"
// without an explicit reviewed decision.
func (k EntityKind) SplitProne() bool {
	switch k {
	case KindCentralBank, KindMinistry, KindNationalAuthority:
		return true
	}
	return false
}
