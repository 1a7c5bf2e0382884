package domain

import (
	"strings"

	dErrors "vaxcov/pkg/domain-errors"
)

// Sex is the sex targeted by the administered vaccine program
// (sex_adm_vax in the codebook).
type Sex string

const (
	SexFemaleOnly Sex = "female-only"
	SexMaleOnly   Sex = "male-only"
	SexBoth       Sex = "both"
)

var validSexes = map[Sex]bool{
	SexFemaleOnly: true,
	SexMaleOnly:   true,
	SexBoth:       true,
}

// ParseSex validates the target-sex label after trim + lowercase.
func ParseSex(s string) (Sex, error) {
	v := Sex(strings.ToLower(strings.TrimSpace(s)))
	if !validSexes[v] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid target sex")
	}
	return v, nil
}

// String returns the string representation.
func (s Sex) String() string {
	return string(s)
}
