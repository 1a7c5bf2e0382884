package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	dErrors "vaxcov/pkg/domain-errors"
)

// InsufficientInfo is the explicit marker for coverage that cannot be
// resolved. It is never a silent null: every record carries either a numeric
// coverage or this marker.
const InsufficientInfo = "N/A"

// Coverage is a first-dose coverage percentage in [0,100], or the explicit
// "insufficient information" marker when no reliable value exists.
//
// The zero value is the marker, so an unresolved Coverage is never mistaken
// for 0% coverage.
type Coverage struct {
	value float64
	known bool
}

// CoverageOf builds a known coverage value.
// Errors: returns CodeValidation when the value is outside [0,100]; the
// codebook domain is closed and out-of-range source values indicate
// corruption rather than something to clamp.
func CoverageOf(v float64) (Coverage, error) {
	if v < 0 || v > 100 {
		return Coverage{}, dErrors.New(dErrors.CodeValidation, "coverage must be within [0,100]")
	}
	return Coverage{value: v, known: true}, nil
}

// CoverageUnknown returns the insufficient-information marker.
func CoverageUnknown() Coverage {
	return Coverage{}
}

// MustCoverage builds a known coverage and panics on a domain violation.
// Test helper; production paths use CoverageOf.
func MustCoverage(v float64) Coverage {
	c, err := CoverageOf(v)
	if err != nil {
		panic(err)
	}
	return c
}

// Value returns the numeric coverage; ok is false for the marker.
func (c Coverage) Value() (float64, bool) {
	return c.value, c.known
}

// IsInsufficient reports whether the coverage is the explicit
// insufficient-information marker.
func (c Coverage) IsInsufficient() bool {
	return !c.known
}

// String renders the value, or "N/A" for the marker.
func (c Coverage) String() string {
	if !c.known {
		return InsufficientInfo
	}
	return strconv.FormatFloat(c.value, 'f', -1, 64)
}

// MarshalJSON encodes a number for known values and the "N/A" string for the
// marker, matching the exchange format of the cleaned dataset.
func (c Coverage) MarshalJSON() ([]byte, error) {
	if !c.known {
		return json.Marshal(InsufficientInfo)
	}
	return json.Marshal(c.value)
}

// UnmarshalJSON accepts a number or the "N/A" marker string.
func (c *Coverage) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*c = CoverageUnknown()
		return nil
	case string:
		if IsMissing(v) {
			*c = CoverageUnknown()
			return nil
		}
		return dErrors.New(dErrors.CodeInvalidInput, "coverage must be numeric or N/A")
	case float64:
		parsed, err := CoverageOf(v)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	return dErrors.New(dErrors.CodeInvalidInput, "coverage must be numeric or N/A")
}

// IsMissing reports whether a raw cell is one of the blank/N-A markers that
// standardize to missing: "", "n/a", "na", "nan" after trim, case-insensitive.
func IsMissing(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "n/a", "na", "nan":
		return true
	}
	return false
}

// ParseCoverage coerces a raw cell to a coverage value. Missing markers and
// non-numeric text both return the insufficient-information marker with
// ok=false; the resolver decides what missing means for the row.
// Numeric values outside [0,100] return a validation error.
func ParseCoverage(raw string) (Coverage, bool, error) {
	if IsMissing(raw) {
		return CoverageUnknown(), false, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return CoverageUnknown(), false, nil
	}
	c, err := CoverageOf(v)
	if err != nil {
		return Coverage{}, false, err
	}
	return c, true, nil
}
