package domain

import (
	"strings"

	dErrors "vaxcov/pkg/domain-errors"
)

// CountryCode is an ISO 3166-1 alpha-3 country code.
// Invariant: exactly three ASCII letters, stored uppercase.
//
// Usage: construct via ParseCountryCode at trust boundaries; direct casting
// bypasses normalization and validation.
type CountryCode string

// ParseCountryCode normalizes and validates an ISO-3 code from external input.
// Normalization is trim + uppercase, matching how source files are keyed.
//
// Errors: returns CodeInvalidInput when the value is empty or not three ASCII
// letters; no other errors are expected.
func ParseCountryCode(s string) (CountryCode, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(s))
	if trimmed == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "country code cannot be empty")
	}
	if len(trimmed) != 3 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "country code must be three letters")
	}
	for _, r := range trimmed {
		if r < 'A' || r > 'Z' {
			return "", dErrors.New(dErrors.CodeInvalidInput, "country code must be three letters")
		}
	}
	return CountryCode(trimmed), nil
}

// String returns the string representation of the code.
func (c CountryCode) String() string {
	return string(c)
}

// countryNameAliases harmonizes source-specific country naming so name-keyed
// reference lists (market segments) match across datasets. Keys and values are
// already normalized with NormalizeCountryName.
var countryNameAliases = map[string]string{
	"north macedonia":                  "northern macedonia",
	"cabo verde":                       "cape verde",
	"micronesia (federated states of)": "micronesia",
}

// NormalizeCountryName lowercases and trims a country name for matching.
// Aliases map variant spellings onto the canonical reference form.
func NormalizeCountryName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := countryNameAliases[n]; ok {
		return alias
	}
	return n
}

// countryDisplayNames carries the stored spelling for each canonical
// reference form, keyed by NormalizeCountryName output.
var countryDisplayNames = map[string]string{
	"northern macedonia": "Northern Macedonia",
	"cape verde":         "Cape Verde",
	"micronesia":         "Micronesia",
}

// HarmonizeCountryName trims a display name and rewrites aliased spellings
// onto their canonical form. Names without an alias pass through trimmed.
func HarmonizeCountryName(name string) string {
	trimmed := strings.TrimSpace(name)
	if display, ok := countryDisplayNames[NormalizeCountryName(trimmed)]; ok {
		return display
	}
	return trimmed
}
