package domain

import (
	"strconv"
	"strings"

	dErrors "vaxcov/pkg/domain-errors"
)

// Analysis window for the country-year dataset. Rows outside the window are
// dropped during cleaning, not rejected.
const (
	YearMin = 2015
	YearMax = 2024
)

// Year is a calendar year in a country-year observation.
type Year int

// ParseYear coerces a raw cell to a year. Source files carry years as
// integers, floats ("2019.0") or padded strings.
//
// Errors: returns CodeInvalidInput when the value is empty or non-numeric.
func ParseYear(s string) (Year, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "year cannot be empty")
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		return Year(n), nil
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || f != float64(int(f)) {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "year must be an integer")
	}
	return Year(int(f)), nil
}

// InWindow reports whether the year falls in the [YearMin, YearMax]
// analysis window.
func (y Year) InWindow() bool {
	return y >= YearMin && y <= YearMax
}

// Int returns the year as an int.
func (y Year) Int() int {
	return int(y)
}
