package domain

import (
	"strings"

	dErrors "vaxcov/pkg/domain-errors"
)

// IncomeClass is the World Bank income classification as coded in the source
// data: H / UM / LM / L (not the HIC/UMIC/LMIC/LIC labels).
type IncomeClass string

const (
	IncomeLow         IncomeClass = "L"
	IncomeLowerMiddle IncomeClass = "LM"
	IncomeUpperMiddle IncomeClass = "UM"
	IncomeHigh        IncomeClass = "H"
)

var validIncomeClasses = map[IncomeClass]bool{
	IncomeLow:         true,
	IncomeLowerMiddle: true,
	IncomeUpperMiddle: true,
	IncomeHigh:        true,
}

// incomeLabels maps the source coding onto the conventional labels used in
// reports and plots.
var incomeLabels = map[IncomeClass]string{
	IncomeLow:         "LIC",
	IncomeLowerMiddle: "LMIC",
	IncomeUpperMiddle: "UMIC",
	IncomeHigh:        "HIC",
}

// ParseIncomeClass constructs an IncomeClass from external input after trim +
// uppercase normalization.
func ParseIncomeClass(s string) (IncomeClass, error) {
	c := IncomeClass(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid income class")
	}
	return c, nil
}

// IsValid checks if the class is one of the supported enum values.
func (c IncomeClass) IsValid() bool {
	return validIncomeClasses[c]
}

// Label returns the conventional label (LIC/LMIC/UMIC/HIC), or the raw value
// when the class is unknown.
func (c IncomeClass) Label() string {
	if lbl, ok := incomeLabels[c]; ok {
		return lbl
	}
	return string(c)
}

// IsHigh reports whether the class is high income. Used for the hic_flag
// analysis column.
func (c IncomeClass) IsHigh() bool {
	return c == IncomeHigh
}

// String returns the string representation of the class.
func (c IncomeClass) String() string {
	return string(c)
}
