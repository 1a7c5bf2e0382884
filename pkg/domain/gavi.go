package domain

import (
	"strings"

	dErrors "vaxcov/pkg/domain-errors"
)

// GaviSupport is the Gavi support status as coded in the source data.
type GaviSupport string

const (
	GaviSupported    GaviSupport = "supported by gavi"
	GaviNotSupported GaviSupport = "not supported by gavi"
)

// ParseGaviSupport normalizes (trim + lowercase) and validates the support
// status. Blank values are rejected; rows without a support status are dropped
// during cleaning rather than defaulted.
func ParseGaviSupport(s string) (GaviSupport, error) {
	v := GaviSupport(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case GaviSupported, GaviNotSupported:
		return v, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid gavi support status")
}

// String returns the string representation of the status.
func (g GaviSupport) String() string {
	return string(g)
}

// micSpecTags are the gavi_spec labels that mark the MICs approach for
// middle-income countries that are former or never-Gavi.
var micSpecTags = map[string]bool{
	"mic_former_gavi": true,
	"mic_never_gavi":  true,
}

// GaviRegime is the derived, time-varying support regime used for analysis.
type GaviRegime string

const (
	RegimeClassicGavi GaviRegime = "Classic Gavi"
	RegimeMICApproach GaviRegime = "MICs approach / post-Gavi"
	RegimeNeverGavi   GaviRegime = "Never Gavi"
)

// ClassifyGaviRegime derives the regime from the support status and the
// gavi_spec eligibility label:
//
//   - not supported            → Never Gavi
//   - supported, MIC spec tag  → MICs approach / post-Gavi
//   - supported otherwise      → Classic Gavi
func ClassifyGaviRegime(support GaviSupport, spec string) GaviRegime {
	if support == GaviNotSupported {
		return RegimeNeverGavi
	}
	if micSpecTags[strings.ToLower(strings.TrimSpace(spec))] {
		return RegimeMICApproach
	}
	return RegimeClassicGavi
}

// String returns the string representation of the regime.
func (r GaviRegime) String() string {
	return string(r)
}
