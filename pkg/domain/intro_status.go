package domain

import "strings"

// IntroStatus is the HPV introduction / reporting status label
// (HPV_INT_DOSES in the codebook).
type IntroStatus string

const (
	IntroIntroduced IntroStatus = "vaccine introduced"
	IntroNotYet     IntroStatus = "Not_yet_introduced"
	IntroNoReport   IntroStatus = "no information report vax"
)

// legacyNotYet is the pre-harmonization spelling that older source extracts
// carry. It folds into IntroNoReport in the final dataset.
const legacyNotYet = "not yet introduced"

// NormalizeIntroStatus standardizes a raw HPV_INT_DOSES cell: missing markers
// become the empty status, the legacy "Not yet introduced" label is detected
// case-insensitively, and other labels pass through trimmed.
func NormalizeIntroStatus(raw string) IntroStatus {
	if IsMissing(raw) {
		return ""
	}
	return IntroStatus(strings.TrimSpace(raw))
}

// IsLegacyNotYet reports whether the status is the legacy spaced label.
func (s IntroStatus) IsLegacyNotYet() bool {
	return strings.ToLower(strings.TrimSpace(string(s))) == legacyNotYet
}

// Harmonize folds the legacy label into IntroNoReport. Label-only cleanup;
// numeric coverage logic is untouched.
func (s IntroStatus) Harmonize() IntroStatus {
	if s.IsLegacyNotYet() {
		return IntroNoReport
	}
	return s
}

// String returns the string representation of the status.
func (s IntroStatus) String() string {
	return string(s)
}
