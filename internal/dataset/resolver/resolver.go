// Package resolver enforces the HPV first-dose coverage coding rules.
//
// Every record leaves the resolver with vax_fd_cov either a concrete value in
// [0,100] or the explicit insufficient-information marker; raw missing values
// never survive. The rules mirror the dataset's harmonization order:
//
//	D: intro year missing, coverage missing     → status "no information report vax"
//	E: intro year known, status blank           → status "vaccine introduced"
//	A: intro year known, year before intro      → status "Not_yet_introduced", coverage 0
//	B: intro year known, year ≥ intro, cov miss → coverage 0
//	C: intro year missing, legacy "not yet" tag → coverage N/A
//
// followed by a label-only harmonization of the legacy "Not yet introduced"
// spelling. Resolution is idempotent: applying it to an already resolved
// record changes nothing.
package resolver

import (
	id "vaxcov/pkg/domain"
)

// Rules records which coding rules fired for a row. The ingest diagnostics
// aggregate these per job, matching the counts the cleaning run reports.
type Rules struct {
	PreIntroZero    bool // A
	PostIntroFill   bool // B
	UnknownIntroNA  bool // C
	NoReportLabel   bool // D
	IntroducedLabel bool // E
}

// Outcome is the resolved coverage and status for one row.
type Outcome struct {
	Coverage id.Coverage
	Status   id.IntroStatus
	Rules    Rules
}

// Resolve applies the coding rules to one observation.
//
// introYear is nil when the first introduction year is unknown. raw is the
// reported coverage after missing-marker standardization; junk text has
// already collapsed into the unknown marker, so "clean missing" and
// non-numeric strings behave identically (post-introduction both fill to
// zero).
func Resolve(introYear *int, year id.Year, raw id.Coverage, status id.IntroStatus) Outcome {
	out := Outcome{Coverage: raw, Status: status}

	if introYear == nil {
		if raw.IsInsufficient() {
			out.Status = id.IntroNoReport
			out.Rules.NoReportLabel = true
		}
		// The legacy-label test reads the status left by rule D, so a row
		// that D already relabeled never counts toward rule C as well.
		if out.Status.IsLegacyNotYet() {
			out.Coverage = id.CoverageUnknown()
			out.Rules.UnknownIntroNA = true
		}
		out.Status = out.Status.Harmonize()
		return out
	}

	if out.Status == "" {
		out.Status = id.IntroIntroduced
		out.Rules.IntroducedLabel = true
	}

	if id.Year(*introYear) > year {
		out.Status = id.IntroNotYet
		out.Coverage = id.MustCoverage(0)
		out.Rules.PreIntroZero = true
	} else if raw.IsInsufficient() {
		out.Coverage = id.MustCoverage(0)
		out.Rules.PostIntroFill = true
	}

	out.Status = out.Status.Harmonize()
	return out
}
