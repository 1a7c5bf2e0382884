package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "vaxcov/pkg/domain"
)

func intPtr(v int) *int { return &v }

func value(t *testing.T, c id.Coverage) float64 {
	t.Helper()
	v, ok := c.Value()
	require.True(t, ok, "expected a concrete coverage, got N/A")
	return v
}

func TestResolve_PreIntroductionIsZero(t *testing.T) {
	// first_year_vax_intro=2019, year=2017 → 0
	out := Resolve(intPtr(2019), 2017, id.CoverageUnknown(), "")

	assert.Equal(t, 0.0, value(t, out.Coverage))
	assert.Equal(t, id.IntroNotYet, out.Status)
	assert.True(t, out.Rules.PreIntroZero)
}

func TestResolve_PreIntroductionOverridesReportedCoverage(t *testing.T) {
	out := Resolve(intPtr(2019), 2017, id.MustCoverage(12), "")
	assert.Equal(t, 0.0, value(t, out.Coverage))
	assert.Equal(t, id.IntroNotYet, out.Status)
}

func TestResolve_PostIntroductionMissingFillsZero(t *testing.T) {
	// first_year_vax_intro=2019, year=2021, raw=missing → 0
	out := Resolve(intPtr(2019), 2021, id.CoverageUnknown(), "")

	assert.Equal(t, 0.0, value(t, out.Coverage))
	assert.True(t, out.Rules.PostIntroFill)
	assert.Equal(t, id.IntroIntroduced, out.Status, "blank status backfills to introduced")
	assert.True(t, out.Rules.IntroducedLabel)
}

func TestResolve_IntroductionYearEqualsYear(t *testing.T) {
	out := Resolve(intPtr(2021), 2021, id.CoverageUnknown(), "")
	assert.Equal(t, 0.0, value(t, out.Coverage), "year == intro year counts as introduced")
	assert.True(t, out.Rules.PostIntroFill)
}

func TestResolve_UnknownIntroMissingCoverageIsNA(t *testing.T) {
	// first_year_vax_intro=missing, year=2020, raw=missing → N/A
	out := Resolve(nil, 2020, id.CoverageUnknown(), "")

	assert.True(t, out.Coverage.IsInsufficient())
	assert.Equal(t, id.IntroNoReport, out.Status)
	assert.True(t, out.Rules.NoReportLabel)
}

func TestResolve_ReportedCoveragePassesThrough(t *testing.T) {
	// first_year_vax_intro=2015, year=2020, raw=63.4 → 63.4
	out := Resolve(intPtr(2015), 2020, id.MustCoverage(63.4), id.IntroIntroduced)

	assert.Equal(t, 63.4, value(t, out.Coverage))
	assert.Equal(t, id.IntroIntroduced, out.Status)
	assert.Equal(t, Rules{}, out.Rules)
}

func TestResolve_UnknownIntroWithReportedCoverageKeepsIt(t *testing.T) {
	out := Resolve(nil, 2020, id.MustCoverage(41.2), id.IntroIntroduced)
	assert.Equal(t, 41.2, value(t, out.Coverage))
}

func TestResolve_LegacyNotYetWithUnknownIntro(t *testing.T) {
	out := Resolve(nil, 2018, id.MustCoverage(7), "Not yet introduced")

	assert.True(t, out.Coverage.IsInsufficient(), "legacy tag with unknown intro voids coverage")
	assert.True(t, out.Rules.UnknownIntroNA)
	assert.Equal(t, id.IntroNoReport, out.Status, "legacy label harmonizes away")
}

func TestResolve_LegacyNotYetWithMissingCoverageCountsOnlyRuleD(t *testing.T) {
	// Unknown intro year, missing coverage, AND the legacy label: the
	// no-report relabel wins and the legacy-tag void must not also fire.
	out := Resolve(nil, 2018, id.CoverageUnknown(), "Not yet introduced")

	assert.True(t, out.Coverage.IsInsufficient())
	assert.Equal(t, id.IntroNoReport, out.Status)
	assert.True(t, out.Rules.NoReportLabel)
	assert.False(t, out.Rules.UnknownIntroNA, "rule C must not double-count a row rule D relabeled")
}

func TestResolve_Idempotent(t *testing.T) {
	cases := []struct {
		name      string
		introYear *int
		year      id.Year
		raw       id.Coverage
		status    id.IntroStatus
	}{
		{"pre intro", intPtr(2019), 2017, id.CoverageUnknown(), ""},
		{"post intro fill", intPtr(2019), 2021, id.CoverageUnknown(), ""},
		{"unknown intro", nil, 2020, id.CoverageUnknown(), ""},
		{"pass through", intPtr(2015), 2020, id.MustCoverage(63.4), id.IntroIntroduced},
		{"legacy not yet", nil, 2018, id.CoverageUnknown(), "Not yet introduced"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := Resolve(tc.introYear, tc.year, tc.raw, tc.status)
			second := Resolve(tc.introYear, tc.year, first.Coverage, first.Status)
			assert.Equal(t, first.Coverage, second.Coverage)
			assert.Equal(t, first.Status, second.Status)
		})
	}
}
