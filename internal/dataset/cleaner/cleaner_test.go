package cleaner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaxcov/internal/dataset/models"
	id "vaxcov/pkg/domain"
)

func validRaw() models.RawRecord {
	return models.RawRecord{
		CountryCode:       " rwa ",
		CountryName:       "Rwanda",
		Year:              "2020",
		IncomeClass:       "l",
		GaviSpec:          "initial_self_financing",
		GaviSupported:     "Supported by Gavi",
		MarketSegment:     "Gavi73",
		VaxTarget:         "165000",
		VaxDoses:          "151000",
		VaxFdCov:          "91.5",
		HPVIntDoses:       "vaccine introduced",
		HasVaxNatSchedule: "yes",
		FirstYearVaxIntro: "2011",
		TypePrimDelivVax:  "school-based",
		AgeAdmVax:         "12",
		SexAdmVax:         "female-only",
		CervCanCrRate2022: "29.4",
	}
}

func TestCleanRow_HappyPath(t *testing.T) {
	res := CleanRow(validRaw())
	require.Equal(t, DropNone, res.Drop)
	require.NotNil(t, res.Record)

	r := res.Record
	assert.Equal(t, id.CountryCode("RWA"), r.CountryCode)
	assert.Equal(t, id.Year(2020), r.Year)
	assert.Equal(t, id.IncomeLow, r.IncomeClass)
	assert.Equal(t, "LIC", r.IncomeClassLbl)
	assert.Equal(t, id.GaviSupported, r.GaviSupported)
	assert.Equal(t, id.RegimeClassicGavi, r.GaviRegime)
	assert.False(t, r.HicFlag)
	assert.Equal(t, id.SegmentGavi73, r.MarketSegment)
	require.NotNil(t, r.VaxPricePerDose)
	assert.Equal(t, 2.9, *r.VaxPricePerDose)

	cov, ok := r.VaxFdCov.Value()
	require.True(t, ok)
	assert.Equal(t, 91.5, cov)

	require.NotNil(t, r.FirstYearVaxIntro)
	assert.Equal(t, 2011, *r.FirstYearVaxIntro)
	require.NotNil(t, r.HasVaxNatSchedule)
	assert.True(t, *r.HasVaxNatSchedule)
	assert.Equal(t, id.SexFemaleOnly, r.SexAdmVax)
}

func TestCleanRow_DropReasons(t *testing.T) {
	t.Run("invalid country code", func(t *testing.T) {
		raw := validRaw()
		raw.CountryCode = "R1"
		assert.Equal(t, DropInvalidCountry, CleanRow(raw).Drop)
	})

	t.Run("year outside window", func(t *testing.T) {
		raw := validRaw()
		raw.Year = "2014"
		assert.Equal(t, DropOutOfWindow, CleanRow(raw).Drop)

		raw.Year = "2025"
		assert.Equal(t, DropOutOfWindow, CleanRow(raw).Drop)
	})

	t.Run("missing gavi_supported", func(t *testing.T) {
		for _, v := range []string{"", "  ", "N/A", "na"} {
			raw := validRaw()
			raw.GaviSupported = v
			assert.Equal(t, DropMissingGavi, CleanRow(raw).Drop, "value %q", v)
		}
	})

	t.Run("unparseable year is a row error", func(t *testing.T) {
		raw := validRaw()
		raw.Year = "around 2020"
		res := CleanRow(raw)
		assert.Equal(t, DropRowError, res.Drop)
		assert.Error(t, res.Err)
	})

	t.Run("out of range coverage is a row error", func(t *testing.T) {
		raw := validRaw()
		raw.VaxFdCov = "130"
		res := CleanRow(raw)
		assert.Equal(t, DropRowError, res.Drop)
	})
}

func TestCleanRow_ResolverIntegration(t *testing.T) {
	t.Run("pre introduction fills zero", func(t *testing.T) {
		raw := validRaw()
		raw.FirstYearVaxIntro = "2023"
		raw.Year = "2020"
		raw.VaxFdCov = "15"

		res := CleanRow(raw)
		require.Equal(t, DropNone, res.Drop)
		cov, ok := res.Record.VaxFdCov.Value()
		require.True(t, ok)
		assert.Equal(t, 0.0, cov)
		assert.Equal(t, id.IntroNotYet, res.Record.HPVIntDoses)
		assert.True(t, res.Rules.PreIntroZero)
	})

	t.Run("junk coverage post introduction fills zero", func(t *testing.T) {
		raw := validRaw()
		raw.VaxFdCov = "not reported"

		res := CleanRow(raw)
		require.Equal(t, DropNone, res.Drop)
		cov, ok := res.Record.VaxFdCov.Value()
		require.True(t, ok)
		assert.Equal(t, 0.0, cov)
		assert.True(t, res.Rules.PostIntroFill)
	})

	t.Run("unknown intro and missing coverage is N/A", func(t *testing.T) {
		raw := validRaw()
		raw.FirstYearVaxIntro = "n/a"
		raw.VaxFdCov = ""
		raw.HPVIntDoses = ""

		res := CleanRow(raw)
		require.Equal(t, DropNone, res.Drop)
		assert.True(t, res.Record.VaxFdCov.IsInsufficient())
		assert.Equal(t, id.IntroNoReport, res.Record.HPVIntDoses)
	})
}

func TestCleanRow_HarmonizesCountryNames(t *testing.T) {
	cases := map[string]string{
		"North Macedonia":                  "Northern Macedonia",
		" Cabo Verde ":                     "Cape Verde",
		"Micronesia (Federated States of)": "Micronesia",
		"Rwanda":                           "Rwanda",
	}
	for raw, want := range cases {
		row := validRaw()
		row.CountryName = raw

		res := CleanRow(row)
		require.Equal(t, DropNone, res.Drop)
		assert.Equal(t, want, res.Record.CountryName, "input %q", raw)
	}
}

func TestCleanRow_IncomeClass(t *testing.T) {
	raw := validRaw()
	raw.IncomeClass = " um "
	res := CleanRow(raw)
	require.Equal(t, DropNone, res.Drop)
	assert.Equal(t, id.IncomeUpperMiddle, res.Record.IncomeClass)
	assert.Equal(t, "UMIC", res.Record.IncomeClassLbl)

	raw.IncomeClass = "NA"
	res = CleanRow(raw)
	require.Equal(t, DropNone, res.Drop)
	assert.Empty(t, res.Record.IncomeClass, "missing class stays empty, not an error")
	assert.Empty(t, res.Record.IncomeClassLbl)
}

func TestCleanRow_PassThroughColumns(t *testing.T) {
	raw := validRaw()
	raw.IncomeClass = "n/a"
	raw.MarketSegment = "MICs9"
	raw.SexAdmVax = "girls 9-14"

	res := CleanRow(raw)
	require.Equal(t, DropNone, res.Drop)
	assert.Equal(t, id.IncomeClass(""), res.Record.IncomeClass)
	assert.Equal(t, "", res.Record.IncomeClassLbl)
	assert.Equal(t, id.MarketSegment("MICs9"), res.Record.MarketSegment, "unknown segment passes through")
	assert.Nil(t, res.Record.VaxPricePerDose, "unknown segment carries no price")
	assert.Equal(t, id.Sex("girls 9-14"), res.Record.SexAdmVax)
}

func TestFinalize_EverFlags(t *testing.T) {
	mk := func(code string, year int, regime id.GaviRegime, support id.GaviSupport) *models.CountryYearRecord {
		return &models.CountryYearRecord{
			CountryCode:   id.CountryCode(code),
			Year:          id.Year(year),
			GaviRegime:    regime,
			GaviSupported: support,
		}
	}

	records := []*models.CountryYearRecord{
		mk("RWA", 2015, id.RegimeClassicGavi, id.GaviSupported),
		mk("RWA", 2020, id.RegimeMICApproach, id.GaviSupported),
		mk("FRA", 2015, id.RegimeNeverGavi, id.GaviNotSupported),
		mk("FRA", 2020, id.RegimeNeverGavi, id.GaviNotSupported),
		mk("VNM", 2015, id.RegimeMICApproach, id.GaviSupported),
	}
	Finalize(records)

	assert.True(t, records[0].EverClassicGavi)
	assert.True(t, records[1].EverClassicGavi, "flag is country-level, not row-level")
	assert.False(t, records[2].EverClassicGavi)
	assert.False(t, records[4].EverClassicGavi, "MIC approach alone is not classic")

	assert.True(t, records[0].EverSupportedByGavi)
	assert.False(t, records[2].EverSupportedByGavi)
	assert.True(t, records[4].EverSupportedByGavi)
}

func TestTransitions(t *testing.T) {
	mk := func(code string, year int, regime id.GaviRegime) *models.CountryYearRecord {
		return &models.CountryYearRecord{
			CountryCode: id.CountryCode(code),
			Year:        id.Year(year),
			GaviRegime:  regime,
		}
	}

	// Deliberately unordered years: transitions must sort before diffing.
	records := []*models.CountryYearRecord{
		mk("RWA", 2020, id.RegimeMICApproach),
		mk("RWA", 2015, id.RegimeClassicGavi),
		mk("RWA", 2022, id.RegimeMICApproach),
		mk("FRA", 2015, id.RegimeNeverGavi),
		mk("FRA", 2020, id.RegimeNeverGavi),
	}

	got := Transitions(records)
	assert.Equal(t, map[id.CountryCode]int{"RWA": 1}, got)
}
