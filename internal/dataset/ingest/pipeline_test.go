package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaxcov/internal/dataset/models"
	id "vaxcov/pkg/domain"
)

const hpvCSV = `country_code,country_name,year,income_class,gavi_spec,gavi_supported,vax_fd_cov,first_year_vax_intro,HPV_INT_DOSES
RWA,Rwanda,2016,L,initial_self_financing,supported by gavi,89.1,2011,vaccine introduced
RWA,Rwanda,2020,L,initial_self_financing,supported by gavi,,2011,vaccine introduced
rwa,Rwanda,2020,L,initial_self_financing,supported by gavi,77.0,2011,vaccine introduced
FRA,France,2020,H,,not supported by gavi,33.1,2007,vaccine introduced
BWA,Botswana,2013,UM,mic_never_gavi,supported by gavi,55.0,2015,
BWA,Botswana,2020,UM,mic_never_gavi,supported by gavi,61.2,2015,
TKM,Turkmenistan,2020,UM,,n/a,12.0,2016,vaccine introduced
SOM,Somalia,2020,L,,supported by gavi,,,
`

func decodeHPV(t *testing.T) []models.RawRecord {
	t.Helper()
	rows, err := ReadRecords(strings.NewReader(hpvCSV), FormatCSV)
	require.NoError(t, err)
	return rows
}

func TestReadRecords(t *testing.T) {
	rows := decodeHPV(t)
	require.Len(t, rows, 8)
	assert.Equal(t, "RWA", rows[0].CountryCode)
	assert.Equal(t, "89.1", rows[0].VaxFdCov)
	assert.Equal(t, "2011", rows[0].FirstYearVaxIntro)
}

func TestReadRecords_HeaderAliases(t *testing.T) {
	csv := "CODE,NAME,YEAR,gavi_supported,COVERAGE,first_year_vax_intro,HPV_INT_DOSES\n" +
		"UGA,Uganda,2019,supported by gavi,44.0,2015,vaccine introduced\n"
	rows, err := ReadRecords(strings.NewReader(csv), FormatCSV)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "UGA", rows[0].CountryCode)
	assert.Equal(t, "Uganda", rows[0].CountryName)
	assert.Equal(t, "44.0", rows[0].VaxFdCov)
}

func TestReadRecords_MissingColumns(t *testing.T) {
	csv := "country_code,year\nRWA,2020\n"
	_, err := ReadRecords(strings.NewReader(csv), FormatCSV)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "gavi_supported")
}

func TestReadRecords_TSV(t *testing.T) {
	tsv := "country_code\tyear\tgavi_supported\tvax_fd_cov\tfirst_year_vax_intro\tHPV_INT_DOSES\n" +
		"KEN\t2021\tsupported by gavi\t52.5\t2019\tvaccine introduced\n"
	rows, err := ReadRecords(strings.NewReader(tsv), FormatTSV)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "KEN", rows[0].CountryCode)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("TSV")
	require.NoError(t, err)
	assert.Equal(t, FormatTSV, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestPipelineRun(t *testing.T) {
	out, err := New(4).Run(context.Background(), Input{HPV: decodeHPV(t)})
	require.NoError(t, err)

	d := out.Diagnostics
	assert.Equal(t, 8, d.RowsRead)
	// Dropped: duplicate RWA/2020, pre-window BWA/2013 (out of window),
	// TKM (missing gavi_supported).
	assert.Equal(t, 5, d.RowsKept)
	assert.Equal(t, 1, d.DroppedDuplicateKey)
	assert.Equal(t, 1, d.DroppedOutOfWindow)
	assert.Equal(t, 1, d.DroppedMissingGavi)
	assert.Equal(t, 4, d.UniqueCountries)

	// RWA/2020 has a known intro year and missing coverage: fills to zero.
	assert.Equal(t, 1, d.RulePostIntroFill)
	// SOM has no intro year and no coverage: N/A with no-report label.
	assert.Equal(t, 1, d.RuleNoReportLabel)
	// BWA/2020 has an intro year and a blank status: backfills to introduced.
	assert.Equal(t, 1, d.RuleIntroducedLabel)

	byKey := make(map[models.Key]*models.CountryYearRecord)
	for _, r := range out.Records {
		byKey[r.Key()] = r
	}

	rwa := byKey[models.Key{CountryCode: "RWA", Year: 2020}]
	require.NotNil(t, rwa)
	cov, ok := rwa.VaxFdCov.Value()
	require.True(t, ok)
	assert.Equal(t, 0.0, cov, "duplicate keeps first occurrence, which filled to zero")

	som := byKey[models.Key{CountryCode: "SOM", Year: 2020}]
	require.NotNil(t, som)
	assert.True(t, som.VaxFdCov.IsInsufficient())
	assert.Equal(t, id.IntroNoReport, som.HPVIntDoses)

	bwa := byKey[models.Key{CountryCode: "BWA", Year: 2020}]
	require.NotNil(t, bwa)
	assert.Equal(t, id.RegimeMICApproach, bwa.GaviRegime)
	assert.False(t, bwa.EverClassicGavi)
	assert.True(t, bwa.EverSupportedByGavi)

	fra := byKey[models.Key{CountryCode: "FRA", Year: 2020}]
	require.NotNil(t, fra)
	assert.True(t, fra.HicFlag)
	assert.Equal(t, id.RegimeNeverGavi, fra.GaviRegime)

	require.Len(t, out.Drops, 3)
	reasons := make(map[string]int)
	for _, drop := range out.Drops {
		reasons[drop.Reason]++
	}
	assert.Equal(t, 1, reasons["out_of_window"])
	assert.Equal(t, 1, reasons["missing_gavi_supported"])
	assert.Equal(t, 1, reasons["duplicate_key"])

	require.Len(t, out.Mutations, 3)
	rules := make(map[string]models.Mutation)
	for _, m := range out.Mutations {
		rules[m.Rule] = m
	}
	fill := rules[RulePostIntroFill]
	assert.Equal(t, models.Key{CountryCode: "RWA", Year: 2020}, fill.Key)
	assert.Equal(t, "vax_fd_cov", fill.Column)
	assert.Equal(t, "0", fill.NewValue)
	assert.Contains(t, rules, RuleNoReportLabel)
	assert.Contains(t, rules, RuleIntroducedLabel)
}

func TestPipelineRun_DtpMerge(t *testing.T) {
	dtpFd := []models.DtpRow{
		{CountryCode: "RWA", Year: "2016", DataSource: "OFFICIAL", Coverage: "98"},
		{CountryCode: "RWA", Year: "2020", DataSource: "OFFICIAL", Coverage: "96"},
		{CountryCode: "ZZZ", Year: "2020", DataSource: "OFFICIAL", Coverage: "50"},
	}
	dtpLd := []models.DtpRow{
		{CountryCode: "RWA", Year: "2020", DataSource: "OFFICIAL", Coverage: "91"},
	}

	out, err := New(2).Run(context.Background(), Input{HPV: decodeHPV(t), DtpFd: dtpFd, DtpLd: dtpLd})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Diagnostics.DtpFdMatched)
	assert.Equal(t, 1, out.Diagnostics.DtpLdMatched)

	var rwa2020 *models.CountryYearRecord
	for _, r := range out.Records {
		if r.Key() == (models.Key{CountryCode: "RWA", Year: 2020}) {
			rwa2020 = r
		}
	}
	require.NotNil(t, rwa2020)
	assert.Equal(t, "OFFICIAL", rwa2020.DtpDataSource)
	require.NotNil(t, rwa2020.DtpFdCov)
	assert.Equal(t, 96.0, *rwa2020.DtpFdCov)
	require.NotNil(t, rwa2020.DtpLdCov)
	assert.Equal(t, 91.0, *rwa2020.DtpLdCov)
}

func TestPipelineRun_DuplicateDtpKeyFails(t *testing.T) {
	dtpFd := []models.DtpRow{
		{CountryCode: "RWA", Year: "2020", DataSource: "OFFICIAL", Coverage: "96"},
		{CountryCode: "RWA", Year: "2020", DataSource: "ADMIN", Coverage: "90"},
	}
	_, err := New(2).Run(context.Background(), Input{HPV: decodeHPV(t), DtpFd: dtpFd})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "many-to-one")
}
