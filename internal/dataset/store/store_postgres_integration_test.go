//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaxcov/internal/dataset/models"
	"vaxcov/internal/dataset/store"
	id "vaxcov/pkg/domain"
	"vaxcov/pkg/platform/sentinel"
	txcontext "vaxcov/pkg/platform/tx"
	"vaxcov/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "country_year_records", "ingest_jobs")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) TestRecordRoundTrip() {
	ctx := context.Background()
	intro := 2011
	target := 410000.0

	rec := &models.CountryYearRecord{
		CountryCode:         "RWA",
		CountryName:         "Rwanda",
		Year:                2016,
		IncomeClass:         id.IncomeLow,
		IncomeClassLbl:      "LIC",
		GaviSupported:       id.GaviSupported,
		MarketSegment:       "Gavi73",
		VaxTarget:           &target,
		VaxFdCov:            id.MustCoverage(89.1),
		HPVIntDoses:         id.IntroIntroduced,
		FirstYearVaxIntro:   &intro,
		GaviRegime:          id.RegimeClassicGavi,
		EverClassicGavi:     true,
		EverSupportedByGavi: true,
	}
	s.Require().NoError(s.store.UpsertRecords(ctx, []*models.CountryYearRecord{rec}))

	got, err := s.store.GetRecord(ctx, models.Key{CountryCode: "RWA", Year: 2016})
	s.Require().NoError(err)
	s.Equal(rec.CountryName, got.CountryName)
	s.Equal(rec.GaviRegime, got.GaviRegime)
	s.Require().NotNil(got.FirstYearVaxIntro)
	s.Equal(2011, *got.FirstYearVaxIntro)
	cov, ok := got.VaxFdCov.Value()
	s.Require().True(ok)
	s.InDelta(89.1, cov, 1e-9)
}

func (s *PostgresStoreSuite) TestInsufficientCoverageSurvivesAsMarker() {
	ctx := context.Background()

	rec := &models.CountryYearRecord{
		CountryCode:   "SOM",
		Year:          2020,
		GaviSupported: id.GaviSupported,
		VaxFdCov:      id.CoverageUnknown(),
		HPVIntDoses:   id.IntroNoReport,
	}
	s.Require().NoError(s.store.UpsertRecords(ctx, []*models.CountryYearRecord{rec}))

	got, err := s.store.GetRecord(ctx, models.Key{CountryCode: "SOM", Year: 2020})
	s.Require().NoError(err)
	s.True(got.VaxFdCov.IsInsufficient())
	s.Equal(id.IntroNoReport, got.HPVIntDoses)
}

func (s *PostgresStoreSuite) TestUpsertReplacesByKey() {
	ctx := context.Background()

	first := &models.CountryYearRecord{
		CountryCode:   "KEN",
		Year:          2021,
		GaviSupported: id.GaviSupported,
		VaxFdCov:      id.MustCoverage(52.5),
		HPVIntDoses:   id.IntroIntroduced,
	}
	s.Require().NoError(s.store.UpsertRecords(ctx, []*models.CountryYearRecord{first}))

	second := *first
	second.VaxFdCov = id.MustCoverage(58.0)
	s.Require().NoError(s.store.UpsertRecords(ctx, []*models.CountryYearRecord{&second}))

	got, err := s.store.GetRecord(ctx, models.Key{CountryCode: "KEN", Year: 2021})
	s.Require().NoError(err)
	cov, _ := got.VaxFdCov.Value()
	s.InDelta(58.0, cov, 1e-9)
}

func (s *PostgresStoreSuite) TestListByCountryOrdersByYear() {
	ctx := context.Background()

	var batch []*models.CountryYearRecord
	for _, year := range []id.Year{2020, 2016, 2018} {
		batch = append(batch, &models.CountryYearRecord{
			CountryCode:   "RWA",
			Year:          year,
			GaviSupported: id.GaviSupported,
			VaxFdCov:      id.MustCoverage(50),
			HPVIntDoses:   id.IntroIntroduced,
		})
	}
	s.Require().NoError(s.store.UpsertRecords(ctx, batch))

	series, err := s.store.ListByCountry(ctx, "RWA")
	s.Require().NoError(err)
	s.Require().Len(series, 3)
	s.Equal(id.Year(2016), series[0].Year)
	s.Equal(id.Year(2018), series[1].Year)
	s.Equal(id.Year(2020), series[2].Year)

	s.Empty(s.mustList(ctx, "ZWE"))
}

func (s *PostgresStoreSuite) mustList(ctx context.Context, code id.CountryCode) []*models.CountryYearRecord {
	series, err := s.store.ListByCountry(ctx, code)
	s.Require().NoError(err)
	return series
}

func (s *PostgresStoreSuite) TestRollbackDiscardsBatchInCallerTransaction() {
	ctx := context.Background()

	dbtx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	rec := &models.CountryYearRecord{
		CountryCode:   "TZA",
		Year:          2019,
		GaviSupported: id.GaviSupported,
		VaxFdCov:      id.MustCoverage(40),
		HPVIntDoses:   id.IntroIntroduced,
	}
	s.Require().NoError(s.store.UpsertRecords(txcontext.WithTx(ctx, dbtx), []*models.CountryYearRecord{rec}))
	s.Require().NoError(dbtx.Rollback())

	_, err = s.store.GetRecord(ctx, models.Key{CountryCode: "TZA", Year: 2019})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestJobLifecycle() {
	ctx := context.Background()

	job := &models.IngestJob{
		ID:        "0a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d",
		Status:    models.JobRunning,
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.store.CreateJob(ctx, job))

	finished := time.Now().UTC().Truncate(time.Microsecond)
	job.Status = models.JobCompleted
	job.FinishedAt = &finished
	job.Diagnostics = models.Diagnostics{RowsRead: 10, RowsKept: 8, RulePostIntroFill: 2}
	s.Require().NoError(s.store.UpdateJob(ctx, job))

	got, err := s.store.GetJob(ctx, job.ID)
	s.Require().NoError(err)
	s.Equal(models.JobCompleted, got.Status)
	s.Equal(8, got.Diagnostics.RowsKept)
	s.Equal(2, got.Diagnostics.RulePostIntroFill)
	s.Require().NotNil(got.FinishedAt)

	_, err = s.store.GetJob(ctx, "1f2e3d4c-5b6a-4978-8695-a4b3c2d1e0f9")
	s.ErrorIs(err, sentinel.ErrNotFound)

	err = s.store.UpdateJob(ctx, &models.IngestJob{ID: "1f2e3d4c-5b6a-4978-8695-a4b3c2d1e0f9"})
	s.ErrorIs(err, sentinel.ErrNotFound)
}
