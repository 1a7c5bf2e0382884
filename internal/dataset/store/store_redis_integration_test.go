//go:build integration

package store_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vaxcov/internal/dataset/models"
	"vaxcov/internal/dataset/store"
	id "vaxcov/pkg/domain"
	"vaxcov/pkg/testutil/containers"
)

type CachedStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	inner *store.MemoryStore
	store *store.CachedStore
}

func TestCachedStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedStoreSuite))
}

func (s *CachedStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *CachedStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.inner = store.NewMemory()
	s.store = store.NewCached(s.inner, s.redis.Client, time.Minute, logger, nil)
}

func (s *CachedStoreSuite) seed(code string, year int, cov float64) {
	rec := &models.CountryYearRecord{
		CountryCode:   id.CountryCode(code),
		Year:          id.Year(year),
		GaviSupported: id.GaviSupported,
		VaxFdCov:      id.MustCoverage(cov),
		HPVIntDoses:   id.IntroIntroduced,
	}
	s.Require().NoError(s.store.UpsertRecords(context.Background(), []*models.CountryYearRecord{rec}))
}

func (s *CachedStoreSuite) TestReadThroughServesCachedRecord() {
	ctx := context.Background()
	s.seed("RWA", 2016, 89.1)

	key := models.Key{CountryCode: "RWA", Year: 2016}
	got, err := s.store.GetRecord(ctx, key)
	s.Require().NoError(err)
	cov, _ := got.VaxFdCov.Value()
	s.InDelta(89.1, cov, 1e-9)

	// Mutate the inner store behind the cache's back. The cached value must
	// keep being served until invalidation or TTL.
	stale := *got
	stale.VaxFdCov = id.MustCoverage(10)
	s.Require().NoError(s.inner.UpsertRecords(ctx, []*models.CountryYearRecord{&stale}))

	again, err := s.store.GetRecord(ctx, key)
	s.Require().NoError(err)
	cov, _ = again.VaxFdCov.Value()
	s.InDelta(89.1, cov, 1e-9)
}

func (s *CachedStoreSuite) TestUpsertInvalidatesRecordAndSeries() {
	ctx := context.Background()
	s.seed("RWA", 2016, 89.1)

	key := models.Key{CountryCode: "RWA", Year: 2016}
	_, err := s.store.GetRecord(ctx, key)
	s.Require().NoError(err)
	_, err = s.store.ListByCountry(ctx, "RWA")
	s.Require().NoError(err)

	s.seed("RWA", 2016, 93.4)

	got, err := s.store.GetRecord(ctx, key)
	s.Require().NoError(err)
	cov, _ := got.VaxFdCov.Value()
	s.InDelta(93.4, cov, 1e-9)

	series, err := s.store.ListByCountry(ctx, "RWA")
	s.Require().NoError(err)
	s.Require().Len(series, 1)
	cov, _ = series[0].VaxFdCov.Value()
	s.InDelta(93.4, cov, 1e-9)
}

func (s *CachedStoreSuite) TestEmptySeriesIsNotCached() {
	ctx := context.Background()

	series, err := s.store.ListByCountry(ctx, "ZWE")
	s.Require().NoError(err)
	s.Empty(series)

	// Write through the inner store only. A cached empty series would keep
	// masking the new record; an uncached one picks it up immediately.
	rec := &models.CountryYearRecord{
		CountryCode:   "ZWE",
		Year:          2020,
		GaviSupported: id.GaviSupported,
		VaxFdCov:      id.MustCoverage(41),
		HPVIntDoses:   id.IntroIntroduced,
	}
	s.Require().NoError(s.inner.UpsertRecords(ctx, []*models.CountryYearRecord{rec}))

	series, err = s.store.ListByCountry(ctx, "ZWE")
	s.Require().NoError(err)
	s.Len(series, 1)
}
