package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vaxcov/internal/dataset/models"
	id "vaxcov/pkg/domain"
)

const (
	recordKeyPrefix = "vaxcov:record:"
	seriesKeyPrefix = "vaxcov:series:"
)

// CacheMetrics receives cache request outcomes. Satisfied by the dataset
// metrics package.
type CacheMetrics interface {
	RecordCache(outcome string)
}

// CachedStore is a Redis read-through cache in front of a RecordStore.
// Cache misses and Redis outages fall through to the inner store; a broken
// cache degrades latency, never correctness. Upserts invalidate the touched
// keys so readers never see a stale record past the TTL.
type CachedStore struct {
	inner   RecordStore
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics CacheMetrics
}

// NewCached wraps inner with a Redis cache. ttl bounds staleness for entries
// written between invalidations. metrics may be nil.
func NewCached(inner RecordStore, client *redis.Client, ttl time.Duration, logger *slog.Logger, metrics CacheMetrics) *CachedStore {
	return &CachedStore{inner: inner, client: client, ttl: ttl, logger: logger, metrics: metrics}
}

func (s *CachedStore) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCache(outcome)
	}
}

func (s *CachedStore) UpsertRecords(ctx context.Context, records []*models.CountryYearRecord) error {
	if err := s.inner.UpsertRecords(ctx, records); err != nil {
		return err
	}

	keys := make([]string, 0, len(records)*2)
	seen := make(map[string]bool)
	for _, r := range records {
		keys = append(keys, recordKey(r.Key()))
		series := seriesKey(r.CountryCode)
		if !seen[series] {
			seen[series] = true
			keys = append(keys, series)
		}
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.ErrorContext(ctx, "cache invalidation failed", "error", err, "keys", len(keys))
	}
	return nil
}

func (s *CachedStore) GetRecord(ctx context.Context, key models.Key) (*models.CountryYearRecord, error) {
	cacheKey := recordKey(key)
	if payload, err := s.client.Get(ctx, cacheKey).Bytes(); err == nil {
		var record models.CountryYearRecord
		if err := json.Unmarshal(payload, &record); err == nil {
			s.observe("hit")
			return &record, nil
		}
		s.logger.ErrorContext(ctx, "corrupt cache entry dropped", "key", cacheKey)
		_ = s.client.Del(ctx, cacheKey).Err()
	} else if !errors.Is(err, redis.Nil) {
		s.logger.ErrorContext(ctx, "cache read failed", "error", err, "key", cacheKey)
	}
	s.observe("miss")

	record, err := s.inner.GetRecord(ctx, key)
	if err != nil {
		return nil, err
	}
	s.put(ctx, cacheKey, record)
	return record, nil
}

func (s *CachedStore) ListByCountry(ctx context.Context, code id.CountryCode) ([]*models.CountryYearRecord, error) {
	cacheKey := seriesKey(code)
	if payload, err := s.client.Get(ctx, cacheKey).Bytes(); err == nil {
		var records []*models.CountryYearRecord
		if err := json.Unmarshal(payload, &records); err == nil {
			s.observe("hit")
			return records, nil
		}
		s.logger.ErrorContext(ctx, "corrupt cache entry dropped", "key", cacheKey)
		_ = s.client.Del(ctx, cacheKey).Err()
	} else if !errors.Is(err, redis.Nil) {
		s.logger.ErrorContext(ctx, "cache read failed", "error", err, "key", cacheKey)
	}
	s.observe("miss")

	records, err := s.inner.ListByCountry(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		s.put(ctx, cacheKey, records)
	}
	return records, nil
}

// ListByYear is uncached; year slices are an analysis query, not a hot path.
func (s *CachedStore) ListByYear(ctx context.Context, year id.Year) ([]*models.CountryYearRecord, error) {
	return s.inner.ListByYear(ctx, year)
}

// ListAll is uncached; full-table snapshots are export traffic.
func (s *CachedStore) ListAll(ctx context.Context) ([]*models.CountryYearRecord, error) {
	return s.inner.ListAll(ctx)
}

func (s *CachedStore) put(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		s.logger.ErrorContext(ctx, "cache encode failed", "error", err, "key", key)
		return
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		s.logger.ErrorContext(ctx, "cache write failed", "error", err, "key", key)
	}
}

func recordKey(key models.Key) string {
	return fmt.Sprintf("%s%s:%d", recordKeyPrefix, key.CountryCode, key.Year)
}

func seriesKey(code id.CountryCode) string {
	return fmt.Sprintf("%s%s", seriesKeyPrefix, code)
}
