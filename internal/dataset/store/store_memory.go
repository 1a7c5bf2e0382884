package store

import (
	"context"
	"sort"
	"sync"

	"vaxcov/internal/dataset/models"
	id "vaxcov/pkg/domain"
	"vaxcov/pkg/platform/sentinel"
)

// MemoryStore is an in-memory Store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[models.Key]*models.CountryYearRecord
	jobs    map[string]*models.IngestJob
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		records: make(map[models.Key]*models.CountryYearRecord),
		jobs:    make(map[string]*models.IngestJob),
	}
}

func (s *MemoryStore) UpsertRecords(_ context.Context, records []*models.CountryYearRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		clone := *r
		s.records[r.Key()] = &clone
	}
	return nil
}

func (s *MemoryStore) GetRecord(_ context.Context, key models.Key) (*models.CountryYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (s *MemoryStore) ListByCountry(_ context.Context, code id.CountryCode) ([]*models.CountryYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CountryYearRecord, 0)
	for key, r := range s.records {
		if key.CountryCode == code {
			clone := *r
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

func (s *MemoryStore) ListByYear(_ context.Context, year id.Year) ([]*models.CountryYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CountryYearRecord, 0)
	for key, r := range s.records {
		if key.Year == year {
			clone := *r
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CountryCode < out[j].CountryCode })
	return out, nil
}

func (s *MemoryStore) ListAll(_ context.Context) ([]*models.CountryYearRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.CountryYearRecord, 0, len(s.records))
	for _, r := range s.records {
		clone := *r
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CountryCode != out[j].CountryCode {
			return out[i].CountryCode < out[j].CountryCode
		}
		return out[i].Year < out[j].Year
	})
	return out, nil
}

func (s *MemoryStore) CreateJob(_ context.Context, job *models.IngestJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return sentinel.ErrConflict
	}
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, job *models.IngestJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return sentinel.ErrNotFound
	}
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryStore) GetJob(_ context.Context, jobID string) (*models.IngestJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *job
	return &clone, nil
}
