// Package store persists cleaned country-year records and ingest jobs.
//
// RecordStore implementations are pure I/O; the coding rules live upstream in
// the cleaner and resolver. Stores return pkg/platform/sentinel errors for
// infrastructure facts (ErrNotFound for absent keys) and leave translation to
// domain errors to the service layer.
package store

import (
	"context"

	"vaxcov/internal/dataset/models"
	id "vaxcov/pkg/domain"
)

// RecordStore persists the cleaned analysis dataset.
type RecordStore interface {
	// UpsertRecords replaces records by (country_code, year) key. Batches are
	// atomic: either every record lands or none do.
	UpsertRecords(ctx context.Context, records []*models.CountryYearRecord) error

	// GetRecord returns one observation or sentinel.ErrNotFound.
	GetRecord(ctx context.Context, key models.Key) (*models.CountryYearRecord, error)

	// ListByCountry returns a country's observations ordered by year.
	// An unknown country yields an empty slice, not an error.
	ListByCountry(ctx context.Context, code id.CountryCode) ([]*models.CountryYearRecord, error)

	// ListByYear returns one year's cross-country slice ordered by country code.
	ListByYear(ctx context.Context, year id.Year) ([]*models.CountryYearRecord, error)

	// ListAll returns the full cleaned table ordered by (country_code, year).
	ListAll(ctx context.Context) ([]*models.CountryYearRecord, error)
}

// JobStore tracks ingest job lifecycle.
type JobStore interface {
	CreateJob(ctx context.Context, job *models.IngestJob) error
	UpdateJob(ctx context.Context, job *models.IngestJob) error

	// GetJob returns a job or sentinel.ErrNotFound.
	GetJob(ctx context.Context, jobID string) (*models.IngestJob, error)
}

// Store is the full persistence surface the dataset service needs.
type Store interface {
	RecordStore
	JobStore
}
