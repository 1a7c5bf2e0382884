package handler

import (
	"time"

	"vaxcov/internal/audit"
	"vaxcov/internal/dataset/models"
)

// JobResponse is the HTTP shape of an ingest job.
type JobResponse struct {
	JobID       string             `json:"job_id"`
	Status      string             `json:"status"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  *time.Time         `json:"finished_at,omitempty"`
	Error       string             `json:"error,omitempty"`
	Diagnostics models.Diagnostics `json:"diagnostics"`
}

// FromJob converts a domain ingest job to its HTTP response.
func FromJob(job *models.IngestJob) *JobResponse {
	return &JobResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
		Error:       job.Error,
		Diagnostics: job.Diagnostics,
	}
}

// seriesResponse wraps the record collections served by the read endpoints.
type seriesResponse struct {
	Records []*models.CountryYearRecord `json:"records"`
	Count   int                         `json:"count"`
}

// eventsResponse wraps a job's audit trail.
type eventsResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}
