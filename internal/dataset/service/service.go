// Package service orchestrates the dataset module: ingest runs over source
// files and query operations over the cleaned records.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vaxcov/internal/audit"
	"vaxcov/internal/dataset/ingest"
	"vaxcov/internal/dataset/metrics"
	"vaxcov/internal/dataset/models"
	"vaxcov/internal/dataset/store"
	id "vaxcov/pkg/domain"
	dErrors "vaxcov/pkg/domain-errors"
	"vaxcov/pkg/platform/sentinel"
	"vaxcov/pkg/requestcontext"
)

// AuditTrail accepts events without blocking the caller.
type AuditTrail interface {
	Enqueue(event audit.Event)
}

// EventLog reads back the persisted audit trail for one ingest job.
type EventLog interface {
	ListByJob(ctx context.Context, jobID string) ([]audit.Event, error)
}

// Service runs ingest jobs and serves record queries.
type Service struct {
	store    store.Store
	pipeline *ingest.Pipeline
	logger   *slog.Logger
	metrics  *metrics.Metrics
	audit    AuditTrail
	events   EventLog
	tracer   trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditTrail(trail AuditTrail) Option {
	return func(s *Service) {
		s.audit = trail
	}
}

func WithEventLog(log EventLog) Option {
	return func(s *Service) {
		s.events = log
	}
}

// New constructs a Service.
func New(st store.Store, pipeline *ingest.Pipeline, opts ...Option) *Service {
	s := &Service{
		store:    st,
		pipeline: pipeline,
		logger:   slog.Default(),
		tracer:   otel.Tracer("vaxcov/dataset"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources is the raw material of one ingest run. DtpFd and DtpLd are optional
// comparator files.
type Sources struct {
	HPV    io.Reader
	Format ingest.Format
	DtpFd  io.Reader
	DtpLd  io.Reader
}

// RunIngest executes one cleaning run: decode, clean and resolve, persist,
// audit. The returned job carries the run diagnostics.
func (s *Service) RunIngest(ctx context.Context, src Sources) (*models.IngestJob, error) {
	start := time.Now()
	jobID := uuid.NewString()
	ctx = requestcontext.WithJobID(ctx, jobID)

	ctx, span := s.tracer.Start(ctx, "dataset.ingest",
		trace.WithAttributes(attribute.String("job_id", jobID)))
	defer span.End()

	job := &models.IngestJob{
		ID:        jobID,
		Status:    models.JobRunning,
		StartedAt: start.UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create ingest job")
	}
	s.emit(ctx, audit.Event{Action: audit.EventIngestStarted})

	out, err := s.runPipeline(ctx, src)
	if err != nil {
		span.RecordError(err)
		return nil, s.failJob(ctx, job, err)
	}

	if err := s.store.UpsertRecords(ctx, out.Records); err != nil {
		err = dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist cleaned records")
		span.RecordError(err)
		return nil, s.failJob(ctx, job, err)
	}

	finished := time.Now().UTC()
	job.Status = models.JobCompleted
	job.FinishedAt = &finished
	job.Diagnostics = out.Diagnostics
	if err := s.store.UpdateJob(ctx, job); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to finalize ingest job")
	}

	s.auditRun(ctx, out)
	s.recordIngestMetrics(start, out, string(models.JobCompleted))

	s.logger.InfoContext(ctx, "ingest completed",
		"job_id", jobID,
		"rows_read", out.Diagnostics.RowsRead,
		"rows_kept", out.Diagnostics.RowsKept,
		"unique_countries", out.Diagnostics.UniqueCountries,
		"duration_ms", time.Since(start).Milliseconds())
	return job, nil
}

func (s *Service) runPipeline(ctx context.Context, src Sources) (ingest.Output, error) {
	ctx, span := s.tracer.Start(ctx, "dataset.decode")
	input, err := s.decode(src)
	span.End()
	if err != nil {
		return ingest.Output{}, err
	}

	ctx, span = s.tracer.Start(ctx, "dataset.clean",
		trace.WithAttributes(attribute.Int("rows", len(input.HPV))))
	defer span.End()
	return s.pipeline.Run(ctx, input)
}

func (s *Service) decode(src Sources) (ingest.Input, error) {
	var input ingest.Input

	if src.HPV == nil {
		return input, dErrors.New(dErrors.CodeBadRequest, "source file is required")
	}
	hpv, err := ingest.ReadRecords(src.HPV, src.Format)
	if err != nil {
		return input, err
	}
	input.HPV = hpv

	if src.DtpFd != nil {
		rows, err := ingest.ReadDtp(src.DtpFd, src.Format, false)
		if err != nil {
			return input, err
		}
		input.DtpFd = rows
	}
	if src.DtpLd != nil {
		rows, err := ingest.ReadDtp(src.DtpLd, src.Format, true)
		if err != nil {
			return input, err
		}
		input.DtpLd = rows
	}
	return input, nil
}

// failJob marks the job failed and passes the cause through unchanged so the
// handler can map its code.
func (s *Service) failJob(ctx context.Context, job *models.IngestJob, cause error) error {
	finished := time.Now().UTC()
	job.Status = models.JobFailed
	job.FinishedAt = &finished
	job.Error = cause.Error()

	if err := s.store.UpdateJob(ctx, job); err != nil {
		s.logger.ErrorContext(ctx, "failed to mark ingest job failed",
			"job_id", job.ID, "error", err)
	}
	s.emit(ctx, audit.Event{
		Action: audit.EventIngestFailed,
		Reason: cause.Error(),
	})
	if s.metrics != nil {
		s.metrics.RecordJob(string(models.JobFailed))
	}
	s.logger.ErrorContext(ctx, "ingest failed", "job_id", job.ID, "error", cause)
	return cause
}

// auditRun turns pipeline output into the audit trail: one compliance summary
// plus sampled row-level detail.
func (s *Service) auditRun(ctx context.Context, out ingest.Output) {
	d := out.Diagnostics
	s.emit(ctx, audit.Event{
		Action: audit.EventIngestCompleted,
		Reason: fmt.Sprintf("rows_read=%d rows_kept=%d unique_countries=%d",
			d.RowsRead, d.RowsKept, d.UniqueCountries),
	})

	for _, m := range out.Mutations {
		s.emit(ctx, audit.Event{
			Action:   mutationAction(m),
			Country:  m.Key.CountryCode,
			Year:     int(m.Key.Year),
			Column:   m.Column,
			Rule:     m.Rule,
			OldValue: m.OldValue,
			NewValue: m.NewValue,
		})
	}
	for _, drop := range out.Drops {
		s.emit(ctx, audit.Event{
			Action:  audit.EventRowDropped,
			Country: id.CountryCode(drop.CountryCode),
			Reason:  drop.Reason,
		})
	}
}

func mutationAction(m models.Mutation) audit.AuditEvent {
	switch m.Rule {
	case ingest.RuleUnknownIntroNA:
		return audit.EventCoverageVoided
	case ingest.RuleNoReportLabel, ingest.RuleIntroducedLabel:
		return audit.EventStatusRelabeled
	default:
		return audit.EventCoverageFilled
	}
}

func (s *Service) recordIngestMetrics(start time.Time, out ingest.Output, status string) {
	if s.metrics == nil {
		return
	}
	d := out.Diagnostics
	s.metrics.RecordJob(status)
	s.metrics.RowsRead.Add(float64(d.RowsRead))
	s.metrics.RowsKept.Add(float64(d.RowsKept))
	s.metrics.RecordDrop("out_of_window", d.DroppedOutOfWindow)
	s.metrics.RecordDrop("missing_gavi_supported", d.DroppedMissingGavi)
	s.metrics.RecordDrop("invalid_country_code", d.DroppedInvalidCountry)
	s.metrics.RecordDrop("duplicate_key", d.DroppedDuplicateKey)
	s.metrics.RecordDrop("row_error", d.DroppedRowErrors)
	s.metrics.RecordRule(ingest.RulePreIntroZero, d.RulePreIntroZero)
	s.metrics.RecordRule(ingest.RulePostIntroFill, d.RulePostIntroFill)
	s.metrics.RecordRule(ingest.RuleUnknownIntroNA, d.RuleUnknownIntroNA)
	s.metrics.RecordRule(ingest.RuleNoReportLabel, d.RuleNoReportLabel)
	s.metrics.RecordRule(ingest.RuleIntroducedLabel, d.RuleIntroducedLabel)
	s.metrics.ObserveIngest(start)
}

// emit stamps the event from the request context and hands it to the trail.
// The job id set by RunIngest rides along so call sites never repeat it.
func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if event.JobID == "" {
		event.JobID = requestcontext.JobID(ctx)
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.Timestamp = requestcontext.Now(ctx).UTC()
	s.audit.Enqueue(event)
}

// GetRecord returns one country-year observation.
func (s *Service) GetRecord(ctx context.Context, rawCode, rawYear string) (*models.CountryYearRecord, error) {
	start := time.Now()

	code, err := id.ParseCountryCode(rawCode)
	if err != nil {
		return nil, err
	}
	year, err := id.ParseYear(rawYear)
	if err != nil {
		return nil, err
	}

	record, err := s.store.GetRecord(ctx, models.Key{CountryCode: code, Year: year})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load record")
	}

	if s.metrics != nil {
		s.metrics.ObserveLookup(start)
	}
	s.emit(ctx, audit.Event{
		Action:  audit.EventRecordServed,
		Country: code,
		Year:    int(year),
	})
	return record, nil
}

// ListCountry returns a country's observations across the analysis window.
func (s *Service) ListCountry(ctx context.Context, rawCode string) ([]*models.CountryYearRecord, error) {
	code, err := id.ParseCountryCode(rawCode)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListByCountry(ctx, code)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list country records")
	}
	return records, nil
}

// ListYear returns the cross-country slice for one year.
func (s *Service) ListYear(ctx context.Context, rawYear string) ([]*models.CountryYearRecord, error) {
	year, err := id.ParseYear(rawYear)
	if err != nil {
		return nil, err
	}
	if !year.InWindow() {
		return nil, dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("year must be within [%d,%d]", id.YearMin, id.YearMax))
	}
	records, err := s.store.ListByYear(ctx, year)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list year records")
	}
	return records, nil
}

// Snapshot returns the full cleaned table ordered by country and year.
func (s *Service) Snapshot(ctx context.Context) ([]*models.CountryYearRecord, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load dataset snapshot")
	}
	return records, nil
}

// GetJob returns an ingest job with its diagnostics.
func (s *Service) GetJob(ctx context.Context, jobID string) (*models.IngestJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "job id must be a uuid")
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "ingest job not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load ingest job")
	}
	return job, nil
}

// GetJobEvents returns the persisted audit trail for one ingest job, in the
// order the events occurred. The job must exist; a completed run with a
// fully sampled-out trail yields an empty list, not a 404.
func (s *Service) GetJobEvents(ctx context.Context, jobID string) ([]audit.Event, error) {
	if s.events == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "job event log is not configured")
	}
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	events, err := s.events.ListByJob(ctx, jobID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list job events")
	}
	return events, nil
}
