// Package handler wires the dataset HTTP endpoints to the service.
package handler

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vaxcov/internal/audit"
	"vaxcov/internal/dataset/ingest"
	"vaxcov/internal/dataset/models"
	"vaxcov/internal/dataset/service"
	dErrors "vaxcov/pkg/domain-errors"
	"vaxcov/pkg/platform/httputil"
	"vaxcov/pkg/requestcontext"
)

// maxSourceBytes bounds one uploaded source file. The full WHO extract is
// under 2 MB; anything near this limit is not a country-year table.
const maxSourceBytes = 64 << 20

// Service defines the dataset operations the handler depends on.
type Service interface {
	RunIngest(ctx context.Context, src service.Sources) (*models.IngestJob, error)
	GetRecord(ctx context.Context, code, year string) (*models.CountryYearRecord, error)
	ListCountry(ctx context.Context, code string) ([]*models.CountryYearRecord, error)
	ListYear(ctx context.Context, year string) ([]*models.CountryYearRecord, error)
	Snapshot(ctx context.Context) ([]*models.CountryYearRecord, error)
	GetJob(ctx context.Context, jobID string) (*models.IngestJob, error)
	GetJobEvents(ctx context.Context, jobID string) ([]audit.Event, error)
}

// Handler serves the dataset API.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a dataset handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the dataset endpoints. requireAuth guards the mutating
// ingest route; read routes are open.
func (h *Handler) Register(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/datasets/ingest", h.HandleIngest)
	})
	r.Get("/datasets/jobs/{id}", h.HandleGetJob)
	r.Get("/datasets/jobs/{id}/events", h.HandleGetJobEvents)
	r.Get("/datasets/snapshot", h.HandleSnapshot)
	r.Get("/records/{code}/{year}", h.HandleGetRecord)
	r.Get("/records/{code}", h.HandleCountrySeries)
	r.Get("/years/{year}", h.HandleYearSlice)
}

// HandleIngest handles POST /datasets/ingest. The body is either multipart
// form data (files: hpv required, dtp_fd and dtp_ld optional) or a raw
// delimited HPV file. Query param format selects csv (default) or tsv.
func (h *Handler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	format, err := ingest.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	src, closeSrc, err := h.sources(r, format)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer closeSrc()

	job, err := h.service.RunIngest(ctx, src)
	if err != nil {
		h.logger.ErrorContext(ctx, "ingest request failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "ingest request served",
		"request_id", requestID,
		"job_id", job.ID,
		"rows_kept", job.Diagnostics.RowsKept,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromJob(job))
}

// sources assembles the ingest readers from the request. The returned closer
// releases any multipart file handles.
func (h *Handler) sources(r *http.Request, format ingest.Format) (service.Sources, func(), error) {
	src := service.Sources{Format: format}
	noop := func() {}

	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "multipart/form-data") {
		src.HPV = io.LimitReader(r.Body, maxSourceBytes)
		return src, noop, nil
	}

	if err := r.ParseMultipartForm(maxSourceBytes); err != nil {
		return src, noop, dErrors.New(dErrors.CodeBadRequest, "malformed multipart body")
	}

	var open []multipart.File
	closeAll := func() {
		for _, f := range open {
			_ = f.Close()
		}
	}

	file := func(field string) (io.Reader, error) {
		f, _, err := r.FormFile(field)
		if err == http.ErrMissingFile {
			return nil, nil
		}
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "unreadable file field "+field)
		}
		open = append(open, f)
		return f, nil
	}

	hpv, err := file("hpv")
	if err != nil {
		closeAll()
		return src, noop, err
	}
	if hpv == nil {
		closeAll()
		return src, noop, dErrors.New(dErrors.CodeBadRequest, "file field hpv is required")
	}
	src.HPV = hpv

	if src.DtpFd, err = file("dtp_fd"); err != nil {
		closeAll()
		return src, noop, err
	}
	if src.DtpLd, err = file("dtp_ld"); err != nil {
		closeAll()
		return src, noop, err
	}
	return src, closeAll, nil
}

// HandleGetRecord handles GET /records/{code}/{year}.
func (h *Handler) HandleGetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	record, err := h.service.GetRecord(ctx, chi.URLParam(r, "code"), chi.URLParam(r, "year"))
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			h.logger.ErrorContext(ctx, "record lookup failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

// HandleCountrySeries handles GET /records/{code}.
func (h *Handler) HandleCountrySeries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.service.ListCountry(ctx, chi.URLParam(r, "code"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, seriesResponse{Records: records, Count: len(records)})
}

// HandleYearSlice handles GET /years/{year}.
func (h *Handler) HandleYearSlice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.service.ListYear(ctx, chi.URLParam(r, "year"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, seriesResponse{Records: records, Count: len(records)})
}

// HandleSnapshot handles GET /datasets/snapshot, the full cleaned table.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, seriesResponse{Records: records, Count: len(records)})
}

// HandleGetJob handles GET /datasets/jobs/{id}.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromJob(job))
}

// HandleGetJobEvents handles GET /datasets/jobs/{id}/events, the audit trail
// recorded for one run.
func (h *Handler) HandleGetJobEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.GetJobEvents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events, Count: len(events)})
}
