package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-ledger/internal/api/middleware"
	"github.com/dvloznov/invoice-ledger/internal/infra/bigquery"
	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/jobs"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// SourceHTTP labels attachments received over HTTP.
const SourceHTTP = "http"

// DefaultMaxUploadBytes bounds request bodies when no limit is configured.
const DefaultMaxUploadBytes int64 = 25 << 20

// AttachmentProcessor runs one attachment through the pipeline synchronously.
type AttachmentProcessor interface {
	ProcessAttachment(ctx context.Context, att invoice.RawAttachment) pipeline.Outcome
}

// RunLister reads the processing run log.
type RunLister interface {
	ListRecentRuns(ctx context.Context, limit int) ([]*bigquery.RunRow, error)
}

// AttachmentsHandler accepts invoice attachments.
type AttachmentsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	processor AttachmentProcessor
	maxUpload int64
	log       zerolog.Logger
}

// NewAttachmentsHandler creates a new attachments handler. The publisher
// assigns job ids and persists jobs; store is only used to mark jobs that
// could not be enqueued.
func NewAttachmentsHandler(publisher jobs.Publisher, store jobs.JobStore, processor AttachmentProcessor, maxUpload int64, log zerolog.Logger) *AttachmentsHandler {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}
	return &AttachmentsHandler{
		publisher: publisher,
		store:     store,
		processor: processor,
		maxUpload: maxUpload,
		log:       log,
	}
}

// Routes mounts the attachment endpoints.
func (h *AttachmentsHandler) Routes(r chi.Router) {
	r.Post("/", h.UploadAttachment)
}

// UploadAttachment handles POST /api/attachments
//
// The attachment is either the "file" part of a multipart form or the raw
// request body named by ?filename=. With ?sync=true the attachment is
// processed inline and the outcome returned; otherwise a job is queued and
// 202 returned with its id.
func (h *AttachmentsHandler) UploadAttachment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	att, err := readAttachment(r, h.maxUpload)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Attachment too large")
			return
		}
		h.log.Warn().Err(err).Msg("Invalid attachment upload")
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync {
		out := h.processor.ProcessAttachment(ctx, att)
		status := http.StatusOK
		if !out.OK {
			status = http.StatusUnprocessableEntity
		}
		middleware.WriteJSON(w, status, out)
		return
	}

	job := jobs.NewProcessAttachmentJob(att)
	if err := h.publisher.PublishProcessAttachment(ctx, job); err != nil {
		h.log.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to publish job")
		if job.JobID != "" && h.store != nil {
			_ = h.store.UpdateJobStatus(context.WithoutCancel(ctx), job.JobID, jobs.JobStatusFailed, err.Error())
		}
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to queue attachment")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("filename", att.Filename).
		Int("bytes", len(att.Data)).
		Msg("Attachment queued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.JobID,
		"status": jobs.JobStatusPending,
	})
}

func readAttachment(r *http.Request, maxUpload int64) (invoice.RawAttachment, error) {
	att := invoice.RawAttachment{Source: SourceHTTP}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			return att, fmt.Errorf("readAttachment: parse form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return att, fmt.Errorf("readAttachment: missing file field: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return att, fmt.Errorf("readAttachment: read file: %w", err)
		}
		att.Data = data
		att.Filename = header.Filename
		att.ContentType = header.Header.Get("Content-Type")
		if name := r.FormValue("filename"); name != "" {
			att.Filename = name
		}
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return att, fmt.Errorf("readAttachment: read body: %w", err)
		}
		att.Data = data
		att.Filename = r.URL.Query().Get("filename")
		att.ContentType = r.Header.Get("Content-Type")
	}

	if len(att.Data) == 0 {
		return att, errors.New("readAttachment: empty attachment")
	}
	if att.ContentType == "" || att.ContentType == "application/octet-stream" {
		att.ContentType = http.DetectContentType(att.Data)
	}
	if source := strings.TrimSpace(r.URL.Query().Get("source")); source != "" {
		att.Source = source
	}
	return att, nil
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// Routes mounts the job endpoints.
func (h *JobsHandler) Routes(r chi.Router) {
	r.Get("/", h.ListJobs)
	r.Get("/{id}", h.GetJob)
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
		Source: query.Get("source"),
		Limit:  intParam(query.Get("limit"), 0),
		Offset: intParam(query.Get("offset"), 0),
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}

// DefaultRunsLimit is used when GET /api/runs has no limit.
const DefaultRunsLimit = 50

// RunsHandler exposes the processing run log.
type RunsHandler struct {
	runs RunLister
	log  zerolog.Logger
}

// NewRunsHandler creates a new runs handler. runs may be nil when the run
// log is not configured.
func NewRunsHandler(runs RunLister, log zerolog.Logger) *RunsHandler {
	return &RunsHandler{
		runs: runs,
		log:  log,
	}
}

// Routes mounts the run log endpoints.
func (h *RunsHandler) Routes(r chi.Router) {
	r.Get("/", h.ListRuns)
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Run log is not configured")
		return
	}

	limit := intParam(r.URL.Query().Get("limit"), DefaultRunsLimit)
	runs, err := h.runs.ListRecentRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
