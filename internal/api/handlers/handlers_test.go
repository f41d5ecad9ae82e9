package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/invoice-ledger/internal/ai"
	"github.com/dvloznov/invoice-ledger/internal/api"
	"github.com/dvloznov/invoice-ledger/internal/api/handlers"
	"github.com/dvloznov/invoice-ledger/internal/commit"
	"github.com/dvloznov/invoice-ledger/internal/extract"
	"github.com/dvloznov/invoice-ledger/internal/infra/bigquery"
	"github.com/dvloznov/invoice-ledger/internal/jobs"
	"github.com/dvloznov/invoice-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
	"github.com/dvloznov/invoice-ledger/internal/storage/memory"
)

const acmeJSON = `{"invoice_date":"2025-03-01","seller":"Acme","total":"100.00","tax":"19%","payment_method":"Cash"}`

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

// MockAIClient is a mock implementation of ai.Client for testing.
type MockAIClient struct {
	CompleteFunc func(ctx context.Context, req ai.Request) (string, error)
}

func (m *MockAIClient) Complete(ctx context.Context, req ai.Request) (string, error) {
	return m.CompleteFunc(ctx, req)
}

// MockTextExtractor is a mock implementation of extract.TextExtractor for testing.
type MockTextExtractor struct{}

func (m *MockTextExtractor) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	return "INVOICE", nil
}

// MockPublisher is a mock implementation of jobs.Publisher for testing.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, job *jobs.ProcessAttachmentJob) error
}

func (m *MockPublisher) PublishProcessAttachment(ctx context.Context, job *jobs.ProcessAttachmentJob) error {
	return m.PublishFunc(ctx, job)
}

func (m *MockPublisher) Close() error { return nil }

// MockRunLister is a mock implementation of handlers.RunLister for testing.
type MockRunLister struct {
	ListRecentRunsFunc func(ctx context.Context, limit int) ([]*bigquery.RunRow, error)
}

func (m *MockRunLister) ListRecentRuns(ctx context.Context, limit int) ([]*bigquery.RunRow, error) {
	return m.ListRecentRunsFunc(ctx, limit)
}

type server struct {
	store     *memory.Client
	jobStore  *inmemory.Store
	queue     *inmemory.Queue
	processor *pipeline.Processor
	handler   http.Handler
}

func newServer(t *testing.T, aiResponse string, runs handlers.RunLister) *server {
	t.Helper()

	s := &server{
		store:    memory.NewClient(),
		jobStore: inmemory.NewStore(),
	}
	s.queue = inmemory.NewQueue(10, 2, s.jobStore)

	client := &MockAIClient{CompleteFunc: func(ctx context.Context, req ai.Request) (string, error) {
		return aiResponse, nil
	}}
	fx := extract.NewFieldExtractor(client, &MockTextExtractor{}, "Northwind Traders")
	s.processor = pipeline.NewProcessor(fx, commit.NewCommitter(s.store))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.queue.Start(ctx, func(ctx context.Context, job *jobs.ProcessAttachmentJob) error {
		out := s.processor.ProcessAttachment(ctx, job.Attachment())
		job.Outcome = &out
		return nil
	}))
	t.Cleanup(func() {
		cancel()
		_ = s.queue.Close()
	})

	log := zerolog.Nop()
	s.handler = api.NewRouter(
		handlers.NewAttachmentsHandler(s.queue, s.jobStore, s.processor, 1<<20, log),
		handlers.NewJobsHandler(s.jobStore, log),
		handlers.NewRunsHandler(runs, log),
		5*time.Second,
		log,
	)
	return s
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, target, filename, contentType string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestUploadAttachment_SyncMultipart(t *testing.T) {
	s := newServer(t, acmeJSON, nil)

	rec := s.do(multipartRequest(t, "/api/attachments?sync=true", "Invoice #1.png", "image/png", pngBytes))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out pipeline.Outcome
	decode(t, rec, &out)
	assert.True(t, out.OK)
	assert.Equal(t, "Invoice_-1.png", out.Filename)
	assert.Equal(t, "2025.03", out.Folder)
	assert.Contains(t, s.store.Files(), "2025.03/Invoice_-1.png")
	assert.Contains(t, s.store.Files(), "2025.03/invoices.csv")
}

func TestUploadAttachment_SyncFailureIs422(t *testing.T) {
	s := newServer(t, `{"invoice_date":"2025-03-01","seller":"Acme"}`, nil)

	rec := s.do(multipartRequest(t, "/api/attachments?sync=true", "a.png", "image/png", pngBytes))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var out pipeline.Outcome
	decode(t, rec, &out)
	assert.False(t, out.OK)
	assert.Equal(t, "a.png", out.Filename)
	assert.Contains(t, out.Error, "total")
	assert.Empty(t, s.store.Files())
}

func TestUploadAttachment_AsyncRawBody(t *testing.T) {
	s := newServer(t, acmeJSON, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/attachments?filename=scan.png", bytes.NewReader(pngBytes))
	req.Header.Set("Content-Type", "image/png")
	rec := s.do(req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var accepted struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	decode(t, rec, &accepted)
	require.NotEmpty(t, accepted.JobID)
	assert.Equal(t, string(jobs.JobStatusPending), accepted.Status)

	var job jobs.ProcessAttachmentJob
	require.Eventually(t, func() bool {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+accepted.JobID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		job = jobs.ProcessAttachmentJob{}
		decode(t, rec, &job)
		return job.Status == jobs.JobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, job.Outcome)
	assert.True(t, job.Outcome.OK)
	assert.Equal(t, "scan.png", job.Filename)
	assert.Equal(t, "http", job.Source)
	assert.Contains(t, s.store.Files(), "2025.03/scan.png")
}

func TestUploadAttachment_LedgerFilenameRejected(t *testing.T) {
	s := newServer(t, acmeJSON, nil)

	rec := s.do(multipartRequest(t, "/api/attachments?sync=true", "ok.png", "image/png", pngBytes))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	ledgerBefore, _ := s.store.File("2025.03/invoices.csv")

	req := httptest.NewRequest(http.MethodPost, "/api/attachments?sync=true&filename=invoices.csv", bytes.NewReader(pngBytes))
	req.Header.Set("Content-Type", "image/png")
	rec = s.do(req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var out pipeline.Outcome
	decode(t, rec, &out)
	assert.False(t, out.OK)
	assert.Equal(t, "invoices.csv", out.Filename)

	ledgerAfter, _ := s.store.File("2025.03/invoices.csv")
	assert.Equal(t, ledgerBefore, ledgerAfter)
}

func TestUploadAttachment_DetectsContentType(t *testing.T) {
	s := newServer(t, acmeJSON, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/attachments?sync=true&filename=x", bytes.NewReader(pngBytes))
	rec := s.do(req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, s.store.Files(), "2025.03/x")
}

func TestUploadAttachment_BadRequests(t *testing.T) {
	s := newServer(t, acmeJSON, nil)

	t.Run("empty body", func(t *testing.T) {
		rec := s.do(httptest.NewRequest(http.MethodPost, "/api/attachments", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("multipart without file field", func(t *testing.T) {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/attachments", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := s.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := bytes.Repeat([]byte("a"), 2<<20)
		req := httptest.NewRequest(http.MethodPost, "/api/attachments?filename=big.png", bytes.NewReader(big))
		req.Header.Set("Content-Type", "image/png")

		rec := s.do(req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestUploadAttachment_PublishFailure(t *testing.T) {
	store := inmemory.NewStore()
	pub := &MockPublisher{PublishFunc: func(ctx context.Context, job *jobs.ProcessAttachmentJob) error {
		job.JobID = "job-1"
		job.Status = jobs.JobStatusPending
		require.NoError(t, store.SaveJob(ctx, job))
		return inmemory.ErrQueueClosed
	}}
	h := handlers.NewAttachmentsHandler(pub, store, nil, 0, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/?filename=a.png", bytes.NewReader(pngBytes))
	req.Header.Set("Content-Type", "image/png")
	rec := httptest.NewRecorder()
	h.UploadAttachment(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	job, err := store.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusFailed, job.Status)
}

func TestJobs_NotFoundAndList(t *testing.T) {
	s := newServer(t, acmeJSON, nil)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for _, name := range []string{"a.png", "b.png"} {
		req := httptest.NewRequest(http.MethodPost, "/api/attachments?filename="+name, bytes.NewReader(pngBytes))
		req.Header.Set("Content-Type", "image/png")
		require.Equal(t, http.StatusAccepted, s.do(req).Code)
	}

	var list struct {
		Jobs  []jobs.ProcessAttachmentJob `json:"jobs"`
		Count int                         `json:"count"`
	}
	require.Eventually(t, func() bool {
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/jobs?status=completed", nil))
		decode(t, rec, &list)
		return list.Count == 2
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/api/jobs?limit=1", nil))
	decode(t, rec, &list)
	assert.Equal(t, 1, list.Count)
}

func TestRuns(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		s := newServer(t, acmeJSON, nil)
		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("lists with limit", func(t *testing.T) {
		var gotLimit int
		runs := &MockRunLister{ListRecentRunsFunc: func(ctx context.Context, limit int) ([]*bigquery.RunRow, error) {
			gotLimit = limit
			return []*bigquery.RunRow{{RunID: "r1", Status: bigquery.RunStatusCommitted}}, nil
		}}
		s := newServer(t, acmeJSON, runs)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, gotLimit)
		assert.Contains(t, rec.Body.String(), `"RunID":"r1"`)
	})

	t.Run("default limit and errors", func(t *testing.T) {
		var gotLimit int
		runs := &MockRunLister{ListRecentRunsFunc: func(ctx context.Context, limit int) ([]*bigquery.RunRow, error) {
			gotLimit = limit
			return nil, errors.New("bq down")
		}}
		s := newServer(t, acmeJSON, runs)

		rec := s.do(httptest.NewRequest(http.MethodGet, "/api/runs", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, handlers.DefaultRunsLimit, gotLimit)
	})
}

func TestHealth(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/health", handlers.Health)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"ok"`))
}

func TestRouter_CORS(t *testing.T) {
	s := newServer(t, acmeJSON, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := s.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
