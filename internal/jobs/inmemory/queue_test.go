package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/jobs"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

func waitForStatus(t *testing.T, store *Store, id string, want jobs.JobStatus) *jobs.ProcessAttachmentJob {
	t.Helper()
	var got *jobs.ProcessAttachmentJob
	require.Eventually(t, func() bool {
		j, err := store.GetJob(context.Background(), id)
		if err != nil {
			return false
		}
		got = j
		return j.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return got
}

func TestQueue_JobLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(10, 2, store)
	defer q.Close()

	var mu sync.Mutex
	var seen []string
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessAttachmentJob) error {
		mu.Lock()
		seen = append(seen, string(job.Data))
		mu.Unlock()

		out := pipeline.Outcome{OK: true, Filename: job.Filename, Stage: pipeline.StageCommitted}
		if job.Filename == "bad.zip" {
			out = pipeline.Outcome{OK: false, Filename: job.Filename, Error: "unsupported content type", Stage: pipeline.StageExtractionFailed}
		}
		job.Outcome = &out
		return nil
	}))

	good := jobs.NewProcessAttachmentJob(invoice.RawAttachment{Data: []byte("png"), Filename: "a.png", ContentType: "image/png", Source: "http"})
	bad := jobs.NewProcessAttachmentJob(invoice.RawAttachment{Data: []byte("zip"), Filename: "bad.zip", ContentType: "application/zip"})
	require.NoError(t, q.PublishProcessAttachment(ctx, good))
	require.NoError(t, q.PublishProcessAttachment(ctx, bad))

	assert.NotEmpty(t, good.JobID)
	assert.Equal(t, 3, good.Size)

	done := waitForStatus(t, store, good.JobID, jobs.JobStatusCompleted)
	require.NotNil(t, done.Outcome)
	assert.True(t, done.Outcome.OK)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)
	assert.Nil(t, done.Data)

	failed := waitForStatus(t, store, bad.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "unsupported content type", failed.Error)

	mu.Lock()
	assert.ElementsMatch(t, []string{"png", "zip"}, seen)
	mu.Unlock()
}

func TestQueue_HandlerErrorIsNotRetried(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(1, 1, store)
	defer q.Close()

	var mu sync.Mutex
	calls := 0
	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessAttachmentJob) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("boom")
	}))

	job := jobs.NewProcessAttachmentJob(invoice.RawAttachment{Data: []byte("x"), Filename: "a.pdf"})
	require.NoError(t, q.PublishProcessAttachment(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Equal(t, "boom", failed.Error)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 1, calls)
	mu.Unlock()
}

func TestQueue_HandlerPanic(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	q := NewQueue(1, 1, store)
	defer q.Close()

	require.NoError(t, q.Start(ctx, func(ctx context.Context, job *jobs.ProcessAttachmentJob) error {
		panic("unexpected")
	}))

	job := jobs.NewProcessAttachmentJob(invoice.RawAttachment{Data: []byte("x"), Filename: "a.pdf"})
	require.NoError(t, q.PublishProcessAttachment(ctx, job))

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	assert.Contains(t, failed.Error, "panic")
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, 1, nil)
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())

	err := q.PublishProcessAttachment(context.Background(), &jobs.ProcessAttachmentJob{})
	assert.ErrorIs(t, err, ErrQueueClosed)

	err = q.Start(context.Background(), func(ctx context.Context, job *jobs.ProcessAttachmentJob) error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_PublishRespectsContext(t *testing.T) {
	q := NewQueue(0, 1, nil)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := q.PublishProcessAttachment(ctx, &jobs.ProcessAttachmentJob{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
