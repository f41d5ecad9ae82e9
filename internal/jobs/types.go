package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/invoice-ledger/internal/invoice"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessAttachment runs one attachment through the pipeline.
	JobTypeProcessAttachment JobType = "process_attachment"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the attachment was committed.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the handler failed or the outcome was a failure.
	JobStatusFailed JobStatus = "failed"
)

// ErrJobNotFound is returned by stores for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

// ProcessAttachmentJob represents one queued attachment.
type ProcessAttachmentJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Source      string `json:"source,omitempty"`
	Size        int    `json:"size"`

	// Data is the attachment content. Stores drop it; only the queue carries it.
	Data []byte `json:"-"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job finished (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Outcome is the pipeline result, set once the job has run.
	Outcome *pipeline.Outcome `json:"outcome,omitempty"`
}

// NewProcessAttachmentJob creates a pending job for att.
func NewProcessAttachmentJob(att invoice.RawAttachment) *ProcessAttachmentJob {
	return &ProcessAttachmentJob{
		Filename:    att.Filename,
		ContentType: att.ContentType,
		Source:      att.Source,
		Size:        len(att.Data),
		Data:        att.Data,
	}
}

// Attachment rebuilds the attachment carried by the job.
func (j *ProcessAttachmentJob) Attachment() invoice.RawAttachment {
	return invoice.RawAttachment{
		Data:        j.Data,
		Filename:    j.Filename,
		ContentType: j.ContentType,
		Source:      j.Source,
	}
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ProcessAttachmentJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ProcessAttachmentJob) GetType() JobType {
	return JobTypeProcessAttachment
}

// GetStatus implements the Job interface.
func (j *ProcessAttachmentJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishProcessAttachment enqueues an attachment job.
	PublishProcessAttachment(ctx context.Context, job *ProcessAttachmentJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job and fills in job.Outcome. A returned error marks
// the job failed; failed jobs are not retried.
type JobHandler func(ctx context.Context, job *ProcessAttachmentJob) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ProcessAttachmentJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ProcessAttachmentJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessAttachmentJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Status filters jobs by status.
	Status JobStatus

	// Source filters jobs by attachment source.
	Source string

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
