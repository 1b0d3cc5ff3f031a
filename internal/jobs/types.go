package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeApplyRules re-applies a rule set to every transaction.
	JobTypeApplyRules JobType = "apply_rules"
	// JobTypeImportSave saves the previewed files of an import session.
	JobTypeImportSave JobType = "import_save"
	// JobTypeReportExport exports monthly report totals to BigQuery.
	JobTypeReportExport JobType = "report_export"
	// JobTypeNotionSync pushes monthly report totals to Notion.
	JobTypeNotionSync JobType = "notion_sync"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

var (
	// ErrJobNotFound is returned for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueClosed is returned when publishing to a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// DefaultMaxRetries returns how often a failed job of type t is retried.
// Jobs that write to the finance backend are never retried automatically:
// a failed write may have been partly applied.
func DefaultMaxRetries(t JobType) int {
	switch t {
	case JobTypeReportExport, JobTypeNotionSync:
		return 2
	}
	return 0
}

// Job is one unit of background work.
type Job struct {
	// ID is the unique identifier for this job.
	ID string `json:"id"`

	// Type selects the handler.
	Type JobType `json:"type"`

	// Params are the handler inputs, such as a rule kind or session ID.
	Params map[string]string `json:"params,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Result is set by the handler on success.
	Result any `json:"result,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// New creates a pending job of type t with the default retry policy.
func New(t JobType, params map[string]string) *Job {
	return &Job{
		ID:         uuid.NewString(),
		Type:       t,
		Params:     params,
		Status:     JobStatusPending,
		CreatedAt:  time.Now().UTC(),
		MaxRetries: DefaultMaxRetries(t),
	}
}

// Param returns the value of a job parameter.
func (j *Job) Param(key string) string {
	return j.Params[key]
}

// Finished reports whether the job reached a terminal status.
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// Publish enqueues a job.
	Publish(ctx context.Context, job *Job) error

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

// JobHandler processes a job. It may set job.Result and should return an
// error if the job failed.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *Job) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*Job, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Type filters jobs by type.
	Type JobType

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
