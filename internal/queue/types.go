package queue

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"
)

// JobStatus represents the lifecycle state of a queued job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

const (
	DefaultMaxRetries = 3
	DefaultTTL        = 24 * time.Hour
)

// Job is a unit of background work stored in Redis
type Job struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	LastError  string          `json:"last_error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	RunAt      time.Time       `json:"run_at"`
}

// Decode unmarshals the job payload into v
func (j *Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// JobHandler processes a single job. Returning an error schedules a retry.
type JobHandler func(ctx context.Context, job *Job) error

// QueueStats represents statistics for a queue
type QueueStats struct {
	Queue   string `json:"queue"`
	Waiting int    `json:"waiting"`
	Delayed int    `json:"delayed"`
	Failed  int    `json:"failed"`
}

type enqueueOptions struct {
	jobID      string
	maxRetries int
}

// EnqueueOption modifies how a job is enqueued
type EnqueueOption func(*enqueueOptions)

// WithMaxRetries sets the maximum number of retries for a job
func WithMaxRetries(maxRetries int) EnqueueOption {
	return func(o *enqueueOptions) {
		o.maxRetries = maxRetries
	}
}

// WithJobID sets a custom job ID
func WithJobID(jobID string) EnqueueOption {
	return func(o *enqueueOptions) {
		o.jobID = jobID
	}
}

// calculateBackoff returns an exponential delay with ±20% jitter, capped at one hour
func calculateBackoff(retry int) time.Duration {
	base := 5.0
	max := 3600.0

	seconds := math.Min(max, base*math.Pow(2, float64(retry)))

	jitter := seconds * 0.2
	seconds = seconds - jitter + (rand.Float64() * jitter * 2)

	return time.Duration(seconds) * time.Second
}
