package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrJobNotFound is returned when a job's details have expired or never existed
var ErrJobNotFound = errors.New("job not found")

// Redis key prefixes
const (
	queuePrefix   = "queue:"
	delayedPrefix = "delayed:"
	failedPrefix  = "failed:"
	jobPrefix     = "jobs:"
)

// RedisQueue is a Redis-backed job queue. Ready job IDs live in a list, delayed
// ones in a sorted set scored by run time, and job details in a hash per job.
type RedisQueue struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisQueue creates a new RedisQueue
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, now: time.Now}
}

// Enqueue adds a job to the queue for immediate processing
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...EnqueueOption) (string, error) {
	return q.EnqueueIn(ctx, queueName, payload, 0, opts...)
}

// EnqueueIn adds a job to the queue to run after a delay
func (q *RedisQueue) EnqueueIn(ctx context.Context, queueName string, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error) {
	options := &enqueueOptions{maxRetries: DefaultMaxRetries}
	for _, opt := range opts {
		opt(options)
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job payload: %w", err)
	}

	now := q.now()
	job := &Job{
		ID:         options.jobID,
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: options.maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      now.Add(delay),
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	if err := q.save(ctx, job); err != nil {
		return "", err
	}

	if delay > 0 {
		err = q.client.ZAdd(ctx, delayedPrefix+queueName, &redis.Z{
			Score:  float64(job.RunAt.Unix()),
			Member: job.ID,
		}).Err()
		if err != nil {
			return "", fmt.Errorf("failed to add job to delayed queue: %w", err)
		}
		return job.ID, nil
	}

	if err := q.client.LPush(ctx, queuePrefix+queueName, job.ID).Err(); err != nil {
		return "", fmt.Errorf("failed to add job to queue: %w", err)
	}
	return job.ID, nil
}

// Dequeue pops the next ready job, waiting up to timeout. Returns nil when the queue is empty.
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string, timeout time.Duration) (*Job, error) {
	q.moveReadyDelayedJobs(ctx, queueName)

	result, err := q.client.BRPop(ctx, timeout, queuePrefix+queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	job, err := q.Get(ctx, result[1])
	if err != nil {
		return nil, err
	}

	job.Status = JobStatusProcessing
	job.UpdatedAt = q.now()
	if err := q.save(ctx, job); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to update job status")
	}

	return job, nil
}

// Get returns a job's details
func (q *RedisQueue) Get(ctx context.Context, jobID string) (*Job, error) {
	data, err := q.client.HGet(ctx, jobPrefix+jobID, "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job details: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Complete marks a job as completed
func (q *RedisQueue) Complete(ctx context.Context, job *Job) error {
	job.Status = JobStatusCompleted
	job.UpdatedAt = q.now()
	return q.save(ctx, job)
}

// Fail records a processing error and schedules a retry with backoff, or parks the
// job on the failed list once its retries are exhausted.
func (q *RedisQueue) Fail(ctx context.Context, job *Job, jobErr error) error {
	if jobErr != nil {
		job.LastError = jobErr.Error()
	}
	job.UpdatedAt = q.now()

	if job.RetryCount < job.MaxRetries {
		return q.Retry(ctx, job, calculateBackoff(job.RetryCount+1))
	}

	job.Status = JobStatusFailed
	if err := q.save(ctx, job); err != nil {
		return err
	}
	if err := q.client.LPush(ctx, failedPrefix+job.Queue, job.ID).Err(); err != nil {
		return fmt.Errorf("failed to add job to failed list: %w", err)
	}
	return nil
}

// Retry puts a job back on the delayed queue
func (q *RedisQueue) Retry(ctx context.Context, job *Job, delay time.Duration) error {
	job.Status = JobStatusPending
	job.RetryCount++
	job.UpdatedAt = q.now()
	job.RunAt = job.UpdatedAt.Add(delay)

	if err := q.save(ctx, job); err != nil {
		return err
	}

	err := q.client.ZAdd(ctx, delayedPrefix+job.Queue, &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: job.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add job to delayed queue: %w", err)
	}
	return nil
}

// Stats returns queue depth counters
func (q *RedisQueue) Stats(ctx context.Context, queueName string) (*QueueStats, error) {
	stats := &QueueStats{Queue: queueName}

	waiting, err := q.client.LLen(ctx, queuePrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting count: %w", err)
	}
	stats.Waiting = int(waiting)

	delayed, err := q.client.ZCard(ctx, delayedPrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get delayed count: %w", err)
	}
	stats.Delayed = int(delayed)

	failed, err := q.client.LLen(ctx, failedPrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get failed count: %w", err)
	}
	stats.Failed = int(failed)

	return stats, nil
}

// moveReadyDelayedJobs moves delayed jobs whose run time has passed onto the ready list.
// ZREM decides which instance moves a job when several poll the same queue.
func (q *RedisQueue) moveReadyDelayedJobs(ctx context.Context, queueName string) {
	ids, err := q.client.ZRangeByScore(ctx, delayedPrefix+queueName, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(q.now().Unix(), 10),
	}).Result()
	if err != nil {
		log.Error().Err(err).Str("queue", queueName).Msg("error getting ready delayed jobs")
		return
	}

	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, delayedPrefix+queueName, id).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, queuePrefix+queueName, id).Err(); err != nil {
			log.Error().Err(err).Str("job_id", id).Msg("error moving delayed job to main queue")
		}
	}
}

func (q *RedisQueue) save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.HSet(ctx, jobPrefix+job.ID, "data", data).Err(); err != nil {
		return fmt.Errorf("failed to store job details: %w", err)
	}
	if err := q.client.Expire(ctx, jobPrefix+job.ID, DefaultTTL).Err(); err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("failed to set TTL on job")
	}
	return nil
}
