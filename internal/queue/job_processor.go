package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// JobProcessor runs a pool of workers pulling jobs from registered queues
type JobProcessor struct {
	queue       *RedisQueue
	handlers    map[string]JobHandler
	workerCount int
	pollTimeout time.Duration
	wg          sync.WaitGroup
	cancel      context.CancelFunc
}

// NewJobProcessor creates a new JobProcessor
func NewJobProcessor(queue *RedisQueue, workerCount int) *JobProcessor {
	if workerCount < 1 {
		workerCount = 1
	}
	return &JobProcessor{
		queue:       queue,
		handlers:    make(map[string]JobHandler),
		workerCount: workerCount,
		pollTimeout: time.Second,
	}
}

// RegisterHandler registers a handler for a specific queue. Call before Start.
func (p *JobProcessor) RegisterHandler(queueName string, handler JobHandler) {
	p.handlers[queueName] = handler
}

// Start launches the workers. They run until Stop is called or ctx is canceled.
func (p *JobProcessor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	log.Info().Int("workers", p.workerCount).Msg("starting job processor")
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop signals the workers and waits for in-flight jobs to finish
func (p *JobProcessor) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.wg.Wait()
	log.Info().Msg("job processor stopped")
}

func (p *JobProcessor) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	queues := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		queues = append(queues, name)
	}
	if len(queues) == 0 {
		log.Warn().Int("worker", id).Msg("worker exiting: no queues registered")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		for _, queueName := range queues {
			job, err := p.queue.Dequeue(ctx, queueName, p.pollTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error().Err(err).Int("worker", id).Str("queue", queueName).Msg("error getting job from queue")
				time.Sleep(p.pollTimeout)
				continue
			}
			if job == nil {
				continue
			}

			if err := p.ProcessJob(ctx, job); err != nil {
				log.Error().Err(err).Int("worker", id).Str("job_id", job.ID).Msg("error processing job")
			}
		}
	}
}

// ProcessJob runs the handler for a dequeued job and records the outcome
func (p *JobProcessor) ProcessJob(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}

	handler, ok := p.handlers[job.Queue]
	if !ok {
		err := fmt.Errorf("no handler registered for queue: %s", job.Queue)
		if failErr := p.queue.Fail(ctx, job, err); failErr != nil {
			log.Error().Err(failErr).Str("job_id", job.ID).Msg("failed to mark job as failed")
		}
		return err
	}

	if err := handler(ctx, job); err != nil {
		if failErr := p.queue.Fail(ctx, job, err); failErr != nil {
			log.Error().Err(failErr).Str("job_id", job.ID).Msg("failed to mark job as failed")
		}
		return fmt.Errorf("job processing failed: %w", err)
	}

	return p.queue.Complete(ctx, job)
}
