package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizflow/backend/internal/config"
	"github.com/bizflow/backend/internal/queue"
	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// Scheduler decides when sweeps run. Start and Stop are owned by the process bootstrap.
type Scheduler struct {
	cron    *gocron.Scheduler
	runner  *Runner
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewScheduler registers the billing sweeps on their cron expressions
func NewScheduler(cfg config.SchedulerConfig, runner *Runner) (*Scheduler, error) {
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    gocron.NewScheduler(loc),
		runner:  runner,
		ctx:     ctx,
		cancel:  cancel,
		timeout: cfg.LeaseTTL,
	}
	s.cron.SingletonModeAll()

	schedule := map[string]string{
		SweepRenewals:       cfg.RenewalCron,
		SweepRetries:        cfg.RetryCron,
		SweepStatus:         cfg.StatusCron,
		SweepTrialReminders: cfg.TrialReminderCron,
	}
	for _, name := range Names() {
		expr := schedule[name]
		if expr == "" {
			log.Warn().Str("sweep", name).Msg("no cron expression, sweep not scheduled")
			continue
		}
		name := name
		if _, err := s.cron.Cron(expr).Tag(name).Do(func() { s.run(name) }); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s: %w", name, err)
		}
	}

	return s, nil
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	log.Info().Int("jobs", len(s.cron.Jobs())).Msg("starting billing scheduler")
	s.cron.StartAsync()
}

// Stop stops scheduling and cancels running sweeps
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	log.Info().Msg("billing scheduler stopped")
}

// Scheduled returns the tags of the registered jobs
func (s *Scheduler) Scheduled() []string {
	var names []string
	for _, job := range s.cron.Jobs() {
		names = append(names, job.Tags()...)
	}
	return names
}

func (s *Scheduler) run(name string) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if _, err := s.runner.Run(ctx, name); err != nil {
		if errors.Is(err, queue.ErrLeaseHeld) {
			log.Info().Str("sweep", name).Msg("sweep already running on another instance")
			return
		}
		log.Error().Err(err).Str("sweep", name).Msg("scheduled sweep failed")
	}
}
