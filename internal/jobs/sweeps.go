package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizflow/backend/internal/metrics"
	"github.com/bizflow/backend/internal/services/billing"
	"github.com/rs/zerolog/log"
)

// Sweep names, shared by the scheduler, the admin API and billingctl
const (
	SweepRenewals       = "renewals"
	SweepRetries        = "retries"
	SweepStatus         = "status-sweep"
	SweepTrialReminders = "trial-reminders"
)

// ErrUnknownSweep is returned when Run is asked for a sweep that does not exist
var ErrUnknownSweep = errors.New("unknown sweep")

// Renewals is the part of the renewal orchestrator the sweeps drive
type Renewals interface {
	ProcessDue(ctx context.Context) (billing.BatchSummary, error)
	ProcessRetries(ctx context.Context) (billing.BatchSummary, error)
	NotifyUpcomingExpirations(ctx context.Context) (int, error)
}

// StatusChecker runs the daily status recomputation
type StatusChecker interface {
	RunDailyStatusCheck(ctx context.Context) (billing.SweepSummary, error)
}

// Locker runs fn while holding a cross-instance lease
type Locker interface {
	Run(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error
}

// TrialReminderResult reports how many reminders a sweep sent
type TrialReminderResult struct {
	Sent int `json:"sent"`
}

// Runner executes named sweeps. Every sweep is idempotent, so the lease only
// keeps instances from duplicating work.
type Runner struct {
	renewals Renewals
	status   StatusChecker
	locker   Locker
	leaseTTL time.Duration
}

// NewRunner creates a new Runner. locker may be nil when Redis is not available.
func NewRunner(renewals Renewals, status StatusChecker, locker Locker, leaseTTL time.Duration) *Runner {
	if leaseTTL <= 0 {
		leaseTTL = 30 * time.Minute
	}
	return &Runner{renewals: renewals, status: status, locker: locker, leaseTTL: leaseTTL}
}

// Names lists the sweeps in the order they are registered
func Names() []string {
	return []string{SweepRenewals, SweepRetries, SweepStatus, SweepTrialReminders}
}

// Run executes the named sweep and returns its summary
func (r *Runner) Run(ctx context.Context, name string) (interface{}, error) {
	fn, err := r.sweep(name)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	defer metrics.ObserveJobRun(name, started)

	var result interface{}
	run := func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	}

	if r.locker == nil {
		err = run(ctx)
	} else {
		err = r.locker.Run(ctx, "sweep:"+name, r.leaseTTL, run)
	}
	if err != nil {
		return nil, fmt.Errorf("%s sweep: %w", name, err)
	}

	log.Info().Str("sweep", name).Dur("took", time.Since(started)).Interface("summary", result).Msg("sweep finished")
	return result, nil
}

func (r *Runner) sweep(name string) (func(ctx context.Context) (interface{}, error), error) {
	switch name {
	case SweepRenewals:
		return func(ctx context.Context) (interface{}, error) { return r.renewals.ProcessDue(ctx) }, nil
	case SweepRetries:
		return func(ctx context.Context) (interface{}, error) { return r.renewals.ProcessRetries(ctx) }, nil
	case SweepStatus:
		return func(ctx context.Context) (interface{}, error) { return r.status.RunDailyStatusCheck(ctx) }, nil
	case SweepTrialReminders:
		return func(ctx context.Context) (interface{}, error) {
			sent, err := r.renewals.NotifyUpcomingExpirations(ctx)
			return TrialReminderResult{Sent: sent}, err
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSweep, name)
}
