package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/alicebob/miniredis/v2"
	"github.com/bizflow/backend/internal/config"
	"github.com/bizflow/backend/internal/queue"
	"github.com/bizflow/backend/internal/services/billing"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRenewals struct {
	mock.Mock
}

func (m *MockRenewals) ProcessDue(ctx context.Context) (billing.BatchSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(billing.BatchSummary), args.Error(1)
}

func (m *MockRenewals) ProcessRetries(ctx context.Context) (billing.BatchSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(billing.BatchSummary), args.Error(1)
}

func (m *MockRenewals) NotifyUpcomingExpirations(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockStatus struct {
	mock.Mock
}

func (m *MockStatus) RunDailyStatusCheck(ctx context.Context) (billing.SweepSummary, error) {
	args := m.Called(ctx)
	return args.Get(0).(billing.SweepSummary), args.Error(1)
}

func newLease(t *testing.T) (*miniredis.Miniredis, *queue.Lease) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, queue.NewLease(client)
}

func TestRunnerDispatchesSweeps(t *testing.T) {
	renewals := new(MockRenewals)
	status := new(MockStatus)
	renewals.On("ProcessDue", mock.Anything).Return(billing.BatchSummary{Processed: 3, Successful: 3}, nil)
	renewals.On("ProcessRetries", mock.Anything).Return(billing.BatchSummary{Processed: 1, Failed: 1}, nil)
	renewals.On("NotifyUpcomingExpirations", mock.Anything).Return(2, nil)
	status.On("RunDailyStatusCheck", mock.Anything).Return(billing.SweepSummary{Checked: 5, Updated: 1}, nil)

	_, lease := newLease(t)
	runner := NewRunner(renewals, status, lease, time.Minute)
	ctx := context.Background()

	result, err := runner.Run(ctx, SweepRenewals)
	require.NoError(t, err)
	assert.Equal(t, billing.BatchSummary{Processed: 3, Successful: 3}, result)

	result, err = runner.Run(ctx, SweepRetries)
	require.NoError(t, err)
	assert.Equal(t, billing.BatchSummary{Processed: 1, Failed: 1}, result)

	result, err = runner.Run(ctx, SweepStatus)
	require.NoError(t, err)
	assert.Equal(t, billing.SweepSummary{Checked: 5, Updated: 1}, result)

	result, err = runner.Run(ctx, SweepTrialReminders)
	require.NoError(t, err)
	assert.Equal(t, TrialReminderResult{Sent: 2}, result)

	renewals.AssertExpectations(t)
	status.AssertExpectations(t)
}

func TestRunnerUnknownSweep(t *testing.T) {
	runner := NewRunner(new(MockRenewals), new(MockStatus), nil, 0)
	_, err := runner.Run(context.Background(), "refunds")
	assert.ErrorIs(t, err, ErrUnknownSweep)
}

func TestRunnerSkipsWhenLeaseHeld(t *testing.T) {
	renewals := new(MockRenewals)
	_, lease := newLease(t)
	runner := NewRunner(renewals, new(MockStatus), lease, time.Minute)
	ctx := context.Background()

	_, err := lease.Acquire(ctx, "sweep:"+SweepRenewals, time.Minute)
	require.NoError(t, err)

	_, err = runner.Run(ctx, SweepRenewals)
	assert.ErrorIs(t, err, queue.ErrLeaseHeld)
	renewals.AssertNotCalled(t, "ProcessDue", mock.Anything)
}

func TestRunnerReleasesLeaseOnError(t *testing.T) {
	renewals := new(MockRenewals)
	renewals.On("ProcessRetries", mock.Anything).Return(billing.BatchSummary{}, errors.New("db down"))
	mr, lease := newLease(t)
	runner := NewRunner(renewals, new(MockStatus), lease, time.Minute)

	_, err := runner.Run(context.Background(), SweepRetries)
	assert.Error(t, err)
	assert.False(t, mr.Exists("lease:sweep:"+SweepRetries))
}

func TestRunnerWithoutLocker(t *testing.T) {
	status := new(MockStatus)
	status.On("RunDailyStatusCheck", mock.Anything).Return(billing.SweepSummary{Checked: 1}, nil)
	runner := NewRunner(new(MockRenewals), status, nil, 0)

	_, err := runner.Run(context.Background(), SweepStatus)
	assert.NoError(t, err)
}

func TestNewSchedulerRegistersSweeps(t *testing.T) {
	cfg := config.SchedulerConfig{
		Enabled:           true,
		Timezone:          "America/Bogota",
		RenewalCron:       "0 2 * * *",
		RetryCron:         "0 */12 * * *",
		StatusCron:        "0 1 * * *",
		TrialReminderCron: "0 9 * * *",
		LeaseTTL:          time.Minute,
	}
	s, err := NewScheduler(cfg, NewRunner(new(MockRenewals), new(MockStatus), nil, 0))
	require.NoError(t, err)
	assert.ElementsMatch(t, Names(), s.Scheduled())

	s.Start()
	s.Stop()
}

func TestNewSchedulerSkipsEmptyCron(t *testing.T) {
	cfg := config.SchedulerConfig{RenewalCron: "0 2 * * *"}
	s, err := NewScheduler(cfg, NewRunner(new(MockRenewals), new(MockStatus), nil, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{SweepRenewals}, s.Scheduled())
}

func TestNewSchedulerRejectsBadInput(t *testing.T) {
	runner := NewRunner(new(MockRenewals), new(MockStatus), nil, 0)

	_, err := NewScheduler(config.SchedulerConfig{Timezone: "Mars/Olympus"}, runner)
	assert.Error(t, err)

	_, err = NewScheduler(config.SchedulerConfig{RenewalCron: "not a cron"}, runner)
	assert.Error(t, err)
}
