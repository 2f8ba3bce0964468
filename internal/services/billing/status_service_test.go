package billing

import (
	"context"
	"testing"

	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/repository"
	"github.com/bizflow/backend/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDailyStatusCheckWritesThrough(t *testing.T) {
	env := newTestEnv(t)
	svc := NewStatusService(env.repo, env.clock)

	active := func(daysAgo int) testutil.FixtureOption {
		return testutil.WithSubscription(func(s *models.Subscription) {
			due := env.now.AddDate(0, 0, -daysAgo)
			s.Status = models.SubscriptionStatusActive
			s.PaymentMethod = models.PaymentMethodTypeCash
			s.NextPaymentDate = &due
		})
	}

	current := testutil.SeedSubscription(t, env.db, env.now, active(-5))
	grace := testutil.SeedSubscription(t, env.db, env.now, active(3))
	overdue := testutil.SeedSubscription(t, env.db, env.now, active(12))
	gone := testutil.SeedSubscription(t, env.db, env.now, active(45))
	lifetime := testutil.SeedSubscription(t, env.db, env.now, active(45), testutil.WithBusiness(func(b *models.Business) {
		b.IsLifetime = true
	}))
	canceled := testutil.SeedSubscription(t, env.db, env.now, active(45), testutil.WithSubscription(func(s *models.Subscription) {
		s.Status = models.SubscriptionStatusCanceled
	}))

	summary, err := svc.RunDailyStatusCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Checked)
	assert.Equal(t, 3, summary.Updated)
	assert.Zero(t, summary.Errors)

	assert.Equal(t, models.SubscriptionStatusActive, env.reload(t, current.Subscription).Status)
	assert.Equal(t, models.SubscriptionStatusPending, env.reload(t, grace.Subscription).Status)
	assert.Equal(t, models.SubscriptionStatusOverdue, env.reload(t, overdue.Subscription).Status)
	assert.Equal(t, models.SubscriptionStatusActive, env.reload(t, lifetime.Subscription).Status)
	assert.Equal(t, models.SubscriptionStatusCanceled, env.reload(t, canceled.Subscription).Status)

	suspended := env.reload(t, gone.Subscription)
	assert.Equal(t, models.SubscriptionStatusSuspended, suspended.Status)
	assert.Equal(t, models.SuspensionReasonOverdue, suspended.SuspensionReason)
	require.NotNil(t, suspended.SuspendedAt)

	// a second run has nothing left to change
	summary, err = svc.RunDailyStatusCheck(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Updated)
}

func TestCheckAccess(t *testing.T) {
	env := newTestEnv(t)
	svc := NewStatusService(env.repo, env.clock)
	ctx := context.Background()

	trialEnd := env.now.AddDate(0, 0, 5)
	trial := testutil.SeedSubscription(t, env.db, trialEnd, testutil.WithBusiness(func(b *models.Business) {
		b.TrialEndDate = &trialEnd
	}))

	result, err := svc.CheckAccess(ctx, trial.Business.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrial, result.Status)
	assert.Equal(t, AccessFull, result.Access)
	assert.True(t, result.InTrial)
	assert.False(t, result.Updated)

	due := env.now.AddDate(0, 0, -10)
	late := testutil.SeedSubscription(t, env.db, due, testutil.WithSubscription(func(s *models.Subscription) {
		s.Status = models.SubscriptionStatusActive
		s.NextPaymentDate = &due
	}))

	result, err = svc.CheckAccess(ctx, late.Business.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusOverdue, result.Status)
	assert.Equal(t, AccessLimited, result.Access)
	assert.Equal(t, 10, result.DaysOverdue)
	assert.True(t, result.Updated)
	assert.Equal(t, models.SubscriptionStatusOverdue, env.reload(t, late.Subscription).Status)

	_, err = svc.CheckAccess(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPendingChargeHoldsStatusAtPending(t *testing.T) {
	env := newTestEnv(t)
	svc := NewStatusService(env.repo, env.clock)
	ctx := context.Background()

	due := env.now.AddDate(0, 0, -20)
	f := testutil.SeedSubscription(t, env.db, due, testutil.WithSubscription(func(s *models.Subscription) {
		s.Status = models.SubscriptionStatusActive
		s.NextPaymentDate = &due
	}))
	require.NoError(t, env.repo.SavePayment(ctx, models.NewPayment(f.Subscription, 49.90, "COP", "SUB-PEND", env.now)))

	result, err := svc.CheckAccess(ctx, f.Business.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPending, result.Status)
	assert.Equal(t, AccessFull, result.Access)

}
