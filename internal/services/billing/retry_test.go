package billing

import (
	"testing"
	"time"

	"github.com/bizflow/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRetryDelay(t *testing.T) {
	day := 24 * time.Hour
	assert.Equal(t, 2*day, NextRetryDelay(1))
	assert.Equal(t, 4*day, NextRetryDelay(2))
	assert.Equal(t, 8*day, NextRetryDelay(3))
	assert.Equal(t, 2*day, NextRetryDelay(0))
}

func TestRetryExhaustion(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sub := &models.Subscription{Status: models.SubscriptionStatusActive}
	p := models.NewPayment(sub, 49.90, "COP", "SUB-1", now)
	decline := Failure{Reason: "Payment declined by the gateway"}

	var attempts []int
	var retryable []bool

	outcome := MarkAttemptAsFailed(p, sub, decline, now)
	attempts = append(attempts, p.PaymentAttempts)
	retryable = append(retryable, CanRetry(p))
	assert.False(t, outcome.Terminal)
	assert.Equal(t, models.SubscriptionStatusOverdue, sub.Status)
	require.NotNil(t, sub.NextRetryDate)
	assert.Equal(t, now.Add(48*time.Hour), *sub.NextRetryDate)

	require.NoError(t, PrepareForRetry(p, sub, now))
	assert.Nil(t, sub.NextRetryDate)
	MarkAttemptAsFailed(p, sub, decline, now)
	attempts = append(attempts, p.PaymentAttempts)
	retryable = append(retryable, CanRetry(p))
	assert.Equal(t, now.Add(96*time.Hour), *sub.NextRetryDate)

	require.NoError(t, PrepareForRetry(p, sub, now))
	outcome = MarkAttemptAsFailed(p, sub, decline, now)
	attempts = append(attempts, p.PaymentAttempts)
	retryable = append(retryable, CanRetry(p))

	assert.Equal(t, []int{1, 2, 3}, attempts)
	assert.Equal(t, []bool{true, true, false}, retryable)
	assert.True(t, outcome.Terminal)
	assert.Equal(t, models.PaymentStatusFailed, p.Status)
	assert.Equal(t, models.SubscriptionStatusSuspended, sub.Status)
	assert.Equal(t, models.SuspensionReasonPaymentFailed, sub.SuspensionReason)
	assert.Nil(t, sub.NextRetryDate)
	assert.Len(t, p.FailureHistory, 3)
	assert.Equal(t, 0, RemainingAttempts(p))
	assert.ErrorIs(t, PrepareForRetry(p, sub, now), ErrRetryNotAllowed)
}

func TestRepeatedFailureWithoutPrepareCountsAsAttempt(t *testing.T) {
	now := time.Now().UTC()
	sub := &models.Subscription{}
	p := models.NewPayment(sub, 10, "COP", "SUB-2", now)

	MarkAttemptAsFailed(p, sub, Failure{Reason: "first"}, now)
	assert.Equal(t, 1, p.PaymentAttempts)
	MarkAttemptAsFailed(p, sub, Failure{Reason: "second"}, now)
	assert.Equal(t, 2, p.PaymentAttempts)
	assert.Equal(t, 2, sub.FailedPaymentCount)
	assert.Equal(t, "second", p.FailureReason)
}

func TestTerminalPaymentsAreNeverMutated(t *testing.T) {
	now := time.Now().UTC()
	sub := &models.Subscription{Status: models.SubscriptionStatusActive}
	p := models.NewPayment(sub, 10, "COP", "SUB-3", now)
	p.Status = models.PaymentStatusCompleted

	outcome := MarkAttemptAsFailed(p, sub, Failure{Reason: "late decline"}, now)
	assert.True(t, outcome.Ignored)
	assert.Equal(t, models.PaymentStatusCompleted, p.Status)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Empty(t, p.FailureHistory)
	assert.False(t, CanRetry(p))
}

func TestRemainingAttempts(t *testing.T) {
	p := &models.Payment{PaymentAttempts: 1, MaxAttempts: 3, Status: models.PaymentStatusPending}
	assert.Equal(t, 2, RemainingAttempts(p))
	p.PaymentAttempts = 5
	assert.Equal(t, 0, RemainingAttempts(p))
}
