package billing

import (
	"testing"
	"time"

	"github.com/bizflow/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriodEnd(t *testing.T) {
	start := time.Date(2026, 1, 31, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		plan     models.Plan
		expected time.Time
	}{
		{"monthly clamps to month end", models.Plan{Duration: 1, DurationType: models.DurationTypeMonthly}, time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)},
		{"quarterly", models.Plan{Duration: 3, DurationType: models.DurationTypeMonthly}, time.Date(2026, 4, 30, 10, 0, 0, 0, time.UTC)},
		{"yearly", models.Plan{Duration: 1, DurationType: models.DurationTypeYearly}, time.Date(2027, 1, 31, 10, 0, 0, 0, time.UTC)},
		{"weekly", models.Plan{Duration: 2, DurationType: models.DurationTypeWeekly}, time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)},
		{"daily", models.Plan{Duration: 10, DurationType: models.DurationTypeDaily}, time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC)},
		{"zero duration counts as one", models.Plan{DurationType: models.DurationTypeDaily}, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			end := PeriodEnd(&tc.plan, start)
			require.NotNil(t, end)
			assert.Equal(t, tc.expected, *end)
		})
	}

	assert.Nil(t, PeriodEnd(&models.Plan{DurationType: models.DurationTypeLifetime}, start))
}

func TestExtendSubscriptionClearsFailureMarkers(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	retry := now.Add(time.Hour)
	sub := &models.Subscription{
		Status:             models.SubscriptionStatusOverdue,
		CancelAtPeriodEnd:  true,
		FailedPaymentCount: 2,
		NextRetryDate:      &retry,
		SuspensionReason:   models.SuspensionReasonOverdue,
		Plan:               models.Plan{Duration: 1, DurationType: models.DurationTypeMonthly},
	}

	ExtendSubscription(sub, &models.Payment{Amount: 49.90}, now)

	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC), *sub.EndDate)
	assert.Equal(t, sub.EndDate, sub.NextPaymentDate)
	assert.Equal(t, 49.90, sub.LastPaymentAmount)
	assert.False(t, sub.CancelAtPeriodEnd)
	assert.Zero(t, sub.FailedPaymentCount)
	assert.Nil(t, sub.NextRetryDate)
	assert.Empty(t, sub.SuspensionReason)
}
