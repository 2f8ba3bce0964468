package billing

import (
	"time"

	"github.com/bizflow/backend/internal/models"
)

// PeriodEnd returns the end of a billing period for the plan starting at start.
// Month and year steps clamp to the last day of the target month. LIFETIME plans have no end.
func PeriodEnd(plan *models.Plan, start time.Time) *time.Time {
	n := plan.Duration
	if n <= 0 {
		n = 1
	}

	var end time.Time
	switch plan.DurationType {
	case models.DurationTypeDaily:
		end = start.AddDate(0, 0, n)
	case models.DurationTypeWeekly:
		end = start.AddDate(0, 0, 7*n)
	case models.DurationTypeMonthly:
		end = addMonths(start, n)
	case models.DurationTypeYearly:
		end = addMonths(start, 12*n)
	case models.DurationTypeLifetime:
		return nil
	default:
		end = addMonths(start, n)
	}
	return &end
}

func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// ExtendSubscription starts a fresh paid period at now and clears every failure marker
func ExtendSubscription(sub *models.Subscription, payment *models.Payment, now time.Time) {
	end := PeriodEnd(&sub.Plan, now)

	sub.Status = models.SubscriptionStatusActive
	sub.StartDate = now
	sub.EndDate = end
	sub.NextPaymentDate = end
	sub.LastPaymentDate = &now
	sub.LastPaymentAmount = payment.Amount
	sub.CancelAtPeriodEnd = false
	sub.FailedPaymentCount = 0
	sub.NextRetryDate = nil
	sub.SuspendedAt = nil
	sub.SuspensionReason = ""
	if sub.Plan.DurationType == models.DurationTypeLifetime {
		sub.BillingCycle = models.BillingCycleLifetime
	}
}
