package billing

import (
	"math"
	"time"

	"github.com/bizflow/backend/internal/models"
)

// Day thresholds of the overdue ladder. Up to GracePeriodDays past due keeps full access,
// past SuspensionThresholdDays access is revoked.
const (
	GracePeriodDays         = 7
	SuspensionThresholdDays = 30
)

// AccessLevel is what a tenant may do in the product given its billing state
type AccessLevel string

const (
	AccessFull    AccessLevel = "FULL"
	AccessLimited AccessLevel = "LIMITED"
	AccessNone    AccessLevel = "NONE"
)

var accessByStatus = map[models.SubscriptionStatus]AccessLevel{
	models.SubscriptionStatusTrial:     AccessFull,
	models.SubscriptionStatusActive:    AccessFull,
	models.SubscriptionStatusPending:   AccessFull,
	models.SubscriptionStatusOverdue:   AccessLimited,
	models.SubscriptionStatusSuspended: AccessNone,
	models.SubscriptionStatusCanceled:  AccessNone,
}

// AccessFor maps a status to the access it grants. Unknown statuses grant nothing.
func AccessFor(status models.SubscriptionStatus) AccessLevel {
	if level, ok := accessByStatus[status]; ok {
		return level
	}
	return AccessNone
}

// StatusFacts are the billing facts a status is derived from
type StatusFacts struct {
	Persisted        models.SubscriptionStatus
	BillingCycle     models.BillingCycle
	PaymentMethod    models.PaymentMethodType
	LifetimeTenant   bool
	TrialEndDate     *time.Time
	NextPaymentDate  *time.Time
	EndDate          *time.Time
	SuspensionReason string

	LatestPayment       *models.Payment
	HasCompletedPayment bool
	HasPendingPayment   bool
}

// Evaluation is the outcome of a status computation.
// Status is what access decisions use; Stored is what the row should hold.
type Evaluation struct {
	Status      models.SubscriptionStatus
	Stored      models.SubscriptionStatus
	Access      AccessLevel
	DaysOverdue int
	InTrial     bool
}

// Changed reports whether the persisted status needs a write
func (e Evaluation) Changed(persisted models.SubscriptionStatus) bool {
	return e.Stored != persisted
}

// DaysOverdue returns whole days elapsed since due, floored. Negative while not yet due.
func DaysOverdue(due, now time.Time) int {
	return int(math.Floor(now.Sub(due).Hours() / 24))
}

// CalculateStatus derives the subscription status from billing facts at now
func CalculateStatus(f StatusFacts, now time.Time) models.SubscriptionStatus {
	status, _ := calculate(f, now)
	return status
}

func calculate(f StatusFacts, now time.Time) (models.SubscriptionStatus, int) {
	if f.Persisted.IsTerminal() {
		return f.Persisted, 0
	}

	if f.BillingCycle == models.BillingCycleLifetime || f.LifetimeTenant {
		return models.SubscriptionStatusActive, 0
	}

	if hardSuspended(f) {
		return models.SubscriptionStatusSuspended, 0
	}

	due := f.NextPaymentDate
	if due == nil {
		due = f.EndDate
	}

	if f.PaymentMethod.IsManual() && f.HasCompletedPayment {
		if due == nil {
			return f.Persisted, 0
		}
		days := DaysOverdue(*due, now)
		return fromDaysOverdue(days), days
	}

	if f.HasPendingPayment {
		return models.SubscriptionStatusPending, 0
	}

	if due == nil {
		return f.Persisted, 0
	}
	days := DaysOverdue(*due, now)
	status := fromDaysOverdue(days)

	// A failed attempt awaiting its retry keeps the subscription in the retry sweep.
	if f.LatestPayment != nil && f.LatestPayment.Status == models.PaymentStatusAttemptFailed &&
		severity[status] < severity[models.SubscriptionStatusOverdue] {
		status = models.SubscriptionStatusOverdue
	}
	return status, days
}

var severity = map[models.SubscriptionStatus]int{
	models.SubscriptionStatusTrial:     0,
	models.SubscriptionStatusActive:    0,
	models.SubscriptionStatusPending:   1,
	models.SubscriptionStatusOverdue:   2,
	models.SubscriptionStatusSuspended: 3,
	models.SubscriptionStatusCanceled:  4,
}

// hardSuspended covers suspensions that elapsed time alone must not lift
func hardSuspended(f StatusFacts) bool {
	if f.LatestPayment != nil && f.LatestPayment.Status == models.PaymentStatusFailed {
		return true
	}
	if f.Persisted != models.SubscriptionStatusSuspended {
		return false
	}
	switch f.SuspensionReason {
	case models.SuspensionReasonMissingPaymentMethod,
		models.SuspensionReasonExpiredPaymentMethod,
		models.SuspensionReasonPaymentFailed:
		return true
	}
	return false
}

func fromDaysOverdue(days int) models.SubscriptionStatus {
	switch {
	case days <= 0:
		return models.SubscriptionStatusActive
	case days <= GracePeriodDays:
		return models.SubscriptionStatusPending
	case days <= SuspensionThresholdDays:
		return models.SubscriptionStatusOverdue
	default:
		return models.SubscriptionStatusSuspended
	}
}

// trialRunning reports whether the tenant is inside a trial that has not ended yet
func trialRunning(f StatusFacts, now time.Time) bool {
	if f.TrialEndDate != nil && !now.After(*f.TrialEndDate) {
		return true
	}
	return f.Persisted == models.SubscriptionStatusTrial && f.EndDate != nil && !now.After(*f.EndDate)
}

// Evaluate computes both the effective and the stored status.
// A running trial is reported as TRIAL and leaves the stored status alone.
func Evaluate(f StatusFacts, now time.Time) Evaluation {
	if !f.Persisted.IsTerminal() && !f.LifetimeTenant && f.BillingCycle != models.BillingCycleLifetime && trialRunning(f, now) {
		return Evaluation{
			Status:  models.SubscriptionStatusTrial,
			Stored:  f.Persisted,
			Access:  AccessFull,
			InTrial: true,
		}
	}

	status, days := calculate(f, now)
	return Evaluation{
		Status:      status,
		Stored:      status,
		Access:      AccessFor(status),
		DaysOverdue: days,
	}
}

// FactsFor assembles status facts from a subscription (with Business loaded) and its payments
func FactsFor(sub *models.Subscription, latest *models.Payment, hasCompleted, hasPending bool) StatusFacts {
	return StatusFacts{
		Persisted:           sub.Status,
		BillingCycle:        sub.BillingCycle,
		PaymentMethod:       sub.PaymentMethod,
		LifetimeTenant:      sub.Business.IsLifetime,
		TrialEndDate:        sub.Business.TrialEndDate,
		NextPaymentDate:     sub.NextPaymentDate,
		EndDate:             sub.EndDate,
		SuspensionReason:    sub.SuspensionReason,
		LatestPayment:       latest,
		HasCompletedPayment: hasCompleted,
		HasPendingPayment:   hasPending,
	}
}
