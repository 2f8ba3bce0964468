package billing

import (
	"errors"
	"time"

	"github.com/bizflow/backend/internal/models"
)

// ErrRetryNotAllowed is returned when a payment has no attempts left or is not retryable
var ErrRetryNotAllowed = errors.New("payment cannot be retried")

// CanRetry reports whether another charge attempt may be made for the payment
func CanRetry(p *models.Payment) bool {
	if p.PaymentAttempts >= p.MaxAttempts {
		return false
	}
	return p.Status == models.PaymentStatusPending || p.Status == models.PaymentStatusAttemptFailed
}

// RemainingAttempts returns how many attempts are left on the payment
func RemainingAttempts(p *models.Payment) int {
	if left := p.MaxAttempts - p.PaymentAttempts; left > 0 {
		return left
	}
	return 0
}

// NextRetryDelay is the wait after the given failed attempt: 2, 4, 8 days for attempts 1, 2, 3
func NextRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(1<<uint(attempt)) * 24 * time.Hour
}

// Failure describes one failed charge attempt
type Failure struct {
	Reason        string
	TransactionID string
	Details       models.JSON
}

// FailureOutcome is what MarkAttemptAsFailed decided
type FailureOutcome struct {
	// Ignored is set when the payment was already terminal and nothing changed
	Ignored       bool
	Terminal      bool
	Attempt       int
	MaxAttempts   int
	NextRetryDate *time.Time
}

// MarkAttemptAsFailed records a failed attempt on the payment and moves the subscription
// to OVERDUE with a backoff retry date, or to SUSPENDED once the attempts are exhausted.
// A failure reported on a payment that already failed and was not re-prepared counts as
// a new attempt.
func MarkAttemptAsFailed(p *models.Payment, sub *models.Subscription, failure Failure, now time.Time) FailureOutcome {
	if p.Status.IsTerminal() {
		return FailureOutcome{Ignored: true, Attempt: p.PaymentAttempts, MaxAttempts: p.MaxAttempts}
	}

	if p.Status == models.PaymentStatusAttemptFailed && p.PaymentAttempts < p.MaxAttempts {
		p.PaymentAttempts++
	}

	p.FailureReason = failure.Reason
	p.FailureHistory = append(p.FailureHistory, models.FailureRecord{
		Reason:        failure.Reason,
		TransactionID: failure.TransactionID,
		Details:       failure.Details,
		Timestamp:     now,
	})
	p.LastAttemptAt = &now
	if failure.TransactionID != "" {
		p.TransactionID = failure.TransactionID
	}

	sub.FailedPaymentCount = p.PaymentAttempts
	outcome := FailureOutcome{Attempt: p.PaymentAttempts, MaxAttempts: p.MaxAttempts}

	if p.PaymentAttempts >= p.MaxAttempts {
		p.Status = models.PaymentStatusFailed
		sub.Status = models.SubscriptionStatusSuspended
		sub.SuspendedAt = &now
		sub.SuspensionReason = models.SuspensionReasonPaymentFailed
		sub.NextRetryDate = nil
		outcome.Terminal = true
		return outcome
	}

	p.Status = models.PaymentStatusAttemptFailed
	next := now.Add(NextRetryDelay(p.PaymentAttempts))
	sub.Status = models.SubscriptionStatusOverdue
	sub.NextRetryDate = &next
	outcome.NextRetryDate = &next
	return outcome
}

// PrepareForRetry opens the next attempt on a retryable payment
func PrepareForRetry(p *models.Payment, sub *models.Subscription, now time.Time) error {
	if !CanRetry(p) {
		return ErrRetryNotAllowed
	}

	p.PaymentAttempts++
	p.FailureReason = ""
	p.LastAttemptAt = &now
	p.Status = models.PaymentStatusPending
	sub.NextRetryDate = nil
	return nil
}
