package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/repository"
	"github.com/rs/zerolog/log"
)

// settler applies a charge outcome to a payment and its subscription. The renewal
// orchestrator and the webhook reconciler share it so both paths mutate state alike.
type settler struct {
	ledger *PaymentLedger
}

// complete marks the payment paid, extends the subscription and writes the ledger entry.
// It returns false when the payment was already completed.
func (s *settler) complete(ctx context.Context, tx repository.Repository, sub *models.Subscription, payment *models.Payment,
	transactionID string, raw map[string]interface{}, now time.Time, notes *[]pendingNotification) (bool, error) {
	if payment.Status == models.PaymentStatusCompleted {
		return false, nil
	}
	if payment.Status == models.PaymentStatusFailed {
		log.Warn().
			Str("payment_id", payment.ID.String()).
			Str("reference", payment.ExternalReference).
			Msg("approval received for a payment already marked failed, completing it")
	}

	payment.Status = models.PaymentStatusCompleted
	payment.PaidAt = &now
	payment.NetAmount = payment.Amount
	payment.FailureReason = ""
	if transactionID != "" {
		payment.TransactionID = transactionID
	}
	if raw != nil {
		payment.GatewayResponse = models.JSON(raw)
	}
	if err := tx.SavePayment(ctx, payment); err != nil {
		return false, fmt.Errorf("failed to save payment: %w", err)
	}

	ExtendSubscription(sub, payment, now)
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return false, fmt.Errorf("failed to save subscription: %w", err)
	}

	if err := s.ledger.RecordRenewal(ctx, tx, sub, payment); err != nil {
		return false, err
	}

	data := map[string]interface{}{
		"amount":    payment.Amount,
		"currency":  payment.Currency,
		"reference": payment.ExternalReference,
	}
	if sub.EndDate != nil {
		data["end_date"] = sub.EndDate.Format(time.RFC3339)
	}
	queueNotification(notes, NotifyRenewalConfirmation, sub, data)
	return true, nil
}

// fail runs the retry policy failure path and persists the result
func (s *settler) fail(ctx context.Context, tx repository.Repository, sub *models.Subscription, payment *models.Payment,
	failure Failure, now time.Time, notes *[]pendingNotification) (FailureOutcome, error) {
	outcome := MarkAttemptAsFailed(payment, sub, failure, now)
	if outcome.Ignored {
		return outcome, nil
	}

	if err := tx.SavePayment(ctx, payment); err != nil {
		return outcome, fmt.Errorf("failed to save payment: %w", err)
	}
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return outcome, fmt.Errorf("failed to save subscription: %w", err)
	}

	data := map[string]interface{}{
		"attempt":      outcome.Attempt,
		"max_attempts": outcome.MaxAttempts,
		"reason":       failure.Reason,
		"reference":    payment.ExternalReference,
	}
	if outcome.Terminal {
		queueNotification(notes, NotifyPaymentFailedSuspension, sub, data)
	} else {
		data["next_retry_date"] = outcome.NextRetryDate.Format(time.RFC3339)
		queueNotification(notes, NotifyPaymentFailedRetry, sub, data)
	}
	return outcome, nil
}

// suspend suspends the subscription for a payment method problem
func suspend(ctx context.Context, tx repository.Repository, sub *models.Subscription, reason string, now time.Time) error {
	sub.Status = models.SubscriptionStatusSuspended
	sub.SuspendedAt = &now
	sub.SuspensionReason = reason
	sub.NextRetryDate = nil
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}
