package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizflow/backend/internal/metrics"
	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/repository"
	"github.com/rs/zerolog/log"
)

// ErrUnknownPaymentReference is returned when a webhook names a reference no payment carries
var ErrUnknownPaymentReference = errors.New("unknown payment reference")

// recentReferenceSample is how many references are logged to diagnose an unmatched webhook
const recentReferenceSample = 10

// WebhookResult is the outcome of handling one gateway event
type WebhookResult struct {
	Handled   bool                 `json:"handled"`
	Message   string               `json:"message"`
	NewStatus models.PaymentStatus `json:"newStatus,omitempty"`
}

// WebhookReconciler applies gateway events to the payments they refer to
type WebhookReconciler struct {
	repo     repository.Repository
	verifier *SignatureVerifier
	notifier Notifier
	settler  *settler
	now      func() time.Time
}

// NewWebhookReconciler creates a new WebhookReconciler. now defaults to time.Now.
func NewWebhookReconciler(repo repository.Repository, verifier *SignatureVerifier, notifier Notifier, ledger *PaymentLedger, now func() time.Time) *WebhookReconciler {
	if now == nil {
		now = time.Now
	}
	return &WebhookReconciler{
		repo:     repo,
		verifier: verifier,
		notifier: notifier,
		settler:  &settler{ledger: ledger},
		now:      now,
	}
}

// Handle verifies and applies one gateway event. Replays leave state unchanged.
func (r *WebhookReconciler) Handle(ctx context.Context, env *WebhookEnvelope, headerChecksum string) (*WebhookResult, error) {
	txData := env.Transaction()
	event := &models.WebhookEvent{
		Event:         env.Event,
		Environment:   env.Environment,
		Reference:     txData.Reference,
		TransactionID: txData.ID,
		GatewayStatus: txData.Status,
		RawData:       models.JSON(env.Data),
	}

	result, err := r.handle(ctx, env, headerChecksum, txData, event)

	event.Outcome = outcomeMessage(result, err)
	if err := r.repo.SaveWebhookEvent(ctx, event); err != nil {
		log.Error().Err(err).Str("reference", txData.Reference).Msg("failed to record webhook event")
	}

	label := "processed"
	switch {
	case err != nil:
		label = "error"
	case !result.Handled:
		label = "ignored"
	}
	metrics.RecordWebhook(txData.Status, label)

	return result, err
}

func (r *WebhookReconciler) handle(ctx context.Context, env *WebhookEnvelope, headerChecksum string,
	txData TransactionData, event *models.WebhookEvent) (*WebhookResult, error) {
	if env.Event != EventTransactionUpdated {
		log.Info().Str("event", env.Event).Msg("ignoring unhandled webhook event")
		return &WebhookResult{Message: fmt.Sprintf("event %s not handled", env.Event)}, nil
	}

	if err := r.verifier.Verify(env, headerChecksum); err != nil {
		log.Warn().Err(err).Str("reference", txData.Reference).Msg("rejecting webhook with invalid signature")
		return nil, err
	}
	event.Verified = true

	if txData.Reference == "" {
		return nil, fmt.Errorf("%w: missing transaction reference", ErrMalformedEnvelope)
	}

	var (
		result *WebhookResult
		notes  []pendingNotification
	)
	now := r.now()

	err := r.repo.Transaction(ctx, func(tx repository.Repository) error {
		notes = notes[:0]

		found, err := tx.FindPaymentByReference(ctx, txData.Reference)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnknownPaymentReference
		}
		if err != nil {
			return fmt.Errorf("failed to find payment: %w", err)
		}
		paymentID := found.ID
		event.PaymentID = &paymentID

		// subscription before payment, the same lock order as the sweeps
		sub, err := tx.LoadSubscription(ctx, found.SubscriptionID)
		if err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}
		payment, err := tx.LoadPayment(ctx, found.ID)
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		result, err = r.apply(ctx, tx, sub, payment, env, txData, now, &notes)
		return err
	})

	if errors.Is(err, ErrUnknownPaymentReference) {
		refs, refErr := r.repo.RecentPaymentReferences(ctx, recentReferenceSample)
		log.Error().
			AnErr("lookup_error", refErr).
			Str("reference", txData.Reference).
			Str("transaction_id", txData.ID).
			Strs("recent_references", refs).
			Msg("webhook references an unknown payment")
		return nil, fmt.Errorf("%w: %s", ErrUnknownPaymentReference, txData.Reference)
	}
	if err != nil {
		return nil, err
	}

	event.Processed = true
	event.ProcessedAt = &now
	dispatch(ctx, r.notifier, notes)
	return result, nil
}

func (r *WebhookReconciler) apply(ctx context.Context, tx repository.Repository, sub *models.Subscription, payment *models.Payment,
	env *WebhookEnvelope, txData TransactionData, now time.Time, notes *[]pendingNotification) (*WebhookResult, error) {
	status := ChargeStatus(txData.Status)
	logger := log.With().
		Str("reference", payment.ExternalReference).
		Str("payment_id", payment.ID.String()).
		Str("gateway_status", txData.Status).
		Logger()

	switch {
	case status == ChargeApproved:
		completed, err := r.settler.complete(ctx, tx, sub, payment, txData.ID, env.TransactionDetails(), now, notes)
		if err != nil {
			return nil, err
		}
		if !completed {
			logger.Info().Msg("payment already completed, ignoring replay")
			return &WebhookResult{Handled: true, Message: "Payment already completed", NewStatus: payment.Status}, nil
		}
		logger.Info().Msg("payment approved via webhook")
		return &WebhookResult{Handled: true, Message: "Payment approved", NewStatus: payment.Status}, nil

	case status.IsFailure():
		if payment.Status.IsTerminal() {
			logger.Info().Str("payment_status", string(payment.Status)).Msg("payment already final, ignoring failure event")
			return &WebhookResult{Handled: true, Message: "Payment already final", NewStatus: payment.Status}, nil
		}
		// an earlier attempt's decline can arrive again after a retry opened a new attempt
		if payment.FailureHistory.HasTransaction(txData.ID) ||
			(payment.Status == models.PaymentStatusAttemptFailed && txData.ID != "" && payment.TransactionID == txData.ID) {
			logger.Info().Str("transaction_id", txData.ID).Msg("failure already recorded for this transaction, ignoring replay")
			return &WebhookResult{Handled: true, Message: "Failure already recorded", NewStatus: payment.Status}, nil
		}

		details := models.JSON(env.TransactionDetails())
		outcome, err := r.settler.fail(ctx, tx, sub, payment, Failure{
			Reason:        FailureReason(status, txData.StatusMessage),
			TransactionID: txData.ID,
			Details:       details,
		}, now, notes)
		if err != nil {
			return nil, err
		}
		logger.Warn().Int("attempt", outcome.Attempt).Bool("terminal", outcome.Terminal).Msg("payment failure recorded via webhook")
		return &WebhookResult{Handled: true, Message: "Payment failure recorded", NewStatus: payment.Status}, nil

	default:
		logger.Info().Msg("informational webhook status, no change")
		return &WebhookResult{Handled: true, Message: fmt.Sprintf("Status %s acknowledged", txData.Status), NewStatus: payment.Status}, nil
	}
}

func outcomeMessage(result *WebhookResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if result == nil {
		return ""
	}
	return result.Message
}
