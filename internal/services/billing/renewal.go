package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bizflow/backend/internal/metrics"
	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/repository"
	"github.com/bizflow/backend/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RenewalConfig tunes the renewal orchestrator
type RenewalConfig struct {
	// Window selects subscriptions whose period ends within it
	Window time.Duration
	// TrialReminderAhead is how far ahead of a trial end the reminder goes out
	TrialReminderAhead time.Duration
	// Concurrency bounds the subscriptions processed in parallel
	Concurrency int
	// ChargeTimeout bounds a single gateway call
	ChargeTimeout time.Duration
	// Now is the clock; time.Now when nil
	Now func() time.Time
}

func (c *RenewalConfig) setDefaults() {
	if c.Window <= 0 {
		c.Window = 24 * time.Hour
	}
	if c.TrialReminderAhead <= 0 {
		c.TrialReminderAhead = 72 * time.Hour
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.ChargeTimeout <= 0 {
		c.ChargeTimeout = 30 * time.Second
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// BatchSummary counts what a sweep did
type BatchSummary struct {
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Pending    int `json:"pending"`
}

type renewalOutcome string

const (
	outcomeRenewed   renewalOutcome = "successful"
	outcomeFailed    renewalOutcome = "failed"
	outcomeSuspended renewalOutcome = "suspended"
	outcomeCanceled  renewalOutcome = "canceled"
	outcomePending   renewalOutcome = "pending"
	outcomeSkipped   renewalOutcome = "skipped"
)

func (s *BatchSummary) add(outcome renewalOutcome) {
	s.Processed++
	switch outcome {
	case outcomeRenewed:
		s.Successful++
	case outcomeFailed, outcomeSuspended:
		s.Failed++
	case outcomePending:
		s.Pending++
	default:
		s.Skipped++
	}
}

// RenewalOrchestrator charges due subscriptions and drives their retries
type RenewalOrchestrator struct {
	repo     repository.Repository
	gateway  Gateway
	notifier Notifier
	settler  *settler
	cfg      RenewalConfig
}

// NewRenewalOrchestrator creates a new RenewalOrchestrator
func NewRenewalOrchestrator(repo repository.Repository, gateway Gateway, notifier Notifier, ledger *PaymentLedger, cfg RenewalConfig) *RenewalOrchestrator {
	cfg.setDefaults()
	return &RenewalOrchestrator{
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		settler:  &settler{ledger: ledger},
		cfg:      cfg,
	}
}

// ProcessDue charges every automatically-billed subscription whose period ends within the window
func (o *RenewalOrchestrator) ProcessDue(ctx context.Context) (BatchSummary, error) {
	now := o.cfg.Now()
	cutoff := now.Add(o.cfg.Window)

	subs, err := o.repo.FindDueRenewals(ctx, cutoff)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to find due renewals: %w", err)
	}

	log.Info().Int("count", len(subs)).Time("cutoff", cutoff).Msg("processing due renewals")
	summary := o.runBatch(ctx, subs, "renewal", func(ctx context.Context, id uuid.UUID) (renewalOutcome, error) {
		return o.renew(ctx, id, cutoff)
	})
	log.Info().Interface("summary", summary).Msg("renewal sweep finished")
	return summary, ctx.Err()
}

// ProcessRetries re-attempts overdue payments whose retry date has arrived
func (o *RenewalOrchestrator) ProcessRetries(ctx context.Context) (BatchSummary, error) {
	now := o.cfg.Now()

	subs, err := o.repo.FindOverdueRetries(ctx, now)
	if err != nil {
		return BatchSummary{}, fmt.Errorf("failed to find overdue retries: %w", err)
	}

	log.Info().Int("count", len(subs)).Msg("processing payment retries")
	summary := o.runBatch(ctx, subs, "retry", o.retry)
	log.Info().Interface("summary", summary).Msg("retry sweep finished")
	return summary, ctx.Err()
}

// runBatch processes subscriptions in parallel. A failing subscription is logged and
// counted; it never aborts the batch.
func (o *RenewalOrchestrator) runBatch(ctx context.Context, subs []models.Subscription, kind string,
	process func(context.Context, uuid.UUID) (renewalOutcome, error)) BatchSummary {
	var (
		mu      sync.Mutex
		summary BatchSummary
		g       errgroup.Group
	)
	g.SetLimit(o.cfg.Concurrency)

	for i := range subs {
		id := subs[i].ID
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome, err := process(ctx, id)
			if err != nil {
				log.Error().Err(err).Str("subscription_id", id.String()).Str("kind", kind).Msg("billing attempt failed")
				outcome = outcomeFailed
			}

			if kind == "retry" {
				metrics.RecordRetry(string(outcome))
			} else {
				metrics.RecordRenewal(string(outcome))
			}

			mu.Lock()
			summary.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return summary
}

// renew runs one subscription through the renewal state machine inside a transaction
func (o *RenewalOrchestrator) renew(ctx context.Context, id uuid.UUID, cutoff time.Time) (renewalOutcome, error) {
	var (
		outcome renewalOutcome
		notes   []pendingNotification
	)
	now := o.cfg.Now()

	err := o.repo.Transaction(ctx, func(tx repository.Repository) error {
		notes = notes[:0]

		sub, err := tx.LoadSubscription(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		if !dueForRenewal(sub, cutoff) {
			outcome = outcomeSkipped
			return nil
		}

		inFlight, err := tx.HasPendingPayment(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("failed to check pending payments: %w", err)
		}
		if inFlight {
			log.Info().Str("subscription_id", sub.ID.String()).Msg("charge already in flight, skipping")
			outcome = outcomeSkipped
			return nil
		}

		if sub.CancelAtPeriodEnd {
			outcome = outcomeCanceled
			return o.cancel(ctx, tx, sub, now, &notes)
		}

		method, ok, err := o.usablePaymentMethod(ctx, tx, sub, now, &notes)
		if err != nil || !ok {
			outcome = outcomeSuspended
			return err
		}

		payment := models.NewPayment(sub, sub.Plan.Price, sub.Plan.Currency, utils.SubscriptionReference(sub.ID, now), now)
		if err := tx.SavePayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}

		outcome, err = o.chargeAndSettle(ctx, tx, sub, payment, method, now, &notes)
		return err
	})
	if err != nil {
		return outcomeFailed, err
	}

	dispatch(ctx, o.notifier, notes)
	return outcome, nil
}

// retry re-attempts the latest failed payment of an overdue subscription
func (o *RenewalOrchestrator) retry(ctx context.Context, id uuid.UUID) (renewalOutcome, error) {
	var (
		outcome renewalOutcome
		notes   []pendingNotification
	)
	now := o.cfg.Now()

	err := o.repo.Transaction(ctx, func(tx repository.Repository) error {
		notes = notes[:0]

		sub, err := tx.LoadSubscription(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}
		if sub.Status != models.SubscriptionStatusOverdue || sub.NextRetryDate == nil || sub.NextRetryDate.After(now) {
			outcome = outcomeSkipped
			return nil
		}

		latest, err := tx.LatestPayment(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("failed to load latest payment: %w", err)
		}
		if latest == nil || latest.Status == models.PaymentStatusPending {
			outcome = outcomeSkipped
			return nil
		}
		payment, err := tx.LoadPayment(ctx, latest.ID)
		if err != nil {
			return fmt.Errorf("failed to lock payment: %w", err)
		}

		if payment.Status.IsTerminal() || !CanRetry(payment) {
			log.Warn().
				Str("subscription_id", sub.ID.String()).
				Str("payment_id", payment.ID.String()).
				Str("status", string(payment.Status)).
				Msg("retry scheduled for a payment that cannot be retried, clearing retry date")
			sub.NextRetryDate = nil
			outcome = outcomeSkipped
			return tx.SaveSubscription(ctx, sub)
		}

		method, ok, err := o.usablePaymentMethod(ctx, tx, sub, now, &notes)
		if err != nil || !ok {
			outcome = outcomeSuspended
			return err
		}

		if err := PrepareForRetry(payment, sub, now); err != nil {
			return err
		}
		if err := tx.SavePayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to save payment: %w", err)
		}

		outcome, err = o.chargeAndSettle(ctx, tx, sub, payment, method, now, &notes)
		return err
	})
	if err != nil {
		return outcomeFailed, err
	}

	dispatch(ctx, o.notifier, notes)
	return outcome, nil
}

func dueForRenewal(sub *models.Subscription, cutoff time.Time) bool {
	if sub.Status != models.SubscriptionStatusTrial && sub.Status != models.SubscriptionStatusActive {
		return false
	}
	if sub.BillingCycle == models.BillingCycleLifetime || sub.PaymentMethod.IsManual() {
		return false
	}
	return sub.EndDate != nil && !sub.EndDate.After(cutoff)
}

func (o *RenewalOrchestrator) cancel(ctx context.Context, tx repository.Repository, sub *models.Subscription, now time.Time, notes *[]pendingNotification) error {
	sub.Status = models.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	sub.NextRetryDate = nil
	sub.SetMetadata("cancellation_reason", models.CancellationReasonPeriodEnd)
	sub.SetMetadata("canceled_at", now.Format(time.RFC3339))
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}

	log.Info().Str("subscription_id", sub.ID.String()).Msg("subscription canceled at period end")
	queueNotification(notes, NotifyCancellationConfirmation, sub, map[string]interface{}{
		"canceled_at": now.Format(time.RFC3339),
	})
	return nil
}

// usablePaymentMethod returns the default card or suspends the subscription when there is none
func (o *RenewalOrchestrator) usablePaymentMethod(ctx context.Context, tx repository.Repository, sub *models.Subscription,
	now time.Time, notes *[]pendingNotification) (*models.PaymentMethod, bool, error) {
	method, err := tx.FindDefaultPaymentMethod(ctx, sub.BusinessID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn().Str("subscription_id", sub.ID.String()).Msg("no default payment method, suspending")
		if err := suspend(ctx, tx, sub, models.SuspensionReasonMissingPaymentMethod, now); err != nil {
			return nil, false, err
		}
		queueNotification(notes, NotifyMissingPaymentMethod, sub, nil)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to find payment method: %w", err)
	}

	if method.IsExpired(now) {
		log.Warn().
			Str("subscription_id", sub.ID.String()).
			Str("payment_method_id", method.ID.String()).
			Msg("default payment method expired, suspending")
		method.IsActive = false
		if err := tx.SavePaymentMethod(ctx, method); err != nil {
			return nil, false, fmt.Errorf("failed to deactivate payment method: %w", err)
		}
		if err := suspend(ctx, tx, sub, models.SuspensionReasonExpiredPaymentMethod, now); err != nil {
			return nil, false, err
		}
		queueNotification(notes, NotifyExpiredCard, sub, map[string]interface{}{
			"brand":     method.Brand,
			"last_four": method.LastFour,
		})
		return nil, false, nil
	}

	return method, true, nil
}

// chargeAndSettle calls the gateway for the payment and applies the verdict
func (o *RenewalOrchestrator) chargeAndSettle(ctx context.Context, tx repository.Repository, sub *models.Subscription,
	payment *models.Payment, method *models.PaymentMethod, now time.Time, notes *[]pendingNotification) (renewalOutcome, error) {
	result, chargeErr := o.charge(ctx, sub, payment, method)

	if chargeErr != nil {
		reason := "Gateway error: " + chargeErr.Error()
		if errors.Is(chargeErr, context.DeadlineExceeded) {
			reason = "Gateway timeout"
		}
		if _, err := o.settler.fail(ctx, tx, sub, payment, Failure{
			Reason:  reason,
			Details: models.JSON{"error": chargeErr.Error()},
		}, now, notes); err != nil {
			return outcomeFailed, err
		}
		return outcomeFailed, nil
	}

	switch {
	case result.Status == ChargeApproved:
		if _, err := o.settler.complete(ctx, tx, sub, payment, result.TransactionID, result.Raw, now, notes); err != nil {
			return outcomeFailed, err
		}
		log.Info().
			Str("subscription_id", sub.ID.String()).
			Str("reference", payment.ExternalReference).
			Msg("subscription renewed")
		return outcomeRenewed, nil

	case result.Status == ChargePending:
		payment.TransactionID = result.TransactionID
		if result.Raw != nil {
			payment.GatewayResponse = models.JSON(result.Raw)
		}
		if err := tx.SavePayment(ctx, payment); err != nil {
			return outcomeFailed, fmt.Errorf("failed to save payment: %w", err)
		}
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return outcomeFailed, fmt.Errorf("failed to save subscription: %w", err)
		}
		log.Info().Str("reference", payment.ExternalReference).Msg("charge pending, awaiting webhook")
		return outcomePending, nil

	default:
		details := models.JSON{"status": string(result.Status), "message": result.StatusMessage}
		for k, v := range result.Raw {
			details[k] = v
		}
		outcome, err := o.settler.fail(ctx, tx, sub, payment, Failure{
			Reason:        FailureReason(result.Status, result.StatusMessage),
			TransactionID: result.TransactionID,
			Details:       details,
		}, now, notes)
		if err != nil {
			return outcomeFailed, err
		}
		log.Warn().
			Str("subscription_id", sub.ID.String()).
			Str("reference", payment.ExternalReference).
			Int("attempt", outcome.Attempt).
			Bool("terminal", outcome.Terminal).
			Msg("renewal charge failed")
		return outcomeFailed, nil
	}
}

func (o *RenewalOrchestrator) charge(ctx context.Context, sub *models.Subscription, payment *models.Payment, method *models.PaymentMethod) (*ChargeResult, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, o.cfg.ChargeTimeout)
	defer cancel()

	started := time.Now()
	result, err := o.gateway.Charge(chargeCtx, ChargeRequest{
		AmountInCents: sub.Plan.PriceInCents(),
		Currency:      sub.Plan.Currency,
		CustomerEmail: sub.Business.OwnerEmail,
		Token:         method.ProviderToken,
		Reference:     payment.ExternalReference,
		Metadata: map[string]string{
			"subscription_id": sub.ID.String(),
			"business_id":     sub.BusinessID.String(),
			"attempt":         fmt.Sprint(payment.PaymentAttempts),
		},
	})

	status := "error"
	if err == nil && result != nil {
		status = string(result.Status)
	}
	metrics.ObserveGatewayCharge(status, started)

	if err == nil && result == nil {
		err = errors.New("gateway returned no result")
	}
	if err == nil && chargeCtx.Err() != nil {
		err = chargeCtx.Err()
	}
	return result, err
}

// NotifyUpcomingExpirations sends one reminder per trial ending soon. It returns how many were sent.
func (o *RenewalOrchestrator) NotifyUpcomingExpirations(ctx context.Context) (int, error) {
	now := o.cfg.Now()
	cutoff := now.Add(o.cfg.TrialReminderAhead)

	subs, err := o.repo.FindTrialsEndingBefore(ctx, now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find expiring trials: %w", err)
	}

	sent := 0
	for i := range subs {
		id := subs[i].ID
		var notes []pendingNotification

		err := o.repo.Transaction(ctx, func(tx repository.Repository) error {
			notes = notes[:0]
			sub, err := tx.LoadSubscription(ctx, id)
			if err != nil {
				return err
			}
			if sub.TrialReminderSentAt != nil || sub.Status != models.SubscriptionStatusTrial || sub.EndDate == nil {
				return nil
			}

			sub.TrialReminderSentAt = &now
			if err := tx.SaveSubscription(ctx, sub); err != nil {
				return fmt.Errorf("failed to save subscription: %w", err)
			}
			queueNotification(&notes, NotifyTrialExpiringSoon, sub, map[string]interface{}{
				"trial_end_date": sub.EndDate.Format(time.RFC3339),
				"days_left":      int(sub.EndDate.Sub(now).Hours() / 24),
			})
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("subscription_id", id.String()).Msg("failed to record trial reminder")
			continue
		}

		dispatch(ctx, o.notifier, notes)
		sent += len(notes)
	}

	log.Info().Int("sent", sent).Msg("trial reminders sent")
	return sent, nil
}
