package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/bizflow/backend/internal/metrics"
	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// StatusService keeps persisted subscription statuses in line with the billing facts
type StatusService struct {
	repo repository.Repository
	now  func() time.Time
}

// NewStatusService creates a new StatusService. now defaults to time.Now.
func NewStatusService(repo repository.Repository, now func() time.Time) *StatusService {
	if now == nil {
		now = time.Now
	}
	return &StatusService{repo: repo, now: now}
}

// SweepSummary counts what the daily status check did
type SweepSummary struct {
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// AccessResult is the answer to an access check for one tenant
type AccessResult struct {
	BusinessID     uuid.UUID                 `json:"business_id"`
	SubscriptionID uuid.UUID                 `json:"subscription_id"`
	Status         models.SubscriptionStatus `json:"status"`
	Access         AccessLevel               `json:"access"`
	DaysOverdue    int                       `json:"days_overdue"`
	InTrial        bool                      `json:"in_trial"`
	EndDate        *time.Time                `json:"end_date,omitempty"`
	Updated        bool                      `json:"updated"`
}

// RunDailyStatusCheck recomputes every non-terminal subscription and writes changed statuses
func (s *StatusService) RunDailyStatusCheck(ctx context.Context) (SweepSummary, error) {
	subs, err := s.repo.ListForStatusSweep(ctx)
	if err != nil {
		return SweepSummary{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	var summary SweepSummary
	for i := range subs {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
		summary.Checked++

		_, updated, err := s.refresh(ctx, subs[i].ID)
		if err != nil {
			summary.Errors++
			log.Error().Err(err).Str("subscription_id", subs[i].ID.String()).Msg("status check failed")
			continue
		}
		if updated {
			summary.Updated++
		}
	}

	log.Info().
		Int("checked", summary.Checked).
		Int("updated", summary.Updated).
		Int("errors", summary.Errors).
		Msg("daily status check finished")
	return summary, nil
}

// CheckAccess evaluates the access of one tenant, writing through a changed status
func (s *StatusService) CheckAccess(ctx context.Context, businessID uuid.UUID) (*AccessResult, error) {
	sub, err := s.repo.FindSubscriptionByBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	eval, updated, err := s.refresh(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	return &AccessResult{
		BusinessID:     businessID,
		SubscriptionID: sub.ID,
		Status:         eval.Status,
		Access:         eval.Access,
		DaysOverdue:    eval.DaysOverdue,
		InTrial:        eval.InTrial,
		EndDate:        eval.endDate,
		Updated:        updated,
	}, nil
}

type refreshedEvaluation struct {
	Evaluation
	endDate *time.Time
}

// refresh evaluates one subscription under lock and persists a changed status
func (s *StatusService) refresh(ctx context.Context, id uuid.UUID) (refreshedEvaluation, bool, error) {
	var (
		result  refreshedEvaluation
		updated bool
	)
	now := s.now()

	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		sub, err := tx.LoadSubscription(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		eval, err := evaluateSubscription(ctx, tx, sub, now)
		if err != nil {
			return err
		}
		result = refreshedEvaluation{Evaluation: eval, endDate: sub.EndDate}

		if !eval.Changed(sub.Status) {
			return nil
		}

		from := sub.Status
		applyStoredStatus(sub, eval.Stored, now)
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}

		updated = true
		metrics.RecordStatusTransition(string(from), string(eval.Stored))
		log.Info().
			Str("subscription_id", sub.ID.String()).
			Str("from", string(from)).
			Str("to", string(eval.Stored)).
			Int("days_overdue", eval.DaysOverdue).
			Msg("subscription status updated")
		return nil
	})
	return result, updated, err
}

func evaluateSubscription(ctx context.Context, repo repository.Repository, sub *models.Subscription, now time.Time) (Evaluation, error) {
	latest, err := repo.LatestPayment(ctx, sub.ID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to load latest payment: %w", err)
	}
	completed, err := repo.LatestPayment(ctx, sub.ID, models.PaymentStatusCompleted)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to load completed payment: %w", err)
	}
	pending, err := repo.HasPendingPayment(ctx, sub.ID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to check pending payments: %w", err)
	}

	return Evaluate(FactsFor(sub, latest, completed != nil, pending), now), nil
}

// applyStoredStatus writes a computed status and keeps the suspension markers consistent
func applyStoredStatus(sub *models.Subscription, status models.SubscriptionStatus, now time.Time) {
	sub.Status = status
	if status == models.SubscriptionStatusSuspended {
		if sub.SuspendedAt == nil {
			sub.SuspendedAt = &now
		}
		if sub.SuspensionReason == "" {
			sub.SuspensionReason = models.SuspensionReasonOverdue
		}
		return
	}
	sub.SuspendedAt = nil
	sub.SuspensionReason = ""
}
