package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/bizflow/backend/internal/metrics"
	"github.com/bizflow/backend/internal/models"
	"github.com/bizflow/backend/internal/repository"
	"github.com/rs/zerolog/log"
)

// PaymentLedger records money that actually moved. Entries are append-only and
// there is at most one per completed payment.
type PaymentLedger struct{}

// NewPaymentLedger creates a new PaymentLedger
func NewPaymentLedger() *PaymentLedger {
	return &PaymentLedger{}
}

// RecordRenewal appends the SUBSCRIPTION_RENEWAL entry of a completed payment.
// Recording the same payment twice is a no-op.
func (l *PaymentLedger) RecordRenewal(ctx context.Context, repo repository.Repository, sub *models.Subscription, payment *models.Payment) error {
	if payment.Status != models.PaymentStatusCompleted {
		return fmt.Errorf("cannot record ledger entry for payment %s in status %s", payment.ID, payment.Status)
	}

	entry := &models.FinancialMovement{
		BusinessID:     sub.BusinessID,
		SubscriptionID: sub.ID,
		PaymentID:      payment.ID,
		Type:           models.MovementTypeSubscriptionRenewal,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		Status:         models.MovementStatusCompleted,
		TransactionID:  payment.TransactionID,
		Description:    fmt.Sprintf("Renewal of %s (%s)", sub.Plan.Name, payment.ExternalReference),
	}

	err := repo.AppendLedgerEntry(ctx, entry)
	if errors.Is(err, repository.ErrLedgerEntryExists) {
		log.Debug().Str("payment_id", payment.ID.String()).Msg("ledger entry already recorded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	metrics.RecordLedgerEntry()
	return nil
}
