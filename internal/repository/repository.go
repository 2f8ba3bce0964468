package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bizflow/backend/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrLedgerEntryExists is returned when a payment already has its ledger entry
	ErrLedgerEntryExists = errors.New("ledger entry already recorded for payment")
)

// Repository is the persistence boundary of the billing engine. Inside Transaction
// LoadSubscription and LoadPayment take row locks, always subscription first.
type Repository interface {
	LoadSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	SaveSubscription(ctx context.Context, sub *models.Subscription) error
	FindSubscriptionByBusiness(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error)

	LoadPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	SavePayment(ctx context.Context, payment *models.Payment) error
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	// LatestPayment returns the newest payment of the subscription, optionally restricted
	// to the given statuses. It returns nil without error when none exists.
	LatestPayment(ctx context.Context, subscriptionID uuid.UUID, statuses ...models.PaymentStatus) (*models.Payment, error)
	HasPendingPayment(ctx context.Context, subscriptionID uuid.UUID) (bool, error)
	RecentPaymentReferences(ctx context.Context, limit int) ([]string, error)

	FindDefaultPaymentMethod(ctx context.Context, businessID uuid.UUID) (*models.PaymentMethod, error)
	SavePaymentMethod(ctx context.Context, method *models.PaymentMethod) error

	AppendLedgerEntry(ctx context.Context, entry *models.FinancialMovement) error
	ListLedgerEntries(ctx context.Context, subscriptionID uuid.UUID) ([]models.FinancialMovement, error)

	SaveWebhookEvent(ctx context.Context, event *models.WebhookEvent) error

	FindDueRenewals(ctx context.Context, cutoff time.Time) ([]models.Subscription, error)
	FindOverdueRetries(ctx context.Context, now time.Time) ([]models.Subscription, error)
	ListForStatusSweep(ctx context.Context) ([]models.Subscription, error)
	FindTrialsEndingBefore(ctx context.Context, now, cutoff time.Time) ([]models.Subscription, error)

	Transaction(ctx context.Context, fn func(tx Repository) error) error
}
