package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizflow/backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRepository implements Repository on top of GORM
type GormRepository struct {
	db   *gorm.DB
	inTx bool
}

// NewGormRepository creates a new GormRepository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// locked adds FOR UPDATE when running inside a transaction. SQLite ignores the clause.
func (r *GormRepository) locked(ctx context.Context) *gorm.DB {
	q := r.conn(ctx)
	if r.inTx && r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Transaction runs fn inside a database transaction with a transaction-scoped repository
func (r *GormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx, inTx: true})
	})
}

// LoadSubscription loads a subscription with its plan and business
func (r *GormRepository) LoadSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.locked(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	if err := r.attachRelations(ctx, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// attachRelations loads plan and business separately so the row lock only covers the subscription
func (r *GormRepository) attachRelations(ctx context.Context, sub *models.Subscription) error {
	if err := r.conn(ctx).First(&sub.Plan, "id = ?", sub.PlanID).Error; err != nil {
		return fmt.Errorf("failed to load plan %s: %w", sub.PlanID, notFound(err))
	}
	if err := r.conn(ctx).First(&sub.Business, "id = ?", sub.BusinessID).Error; err != nil {
		return fmt.Errorf("failed to load business %s: %w", sub.BusinessID, notFound(err))
	}
	return nil
}

// SaveSubscription persists the subscription row without touching its associations
func (r *GormRepository) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.conn(ctx).Omit(clause.Associations).Save(sub).Error
}

// FindSubscriptionByBusiness returns the most recent subscription of a business
func (r *GormRepository) FindSubscriptionByBusiness(ctx context.Context, businessID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.conn(ctx).
		Preload("Plan").
		Preload("Business").
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// LoadPayment loads a payment by ID
func (r *GormRepository) LoadPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.locked(ctx).First(&payment, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

// SavePayment inserts or updates a payment
func (r *GormRepository) SavePayment(ctx context.Context, payment *models.Payment) error {
	return r.conn(ctx).Omit(clause.Associations).Save(payment).Error
}

// FindPaymentByReference finds a payment by the reference sent to the gateway.
// It takes no lock; callers lock the subscription and then re-read the payment with LoadPayment.
func (r *GormRepository) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.conn(ctx).Where("external_reference = ?", reference).First(&payment).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

// LatestPayment returns the newest payment of a subscription or nil
func (r *GormRepository) LatestPayment(ctx context.Context, subscriptionID uuid.UUID, statuses ...models.PaymentStatus) (*models.Payment, error) {
	q := r.conn(ctx).Where("subscription_id = ?", subscriptionID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	var payments []models.Payment
	if err := q.Order("created_at DESC").Limit(1).Find(&payments).Error; err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, nil
	}
	return &payments[0], nil
}

// HasPendingPayment reports whether a charge for the subscription is still in flight
func (r *GormRepository) HasPendingPayment(ctx context.Context, subscriptionID uuid.UUID) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&models.Payment{}).
		Where("subscription_id = ? AND status = ?", subscriptionID, models.PaymentStatusPending).
		Count(&count).Error
	return count > 0, err
}

// RecentPaymentReferences lists the newest payment references, used to diagnose unmatched webhooks
func (r *GormRepository) RecentPaymentReferences(ctx context.Context, limit int) ([]string, error) {
	var refs []string
	err := r.conn(ctx).Model(&models.Payment{}).
		Order("created_at DESC").
		Limit(limit).
		Pluck("external_reference", &refs).Error
	return refs, err
}

// FindDefaultPaymentMethod returns the default active payment method of a business
func (r *GormRepository) FindDefaultPaymentMethod(ctx context.Context, businessID uuid.UUID) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := r.conn(ctx).
		Where("business_id = ? AND is_default = ? AND is_active = ?", businessID, true, true).
		Order("created_at DESC").
		First(&method).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &method, nil
}

// SavePaymentMethod inserts or updates a payment method
func (r *GormRepository) SavePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	return r.conn(ctx).Save(method).Error
}

// AppendLedgerEntry writes a ledger entry. A second entry for the same payment is refused.
func (r *GormRepository) AppendLedgerEntry(ctx context.Context, entry *models.FinancialMovement) error {
	var count int64
	if err := r.conn(ctx).Model(&models.FinancialMovement{}).
		Where("payment_id = ?", entry.PaymentID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrLedgerEntryExists
	}
	return r.conn(ctx).Create(entry).Error
}

// ListLedgerEntries returns the ledger entries of a subscription, oldest first
func (r *GormRepository) ListLedgerEntries(ctx context.Context, subscriptionID uuid.UUID) ([]models.FinancialMovement, error) {
	var entries []models.FinancialMovement
	err := r.conn(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

// SaveWebhookEvent records or updates a received gateway notification
func (r *GormRepository) SaveWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return r.conn(ctx).Save(event).Error
}

// FindDueRenewals selects automatically-charged subscriptions whose period ends by cutoff
func (r *GormRepository) FindDueRenewals(ctx context.Context, cutoff time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.conn(ctx).
		Preload("Plan").
		Preload("Business").
		Where("status IN ?", []models.SubscriptionStatus{models.SubscriptionStatusTrial, models.SubscriptionStatusActive}).
		Where("payment_method = ?", models.PaymentMethodTypeCard).
		Where("billing_cycle <> ?", models.BillingCycleLifetime).
		Where("end_date IS NOT NULL AND end_date <= ?", cutoff).
		Order("end_date ASC").
		Find(&subs).Error
	return subs, err
}

// FindOverdueRetries selects overdue subscriptions whose retry date has arrived
func (r *GormRepository) FindOverdueRetries(ctx context.Context, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.conn(ctx).
		Preload("Plan").
		Preload("Business").
		Where("status = ?", models.SubscriptionStatusOverdue).
		Where("next_retry_date IS NOT NULL AND next_retry_date <= ?", now).
		Order("next_retry_date ASC").
		Find(&subs).Error
	return subs, err
}

// ListForStatusSweep returns every subscription whose status may still change
func (r *GormRepository) ListForStatusSweep(ctx context.Context) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.conn(ctx).
		Preload("Business").
		Where("status <> ?", models.SubscriptionStatusCanceled).
		Find(&subs).Error
	return subs, err
}

// FindTrialsEndingBefore returns trials ending between now and cutoff that were not reminded yet
func (r *GormRepository) FindTrialsEndingBefore(ctx context.Context, now, cutoff time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.conn(ctx).
		Preload("Plan").
		Preload("Business").
		Where("status = ?", models.SubscriptionStatusTrial).
		Where("trial_reminder_sent_at IS NULL").
		Where("end_date IS NOT NULL AND end_date > ? AND end_date <= ?", now, cutoff).
		Find(&subs).Error
	return subs, err
}
