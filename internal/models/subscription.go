package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusTrial     SubscriptionStatus = "TRIAL"
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusOverdue   SubscriptionStatus = "OVERDUE"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusCanceled  SubscriptionStatus = "CANCELED"
)

// IsTerminal reports whether no sweep may move the subscription out of this status
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCanceled
}

// BillingCycle represents the recurrence class of a subscription
type BillingCycle string

const (
	BillingCycleWeekly   BillingCycle = "WEEKLY"
	BillingCycleMonthly  BillingCycle = "MONTHLY"
	BillingCycleYearly   BillingCycle = "YEARLY"
	BillingCycleLifetime BillingCycle = "LIFETIME"
)

// PaymentMethodType is how a subscription gets paid
type PaymentMethodType string

const (
	PaymentMethodTypeCard   PaymentMethodType = "CARD"
	PaymentMethodTypeCash   PaymentMethodType = "CASH"
	PaymentMethodTypeManual PaymentMethodType = "MANUAL"
	PaymentMethodTypeFree   PaymentMethodType = "FREE"
)

// IsManual reports whether payments for this type are confirmed by hand instead of charged
func (t PaymentMethodType) IsManual() bool {
	switch t {
	case PaymentMethodTypeCash, PaymentMethodTypeManual, PaymentMethodTypeFree:
		return true
	}
	return false
}

// Suspension and cancellation reasons recorded on a subscription
const (
	SuspensionReasonMissingPaymentMethod = "missing_payment_method"
	SuspensionReasonExpiredPaymentMethod = "expired_payment_method"
	SuspensionReasonPaymentFailed        = "payment_failed_max_attempts"
	SuspensionReasonOverdue              = "overdue_more_than_30_days"
	CancellationReasonPeriodEnd          = "cancel_at_period_end"
)

// Subscription represents a business subscription to a plan
type Subscription struct {
	Base
	BusinessID          uuid.UUID          `gorm:"type:uuid;index" json:"business_id"`
	Business            Business           `gorm:"foreignKey:BusinessID" json:"-"`
	PlanID              uuid.UUID          `gorm:"type:uuid;index" json:"plan_id"`
	Plan                Plan               `gorm:"foreignKey:PlanID" json:"-"`
	Status              SubscriptionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	BillingCycle        BillingCycle       `gorm:"type:varchar(20);not null" json:"billing_cycle"`
	PaymentMethod       PaymentMethodType  `gorm:"type:varchar(20);not null;default:'CARD'" json:"payment_method"`
	StartDate           time.Time          `json:"start_date"`
	EndDate             *time.Time         `gorm:"index" json:"end_date"`
	NextPaymentDate     *time.Time         `json:"next_payment_date"`
	LastPaymentDate     *time.Time         `json:"last_payment_date"`
	LastPaymentAmount   float64            `gorm:"type:decimal(20,2);default:0" json:"last_payment_amount"`
	CancelAtPeriodEnd   bool               `gorm:"default:false" json:"cancel_at_period_end"`
	CanceledAt          *time.Time         `json:"canceled_at"`
	SuspendedAt         *time.Time         `json:"suspended_at"`
	SuspensionReason    string             `gorm:"type:varchar(100)" json:"suspension_reason,omitempty"`
	FailedPaymentCount  int                `gorm:"default:0" json:"failed_payment_count"`
	NextRetryDate       *time.Time         `gorm:"index" json:"next_retry_date"`
	TrialReminderSentAt *time.Time         `json:"trial_reminder_sent_at"`
	Metadata            JSON               `gorm:"type:jsonb" json:"metadata"`
}

// DueDate returns the date the next payment is expected, falling back to the period end
func (s *Subscription) DueDate() *time.Time {
	if s.NextPaymentDate != nil {
		return s.NextPaymentDate
	}
	return s.EndDate
}

// SetMetadata records an audit breadcrumb
func (s *Subscription) SetMetadata(key string, value interface{}) {
	if s.Metadata == nil {
		s.Metadata = JSON{}
	}
	s.Metadata[key] = value
}
