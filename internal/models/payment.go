package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a subscription payment
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusCompleted     PaymentStatus = "COMPLETED"
	PaymentStatusAttemptFailed PaymentStatus = "ATTEMPT_FAILED"
	PaymentStatusFailed        PaymentStatus = "FAILED"
	PaymentStatusRejected      PaymentStatus = "REJECTED"
)

// IsTerminal reports whether the payment can no longer change
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRejected:
		return true
	}
	return false
}

// DefaultMaxPaymentAttempts is the attempt budget of a newly created payment
const DefaultMaxPaymentAttempts = 3

// Payment is one charge (and its retries) for a subscription period
type Payment struct {
	Base
	SubscriptionID    uuid.UUID         `gorm:"type:uuid;index" json:"subscription_id"`
	Subscription      Subscription      `gorm:"foreignKey:SubscriptionID" json:"-"`
	BusinessID        uuid.UUID         `gorm:"type:uuid;index" json:"business_id"`
	Amount            float64           `gorm:"type:decimal(20,2);not null" json:"amount"`
	NetAmount         float64           `gorm:"type:decimal(20,2);default:0" json:"net_amount"`
	Currency          string            `gorm:"type:varchar(3);not null" json:"currency"`
	Status            PaymentStatus     `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentMethod     PaymentMethodType `gorm:"type:varchar(20)" json:"payment_method"`
	ExternalReference string            `gorm:"type:varchar(100);uniqueIndex;not null" json:"external_reference"`
	TransactionID     string            `gorm:"type:varchar(100);index" json:"transaction_id"`
	PaymentAttempts   int               `gorm:"not null;default:1" json:"payment_attempts"`
	MaxAttempts       int               `gorm:"not null;default:3" json:"max_attempts"`
	LastAttemptAt     *time.Time        `json:"last_attempt_at"`
	FailureReason     string            `gorm:"type:text" json:"failure_reason,omitempty"`
	FailureHistory    FailureHistory    `gorm:"type:jsonb" json:"failure_history"`
	PaidAt            *time.Time        `json:"paid_at"`
	GatewayResponse   JSON              `gorm:"type:jsonb" json:"gateway_response"`
}

// NewPayment builds a pending first attempt for a subscription charge
func NewPayment(sub *Subscription, amount float64, currency, reference string, now time.Time) *Payment {
	return &Payment{
		SubscriptionID:    sub.ID,
		BusinessID:        sub.BusinessID,
		Amount:            amount,
		Currency:          currency,
		Status:            PaymentStatusPending,
		PaymentMethod:     sub.PaymentMethod,
		ExternalReference: reference,
		PaymentAttempts:   1,
		MaxAttempts:       DefaultMaxPaymentAttempts,
		LastAttemptAt:     &now,
	}
}
