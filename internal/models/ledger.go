package models

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MovementType classifies a ledger entry
type MovementType string

const (
	MovementTypeSubscriptionRenewal MovementType = "SUBSCRIPTION_RENEWAL"
)

// MovementStatus is the settlement status of a ledger entry
type MovementStatus string

const (
	MovementStatusCompleted MovementStatus = "COMPLETED"
)

// ErrLedgerImmutable is returned when code tries to change a written ledger entry
var ErrLedgerImmutable = errors.New("ledger entries are append-only")

// FinancialMovement is an append-only ledger entry for money that actually moved
type FinancialMovement struct {
	Base
	BusinessID     uuid.UUID      `gorm:"type:uuid;index" json:"business_id"`
	SubscriptionID uuid.UUID      `gorm:"type:uuid;index" json:"subscription_id"`
	PaymentID      uuid.UUID      `gorm:"type:uuid;uniqueIndex" json:"payment_id"`
	Type           MovementType   `gorm:"type:varchar(40);not null" json:"type"`
	Amount         float64        `gorm:"type:decimal(20,2);not null" json:"amount"`
	Currency       string         `gorm:"type:varchar(3);not null" json:"currency"`
	Status         MovementStatus `gorm:"type:varchar(20);not null" json:"status"`
	TransactionID  string         `gorm:"type:varchar(100)" json:"transaction_id"`
	Description    string         `gorm:"type:text" json:"description"`
}

// BeforeUpdate rejects any mutation of a persisted entry
func (m *FinancialMovement) BeforeUpdate(tx *gorm.DB) error {
	return ErrLedgerImmutable
}

// BeforeDelete rejects deletion of a persisted entry
func (m *FinancialMovement) BeforeDelete(tx *gorm.DB) error {
	return ErrLedgerImmutable
}
