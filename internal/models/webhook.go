package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent is the audit record of a notification received from the payment gateway
type WebhookEvent struct {
	Base
	Event         string     `gorm:"type:varchar(100)" json:"event"`
	Environment   string     `gorm:"type:varchar(20)" json:"environment"`
	Reference     string     `gorm:"type:varchar(100);index" json:"reference"`
	TransactionID string     `gorm:"type:varchar(100);index" json:"transaction_id"`
	GatewayStatus string     `gorm:"type:varchar(30)" json:"gateway_status"`
	PaymentID     *uuid.UUID `gorm:"type:uuid;index" json:"payment_id,omitempty"`
	RawData       JSON       `gorm:"type:jsonb" json:"raw_data"`
	Verified      bool       `gorm:"default:false" json:"verified"`
	Processed     bool       `gorm:"default:false" json:"processed"`
	ProcessedAt   *time.Time `json:"processed_at"`
	Outcome       string     `gorm:"type:text" json:"outcome"`
}
