package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is a saved instrument a business can be charged with
type PaymentMethod struct {
	Base
	BusinessID    uuid.UUID `gorm:"type:uuid;index" json:"business_id"`
	ProviderToken string    `gorm:"type:varchar(255);not null" json:"-"`
	Brand         string    `gorm:"type:varchar(30)" json:"brand"`
	LastFour      string    `gorm:"type:varchar(4)" json:"last_four"`
	ExpMonth      int       `json:"exp_month"`
	ExpYear       int       `json:"exp_year"`
	IsDefault     bool      `gorm:"default:false" json:"is_default"`
	IsActive      bool      `gorm:"not null" json:"is_active"`
}

// IsExpired compares the card expiry against the calendar month of now.
// A card is valid through the last day of its expiry month.
func (m *PaymentMethod) IsExpired(now time.Time) bool {
	year, month := now.Year(), int(now.Month())
	if m.ExpYear != year {
		return m.ExpYear < year
	}
	return m.ExpMonth < month
}
