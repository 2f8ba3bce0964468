package models

import (
	"time"
)

// Business is a tenant of the platform. Billing state hangs off it.
type Business struct {
	Base
	Name         string     `gorm:"type:varchar(255);not null" json:"name"`
	OwnerEmail   string     `gorm:"type:varchar(255);not null" json:"owner_email"`
	OwnerName    string     `gorm:"type:varchar(255)" json:"owner_name"`
	IsLifetime   bool       `gorm:"default:false" json:"is_lifetime"`
	TrialEndDate *time.Time `json:"trial_end_date"`
}

// InTrial reports whether the business is still inside its trial window at now
func (b *Business) InTrial(now time.Time) bool {
	return b.TrialEndDate != nil && !now.After(*b.TrialEndDate)
}
