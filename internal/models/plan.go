package models

import (
	"math"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// DurationType is the unit a plan's duration is expressed in
type DurationType string

const (
	DurationTypeDaily    DurationType = "DAILY"
	DurationTypeWeekly   DurationType = "WEEKLY"
	DurationTypeMonthly  DurationType = "MONTHLY"
	DurationTypeYearly   DurationType = "YEARLY"
	DurationTypeLifetime DurationType = "LIFETIME"
)

// Plan is a sellable subscription plan
type Plan struct {
	Base
	Name         string       `gorm:"type:varchar(255);not null" json:"name"`
	Slug         string       `gorm:"type:varchar(100);uniqueIndex" json:"slug"`
	Description  string       `gorm:"type:text" json:"description"`
	Price        float64      `gorm:"type:decimal(20,2);not null" json:"price"`
	Currency     string       `gorm:"type:varchar(3);not null" json:"currency"`
	Duration     int          `gorm:"default:1" json:"duration"`
	DurationType DurationType `gorm:"type:varchar(20);not null" json:"duration_type"`
	IsActive     bool         `gorm:"not null" json:"is_active"`
	Features     JSON         `gorm:"type:jsonb" json:"features"`
}

// BeforeCreate assigns the ID and derives a slug from the plan name when none is set
func (p *Plan) BeforeCreate(tx *gorm.DB) error {
	if err := p.Base.BeforeCreate(tx); err != nil {
		return err
	}
	if p.Slug == "" {
		p.Slug = slug.Make(p.Name) + "-" + p.ID.String()[:8]
	}
	return nil
}

// PriceInCents returns the plan price in minor currency units
func (p *Plan) PriceInCents() int64 {
	return int64(math.Round(p.Price * 100))
}
