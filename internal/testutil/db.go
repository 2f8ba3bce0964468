// Package testutil holds fixtures shared by package tests
package testutil

import (
	"testing"
	"time"

	"github.com/bizflow/backend/internal/database/migrations"
	"github.com/bizflow/backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database.
// The pool is pinned to one connection since every :memory: connection is its own database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrations.RunMigrations(db))
	return db
}

// Fixture bundles the rows of one billable tenant
type Fixture struct {
	Business      *models.Business
	Plan          *models.Plan
	Subscription  *models.Subscription
	PaymentMethod *models.PaymentMethod
}

// FixtureOption customizes a fixture before it is inserted
type FixtureOption func(*Fixture)

// WithoutPaymentMethod leaves the business without a saved card
func WithoutPaymentMethod() FixtureOption {
	return func(f *Fixture) { f.PaymentMethod = nil }
}

// WithSubscription lets a test tweak the subscription before insert
func WithSubscription(fn func(*models.Subscription)) FixtureOption {
	return func(f *Fixture) { fn(f.Subscription) }
}

// WithPaymentMethod lets a test tweak the card before insert
func WithPaymentMethod(fn func(*models.PaymentMethod)) FixtureOption {
	return func(f *Fixture) {
		if f.PaymentMethod != nil {
			fn(f.PaymentMethod)
		}
	}
}

// WithBusiness lets a test tweak the business before insert
func WithBusiness(fn func(*models.Business)) FixtureOption {
	return func(f *Fixture) { fn(f.Business) }
}

// SeedSubscription inserts a business on a monthly card plan whose trial ends at endDate
func SeedSubscription(t *testing.T, db *gorm.DB, endDate time.Time, opts ...FixtureOption) *Fixture {
	t.Helper()

	end := endDate
	f := &Fixture{
		Business: &models.Business{
			Name:       "Salon Aurora",
			OwnerEmail: "owner@aurora.test",
			OwnerName:  "Ana",
		},
		Plan: &models.Plan{
			Name:         "Pro Monthly",
			Price:        49.90,
			Currency:     "COP",
			Duration:     1,
			DurationType: models.DurationTypeMonthly,
			IsActive:     true,
		},
		Subscription: &models.Subscription{
			Status:        models.SubscriptionStatusTrial,
			BillingCycle:  models.BillingCycleMonthly,
			PaymentMethod: models.PaymentMethodTypeCard,
			StartDate:     end.AddDate(0, 0, -14),
			EndDate:       &end,
		},
		PaymentMethod: &models.PaymentMethod{
			ProviderToken: "tok_test_4242",
			Brand:         "VISA",
			LastFour:      "4242",
			ExpMonth:      12,
			ExpYear:       end.Year() + 3,
			IsDefault:     true,
			IsActive:      true,
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	require.NoError(t, db.Create(f.Business).Error)
	require.NoError(t, db.Create(f.Plan).Error)

	f.Subscription.BusinessID = f.Business.ID
	f.Subscription.PlanID = f.Plan.ID
	require.NoError(t, db.Omit("Business", "Plan").Create(f.Subscription).Error)

	if f.PaymentMethod != nil {
		f.PaymentMethod.BusinessID = f.Business.ID
		require.NoError(t, db.Create(f.PaymentMethod).Error)
	}
	return f
}
