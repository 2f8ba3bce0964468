package migrations

import (
	"github.com/bizflow/backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createBillingCatalogMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_billing_catalog",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.Business{},
				&models.Plan{},
				&models.PaymentMethod{},
				&models.Subscription{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("subscriptions", "payment_methods", "plans", "businesses")
		},
	}
}

func init() {
	register(createBillingCatalogMigration())
}
