package migrations

import (
	"github.com/bizflow/backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createWebhookEventsMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_webhook_events",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.WebhookEvent{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("webhook_events")
		},
	}
}

func init() {
	register(createWebhookEventsMigration())
}
