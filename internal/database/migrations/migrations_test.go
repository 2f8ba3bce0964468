package migrations

import (
	"testing"

	"github.com/bizflow/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestRunMigrationsCreatesBillingTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, RunMigrations(db))
	// second run is a no-op
	require.NoError(t, RunMigrations(db))

	for _, model := range []interface{}{
		&models.Business{}, &models.Plan{}, &models.PaymentMethod{}, &models.Subscription{},
		&models.Payment{}, &models.FinancialMovement{}, &models.WebhookEvent{},
	} {
		assert.True(t, db.Migrator().HasTable(model))
	}
}

func TestMigrationIDsAreOrdered(t *testing.T) {
	for i := 1; i < len(migrationsList); i++ {
		assert.Less(t, migrationsList[i-1].ID, migrationsList[i].ID)
	}
}
