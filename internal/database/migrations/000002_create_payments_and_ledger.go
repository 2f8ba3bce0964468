package migrations

import (
	"github.com/bizflow/backend/internal/models"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func createPaymentsAndLedgerMigration() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_payments_and_ledger",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&models.Payment{}, &models.FinancialMovement{}); err != nil {
				return err
			}
			if tx.Dialector.Name() != "postgres" {
				return nil
			}
			// Reject UPDATE/DELETE on the ledger even for writes that bypass the ORM hooks.
			return tx.Exec(`
				CREATE OR REPLACE FUNCTION financial_movements_immutable() RETURNS trigger AS $$
				BEGIN
					RAISE EXCEPTION 'financial movements are append-only';
				END;
				$$ LANGUAGE plpgsql;

				DROP TRIGGER IF EXISTS financial_movements_no_mutation ON financial_movements;
				CREATE TRIGGER financial_movements_no_mutation
					BEFORE UPDATE OR DELETE ON financial_movements
					FOR EACH ROW EXECUTE FUNCTION financial_movements_immutable();
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			if tx.Dialector.Name() == "postgres" {
				if err := tx.Exec(`
					DROP TRIGGER IF EXISTS financial_movements_no_mutation ON financial_movements;
					DROP FUNCTION IF EXISTS financial_movements_immutable();
				`).Error; err != nil {
					return err
				}
			}
			return tx.Migrator().DropTable("financial_movements", "payments")
		},
	}
}

func init() {
	register(createPaymentsAndLedgerMigration())
}
