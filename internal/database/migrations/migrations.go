package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// migrationsList holds all migrations in apply order
var migrationsList []*gormigrate.Migration

// RunMigrations runs all database migrations
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrationsList)

	if err := m.Migrate(); err != nil {
		log.Error().Err(err).Msg("could not migrate")
		return err
	}
	log.Info().Int("count", len(migrationsList)).Msg("migrations ran successfully")
	return nil
}

// register appends a migration; files call it from init in ID order
func register(m *gormigrate.Migration) {
	migrationsList = append(migrationsList, m)
}
