// Package orm is the relational index of the registry: a derived, queryable
// mirror of the content store used for filtering, sorting and pagination. It
// is rebuildable at any time by replaying the content store's manifests.
package orm

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"component-registry/config"
)

// DB wraps the gorm handle behind the index's narrow method set. No ad hoc
// queries from callers.
type DB struct {
	dbGorm *gorm.DB
}

// Init connects to Postgres and runs migrations.
func Init(cfg *config.AppConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host='%s' port='%d' user='%s' password='%s' dbname='%s' sslmode='%s'",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	dsnRedacted := strings.ReplaceAll(dsn, cfg.Database.Password, "*****")
	log.Debug().
		Msgf("Connecting to postgres using the following information: %s", dsnRedacted)

	gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	log.Debug().Msg("Successfully connected to the database")

	err = gormDB.AutoMigrate(&Component{}, &Version{}, &Ref{}, &VersionLineage{})
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &DB{dbGorm: gormDB}, nil
}

// UseTransaction returns a DB bound to an open transaction.
func (db *DB) UseTransaction(tx *gorm.DB) *DB {
	return &DB{dbGorm: tx}
}
