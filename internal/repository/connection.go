package repository

import (
	"fmt"
	"log/slog"
	"time"

	"oee-analytics/internal/config"
	"oee-analytics/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func gormConfig(log *slog.Logger, logQueries bool) *gorm.Config {
	level := logger.Warn
	if logQueries {
		level = logger.Info
	}
	return &gorm.Config{
		Logger: logger.New(slog.NewLogLogger(log.Handler(), slog.LevelWarn), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
}

// OpenPrimary opens the remote PostgreSQL store. The connection is lazy so
// the process can start while the primary is unreachable.
func OpenPrimary(cfg config.PrimaryStoreConfig, log *slog.Logger) (*gorm.DB, error) {
	gcfg := gormConfig(log, cfg.LogQueries)
	gcfg.DisableAutomaticPing = true

	db, err := gorm.Open(postgres.Open(cfg.DSN), gcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get primary sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// OpenFallback opens (creating if needed) the process-local SQLite store and
// migrates its schema. path may be a file path or a sqlite DSN.
func OpenFallback(cfg config.FallbackStoreConfig, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), gormConfig(log, false))
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get fallback sql.DB: %w", err)
	}
	// SQLite allows a single writer
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate fallback store: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema for every model
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(model.All()...)
}

// Close closes the connection pool behind db
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
