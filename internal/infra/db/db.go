// Package db persists import jobs, drafts and the confirmed ledger with gorm.
package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dvloznov/smart-ledger/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// Open connects to the configured database.
func Open(cfg config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("Open: unsupported driver %q", cfg.Driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormLog,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("Open: connect %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == "sqlite" {
		// SQLite allows a single writer.
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return conn, nil
}

// AutoMigrate creates or updates every table used by the service.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&ImportJobRecord{},
		&ImportFileRecord{},
		&FileBlobRecord{},
		&DraftRecord{},
		&TransactionRecord{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return nil
}
