package main

import (
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/infra/db"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// SchemaMigration is a row of schema_migrations.
type SchemaMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"type:varchar(255);not null"`
	AppliedAt time.Time `gorm:"not null"`
	Checksum  string    `gorm:"type:varchar(64)"`
	AppliedBy string    `gorm:"type:varchar(128)"`
}

func (SchemaMigration) TableName() string { return "schema_migrations" }

var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

var (
	configPath    = flag.String("config", os.Getenv("SMART_LEDGER_CONFIG"), "Path to a config file")
	appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir = flag.String("migrations", "migrations/postgres", "Path to migrations directory")
	auto          = flag.Bool("auto", false, "Run gorm AutoMigrate instead of SQL files")
)

func main() {
	flag.Parse()
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("Connected to database")

	if *auto {
		if err := db.AutoMigrate(conn); err != nil {
			log.Fatal().Err(err).Msg("AutoMigrate failed")
		}
		log.Info().Msg("AutoMigrate completed")
		return
	}

	migrations, err := readMigrations(resolveDir(*migrationsDir), log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	applied, err := applyMigrations(conn, migrations, *appliedBy, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	if applied == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("applied", applied).Msg("Successfully applied migrations")
	}
}

// resolveDir also accepts being run from cmd/migrate.
func resolveDir(dir string) string {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if alt := filepath.Join("..", "..", dir); dirExists(alt) {
			return alt
		}
	}
	return dir
}

func dirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

// readMigrations reads all migration files from dir, sorted by version.
func readMigrations(dir string, log zerolog.Logger) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	seen := make(map[int]string)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationPattern.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid version")
			continue
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %04d: %s and %s", version, prev, file.Name())
		}
		seen[version] = file.Name()

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      string(content),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// applyMigrations runs every migration not yet recorded, each in its own
// transaction together with its schema_migrations row.
func applyMigrations(conn *gorm.DB, migrations []Migration, by string, log zerolog.Logger) (int, error) {
	if err := conn.AutoMigrate(&SchemaMigration{}); err != nil {
		return 0, fmt.Errorf("ensuring schema_migrations: %w", err)
	}

	var existing []SchemaMigration
	if err := conn.Order("version ASC").Find(&existing).Error; err != nil {
		return 0, fmt.Errorf("reading applied migrations: %w", err)
	}
	applied := make(map[int]SchemaMigration, len(existing))
	for _, m := range existing {
		applied[m.Version] = m
	}

	count := 0
	for _, m := range migrations {
		if prev, ok := applied[m.Version]; ok {
			if prev.Checksum != "" && prev.Checksum != m.Checksum {
				log.Warn().Str("migration", m.Filename).Msg("Applied migration was modified after it ran")
			}
			log.Info().Str("migration", m.Filename).Msg("[SKIP] already applied")
			continue
		}

		log.Info().Str("migration", m.Filename).Msg("[RUN]")
		err := conn.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(m.SQL).Error; err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{
				Version:   m.Version,
				Name:      m.Name,
				AppliedAt: time.Now().UTC(),
				Checksum:  m.Checksum,
				AppliedBy: by,
			}).Error
		})
		if err != nil {
			return count, fmt.Errorf("executing %s: %w", m.Filename, err)
		}
		log.Info().Str("migration", m.Filename).Msg("[OK]")
		count++
	}
	return count, nil
}
