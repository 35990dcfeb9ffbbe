package database

import (
	"fmt"
	"log"

	"github.com/gdg-garage/club-booking-api/internal/config"
	"github.com/gdg-garage/club-booking-api/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func Connect(cfg *config.Config) *gorm.DB {
	dsn := cfg.DatabasePath
	if cfg.DatabaseDriver == DriverPostgres {
		dsn = cfg.DatabaseURL
	}

	db, err := Open(cfg.DatabaseDriver, dsn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return db
}

// Open connects with the named driver and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if db.Dialector.Name() == DriverSQLite {
		// SQLite has a single writer; one connection keeps :memory: databases shared
		// and turns writer contention into queueing instead of SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Slot{},
		&models.SlotEnrollment{},
		&models.Event{},
		&models.EventRegistration{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// ForUpdate locks the selected rows for the rest of the transaction.
// The sqlite driver drops the clause; its single writer already serializes.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockScope takes a transaction-scoped lock on an arbitrary key, used to guard
// scans that have no single row to lock (the overlap check for a venue and day).
func LockScope(tx *gorm.DB, key string) error {
	if tx.Dialector.Name() != DriverPostgres {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
		return fmt.Errorf("advisory lock %q: %w", key, err)
	}
	return nil
}
