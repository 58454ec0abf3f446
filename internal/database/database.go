package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/lectern/internal/entities"
	"github.com/mrlokans/lectern/internal/kv"
)

// Request handlers and task workers write records concurrently
const sqliteOptions = "?_journal=WAL&_busy_timeout=5000&_foreign_keys=on"

// Database holds the sqlite connection behind the record store.
type Database struct {
	DB   *gorm.DB
	path string
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+sqliteOptions), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&entities.Record{}); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Printf("[DB] Records database ready at %s", dbPath)

	return &Database{DB: db, path: dbPath}, nil
}

// Path returns the file the database was opened from.
func (d *Database) Path() string {
	return d.path
}

// Records returns a record store backed by this database.
func (d *Database) Records() *kv.GormStore {
	return kv.NewGormStore(d.DB)
}

// Ping verifies the underlying connection is alive.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeQuietly(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}
