// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping for SQLite
// (pure Go driver) and MySQL, plus schema migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	mysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/wishloop/go-market-backend/internal/domain"
)

// Open opens a database handle for the given driver ("sqlite" or "mysql").
// The DSN is a file path for SQLite and a go-sql-driver DSN for MySQL.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "sqlite", "":
		return OpenSQLite(dsn)
	case "mysql":
		return OpenMySQL(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if the parent directory does not exist (instead of the
	// sqlite "out of memory (14)" error on some platforms).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	tunePool(db)
	return db, nil
}

// OpenMySQL opens a MySQL database with the same pool limits as the SQLite
// path. parseTime=true is required for time.Time scanning.
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	tunePool(db)
	return db, nil
}

func tunePool(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
}

// AutoMigrate creates or updates the schema for every domain model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Partner{},
		&domain.AgentProfile{},
		&domain.VendorProfile{},
		&domain.PromoterProfile{},
		&domain.Wish{},
		&domain.Deal{},
		&domain.DealOffer{},
		&domain.ShopOrder{},
		&domain.OrderItem{},
		&domain.OrderStatusEntry{},
		&domain.ChatRoom{},
		&domain.Message{},
		&domain.EarningsRecord{},
		&domain.PartnerLocation{},
		&domain.Session{},
	)
}
