// Package db opens the incident archive database.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	ModeDisabled = ""
	ModeSQLite   = "sqlite"
	ModeMySQL    = "mysql"
)

// Config selects and tunes the archive backend.
type Config struct {
	Mode       string        `mapstructure:"mode"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	MySQLDSN   string        `mapstructure:"mysql_dsn"`
	MaxOpen    int           `mapstructure:"max_open"`
	MaxIdle    int           `mapstructure:"max_idle"`
	MaxLife    time.Duration `mapstructure:"max_life"`
}

// Open returns a *gorm.DB for the configured mode, or nil when the archive
// is disabled.
func Open(cfg Config) (*gorm.DB, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch cfg.Mode {
	case ModeDisabled:
		return nil, nil
	case ModeSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		db, err := gorm.Open(sqlite.Open(path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// One writer; also keeps a :memory: database alive on a single connection.
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case ModeMySQL:
		db, err := gorm.Open(mysql.Open(cfg.MySQLDSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("db: open mysql: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpen)
		sqlDB.SetMaxIdleConns(cfg.MaxIdle)
		sqlDB.SetConnMaxLifetime(cfg.MaxLife)
		return db, nil
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
