package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studybuddy/internal/model"
)

type Options struct {
	Driver string
	// DSN is used by mysql; Path by sqlite.
	DSN  string
	Path string
}

// New opens the configured database and pings it.
func New(ctx context.Context, opts Options) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch opts.Driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(opts.DSN), gormCfg)
	case "sqlite":
		if dir := filepath.Dir(opts.Path); dir != "." && opts.Path != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir failed: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(opts.Path), gormCfg)
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get %s sql db failed: %w", opts.Driver, err)
	}

	if opts.Driver == "sqlite" {
		// one writer keeps sqlite from returning SQLITE_BUSY under concurrent writes
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(1 * time.Hour)
		sqlDB.SetConnMaxIdleTime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping %s failed: %w", opts.Driver, err)
	}

	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Subject{},
		&model.Profile{},
		&model.StudyDocument{},
		&model.DocumentPage{},
		&model.QuestionEntry{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
