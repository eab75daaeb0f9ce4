package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sqliteDriver is go-sqlite3 with LOWER replaced by a Unicode-aware
// version; the built-in one only folds ASCII.
const sqliteDriver = "sqlite3_unicode"

func init() {
	sql.Register(sqliteDriver, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", unicodeLower, true)
		},
	})
}

// unicodeLower folds text and blob values and passes everything else,
// including NULL, through unchanged.
func unicodeLower(v interface{}) interface{} {
	switch s := v.(type) {
	case string:
		return strings.ToLower(s)
	case []byte:
		if s == nil {
			return nil
		}
		return strings.ToLower(string(s))
	default:
		return v
	}
}

// ConnectDatabase opens the database for driver ("postgres" or "sqlite").
// Unique-constraint violations surface as gorm.ErrDuplicatedKey.
func ConnectDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.New(sqlite.Config{DriverName: sqliteDriver, DSN: dsn})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, err
		}
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

func MigrateDatabase(db *gorm.DB) error {
	tables := []interface{}{
		&models.User{},
		&models.Project{},
		&models.ProjectMembership{},
		&models.Task{},
		&models.File{},
	}

	if err := db.AutoMigrate(tables...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log.Debug().Int("tables", len(tables)).Msg("database migrated")

	return nil
}
