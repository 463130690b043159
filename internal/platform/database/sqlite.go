package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	_ "github.com/mattn/go-sqlite3"
)

// New opens the portal store. WAL keeps the batch jobs and the API
// from blocking each other; busy_timeout covers the writer handoff.
func New(cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", cfg.Path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
