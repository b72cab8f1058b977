package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	_ "github.com/mattn/go-sqlite3"
)

// NewSQLite opens the ledger database file, creating its directory if needed.
// The pool is capped at one connection: SQLite has a single writer anyway,
// and one connection keeps ":memory:" databases shared across queries.
func NewSQLite(cfg config.SQLiteConfig) (*sql.DB, error) {
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	params := url.Values{}
	params.Set("_foreign_keys", "on")
	params.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeout.Milliseconds()))
	if cfg.Path != ":memory:" {
		params.Set("_journal_mode", "WAL")
	}

	db, err := sql.Open("sqlite3", "file:"+cfg.Path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}
