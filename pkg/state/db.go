// Package state persists ingestion state: the archived-batch set, run
// history, the last digest, and the consecutive-failure counter. SQLite is
// authoritative; the on-disk archive layout exists for auditability.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const DefaultDBName = "deck-digest.db"

type Store struct {
	*sql.DB
	path string
}

// Open opens or creates the state database inside dir, initializing the
// schema on first use.
func Open(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("state: failed to create state directory: %w", err)
	}

	dbPath := filepath.Join(dir, DefaultDBName)
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("state: failed to open database: %w", err)
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("state: failed to enable foreign keys: %w", err)
	}

	store := &Store{DB: sqlDB, path: dbPath}
	if err := store.ensureSchemaExists(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("state: failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) ensureSchemaExists() error {
	var tableName string
	err := s.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='archived_batches'").Scan(&tableName)
	if err == sql.ErrNoRows {
		_, err := s.Exec(schema)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }
