// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface, including the change-feed hub behind its watch
// methods.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/hmallik/taskally/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store implements storage.Store using SQLite. Writes publish change
// notifications to an in-process hub; watches re-read their state on every
// relevant notification.
type Store struct {
	db  *sql.DB
	hub *hub
	now func() time.Time
}

// New creates a new Store with the given database path. It creates the
// parent directories and runs migrations automatically.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc's driver does not serialize writers; a single connection
	// avoids SQLITE_BUSY under concurrent watches and writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, hub: newHub(), now: time.Now}, nil
}

// Close closes the database connection and shuts down all active watches.
func (s *Store) Close() error {
	s.hub.close()
	return s.db.Close()
}

// toMillis converts a time to the unix-millisecond representation stored
// in the database.
func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// fromMillis converts a stored unix-millisecond value back to a UTC time.
func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func millisPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

// placeholders returns "?, ?, ..." with n placeholders, for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	out := "?"
	for i := 1; i < n; i++ {
		out += ", ?"
	}
	return out
}
