// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/wardenhq/warden/internal/storage"
	// Import SQLite driver
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
	closed atomic.Bool // Tracks whether Close() has been called
}

// New creates a new SQLite storage backend
func New(path string) (*SQLiteStorage, error) {
	// Convert :memory: to shared memory URL for consistent behavior across connections
	// SQLite creates separate in-memory databases for each connection to ":memory:",
	// but "file::memory:?cache=shared" creates a shared in-memory database.
	dbPath := path
	if path == ":memory:" {
		dbPath = "file::memory:?cache=shared"
	}

	// Ensure directory exists (skip for memory databases)
	if !strings.Contains(dbPath, ":memory:") {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency and busy timeout for parallel writes
	// _pragma=journal_mode(WAL) enables Write-Ahead Logging for better concurrency
	// _pragma=foreign_keys(ON) enforces foreign key constraints
	// _pragma=busy_timeout(30000) means wait up to 30 seconds for locks instead of failing immediately
	// _time_format=sqlite enables automatic parsing of DATETIME columns to time.Time
	connStr := dbPath
	if strings.Contains(dbPath, "?") {
		connStr += "&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	} else {
		connStr += "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(30000)&_time_format=sqlite"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Convert to absolute path for consistency
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	return &SQLiteStorage{db: db, dbPath: absPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.dbPath }

// Close closes the database connection. Safe to call more than once.
func (s *SQLiteStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// SetMetadata stores an internal key/value pair.
func (s *SQLiteStorage) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata: %w", err)
	}
	return nil
}

// GetMetadata returns the value for key or storage.ErrNotFound.
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata: %w", err)
	}
	return value, nil
}
