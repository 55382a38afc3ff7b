// Package warden provides a minimal public API for embedding warden's
// policy and concurrency control core in custom orchestration.
//
// Most automation should shell out to the warden CLI. This package exports
// only the essential types and constructors needed for Go-based extensions
// that want to use warden's storage and lifecycle layers programmatically.
package warden

import (
	"os"
	"path/filepath"

	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/storage/file"
	"github.com/wardenhq/warden/internal/storage/sqlite"
	"github.com/wardenhq/warden/internal/types"
)

// Core types for working with issue lifecycles
type (
	State          = types.State
	IssueLifecycle = types.IssueLifecycle
	ConflictResult = types.ConflictResult
	ConflictType   = types.ConflictType
	OverrideRecord = types.OverrideRecord
)

// Lifecycle state constants
const (
	StateNew            = types.StateNew
	StateTriaging       = types.StateTriaging
	StateTriaged        = types.StateTriaged
	StateApprovedForFix = types.StateApprovedForFix
	StateBuilding       = types.StateBuilding
	StatePRCreated      = types.StatePRCreated
	StatePRApproved     = types.StatePRApproved
	StateMerged         = types.StateMerged
	StateClosed         = types.StateClosed
	StateWontFix        = types.StateWontFix
	StateSpam           = types.StateSpam
	StateDuplicate      = types.StateDuplicate
	StateRejected       = types.StateRejected
)

// Storage provides the minimal interface for extension orchestration
type Storage = storage.Storage

// NewFileStorage opens a warden file-backed state directory for
// programmatic access. The directory is created if missing.
func NewFileStorage(stateDir string) (Storage, error) {
	return file.New(stateDir)
}

// NewSQLiteStorage opens a warden SQLite database for programmatic access.
func NewSQLiteStorage(dbPath string) (Storage, error) {
	return sqlite.New(dbPath)
}

// FindStateDir discovers the warden state directory using warden's standard
// search order:
//  1. $WARDEN_STATE_DIR environment variable
//  2. .warden/ in current directory or ancestors
//  3. ~/.warden (fallback)
//
// Returns empty string if nothing is found at (1) or (2) and (3) doesn't exist.
func FindStateDir() string {
	// 1. Check environment variable
	if envDir := os.Getenv("WARDEN_STATE_DIR"); envDir != "" {
		return envDir
	}

	// 2. Search for .warden/ in current directory and ancestors
	if found := findStateDirInTree(); found != "" {
		return found
	}

	// 3. Try home directory default
	if home, err := os.UserHomeDir(); err == nil {
		defaultDir := filepath.Join(home, ".warden")
		if info, err := os.Stat(defaultDir); err == nil && info.IsDir() {
			return defaultDir
		}
	}

	return ""
}

// findStateDirInTree walks up the directory tree looking for .warden/
func findStateDirInTree() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		wardenDir := filepath.Join(dir, ".warden")
		if info, err := os.Stat(wardenDir); err == nil && info.IsDir() {
			return wardenDir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
