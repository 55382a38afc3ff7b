// Package storage defines the interface for warden state backends.
package storage

import (
	"context"
	"errors"

	"github.com/wardenhq/warden/internal/types"
)

// ErrVersionConflict is returned by SaveLifecycle when the record on disk has
// a newer version than the one being written (optimistic concurrency).
var ErrVersionConflict = errors.New("lifecycle version conflict")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines the interface for warden state backends
type Storage interface {
	// Lifecycles
	GetLifecycle(ctx context.Context, repo string, issueNumber int) (*types.IssueLifecycle, error)
	// SaveLifecycle persists the record, enforcing compare-and-swap on
	// Version: the stored version must equal lifecycle.Version, and the
	// write bumps it by one (mirrored into the passed struct).
	SaveLifecycle(ctx context.Context, lifecycle *types.IssueLifecycle) error
	ListLifecycles(ctx context.Context, repo string) ([]*types.IssueLifecycle, error)

	// Overrides (append-only history)
	AppendOverride(ctx context.Context, record *types.OverrideRecord) error
	ListOverrides(ctx context.Context, filter types.OverrideFilter) ([]*types.OverrideRecord, error)

	// Grace periods (one entry per issue number; saving replaces)
	GetGracePeriod(ctx context.Context, issueNumber int) (*types.GracePeriodEntry, error)
	SaveGracePeriod(ctx context.Context, entry *types.GracePeriodEntry) error
	ListGracePeriods(ctx context.Context) ([]*types.GracePeriodEntry, error)

	// Metadata (internal state like the store format version)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// Lifecycle
	Close() error

	// Storage location (for diagnostics)
	Path() string
}

// Config holds backend configuration
type Config struct {
	Backend string // "file" or "sqlite"
	Path    string // state directory (file) or database file path (sqlite)
}
