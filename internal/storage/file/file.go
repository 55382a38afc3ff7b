// Package file implements the storage interface on top of a plain directory
// tree: one JSON document per lifecycle, an append-only JSONL history for
// overrides, and a keyed JSON registry for grace periods. All writes go
// through temp-file-plus-rename so a crash never leaves a half-written
// record.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/types"
	"github.com/wardenhq/warden/internal/utils"
)

const (
	lifecycleDir = "lifecycle"
	overrideDir  = "overrides"
	historyFile  = "history.jsonl"
	graceFile    = "graceperiods.json"
	metadataFile = "metadata.json"
)

// Store implements storage.Storage on a local directory.
type Store struct {
	root string
	mu   sync.Mutex // serializes read-modify-write sequences within this process
}

// New creates a file store rooted at dir, creating the layout if needed.
func New(dir string) (*Store, error) {
	root := utils.CanonicalizePath(dir)
	for _, sub := range []string{lifecycleDir, overrideDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	return &Store{root: root}, nil
}

// Path returns the state directory root.
func (s *Store) Path() string { return s.root }

// Close is a no-op for the file backend.
func (s *Store) Close() error { return nil }

func (s *Store) lifecyclePath(repo string, issueNumber int) string {
	return filepath.Join(s.root, lifecycleDir,
		fmt.Sprintf("%s-%d.json", utils.RepoSlug(repo), issueNumber))
}

// GetLifecycle loads one lifecycle record. A missing or corrupted file is
// reported as storage.ErrNotFound; callers treat that as "create fresh".
func (s *Store) GetLifecycle(ctx context.Context, repo string, issueNumber int) (*types.IssueLifecycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLifecycle(repo, issueNumber)
}

func (s *Store) loadLifecycle(repo string, issueNumber int) (*types.IssueLifecycle, error) {
	data, err := os.ReadFile(s.lifecyclePath(repo, issueNumber))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read lifecycle: %w", err)
	}
	var lc types.IssueLifecycle
	if err := json.Unmarshal(data, &lc); err != nil {
		// Corrupted record: recover by treating it as absent rather than
		// propagating a crash.
		return nil, storage.ErrNotFound
	}
	return &lc, nil
}

// SaveLifecycle writes the record atomically, enforcing compare-and-swap on
// the version counter.
func (s *Store) SaveLifecycle(ctx context.Context, lc *types.IssueLifecycle) error {
	if err := lc.Validate(); err != nil {
		return fmt.Errorf("invalid lifecycle: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLifecycle(lc.Repo, lc.IssueNumber)
	if err == nil && existing.Version != lc.Version {
		return fmt.Errorf("%w: stored=%d caller=%d", storage.ErrVersionConflict, existing.Version, lc.Version)
	}

	lc.Version++
	data, err := json.MarshalIndent(lc, "", "  ")
	if err != nil {
		lc.Version--
		return fmt.Errorf("failed to marshal lifecycle: %w", err)
	}
	if err := utils.AtomicWriteFile(s.lifecyclePath(lc.Repo, lc.IssueNumber), data, 0o644); err != nil {
		lc.Version--
		return err
	}
	return nil
}

// ListLifecycles returns every lifecycle persisted for repo.
func (s *Store) ListLifecycles(ctx context.Context, repo string) ([]*types.IssueLifecycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.root, lifecycleDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list lifecycles: %w", err)
	}

	prefix := utils.RepoSlug(repo) + "-"
	var out []*types.IssueLifecycle
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		var lc types.IssueLifecycle
		if err := json.Unmarshal(data, &lc); err != nil {
			continue // skip corrupted records
		}
		if lc.Repo == repo {
			out = append(out, &lc)
		}
	}
	return out, nil
}

// AppendOverride appends one record to the JSONL history file.
func (s *Store) AppendOverride(ctx context.Context, record *types.OverrideRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid override record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal override record: %w", err)
	}
	path := filepath.Join(s.root, overrideDir, historyFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open override history: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append override record: %w", err)
	}
	return nil
}

// ListOverrides reads the history file and applies the filter in order.
func (s *Store) ListOverrides(ctx context.Context, filter types.OverrideFilter) ([]*types.OverrideRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.root, overrideDir, historyFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open override history: %w", err)
	}
	defer func() { _ = f.Close() }()

	var out []*types.OverrideRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec types.OverrideRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue // skip corrupted lines
		}
		if matchOverride(&rec, filter) {
			out = append(out, &rec)
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan override history: %w", err)
	}
	return out, nil
}

func matchOverride(rec *types.OverrideRecord, filter types.OverrideFilter) bool {
	if filter.IssueNumber != nil && rec.IssueNumber != *filter.IssueNumber {
		return false
	}
	if filter.Repo != nil && rec.Repo != *filter.Repo {
		return false
	}
	if filter.Type != nil && rec.OverrideType != *filter.Type {
		return false
	}
	if filter.Actor != nil && rec.Actor != *filter.Actor {
		return false
	}
	return true
}

// graceRegistry is the on-disk shape of the grace period registry: one entry
// per issue number, keyed by the decimal issue number.
type graceRegistry map[string]*types.GracePeriodEntry

func (s *Store) loadGraceRegistry() (graceRegistry, error) {
	path := filepath.Join(s.root, overrideDir, graceFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return graceRegistry{}, nil
		}
		return nil, fmt.Errorf("failed to read grace period registry: %w", err)
	}
	reg := graceRegistry{}
	if err := json.Unmarshal(data, &reg); err != nil {
		return graceRegistry{}, nil // corrupted registry degrades to empty
	}
	return reg, nil
}

func (s *Store) saveGraceRegistry(reg graceRegistry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal grace period registry: %w", err)
	}
	return utils.AtomicWriteFile(filepath.Join(s.root, overrideDir, graceFile), data, 0o644)
}

// GetGracePeriod returns the entry for issueNumber or storage.ErrNotFound.
func (s *Store) GetGracePeriod(ctx context.Context, issueNumber int) (*types.GracePeriodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.loadGraceRegistry()
	if err != nil {
		return nil, err
	}
	entry, ok := reg[fmt.Sprintf("%d", issueNumber)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return entry, nil
}

// SaveGracePeriod stores the entry, superseding any prior one for the issue.
func (s *Store) SaveGracePeriod(ctx context.Context, entry *types.GracePeriodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.loadGraceRegistry()
	if err != nil {
		return err
	}
	reg[fmt.Sprintf("%d", entry.IssueNumber)] = entry
	return s.saveGraceRegistry(reg)
}

// ListGracePeriods returns all stored grace period entries.
func (s *Store) ListGracePeriods(ctx context.Context) ([]*types.GracePeriodEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, err := s.loadGraceRegistry()
	if err != nil {
		return nil, err
	}
	out := make([]*types.GracePeriodEntry, 0, len(reg))
	for _, e := range reg {
		out = append(out, e)
	}
	return out, nil
}

// SetMetadata stores an internal key/value pair.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMetadata()
	if err != nil {
		return err
	}
	meta[key] = value
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return utils.AtomicWriteFile(filepath.Join(s.root, metadataFile), data, 0o644)
}

// GetMetadata returns the value for key or storage.ErrNotFound.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.loadMetadata()
	if err != nil {
		return "", err
	}
	val, ok := meta[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return val, nil
}

func (s *Store) loadMetadata() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}
	meta := map[string]string{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return map[string]string{}, nil
	}
	return meta, nil
}
