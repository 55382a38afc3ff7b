package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestLifecycleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetLifecycle(ctx, "acme/widgets", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	lc := types.NewIssueLifecycle("acme/widgets", 1)
	lc.Transition(types.StateTriaging, "bot", "start triage", nil)
	if err := s.SaveLifecycle(ctx, lc); err != nil {
		t.Fatalf("SaveLifecycle: %v", err)
	}
	if lc.Version != 1 {
		t.Errorf("version after first save = %d, want 1", lc.Version)
	}

	got, err := s.GetLifecycle(ctx, "acme/widgets", 1)
	if err != nil {
		t.Fatalf("GetLifecycle: %v", err)
	}
	if got.CurrentState != types.StateTriaging {
		t.Errorf("state = %s, want triaging", got.CurrentState)
	}
	if len(got.Transitions) != 1 {
		t.Errorf("transitions = %d, want 1", len(got.Transitions))
	}
}

func TestSaveLifecycleVersionConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lc := types.NewIssueLifecycle("acme/widgets", 2)
	if err := s.SaveLifecycle(ctx, lc); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// A writer holding a stale copy must be rejected.
	stale := types.NewIssueLifecycle("acme/widgets", 2)
	stale.Version = 0
	err := s.SaveLifecycle(ctx, stale)
	if !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// The current copy saves fine.
	if err := s.SaveLifecycle(ctx, lc); err != nil {
		t.Fatalf("second save with current version: %v", err)
	}
	if lc.Version != 2 {
		t.Errorf("version = %d, want 2", lc.Version)
	}
}

func TestCorruptedLifecycleTreatedAsAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path := s.lifecyclePath("acme/widgets", 3)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetLifecycle(ctx, "acme/widgets", 3); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("corrupted record should read as absent, got %v", err)
	}
}

func TestListLifecyclesFiltersByRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, repo := range []string{"acme/widgets", "acme/widgets", "acme/gadgets"} {
		lc := types.NewIssueLifecycle(repo, i+1)
		if err := s.SaveLifecycle(ctx, lc); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListLifecycles(ctx, "acme/widgets")
	if err != nil {
		t.Fatalf("ListLifecycles: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("listed %d lifecycles, want 2", len(got))
	}
}

func TestOverrideHistoryAppendAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(issue int, actor string, ot types.OverrideType) *types.OverrideRecord {
		return &types.OverrideRecord{
			ID:            uuid.NewString(),
			OverrideType:  ot,
			IssueNumber:   issue,
			Repo:          "acme/widgets",
			Actor:         actor,
			OriginalState: types.StateSpam,
			NewState:      types.StateTriaged,
			CreatedAt:     time.Now().UTC(),
		}
	}
	for _, rec := range []*types.OverrideRecord{
		mk(1, "alice", types.OverrideNotSpam),
		mk(2, "bob", types.OverrideForceRetry),
		mk(1, "alice", types.OverrideCancelAutofix),
	} {
		if err := s.AppendOverride(ctx, rec); err != nil {
			t.Fatalf("AppendOverride: %v", err)
		}
	}

	all, err := s.ListOverrides(ctx, types.OverrideFilter{})
	if err != nil {
		t.Fatalf("ListOverrides: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("listed %d records, want 3", len(all))
	}

	issue := 1
	byIssue, err := s.ListOverrides(ctx, types.OverrideFilter{IssueNumber: &issue})
	if err != nil {
		t.Fatal(err)
	}
	if len(byIssue) != 2 {
		t.Errorf("filtered %d records for issue 1, want 2", len(byIssue))
	}

	if err := s.AppendOverride(ctx, &types.OverrideRecord{}); err == nil {
		t.Error("appending an invalid record should fail")
	}
}

func TestGracePeriodRegistry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetGracePeriod(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now := time.Now().UTC()
	entry := &types.GracePeriodEntry{
		IssueNumber:  42,
		TriggerLabel: "auto-fix",
		TriggeredBy:  "bot",
		TriggeredAt:  now,
		ExpiresAt:    now.Add(5 * time.Minute),
	}
	if err := s.SaveGracePeriod(ctx, entry); err != nil {
		t.Fatalf("SaveGracePeriod: %v", err)
	}

	got, err := s.GetGracePeriod(ctx, 42)
	if err != nil {
		t.Fatalf("GetGracePeriod: %v", err)
	}
	if got.TriggerLabel != "auto-fix" {
		t.Errorf("trigger label = %q", got.TriggerLabel)
	}

	// A new entry for the same issue supersedes the old one.
	entry2 := *entry
	entry2.TriggerLabel = "auto-merge"
	if err := s.SaveGracePeriod(ctx, &entry2); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetGracePeriod(ctx, 42)
	if got.TriggerLabel != "auto-merge" {
		t.Errorf("superseded entry not replaced, label = %q", got.TriggerLabel)
	}

	list, err := s.ListGracePeriods(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("listed %d entries, want 1", len(list))
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetMetadata(ctx, "format_version"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetMetadata(ctx, "format_version", "v0.1.0"); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}
	got, err := s.GetMetadata(ctx, "format_version")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got != "v0.1.0" {
		t.Errorf("metadata = %q", got)
	}
}
