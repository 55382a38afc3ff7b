package lifecycle

import (
	"context"
	"testing"

	"github.com/wardenhq/warden/internal/storage/file"
	"github.com/wardenhq/warden/internal/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := file.New(t.TempDir())
	if err != nil {
		t.Fatalf("file.New: %v", err)
	}
	return NewManager(store, nil)
}

func TestGetOrCreateDefaultsToNew(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	lc, err := m.GetOrCreate(ctx, "acme/widgets", 1)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if lc.CurrentState != types.StateNew {
		t.Errorf("state = %s, want new", lc.CurrentState)
	}

	// Second call loads the persisted record rather than recreating it.
	again, err := m.GetOrCreate(ctx, "acme/widgets", 1)
	if err != nil {
		t.Fatal(err)
	}
	if again.Version != lc.Version {
		t.Errorf("version = %d, want %d", again.Version, lc.Version)
	}
}

func TestTransitionPersists(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	res, err := m.Transition(ctx, "acme/widgets", 2, types.StateTriaging, "bot", "start", nil)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if res.HasConflict {
		t.Fatalf("unexpected conflict: %+v", res)
	}

	lc, err := m.Get(ctx, "acme/widgets", 2)
	if err != nil {
		t.Fatal(err)
	}
	if lc.CurrentState != types.StateTriaging {
		t.Errorf("persisted state = %s", lc.CurrentState)
	}
}

func TestTransitionInvalidDoesNotPersist(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	res, err := m.Transition(ctx, "acme/widgets", 3, types.StateMerged, "bot", "", nil)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if !res.HasConflict || res.ConflictType != types.ConflictInvalidTransition {
		t.Fatalf("expected invalid transition conflict, got %+v", res)
	}

	lc, err := m.Get(ctx, "acme/widgets", 3)
	if err != nil {
		t.Fatal(err)
	}
	if lc.CurrentState != types.StateNew {
		t.Errorf("state mutated by invalid transition: %s", lc.CurrentState)
	}
	if len(lc.Transitions) != 0 {
		t.Errorf("invalid transition recorded: %d entries", len(lc.Transitions))
	}
}

func TestLockRoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	ok, err := m.AcquireLock(ctx, "acme/widgets", 4, "auto_fix")
	if err != nil || !ok {
		t.Fatalf("AcquireLock = %v, %v", ok, err)
	}
	ok, err = m.AcquireLock(ctx, "acme/widgets", 4, "pr_review")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second component acquired a held lock")
	}

	ok, err = m.ReleaseLock(ctx, "acme/widgets", 4, "pr_review")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("non-owner released the lock")
	}
	ok, err = m.ReleaseLock(ctx, "acme/widgets", 4, "auto_fix")
	if err != nil || !ok {
		t.Fatalf("owner release = %v, %v", ok, err)
	}

	// Releasing a lock on an issue that was never seen is a clean false.
	ok, err = m.ReleaseLock(ctx, "acme/widgets", 999, "auto_fix")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("released a lock on a nonexistent lifecycle")
	}
}

func TestCheckConflict(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Fresh issue: auto-fix requires triage first.
	res, err := m.CheckConflict(ctx, "acme/widgets", 5, OpAutoFix, "auto_fix")
	if err != nil {
		t.Fatal(err)
	}
	if res.ConflictType != types.ConflictTriageRequired {
		t.Errorf("conflict = %s, want triage_required", res.ConflictType)
	}

	// Lock held by someone else wins over everything.
	if ok, _ := m.AcquireLock(ctx, "acme/widgets", 5, "builder"); !ok {
		t.Fatal("lock")
	}
	res, err = m.CheckConflict(ctx, "acme/widgets", 5, OpAutoFix, "auto_fix")
	if err != nil {
		t.Fatal(err)
	}
	if res.ConflictType != types.ConflictConcurrentOperation {
		t.Errorf("conflict = %s, want concurrent_operation", res.ConflictType)
	}

	// The holder itself is not blocked by its own lock.
	res, err = m.CheckConflict(ctx, "acme/widgets", 5, OpAutoFix, "builder")
	if err != nil {
		t.Fatal(err)
	}
	if res.ConflictType == types.ConflictConcurrentOperation {
		t.Error("holder blocked by its own lock")
	}

	// Unknown operations fail closed.
	res, err = m.CheckConflict(ctx, "acme/widgets", 5, "deploy", "builder")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasConflict {
		t.Error("unknown operation did not conflict")
	}
}

func TestCheckConflictPRReview(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, s := range []types.State{types.StateTriaging, types.StateTriaged, types.StateApprovedForFix, types.StateBuilding, types.StatePRCreated} {
		if res, err := m.Transition(ctx, "acme/widgets", 6, s, "bot", "", nil); err != nil || res.HasConflict {
			t.Fatalf("advance to %s: %+v %v", s, res, err)
		}
	}

	res, err := m.CheckConflict(ctx, "acme/widgets", 6, OpPRReview, "bot")
	if err != nil {
		t.Fatal(err)
	}
	if res.ConflictType != types.ConflictReviewRequired {
		t.Errorf("conflict = %s, want review_required", res.ConflictType)
	}

	if res, err := m.Transition(ctx, "acme/widgets", 6, types.StatePRApproved, "alice", "lgtm", nil); err != nil || res.HasConflict {
		t.Fatalf("approve: %+v %v", res, err)
	}
	res, _ = m.CheckConflict(ctx, "acme/widgets", 6, OpPRReview, "bot")
	if res.HasConflict {
		t.Errorf("approved PR still conflicts: %+v", res)
	}
}

func TestForceTransitionEscapesTerminalState(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	if _, err := m.Transition(ctx, "acme/widgets", 7, types.StateSpam, "classifier", "", nil); err != nil {
		t.Fatal(err)
	}
	lc, err := m.ForceTransition(ctx, "acme/widgets", 7, types.StateTriaged, "alice", "not spam", nil)
	if err != nil {
		t.Fatalf("ForceTransition: %v", err)
	}
	if lc.CurrentState != types.StateTriaged {
		t.Errorf("state = %s", lc.CurrentState)
	}

	persisted, _ := m.Get(ctx, "acme/widgets", 7)
	last := persisted.Transitions[len(persisted.Transitions)-1]
	if !last.Forced {
		t.Error("forced flag not persisted")
	}
}

func TestGetAllInStateAndSummary(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	// Issues 1,2 triaging; issue 3 spam; issue 4 stays new and locked.
	for _, n := range []int{1, 2} {
		if _, err := m.Transition(ctx, "acme/widgets", n, types.StateTriaging, "bot", "", nil); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Transition(ctx, "acme/widgets", 3, types.StateSpam, "classifier", "", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.GetOrCreate(ctx, "acme/widgets", 4); err != nil {
		t.Fatal(err)
	}
	if ok, _ := m.AcquireLock(ctx, "acme/widgets", 4, "triage"); !ok {
		t.Fatal("lock")
	}

	triaging, err := m.GetAllInState(ctx, "acme/widgets", types.StateTriaging)
	if err != nil {
		t.Fatal(err)
	}
	if len(triaging) != 2 {
		t.Errorf("triaging = %d, want 2", len(triaging))
	}

	summary, err := m.GetSummary(ctx, "acme/widgets")
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 4 {
		t.Errorf("total = %d, want 4", summary.Total)
	}
	if summary.ByState[types.StateTriaging] != 2 {
		t.Errorf("by_state[triaging] = %d", summary.ByState[types.StateTriaging])
	}
	if summary.Locked != 1 {
		t.Errorf("locked = %d, want 1", summary.Locked)
	}
	if summary.Terminal != 1 {
		t.Errorf("terminal = %d, want 1", summary.Terminal)
	}
	// Issues 1,2 are triaging (needs triage), 3 is spam (blocked), 4 is new:
	// nothing is auto-fixable yet.
	if summary.AutoFixable != 0 {
		t.Errorf("auto_fixable = %d, want 0", summary.AutoFixable)
	}
}
