package types

import (
	"testing"
	"time"
)

func TestStateClassification(t *testing.T) {
	for _, s := range TerminalStates() {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range BlocksAutoFixStates() {
		if !s.BlocksAutoFix() {
			t.Errorf("%s should block auto-fix", s)
		}
	}
	for _, s := range RequiresTriageStates() {
		if !s.RequiresTriage() {
			t.Errorf("%s should require triage", s)
		}
	}
	if StateApprovedForFix.IsTerminal() || StateApprovedForFix.BlocksAutoFix() || StateApprovedForFix.RequiresTriage() {
		t.Error("approved_for_fix should carry no restriction")
	}
	if State("bogus").IsValid() {
		t.Error("bogus state should not validate")
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, s := range TerminalStates() {
		if got := ValidNextStates(s); len(got) != 0 {
			t.Errorf("terminal state %s has outgoing edges: %v", s, got)
		}
	}
}

func TestCanTransitionTo(t *testing.T) {
	lc := NewIssueLifecycle("acme/widgets", 1)

	if !lc.CanTransitionTo(StateTriaging) {
		t.Error("new -> triaging should be valid")
	}
	if lc.CanTransitionTo(StateMerged) {
		t.Error("new -> merged should be invalid")
	}
	if !lc.CanTransitionTo(StateSpam) {
		t.Error("new -> spam (rejection outcome) should be valid")
	}
}

func TestHappyPathTransitions(t *testing.T) {
	lc := NewIssueLifecycle("acme/widgets", 7)
	path := []State{
		StateTriaging, StateTriaged, StateApprovedForFix,
		StateBuilding, StatePRCreated, StatePRApproved, StateMerged,
	}
	for _, next := range path {
		res := lc.Transition(next, "automation", "advance", nil)
		if res.HasConflict {
			t.Fatalf("transition to %s: unexpected conflict %s: %s", next, res.ConflictType, res.Message)
		}
	}
	if lc.CurrentState != StateMerged {
		t.Errorf("expected merged, got %s", lc.CurrentState)
	}
	if len(lc.Transitions) != len(path) {
		t.Errorf("expected %d transitions recorded, got %d", len(path), len(lc.Transitions))
	}
	// Audit log entries chain correctly.
	prev := StateNew
	for i, tr := range lc.Transitions {
		if tr.FromState != prev {
			t.Errorf("transition %d: from=%s, want %s", i, tr.FromState, prev)
		}
		prev = tr.ToState
	}
}

func TestInvalidTransitionLeavesStateUnchanged(t *testing.T) {
	lc := NewIssueLifecycle("acme/widgets", 2)

	res := lc.Transition(StateMerged, "automation", "skip ahead", nil)
	if !res.HasConflict {
		t.Fatal("expected conflict for new -> merged")
	}
	if res.ConflictType != ConflictInvalidTransition {
		t.Errorf("conflict type = %s, want %s", res.ConflictType, ConflictInvalidTransition)
	}
	if lc.CurrentState != StateNew {
		t.Errorf("state changed on invalid transition: %s", lc.CurrentState)
	}
	if len(lc.Transitions) != 0 {
		t.Errorf("invalid transition was recorded: %d entries", len(lc.Transitions))
	}
}

func TestForceTransitionBypassesGraph(t *testing.T) {
	lc := NewIssueLifecycle("acme/widgets", 3)
	lc.Transition(StateTriaging, "automation", "", nil)
	lc.Transition(StateSpam, "classifier", "looks like spam", nil)

	// Terminal state: normal transition out is impossible.
	if res := lc.Transition(StateTriaged, "automation", "", nil); !res.HasConflict {
		t.Fatal("expected conflict leaving terminal state via normal transition")
	}

	if err := lc.ForceTransition(StateTriaged, "alice", "false positive", nil); err != nil {
		t.Fatalf("force transition: %v", err)
	}
	if lc.CurrentState != StateTriaged {
		t.Errorf("state = %s, want triaged", lc.CurrentState)
	}
	last := lc.Transitions[len(lc.Transitions)-1]
	if !last.Forced {
		t.Error("forced transition not flagged in audit log")
	}

	if err := lc.ForceTransition(State("nonsense"), "alice", "", nil); err == nil {
		t.Error("force transition to invalid state should error")
	}
}

func TestCheckAutoFixAllowed(t *testing.T) {
	blocked := map[State]ConflictType{}
	for _, s := range RequiresTriageStates() {
		blocked[s] = ConflictTriageRequired
	}
	for _, s := range BlocksAutoFixStates() {
		blocked[s] = ConflictBlockedByClassification
	}

	for _, s := range AllStates() {
		lc := NewIssueLifecycle("acme/widgets", 4)
		lc.CurrentState = s
		res := lc.CheckAutoFixAllowed()
		want, shouldBlock := blocked[s]
		if shouldBlock {
			if !res.HasConflict {
				t.Errorf("state %s: expected auto-fix conflict", s)
			} else if res.ConflictType != want {
				t.Errorf("state %s: conflict type = %s, want %s", s, res.ConflictType, want)
			}
			if res.BlockingState != s {
				t.Errorf("state %s: blocking state = %s", s, res.BlockingState)
			}
		} else if res.HasConflict {
			t.Errorf("state %s: unexpected conflict %s", s, res.ConflictType)
		}
	}
}

func TestCheckPRReviewRequired(t *testing.T) {
	lc := NewIssueLifecycle("acme/widgets", 5)
	lc.CurrentState = StatePRCreated
	if res := lc.CheckPRReviewRequired(); !res.HasConflict || res.ConflictType != ConflictReviewRequired {
		t.Errorf("pr_created should require review, got %+v", res)
	}
	lc.CurrentState = StatePRApproved
	if res := lc.CheckPRReviewRequired(); res.HasConflict {
		t.Errorf("pr_approved should not require review, got %+v", res)
	}
}

func TestLockMutualExclusion(t *testing.T) {
	lc := NewIssueLifecycle("acme/widgets", 6)

	if !lc.AcquireLock("worker-a") {
		t.Fatal("first acquire should succeed")
	}
	if lc.AcquireLock("worker-b") {
		t.Error("second acquire should fail")
	}
	if lc.LockedBy != "worker-a" {
		t.Errorf("locked_by = %q, want worker-a", lc.LockedBy)
	}
	if lc.ReleaseLock("worker-b") {
		t.Error("non-owner release should fail")
	}
	if !lc.IsLocked() {
		t.Error("lock should still be held after non-owner release")
	}
	if !lc.ReleaseLock("worker-a") {
		t.Error("owner release should succeed")
	}
	if lc.ReleaseLock("worker-a") {
		t.Error("double release should fail")
	}
	if lc.IsLocked() {
		t.Error("lock should be free")
	}
}

func TestLifecycleValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*IssueLifecycle)
		wantErr bool
	}{
		{"valid", func(l *IssueLifecycle) {}, false},
		{"missing repo", func(l *IssueLifecycle) { l.Repo = "" }, true},
		{"bad issue number", func(l *IssueLifecycle) { l.IssueNumber = 0 }, true},
		{"bad state", func(l *IssueLifecycle) { l.CurrentState = "nope" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewIssueLifecycle("acme/widgets", 8)
			tt.mutate(lc)
			err := lc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGracePeriodIsActive(t *testing.T) {
	now := time.Now().UTC()
	g := &GracePeriodEntry{
		IssueNumber:  42,
		TriggerLabel: "auto-fix",
		TriggeredBy:  "bot",
		TriggeredAt:  now,
		ExpiresAt:    now.Add(5 * time.Minute),
	}
	if !g.IsActive(now) {
		t.Error("fresh entry should be active")
	}
	if g.IsActive(now.Add(6 * time.Minute)) {
		t.Error("expired entry should be inactive")
	}
	g.Cancelled = true
	if g.IsActive(now) {
		t.Error("cancelled entry should be inactive")
	}
	var nilEntry *GracePeriodEntry
	if nilEntry.IsActive(now) {
		t.Error("nil entry should be inactive")
	}
}

func TestParsedCommandReason(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"simple", []string{"--reason", "test"}, "test"},
		{"multiword", []string{"--reason", "false", "positive"}, "false positive"},
		{"none", []string{}, ""},
		{"dangling flag", []string{"--reason"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &ParsedCommand{Command: CommandNotSpam, Args: tt.args}
			if got := p.Reason(); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}
