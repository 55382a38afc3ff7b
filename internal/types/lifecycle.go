package types

import (
	"fmt"
	"time"
)

// StateTransition is one entry in an issue's append-only transition log.
// Immutable once recorded.
type StateTransition struct {
	FromState State             `json:"from_state"`
	ToState   State             `json:"to_state"`
	Timestamp time.Time         `json:"timestamp"`
	Actor     string            `json:"actor"`
	Reason    string            `json:"reason,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Forced    bool              `json:"forced,omitempty"`
}

// IssueLifecycle is the per-issue aggregate: current workflow state, the
// transition audit log, and a cooperative exclusive lock. It is created on
// first reference to an issue and never deleted.
type IssueLifecycle struct {
	IssueNumber  int               `json:"issue_number"`
	Repo         string            `json:"repo"`
	CurrentState State             `json:"current_state"`
	Transitions  []StateTransition `json:"transitions"`
	LockedBy     string            `json:"locked_by,omitempty"`
	LockedAt     *time.Time        `json:"locked_at,omitempty"`
	SpecID       string            `json:"spec_id,omitempty"`
	PRNumber     *int              `json:"pr_number,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`

	// Version is an optimistic-concurrency counter bumped on every save.
	Version int64 `json:"version"`
}

// NewIssueLifecycle creates a lifecycle in the initial NEW state.
func NewIssueLifecycle(repo string, issueNumber int) *IssueLifecycle {
	now := time.Now().UTC()
	return &IssueLifecycle{
		IssueNumber:  issueNumber,
		Repo:         repo,
		CurrentState: StateNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks if the lifecycle has valid field values
func (l *IssueLifecycle) Validate() error {
	if l.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	if l.IssueNumber <= 0 {
		return fmt.Errorf("issue_number must be positive (got %d)", l.IssueNumber)
	}
	if !l.CurrentState.IsValid() {
		return fmt.Errorf("invalid state: %s", l.CurrentState)
	}
	return nil
}

// CanTransitionTo reports whether the fixed transition graph allows moving
// from the current state to target.
func (l *IssueLifecycle) CanTransitionTo(target State) bool {
	for _, next := range transitionGraph[l.CurrentState] {
		if next == target {
			return true
		}
	}
	return false
}

// Transition moves the lifecycle to newState if the transition graph allows
// it. On an invalid edge it returns an INVALID_TRANSITION conflict and leaves
// the aggregate untouched.
func (l *IssueLifecycle) Transition(newState State, actor, reason string, metadata map[string]string) ConflictResult {
	if !newState.IsValid() {
		return Conflict(ConflictInvalidTransition, l.CurrentState,
			fmt.Sprintf("unknown state %q", newState),
			"use a valid lifecycle state")
	}
	if !l.CanTransitionTo(newState) {
		return Conflict(ConflictInvalidTransition, l.CurrentState,
			fmt.Sprintf("cannot transition from %s to %s", l.CurrentState, newState),
			fmt.Sprintf("valid next states: %v", ValidNextStates(l.CurrentState)))
	}
	l.record(newState, actor, reason, metadata, false)
	return NoConflict()
}

// ForceTransition bypasses the transition graph. It exists solely for human
// overrides; automation code must use Transition. Every forced move is
// flagged in the audit log so it stays reviewable.
func (l *IssueLifecycle) ForceTransition(newState State, actor, reason string, metadata map[string]string) error {
	if !newState.IsValid() {
		return fmt.Errorf("invalid state: %s", newState)
	}
	l.record(newState, actor, reason, metadata, true)
	return nil
}

func (l *IssueLifecycle) record(newState State, actor, reason string, metadata map[string]string, forced bool) {
	now := time.Now().UTC()
	l.Transitions = append(l.Transitions, StateTransition{
		FromState: l.CurrentState,
		ToState:   newState,
		Timestamp: now,
		Actor:     actor,
		Reason:    reason,
		Metadata:  metadata,
		Forced:    forced,
	})
	l.CurrentState = newState
	l.UpdatedAt = now
}

// CheckAutoFixAllowed answers whether an automated fix may start on this
// issue right now.
func (l *IssueLifecycle) CheckAutoFixAllowed() ConflictResult {
	if l.CurrentState.RequiresTriage() {
		return Conflict(ConflictTriageRequired, l.CurrentState,
			fmt.Sprintf("issue is %s; triage must complete before auto-fix", l.CurrentState),
			"run triage and wait for the triaged state")
	}
	if l.CurrentState.BlocksAutoFix() {
		return Conflict(ConflictBlockedByClassification, l.CurrentState,
			fmt.Sprintf("issue is classified %s; auto-fix is not allowed", l.CurrentState),
			"a human can reverse the classification with /not-spam or /force-retry")
	}
	return NoConflict()
}

// CheckPRReviewRequired answers whether the issue's PR is still waiting on
// human review. The conflict exists exactly while the PR has been created
// but not yet approved.
func (l *IssueLifecycle) CheckPRReviewRequired() ConflictResult {
	if l.CurrentState == StatePRCreated {
		return Conflict(ConflictReviewRequired, l.CurrentState,
			"pull request is awaiting human review",
			"approve or reject the pull request")
	}
	return NoConflict()
}

// AcquireLock claims the cooperative exclusive lock for component. It
// succeeds only while the lifecycle is unlocked; a second caller gets false
// with no side effect. The lock never expires on its own.
func (l *IssueLifecycle) AcquireLock(component string) bool {
	if l.LockedBy != "" {
		return false
	}
	now := time.Now().UTC()
	l.LockedBy = component
	l.LockedAt = &now
	l.UpdatedAt = now
	return true
}

// ReleaseLock releases the lock if component is the current holder. Any
// other caller, including a double release, gets false and the lock is
// unchanged.
func (l *IssueLifecycle) ReleaseLock(component string) bool {
	if l.LockedBy == "" || l.LockedBy != component {
		return false
	}
	l.LockedBy = ""
	l.LockedAt = nil
	l.UpdatedAt = time.Now().UTC()
	return true
}

// IsLocked reports whether any component currently holds the lock.
func (l *IssueLifecycle) IsLocked() bool {
	return l.LockedBy != ""
}

// LifecycleSummary tallies a repo's lifecycles by state.
type LifecycleSummary struct {
	Repo        string        `json:"repo"`
	Total       int           `json:"total"`
	ByState     map[State]int `json:"by_state"`
	Locked      int           `json:"locked"`
	Terminal    int           `json:"terminal"`
	AutoFixable int           `json:"auto_fixable"`
}
