// Package lifecycle persists issue lifecycles and answers policy questions
// about whether an automated action may run against an issue right now.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/wardenhq/warden/internal/oplog"
	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/types"
)

// Known operation names for CheckConflict.
const (
	OpAutoFix  = "auto_fix"
	OpPRReview = "pr_review"
)

// Manager is the durable store of one IssueLifecycle per (repo, issue)
// plus aggregate queries. All mutations go through load -> mutate -> save
// with optimistic concurrency on the version counter.
type Manager struct {
	store storage.Storage
	log   *oplog.Logger
}

// NewManager creates a manager over the given backend. log may be nil.
func NewManager(store storage.Storage, log *oplog.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// Get loads the lifecycle for (repo, issueNumber), or storage.ErrNotFound.
func (m *Manager) Get(ctx context.Context, repo string, issueNumber int) (*types.IssueLifecycle, error) {
	return m.store.GetLifecycle(ctx, repo, issueNumber)
}

// GetOrCreate loads the lifecycle, creating and persisting a fresh NEW-state
// record on miss. Corrupted records surface as a miss, so the audit trail
// restarts rather than the process crashing.
func (m *Manager) GetOrCreate(ctx context.Context, repo string, issueNumber int) (*types.IssueLifecycle, error) {
	lc, err := m.store.GetLifecycle(ctx, repo, issueNumber)
	if err == nil {
		return lc, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	lc = types.NewIssueLifecycle(repo, issueNumber)
	if err := m.store.SaveLifecycle(ctx, lc); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			// Another worker created it between our read and write.
			return m.store.GetLifecycle(ctx, repo, issueNumber)
		}
		return nil, err
	}
	return lc, nil
}

// Save persists a lifecycle.
func (m *Manager) Save(ctx context.Context, lc *types.IssueLifecycle) error {
	return m.store.SaveLifecycle(ctx, lc)
}

// Transition performs load -> validate -> save in one call. The returned
// ConflictResult carries INVALID_TRANSITION without touching storage when
// the edge is not in the graph.
func (m *Manager) Transition(ctx context.Context, repo string, issueNumber int, newState types.State, actor, reason string, metadata map[string]string) (types.ConflictResult, error) {
	lc, err := m.GetOrCreate(ctx, repo, issueNumber)
	if err != nil {
		return types.ConflictResult{}, err
	}

	res := lc.Transition(newState, actor, reason, metadata)
	if res.HasConflict {
		// A rejected edge is a logic error somewhere upstream; log loudly.
		m.log.Logf("invalid transition on %s#%d: %s", repo, issueNumber, res.Message)
		return res, nil
	}
	if err := m.store.SaveLifecycle(ctx, lc); err != nil {
		return types.ConflictResult{}, fmt.Errorf("failed to persist transition: %w", err)
	}
	return res, nil
}

// ForceTransition is the override escape hatch: it bypasses the transition
// graph and persists the result. Only the override subsystem should call it.
func (m *Manager) ForceTransition(ctx context.Context, repo string, issueNumber int, newState types.State, actor, reason string, metadata map[string]string) (*types.IssueLifecycle, error) {
	lc, err := m.GetOrCreate(ctx, repo, issueNumber)
	if err != nil {
		return nil, err
	}
	if err := lc.ForceTransition(newState, actor, reason, metadata); err != nil {
		return nil, err
	}
	if err := m.store.SaveLifecycle(ctx, lc); err != nil {
		return nil, fmt.Errorf("failed to persist forced transition: %w", err)
	}
	m.log.Logf("forced transition on %s#%d by %s: -> %s (%s)", repo, issueNumber, actor, newState, reason)
	return lc, nil
}

// AcquireLock claims the issue's cooperative lock for component. Returns
// false without side effect when another component holds it.
func (m *Manager) AcquireLock(ctx context.Context, repo string, issueNumber int, component string) (bool, error) {
	lc, err := m.GetOrCreate(ctx, repo, issueNumber)
	if err != nil {
		return false, err
	}
	if !lc.AcquireLock(component) {
		return false, nil
	}
	if err := m.store.SaveLifecycle(ctx, lc); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			// Lost the race to another worker; treat as lock contention.
			return false, nil
		}
		return false, fmt.Errorf("failed to persist lock: %w", err)
	}
	return true, nil
}

// ReleaseLock releases the lock if component is the holder.
func (m *Manager) ReleaseLock(ctx context.Context, repo string, issueNumber int, component string) (bool, error) {
	lc, err := m.Get(ctx, repo, issueNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !lc.ReleaseLock(component) {
		return false, nil
	}
	if err := m.store.SaveLifecycle(ctx, lc); err != nil {
		return false, fmt.Errorf("failed to persist unlock: %w", err)
	}
	return true, nil
}

// CheckConflict answers whether requester may run operation against the
// issue right now. A lock held by someone else is CONCURRENT_OPERATION;
// otherwise the per-operation policy applies. Unknown operations conflict:
// the policy layer fails closed.
func (m *Manager) CheckConflict(ctx context.Context, repo string, issueNumber int, operation, requester string) (types.ConflictResult, error) {
	lc, err := m.GetOrCreate(ctx, repo, issueNumber)
	if err != nil {
		return types.ConflictResult{}, err
	}

	if lc.IsLocked() && lc.LockedBy != requester {
		return types.Conflict(types.ConflictConcurrentOperation, lc.CurrentState,
			fmt.Sprintf("issue is locked by %s", lc.LockedBy),
			"retry after the current operation releases the lock"), nil
	}

	switch operation {
	case OpAutoFix:
		return lc.CheckAutoFixAllowed(), nil
	case OpPRReview:
		return lc.CheckPRReviewRequired(), nil
	default:
		return types.Conflict(types.ConflictInvalidTransition, lc.CurrentState,
			fmt.Sprintf("unknown operation %q", operation),
			"use a registered operation name"), nil
	}
}

// GetAllInState returns every lifecycle for repo currently in state.
func (m *Manager) GetAllInState(ctx context.Context, repo string, state types.State) ([]*types.IssueLifecycle, error) {
	all, err := m.store.ListLifecycles(ctx, repo)
	if err != nil {
		return nil, err
	}
	var out []*types.IssueLifecycle
	for _, lc := range all {
		if lc.CurrentState == state {
			out = append(out, lc)
		}
	}
	return out, nil
}

// GetSummary tallies a repo's lifecycles by state.
func (m *Manager) GetSummary(ctx context.Context, repo string) (*types.LifecycleSummary, error) {
	all, err := m.store.ListLifecycles(ctx, repo)
	if err != nil {
		return nil, err
	}

	summary := &types.LifecycleSummary{
		Repo:    repo,
		ByState: map[types.State]int{},
	}
	for _, lc := range all {
		summary.Total++
		summary.ByState[lc.CurrentState]++
		if lc.IsLocked() {
			summary.Locked++
		}
		if lc.CurrentState.IsTerminal() {
			summary.Terminal++
		}
		if !lc.CheckAutoFixAllowed().HasConflict {
			summary.AutoFixable++
		}
	}
	return summary, nil
}
