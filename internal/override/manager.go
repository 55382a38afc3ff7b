package override

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wardenhq/warden/internal/lifecycle"
	"github.com/wardenhq/warden/internal/oplog"
	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/types"
)

// Manager executes human override commands and manages grace-period veto
// windows. State-changing commands bypass the transition graph via the
// lifecycle manager's ForceTransition and leave an OverrideRecord behind.
type Manager struct {
	store      storage.Storage
	lifecycles *lifecycle.Manager
	log        *oplog.Logger

	// now is the clock source, swappable in tests.
	now func() time.Time
}

// NewManager creates an override manager. log may be nil.
func NewManager(store storage.Storage, lifecycles *lifecycle.Manager, log *oplog.Logger) *Manager {
	return &Manager{
		store:      store,
		lifecycles: lifecycles,
		log:        log,
		now:        time.Now,
	}
}

// commandTarget maps a state-changing command to its override type and the
// state it forces the issue into.
func commandTarget(cmd types.CommandType) (types.OverrideType, types.State, bool) {
	switch cmd {
	case types.CommandNotSpam:
		return types.OverrideNotSpam, types.StateTriaged, true
	case types.CommandForceRetry:
		return types.OverrideForceRetry, types.StateApprovedForFix, true
	case types.CommandApproveSpec:
		return types.OverrideApproveSpec, types.StateApprovedForFix, true
	case types.CommandCancelAutofix:
		return types.OverrideCancelAutofix, types.StateTriaged, true
	}
	return "", "", false
}

// ExecuteCommand dispatches a parsed command against an issue. Read-only
// commands return informational text; state-changing commands record an
// OverrideRecord and force the lifecycle into the command's target state.
func (m *Manager) ExecuteCommand(ctx context.Context, cmd *types.ParsedCommand, repo string, issueNumber int, prNumber *int) (string, error) {
	if cmd == nil {
		return "", fmt.Errorf("nil command")
	}

	switch cmd.Command {
	case types.CommandHelp:
		return HelpText(), nil
	case types.CommandStatus:
		return m.statusText(ctx, repo, issueNumber)
	}

	overrideType, newState, ok := commandTarget(cmd.Command)
	if !ok {
		return "", fmt.Errorf("unknown command type %q", cmd.Command)
	}

	original := types.StateNew
	if lc, err := m.lifecycles.Get(ctx, repo, issueNumber); err == nil {
		original = lc.CurrentState
	}

	reason := cmd.Reason()
	lc, err := m.lifecycles.ForceTransition(ctx, repo, issueNumber, newState, cmd.Author, reason,
		map[string]string{"command": string(cmd.Command)})
	if err != nil {
		return "", fmt.Errorf("failed to apply override: %w", err)
	}

	rec := &types.OverrideRecord{
		ID:            uuid.NewString(),
		OverrideType:  overrideType,
		IssueNumber:   issueNumber,
		PRNumber:      prNumber,
		Repo:          repo,
		Actor:         cmd.Author,
		Reason:        reason,
		OriginalState: original,
		NewState:      lc.CurrentState,
		CreatedAt:     m.now().UTC(),
	}
	if err := m.store.AppendOverride(ctx, rec); err != nil {
		return "", fmt.Errorf("failed to record override: %w", err)
	}
	m.log.Logf("override %s on %s#%d by %s: %s -> %s", overrideType, repo, issueNumber, cmd.Author, original, lc.CurrentState)

	// Cancelling the autofix also vetoes any pending grace window.
	if cmd.Command == types.CommandCancelAutofix {
		if _, err := m.CancelGracePeriod(ctx, issueNumber, cmd.Author); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("override %s applied by %s: %s -> %s", overrideType, cmd.Author, original, lc.CurrentState), nil
}

func (m *Manager) statusText(ctx context.Context, repo string, issueNumber int) (string, error) {
	var b strings.Builder
	lc, err := m.lifecycles.Get(ctx, repo, issueNumber)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return "", err
		}
		fmt.Fprintf(&b, "%s#%d: no lifecycle recorded yet (would start as %s)\n", repo, issueNumber, types.StateNew)
	} else {
		fmt.Fprintf(&b, "%s#%d: state=%s", repo, issueNumber, lc.CurrentState)
		if lc.IsLocked() {
			fmt.Fprintf(&b, " locked_by=%s", lc.LockedBy)
		}
		fmt.Fprintf(&b, " transitions=%d\n", len(lc.Transitions))
	}

	if entry, err := m.GetGracePeriod(ctx, issueNumber); err == nil && entry.IsActive(m.now()) {
		fmt.Fprintf(&b, "grace period active until %s (trigger %s by %s)\n",
			entry.ExpiresAt.Format(time.RFC3339), entry.TriggerLabel, entry.TriggeredBy)
	}

	history, err := m.GetOverrideHistory(ctx, &issueNumber)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "overrides: %d\n", len(history))
	return b.String(), nil
}

// StartGracePeriod opens (or supersedes) the veto window for an issue.
func (m *Manager) StartGracePeriod(ctx context.Context, issueNumber int, triggerLabel, triggeredBy string, graceMinutes int) (*types.GracePeriodEntry, error) {
	now := m.now().UTC()
	entry := &types.GracePeriodEntry{
		IssueNumber:  issueNumber,
		TriggerLabel: triggerLabel,
		TriggeredBy:  triggeredBy,
		TriggeredAt:  now,
		ExpiresAt:    now.Add(time.Duration(graceMinutes) * time.Minute),
	}
	if err := m.store.SaveGracePeriod(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetGracePeriod returns the stored entry for issueNumber, active or not.
func (m *Manager) GetGracePeriod(ctx context.Context, issueNumber int) (*types.GracePeriodEntry, error) {
	return m.store.GetGracePeriod(ctx, issueNumber)
}

// IsInGracePeriod reports whether a non-cancelled, unexpired window is open.
func (m *Manager) IsInGracePeriod(ctx context.Context, issueNumber int) (bool, error) {
	entry, err := m.store.GetGracePeriod(ctx, issueNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return entry.IsActive(m.now()), nil
}

// CancelGracePeriod vetoes the pending action. Returns false when there is
// no active window to cancel (including a second cancel).
func (m *Manager) CancelGracePeriod(ctx context.Context, issueNumber int, cancelledBy string) (bool, error) {
	entry, err := m.store.GetGracePeriod(ctx, issueNumber)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !entry.IsActive(m.now()) {
		// Already cancelled or already expired; nothing left to veto.
		return false, nil
	}

	now := m.now().UTC()
	entry.Cancelled = true
	entry.CancelledBy = cancelledBy
	entry.CancelledAt = &now
	if err := m.store.SaveGracePeriod(ctx, entry); err != nil {
		return false, err
	}
	m.log.Logf("grace period for issue %d cancelled by %s", issueNumber, cancelledBy)
	return true, nil
}

// GetOverrideHistory returns override records, optionally filtered by issue.
func (m *Manager) GetOverrideHistory(ctx context.Context, issueNumber *int) ([]*types.OverrideRecord, error) {
	return m.store.ListOverrides(ctx, types.OverrideFilter{IssueNumber: issueNumber})
}

// GetOverrideStatistics aggregates the persisted history for a repo.
func (m *Manager) GetOverrideStatistics(ctx context.Context, repo string) (*types.OverrideStatistics, error) {
	recs, err := m.store.ListOverrides(ctx, types.OverrideFilter{Repo: &repo})
	if err != nil {
		return nil, err
	}
	stats := &types.OverrideStatistics{
		Repo:    repo,
		ByType:  map[types.OverrideType]int{},
		ByActor: map[string]int{},
	}
	for _, rec := range recs {
		stats.Total++
		stats.ByType[rec.OverrideType]++
		stats.ByActor[rec.Actor]++
	}
	return stats, nil
}
