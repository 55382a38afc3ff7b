package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/types"
)

// GetLifecycle loads one lifecycle record with its full transition log.
func (s *SQLiteStorage) GetLifecycle(ctx context.Context, repo string, issueNumber int) (*types.IssueLifecycle, error) {
	lc := &types.IssueLifecycle{}
	var specID, lockedBy sql.NullString
	var prNumber sql.NullInt64
	var lockedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT repo, issue_number, current_state, spec_id, pr_number,
		       locked_by, locked_at, created_at, updated_at, version
		FROM lifecycles WHERE repo = ? AND issue_number = ?
	`, repo, issueNumber).Scan(
		&lc.Repo, &lc.IssueNumber, &lc.CurrentState, &specID, &prNumber,
		&lockedBy, &lockedAt, &lc.CreatedAt, &lc.UpdatedAt, &lc.Version,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lifecycle: %w", err)
	}

	lc.SpecID = specID.String
	lc.LockedBy = lockedBy.String
	if lockedAt.Valid {
		t := lockedAt.Time
		lc.LockedAt = &t
	}
	if prNumber.Valid {
		n := int(prNumber.Int64)
		lc.PRNumber = &n
	}

	transitions, err := s.getTransitions(ctx, repo, issueNumber)
	if err != nil {
		return nil, err
	}
	lc.Transitions = transitions
	return lc, nil
}

func (s *SQLiteStorage) getTransitions(ctx context.Context, repo string, issueNumber int) ([]types.StateTransition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT from_state, to_state, actor, reason, metadata, forced, timestamp
		FROM transitions WHERE repo = ? AND issue_number = ?
		ORDER BY seq ASC
	`, repo, issueNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.StateTransition
	for rows.Next() {
		var tr types.StateTransition
		var reason, metadata sql.NullString
		var forced int
		if err := rows.Scan(&tr.FromState, &tr.ToState, &tr.Actor, &reason, &metadata, &forced, &tr.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		tr.Reason = reason.String
		tr.Forced = forced != 0
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &tr.Metadata); err != nil {
				tr.Metadata = nil // corrupted metadata degrades to empty
			}
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transitions: %w", err)
	}
	return out, nil
}

// SaveLifecycle upserts the record inside a transaction, enforcing
// compare-and-swap on the version counter and appending any new transition
// log entries.
func (s *SQLiteStorage) SaveLifecycle(ctx context.Context, lc *types.IssueLifecycle) error {
	if err := lc.Validate(); err != nil {
		return fmt.Errorf("invalid lifecycle: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var storedVersion int64
	err = tx.QueryRowContext(ctx, `
		SELECT version FROM lifecycles WHERE repo = ? AND issue_number = ?
	`, lc.Repo, lc.IssueNumber).Scan(&storedVersion)
	exists := err == nil
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read stored version: %w", err)
	}
	if exists && storedVersion != lc.Version {
		return fmt.Errorf("%w: stored=%d caller=%d", storage.ErrVersionConflict, storedVersion, lc.Version)
	}

	newVersion := lc.Version + 1
	var lockedAt interface{}
	if lc.LockedAt != nil {
		lockedAt = *lc.LockedAt
	}
	var prNumber interface{}
	if lc.PRNumber != nil {
		prNumber = *lc.PRNumber
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO lifecycles (
			repo, issue_number, current_state, spec_id, pr_number,
			locked_by, locked_at, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repo, issue_number) DO UPDATE SET
			current_state = excluded.current_state,
			spec_id = excluded.spec_id,
			pr_number = excluded.pr_number,
			locked_by = excluded.locked_by,
			locked_at = excluded.locked_at,
			updated_at = excluded.updated_at,
			version = excluded.version
	`,
		lc.Repo, lc.IssueNumber, lc.CurrentState, nullable(lc.SpecID), prNumber,
		nullable(lc.LockedBy), lockedAt, lc.CreatedAt, lc.UpdatedAt, newVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert lifecycle: %w", err)
	}

	// Append transition log entries past the stored count. The log is
	// append-only, so stored rows are never rewritten.
	var stored int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transitions WHERE repo = ? AND issue_number = ?
	`, lc.Repo, lc.IssueNumber).Scan(&stored); err != nil {
		return fmt.Errorf("failed to count transitions: %w", err)
	}
	for i := stored; i < len(lc.Transitions); i++ {
		tr := lc.Transitions[i]
		var metadata interface{}
		if len(tr.Metadata) > 0 {
			data, err := json.Marshal(tr.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal transition metadata: %w", err)
			}
			metadata = string(data)
		}
		forced := 0
		if tr.Forced {
			forced = 1
		}
		ts := tr.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transitions (repo, issue_number, seq, from_state, to_state, actor, reason, metadata, forced, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, lc.Repo, lc.IssueNumber, i, tr.FromState, tr.ToState, tr.Actor, nullable(tr.Reason), metadata, forced, ts)
		if err != nil {
			return fmt.Errorf("failed to insert transition: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	lc.Version = newVersion
	return nil
}

// ListLifecycles returns every lifecycle persisted for repo.
func (s *SQLiteStorage) ListLifecycles(ctx context.Context, repo string) ([]*types.IssueLifecycle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_number FROM lifecycles WHERE repo = ? ORDER BY issue_number ASC
	`, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to list lifecycles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var numbers []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan issue number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lifecycles: %w", err)
	}

	out := make([]*types.IssueLifecycle, 0, len(numbers))
	for _, n := range numbers {
		lc, err := s.GetLifecycle(ctx, repo, n)
		if err != nil {
			continue // skip records that vanished between queries
		}
		out = append(out, lc)
	}
	return out, nil
}

// nullable maps "" to NULL for optional text columns.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
