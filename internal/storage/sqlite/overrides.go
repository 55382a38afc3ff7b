package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wardenhq/warden/internal/storage"
	"github.com/wardenhq/warden/internal/types"
)

// AppendOverride inserts one override audit record. Records are never
// updated or deleted.
func (s *SQLiteStorage) AppendOverride(ctx context.Context, rec *types.OverrideRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid override record: %w", err)
	}

	var metadata interface{}
	if len(rec.Metadata) > 0 {
		data, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal override metadata: %w", err)
		}
		metadata = string(data)
	}
	var prNumber interface{}
	if rec.PRNumber != nil {
		prNumber = *rec.PRNumber
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO overrides (
			id, override_type, issue_number, pr_number, repo, actor,
			reason, original_state, new_state, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.OverrideType, rec.IssueNumber, prNumber, rec.Repo, rec.Actor,
		nullable(rec.Reason), rec.OriginalState, rec.NewState, metadata, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert override record: %w", err)
	}
	return nil
}

// ListOverrides returns override records matching the filter, oldest first.
func (s *SQLiteStorage) ListOverrides(ctx context.Context, filter types.OverrideFilter) ([]*types.OverrideRecord, error) {
	query := `
		SELECT id, override_type, issue_number, pr_number, repo, actor,
		       reason, original_state, new_state, metadata, created_at
		FROM overrides`
	var conds []string
	var args []interface{}
	if filter.IssueNumber != nil {
		conds = append(conds, "issue_number = ?")
		args = append(args, *filter.IssueNumber)
	}
	if filter.Repo != nil {
		conds = append(conds, "repo = ?")
		args = append(args, *filter.Repo)
	}
	if filter.Type != nil {
		conds = append(conds, "override_type = ?")
		args = append(args, *filter.Type)
	}
	if filter.Actor != nil {
		conds = append(conds, "actor = ?")
		args = append(args, *filter.Actor)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.OverrideRecord
	for rows.Next() {
		rec := &types.OverrideRecord{}
		var prNumber sql.NullInt64
		var reason, metadata sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.OverrideType, &rec.IssueNumber, &prNumber, &rec.Repo, &rec.Actor,
			&reason, &rec.OriginalState, &rec.NewState, &metadata, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan override record: %w", err)
		}
		rec.Reason = reason.String
		if prNumber.Valid {
			n := int(prNumber.Int64)
			rec.PRNumber = &n
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &rec.Metadata); err != nil {
				rec.Metadata = nil
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate overrides: %w", err)
	}
	return out, nil
}

// GetGracePeriod returns the entry for issueNumber or storage.ErrNotFound.
func (s *SQLiteStorage) GetGracePeriod(ctx context.Context, issueNumber int) (*types.GracePeriodEntry, error) {
	entry := &types.GracePeriodEntry{}
	var cancelled int
	var cancelledBy sql.NullString
	var cancelledAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT issue_number, trigger_label, triggered_by, triggered_at,
		       expires_at, cancelled, cancelled_by, cancelled_at
		FROM grace_periods WHERE issue_number = ?
	`, issueNumber).Scan(
		&entry.IssueNumber, &entry.TriggerLabel, &entry.TriggeredBy, &entry.TriggeredAt,
		&entry.ExpiresAt, &cancelled, &cancelledBy, &cancelledAt,
	)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grace period: %w", err)
	}

	entry.Cancelled = cancelled != 0
	entry.CancelledBy = cancelledBy.String
	if cancelledAt.Valid {
		t := cancelledAt.Time
		entry.CancelledAt = &t
	}
	return entry, nil
}

// SaveGracePeriod upserts the entry, superseding any prior one for the issue.
func (s *SQLiteStorage) SaveGracePeriod(ctx context.Context, entry *types.GracePeriodEntry) error {
	cancelled := 0
	if entry.Cancelled {
		cancelled = 1
	}
	var cancelledAt interface{}
	if entry.CancelledAt != nil {
		cancelledAt = *entry.CancelledAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grace_periods (
			issue_number, trigger_label, triggered_by, triggered_at,
			expires_at, cancelled, cancelled_by, cancelled_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(issue_number) DO UPDATE SET
			trigger_label = excluded.trigger_label,
			triggered_by = excluded.triggered_by,
			triggered_at = excluded.triggered_at,
			expires_at = excluded.expires_at,
			cancelled = excluded.cancelled,
			cancelled_by = excluded.cancelled_by,
			cancelled_at = excluded.cancelled_at
	`,
		entry.IssueNumber, entry.TriggerLabel, entry.TriggeredBy, entry.TriggeredAt,
		entry.ExpiresAt, cancelled, nullable(entry.CancelledBy), cancelledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save grace period: %w", err)
	}
	return nil
}

// ListGracePeriods returns all stored grace period entries.
func (s *SQLiteStorage) ListGracePeriods(ctx context.Context) ([]*types.GracePeriodEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT issue_number FROM grace_periods ORDER BY issue_number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list grace periods: %w", err)
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
		return nil, fmt.Errorf("failed to iterate grace periods: %w", err)
	}

	out := make([]*types.GracePeriodEntry, 0, len(numbers))
	for _, n := range numbers {
		entry, err := s.GetGracePeriod(ctx, n)
		if err != nil {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}
