package types

import (
	"fmt"
	"time"
)

// OverrideType categorizes a human override action.
type OverrideType string

const (
	OverrideNotSpam       OverrideType = "not_spam"
	OverrideForceRetry    OverrideType = "force_retry"
	OverrideApproveSpec   OverrideType = "approve_spec"
	OverrideCancelAutofix OverrideType = "cancel_autofix"
	OverrideForceUnlock   OverrideType = "force_unlock"
)

// IsValid checks if the override type value is valid
func (o OverrideType) IsValid() bool {
	switch o {
	case OverrideNotSpam, OverrideForceRetry, OverrideApproveSpec,
		OverrideCancelAutofix, OverrideForceUnlock:
		return true
	}
	return false
}

// OverrideRecord is the append-only audit record of a human override. It is
// never mutated after creation; forced transitions are only reviewable
// because these records exist.
type OverrideRecord struct {
	ID            string            `json:"id"`
	OverrideType  OverrideType      `json:"override_type"`
	IssueNumber   int               `json:"issue_number"`
	PRNumber      *int              `json:"pr_number,omitempty"`
	Repo          string            `json:"repo"`
	Actor         string            `json:"actor"`
	Reason        string            `json:"reason,omitempty"`
	OriginalState State             `json:"original_state"`
	NewState      State             `json:"new_state"`
	CreatedAt     time.Time         `json:"created_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the override record has valid field values
func (r *OverrideRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !r.OverrideType.IsValid() {
		return fmt.Errorf("invalid override type: %s", r.OverrideType)
	}
	if r.Actor == "" {
		return fmt.Errorf("actor is required")
	}
	if r.Repo == "" {
		return fmt.Errorf("repo is required")
	}
	return nil
}

// OverrideFilter narrows override history queries.
type OverrideFilter struct {
	IssueNumber *int
	Repo        *string
	Type        *OverrideType
	Actor       *string
	Limit       int
}

// OverrideStatistics aggregates override history for a repo.
type OverrideStatistics struct {
	Repo    string               `json:"repo"`
	Total   int                  `json:"total"`
	ByType  map[OverrideType]int `json:"by_type"`
	ByActor map[string]int       `json:"by_actor"`
}

// GracePeriodEntry is the veto window before an automated action executes.
// At most one active entry per issue is meaningful; starting a new grace
// period for the same issue supersedes the prior one.
type GracePeriodEntry struct {
	IssueNumber  int        `json:"issue_number"`
	TriggerLabel string     `json:"trigger_label"`
	TriggeredBy  string     `json:"triggered_by"`
	TriggeredAt  time.Time  `json:"triggered_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	Cancelled    bool       `json:"cancelled"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

// IsActive reports whether the entry still holds the action back at now:
// not cancelled and not yet expired.
func (g *GracePeriodEntry) IsActive(now time.Time) bool {
	return g != nil && !g.Cancelled && now.Before(g.ExpiresAt)
}
