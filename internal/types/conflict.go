package types

// ConflictType categorizes why an automated action cannot proceed.
type ConflictType string

const (
	ConflictNone                    ConflictType = "none"
	ConflictTriageRequired          ConflictType = "triage_required"
	ConflictBlockedByClassification ConflictType = "blocked_by_classification"
	ConflictReviewRequired          ConflictType = "review_required"
	ConflictInvalidTransition       ConflictType = "invalid_transition"
	ConflictConcurrentOperation     ConflictType = "concurrent_operation"
)

// IsValid checks if the conflict type value is valid
func (c ConflictType) IsValid() bool {
	switch c {
	case ConflictNone, ConflictTriageRequired, ConflictBlockedByClassification,
		ConflictReviewRequired, ConflictInvalidTransition, ConflictConcurrentOperation:
		return true
	}
	return false
}

// ConflictResult is a structured policy decision, not an error. Every policy
// check returns one; callers branch on ConflictType rather than recovering
// from a panic or error value.
type ConflictResult struct {
	HasConflict    bool         `json:"has_conflict"`
	ConflictType   ConflictType `json:"conflict_type"`
	Message        string       `json:"message,omitempty"`
	BlockingState  State        `json:"blocking_state,omitempty"`
	ResolutionHint string       `json:"resolution_hint,omitempty"`
}

// NoConflict returns the zero-conflict decision.
func NoConflict() ConflictResult {
	return ConflictResult{HasConflict: false, ConflictType: ConflictNone}
}

// Conflict constructs a blocking decision.
func Conflict(ct ConflictType, blocking State, message, hint string) ConflictResult {
	return ConflictResult{
		HasConflict:    true,
		ConflictType:   ct,
		Message:        message,
		BlockingState:  blocking,
		ResolutionHint: hint,
	}
}
