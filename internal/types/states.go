// Package types defines core data structures for the warden policy core.
package types

// State represents the workflow stage of an issue within the automation.
type State string

const (
	StateNew            State = "new"
	StateTriaging       State = "triaging"
	StateTriaged        State = "triaged"
	StateApprovedForFix State = "approved_for_fix"
	StateBuilding       State = "building"
	StatePRCreated      State = "pr_created"
	StatePRApproved     State = "pr_approved"
	StateMerged         State = "merged"
	StateClosed         State = "closed"
	StateWontFix        State = "wont_fix"
	StateSpam           State = "spam"
	StateDuplicate      State = "duplicate"
	StateRejected       State = "rejected"
)

// AllStates lists every valid lifecycle state.
func AllStates() []State {
	return []State{
		StateNew, StateTriaging, StateTriaged, StateApprovedForFix,
		StateBuilding, StatePRCreated, StatePRApproved, StateMerged,
		StateClosed, StateWontFix, StateSpam, StateDuplicate, StateRejected,
	}
}

// IsValid checks if the state value is valid
func (s State) IsValid() bool {
	switch s {
	case StateNew, StateTriaging, StateTriaged, StateApprovedForFix,
		StateBuilding, StatePRCreated, StatePRApproved, StateMerged,
		StateClosed, StateWontFix, StateSpam, StateDuplicate, StateRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further automated transitions leave this state.
// Terminal states can only be left via an explicit human override.
func (s State) IsTerminal() bool {
	switch s {
	case StateMerged, StateClosed, StateWontFix, StateSpam, StateDuplicate:
		return true
	}
	return false
}

// BlocksAutoFix reports whether the state's classification forbids
// automated fixes (spam, duplicate, rejected, won't-fix).
func (s State) BlocksAutoFix() bool {
	switch s {
	case StateSpam, StateDuplicate, StateRejected, StateWontFix:
		return true
	}
	return false
}

// RequiresTriage reports whether the issue has not finished triage yet.
func (s State) RequiresTriage() bool {
	return s == StateNew || s == StateTriaging
}

// TerminalStates returns the set of states with no automated exit.
func TerminalStates() []State {
	return []State{StateMerged, StateClosed, StateWontFix, StateSpam, StateDuplicate}
}

// BlocksAutoFixStates returns the classifications that forbid auto-fix.
func BlocksAutoFixStates() []State {
	return []State{StateSpam, StateDuplicate, StateRejected, StateWontFix}
}

// RequiresTriageStates returns the states that must complete triage first.
func RequiresTriageStates() []State {
	return []State{StateNew, StateTriaging}
}

// rejectionOutcomes are the states any non-terminal state may fall into when
// a human or classifier rejects the issue.
var rejectionOutcomes = []State{
	StateSpam, StateDuplicate, StateRejected, StateWontFix, StateClosed,
}

// transitionGraph is the fixed adjacency table of valid transitions.
// Any edge not present here is invalid for the normal Transition path;
// only ForceTransition (human override) may bypass it.
var transitionGraph = map[State][]State{
	StateNew:            append([]State{StateTriaging}, rejectionOutcomes...),
	StateTriaging:       append([]State{StateTriaged}, rejectionOutcomes...),
	StateTriaged:        append([]State{StateApprovedForFix}, rejectionOutcomes...),
	StateApprovedForFix: append([]State{StateBuilding}, rejectionOutcomes...),
	StateBuilding:       append([]State{StatePRCreated}, rejectionOutcomes...),
	StatePRCreated:      append([]State{StatePRApproved}, rejectionOutcomes...),
	StatePRApproved:     append([]State{StateMerged}, rejectionOutcomes...),
	StateRejected:       {StateClosed, StateWontFix},
	// Terminal states have no outgoing edges.
	StateMerged:    {},
	StateClosed:    {},
	StateWontFix:   {},
	StateSpam:      {},
	StateDuplicate: {},
}

// ValidNextStates returns the states reachable from s via a normal transition.
func ValidNextStates(s State) []State {
	next := transitionGraph[s]
	out := make([]State, len(next))
	copy(out, next)
	return out
}
