package purge

// Phase identifies where the deletion loop is in its lifecycle. The loop is
// an explicit machine: each step consumes the current phase and decides the
// next one, so control flow never hides inside error propagation.
type Phase int

const (
	// PhaseFetching reads the message at the current page position.
	PhaseFetching Phase = iota
	// PhaseDeleting marks the fetched message for deletion.
	PhaseDeleting
	// PhaseErrorHandling decides between skipping an item and recovering.
	PhaseErrorHandling
	// PhaseRecovering replaces the session after repeated failures.
	PhaseRecovering
	// PhaseDone terminates the loop.
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseFetching:
		return "fetching"
	case PhaseDeleting:
		return "deleting"
	case PhaseErrorHandling:
		return "error-handling"
	case PhaseRecovering:
		return "recovering"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// RunState is the whole mutable state of one run, threaded through every
// transition instead of living in package globals. Pos is 1-indexed into the
// current page. Errors counts per-item failures in the current recovery
// window; Restarts counts error-driven session resets; Pages counts page-cap
// rollovers, which are normal continuations and never consume the restart
// budget.
type RunState struct {
	Phase    Phase
	Pos      int
	Read     int
	Deleted  int
	Errors   int
	Restarts int
	Pages    int
}
