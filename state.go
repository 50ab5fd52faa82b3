package rotor

// State represents the current state of a Coordinator.
type State int32

const (
	// StateLoading indicates the Coordinator is initializing and has not yet
	// processed any reminder payload.
	StateLoading State = iota

	// StateHealthy indicates the Coordinator has a valid reminder set applied.
	StateHealthy

	// StateDegraded indicates the last reload failed structurally. The
	// previous valid reminder set remains on display.
	StateDegraded

	// StateEmpty indicates the initial load failed and no valid reminder set
	// has ever been obtained. The Coordinator continues watching for valid
	// updates; the presentation layer should show a placeholder.
	StateEmpty
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateEmpty:
		return "empty"
	default:
		return "unknown"
	}
}
