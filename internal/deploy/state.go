package deploy

// State is a step of a deployment run. Runs only ever move forward.
type State int

const (
	StateIdle State = iota
	StateResolving
	StateDeploying
	StateAwaitingPropagation
	StateVerifying
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateDeploying:
		return "deploying"
	case StateAwaitingPropagation:
		return "awaiting_propagation"
	case StateVerifying:
		return "verifying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// canTransition allows any forward move out of a non-terminal state. Failed
// is reachable from every non-terminal state.
func (s State) canTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return next > s
}
