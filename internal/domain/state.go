package domain

// State is a step of the backup run. Transitions are strictly sequential;
// StateFailed is reachable from any non-terminal state.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StatePermissionsPrepared
	StateBackedUp
	StateFetched
	StatePruned
	StateMediaCopied
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateDisconnected:        "disconnected",
	StateConnected:           "connected",
	StatePermissionsPrepared: "permissions-prepared",
	StateBackedUp:            "backed-up",
	StateFetched:             "fetched",
	StatePruned:              "pruned",
	StateMediaCopied:         "media-copied",
	StateDone:                "done",
	StateFailed:              "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// StateFunc receives state transitions as they happen.
type StateFunc func(State)
