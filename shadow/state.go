package shadow

// State is a step of a shadow diff run. A run moves through
//
//	Init → Provisioning → WaitingHealthy → Healthy → [Seeding] → Migrating → Diffing → Done
//
// or, when the instance never becomes healthy, WaitingHealthy → TimedOut →
// Failed. A failure in any other step moves to Failed. Every run then ends
// with Cleanup → Terminal.
type State int

const (
	StateInit State = iota
	StateProvisioning
	StateWaitingHealthy
	StateHealthy
	StateSeeding
	StateMigrating
	StateDiffing
	StateDone
	StateTimedOut
	StateFailed
	StateCleanup
	StateTerminal
)

var stateNames = map[State]string{
	StateInit:           "init",
	StateProvisioning:   "provisioning",
	StateWaitingHealthy: "waiting_healthy",
	StateHealthy:        "healthy",
	StateSeeding:        "seeding",
	StateMigrating:      "migrating",
	StateDiffing:        "diffing",
	StateDone:           "done",
	StateTimedOut:       "timed_out",
	StateFailed:         "failed",
	StateCleanup:        "cleanup",
	StateTerminal:       "terminal",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// HealthState is the last known health of a shadow instance.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthTimedOut
)

func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Observer is called on every state transition of a run.
type Observer func(from, to State)
