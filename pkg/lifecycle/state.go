// Package lifecycle tracks the running state of the gateway process and
// answers liveness and readiness probes.
//
// # Service Lifecycle
//
// A [Service] moves through a small state machine:
//
//	Unknown → Starting → Running → Draining → Stopping → Stopped
//
// Draining is entered when shutdown begins: the process is still alive and
// finishing in-flight requests, but reports not-ready so load balancers
// stop routing to it. A draining service may also return to Running.
//
// Any non-terminal state may move to Failed. Both terminal states
// (Stopped, Failed) may move back to Starting for a restart.
//
// # Readiness
//
// A service is ready when it is Running and every critical [Check]
// passes. Non-critical checks are reported but do not affect readiness.
package lifecycle

// State is the lifecycle state of a [Service]. The zero value is not a
// valid state; services start in [StateUnknown].
type State string

const (
	// StateUnknown is the state of a service that has not been started.
	StateUnknown State = "unknown"

	// StateStarting is set while the OnStart hook runs.
	StateStarting State = "starting"

	// StateRunning is the only state in which the service can be ready.
	StateRunning State = "running"

	// StateDraining means shutdown has begun and in-flight requests are
	// finishing. Liveness still passes; readiness does not.
	StateDraining State = "draining"

	// StateStopping is set while the OnStop hook runs.
	StateStopping State = "stopping"

	// StateStopped is a clean shutdown. Terminal.
	StateStopped State = "stopped"

	// StateFailed is an unrecoverable error. Terminal.
	StateFailed State = "failed"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	switch s {
	case StateUnknown, StateStarting, StateRunning, StateDraining,
		StateStopping, StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is [StateStopped] or [StateFailed].
func (s State) IsTerminal() bool {
	switch s {
	case StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// validTransitions is the transition matrix:
//
//	Unknown  → Starting, Failed
//	Starting → Running, Stopping, Failed
//	Running  → Draining, Stopping, Failed
//	Draining → Running, Stopping, Failed
//	Stopping → Stopped, Failed
//	Stopped  → Starting
//	Failed   → Starting
var validTransitions = map[State][]State{
	StateUnknown:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateStopping, StateFailed},
	StateRunning:  {StateDraining, StateStopping, StateFailed},
	StateDraining: {StateRunning, StateStopping, StateFailed},
	StateStopping: {StateStopped, StateFailed},
	StateStopped:  {StateStarting},
	StateFailed:   {StateStarting},
}

// ValidTransition reports whether moving from one state to another is
// allowed. Same-state transitions are rejected.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
