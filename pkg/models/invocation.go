// Package models defines the data shapes exchanged by the gateway: the
// caller-facing request and response bodies, the error envelope, and the
// per-request [Invocation] record that tracks one request through the
// gateway pipeline.
//
// Invocation Model:
//
// An Invocation flows through a fixed sequence of states:
//
//	received → authenticated → downstream_invoked → completed
//	         ↘ rejected       ↘ rejected          ↘ failed
//
// Rejected covers caller errors (missing or invalid credentials, bad
// input); failed covers downstream and internal errors. Once an invocation
// reaches a terminal state (completed, rejected, failed) it cannot
// transition again. Invocations are never shared between requests.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InvocationState represents the lifecycle state of a single gateway
// request.
type InvocationState string

const (
	// InvocationStateReceived is the initial state set by [NewInvocation].
	InvocationStateReceived InvocationState = "received"

	// InvocationStateAuthenticated indicates the bearer token was validated
	// and a principal is known.
	InvocationStateAuthenticated InvocationState = "authenticated"

	// InvocationStateDownstreamInvoked indicates the request was forwarded
	// to the agent runtime and a reply is pending.
	InvocationStateDownstreamInvoked InvocationState = "downstream_invoked"

	// InvocationStateCompleted indicates a successful reply was returned to
	// the caller. This is a terminal state.
	InvocationStateCompleted InvocationState = "completed"

	// InvocationStateRejected indicates the caller's request was refused
	// (401 or 400). This is a terminal state.
	InvocationStateRejected InvocationState = "rejected"

	// InvocationStateFailed indicates a downstream or internal failure
	// (500). This is a terminal state.
	InvocationStateFailed InvocationState = "failed"
)

// String returns the string representation of the state.
func (s InvocationState) String() string {
	return string(s)
}

// Valid reports whether the state is one of the recognized values.
func (s InvocationState) Valid() bool {
	switch s {
	case InvocationStateReceived, InvocationStateAuthenticated,
		InvocationStateDownstreamInvoked, InvocationStateCompleted,
		InvocationStateRejected, InvocationStateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether this state is final.
func (s InvocationState) IsTerminal() bool {
	switch s {
	case InvocationStateCompleted, InvocationStateRejected, InvocationStateFailed:
		return true
	default:
		return false
	}
}

// validTransitions defines the permitted state transitions.
var validTransitions = map[InvocationState][]InvocationState{
	InvocationStateReceived: {
		InvocationStateAuthenticated,
		InvocationStateRejected,
		InvocationStateFailed,
	},
	InvocationStateAuthenticated: {
		InvocationStateDownstreamInvoked,
		InvocationStateRejected,
		InvocationStateFailed,
	},
	InvocationStateDownstreamInvoked: {
		InvocationStateCompleted,
		InvocationStateFailed,
	},
}

// CanTransitionTo reports whether moving from s to target is permitted.
func (s InvocationState) CanTransitionTo(target InvocationState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Invocation records one request's passage through the gateway. It is
// created by [NewInvocation] when a request arrives and discarded once the
// response has been written.
type Invocation struct {
	// ID is the unique identifier for this request (UUID v4), used as the
	// request id in logs.
	ID string `json:"id"`

	// UserID is the authenticated principal's subject. Empty until the
	// invocation is authenticated.
	UserID string `json:"user_id,omitempty"`

	// SessionID is the effective runtime session id. Empty until the body
	// has been parsed.
	SessionID string `json:"session_id,omitempty"`

	// State is the current lifecycle state.
	State InvocationState `json:"state"`

	// Status is the HTTP status returned to the caller. Zero until the
	// invocation reaches a terminal state.
	Status int `json:"status,omitempty"`

	// StartTime is the UTC time the request was received.
	StartTime time.Time `json:"start_time"`

	// EndTime is the UTC time the invocation reached a terminal state. Nil
	// while in progress.
	EndTime *time.Time `json:"end_time,omitempty"`
}

// NewInvocation creates an Invocation in the received state with a
// generated id and the current UTC time.
func NewInvocation() *Invocation {
	return &Invocation{
		ID:        uuid.New().String(),
		State:     InvocationStateReceived,
		StartTime: time.Now().UTC(),
	}
}

// Advance moves the invocation to a non-terminal state.
func (i *Invocation) Advance(target InvocationState) error {
	if target.IsTerminal() {
		return fmt.Errorf("models: use Finish to enter terminal state %q", target)
	}
	return i.transition(target)
}

// Finish moves the invocation to a terminal state and records the HTTP
// status returned to the caller.
func (i *Invocation) Finish(target InvocationState, status int) error {
	if !target.IsTerminal() {
		return fmt.Errorf("models: %q is not a terminal state", target)
	}
	if err := i.transition(target); err != nil {
		return err
	}
	now := time.Now().UTC()
	i.EndTime = &now
	i.Status = status
	return nil
}

// Abort forces the invocation into the failed state with status, even
// when it has already finished. An existing end time is kept.
func (i *Invocation) Abort(status int) {
	i.State = InvocationStateFailed
	i.Status = status
	if i.EndTime == nil {
		now := time.Now().UTC()
		i.EndTime = &now
	}
}

func (i *Invocation) transition(target InvocationState) error {
	if !i.State.CanTransitionTo(target) {
		return fmt.Errorf("models: invalid invocation transition %q → %q", i.State, target)
	}
	i.State = target
	return nil
}

// IsTerminal reports whether the invocation has reached a final state.
func (i *Invocation) IsTerminal() bool {
	return i.State.IsTerminal()
}

// Duration returns the wall-clock time spent on the invocation. For an
// invocation still in progress it is measured up to now. Returns zero if
// StartTime is zero.
func (i *Invocation) Duration() time.Duration {
	if i.StartTime.IsZero() {
		return 0
	}
	if i.EndTime != nil {
		return i.EndTime.Sub(i.StartTime)
	}
	return time.Since(i.StartTime)
}
