package player

import (
	"errors"
	"fmt"
)

// State is the controller lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StateStopped State = "stopped"
)

// Event drives a state transition.
type Event string

const (
	EventStart     Event = "start"
	EventAbort     Event = "abort" // start failed
	EventEOS       Event = "eos"
	EventError     Event = "error"
	EventInterrupt Event = "interrupt"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid transition")

type transition struct {
	from  State
	event Event
}

// transitions is strict: anything not listed is an error.
var transitions = map[transition]State{
	{StateIdle, EventStart}:        StatePlaying,
	{StateIdle, EventAbort}:        StateStopped,
	{StatePlaying, EventEOS}:       StateStopped,
	{StatePlaying, EventError}:     StateStopped,
	{StatePlaying, EventInterrupt}: StateStopped,
}

// next returns the state after event, or ErrInvalidTransition.
func next(from State, event Event) (State, error) {
	to, ok := transitions[transition{from, event}]
	if !ok {
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}
	return to, nil
}
