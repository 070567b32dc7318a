// Package backend defines the boundary between fxplay and the media framework.
//
// The core only needs a handful of capabilities from the framework: create named
// processing units, group them in a pipeline container, link them pairwise, set
// their properties, change the pipeline state, learn about streams discovered by
// the source at runtime, read status notifications from a bus, and query/seek the
// playback position. Everything else (decoding, resampling, rendering) stays opaque.
package backend

import (
	"errors"
	"time"
)

// ErrReleased is returned by operations on a unit or pipeline that was already released.
var ErrReleased = errors.New("backend object already released")

// Enum is a value for an enum-typed property. Backends with typed properties
// convert it to the property's own enum type.
type Enum int

// State is a pipeline state.
type State int

const (
	StateVoidPending State = iota
	StateNull
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "VOID_PENDING"
	}
}

// MessageKind classifies bus notifications the core consumes.
type MessageKind int

const (
	MessageError MessageKind = iota + 1
	MessageEOS
	MessageStateChanged
)

func (k MessageKind) String() string {
	switch k {
	case MessageError:
		return "error"
	case MessageEOS:
		return "eos"
	case MessageStateChanged:
		return "state-changed"
	default:
		return "unknown"
	}
}

// Message is one bus notification.
type Message struct {
	Kind   MessageKind
	Source string // Name of the object that posted the message

	// Error notifications
	Err   error
	Debug string

	// StateChanged notifications
	OldState State
	NewState State
}

// SeekFlags modify a seek request.
type SeekFlags int

const (
	SeekFlush SeekFlags = 1 << iota
	SeekAccurate
)

// StreamEnd as a seek stop position means "until the end of the stream".
const StreamEnd time.Duration = -1

// SeekRequest changes playback position and/or rate.
type SeekRequest struct {
	Rate  float64
	Start time.Duration
	Stop  time.Duration
	Flags SeekFlags
}

// Backend creates pipelines and units.
type Backend interface {
	NewPipeline(name string) (Pipeline, error)
	NewUnit(factory, name string) (Unit, error)
}

// Unit is one processing stage. A unit added to a pipeline is owned by it.
type Unit interface {
	Name() string
	Factory() string
	// Set assigns a property. The value must have the Go type matching the
	// property's backend type.
	Set(property string, value any) error
	// Link connects this unit's output to dst's input. Both units must already
	// be members of the same pipeline.
	Link(dst Unit) error
	// Input returns the unit's static input.
	Input() (Input, error)
	// OnStream registers h for streams the unit discovers at runtime. h is called
	// from the backend's streaming threads.
	OnStream(h StreamHandler) (Subscription, error)
	// Release drops the unit. Only units that were never added to a pipeline need
	// releasing; the pipeline releases its members.
	Release()
}

// StreamHandler receives a newly discovered stream.
type StreamHandler func(Stream)

// Stream is a stream discovered at runtime, e.g. a decoder output.
type Stream interface {
	// Caps returns the media type of the stream's capabilities, e.g. "audio/x-raw".
	Caps() string
	// Attach links the stream to in.
	Attach(in Input) error
}

// Input is a unit's input endpoint.
type Input interface {
	Owner() string
	Attached() bool
}

// Subscription is a cancellable registration.
type Subscription interface {
	Cancel()
}

// Pipeline is the container owning every unit added to it.
type Pipeline interface {
	Name() string
	Add(units ...Unit) error
	SetState(s State) error
	Bus() (Bus, error)
	// Position returns the current playback position; ok is false when the
	// position cannot be determined yet.
	Position() (pos time.Duration, ok bool)
	Seek(req SeekRequest) error
	// Release drops the container and all of its members.
	Release()
}

// Bus delivers status notifications.
type Bus interface {
	// Poll waits up to timeout for a notification. A negative timeout waits
	// indefinitely.
	Poll(timeout time.Duration) (Message, bool)
	Close()
}
