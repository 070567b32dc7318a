// Package player drives a built graph: it starts playback, consumes bus
// notifications until a terminal condition, applies the speed change once the
// pipeline is playing, and tears everything down exactly once.
package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/linuxmatters/fxplay/internal/backend"
	"github.com/linuxmatters/fxplay/internal/graph"
)

// DefaultPollInterval bounds each bus wait so runtime commands interleave with
// notifications.
const DefaultPollInterval = 100 * time.Millisecond

// Outcome is how playback ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeEOS
	OutcomeError
	OutcomeInterrupted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEOS:
		return "end-of-stream"
	case OutcomeError:
		return "error"
	case OutcomeInterrupted:
		return "interrupted"
	default:
		return "none"
	}
}

// Session is the run-time state of one playback. It is only touched by the
// goroutine running the loop.
type Session struct {
	ID          uuid.UUID
	Running     bool
	Playing     bool
	RateApplied bool

	StartedAt time.Time
	EndedAt   time.Time
	Outcome   Outcome
	Seeks     int // seek requests dispatched
}

// StateChangeError is a pipeline state change the backend refused.
type StateChangeError struct {
	State backend.State
	Err   error
}

func (e *StateChangeError) Error() string {
	return fmt.Sprintf("failed to set pipeline to %s: %v", e.State, e.Err)
}

func (e *StateChangeError) Unwrap() error { return e.Err }

// BackendError is an error notification received during playback.
type BackendError struct {
	Source string
	Debug  string
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("error from %s: %v", e.Source, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.poll = d }
}

// WithSpeed sets the playback rate applied once the pipeline is playing.
func WithSpeed(rate float64) Option {
	return func(c *Controller) { c.speed, c.speedSet = rate, true }
}

// Controller owns the pipeline lifecycle.
type Controller struct {
	g   *graph.Graph
	sub backend.Subscription
	log zerolog.Logger

	poll     time.Duration
	speed    float64
	speedSet bool

	state   State
	bus     backend.Bus
	session Session

	shutdownOnce sync.Once
	shutdownErr  error
}

// New returns a controller for g. sub is the stream discovery subscription,
// cancelled at shutdown; it may be nil.
func New(g *graph.Graph, sub backend.Subscription, logger zerolog.Logger, opts ...Option) *Controller {
	c := &Controller{
		g:     g,
		sub:   sub,
		log:   logger,
		poll:  DefaultPollInterval,
		speed: 1.0,
		state: StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the lifecycle state.
func (c *Controller) State() State { return c.state }

// Session returns a copy of the session. Call it from the goroutine that runs
// the loop, or after Run has returned.
func (c *Controller) Session() Session { return c.session }

func (c *Controller) fire(event Event) error {
	to, err := next(c.state, event)
	if err != nil {
		return err
	}
	c.log.Debug().Str("from", string(c.state)).Str("to", string(to)).Str("event", string(event)).Msg("controller state")
	c.state = to
	return nil
}

// Start takes the bus and requests the playing state. A refused state change is
// returned as *StateChangeError and leaves the controller stopped.
func (c *Controller) Start() error {
	if _, err := next(c.state, EventStart); err != nil {
		return err
	}

	bus, err := c.g.Pipeline.Bus()
	if err != nil {
		_ = c.fire(EventAbort)
		return fmt.Errorf("failed to get pipeline bus: %w", err)
	}
	c.bus = bus

	if err := c.g.Pipeline.SetState(backend.StatePlaying); err != nil {
		_ = c.fire(EventAbort)
		return &StateChangeError{State: backend.StatePlaying, Err: err}
	}

	c.session = Session{ID: uuid.New(), Running: true, StartedAt: time.Now()}
	c.log = c.log.With().Str("session", c.session.ID.String()).Logger()
	c.log.Info().Msg("playback started")
	return c.fire(EventStart)
}

// Run consumes notifications until end-of-stream, an error notification or ctx
// cancellation. An error notification is returned as *BackendError alongside
// OutcomeError; it ends playback like end-of-stream does.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if c.state != StatePlaying {
		return OutcomeNone, fmt.Errorf("%w: run in state %s", ErrInvalidTransition, c.state)
	}

	var result error
	for c.session.Running {
		if ctx.Err() != nil {
			c.stop(OutcomeInterrupted, EventInterrupt)
			c.log.Info().Msg("playback interrupted")
			break
		}

		if msg, ok := c.bus.Poll(c.poll); ok {
			if err := c.handle(msg); err != nil {
				result = err
			}
		}
		c.applySpeed()
	}
	return c.session.Outcome, result
}

func (c *Controller) handle(msg backend.Message) error {
	switch msg.Kind {
	case backend.MessageError:
		ev := c.log.Error().Str("source", msg.Source).Err(msg.Err)
		if msg.Debug != "" && c.log.GetLevel() <= zerolog.DebugLevel {
			ev = ev.Str("debug", msg.Debug)
		}
		ev.Msg("playback error")
		c.stop(OutcomeError, EventError)
		return &BackendError{Source: msg.Source, Debug: msg.Debug, Err: msg.Err}

	case backend.MessageEOS:
		c.log.Info().Msg("end of stream")
		c.stop(OutcomeEOS, EventEOS)

	case backend.MessageStateChanged:
		if msg.Source != c.g.Pipeline.Name() {
			return nil
		}
		c.session.Playing = msg.NewState == backend.StatePlaying
		c.log.Debug().Stringer("old", msg.OldState).Stringer("new", msg.NewState).Msg("pipeline state changed")
	}
	return nil
}

func (c *Controller) stop(outcome Outcome, event Event) {
	c.session.Running = false
	c.session.Outcome = outcome
	c.session.EndedAt = time.Now()
	if err := c.fire(event); err != nil {
		c.log.Warn().Err(err).Msg("unexpected controller transition")
	}
}

// applySpeed dispatches the speed change once. A failed position query leaves
// the command pending; a seek is never retried, whether it succeeded or not.
func (c *Controller) applySpeed() {
	if !c.speedSet || c.session.RateApplied || !c.session.Playing || !c.session.Running {
		return
	}

	pos, ok := c.g.Pipeline.Position()
	if !ok {
		c.log.Debug().Msg("position unknown, speed change deferred")
		return
	}

	err := c.g.Pipeline.Seek(backend.SeekRequest{
		Rate:  c.speed,
		Start: pos,
		Stop:  backend.StreamEnd,
		Flags: backend.SeekFlush | backend.SeekAccurate,
	})
	c.session.RateApplied = true
	c.session.Seeks++
	if err != nil {
		c.log.Warn().Err(err).Float64("rate", c.speed).Msg("speed change failed")
		return
	}
	c.log.Info().Float64("rate", c.speed).Dur("position", pos).Msg("speed changed")
}

// Shutdown cancels the stream subscription, releases the bus, stops the pipeline
// and releases it. It runs once; later calls return the first result.
func (c *Controller) Shutdown() error {
	c.shutdownOnce.Do(func() {
		if c.sub != nil {
			c.sub.Cancel()
		}
		if c.bus != nil {
			c.bus.Close()
		}
		c.shutdownErr = c.g.Close()
		switch c.state {
		case StateIdle:
			_ = c.fire(EventAbort)
		case StatePlaying:
			c.stop(OutcomeInterrupted, EventInterrupt)
		}
		c.log.Debug().Msg("pipeline released")
	})
	return c.shutdownErr
}
