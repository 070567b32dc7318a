// Package fake is a deterministic in-memory backend. It records every unit,
// property, link, attachment, state change, seek and release so tests can assert
// on how the core drove the media framework, and lets tests inject failures.
package fake

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/linuxmatters/fxplay/internal/backend"
)

// Injected failure errors.
var (
	ErrCreate    = errors.New("fake: no such element factory")
	ErrLink      = errors.New("fake: link refused")
	ErrProperty  = errors.New("fake: property refused")
	ErrAttach    = errors.New("fake: incompatible caps")
	ErrLinked    = errors.New("fake: input already linked")
	ErrNotMember = errors.New("fake: units are not in the same pipeline")

	ErrPropertyType = errors.New("fake: value does not match the property type")
)

// propertyTypes mirrors the GStreamer property types of the factories the
// player creates. A value of any other Go type is refused, as GObject would.
// Factories not listed accept any value.
var propertyTypes = map[string]map[string]reflect.Type{
	"uridecodebin":  {"uri": typeOf[string]()},
	"volume":        {"volume": typeOf[float64]()},
	"audiopanorama": {"panorama": typeOf[float32]()},
	"audiocheblimit": {
		"mode":   typeOf[backend.Enum](),
		"cutoff": typeOf[float32](),
	},
	"audiowsincband": {
		"mode":            typeOf[backend.Enum](),
		"lower-frequency": typeOf[float32](),
		"upper-frequency": typeOf[float32](),
	},
	"audioecho": {
		"delay":     typeOf[uint64](),
		"max-delay": typeOf[uint64](),
		"feedback":  typeOf[float32](),
		"intensity": typeOf[float32](),
	},
	"pitch": {
		"pitch": typeOf[float32](),
		"rate":  typeOf[float32](),
	},
	"audiornnoise": {"voice-activity-threshold": typeOf[float32]()},
	"videobalance": {
		"saturation": typeOf[float64](),
		"contrast":   typeOf[float64](),
		"brightness": typeOf[float64](),
	},
}

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Backend implements backend.Backend.
type Backend struct {
	mu sync.Mutex

	failFactories map[string]bool
	failLinks     map[string]bool
	failProps     map[string]bool
	failAttach    map[string]bool

	units     []*Unit
	pipelines []*Pipeline

	// OnPlaying runs after a pipeline successfully enters the playing state,
	// outside of any lock. Tests use it to emit streams and post messages.
	OnPlaying func(p *Pipeline)
}

// New returns an empty fake backend.
func New() *Backend {
	return &Backend{
		failFactories: map[string]bool{},
		failLinks:     map[string]bool{},
		failProps:     map[string]bool{},
		failAttach:    map[string]bool{},
	}
}

// FailFactory makes NewUnit fail for the factory.
func (b *Backend) FailFactory(factory string) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failFactories[factory] = true
	return b
}

// FailLink makes linking from → to fail (unit names).
func (b *Backend) FailLink(from, to string) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failLinks[from+"->"+to] = true
	return b
}

// FailProperty makes setting the property on the named unit fail.
func (b *Backend) FailProperty(unit, property string) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failProps[unit+"."+property] = true
	return b
}

// FailAttach makes attaching any stream to the named unit's input fail.
func (b *Backend) FailAttach(unit string) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failAttach[unit] = true
	return b
}

func (b *Backend) failing(set map[string]bool, key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return set[key]
}

// NewPipeline implements backend.Backend.
func (b *Backend) NewPipeline(name string) (backend.Pipeline, error) {
	p := &Pipeline{
		b:          b,
		name:       name,
		state:      backend.StateNull,
		bus:        &Bus{ch: make(chan backend.Message, 256)},
		stateErrs:  map[backend.State]error{},
		positionOK: true,
	}
	b.mu.Lock()
	b.pipelines = append(b.pipelines, p)
	b.mu.Unlock()
	return p, nil
}

// NewUnit implements backend.Backend.
func (b *Backend) NewUnit(factory, name string) (backend.Unit, error) {
	if b.failing(b.failFactories, factory) {
		return nil, fmt.Errorf("%w: %s", ErrCreate, factory)
	}
	u := &Unit{
		b:        b,
		name:     name,
		factory:  factory,
		props:    map[string]any{},
		handlers: map[int]backend.StreamHandler{},
	}
	u.input = &Input{owner: name, unit: u}
	b.mu.Lock()
	b.units = append(b.units, u)
	b.mu.Unlock()
	return u, nil
}

// Unit returns the unit created with the given name, or nil.
func (b *Backend) Unit(name string) *Unit {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.units {
		if u.name == name {
			return u
		}
	}
	return nil
}

// Units returns every unit created so far, in creation order.
func (b *Backend) Units() []*Unit {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Unit(nil), b.units...)
}

// Pipeline returns the most recently created pipeline, or nil.
func (b *Backend) Pipeline() *Pipeline {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pipelines) == 0 {
		return nil
	}
	return b.pipelines[len(b.pipelines)-1]
}

// Unit is a recorded processing unit.
type Unit struct {
	b       *Backend
	name    string
	factory string
	input   *Input

	mu       sync.Mutex
	props    map[string]any
	links    []string
	pipeline *Pipeline
	releases int
	handlers map[int]backend.StreamHandler
	nextSub  int
}

func (u *Unit) Name() string    { return u.name }
func (u *Unit) Factory() string { return u.factory }

// Set implements backend.Unit.
func (u *Unit) Set(property string, value any) error {
	if u.b.failing(u.b.failProps, u.name+"."+property) {
		return fmt.Errorf("%w: %s.%s", ErrProperty, u.name, property)
	}
	if props, ok := propertyTypes[u.factory]; ok {
		want, known := props[property]
		if !known {
			return fmt.Errorf("%w: %s has no property %q", ErrProperty, u.factory, property)
		}
		if got := reflect.TypeOf(value); got != want {
			return fmt.Errorf("%w: %s.%s wants %s, got %v", ErrPropertyType, u.name, property, want, got)
		}
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.props[property] = value
	return nil
}

// Link implements backend.Unit. Both units must be members of the same pipeline.
func (u *Unit) Link(dst backend.Unit) error {
	d, ok := dst.(*Unit)
	if !ok {
		return fmt.Errorf("fake: cannot link to %T", dst)
	}
	if p := u.owner(); p == nil || p != d.owner() {
		return fmt.Errorf("%w: %s -> %s", ErrNotMember, u.name, d.name)
	}
	if u.b.failing(u.b.failLinks, u.name+"->"+d.name) {
		return fmt.Errorf("%w: %s -> %s", ErrLink, u.name, d.name)
	}
	u.mu.Lock()
	u.links = append(u.links, d.name)
	u.mu.Unlock()
	d.input.mark()
	return nil
}

// Input implements backend.Unit.
func (u *Unit) Input() (backend.Input, error) { return u.input, nil }

// OnStream implements backend.Unit.
func (u *Unit) OnStream(h backend.StreamHandler) (backend.Subscription, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	id := u.nextSub
	u.nextSub++
	u.handlers[id] = h
	return &subscription{u: u, id: id}, nil
}

// Release implements backend.Unit.
func (u *Unit) Release() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.releases++
}

func (u *Unit) owner() *Pipeline {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pipeline
}

// Emit announces a stream with the given caps to every registered handler,
// synchronously on the calling goroutine, and returns it.
func (u *Unit) Emit(caps string) *Stream {
	u.mu.Lock()
	ids := make([]int, 0, len(u.handlers))
	for id := range u.handlers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	hs := make([]backend.StreamHandler, 0, len(ids))
	for _, id := range ids {
		hs = append(hs, u.handlers[id])
	}
	u.mu.Unlock()

	s := NewStream(caps)
	for _, h := range hs {
		h(s)
	}
	return s
}

// Property returns a recorded property value.
func (u *Unit) Property(name string) (any, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	v, ok := u.props[name]
	return v, ok
}

// Links returns the names of units this unit links to.
func (u *Unit) Links() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.links...)
}

// Releases returns how often Release was called on the unit directly.
func (u *Unit) Releases() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.releases
}

// Handlers returns the number of active stream subscriptions.
func (u *Unit) Handlers() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.handlers)
}

// InputPort returns the unit's input for assertions.
func (u *Unit) InputPort() *Input { return u.input }

// Member reports whether the unit was added to a pipeline.
func (u *Unit) Member() bool { return u.owner() != nil }

type subscription struct {
	once sync.Once
	u    *Unit
	id   int
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		s.u.mu.Lock()
		delete(s.u.handlers, s.id)
		s.u.mu.Unlock()
	})
}

// Input is a unit's input endpoint.
type Input struct {
	owner string
	unit  *Unit

	mu          sync.Mutex
	attached    bool
	attachments int
}

func (i *Input) Owner() string { return i.owner }

func (i *Input) Attached() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attached
}

// Attachments returns how many streams were attached to the input.
func (i *Input) Attachments() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attachments
}

func (i *Input) mark() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.attached = true
}

// Stream is a discovered stream.
type Stream struct {
	caps string

	mu       sync.Mutex
	attached []string
}

// NewStream returns a stream with the given caps media type.
func NewStream(caps string) *Stream { return &Stream{caps: caps} }

func (s *Stream) Caps() string { return s.caps }

// Attach implements backend.Stream. Like a real pad link it refuses an input that
// is already linked.
func (s *Stream) Attach(in backend.Input) error {
	fi, ok := in.(*Input)
	if !ok {
		return fmt.Errorf("fake: cannot attach to %T", in)
	}
	if fi.unit != nil && fi.unit.b.failing(fi.unit.b.failAttach, fi.owner) {
		return fmt.Errorf("%w: %s -> %s", ErrAttach, s.caps, fi.owner)
	}
	fi.mu.Lock()
	if fi.attached {
		fi.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrLinked, fi.owner)
	}
	fi.attached = true
	fi.attachments++
	fi.mu.Unlock()

	s.mu.Lock()
	s.attached = append(s.attached, fi.owner)
	s.mu.Unlock()
	return nil
}

// AttachedTo returns the inputs the stream was attached to.
func (s *Stream) AttachedTo() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.attached...)
}

// Pipeline is a recorded pipeline container.
type Pipeline struct {
	b    *Backend
	name string
	bus  *Bus

	mu              sync.Mutex
	members         []*Unit
	state           backend.State
	history         []backend.State
	stateErrs       map[backend.State]error
	position        time.Duration
	positionOK      bool
	positionQueries int
	seeks           []backend.SeekRequest
	seekErr         error
	releases        int
}

func (p *Pipeline) Name() string { return p.name }

// Add implements backend.Pipeline.
func (p *Pipeline) Add(units ...backend.Unit) error {
	for _, bu := range units {
		u, ok := bu.(*Unit)
		if !ok {
			return fmt.Errorf("fake: cannot add %T", bu)
		}
		u.mu.Lock()
		if u.pipeline != nil {
			u.mu.Unlock()
			return fmt.Errorf("fake: %s already belongs to %s", u.name, u.pipeline.name)
		}
		u.pipeline = p
		u.mu.Unlock()

		p.mu.Lock()
		p.members = append(p.members, u)
		p.mu.Unlock()
	}
	return nil
}

// FailState makes SetState(s) return err.
func (p *Pipeline) FailState(s backend.State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stateErrs[s] = err
}

// SetState implements backend.Pipeline.
func (p *Pipeline) SetState(s backend.State) error {
	p.mu.Lock()
	p.history = append(p.history, s)
	if err := p.stateErrs[s]; err != nil {
		p.mu.Unlock()
		return err
	}
	p.state = s
	p.mu.Unlock()

	if s == backend.StatePlaying && p.b.OnPlaying != nil {
		p.b.OnPlaying(p)
	}
	return nil
}

// Bus implements backend.Pipeline.
func (p *Pipeline) Bus() (backend.Bus, error) { return p.bus, nil }

// FakeBus returns the concrete bus.
func (p *Pipeline) FakeBus() *Bus { return p.bus }

// SetPosition sets what Position reports.
func (p *Pipeline) SetPosition(pos time.Duration, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position, p.positionOK = pos, ok
}

// Position implements backend.Pipeline.
func (p *Pipeline) Position() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.positionQueries++
	return p.position, p.positionOK
}

// PositionQueries returns how often Position was called.
func (p *Pipeline) PositionQueries() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionQueries
}

// FailSeek makes Seek return err after recording the request.
func (p *Pipeline) FailSeek(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seekErr = err
}

// Seek implements backend.Pipeline.
func (p *Pipeline) Seek(req backend.SeekRequest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, req)
	return p.seekErr
}

// Seeks returns every seek request received.
func (p *Pipeline) Seeks() []backend.SeekRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]backend.SeekRequest(nil), p.seeks...)
}

// Release implements backend.Pipeline.
func (p *Pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
}

// Releases returns how often Release was called.
func (p *Pipeline) Releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

// State returns the current state.
func (p *Pipeline) State() backend.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// History returns every requested state, including failed requests.
func (p *Pipeline) History() []backend.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]backend.State(nil), p.history...)
}

// Members returns the names of the units added to the pipeline.
func (p *Pipeline) Members() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.members))
	for _, u := range p.members {
		names = append(names, u.name)
	}
	return names
}

// Post queues a bus message.
func (p *Pipeline) Post(m backend.Message) { p.bus.Post(m) }

// PostStateChanged queues a state change posted by the pipeline itself.
func (p *Pipeline) PostStateChanged(from, to backend.State) {
	p.bus.Post(backend.Message{Kind: backend.MessageStateChanged, Source: p.name, OldState: from, NewState: to})
}

// PostEOS queues an end-of-stream notification.
func (p *Pipeline) PostEOS() {
	p.bus.Post(backend.Message{Kind: backend.MessageEOS, Source: p.name})
}

// PostError queues an error notification from the named source.
func (p *Pipeline) PostError(source string, err error, debug string) {
	p.bus.Post(backend.Message{Kind: backend.MessageError, Source: source, Err: err, Debug: debug})
}

// Bus is a buffered notification queue.
type Bus struct {
	ch chan backend.Message

	mu     sync.Mutex
	closed int
	polls  int
}

// Post queues m; it is dropped when the queue is full.
func (b *Bus) Post(m backend.Message) {
	select {
	case b.ch <- m:
	default:
	}
}

// Poll implements backend.Bus.
func (b *Bus) Poll(timeout time.Duration) (backend.Message, bool) {
	b.mu.Lock()
	b.polls++
	b.mu.Unlock()

	if timeout < 0 {
		return <-b.ch, true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m := <-b.ch:
		return m, true
	case <-timer.C:
		return backend.Message{}, false
	}
}

// Close implements backend.Bus.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
}

// Closed returns how often Close was called.
func (b *Bus) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Polls returns how often Poll was called.
func (b *Bus) Polls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls
}
