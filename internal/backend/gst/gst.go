// Package gst implements the backend boundary on GStreamer through go-gst.
package gst

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gst/go-glib/glib"
	"github.com/go-gst/go-gst/gst"

	"github.com/linuxmatters/fxplay/internal/backend"
)

var initOnce sync.Once

// Backend creates GStreamer pipelines and elements.
type Backend struct{}

// New initialises GStreamer once per process and returns a Backend.
func New() *Backend {
	initOnce.Do(func() { gst.Init(nil) })
	return &Backend{}
}

// NewPipeline implements backend.Backend.
func (*Backend) NewPipeline(name string) (backend.Pipeline, error) {
	p, err := gst.NewPipeline(name)
	if err != nil {
		return nil, fmt.Errorf("create pipeline %q: %w", name, err)
	}
	return &pipeline{p: p, name: name}, nil
}

// NewUnit implements backend.Backend.
func (*Backend) NewUnit(factory, name string) (backend.Unit, error) {
	e, err := gst.NewElementWithName(factory, name)
	if err != nil {
		return nil, fmt.Errorf("create %s element %q: %w", factory, name, err)
	}
	return &unit{e: e, name: name, factory: factory}, nil
}

type unit struct {
	e       *gst.Element
	name    string
	factory string
}

func (u *unit) Name() string    { return u.name }
func (u *unit) Factory() string { return u.factory }

func (u *unit) Set(property string, value any) error {
	if u.e == nil {
		return backend.ErrReleased
	}
	if n, ok := value.(backend.Enum); ok {
		return u.setEnum(property, int(n))
	}
	return u.e.SetProperty(property, value)
}

// setEnum sets an enum property through a GValue of the property's own type;
// a plain int would be a G_TYPE_INT and is refused.
func (u *unit) setEnum(property string, n int) error {
	pt, err := u.e.GetPropertyType(property)
	if err != nil {
		return fmt.Errorf("%s has no property %q: %w", u.name, property, err)
	}
	v, err := glib.ValueInit(pt)
	if err != nil {
		return fmt.Errorf("init %s value for %s.%s: %w", pt.Name(), u.name, property, err)
	}
	v.SetEnum(n)
	return u.e.SetPropertyValue(property, v)
}

func (u *unit) Link(dst backend.Unit) error {
	d, ok := dst.(*unit)
	if !ok {
		return fmt.Errorf("cannot link %s to foreign unit %T", u.name, dst)
	}
	if u.e == nil || d.e == nil {
		return backend.ErrReleased
	}
	return u.e.Link(d.e)
}

func (u *unit) Input() (backend.Input, error) {
	if u.e == nil {
		return nil, backend.ErrReleased
	}
	pad := u.e.GetStaticPad("sink")
	if pad == nil {
		return nil, fmt.Errorf("%s has no static sink pad", u.name)
	}
	return &input{pad: pad, owner: u.name}, nil
}

func (u *unit) OnStream(h backend.StreamHandler) (backend.Subscription, error) {
	if u.e == nil {
		return nil, backend.ErrReleased
	}
	handle, err := u.e.Connect("pad-added", func(_ *gst.Element, pad *gst.Pad) {
		h(&stream{pad: pad})
	})
	if err != nil {
		return nil, fmt.Errorf("connect pad-added on %s: %w", u.name, err)
	}
	return &subscription{e: u.e, handle: handle}, nil
}

// Release drops the Go reference; the binding's finalizer releases the element.
func (u *unit) Release() { u.e = nil }

type subscription struct {
	once   sync.Once
	e      *gst.Element
	handle glib.SignalHandle
}

func (s *subscription) Cancel() {
	s.once.Do(func() { s.e.HandlerDisconnect(s.handle) })
}

type input struct {
	pad   *gst.Pad
	owner string
}

func (i *input) Owner() string  { return i.owner }
func (i *input) Attached() bool { return i.pad.IsLinked() }

type stream struct {
	pad *gst.Pad
}

func (s *stream) Caps() string {
	caps := s.pad.GetCurrentCaps()
	if caps == nil {
		return ""
	}
	st := caps.GetStructureAt(0)
	if st == nil {
		return ""
	}
	return st.Name()
}

func (s *stream) Attach(in backend.Input) error {
	i, ok := in.(*input)
	if !ok {
		return fmt.Errorf("cannot attach to foreign input %T", in)
	}
	if ret := s.pad.Link(i.pad); ret != gst.PadLinkOK {
		return fmt.Errorf("link %s to %s: %v", s.pad.GetName(), i.owner, ret)
	}
	return nil
}

type pipeline struct {
	p    *gst.Pipeline
	name string
}

func (p *pipeline) Name() string { return p.name }

func (p *pipeline) Add(units ...backend.Unit) error {
	if p.p == nil {
		return backend.ErrReleased
	}
	elems := make([]*gst.Element, 0, len(units))
	for _, bu := range units {
		u, ok := bu.(*unit)
		if !ok || u.e == nil {
			return fmt.Errorf("cannot add unit %T to pipeline", bu)
		}
		elems = append(elems, u.e)
	}
	return p.p.AddMany(elems...)
}

func (p *pipeline) SetState(s backend.State) error {
	if p.p == nil {
		return backend.ErrReleased
	}
	return p.p.SetState(toGstState(s))
}

func (p *pipeline) Bus() (backend.Bus, error) {
	if p.p == nil {
		return nil, backend.ErrReleased
	}
	b := p.p.GetPipelineBus()
	if b == nil {
		return nil, errors.New("pipeline has no bus")
	}
	return &bus{b: b}, nil
}

func (p *pipeline) Position() (time.Duration, bool) {
	if p.p == nil {
		return 0, false
	}
	ok, pos := p.p.QueryPosition(gst.FormatTime)
	if !ok || pos < 0 {
		return 0, false
	}
	return time.Duration(pos), true
}

func (p *pipeline) Seek(req backend.SeekRequest) error {
	if p.p == nil {
		return backend.ErrReleased
	}
	var flags gst.SeekFlags
	if req.Flags&backend.SeekFlush != 0 {
		flags |= gst.SeekFlagFlush
	}
	if req.Flags&backend.SeekAccurate != 0 {
		flags |= gst.SeekFlagAccurate
	}

	stopType, stop := gst.SeekTypeSet, int64(req.Stop)
	if req.Stop == backend.StreamEnd {
		stopType, stop = gst.SeekTypeEnd, 0
	}

	ev := gst.NewSeekEvent(req.Rate, gst.FormatTime, flags, gst.SeekTypeSet, int64(req.Start), stopType, stop)
	if !p.p.SendEvent(ev) {
		return fmt.Errorf("seek to rate %.2f rejected", req.Rate)
	}
	return nil
}

// Release drops the Go reference to the pipeline; its members go with it.
// The state must already be NULL.
func (p *pipeline) Release() { p.p = nil }

type bus struct {
	b *gst.Bus
}

const watched = gst.MessageError | gst.MessageEOS | gst.MessageStateChanged

func (b *bus) Poll(timeout time.Duration) (backend.Message, bool) {
	if b.b == nil {
		return backend.Message{}, false
	}
	var wait gst.ClockTime = gst.ClockTimeNone
	if timeout >= 0 {
		wait = gst.ClockTime(timeout)
	}
	msg := b.b.TimedPopFiltered(wait, watched)
	if msg == nil {
		return backend.Message{}, false
	}

	out := backend.Message{Source: msg.Source()}
	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		out.Kind = backend.MessageError
		out.Err = errors.New(gerr.Error())
		out.Debug = gerr.DebugString()
	case gst.MessageEOS:
		out.Kind = backend.MessageEOS
	case gst.MessageStateChanged:
		oldState, newState := msg.ParseStateChanged()
		out.Kind = backend.MessageStateChanged
		out.OldState = fromGstState(oldState)
		out.NewState = fromGstState(newState)
	default:
		return backend.Message{}, false
	}
	return out, true
}

func (b *bus) Close() { b.b = nil }

func toGstState(s backend.State) gst.State {
	switch s {
	case backend.StateNull:
		return gst.StateNull
	case backend.StateReady:
		return gst.StateReady
	case backend.StatePaused:
		return gst.StatePaused
	case backend.StatePlaying:
		return gst.StatePlaying
	default:
		return gst.VoidPending
	}
}

func fromGstState(s gst.State) backend.State {
	switch s {
	case gst.StateNull:
		return backend.StateNull
	case gst.StateReady:
		return backend.StateReady
	case gst.StatePaused:
		return backend.StatePaused
	case gst.StatePlaying:
		return backend.StatePlaying
	default:
		return backend.StateVoidPending
	}
}
