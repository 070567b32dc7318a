// Package stream attaches streams discovered by the source at runtime to the
// entry of the matching chain.
package stream

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/linuxmatters/fxplay/internal/backend"
)

// Kind is the media kind of a discovered stream.
type Kind int

const (
	Unknown Kind = iota
	Audio
	Video
)

func (k Kind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// Raw media type prefixes produced by the decoder.
const (
	audioCaps = "audio/x-raw"
	videoCaps = "video/x-raw"
)

// Classify derives the stream kind from a capability media type.
func Classify(caps string) Kind {
	switch {
	case strings.HasPrefix(caps, audioCaps):
		return Audio
	case strings.HasPrefix(caps, videoCaps):
		return Video
	default:
		return Unknown
	}
}

// Result is the outcome of handling one discovered stream.
type Result int

const (
	Attached Result = iota
	AlreadyAttached
	Ignored
	Failed
)

func (r Result) String() string {
	switch r {
	case Attached:
		return "attached"
	case AlreadyAttached:
		return "already-attached"
	case Ignored:
		return "ignored"
	default:
		return "failed"
	}
}

// AttachmentError is a stream that could not be attached to its chain.
type AttachmentError struct {
	Kind   Kind
	Caps   string
	Target string
	Err    error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("failed to attach %s stream (%s) to %s: %v", e.Kind, e.Caps, e.Target, e.Err)
}

func (e *AttachmentError) Unwrap() error { return e.Err }

// Stats counts handled streams per result.
type Stats struct {
	Attached        []Kind
	AlreadyAttached int
	Ignored         int
	Failed          int
}

// Attacher routes discovered streams to chain entries. Handle is safe to call from
// any goroutine; check-and-attach is serialized so duplicate notifications
// produce exactly one link.
type Attacher struct {
	audio backend.Unit
	video backend.Unit // nil when video is not played
	log   zerolog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewAttacher returns an Attacher for the given chain entries. video is nil in
// audio-only mode.
func NewAttacher(audio, video backend.Unit, logger zerolog.Logger) *Attacher {
	return &Attacher{audio: audio, video: video, log: logger}
}

// Handle attaches s to the entry of its chain.
func (a *Attacher) Handle(s backend.Stream) (Result, error) {
	caps := s.Caps()
	kind := Classify(caps)

	var target backend.Unit
	switch kind {
	case Audio:
		target = a.audio
	case Video:
		target = a.video
	}
	if target == nil {
		a.mu.Lock()
		a.stats.Ignored++
		a.mu.Unlock()
		a.log.Debug().Str("caps", caps).Stringer("kind", kind).Msg("stream ignored")
		return Ignored, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	in, err := target.Input()
	if err != nil {
		return a.failed(kind, caps, target.Name(), err)
	}
	if in.Attached() {
		a.stats.AlreadyAttached++
		a.log.Debug().Str("caps", caps).Str("target", in.Owner()).Msg("stream already attached")
		return AlreadyAttached, nil
	}
	if err := s.Attach(in); err != nil {
		return a.failed(kind, caps, in.Owner(), err)
	}

	a.stats.Attached = append(a.stats.Attached, kind)
	a.log.Info().Str("caps", caps).Str("target", in.Owner()).Msg("stream attached")
	return Attached, nil
}

// failed must be called with a.mu held.
func (a *Attacher) failed(kind Kind, caps, target string, err error) (Result, error) {
	a.stats.Failed++
	aerr := &AttachmentError{Kind: kind, Caps: caps, Target: target, Err: err}
	a.log.Warn().Err(aerr).Msg("stream not attached, playback continues without it")
	return Failed, aerr
}

// Register subscribes the attacher to streams discovered by source.
func (a *Attacher) Register(source backend.Unit) (backend.Subscription, error) {
	sub, err := source.OnStream(func(s backend.Stream) {
		// Failures are logged by Handle
		_, _ = a.Handle(s)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s for streams: %w", source.Name(), err)
	}
	return sub, nil
}

// Stats returns a snapshot of the handled streams.
func (a *Attacher) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Attached = append([]Kind(nil), a.stats.Attached...)
	return s
}
