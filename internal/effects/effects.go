// Package effects is the catalog of selectable processing units: what each effect is
// called, which media stage it belongs to, which backend element implements it, and
// the parameters (with defaults and ranges) it needs.
package effects

import (
	"fmt"
	"math"

	"github.com/linuxmatters/fxplay/internal/backend"
)

// ID identifies an effect in the processing graph
type ID string

// Effect identifiers
const (
	// Audio effects
	Volume         ID = "volume"         // Gain (volume element)
	Panorama       ID = "panorama"       // Stereo balance, left ear to right ear
	PassFilter     ID = "passfilter"     // Chebyshev low-pass or high-pass
	HumNotch       ID = "humnotch"       // Band-reject around the mains frequency
	Echo           ID = "echo"           // Echo / reverb
	Pitch          ID = "pitch"          // Pitch and rate shift
	NoiseReduction ID = "noisereduction" // RNNoise voice-activity denoiser

	// Video effects
	VideoBalance ID = "videobalance" // Saturation (grayscale) and colour inversion preset
)

// Stage is the media kind an effect processes.
type Stage int

const (
	StageAudio Stage = iota
	StageVideo
)

func (s Stage) String() string {
	switch s {
	case StageAudio:
		return "audio"
	case StageVideo:
		return "video"
	default:
		return "unknown"
	}
}

// AudioOrder is the canonical insertion order of audio effects between the resampler
// and the audio sink. The order is fixed and independent of the order options were given:
// - Volume and Panorama first: level and placement before any filtering
// - PassFilter then HumNotch: frequency shaping happens on the dry signal
// - Echo after filtering so reflections carry the filtered tone
// - Pitch after echo so the tail is shifted together with the source
// - NoiseReduction last: RNNoise works best on the final signal before the sink
var AudioOrder = []ID{
	Volume,
	Panorama,
	PassFilter,
	HumNotch,
	Echo,
	Pitch,
	NoiseReduction,
}

// VideoOrder is the canonical insertion order of video effects between the video
// converter and the video sink.
var VideoOrder = []ID{
	VideoBalance,
}

// Kind is the backend value type of a parameter. Element properties are strictly
// typed, so a float64 for a gfloat property is rejected by the backend.
type Kind int

const (
	KindDouble Kind = iota // float64
	KindFloat              // float32
	KindUint64             // uint64
	KindEnum               // backend.Enum
)

// Param describes one parameter of an effect.
type Param struct {
	Name     string  // Configuration key, e.g. "cutoff"
	Property string  // Backend property; empty when the value only feeds Derive
	Kind     Kind    // Backend value type
	Default  float64 // Documented default
	Min      float64 // Inclusive lower bound (only when Bounded)
	Max      float64 // Inclusive upper bound (only when Bounded)
	Bounded  bool
}

// InRange reports whether v is acceptable for the parameter.
func (p Param) InRange(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if !p.Bounded {
		return true
	}
	return v >= p.Min && v <= p.Max
}

// Convert returns v in the Go type the backend expects for this parameter.
func (p Param) Convert(v float64) any {
	switch p.Kind {
	case KindFloat:
		return float32(v)
	case KindUint64:
		switch {
		case v < 0:
			return uint64(0)
		case v >= math.MaxUint64:
			return uint64(math.MaxUint64)
		}
		return uint64(v)
	case KindEnum:
		return backend.Enum(v)
	default:
		return v
	}
}

// Property is a backend property assignment.
type Property struct {
	Name  string
	Value any
}

// Values holds resolved parameter values keyed by Param.Name.
type Values map[string]float64

// Effect is a registry entry.
type Effect struct {
	ID      ID
	Stage   Stage
	Factory string // Backend element factory name
	Unit    string // Unit name inside the pipeline
	Params  []Param

	// Derive returns extra properties computed from the resolved values, applied
	// after the direct parameter properties. Nil for most effects.
	Derive func(Values) []Property
}

// Param returns the named parameter.
func (e Effect) Param(name string) (Param, bool) {
	for _, p := range e.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// Defaults returns a Values map holding every parameter's default.
func (e Effect) Defaults() Values {
	v := make(Values, len(e.Params))
	for _, p := range e.Params {
		v[p.Name] = p.Default
	}
	return v
}

// Properties returns the ordered backend property assignments for the given values.
// Missing values fall back to the parameter default.
func (e Effect) Properties(values Values) []Property {
	props := make([]Property, 0, len(e.Params)+2)
	resolved := make(Values, len(e.Params))
	for _, p := range e.Params {
		v, ok := values[p.Name]
		if !ok {
			v = p.Default
		}
		resolved[p.Name] = v
		if p.Property == "" {
			continue
		}
		props = append(props, Property{Name: p.Property, Value: p.Convert(v)})
	}
	if e.Derive != nil {
		props = append(props, e.Derive(resolved)...)
	}
	return props
}

// Lookup returns the registry entry for id.
func Lookup(id ID) (Effect, bool) {
	e, ok := registry[id]
	return e, ok
}

// MustLookup is Lookup for identifiers known at compile time.
func MustLookup(id ID) Effect {
	e, ok := registry[id]
	if !ok {
		panic(fmt.Sprintf("effects: unknown effect %q", id))
	}
	return e
}

// All returns every registered effect in canonical order, audio first.
func All() []Effect {
	out := make([]Effect, 0, len(AudioOrder)+len(VideoOrder))
	for _, id := range AudioOrder {
		out = append(out, registry[id])
	}
	for _, id := range VideoOrder {
		out = append(out, registry[id])
	}
	return out
}

// Order returns the canonical order for a stage.
func Order(stage Stage) []ID {
	if stage == StageVideo {
		return VideoOrder
	}
	return AudioOrder
}
