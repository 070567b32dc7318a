package effects

import "github.com/linuxmatters/fxplay/internal/backend"

// PassMode selects the pass filter response. The numeric values are the
// audiocheblimit "mode" enum.
type PassMode int

const (
	PassLow  PassMode = 0
	PassHigh PassMode = 1
	PassNone PassMode = -1
)

func (m PassMode) String() string {
	switch m {
	case PassLow:
		return "low-pass"
	case PassHigh:
		return "high-pass"
	default:
		return "none"
	}
}

// audiowsincband "mode" enum value for band-reject.
const bandReject = 1

// Colour inversion preset applied through videobalance.
const (
	colorInvertContrast   = 0.1
	colorInvertBrightness = 0.1
)

// Parameter names shared with the configuration layer.
const (
	ParamVolume     = "volume"
	ParamPanorama   = "panorama"
	ParamMode       = "mode"
	ParamCutoff     = "cutoff"
	ParamFrequency  = "frequency"
	ParamWidth      = "width"
	ParamDelay      = "delay"
	ParamFeedback   = "feedback"
	ParamIntensity  = "intensity"
	ParamPitch      = "pitch"
	ParamRate       = "rate"
	ParamThreshold  = "threshold"
	ParamSaturation = "saturation"
	ParamContrast   = "contrast"
	ParamBrightness = "brightness"
)

// defaultEchoMaxDelay is audioecho's default max-delay (1s). The element refuses
// a delay above max-delay, so max-delay is raised with it.
const defaultEchoMaxDelay = 1_000_000_000

// MaxEchoDelay is the longest accepted echo delay in nanoseconds (about 104
// days). Parameter values are float64, which holds every integer up to 2^53
// exactly.
const MaxEchoDelay = 1 << 53

// registry maps ID to its Effect. Entries are never mutated after init.
var registry = map[ID]Effect{
	Volume: {
		ID:      Volume,
		Stage:   StageAudio,
		Factory: "volume",
		Unit:    "volume-controller-filter",
		Params: []Param{
			{Name: ParamVolume, Property: "volume", Kind: KindDouble, Default: 1.0, Min: 0, Max: 1, Bounded: true},
		},
	},
	Panorama: {
		ID:      Panorama,
		Stage:   StageAudio,
		Factory: "audiopanorama",
		Unit:    "panorama-filter",
		Params: []Param{
			{Name: ParamPanorama, Property: "panorama", Kind: KindFloat, Default: 0, Min: -1, Max: 1, Bounded: true},
		},
	},
	PassFilter: {
		ID:      PassFilter,
		Stage:   StageAudio,
		Factory: "audiocheblimit",
		Unit:    "passfilter",
		Params: []Param{
			{Name: ParamMode, Property: "mode", Kind: KindEnum, Default: float64(PassLow), Min: 0, Max: 1, Bounded: true},
			{Name: ParamCutoff, Property: "cutoff", Kind: KindFloat, Default: 0, Min: 0, Max: 100000, Bounded: true},
		},
	},
	HumNotch: {
		ID:      HumNotch,
		Stage:   StageAudio,
		Factory: "audiowsincband",
		Unit:    "hum-notch-filter",
		Params: []Param{
			{Name: ParamFrequency, Kind: KindFloat, Default: 50, Min: 50, Max: 60, Bounded: true},
			{Name: ParamWidth, Kind: KindFloat, Default: 10, Min: 1, Max: 40, Bounded: true},
		},
		Derive: func(v Values) []Property {
			f, w := v[ParamFrequency], v[ParamWidth]
			return []Property{
				{Name: "mode", Value: backend.Enum(bandReject)},
				{Name: "lower-frequency", Value: float32(f - w/2)},
				{Name: "upper-frequency", Value: float32(f + w/2)},
			}
		},
	},
	Echo: {
		ID:      Echo,
		Stage:   StageAudio,
		Factory: "audioecho",
		Unit:    "reverb-filter",
		Params: []Param{
			{Name: ParamDelay, Property: "delay", Kind: KindUint64, Default: 1, Min: 0, Max: MaxEchoDelay, Bounded: true},
			{Name: ParamFeedback, Property: "feedback", Kind: KindFloat, Default: 0, Min: 0, Max: 1, Bounded: true},
			{Name: ParamIntensity, Property: "intensity", Kind: KindFloat, Default: 0, Min: 0, Max: 1, Bounded: true},
		},
		Derive: func(v Values) []Property {
			if d := v[ParamDelay]; d > defaultEchoMaxDelay {
				// max-delay can only be set before the element leaves the NULL state,
				// which is always the case here: properties are applied at creation.
				return []Property{{Name: "max-delay", Value: uint64(d)}}
			}
			return nil
		},
	},
	Pitch: {
		ID:      Pitch,
		Stage:   StageAudio,
		Factory: "pitch",
		Unit:    "pitch-filter",
		Params: []Param{
			{Name: ParamPitch, Property: "pitch", Kind: KindFloat, Default: 1.0, Min: 0.1, Max: 10, Bounded: true},
			{Name: ParamRate, Property: "rate", Kind: KindFloat, Default: 1.0, Min: 0.1, Max: 10, Bounded: true},
		},
	},
	NoiseReduction: {
		ID:      NoiseReduction,
		Stage:   StageAudio,
		Factory: "audiornnoise",
		Unit:    "noise-reduction-filter",
		Params: []Param{
			{Name: ParamThreshold, Property: "voice-activity-threshold", Kind: KindFloat, Default: 0, Min: 0, Max: 1, Bounded: true},
		},
	},
	VideoBalance: {
		ID:      VideoBalance,
		Stage:   StageVideo,
		Factory: "videobalance",
		Unit:    "video-balance",
		Params: []Param{
			{Name: ParamSaturation, Property: "saturation", Kind: KindDouble, Default: 1.0, Min: 0, Max: 2, Bounded: true},
			{Name: ParamContrast, Property: "contrast", Kind: KindDouble, Default: 1.0, Min: 0, Max: 2, Bounded: true},
			{Name: ParamBrightness, Property: "brightness", Kind: KindDouble, Default: 0, Min: -1, Max: 1, Bounded: true},
		},
	},
}

// ColorInvertValues returns the contrast/brightness preset used by --colorinvert.
func ColorInvertValues() Values {
	return Values{
		ParamContrast:   colorInvertContrast,
		ParamBrightness: colorInvertBrightness,
	}
}
