package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/linuxmatters/fxplay/internal/effects"
)

// numericOption binds a string flag to an effect parameter. Setting a valid value
// enables the effect unless enables is false.
type numericOption struct {
	flag    string
	value   func(*Options) string
	effect  effects.ID
	param   string
	enables bool
}

var numericOptions = []numericOption{
	{"volume", func(o *Options) string { return o.Volume }, effects.Volume, effects.ParamVolume, true},
	{"balance", func(o *Options) string { return o.Balance }, effects.Panorama, effects.ParamPanorama, true},
	{"delay", func(o *Options) string { return o.Delay }, effects.Echo, effects.ParamDelay, true},
	{"feedback", func(o *Options) string { return o.Feedback }, effects.Echo, effects.ParamFeedback, true},
	{"intensity", func(o *Options) string { return o.Intensity }, effects.Echo, effects.ParamIntensity, true},
	{"pitch", func(o *Options) string { return o.Pitch }, effects.Pitch, effects.ParamPitch, true},
	{"noisethreshold", func(o *Options) string { return o.NoiseThreshold }, effects.NoiseReduction, effects.ParamThreshold, true},
	{"grayscale", func(o *Options) string { return o.Grayscale }, effects.VideoBalance, effects.ParamSaturation, true},
}

// Resolve validates opts and returns the configuration. Rejected values are
// returned as *ValidationError, logged as warnings, and leave the parameter at
// its default without enabling the effect. The error is fatal: no source, or a
// local source that does not exist.
func Resolve(opts *Options, logger zerolog.Logger) (*Config, []error, error) {
	cfg := newConfig()
	var problems []error
	reject := func(err *ValidationError) {
		logger.Warn().Str("option", err.Flag).Str("value", err.Value).Msg(err.Reason)
		problems = append(problems, err)
	}

	cfg.Source = opts.Location()
	uri, err := ResolveSource(cfg.Source)
	if err != nil {
		return nil, nil, err
	}
	cfg.URI = uri

	// The explicit flag always wins over detection
	cfg.Mode = DetectMode(cfg.Source)
	switch {
	case opts.Audio:
		cfg.Mode = AudioOnly
	case opts.Video:
		cfg.Mode = AudioAndVideo
	}

	for _, n := range numericOptions {
		raw := n.value(opts)
		if raw == "" {
			continue
		}
		p, _ := effects.MustLookup(n.effect).Param(n.param)
		v, verr := parseParam(n.flag, raw, p)
		if verr != nil {
			reject(verr)
			continue
		}
		cfg.set(n.effect, n.param, v, n.enables)
	}

	// The cutoff is only read once a pass mode is chosen
	switch {
	case opts.LowPass || opts.HighPass:
		mode := effects.PassLow
		if opts.HighPass {
			mode = effects.PassHigh
		}
		cfg.set(effects.PassFilter, effects.ParamMode, float64(mode), true)
		if opts.Cutoff != "" {
			p, _ := effects.MustLookup(effects.PassFilter).Param(effects.ParamCutoff)
			if v, verr := parseParam("cutoff", opts.Cutoff, p); verr != nil {
				reject(verr)
			} else {
				cfg.set(effects.PassFilter, effects.ParamCutoff, v, true)
			}
		}
	case opts.Cutoff != "":
		reject(&ValidationError{Flag: "cutoff", Value: opts.Cutoff, Reason: "ignored without --lowpass or --highpass"})
	}

	if opts.HumNotch {
		freq := float64(effects.MainsFrequency())
		if opts.Mains != "" {
			if f, verr := parseMains(opts.Mains); verr != nil {
				reject(verr)
			} else {
				freq = f
			}
		}
		cfg.set(effects.HumNotch, effects.ParamFrequency, freq, true)
	} else if opts.Mains != "" {
		reject(&ValidationError{Flag: "mains", Value: opts.Mains, Reason: "ignored without --humnotch"})
	}

	if opts.ColorInvert {
		for param, v := range effects.ColorInvertValues() {
			cfg.set(effects.VideoBalance, param, v, true)
		}
	}

	if opts.Speed != "" {
		if s, verr := parseSpeed(opts.Speed); verr != nil {
			reject(verr)
		} else {
			cfg.Speed, cfg.SpeedSet = s, true
		}
	}

	if cfg.Mode == AudioOnly {
		for _, id := range cfg.EnabledEffects(effects.StageVideo) {
			logger.Debug().Str("effect", string(id)).Msg("video effect has no stage in audio-only mode")
		}
	}

	return cfg, problems, nil
}

// parseParam parses raw with the precision of the parameter's backend type and
// checks its range.
func parseParam(flag, raw string, p effects.Param) (float64, *ValidationError) {
	var v float64
	var err error
	switch p.Kind {
	case effects.KindUint64:
		var u uint64
		u, err = strconv.ParseUint(raw, 10, 64)
		// Compared as an integer: above 2^53 the float64 rounds into range
		if err == nil && p.Bounded && u > uint64(p.Max) {
			return 0, outOfRange(flag, raw, p)
		}
		v = float64(u)
	case effects.KindFloat:
		v, err = strconv.ParseFloat(raw, 32)
	default:
		v, err = strconv.ParseFloat(raw, 64)
	}
	if err != nil {
		return 0, &ValidationError{Flag: flag, Value: raw, Reason: numError(err), Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Flag: flag, Value: raw, Reason: "not a finite number", Err: ErrOutOfRange}
	}
	if !p.InRange(v) {
		return 0, outOfRange(flag, raw, p)
	}
	return v, nil
}

func outOfRange(flag, raw string, p effects.Param) *ValidationError {
	return &ValidationError{Flag: flag, Value: raw, Reason: fmt.Sprintf("must be within [%g, %g]", p.Min, p.Max), Err: ErrOutOfRange}
}

func parseSpeed(raw string) (float64, *ValidationError) {
	v, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return 0, &ValidationError{Flag: "speed", Value: raw, Reason: numError(err), Err: err}
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Flag: "speed", Value: raw, Reason: "must be greater than 0", Err: ErrOutOfRange}
	}
	return v, nil
}

func parseMains(raw string) (float64, *ValidationError) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Flag: "mains", Value: raw, Reason: numError(err), Err: err}
	}
	if v != effects.Mains50Hz && v != effects.Mains60Hz {
		return 0, &ValidationError{Flag: "mains", Value: raw, Reason: "must be 50 or 60", Err: ErrOutOfRange}
	}
	return float64(v), nil
}

func numError(err error) string {
	if errors.Is(err, strconv.ErrRange) {
		return "number out of range"
	}
	return "not a number"
}
