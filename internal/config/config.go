// Package config turns command-line options and YAML presets into the immutable
// playback configuration: the source, the media mode and the enabled effects with
// every parameter resolved to a user value or its documented default.
package config

import (
	"github.com/linuxmatters/fxplay/internal/effects"
)

// MediaMode selects which media kinds are played.
type MediaMode int

const (
	AudioOnly MediaMode = iota
	AudioAndVideo
)

func (m MediaMode) String() string {
	if m == AudioOnly {
		return "audio-only"
	}
	return "audio+video"
}

// Settings is the resolved state of one effect.
type Settings struct {
	Enabled bool
	Values  effects.Values
}

// Config is the resolved user intent. It is not modified after Resolve returns.
type Config struct {
	Source string // Path or URL as given
	URI    string // Backend-consumable URI
	Mode   MediaMode

	Effects map[effects.ID]Settings

	Speed    float64 // Target playback rate
	SpeedSet bool
}

// Enabled reports whether the effect was switched on.
func (c *Config) Enabled(id effects.ID) bool {
	return c.Effects[id].Enabled
}

// Value returns a resolved parameter value. Every registered effect carries every
// parameter, so ok is only false for unknown effects or parameter names.
func (c *Config) Value(id effects.ID, param string) (float64, bool) {
	s, ok := c.Effects[id]
	if !ok {
		return 0, false
	}
	v, ok := s.Values[param]
	return v, ok
}

// EnabledEffects returns the enabled effects of a stage in canonical order.
func (c *Config) EnabledEffects(stage effects.Stage) []effects.ID {
	var ids []effects.ID
	for _, id := range effects.Order(stage) {
		if c.Enabled(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// PassMode returns the pass filter mode, PassNone when the filter is off.
func (c *Config) PassMode() effects.PassMode {
	if !c.Enabled(effects.PassFilter) {
		return effects.PassNone
	}
	v, _ := c.Value(effects.PassFilter, effects.ParamMode)
	return effects.PassMode(v)
}

// newConfig returns a Config with every effect disabled and set to its defaults.
func newConfig() *Config {
	c := &Config{
		Mode:    AudioAndVideo,
		Effects: make(map[effects.ID]Settings),
		Speed:   1.0,
	}
	for _, e := range effects.All() {
		c.Effects[e.ID] = Settings{Values: e.Defaults()}
	}
	return c
}

// set stores a parameter value and optionally enables the effect.
func (c *Config) set(id effects.ID, param string, v float64, enable bool) {
	s := c.Effects[id]
	s.Values[param] = v
	if enable {
		s.Enabled = true
	}
	c.Effects[id] = s
}

func (c *Config) enable(id effects.ID) {
	s := c.Effects[id]
	s.Enabled = true
	c.Effects[id] = s
}
