package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// presetResolver feeds flag values from a YAML mapping keyed by long flag name.
// Values given on the command line take precedence.
//
//	volume: 0.5
//	lowpass: true
//	cutoff: 800
type presetResolver map[string]any

// YAMLLoader is a kong.ConfigurationLoader for YAML presets.
func YAMLLoader(r io.Reader) (kong.Resolver, error) {
	values := presetResolver{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode preset: %w", err)
	}
	return values, nil
}

// Validate rejects keys that do not name a flag.
func (p presetResolver) Validate(app *kong.Application) error {
	known := make(map[string]bool, len(app.Flags))
	for _, f := range app.Flags {
		known[f.Name] = true
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !known[k] {
			return fmt.Errorf("preset: unknown option %q", k)
		}
	}
	return nil
}

// Resolve returns the preset value for flag, or nil when the preset does not set it.
func (p presetResolver) Resolve(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
	if flag.Name == "config" {
		return nil, nil
	}
	raw, ok := p[flag.Name]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string, bool:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return nil, fmt.Errorf("preset: option %q has unsupported value of type %T", flag.Name, raw)
	}
}
