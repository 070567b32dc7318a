package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/fxplay/internal/effects"
)

// media creates an empty file in a temp dir and returns its path.
func media(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func parse(t *testing.T, args ...string) (*Options, error) {
	t.Helper()
	opts := &Options{}
	parser, err := NewParser(opts)
	require.NoError(t, err)
	_, err = Parse(parser, args)
	return opts, err
}

func resolve(t *testing.T, args ...string) (*Config, []error, string) {
	t.Helper()
	opts, err := parse(t, args...)
	require.NoError(t, err)

	var buf bytes.Buffer
	cfg, problems, err := Resolve(opts, zerolog.New(&buf))
	require.NoError(t, err)
	return cfg, problems, buf.String()
}

func TestResolveMovieWithoutFlags(t *testing.T) {
	cfg, problems, _ := resolve(t, media(t, "movie.mp4"))

	assert.Empty(t, problems)
	assert.Equal(t, AudioAndVideo, cfg.Mode)
	for _, e := range effects.All() {
		assert.False(t, cfg.Enabled(e.ID), "%s enabled", e.ID)
	}
	assert.False(t, cfg.SpeedSet)
	assert.True(t, strings.HasPrefix(cfg.URI, "file:///"), cfg.URI)
	assert.True(t, strings.HasSuffix(cfg.URI, "/movie.mp4"), cfg.URI)
}

func TestResolveSongWithLowPass(t *testing.T) {
	cfg, problems, _ := resolve(t, media(t, "song.mp3"), "--lowpass", "--cutoff", "500", "--volume", "0.5")

	assert.Empty(t, problems)
	assert.Equal(t, AudioOnly, cfg.Mode)
	assert.Equal(t, effects.PassLow, cfg.PassMode())

	cutoff, ok := cfg.Value(effects.PassFilter, effects.ParamCutoff)
	require.True(t, ok)
	assert.Equal(t, 500.0, cutoff)

	volume, _ := cfg.Value(effects.Volume, effects.ParamVolume)
	assert.Equal(t, 0.5, volume)

	assert.Equal(t, []effects.ID{effects.Volume, effects.PassFilter}, cfg.EnabledEffects(effects.StageAudio))
}

func TestResolveRejectsOutOfRangeVolume(t *testing.T) {
	cfg, problems, logs := resolve(t, media(t, "song.mp3"), "--volume", "1.5")

	require.Len(t, problems, 1)
	var verr *ValidationError
	require.ErrorAs(t, problems[0], &verr)
	assert.Equal(t, "volume", verr.Flag)
	assert.ErrorIs(t, verr, ErrOutOfRange)

	assert.False(t, cfg.Enabled(effects.Volume))
	v, _ := cfg.Value(effects.Volume, effects.ParamVolume)
	assert.Equal(t, 1.0, v)
	assert.Contains(t, logs, `"level":"warn"`)
	assert.Contains(t, logs, `"option":"volume"`)
}

func TestResolveValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		flag    string
		effect  effects.ID
		enabled bool
	}{
		{"balance below range", []string{"--balance=-2"}, "balance", effects.Panorama, false},
		{"balance not a number", []string{"--balance", "left"}, "balance", effects.Panorama, false},
		{"cutoff above range", []string{"--lowpass", "--cutoff", "200000"}, "cutoff", effects.PassFilter, true},
		{"cutoff without mode", []string{"--cutoff", "500"}, "cutoff", effects.PassFilter, false},
		{"bad cutoff without mode", []string{"--cutoff", "abc"}, "cutoff", effects.PassFilter, false},
		{"negative delay", []string{"--delay=-1"}, "delay", effects.Echo, false},
		{"delay past exact range", []string{"--delay", "9007199254740993"}, "delay", effects.Echo, false},
		{"feedback trailing junk", []string{"--feedback", "0.5x"}, "feedback", effects.Echo, false},
		{"pitch zero", []string{"--pitch", "0"}, "pitch", effects.Pitch, false},
		{"threshold NaN", []string{"--noisethreshold", "NaN"}, "noisethreshold", effects.NoiseReduction, false},
		{"grayscale infinite", []string{"--grayscale", "Inf"}, "grayscale", effects.VideoBalance, false},
		{"mains 55", []string{"--humnotch", "--mains", "55"}, "mains", effects.HumNotch, true},
		{"mains without humnotch", []string{"--mains", "60"}, "mains", effects.HumNotch, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{media(t, "song.flac")}, tt.args...)
			cfg, problems, _ := resolve(t, args...)

			require.Len(t, problems, 1, "problems: %v", problems)
			var verr *ValidationError
			require.ErrorAs(t, problems[0], &verr)
			assert.Equal(t, tt.flag, verr.Flag)
			assert.Equal(t, tt.enabled, cfg.Enabled(tt.effect))

			// Rejected values never replace the default
			e := effects.MustLookup(tt.effect)
			for _, p := range e.Params {
				if p.Name == effects.ParamMode || p.Name == effects.ParamFrequency {
					continue
				}
				v, ok := cfg.Value(tt.effect, p.Name)
				require.True(t, ok)
				assert.Equal(t, p.Default, v, "%s.%s", tt.effect, p.Name)
			}
		})
	}
}

func TestResolveEnabledEffectsCarryAllParams(t *testing.T) {
	cfg, problems, _ := resolve(t, media(t, "clip.mkv"),
		"--volume", "0.25", "--balance=-0.5", "--highpass", "--cutoff", "1000",
		"--humnotch", "--mains", "60", "--delay", "250000000", "--pitch", "1.5",
		"--noisethreshold", "0.5", "--grayscale", "0", "--colorinvert", "--speed", "2")
	require.Empty(t, problems)

	for _, e := range effects.All() {
		require.True(t, cfg.Enabled(e.ID), "%s not enabled", e.ID)
		for _, p := range e.Params {
			_, ok := cfg.Value(e.ID, p.Name)
			assert.True(t, ok, "%s.%s missing", e.ID, p.Name)
		}
	}

	assert.Equal(t, effects.PassHigh, cfg.PassMode())
	freq, _ := cfg.Value(effects.HumNotch, effects.ParamFrequency)
	assert.Equal(t, 60.0, freq)
	feedback, _ := cfg.Value(effects.Echo, effects.ParamFeedback)
	assert.Equal(t, 0.0, feedback, "unset echo parameter keeps its default")
	contrast, _ := cfg.Value(effects.VideoBalance, effects.ParamContrast)
	assert.InDelta(t, 0.1, contrast, 1e-9)
	assert.True(t, cfg.SpeedSet)
	assert.Equal(t, 2.0, cfg.Speed)
}

func TestResolveNegativeValueAsSeparateToken(t *testing.T) {
	cfg, problems, _ := resolve(t, media(t, "song.mp3"), "--balance", "-0.5")
	require.Empty(t, problems)

	assert.True(t, cfg.Enabled(effects.Panorama))
	balance, _ := cfg.Value(effects.Panorama, effects.ParamPanorama)
	assert.Equal(t, -0.5, balance)

	// Parsed as a value, then rejected by range like any other
	cfg, problems, _ = resolve(t, media(t, "song.mp3"), "--delay", "-1", "--speed", "-2")
	require.Len(t, problems, 2, "problems: %v", problems)
	assert.False(t, cfg.Enabled(effects.Echo))
	assert.False(t, cfg.SpeedSet)
}

func TestResolveCutoffNeedsPassMode(t *testing.T) {
	cfg, problems, _ := resolve(t, media(t, "song.mp3"), "--cutoff", "500")
	require.Len(t, problems, 1)
	var verr *ValidationError
	require.ErrorAs(t, problems[0], &verr)
	assert.Equal(t, "ignored without --lowpass or --highpass", verr.Reason)

	cutoff, _ := cfg.Value(effects.PassFilter, effects.ParamCutoff)
	assert.Equal(t, 0.0, cutoff, "ignored cutoff is not stored")
	assert.False(t, cfg.Enabled(effects.PassFilter))
}

func TestResolveEchoDelayAtCap(t *testing.T) {
	cfg, problems, _ := resolve(t, media(t, "song.mp3"), "--delay", "9007199254740992")
	require.Empty(t, problems)

	delay, _ := cfg.Value(effects.Echo, effects.ParamDelay)
	assert.Equal(t, float64(effects.MaxEchoDelay), delay)
}

func TestResolveHumNotchDetectsMains(t *testing.T) {
	cfg, problems, _ := resolve(t, media(t, "talk.wav"), "--humnotch")
	require.Empty(t, problems)

	freq, _ := cfg.Value(effects.HumNotch, effects.ParamFrequency)
	assert.Contains(t, []float64{50, 60}, freq)
}

func TestResolveSpeed(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"2.0", 2.0, true},
		{"0.5", 0.5, true},
		{"0", 1.0, false},
		{"-1", 1.0, false},
		{"fast", 1.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			cfg, problems, _ := resolve(t, media(t, "song.mp3"), "--speed="+tt.raw)
			assert.Equal(t, tt.ok, cfg.SpeedSet)
			assert.Equal(t, tt.want, cfg.Speed)
			assert.Equal(t, !tt.ok, len(problems) == 1)
		})
	}
}

func TestModeFlagWinsRegardlessOfOrder(t *testing.T) {
	tests := []struct {
		name string
		args func(path string) []string
		want MediaMode
	}{
		{"audio before path", func(p string) []string { return []string{"-a", "-p", p} }, AudioOnly},
		{"audio after path", func(p string) []string { return []string{"-p", p, "-a"} }, AudioOnly},
		{"audio with positional", func(p string) []string { return []string{"--audio", p} }, AudioOnly},
		{"no flag", func(p string) []string { return []string{p} }, AudioAndVideo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, _, _ := resolve(t, tt.args(media(t, "movie.mp4"))...)
			assert.Equal(t, tt.want, cfg.Mode)
		})
	}

	cfg, _, _ := resolve(t, "--video", media(t, "song.mp3"))
	assert.Equal(t, AudioAndVideo, cfg.Mode)
}

func TestPathFlagWinsOverPositional(t *testing.T) {
	flagged := media(t, "a.mp3")
	cfg, _, _ := resolve(t, "--path", flagged, media(t, "b.mp4"))
	assert.Equal(t, flagged, cfg.Source)
	assert.Equal(t, AudioOnly, cfg.Mode)
}

func TestParseArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--reverse", "song.mp3"}},
		{"missing value", []string{"song.mp3", "--volume"}},
		{"flag as value", []string{"song.mp3", "--volume", "--lowpass"}},
		{"hyphenated word as value", []string{"song.mp3", "--balance", "-left"}},
		{"lowpass and highpass", []string{"song.mp3", "--lowpass", "--highpass"}},
		{"audio and video", []string{"song.mp3", "-a", "-v"}},
		{"bad log level", []string{"song.mp3", "--log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.args...)
			var aerr *ArgumentError
			require.ErrorAs(t, err, &aerr)
		})
	}
}

func TestResolveFatalSourceErrors(t *testing.T) {
	opts, err := parse(t, "--volume", "0.5")
	require.NoError(t, err)
	_, _, err = Resolve(opts, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoSource)

	opts, err = parse(t, filepath.Join(t.TempDir(), "gone.mp3"))
	require.NoError(t, err)
	_, _, err = Resolve(opts, zerolog.Nop())
	var missing *MissingSourceError
	require.ErrorAs(t, err, &missing)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestDefaultLogLevel(t *testing.T) {
	opts, err := parse(t, "song.mp3")
	require.NoError(t, err)
	assert.Equal(t, "warn", opts.LogLevel)
}
