package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/fxplay/internal/effects"
)

func writePreset(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestPresetResolvesLikeFlags(t *testing.T) {
	preset := writePreset(t, strings.Join([]string{
		"volume: 0.5",
		"lowpass: true",
		"cutoff: 500",
		"delay: 2000000000",
		"log-level: debug",
	}, "\n"))

	fromPreset, problems, _ := resolve(t, media(t, "song.mp3"), "--config", preset)
	require.Empty(t, problems)
	fromFlags, problems, _ := resolve(t, media(t, "song.mp3"),
		"--volume", "0.5", "--lowpass", "--cutoff", "500", "--delay", "2000000000")
	require.Empty(t, problems)

	assert.Equal(t, fromFlags.Effects, fromPreset.Effects)
	assert.Equal(t, fromFlags.Mode, fromPreset.Mode)
}

func TestPresetCommandLineTakesPrecedence(t *testing.T) {
	preset := writePreset(t, "volume: 0.2\nbalance: -1\n")

	opts, err := parse(t, media(t, "song.mp3"), "--config", preset, "--volume", "0.8")
	require.NoError(t, err)
	assert.Equal(t, "0.8", opts.Volume)
	assert.Equal(t, "-1", opts.Balance)

	cfg, problems, err := Resolve(opts, zerolog.Nop())
	require.NoError(t, err)
	require.Empty(t, problems)
	balance, _ := cfg.Value(effects.Panorama, effects.ParamPanorama)
	assert.Equal(t, -1.0, balance)
}

func TestPresetInvalidValueIsValidationError(t *testing.T) {
	preset := writePreset(t, "volume: 3\n")

	cfg, problems, _ := resolve(t, media(t, "song.mp3"), "--config", preset)
	require.Len(t, problems, 1)
	var verr *ValidationError
	require.ErrorAs(t, problems[0], &verr)
	assert.Equal(t, "3", verr.Value)
	assert.False(t, cfg.Enabled(effects.Volume))
}

func TestPresetArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown key", "reverse: true\n"},
		{"not a mapping", "- volume\n- 0.5\n"},
		{"nested value", "volume:\n  level: 0.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, "song.mp3", "--config", writePreset(t, tt.body))
			var aerr *ArgumentError
			require.ErrorAs(t, err, &aerr)
		})
	}

	_, err := parse(t, "song.mp3", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	var aerr *ArgumentError
	require.ErrorAs(t, err, &aerr)
}

func TestEmptyPreset(t *testing.T) {
	opts, err := parse(t, "song.mp3", "--config", writePreset(t, ""))
	require.NoError(t, err)
	assert.Empty(t, opts.Volume)
}
