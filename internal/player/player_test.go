package player

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/linuxmatters/fxplay/internal/backend"
	"github.com/linuxmatters/fxplay/internal/backend/fake"
	"github.com/linuxmatters/fxplay/internal/config"
	"github.com/linuxmatters/fxplay/internal/effects"
	"github.com/linuxmatters/fxplay/internal/graph"
	"github.com/linuxmatters/fxplay/internal/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type rig struct {
	b    *fake.Backend
	g    *graph.Graph
	c    *Controller
	logs *bytes.Buffer
}

func (r *rig) pipeline() *fake.Pipeline { return r.b.Pipeline() }

// newRig builds an audio-only graph on a fake backend. onPlaying runs when the
// pipeline enters the playing state.
func newRig(t *testing.T, level zerolog.Level, onPlaying func(p *fake.Pipeline), opts ...Option) *rig {
	t.Helper()
	cfg := &config.Config{
		Source:  "song.mp3",
		URI:     "file:///song.mp3",
		Mode:    config.AudioOnly,
		Effects: map[effects.ID]config.Settings{},
	}
	for _, e := range effects.All() {
		cfg.Effects[e.ID] = config.Settings{Values: e.Defaults()}
	}

	b := fake.New()
	b.OnPlaying = onPlaying
	logs := &bytes.Buffer{}
	logger := zerolog.New(logs).Level(level)

	g, err := graph.Build(b, cfg, logger)
	require.NoError(t, err)
	sub, err := stream.NewAttacher(g.Audio.Entry(), nil, logger).Register(g.Source)
	require.NoError(t, err)

	opts = append([]Option{WithPollInterval(5 * time.Millisecond)}, opts...)
	return &rig{b: b, g: g, c: New(g, sub, logger, opts...), logs: logs}
}

func playing(p *fake.Pipeline) {
	p.PostStateChanged(backend.StatePaused, backend.StatePlaying)
}

func TestRunEndOfStream(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, func(p *fake.Pipeline) {
		playing(p)
		p.PostEOS()
	})
	defer r.c.Shutdown()

	require.NoError(t, r.c.Start())
	assert.Equal(t, StatePlaying, r.c.State())

	outcome, err := r.c.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeEOS, outcome)

	s := r.c.Session()
	assert.False(t, s.Running)
	assert.True(t, s.Playing)
	assert.Equal(t, StateStopped, r.c.State())
	assert.NotContains(t, r.logs.String(), `"level":"error"`)
}

func TestRunErrorEmitsOneDiagnostic(t *testing.T) {
	for _, level := range []zerolog.Level{zerolog.WarnLevel, zerolog.DebugLevel} {
		t.Run(level.String(), func(t *testing.T) {
			boom := errors.New("resource not found")
			r := newRig(t, level, func(p *fake.Pipeline) {
				playing(p)
				p.PostError(graph.SourceName, boom, "gstsouphttpsrc.c(1234): 404")
				p.PostEOS()
			})
			defer r.c.Shutdown()

			require.NoError(t, r.c.Start())
			outcome, err := r.c.Run(context.Background())
			assert.Equal(t, OutcomeError, outcome)

			var berr *BackendError
			require.ErrorAs(t, err, &berr)
			assert.Equal(t, graph.SourceName, berr.Source)
			assert.ErrorIs(t, err, boom)
			assert.False(t, r.c.Session().Running)

			assert.Equal(t, 1, strings.Count(r.logs.String(), `"level":"error"`))
			assert.Contains(t, r.logs.String(), `"source":"source"`)
			assert.Equal(t, level == zerolog.DebugLevel, strings.Contains(r.logs.String(), "404"))

			// The loop stopped at the error; the EOS behind it was never consumed
			msg, ok := r.pipeline().FakeBus().Poll(-1)
			assert.True(t, ok)
			assert.Equal(t, backend.MessageEOS, msg.Kind)
		})
	}
}

func TestRunTracksPipelineStateOnly(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, func(p *fake.Pipeline) {
		p.Post(backend.Message{Kind: backend.MessageStateChanged, Source: graph.AudioSinkName, NewState: backend.StatePlaying})
		p.PostEOS()
	}, WithSpeed(2))
	defer r.c.Shutdown()

	require.NoError(t, r.c.Start())
	_, err := r.c.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, r.c.Session().Playing)
	assert.Empty(t, r.pipeline().Seeks(), "no seek before the pipeline itself plays")
	assert.Zero(t, r.pipeline().PositionQueries())
}

func TestSpeedChangeIsSingleShot(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, func(p *fake.Pipeline) {
		p.SetPosition(5*time.Second, true)
		playing(p)
		p.PostStateChanged(backend.StatePlaying, backend.StatePaused)
		playing(p)
		playing(p)
		p.PostEOS()
	}, WithSpeed(2.0))
	defer r.c.Shutdown()

	require.NoError(t, r.c.Start())
	_, err := r.c.Run(context.Background())
	require.NoError(t, err)

	seeks := r.pipeline().Seeks()
	require.Len(t, seeks, 1)
	assert.Equal(t, backend.SeekRequest{
		Rate:  2.0,
		Start: 5 * time.Second,
		Stop:  backend.StreamEnd,
		Flags: backend.SeekFlush | backend.SeekAccurate,
	}, seeks[0])
	assert.True(t, r.c.Session().RateApplied)
	assert.Equal(t, 1, r.c.Session().Seeks)
}

func TestSpeedChangeFailedSeekIsNotRetried(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, func(p *fake.Pipeline) {
		p.FailSeek(errors.New("not seekable"))
		playing(p)
		playing(p)
		p.PostEOS()
	}, WithSpeed(0.5))
	defer r.c.Shutdown()

	require.NoError(t, r.c.Start())
	_, err := r.c.Run(context.Background())
	require.NoError(t, err, "a failed seek does not end playback")

	assert.Len(t, r.pipeline().Seeks(), 1)
	assert.True(t, r.c.Session().RateApplied)
	assert.Contains(t, r.logs.String(), "speed change failed")
}

func TestSpeedChangeWaitsForPosition(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, func(p *fake.Pipeline) {
		p.SetPosition(0, false)
		playing(p)
	}, WithSpeed(1.5))
	defer r.c.Shutdown()
	require.NoError(t, r.c.Start())

	type result struct {
		outcome Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		o, err := r.c.Run(context.Background())
		done <- result{o, err}
	}()

	p := r.pipeline()
	require.Eventually(t, func() bool { return p.PositionQueries() >= 3 }, 2*time.Second, time.Millisecond)
	assert.Empty(t, p.Seeks(), "no seek while the position is unknown")

	p.SetPosition(1500*time.Millisecond, true)
	require.Eventually(t, func() bool { return len(p.Seeks()) == 1 }, 2*time.Second, time.Millisecond)
	p.PostEOS()

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, OutcomeEOS, res.outcome)
	assert.Equal(t, 1500*time.Millisecond, p.Seeks()[0].Start)
}

func TestRunWithoutSpeedNeverQueriesPosition(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, func(p *fake.Pipeline) {
		playing(p)
		p.PostEOS()
	})
	defer r.c.Shutdown()

	require.NoError(t, r.c.Start())
	_, err := r.c.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, r.pipeline().PositionQueries())
	assert.False(t, r.c.Session().RateApplied)
}

func TestRunInterrupted(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, playing)
	require.NoError(t, r.c.Start())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	outcome, err := r.c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInterrupted, outcome)
	assert.Equal(t, StateStopped, r.c.State())

	require.NoError(t, r.c.Shutdown())
	assert.Equal(t, 1, r.pipeline().Releases())
}

func TestStartFailure(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, nil)
	refused := errors.New("no audio device")
	r.pipeline().FailState(backend.StatePlaying, refused)

	err := r.c.Start()
	var serr *StateChangeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, backend.StatePlaying, serr.State)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, StateStopped, r.c.State())

	_, err = r.c.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, r.c.Shutdown())
	assert.Equal(t, 1, r.pipeline().Releases())
	assert.Equal(t, 1, r.pipeline().FakeBus().Closed())
}

func TestStartTwice(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, nil)
	defer r.c.Shutdown()

	require.NoError(t, r.c.Start())
	assert.ErrorIs(t, r.c.Start(), ErrInvalidTransition)
}

func TestShutdownOnce(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, func(p *fake.Pipeline) {
		playing(p)
		p.PostEOS()
	})
	require.NoError(t, r.c.Start())
	_, err := r.c.Run(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.c.Shutdown())
	}

	p := r.pipeline()
	assert.Equal(t, 1, p.Releases())
	assert.Equal(t, 1, p.FakeBus().Closed())
	assert.Equal(t, backend.StateNull, p.State())
	assert.Equal(t, []backend.State{backend.StatePlaying, backend.StateNull}, p.History())
	assert.Zero(t, r.b.Unit(graph.SourceName).Handlers(), "stream subscription cancelled")
}

func TestShutdownWithoutStart(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, nil)

	require.NoError(t, r.c.Shutdown())
	assert.Equal(t, StateStopped, r.c.State())
	assert.Equal(t, 1, r.pipeline().Releases())
	assert.Zero(t, r.pipeline().FakeBus().Closed(), "bus never taken")
}

func TestSessionIDIsAssigned(t *testing.T) {
	r := newRig(t, zerolog.InfoLevel, nil)
	defer r.c.Shutdown()

	require.NoError(t, r.c.Start())
	s := r.c.Session()
	assert.NotZero(t, s.ID)
	assert.True(t, s.Running)
	assert.False(t, s.Playing, "playing is only learned from the bus")
	assert.Contains(t, r.logs.String(), s.ID.String())
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from    State
		event   Event
		want    State
		wantErr bool
	}{
		{StateIdle, EventStart, StatePlaying, false},
		{StateIdle, EventAbort, StateStopped, false},
		{StatePlaying, EventEOS, StateStopped, false},
		{StatePlaying, EventError, StateStopped, false},
		{StatePlaying, EventInterrupt, StateStopped, false},
		{StateIdle, EventEOS, StateIdle, true},
		{StatePlaying, EventStart, StatePlaying, true},
		{StateStopped, EventStart, StateStopped, true},
		{StateStopped, EventEOS, StateStopped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, err := next(tt.from, tt.event)
			if (err != nil) != tt.wantErr {
				t.Fatalf("next(%s, %s) error = %v, wantErr %v", tt.from, tt.event, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("next(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
			}
		})
	}
}
