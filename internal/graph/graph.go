// Package graph assembles the processing graph: a pipeline container holding the
// source, an audio chain and (unless audio-only) a video chain, with the enabled
// effects inserted in canonical order.
package graph

import (
	"fmt"
	"strings"
	"sync"

	"github.com/linuxmatters/fxplay/internal/backend"
	"github.com/linuxmatters/fxplay/internal/effects"
)

// PipelineName is the name of the pipeline container.
const PipelineName = "fxplay-pipeline"

// Mandatory stage names inside the pipeline.
const (
	SourceName        = "source"
	AudioConvertName  = "audio-convert"
	AudioResampleName = "audio-resample"
	AudioSinkName     = "audio-sink"
	VideoConvertName  = "video-convert"
	VideoSinkName     = "video-sink"
)

// stage is a mandatory unit: backend factory and unit name.
type stage struct {
	factory string
	name    string
}

var (
	sourceStage = stage{"uridecodebin", SourceName}

	// Audio chain head and tail; effects go between them.
	audioHead = []stage{{"audioconvert", AudioConvertName}, {"audioresample", AudioResampleName}}
	audioTail = []stage{{"autoaudiosink", AudioSinkName}}

	// Video chain head and tail.
	videoHead = []stage{{"videoconvert", VideoConvertName}}
	videoTail = []stage{{"autovideosink", VideoSinkName}}
)

// Chain is the ordered units of one media kind.
type Chain struct {
	Stage effects.Stage
	Units []backend.Unit
}

// Entry returns the first unit, where discovered streams attach.
func (c *Chain) Entry() backend.Unit {
	if c == nil || len(c.Units) == 0 {
		return nil
	}
	return c.Units[0]
}

// Names returns the unit names in order.
func (c *Chain) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, len(c.Units))
	for i, u := range c.Units {
		names[i] = u.Name()
	}
	return names
}

// Skip records an optional effect left out of the graph.
type Skip struct {
	Effect effects.ID
	Err    error
}

// Layout is the unit names of each chain.
type Layout struct {
	Audio []string
	Video []string
}

func (l Layout) String() string {
	s := "audio: " + strings.Join(l.Audio, " → ")
	if len(l.Video) > 0 {
		s += "; video: " + strings.Join(l.Video, " → ")
	}
	return s
}

// Graph is a built pipeline. The pipeline owns every unit in it.
type Graph struct {
	Pipeline backend.Pipeline
	Source   backend.Unit
	Audio    *Chain
	Video    *Chain // nil in audio-only mode
	Skipped  []Skip

	closeOnce sync.Once
	closeErr  error
}

// Describe returns the unit names of each chain.
func (g *Graph) Describe() Layout {
	return Layout{Audio: g.Audio.Names(), Video: g.Video.Names()}
}

// Close forces the pipeline to the null state and releases it together with
// every unit it owns. Only the first call has any effect.
func (g *Graph) Close() error {
	g.closeOnce.Do(func() {
		if err := g.Pipeline.SetState(backend.StateNull); err != nil {
			g.closeErr = fmt.Errorf("failed to stop pipeline: %w", err)
		}
		g.Pipeline.Release()
	})
	return g.closeErr
}

// ElementCreationError is a mandatory unit that could not be created or configured.
type ElementCreationError struct {
	Factory string
	Name    string
	Err     error
}

func (e *ElementCreationError) Error() string {
	return fmt.Sprintf("failed to create %s element %q: %v", e.Factory, e.Name, e.Err)
}

func (e *ElementCreationError) Unwrap() error { return e.Err }

// LinkError is a failed link between two consecutive units of a chain.
type LinkError struct {
	From string
	To   string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("failed to link %s → %s: %v", e.From, e.To, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }
