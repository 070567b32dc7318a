package graph

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/linuxmatters/fxplay/internal/backend"
	"github.com/linuxmatters/fxplay/internal/config"
	"github.com/linuxmatters/fxplay/internal/effects"
)

// builder tracks units that still belong to the builder, so every early return
// can release them.
type builder struct {
	b        backend.Backend
	cfg      *config.Config
	log      zerolog.Logger
	pipeline backend.Pipeline
	loose    []backend.Unit // created, not yet added to the pipeline
	skipped  []Skip
}

// Build creates the pipeline with its mandatory stages and the enabled effects,
// adds every unit to the pipeline and links each chain in order. Any error leaves
// nothing behind: created units and the pipeline are released.
//
// An optional effect that cannot be created or configured is logged, released and
// recorded in Graph.Skipped; the remaining effects keep their canonical order.
func Build(b backend.Backend, cfg *config.Config, logger zerolog.Logger) (*Graph, error) {
	p, err := b.NewPipeline(PipelineName)
	if err != nil {
		return nil, &ElementCreationError{Factory: "pipeline", Name: PipelineName, Err: err}
	}
	bd := &builder{b: b, cfg: cfg, log: logger, pipeline: p}

	g, err := bd.build()
	if err != nil {
		bd.releaseLoose()
		p.Release()
		return nil, err
	}
	return g, nil
}

func (bd *builder) build() (*Graph, error) {
	source, err := bd.mandatory(sourceStage)
	if err != nil {
		return nil, err
	}
	if err := source.Set("uri", bd.cfg.URI); err != nil {
		return nil, &ElementCreationError{Factory: sourceStage.factory, Name: sourceStage.name, Err: err}
	}

	audio, err := bd.chain(effects.StageAudio, audioHead, audioTail)
	if err != nil {
		return nil, err
	}

	var video *Chain
	if bd.cfg.Mode != config.AudioOnly {
		if video, err = bd.chain(effects.StageVideo, videoHead, videoTail); err != nil {
			return nil, err
		}
	}

	// The pipeline takes ownership of every unit before anything is linked
	if err := bd.pipeline.Add(bd.loose...); err != nil {
		return nil, fmt.Errorf("failed to add units to %s: %w", bd.pipeline.Name(), err)
	}
	bd.loose = nil

	if err := link(audio); err != nil {
		return nil, err
	}
	if err := link(video); err != nil {
		return nil, err
	}

	g := &Graph{
		Pipeline: bd.pipeline,
		Source:   source,
		Audio:    audio,
		Video:    video,
		Skipped:  bd.skipped,
	}
	bd.log.Debug().Stringer("layout", g.Describe()).Int("skipped", len(g.Skipped)).Msg("graph built")
	return g, nil
}

// chain creates head, the stage's enabled effects in canonical order, then tail.
func (bd *builder) chain(s effects.Stage, head, tail []stage) (*Chain, error) {
	c := &Chain{Stage: s}
	for _, st := range head {
		u, err := bd.mandatory(st)
		if err != nil {
			return nil, err
		}
		c.Units = append(c.Units, u)
	}

	for _, id := range bd.cfg.EnabledEffects(s) {
		if u := bd.optional(id); u != nil {
			c.Units = append(c.Units, u)
		}
	}

	for _, st := range tail {
		u, err := bd.mandatory(st)
		if err != nil {
			return nil, err
		}
		c.Units = append(c.Units, u)
	}
	return c, nil
}

func (bd *builder) mandatory(st stage) (backend.Unit, error) {
	u, err := bd.b.NewUnit(st.factory, st.name)
	if err != nil {
		return nil, &ElementCreationError{Factory: st.factory, Name: st.name, Err: err}
	}
	bd.loose = append(bd.loose, u)
	bd.log.Debug().Str("unit", st.name).Str("factory", st.factory).Msg("unit created")
	return u, nil
}

// optional creates and configures an effect unit, returning nil when the effect
// has to be skipped.
func (bd *builder) optional(id effects.ID) backend.Unit {
	e := effects.MustLookup(id)
	u, err := bd.b.NewUnit(e.Factory, e.Unit)
	if err != nil {
		bd.skip(id, err)
		return nil
	}

	for _, prop := range e.Properties(bd.cfg.Effects[id].Values) {
		if err := u.Set(prop.Name, prop.Value); err != nil {
			u.Release()
			bd.skip(id, fmt.Errorf("failed to set %s.%s: %w", e.Unit, prop.Name, err))
			return nil
		}
	}

	bd.loose = append(bd.loose, u)
	bd.log.Debug().Str("unit", e.Unit).Str("factory", e.Factory).Str("effect", string(id)).Msg("effect created")
	return u
}

func (bd *builder) skip(id effects.ID, err error) {
	bd.log.Warn().Err(err).Str("effect", string(id)).Msg("effect unavailable, skipping")
	bd.skipped = append(bd.skipped, Skip{Effect: id, Err: err})
}

func (bd *builder) releaseLoose() {
	for _, u := range bd.loose {
		u.Release()
	}
	bd.loose = nil
}

// link connects consecutive units; a nil chain links nothing.
func link(c *Chain) error {
	if c == nil {
		return nil
	}
	for i := 0; i+1 < len(c.Units); i++ {
		from, to := c.Units[i], c.Units[i+1]
		if err := from.Link(to); err != nil {
			return &LinkError{From: from.Name(), To: to.Name(), Err: err}
		}
	}
	return nil
}
