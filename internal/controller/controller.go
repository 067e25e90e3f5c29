// Package controller binds player state to the lifecycle of one rendering
// engine: it creates the engine once, keeps its size, preset and title
// overlay in sync, and runs the frame loop while the visualizer is enabled
// and audio is playing.
//
// A Controller is single-writer. Update and Close must be called from the
// goroutine that owns the FrameScheduler (host.Loop in production).
package controller

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/coreman2200/milkbind/internal/render"
	"github.com/coreman2200/milkbind/internal/transition"
)

// Inputs is a snapshot of the externally owned state the controller follows.
type Inputs struct {
	Audio   render.AudioSource
	Surface render.Surface
	Width   int
	Height  int

	// Enabled reports whether the visual style selector currently designates
	// this visualizer.
	Enabled bool
	Playing bool
	Visible bool

	TrackID string
	Title   string

	Preset     *render.Preset
	Transition transition.Kind

	Message *Message
}

type Options struct {
	Factory Factory
	Frames  FrameScheduler

	// Mesh resolution and pixel ratio passed to the factory. Zero values
	// leave the choice to the engine.
	MeshWidth, MeshHeight int
	PixelRatio            float64

	// Activity is optional.
	Activity ActivityObserver

	// Clock stamps the message watermark; defaults to time.Now.
	Clock  func() time.Time
	Logger *zerolog.Logger
}

type Controller struct {
	ID string

	life     lifecycle
	size     sizeSync
	presets  presetSequencer
	titles   announcer
	loop     renderLoop
	activity ActivityObserver

	closed bool
	log    zerolog.Logger
}

func New(opts Options) *Controller {
	id := uuid.NewString()
	base := zerolog.Nop()
	if opts.Logger != nil {
		base = *opts.Logger
	}
	lg := base.With().Str("controller", id).Logger()
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		ID: id,
		life: lifecycle{
			factory: opts.Factory,
			mesh:    render.Dimensions{Width: opts.MeshWidth, Height: opts.MeshHeight},
			ratio:   opts.PixelRatio,
			log:     lg,
		},
		presets:  presetSequencer{log: lg},
		titles:   announcer{now: clock},
		loop:     renderLoop{frames: opts.Frames, log: lg},
		activity: opts.Activity,
		log:      lg,
	}
}

// Update recomputes every component from in. A failed engine creation is
// returned after the remaining components ran; creation is retried on the
// next update. Update is a no-op after Close.
func (c *Controller) Update(in Inputs) error {
	if c.closed {
		return nil
	}
	e, err := c.life.ensureCreated(in.Audio, in.Surface, in.Width, in.Height)
	if err != nil {
		err = fmt.Errorf("create engine: %w", err)
		c.log.Error().Err(err).Msg("engine creation failed")
	}
	c.size.onDimensionsChanged(e, in.Width, in.Height)
	c.presets.onPresetChanged(e, in.Preset, in.Transition)
	c.titles.onTrackTitleChanged(e, in.TrackID, in.Title)
	c.titles.onMessage(e, in.Message)
	c.loop.sync(e, in.Playing, in.Enabled)
	if c.activity != nil {
		c.activity.Observe(in.TrackID, in.Title, in.Playing, in.Visible)
	}
	return err
}

// Close stops the render loop. The engine is left alone; it has no teardown.
// Close is idempotent.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.loop.stop()
	c.log.Debug().Msg("controller closed")
}

// Engine returns the engine, or nil before it was created.
func (c *Controller) Engine() Engine { return c.life.engine }

type Status struct {
	ID         string `json:"id"`
	Created    bool   `json:"created"`
	Running    bool   `json:"running"`
	Runs       int    `json:"runs"`
	LoadedOnce bool   `json:"loaded_once"`
	Closed     bool   `json:"closed"`
}

func (c *Controller) Status() Status {
	return Status{
		ID:         c.ID,
		Created:    c.life.state == created,
		Running:    c.loop.running(),
		Runs:       c.loop.runs,
		LoadedOnce: c.presets.loadedOnce,
		Closed:     c.closed,
	}
}
