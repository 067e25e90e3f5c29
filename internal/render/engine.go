package render

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMeshWidth  = 32
	DefaultMeshHeight = 24

	titleLifetime = 5 * time.Second
	titleFadeIn   = 500 * time.Millisecond
	titleFadeOut  = time.Second
)

// Engine is the reference audio-reactive renderer. It renders scenes at mesh
// resolution, crossfades between presets over wall time and hands every frame
// to its Surface. It has no teardown: it stays bound to the audio source and
// surface it was created with.
type Engine struct {
	Mesh       Dimensions
	Size       Dimensions
	PixelRatio float64
	SampleRate int

	// Clock defaults to time.Now; tests replace it.
	Clock func() time.Time
	// Post runs on the mixed frame before it is drawn; nil disables it.
	Post func(buf []Color, u *Uniforms)

	reg     *Registry
	audio   AudioSource
	surface Surface

	// active + next scene and uniforms
	active, next   Scene
	uActive, uNext *Uniforms
	preset, nextPr string

	// framebuffers
	bufA, bufB, out []Color

	// crossfade
	fading    bool
	fadeStart time.Time
	fadeDur   time.Duration

	title      string
	titleStart time.Time

	seq uint64
	t0  time.Time

	// last frame metrics
	Last struct {
		RenderMS float64
		Alpha    float64
		Err      error
	}
}

// NewEngine binds an engine to audio and surface. The audio source's levels
// are only read once ConnectAudio is called.
func NewEngine(audio AudioSource, surface Surface, cfg Config, reg *Registry) (*Engine, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.New("invalid dimensions")
	}
	if surface == nil {
		return nil, errors.New("surface is nil")
	}
	if reg == nil {
		reg = NewRegistry()
	}
	mesh := Dimensions{Width: cfg.MeshWidth, Height: cfg.MeshHeight}
	if mesh.Width <= 0 {
		mesh.Width = DefaultMeshWidth
	}
	if mesh.Height <= 0 {
		mesh.Height = DefaultMeshHeight
	}
	ratio := cfg.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	e := &Engine{
		Mesh:       mesh,
		PixelRatio: ratio,
		Clock:      time.Now,
		Post:       ToneMap,
		reg:        reg,
		surface:    surface,
		bufA:       make([]Color, mesh.Count()),
		bufB:       make([]Color, mesh.Count()),
		out:        make([]Color, mesh.Count()),
	}
	if audio != nil {
		e.SampleRate = audio.SampleRate()
	}
	e.Resize(cfg.Width, cfg.Height)
	e.t0 = e.Clock()
	return e, nil
}

// ConnectAudio starts reading levels from src on every frame.
func (e *Engine) ConnectAudio(src AudioSource) { e.audio = src }

// Resize sets the output size in CSS pixels; the surface receives it scaled
// by the pixel ratio. Non-positive sizes are ignored.
func (e *Engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	e.Size = Dimensions{
		Width:  int(math.Round(float64(width) * e.PixelRatio)),
		Height: int(math.Round(float64(height) * e.PixelRatio)),
	}
}

// LoadPreset switches to p. With blendSeconds <= 0, or when nothing is on
// screen yet, the switch is immediate; otherwise p fades in over
// blendSeconds. Loading during a fade snaps the running fade to its target
// first.
func (e *Engine) LoadPreset(p *Preset, blendSeconds float64) {
	if p == nil {
		return
	}
	sc, ok := e.reg.Get(p.Scene)
	if !ok {
		log.Warn().Str("preset", p.Name).Str("scene", p.Scene).Msg("unknown scene; preset ignored")
		return
	}
	u := &Uniforms{Brightness: 1, Params: make(map[string]float64, len(p.Params))}
	for k, v := range p.Params {
		u.Params[k] = v
	}
	if e.fading {
		e.promote()
	}
	if blendSeconds <= 0 || e.active == nil {
		e.active, e.uActive, e.preset = sc, u, p.Name
		return
	}
	e.next, e.uNext, e.nextPr = sc, u, p.Name
	e.fading = true
	e.fadeStart = e.Clock()
	e.fadeDur = time.Duration(blendSeconds * float64(time.Second))
}

// AnnounceTitle starts the title overlay animation, replacing any title still
// on screen.
func (e *Engine) AnnounceTitle(text string) {
	e.title = text
	e.titleStart = e.Clock()
}

// RenderFrame renders one frame and draws it to the surface. Surface errors
// are kept in Last.Err; they never stop the engine.
func (e *Engine) RenderFrame() {
	now := e.Clock()
	t := now.Sub(e.t0).Seconds()

	alpha := 0.0
	if e.fading {
		alpha = float64(now.Sub(e.fadeStart)) / float64(e.fadeDur)
		if alpha >= 1 {
			e.promote()
			alpha = 0
		}
	}

	var lv Levels
	if e.audio != nil {
		lv = e.audio.Levels()
	}

	if e.active != nil {
		e.active.Render(e.bufA, e.Mesh, t, e.uActive, lv)
	} else {
		clear(e.bufA)
	}
	if e.fading && e.next != nil {
		e.next.Render(e.bufB, e.Mesh, t, e.uNext, lv)
		Mix(e.out, e.bufA, e.bufB, alpha)
	} else {
		copy(e.out, e.bufA)
	}
	if e.Post != nil {
		e.Post(e.out, e.uActive)
	}

	e.seq++
	f := Frame{
		Seq:    e.seq,
		Mesh:   e.Mesh,
		Size:   e.Size,
		Pixels: e.out,
		Preset: e.preset,
	}
	if a := e.titleAlpha(now); a > 0 {
		f.Title, f.TitleAlpha = e.title, a
	}
	e.Last.Alpha = alpha
	e.Last.Err = e.surface.Draw(f)
	if e.Last.Err != nil {
		log.Debug().Err(e.Last.Err).Uint64("seq", e.seq).Msg("draw frame")
	}
	e.Last.RenderMS = float64(e.Clock().Sub(now).Microseconds()) / 1000.0
}

// Preset names the preset currently on screen (the fade source while fading).
func (e *Engine) Preset() string { return e.preset }

// Fading reports whether a crossfade is in progress.
func (e *Engine) Fading() bool { return e.fading }

func (e *Engine) promote() {
	if e.next != nil {
		e.active, e.uActive, e.preset = e.next, e.uNext, e.nextPr
	}
	e.next, e.uNext, e.nextPr = nil, nil, ""
	e.fading = false
}

func (e *Engine) titleAlpha(now time.Time) float64 {
	if e.title == "" {
		return 0
	}
	el := now.Sub(e.titleStart)
	switch {
	case el < 0 || el >= titleLifetime:
		return 0
	case el < titleFadeIn:
		return float64(el) / float64(titleFadeIn)
	case el > titleLifetime-titleFadeOut:
		return float64(titleLifetime-el) / float64(titleFadeOut)
	}
	return 1
}
