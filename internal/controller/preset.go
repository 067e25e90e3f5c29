package controller

import (
	"github.com/rs/zerolog"

	"github.com/coreman2200/milkbind/internal/render"
	"github.com/coreman2200/milkbind/internal/transition"
)

// presetSequencer loads presets into the engine. The first load of the
// engine's life is immediate; later loads blend for the kind supplied with
// them. It reacts to engine or preset identity only, never to the kind.
type presetSequencer struct {
	hadEngine  bool
	last       *render.Preset
	loadedOnce bool
	log        zerolog.Logger
}

func (p *presetSequencer) onPresetChanged(e Engine, pr *render.Preset, kind transition.Kind) {
	has := e != nil
	changed := has != p.hadEngine || pr != p.last
	p.hadEngine, p.last = has, pr
	if !changed || e == nil || pr == nil {
		return
	}
	secs := transition.Seconds(transition.Immediate)
	if p.loadedOnce {
		secs = transition.Seconds(kind)
	}
	e.LoadPreset(pr, secs)
	p.loadedOnce = true
	p.log.Debug().Str("preset", pr.Name).Float64("blend_s", secs).Msg("preset loaded")
}
