package controller

import (
	"github.com/rs/zerolog"

	"github.com/coreman2200/milkbind/internal/render"
)

type engineState int

const (
	uncreated engineState = iota
	created
)

// lifecycle owns the single engine. The only transition is uncreated ->
// created; there is no way back because engines cannot be torn down.
type lifecycle struct {
	state   engineState
	engine  Engine
	factory Factory
	mesh    render.Dimensions
	ratio   float64
	log     zerolog.Logger
}

// ensureCreated returns the engine, creating it when both audio and surface
// are present. Once created, the arguments are ignored: the engine stays
// bound to the audio source, surface and size it was created with.
func (lc *lifecycle) ensureCreated(audio render.AudioSource, surface render.Surface, width, height int) (Engine, error) {
	if lc.state == created {
		return lc.engine, nil
	}
	if audio == nil || surface == nil {
		return nil, nil
	}
	e, err := lc.factory(audio, surface, render.Config{
		Width:      width,
		Height:     height,
		MeshWidth:  lc.mesh.Width,
		MeshHeight: lc.mesh.Height,
		PixelRatio: lc.ratio,
	})
	if err != nil {
		return nil, err
	}
	e.ConnectAudio(audio)
	lc.engine = e
	lc.state = created
	lc.log.Info().Int("width", width).Int("height", height).Msg("engine created")
	return e, nil
}
