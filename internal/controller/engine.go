package controller

import (
	"time"

	"github.com/coreman2200/milkbind/internal/host"
	"github.com/coreman2200/milkbind/internal/render"
)

// Engine is the rendering engine capability the controller writes into. The
// controller never reads engine state back.
type Engine interface {
	ConnectAudio(src render.AudioSource)
	Resize(width, height int)
	LoadPreset(p *render.Preset, blendSeconds float64)
	AnnounceTitle(text string)
	RenderFrame()
}

// Factory creates an engine bound to audio and surface.
type Factory func(audio render.AudioSource, surface render.Surface, cfg render.Config) (Engine, error)

// FrameScheduler is the host's frame-pacing primitive; host.Loop implements
// it. Both methods are called from the controller's goroutine only.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) host.FrameID
	CancelFrame(id host.FrameID)
}

// ActivityObserver receives the track/playing/visibility signals after every
// update. activity.Tracker implements it.
type ActivityObserver interface {
	Observe(trackID, title string, playing, visible bool)
}
