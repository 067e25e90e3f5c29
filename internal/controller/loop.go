package controller

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/milkbind/internal/host"
)

// run is one Running period of the render loop. cancelled is checked at
// every frame boundary so a callback the host already dequeued cannot render
// after stop.
type run struct {
	token     host.FrameID
	cancelled bool
	frames    uint64
}

// renderLoop is Idle while cur is nil and Running otherwise. At most one
// frame registration is outstanding.
type renderLoop struct {
	frames FrameScheduler
	cur    *run
	runs   int
	log    zerolog.Logger
}

func (l *renderLoop) sync(e Engine, playing, enabled bool) {
	want := e != nil && playing && enabled
	switch {
	case want && l.cur == nil:
		l.start(e)
	case !want && l.cur != nil:
		l.stop()
	}
}

func (l *renderLoop) start(e Engine) {
	r := &run{}
	l.cur = r
	l.runs++
	var step func(time.Time)
	step = func(time.Time) {
		if r.cancelled {
			return
		}
		e.RenderFrame()
		r.frames++
		r.token = l.frames.RequestFrame(step)
	}
	r.token = l.frames.RequestFrame(step)
	l.log.Debug().Int("run", l.runs).Msg("render loop started")
}

func (l *renderLoop) stop() {
	r := l.cur
	if r == nil {
		return
	}
	l.cur = nil
	r.cancelled = true
	l.frames.CancelFrame(r.token)
	l.log.Debug().Uint64("frames", r.frames).Msg("render loop stopped")
}

func (l *renderLoop) running() bool { return l.cur != nil }
