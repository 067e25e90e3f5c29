// Package sim is an in-memory surface. It keeps the last frame for status
// queries and hands a copy of every frame to an optional listener.
package sim

import (
	"sync"

	"github.com/coreman2200/milkbind/internal/render"
)

type Surface struct {
	mu      sync.Mutex
	last    render.Frame
	frames  uint64
	onFrame func(render.Frame)
}

// New returns a surface; onFrame may be nil. It runs on the render
// goroutine, so it must not block.
func New(onFrame func(render.Frame)) *Surface {
	return &Surface{onFrame: onFrame}
}

func (s *Surface) Draw(f render.Frame) error {
	f.Pixels = append([]render.Color(nil), f.Pixels...)
	s.mu.Lock()
	s.last = f
	s.frames++
	s.mu.Unlock()
	if s.onFrame != nil {
		s.onFrame(f)
	}
	return nil
}

// Last returns the most recent frame; ok is false before the first draw.
func (s *Surface) Last() (f render.Frame, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.frames > 0
}

func (s *Surface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// RGB packs frame pixels into 8-bit RGB triplets.
func RGB(f render.Frame) []byte {
	out := make([]byte, len(f.Pixels)*3)
	for i, c := range f.Pixels {
		out[i*3+0] = to8(c.R)
		out[i*3+1] = to8(c.G)
		out[i*3+2] = to8(c.B)
	}
	return out
}

func to8(x float32) byte {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return byte(x * 255.0)
}
