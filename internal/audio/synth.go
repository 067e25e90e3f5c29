// Package audio provides audio sources for the engine.
package audio

import (
	"math"
	"time"

	"github.com/coreman2200/milkbind/internal/render"
)

// Synth is a synthetic source: a kick envelope on every beat for the bass and
// slow oscillators for mid and treble. It stands in when no capture device is
// wired up.
type Synth struct {
	Rate  int
	BPM   float64
	Clock func() time.Time
	start time.Time
}

func NewSynth(rate int, bpm float64) *Synth {
	if rate <= 0 {
		rate = 44100
	}
	if bpm <= 0 {
		bpm = 120
	}
	return &Synth{Rate: rate, BPM: bpm, Clock: time.Now, start: time.Now()}
}

func (s *Synth) SampleRate() int { return s.Rate }

func (s *Synth) Levels() render.Levels {
	t := s.Clock().Sub(s.start).Seconds()
	if t < 0 {
		t = 0
	}
	beat := math.Mod(t*s.BPM/60, 1)
	return render.Levels{
		Bass:   math.Exp(-6 * beat),
		Mid:    0.5 + 0.5*math.Sin(2*math.Pi*0.25*t),
		Treble: 0.3 + 0.3*math.Sin(2*math.Pi*1.7*t),
	}
}
