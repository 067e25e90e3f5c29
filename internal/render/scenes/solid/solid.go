package solid

import (
	"math"

	"github.com/coreman2200/milkbind/internal/render"
)

// Solid fills the mesh with one color whose brightness follows the bass.
// Params:
//   - "r", "g", "b" (0..1, default white)
//   - "pulse_hz" (default 0): extra sine modulation, handy without audio
//   - "bass_gain" (default 1)
type Solid struct{ name string }

func New(name string) *Solid { return &Solid{name: name} }

func (s *Solid) Name() string { return s.name }

func (s *Solid) Render(dst []render.Color, _ render.Dimensions, t float64, u *render.Uniforms, lv render.Levels) {
	c := render.Color{
		R: float32(u.Param("r", 1)),
		G: float32(u.Param("g", 1)),
		B: float32(u.Param("b", 1)),
	}
	scale := 0.35 + 0.65*math.Min(1, lv.Bass*u.Param("bass_gain", 1))
	if hz := u.Param("pulse_hz", 0); hz > 0 {
		scale *= 0.5 + 0.5*math.Sin(2*math.Pi*hz*t)
	}
	k := float32(scale)
	c = render.Color{R: c.R * k, G: c.G * k, B: c.B * k}
	for i := range dst {
		dst[i] = c
	}
}
