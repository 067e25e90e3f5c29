package grad

import (
	"math"

	"github.com/coreman2200/milkbind/internal/render"
)

// Grad renders a hue gradient across the mesh.
// Params:
//   - "speed" (default 0.1): hue rotation in turns per second
//   - "axis" (0=X, 1=Y, 2=diagonal; default 2)
//   - "treble_warp" (default 0.5): how far treble bends the gradient
type Grad struct{ name string }

func New(name string) *Grad { return &Grad{name: name} }

func (g *Grad) Name() string { return g.name }

func (g *Grad) Render(dst []render.Color, dim render.Dimensions, t float64, u *render.Uniforms, lv render.Levels) {
	if dim.Width <= 0 || dim.Height <= 0 {
		return
	}
	speed := u.Param("speed", 0.1)
	axis := int(u.Param("axis", 2))
	warp := u.Param("treble_warp", 0.5) * lv.Treble
	for y := 0; y < dim.Height; y++ {
		fy := float64(y) / float64(max(1, dim.Height-1))
		for x := 0; x < dim.Width; x++ {
			fx := float64(x) / float64(max(1, dim.Width-1))
			var v float64
			switch axis {
			case 0:
				v = fx
			case 1:
				v = fy
			default:
				v = (fx + fy) / 2
			}
			v += warp * math.Sin(2*math.Pi*fy)
			phase := v*2*math.Pi + t*2*math.Pi*speed
			dst[y*dim.Width+x] = render.Color{
				R: float32(0.5 + 0.5*math.Sin(phase)),
				G: float32(0.5 + 0.5*math.Sin(phase+2*math.Pi/3)),
				B: float32(0.5 + 0.5*math.Sin(phase+4*math.Pi/3)),
			}
		}
	}
}
