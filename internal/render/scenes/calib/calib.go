// Package calib draws a static wiring check pattern: vertical bands cycling
// red, green and blue, darkening left to right and blending to white towards
// the top row. A miswired strip or flipped mesh axis is obvious at a glance.
package calib

import (
	"math"

	"github.com/coreman2200/milkbind/internal/render"
)

type Renderer struct{ name string }

func New(name string) *Renderer { return &Renderer{name: name} }

func (r *Renderer) Name() string { return r.name }

// Params:
//
//	bands (3)          number of colour bands across X
//	flip_x, flip_y (0) mirror an axis when > 0.5
//	lr_gamma (1.2)     left-to-right darkening curve
//	right_floor (0)    minimum brightness at the right edge
//	top_white_pow (0.6), top_white_mix (1)
//	base_intensity (1)
func (r *Renderer) Render(dst []render.Color, dim render.Dimensions, _ float64, u *render.Uniforms, _ render.Levels) {
	W, H := dim.Width, dim.Height
	if W <= 0 || H <= 0 || len(dst) < W*H {
		return
	}
	bands := int(u.Param("bands", 3))
	if bands < 1 {
		bands = 1
	}
	flipX := u.Param("flip_x", 0) > 0.5
	flipY := u.Param("flip_y", 0) > 0.5
	lrPow := u.Param("lr_gamma", 1.2)
	rightFloor := clamp01(u.Param("right_floor", 0))
	topPow := u.Param("top_white_pow", 0.6)
	topMix := clamp01(u.Param("top_white_mix", 1))
	base := clamp01(u.Param("base_intensity", 1))

	norm := func(i, n int) float64 {
		if n <= 1 {
			return 0
		}
		return float64(i) / float64(n-1)
	}

	i := 0
	for y := 0; y < H; y++ {
		for x := 0; x < W; x++ {
			vx, vy := x, y
			if flipX {
				vx = W - 1 - vx
			}
			if flipY {
				vy = H - 1 - vy
			}

			var R, G, B float64
			switch (vx * bands / W) % 3 {
			case 0:
				R = 1
			case 1:
				G = 1
			default:
				B = 1
			}

			lr := 1 - math.Pow(norm(vx, W), lrPow)
			lr = rightFloor + (1-rightFloor)*lr
			R, G, B = R*lr, G*lr, B*lr

			bt := math.Pow(norm(vy, H), topPow)
			if vy == H-1 {
				bt = 1
			} else {
				bt *= topMix
			}
			R += (1 - R) * bt
			G += (1 - G) * bt
			B += (1 - B) * bt

			dst[i] = render.Color{
				R: float32(clamp01(R * base)),
				G: float32(clamp01(G * base)),
				B: float32(clamp01(B * base)),
			}
			i++
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
