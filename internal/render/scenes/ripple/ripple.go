package ripple

import (
	"math"

	"github.com/coreman2200/milkbind/internal/render"
)

// Ripple runs a damped wave equation on the mesh. Bass hits drop an impulse
// at a point that wanders over time; the height field is shaded in one hue.
// Params:
//   - "wave_speed" (default 1.1)
//   - "damping" (default 0.02)
//   - "kick" (default 0.6): bass level that drops an impulse
//   - "hue" (default 0.56)
//   - "h_max" (default 0.5): cap on |height|
type Ripple struct {
	name string

	H, V []float64
	w, h int
	// armed is false while the bass stays above the kick threshold.
	armed bool
}

func New(name string) *Ripple { return &Ripple{name: name, armed: true} }

func (r *Ripple) Name() string { return r.name }

func (r *Ripple) Render(dst []render.Color, dim render.Dimensions, t float64, u *render.Uniforms, lv render.Levels) {
	n := dim.Count()
	if n <= 0 || len(dst) < n {
		return
	}
	if r.w != dim.Width || r.h != dim.Height {
		r.w, r.h = dim.Width, dim.Height
		r.H = make([]float64, n)
		r.V = make([]float64, n)
	}

	kick := u.Param("kick", 0.6)
	if lv.Bass >= kick && r.armed {
		x := int((0.5 + 0.4*math.Sin(t*0.7)) * float64(r.w-1))
		y := int((0.5 + 0.4*math.Cos(t*0.9)) * float64(r.h-1))
		r.H[y*r.w+x] += lv.Bass
		r.armed = false
	} else if lv.Bass < kick {
		r.armed = true
	}

	r.step(0.016, u.Param("wave_speed", 1.1), u.Param("damping", 0.02))

	hMax := u.Param("h_max", 0.5)
	hue := u.Param("hue", 0.56)
	for i := 0; i < n; i++ {
		if r.H[i] > hMax {
			r.H[i] = hMax
		} else if r.H[i] < -hMax {
			r.H[i] = -hMax
		}
		v := 0.25 + 0.75*math.Abs(r.H[i])/math.Max(1e-6, hMax)
		cr, cg, cb := hsv(hue+0.1*r.H[i], 0.8, v*(0.8+0.2*lv.Mid))
		dst[i] = render.Color{R: float32(cr), G: float32(cg), B: float32(cb)}
	}
}

// Energy is the summed squared height, mostly for tests.
func (r *Ripple) Energy() float64 {
	var e float64
	for _, h := range r.H {
		e += h * h
	}
	return e
}

func (r *Ripple) idx(x, y int) int { return y*r.w + x }

// step integrates one explicit Euler step with reflecting borders.
func (r *Ripple) step(dt, c, damping float64) {
	W, H := r.w, r.h
	for y := 0; y < H; y++ {
		for x := 0; x < W; x++ {
			i := r.idx(x, y)
			hc := r.H[i]
			hl := r.H[r.idx(clampi(x-1, 0, W-1), y)]
			hr := r.H[r.idx(clampi(x+1, 0, W-1), y)]
			hd := r.H[r.idx(x, clampi(y-1, 0, H-1))]
			hu := r.H[r.idx(x, clampi(y+1, 0, H-1))]
			lap := hl + hr + hd + hu - 4*hc
			r.V[i] += c * c * lap * dt * 60
			r.V[i] *= 1 - damping
		}
	}
	for i := range r.H {
		r.H[i] += r.V[i] * dt
		r.H[i] *= 1 - damping
	}
}

func hsv(h, s, v float64) (float64, float64, float64) {
	h -= math.Floor(h)
	i := int(h * 6)
	f := h*6 - float64(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch i % 6 {
	case 0:
		return v, t, p
	case 1:
		return q, v, p
	case 2:
		return p, v, t
	case 3:
		return p, q, v
	case 4:
		return t, p, v
	default:
		return v, p, q
	}
}

func clampi(x, a, b int) int {
	if x < a {
		return a
	}
	if x > b {
		return b
	}
	return x
}
