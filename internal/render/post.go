package render

import "math"

// ToneMap applies exposure (EV), the Narkowicz ACES fit and output gamma.
// Params read from u: "exposure_ev" (0), "gamma" (2.2). Brightness scales the
// result.
func ToneMap(buf []Color, u *Uniforms) {
	exposure := float32(math.Pow(2, u.Param("exposure_ev", 0)))
	invGamma := 1.0
	if g := u.Param("gamma", 2.2); g > 0 {
		invGamma = 1 / g
	}
	bright := float32(1)
	if u != nil && u.Brightness > 0 {
		bright = float32(u.Brightness)
	}
	for i := range buf {
		buf[i] = Color{
			R: bright * gammaf(aces(buf[i].R*exposure), invGamma),
			G: bright * gammaf(aces(buf[i].G*exposure), invGamma),
			B: bright * gammaf(aces(buf[i].B*exposure), invGamma),
		}
	}
}

func aces(x float32) float32 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	return clamp01((x * (a*x + b)) / (x*(c*x+d) + e))
}

func gammaf(x float32, p float64) float32 {
	if p == 1 {
		return x
	}
	return float32(math.Pow(float64(x), p))
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// Linear is the LED path: exposure as a plain linear scale, brightness, then
// a clamp. No tone curve and no gamma; strips apply their own.
func Linear(buf []Color, u *Uniforms) {
	scale := float32(math.Pow(2, u.Param("exposure_ev", 0)))
	if u != nil && u.Brightness > 0 {
		scale *= float32(u.Brightness)
	}
	for i := range buf {
		buf[i] = Color{
			R: clamp01(buf[i].R * scale),
			G: clamp01(buf[i].G * scale),
			B: clamp01(buf[i].B * scale),
		}
	}
}
