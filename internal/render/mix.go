package render

// Mix blends a into b by alpha (0 keeps a, 1 is b) and writes dst.
// Channels are linear.
func Mix(dst, a, b []Color, alpha float64) {
	switch {
	case alpha <= 0:
		copy(dst, a)
		return
	case alpha >= 1:
		copy(dst, b)
		return
	}
	wa, wb := float32(1-alpha), float32(alpha)
	for i := range dst {
		dst[i] = Color{
			R: a[i].R*wa + b[i].R*wb,
			G: a[i].G*wa + b[i].G*wb,
			B: a[i].B*wa + b[i].B*wb,
		}
	}
}
