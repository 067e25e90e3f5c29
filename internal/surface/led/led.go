// Package led draws frames onto an addressable LED strip through periph.io.
// Without an SPI port it falls back to printing the strip on the console.
package led

import (
	"fmt"
	"image"
	"image/color"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"
	"periph.io/x/host/v3"

	"github.com/coreman2200/milkbind/internal/render"
)

// Surface samples each frame down to one row of LEDs.
type Surface struct {
	drawer display.Drawer
	port   spi.PortCloser
	img    *image.NRGBA
	leds   int
	// SPI is false when frames go to the console fallback.
	SPI bool
}

// New wraps an already opened drawer with leds pixels.
func New(d display.Drawer, leds int) *Surface {
	return &Surface{
		drawer: d,
		img:    image.NewNRGBA(image.Rect(0, 0, leds, 1)),
		leds:   leds,
	}
}

// Open initialises the host, opens dev ("" picks the first port) and drives
// leds pixels at speedHz.
func Open(dev string, leds, speedHz int) (*Surface, error) {
	if leds <= 0 {
		return nil, fmt.Errorf("invalid led count %d", leds)
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(dev)
	if err != nil {
		log.Warn().Err(err).Str("dev", dev).Msg("no SPI port; printing frames to the console")
		return New(screen.New(leds), leds), nil
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: leds,
		Channels:  3,
		Freq:      physic.Frequency(speedHz) * physic.Hertz,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	s := New(d, leds)
	s.port = p
	s.SPI = true
	return s, nil
}

// Draw samples f across the strip. An on-screen title lifts the whole strip
// towards white by its alpha.
func (s *Surface) Draw(f render.Frame) error {
	n := len(f.Pixels)
	if n == 0 {
		return nil
	}
	lift := float32(0.3 * f.TitleAlpha)
	for i := 0; i < s.leds; i++ {
		c := f.Pixels[i*n/s.leds]
		s.img.SetNRGBA(i, 0, color.NRGBA{
			R: to8(c.R + (1-c.R)*lift),
			G: to8(c.G + (1-c.G)*lift),
			B: to8(c.B + (1-c.B)*lift),
			A: 255,
		})
	}
	return s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{})
}

// Close blanks the strip and releases the port.
func (s *Surface) Close() error {
	err := s.drawer.Halt()
	if s.port != nil {
		if cerr := s.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func to8(x float32) uint8 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 255
	}
	return uint8(x * 255)
}
