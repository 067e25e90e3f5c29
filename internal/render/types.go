package render

import (
	"errors"
	"sort"
)

type Color struct{ R, G, B float32 }

type Dimensions struct{ Width, Height int }

func (d Dimensions) Count() int { return d.Width * d.Height }

// Levels is one analysis window of the audio signal; bands are 0..1.
type Levels struct{ Bass, Mid, Treble float64 }

// AudioSource is the processing context an engine listens to. It is bound
// once, when the engine is created.
type AudioSource interface {
	SampleRate() int
	Levels() Levels
}

// Frame is handed to the Surface once per rendered frame.
type Frame struct {
	Seq    uint64
	Mesh   Dimensions // resolution of Pixels
	Size   Dimensions // requested output size in device pixels
	Pixels []Color
	Preset string
	// Title overlay; TitleAlpha is 0 when no announcement is on screen.
	Title      string
	TitleAlpha float64
}

// Surface is the drawing target. Its identity is fixed for the engine's life.
type Surface interface {
	Draw(f Frame) error
}

// Surfaces draws every frame to each member.
type Surfaces []Surface

func (ss Surfaces) Draw(f Frame) error {
	var errs []error
	for _, s := range ss {
		if err := s.Draw(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Config struct {
	Width, Height         int
	MeshWidth, MeshHeight int
	PixelRatio            float64
}

// Preset is loaded from a YAML document. Controllers compare presets by
// pointer, so a library hands out one pointer per loaded revision.
type Preset struct {
	Name   string             `yaml:"name" json:"name"`
	Scene  string             `yaml:"scene" json:"scene"`
	Params map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
}

type Uniforms struct {
	Brightness float64
	Params     map[string]float64
}

func (u *Uniforms) Param(name string, fallback float64) float64 {
	if u == nil || u.Params == nil {
		return fallback
	}
	if v, ok := u.Params[name]; ok {
		return v
	}
	return fallback
}

// Scene draws one visual style into a mesh-resolution buffer.
type Scene interface {
	Name() string
	Render(dst []Color, dim Dimensions, t float64, u *Uniforms, lv Levels)
}

type Registry struct{ m map[string]Scene }

func NewRegistry() *Registry { return &Registry{m: map[string]Scene{}} }

func (r *Registry) Register(s Scene) {
	if s == nil {
		return
	}
	r.m[s.Name()] = s
}

func (r *Registry) Get(name string) (Scene, bool) { s, ok := r.m[name]; return s, ok }

func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
