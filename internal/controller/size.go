package controller

// sizeSync pushes surface dimensions into the engine whenever the engine
// appears or either dimension changes.
type sizeSync struct {
	hadEngine bool
	w, h      int
}

func (s *sizeSync) onDimensionsChanged(e Engine, w, h int) {
	has := e != nil
	changed := has != s.hadEngine || w != s.w || h != s.h
	s.hadEngine, s.w, s.h = has, w, h
	if !changed || e == nil {
		return
	}
	e.Resize(w, h)
}
