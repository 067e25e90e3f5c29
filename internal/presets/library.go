// Package presets loads preset documents from a directory of YAML files.
//
// The library hands out stable *render.Preset pointers: a preset keeps its
// pointer until its file content changes, so consumers that compare presets
// by identity only see a change when there is one.
package presets

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/milkbind/internal/render"
)

type Library struct {
	dir string

	mu     sync.RWMutex
	byName map[string]*render.Preset
}

// Open loads every preset in dir.
func Open(dir string) (*Library, error) {
	l := &Library{dir: dir, byName: map[string]*render.Preset{}}
	if _, err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Library) Dir() string { return l.dir }

// Get returns the preset called name, or nil.
func (l *Library) Get(name string) *render.Preset {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.byName[name]
}

// List returns preset names in sorted order.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.byName))
	for n := range l.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Reload rereads the directory and returns the names that were added,
// changed or removed. Unchanged presets keep their pointers. A broken file
// aborts the reload and leaves the library as it was.
func (l *Library) Reload() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read preset dir: %w", err)
	}
	next := map[string]*render.Preset{}
	for _, e := range entries {
		if e.IsDir() || !isPresetFile(e.Name()) {
			continue
		}
		p, err := LoadFile(filepath.Join(l.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		if _, dup := next[p.Name]; dup {
			return nil, fmt.Errorf("duplicate preset %q in %s", p.Name, e.Name())
		}
		next[p.Name] = p
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	var changed []string
	for name, p := range next {
		old, ok := l.byName[name]
		if ok && reflect.DeepEqual(old, p) {
			next[name] = old
			continue
		}
		changed = append(changed, name)
	}
	for name := range l.byName {
		if _, ok := next[name]; !ok {
			changed = append(changed, name)
		}
	}
	l.byName = next
	sort.Strings(changed)
	return changed, nil
}

// LoadFile parses one preset. The name defaults to the file's base name.
func LoadFile(path string) (*render.Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	var p render.Preset
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", filepath.Base(path), err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if p.Scene == "" {
		return nil, fmt.Errorf("preset %s: missing scene", p.Name)
	}
	return &p, nil
}

// Save writes p to dir as <name>.yaml.
func Save(dir string, p *render.Preset) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, p.Name+".yaml"), b, 0o644)
}

func isPresetFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
