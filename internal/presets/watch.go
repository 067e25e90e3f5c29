package presets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const debounce = 100 * time.Millisecond

// Watcher reports preset files that were written, created, renamed or
// removed. Events are held until no preset file changed for the debounce
// period, then every file touched during the burst is reported once.
type Watcher struct {
	watcher *fsnotify.Watcher
	Events  chan string
	Errors  chan error
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewWatcher(dirs ...string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
	}
	watcher := &Watcher{
		watcher: w,
		Events:  make(chan string, 16),
		Errors:  make(chan error, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go watcher.run()
	return watcher, nil
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closeCh)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.Errors)
	defer close(w.Events)

	quiet := time.NewTimer(debounce)
	quiet.Stop()
	defer quiet.Stop()
	pending := map[string]struct{}{}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !isPresetFile(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			if !quiet.Stop() {
				select {
				case <-quiet.C:
				default:
				}
			}
			quiet.Reset(debounce)
		case <-quiet.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			sort.Strings(names)
			clear(pending)
			for _, name := range names {
				select {
				case w.Events <- name:
				case <-w.closeCh:
					return
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		case <-w.closeCh:
			return
		}
	}
}

// Watch reloads the library whenever a preset file changes and passes the
// changed names to onChange. It returns when ctx is done.
func (l *Library) Watch(ctx context.Context, onChange func(names []string)) error {
	w, err := NewWatcher(l.dir)
	if err != nil {
		return err
	}
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-w.Events:
			if !ok {
				return nil
			}
			changed, err := l.Reload()
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("preset reload failed")
				continue
			}
			if len(changed) > 0 {
				log.Info().Strs("presets", changed).Msg("presets reloaded")
				onChange(changed)
			}
		case err, ok := <-w.Errors:
			if ok {
				log.Warn().Err(err).Msg("preset watcher")
			}
		}
	}
}
