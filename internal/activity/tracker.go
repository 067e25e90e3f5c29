// Package activity emits best-effort analytics events about what the
// visualizer showed. Sends are fire-and-forget: each runs on its own
// goroutine, failures go to a diagnostics.Reporter and are never retried.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreman2200/milkbind/internal/diagnostics"
)

const (
	EventTrackChange    = "track_change"
	EventTitleDisplayed = "milkdrop_track_title_displayed"
)

// Record is the JSON shape accepted by sinks.
type Record struct {
	Event   string `json:"event"`
	Title   string `json:"title,omitempty"`
	TrackID string `json:"trackId,omitempty"`
}

// Sink delivers one record. Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, r Record) error
}

// Tracker decides when to emit. Observe is called from the controller's
// goroutine; only the sends run elsewhere.
type Tracker struct {
	sink    Sink
	rep     diagnostics.Reporter
	timeout time.Duration

	// lastLogged is the last track id a track_change was issued for.
	lastLogged string
	// session is the current track id; titleLogged belongs to it.
	session     string
	titleLogged bool

	wg sync.WaitGroup
}

// NewTracker sends through sink and reports failures to rep. A zero timeout
// means 10s per send.
func NewTracker(sink Sink, rep diagnostics.Reporter, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Tracker{sink: sink, rep: rep, timeout: timeout}
}

// Observe re-evaluates both events for the current state.
//
// track_change fires once per track id while playing; toggling playback on
// the same track does not fire again. The title-displayed event fires once
// per known track session while playing, titled and visible; a hidden page
// defers it until a later Observe with visible set, unless the track changed first.
func (t *Tracker) Observe(trackID, title string, playing, visible bool) {
	if trackID != t.session {
		t.session = trackID
		t.titleLogged = false
	}
	if playing && trackID != "" && trackID != t.lastLogged {
		t.lastLogged = trackID
		t.emit(Record{Event: EventTrackChange, Title: title, TrackID: trackID})
	}
	if playing && trackID != "" && title != "" && visible && !t.titleLogged {
		t.titleLogged = true
		t.emit(Record{Event: EventTitleDisplayed})
	}
}

// Wait blocks until every issued send has finished.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) emit(r Record) {
	if t.sink == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.send(r); err != nil {
			t.report(r, err)
		}
	}()
}

func (t *Tracker) send(r Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("sink panic: %v", p)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	return t.sink.Send(ctx, r)
}

func (t *Tracker) report(r Record, err error) {
	if t.rep == nil {
		return
	}
	t.rep.Report(diagnostics.Diagnostic{
		Severity: diagnostics.Warn,
		Code:     "ACTIVITY.SEND_FAILED",
		Summary:  "activity event dropped",
		Detail:   err.Error(),
		Evidence: map[string]any{"event": r.Event, "trackId": r.TrackID},
		Time:     time.Now(),
	})
}
