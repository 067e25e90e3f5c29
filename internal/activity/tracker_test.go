package activity

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/milkbind/internal/diagnostics"
)

type recordingSink struct {
	mu    sync.Mutex
	got   []Record
	err   error
	panic bool
}

func (s *recordingSink) Send(_ context.Context, r Record) error {
	if s.panic {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, r)
	return s.err
}

func (s *recordingSink) events() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.got...)
}

func (s *recordingSink) count(event string) int {
	n := 0
	for _, r := range s.events() {
		if r.Event == event {
			n++
		}
	}
	return n
}

type recordingReporter struct {
	mu  sync.Mutex
	got []diagnostics.Diagnostic
}

func (r *recordingReporter) Report(d diagnostics.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, d)
}

func TestTrackChangeOncePerTrack(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, nil, 0)

	tr.Observe("a", "Song A", true, true)
	tr.Observe("a", "Song A", false, true)
	tr.Observe("a", "Song A", true, true)
	tr.Observe("a", "Song A", true, true)
	tr.Wait()
	assert.Equal(t, 1, sink.count(EventTrackChange))

	tr.Observe("b", "Song B", true, true)
	tr.Wait()
	assert.Equal(t, 2, sink.count(EventTrackChange))
	assert.Contains(t, sink.events(), Record{Event: EventTrackChange, Title: "Song B", TrackID: "b"})
}

func TestTrackChangeWaitsForPlaying(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, nil, 0)
	tr.Observe("a", "Song A", false, true)
	tr.Observe("b", "Song B", false, true)
	tr.Wait()
	assert.Empty(t, sink.events())

	tr.Observe("b", "Song B", true, true)
	tr.Wait()
	assert.Equal(t, []Record{
		{Event: EventTrackChange, Title: "Song B", TrackID: "b"},
		{Event: EventTitleDisplayed},
	}, sortedByEvent(sink.events()))
}

func TestTitleDisplayedDeferredUntilVisible(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, nil, 0)

	tr.Observe("a", "Song A", true, false)
	tr.Wait()
	assert.Equal(t, 0, sink.count(EventTitleDisplayed))

	tr.Observe("a", "Song A", true, true)
	tr.Observe("a", "Song A", true, false)
	tr.Observe("a", "Song A", true, true)
	tr.Wait()
	assert.Equal(t, 1, sink.count(EventTitleDisplayed))
}

func TestTitleDisplayedDroppedWhenTrackChangesWhileHidden(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, nil, 0)

	tr.Observe("a", "Song A", true, false)
	tr.Observe("b", "", true, false)
	tr.Observe("b", "", true, true) // untitled: nothing to display
	tr.Wait()
	assert.Equal(t, 0, sink.count(EventTitleDisplayed))

	tr.Observe("b", "Song B", true, true)
	tr.Wait()
	assert.Equal(t, 1, sink.count(EventTitleDisplayed))
}

func TestTitleMarkerResetsPerTrack(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, nil, 0)
	tr.Observe("a", "Song", true, true)
	tr.Observe("b", "Song", true, true)
	tr.Observe("a", "Song", true, true)
	tr.Wait()
	assert.Equal(t, 3, sink.count(EventTitleDisplayed))
	assert.Equal(t, 3, sink.count(EventTrackChange))
}

func TestSendFailuresAreReportedNotRetried(t *testing.T) {
	sink := &recordingSink{err: errors.New("503")}
	rep := &recordingReporter{}
	tr := NewTracker(sink, rep, 0)

	tr.Observe("a", "Song A", true, true)
	tr.Wait()
	tr.Observe("a", "Song A", true, true)
	tr.Wait()

	assert.Len(t, sink.events(), 2, "one attempt per event")
	require.Len(t, rep.got, 2)
	for _, d := range rep.got {
		assert.Equal(t, "ACTIVITY.SEND_FAILED", d.Code)
		assert.Equal(t, diagnostics.Warn, d.Severity)
		assert.False(t, d.Time.IsZero())
	}
}

func TestSinkPanicIsContained(t *testing.T) {
	rep := &recordingReporter{}
	tr := NewTracker(&recordingSink{panic: true}, rep, 0)
	assert.NotPanics(t, func() {
		tr.Observe("a", "Song A", true, true)
		tr.Wait()
	})
	require.NotEmpty(t, rep.got)
	assert.Contains(t, rep.got[0].Detail, "sink exploded")
}

func TestNoEventsWithoutTrackID(t *testing.T) {
	sink := &recordingSink{}
	tr := NewTracker(sink, nil, 0)
	tr.Observe("", "X", true, true)
	tr.Observe("", "Y", true, true)
	tr.Wait()
	assert.Empty(t, sink.events())

	tr.Observe("a", "X", true, true)
	tr.Wait()
	assert.Equal(t, 1, sink.count(EventTitleDisplayed))
	assert.Equal(t, 1, sink.count(EventTrackChange))
}

func TestNilSinkIsSilent(t *testing.T) {
	tr := NewTracker(nil, nil, 0)
	tr.Observe("a", "Song A", true, true)
	tr.Wait()
}

func sortedByEvent(rs []Record) []Record {
	out := append([]Record(nil), rs...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Event > out[j-1].Event; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
