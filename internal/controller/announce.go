package controller

import "time"

// Message is a transient text announcement. Newer messages preempt the title
// overlay; older or repeated ones are dropped.
type Message struct {
	Text      string
	Timestamp time.Time
}

type titleKey struct {
	engine         bool
	trackID, title string
}

type messageKey struct {
	engine  bool
	present bool
	text    string
	unixNS  int64
}

// announcer routes track titles and messages into the engine's single title
// overlay.
type announcer struct {
	lastTitle titleKey
	lastMsg   messageKey

	// watermark is the wall time of the last message announcement.
	watermark    time.Time
	hasWatermark bool
	now          func() time.Time
}

// onTrackTitleChanged announces title whenever it, or the track it belongs
// to, changes. Equal titles on a new track are announced again.
func (a *announcer) onTrackTitleChanged(e Engine, trackID, title string) {
	k := titleKey{engine: e != nil, trackID: trackID, title: title}
	if k == a.lastTitle {
		return
	}
	a.lastTitle = k
	if e == nil || title == "" {
		return
	}
	e.AnnounceTitle(title)
}

// onMessage announces m when its timestamp is strictly after the watermark.
func (a *announcer) onMessage(e Engine, m *Message) {
	k := messageKey{engine: e != nil, present: m != nil}
	if m != nil {
		k.text, k.unixNS = m.Text, m.Timestamp.UnixNano()
	}
	if k == a.lastMsg {
		return
	}
	a.lastMsg = k
	if e == nil || m == nil {
		return
	}
	if a.hasWatermark && !m.Timestamp.After(a.watermark) {
		return
	}
	a.watermark, a.hasWatermark = a.now(), true
	e.AnnounceTitle(m.Text)
}
