package controller

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/milkbind/internal/host"
	"github.com/coreman2200/milkbind/internal/render"
	"github.com/coreman2200/milkbind/internal/transition"
)

type fakeAudio struct{}

func (fakeAudio) SampleRate() int       { return 44100 }
func (fakeAudio) Levels() render.Levels { return render.Levels{} }

type fakeSurface struct{}

func (fakeSurface) Draw(render.Frame) error { return nil }

// fakeEngine records every call except RenderFrame, which it counts.
type fakeEngine struct {
	trace  *[]string
	frames int
}

func (f *fakeEngine) log(format string, args ...any) {
	*f.trace = append(*f.trace, fmt.Sprintf(format, args...))
}
func (f *fakeEngine) ConnectAudio(render.AudioSource) { f.log("connect") }
func (f *fakeEngine) Resize(w, h int)                 { f.log("resize(%d,%d)", w, h) }
func (f *fakeEngine) LoadPreset(p *render.Preset, s float64) {
	f.log("load(%s,%g)", p.Name, s)
}
func (f *fakeEngine) AnnounceTitle(text string) { f.log("title(%s)", text) }
func (f *fakeEngine) RenderFrame()              { f.frames++ }

// fakeFactory hands out fakeEngines and can be told to fail.
type fakeFactory struct {
	trace   []string
	engines []*fakeEngine
	fail    error
}

func (ff *fakeFactory) create(_ render.AudioSource, _ render.Surface, cfg render.Config) (Engine, error) {
	if ff.fail != nil {
		return nil, ff.fail
	}
	ff.trace = append(ff.trace, fmt.Sprintf("create(%dx%d mesh=%dx%d ratio=%g)",
		cfg.Width, cfg.Height, cfg.MeshWidth, cfg.MeshHeight, cfg.PixelRatio))
	e := &fakeEngine{trace: &ff.trace}
	ff.engines = append(ff.engines, e)
	return e, nil
}

func (ff *fakeFactory) last() *fakeEngine { return ff.engines[len(ff.engines)-1] }

func (ff *fakeFactory) count(prefix string) int {
	n := 0
	for _, c := range ff.trace {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type fixture struct {
	ff   *fakeFactory
	loop *host.Loop
	c    *Controller
	now  time.Time
}

func newFixture(opts ...func(*Options)) *fixture {
	fx := &fixture{ff: &fakeFactory{}, loop: host.NewLoop(60), now: time.UnixMilli(12)}
	o := Options{
		Factory:    fx.ff.create,
		Frames:     fx.loop,
		MeshWidth:  32,
		MeshHeight: 24,
		PixelRatio: 1,
		Clock:      func() time.Time { return fx.now },
	}
	for _, fn := range opts {
		fn(&o)
	}
	fx.c = New(o)
	return fx
}

func ready() Inputs {
	return Inputs{Audio: fakeAudio{}, Surface: fakeSurface{}, Width: 800, Height: 600}
}

func TestEngineCreatedOnceWhenPrerequisitesArrive(t *testing.T) {
	fx := newFixture()
	in := Inputs{Width: 800, Height: 600}
	require.NoError(t, fx.c.Update(in))
	assert.Nil(t, fx.c.Engine())

	in.Audio = fakeAudio{}
	require.NoError(t, fx.c.Update(in))
	assert.Nil(t, fx.c.Engine(), "surface still missing")

	in.Surface = fakeSurface{}
	require.NoError(t, fx.c.Update(in))
	first := fx.c.Engine()
	require.NotNil(t, first)

	// New audio, surface and size are ignored once the engine exists.
	for i := 0; i < 3; i++ {
		in.Audio = &fakeAudio{}
		in.Surface = &fakeSurface{}
		require.NoError(t, fx.c.Update(in))
		assert.Same(t, first.(*fakeEngine), fx.c.Engine().(*fakeEngine))
	}
	in.Audio, in.Surface = nil, nil
	require.NoError(t, fx.c.Update(in))
	assert.Same(t, first.(*fakeEngine), fx.c.Engine().(*fakeEngine))

	assert.Equal(t, 1, fx.ff.count("create"))
	assert.Equal(t, 1, fx.ff.count("connect"))
	assert.True(t, fx.c.Status().Created)
}

func TestEngineCreationErrorIsRetried(t *testing.T) {
	fx := newFixture()
	fx.ff.fail = errors.New("no gl context")
	err := fx.c.Update(ready())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no gl context")
	assert.Nil(t, fx.c.Engine())

	fx.ff.fail = nil
	require.NoError(t, fx.c.Update(ready()))
	assert.NotNil(t, fx.c.Engine())
	assert.Equal(t, []string{"create(800x600 mesh=32x24 ratio=1)", "connect", "resize(800,600)"}, fx.ff.trace)
}

func TestResizeFollowsDimensions(t *testing.T) {
	fx := newFixture()
	in := ready()
	require.NoError(t, fx.c.Update(in))
	require.NoError(t, fx.c.Update(in))
	in.Width = 1024
	require.NoError(t, fx.c.Update(in))
	in.Height = 768
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, []string{
		"create(800x600 mesh=32x24 ratio=1)", "connect",
		"resize(800,600)", "resize(1024,600)", "resize(1024,768)",
	}, fx.ff.trace)
}

func TestFirstPresetLoadIsImmediate(t *testing.T) {
	p1 := &render.Preset{Name: "P1"}
	p2 := &render.Preset{Name: "P2"}
	p3 := &render.Preset{Name: "P3"}

	fx := newFixture()
	in := ready()
	in.Preset, in.Transition = p1, transition.UserSelected
	require.NoError(t, fx.c.Update(in))
	in.Preset, in.Transition = p2, transition.Default
	require.NoError(t, fx.c.Update(in))
	in.Preset, in.Transition = p3, transition.UserSelected
	require.NoError(t, fx.c.Update(in))

	assert.Equal(t, []string{"load(P1,0)", "load(P2,2.7)", "load(P3,5.7)"}, fx.ff.trace[3:])
	assert.True(t, fx.c.Status().LoadedOnce)
}

func TestPresetWaitsForEngine(t *testing.T) {
	p1 := &render.Preset{Name: "P1"}
	fx := newFixture()
	require.NoError(t, fx.c.Update(Inputs{Preset: p1, Transition: transition.Default}))
	assert.Empty(t, fx.ff.trace)

	in := ready()
	in.Preset = p1
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 1, fx.ff.count("load(P1,0)"))
}

func TestTransitionKindAloneDoesNotReload(t *testing.T) {
	p := &render.Preset{Name: "P"}
	fx := newFixture()
	in := ready()
	in.Preset = p
	require.NoError(t, fx.c.Update(in))
	for _, k := range []transition.Kind{transition.UserSelected, transition.Immediate, transition.Default} {
		in.Transition = k
		require.NoError(t, fx.c.Update(in))
	}
	assert.Equal(t, 1, fx.ff.count("load"))

	// Same name, new identity: a reloaded preset file is a new preset.
	in.Preset = &render.Preset{Name: "P"}
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 2, fx.ff.count("load"))
}

func TestPresetClearedThenRestoredReloads(t *testing.T) {
	p := &render.Preset{Name: "P"}
	fx := newFixture()
	in := ready()
	in.Preset = p
	require.NoError(t, fx.c.Update(in))
	in.Preset = nil
	require.NoError(t, fx.c.Update(in))
	in.Preset = p
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, []string{"load(P,0)", "load(P,2.7)"}, fx.ff.trace[3:])
}

func TestTrackTitleAnnouncements(t *testing.T) {
	fx := newFixture()
	in := Inputs{TrackID: "1", Title: "Intro"}
	require.NoError(t, fx.c.Update(in))
	assert.Empty(t, fx.ff.trace, "no engine yet")

	in.Audio, in.Surface, in.Width, in.Height = fakeAudio{}, fakeSurface{}, 800, 600
	require.NoError(t, fx.c.Update(in))
	require.NoError(t, fx.c.Update(in))

	in.TrackID = "2" // same title, new track
	require.NoError(t, fx.c.Update(in))

	in.Title = ""
	require.NoError(t, fx.c.Update(in))

	in.Title = "Outro"
	require.NoError(t, fx.c.Update(in))

	assert.Equal(t, []string{"title(Intro)", "title(Intro)", "title(Outro)"}, fx.ff.trace[3:])
}

func TestMessagesAnnouncedOnlyWhenNewer(t *testing.T) {
	fx := newFixture() // clock fixed at t=12ms
	in := ready()
	require.NoError(t, fx.c.Update(in))

	for _, m := range []Message{
		{Text: "M1", Timestamp: time.UnixMilli(10)},
		{Text: "M2", Timestamp: time.UnixMilli(5)},
		{Text: "M3", Timestamp: time.UnixMilli(20)},
	} {
		m := m
		in.Message = &m
		require.NoError(t, fx.c.Update(in))
	}
	assert.Equal(t, []string{"title(M1)", "title(M3)"}, fx.ff.trace[3:])
}

func TestMessageNotReplayedAcrossUpdates(t *testing.T) {
	fx := newFixture()
	fx.now = time.UnixMilli(0) // watermark stays behind the message
	in := ready()
	in.Message = &Message{Text: "hello", Timestamp: time.UnixMilli(50)}
	for i := 0; i < 3; i++ {
		in.Playing = i%2 == 0
		require.NoError(t, fx.c.Update(in))
	}
	assert.Equal(t, 1, fx.ff.count("title(hello)"))

	// Watermark is wall time at announcement, not the message timestamp.
	in.Message = &Message{Text: "next", Timestamp: time.UnixMilli(40)}
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 1, fx.ff.count("title(next)"))
}

func TestRenderLoopLifecycle(t *testing.T) {
	fx := newFixture()
	in := ready()
	in.Enabled = true
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 0, fx.loop.Pending(), "not playing")

	in.Playing = true
	require.NoError(t, fx.c.Update(in))
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 1, fx.loop.Pending())
	fx.loop.Tick(fx.now)
	fx.loop.Tick(fx.now)
	e := fx.ff.last()
	assert.Equal(t, 2, e.frames)
	assert.Equal(t, 1, fx.loop.Pending())

	in.Playing = false
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 0, fx.loop.Pending())
	fx.loop.Tick(fx.now)
	assert.Equal(t, 2, e.frames)
	assert.False(t, fx.c.Status().Running)

	in.Playing = true
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 1, fx.loop.Pending())
	fx.loop.Tick(fx.now)
	assert.Equal(t, 3, e.frames)
	assert.Equal(t, 2, fx.c.Status().Runs)

	in.Enabled = false
	require.NoError(t, fx.c.Update(in))
	fx.loop.Tick(fx.now)
	assert.Equal(t, 3, e.frames)
}

func TestCloseCancelsLoopAndIgnoresUpdates(t *testing.T) {
	fx := newFixture()
	in := ready()
	in.Enabled, in.Playing = true, true
	require.NoError(t, fx.c.Update(in))
	fx.loop.Tick(fx.now)

	fx.c.Close()
	fx.c.Close()
	assert.Equal(t, 0, fx.loop.Pending())
	fx.loop.Tick(fx.now)
	assert.Equal(t, 1, fx.ff.last().frames)

	in.Preset = &render.Preset{Name: "late"}
	require.NoError(t, fx.c.Update(in))
	assert.Equal(t, 0, fx.ff.count("load"))
	assert.True(t, fx.c.Status().Closed)
}

// lazyScheduler never drops cancelled callbacks, like a host whose cancel
// is not synchronous.
type lazyScheduler struct {
	fns      []func(time.Time)
	canceled []host.FrameID
}

func (s *lazyScheduler) RequestFrame(fn func(time.Time)) host.FrameID {
	s.fns = append(s.fns, fn)
	return host.FrameID(len(s.fns))
}

func (s *lazyScheduler) CancelFrame(id host.FrameID) { s.canceled = append(s.canceled, id) }

func TestStoppedRunNeverRendersEvenIfHostFires(t *testing.T) {
	sched := &lazyScheduler{}
	fx := newFixture(func(o *Options) { o.Frames = sched })
	in := ready()
	in.Enabled, in.Playing = true, true
	require.NoError(t, fx.c.Update(in))
	in.Playing = false
	require.NoError(t, fx.c.Update(in))

	require.Len(t, sched.fns, 1)
	sched.fns[0](time.Now())
	assert.Equal(t, 0, fx.ff.last().frames)
	assert.Equal(t, []host.FrameID{1}, sched.canceled)
	assert.Len(t, sched.fns, 1, "a cancelled run must not reschedule")
}

type observation struct {
	track, title     string
	playing, visible bool
}

type fakeObserver struct{ seen []observation }

func (o *fakeObserver) Observe(trackID, title string, playing, visible bool) {
	o.seen = append(o.seen, observation{trackID, title, playing, visible})
}

func TestActivityObservedWithoutEngine(t *testing.T) {
	obs := &fakeObserver{}
	fx := newFixture(func(o *Options) { o.Activity = obs })
	require.NoError(t, fx.c.Update(Inputs{TrackID: "t", Title: "x", Playing: true, Visible: true}))
	fx.ff.fail = errors.New("boom")
	require.Error(t, fx.c.Update(Inputs{Audio: fakeAudio{}, Surface: fakeSurface{}, TrackID: "u", Playing: true}))
	assert.Equal(t, []observation{{"t", "x", true, true}, {"u", "", true, false}}, obs.seen)
}

func TestControllersAreIndependent(t *testing.T) {
	p := &render.Preset{Name: "P"}
	a, b := newFixture(), newFixture()
	in := ready()
	in.Preset = p
	require.NoError(t, a.c.Update(in))
	require.NoError(t, b.c.Update(in))
	assert.Equal(t, 1, a.ff.count("load(P,0)"))
	assert.Equal(t, 1, b.ff.count("load(P,0)"))
	assert.NotEqual(t, a.c.ID, b.c.ID)
}

func TestEndToEndScenario(t *testing.T) {
	fx := newFixture()
	p1 := &render.Preset{Name: "P1"}
	p2 := &render.Preset{Name: "P2"}

	in := Inputs{}
	require.NoError(t, fx.c.Update(in))

	in.Audio, in.Surface, in.Width, in.Height = fakeAudio{}, fakeSurface{}, 800, 600
	require.NoError(t, fx.c.Update(in))

	in.Preset, in.Transition = p1, transition.Default
	require.NoError(t, fx.c.Update(in))

	in.Width, in.Height = 400, 300
	require.NoError(t, fx.c.Update(in))

	in.Preset, in.Transition = p2, transition.UserSelected
	require.NoError(t, fx.c.Update(in))

	in.Transition = transition.Default
	require.NoError(t, fx.c.Update(in))

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "end_to_end", []byte(strings.Join(fx.ff.trace, "\n")+"\n"))
}
