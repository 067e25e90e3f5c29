package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFramesRunOnNextTick(t *testing.T) {
	l := NewLoop(60)
	var order []string
	l.RequestFrame(func(time.Time) {
		order = append(order, "a")
		l.RequestFrame(func(time.Time) { order = append(order, "a2") })
	})
	l.RequestFrame(func(time.Time) { order = append(order, "b") })

	assert.Equal(t, 2, l.Tick(time.Now()))
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, l.Pending(), "frame requested during a tick waits for the next one")

	assert.Equal(t, 1, l.Tick(time.Now()))
	assert.Equal(t, []string{"a", "b", "a2"}, order)
	assert.Equal(t, 0, l.Tick(time.Now()))
	assert.Equal(t, uint64(3), l.Ticks, "empty ticks are counted too")
}

func TestCancelledFrameNeverRuns(t *testing.T) {
	l := NewLoop(60)
	ran := 0
	id := l.RequestFrame(func(time.Time) { ran++ })
	l.CancelFrame(id)
	l.CancelFrame(id)
	l.CancelFrame(FrameID(999))
	assert.Equal(t, 0, l.Pending())
	assert.Equal(t, 0, l.Tick(time.Now()))
	assert.Equal(t, 0, ran)
	assert.Empty(t, l.pending, "tick drops cancelled ids")
}

func TestCancelDuringSameTick(t *testing.T) {
	l := NewLoop(60)
	ran := 0
	var second FrameID
	l.RequestFrame(func(time.Time) { l.CancelFrame(second) })
	second = l.RequestFrame(func(time.Time) { ran++ })
	assert.Equal(t, 1, l.Tick(time.Now()))
	assert.Equal(t, 0, ran)
}

func TestRunDispatchesPostsAndFrames(t *testing.T) {
	l := NewLoop(500)
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.Run(ctx)
	}()

	fired := make(chan struct{})
	require.NoError(t, l.Call(ctx, func() {
		l.RequestFrame(func(time.Time) { close(fired) })
	}))
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("frame never fired")
	}

	cancel()
	wg.Wait()
	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Call(context.Background(), func() {}), ErrStopped)
}
