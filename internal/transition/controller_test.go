package transition

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cyoa/internal/game"
)

type fakeTimer struct {
	mu      sync.Mutex
	fire    func()
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return true
}

func (f *fakeTimer) Fire() { f.fire() }

func newTestController() (*Controller, *[]*fakeTimer) {
	timers := &[]*fakeTimer{}
	c := New(time.Second)
	c.AfterFunc = func(_ time.Duration, f func()) Timer {
		t := &fakeTimer{fire: f}
		*timers = append(*timers, t)
		return t
	}
	return c, timers
}

func TestPlay_NoneCompletesSynchronously(t *testing.T) {
	c, timers := newTestController()
	require.NoError(t, c.Prepare("next"))
	assert.Equal(t, Preparing, c.State())

	calls := 0
	plan, err := c.Play(game.TransitionNone, "", func() { calls++ })
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.False(t, plan.Animated())
	assert.Equal(t, "next", plan.Target)
	assert.Equal(t, OverlayDelay, plan.OverlayDelay)
	assert.Equal(t, Idle, c.State())
	assert.Empty(t, *timers)
}

func TestPlay_EmptyTypeIsNone(t *testing.T) {
	c, _ := newTestController()
	require.NoError(t, c.Prepare("next"))
	calls := 0
	plan, err := c.Play("", "img.png", func() { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, game.TransitionNone, plan.Type)
}

func TestPlay_WipeWaitsForAnimationEnd(t *testing.T) {
	c, timers := newTestController()
	require.NoError(t, c.Prepare("cave"))

	calls := 0
	plan, err := c.Play(game.TransitionWipeLeft, "cave.png", func() { calls++ })
	require.NoError(t, err)

	assert.True(t, plan.Animated())
	assert.Equal(t, "wipe-left-start", plan.StartClass)
	assert.Equal(t, "is-wiping", plan.TransClass)
	assert.Equal(t, "cave.png", plan.Background)
	assert.Equal(t, Animating, c.State())
	assert.Equal(t, 0, calls)

	c.AnimationEnded()
	c.AnimationEnded()
	(*timers)[0].Fire()

	assert.Equal(t, 1, calls, "completion must fire exactly once")
	assert.Equal(t, Idle, c.State())
	assert.True(t, (*timers)[0].stopped)
}

func TestPlay_TimeoutFallback(t *testing.T) {
	c, timers := newTestController()
	require.NoError(t, c.Prepare("hall"))
	calls := 0
	plan, err := c.Play(game.TransitionFade, "", func() { calls++ })
	require.NoError(t, err)
	assert.Equal(t, BlankImage, plan.Background)

	(*timers)[0].Fire()
	assert.Equal(t, 1, calls)
	assert.Equal(t, Idle, c.State())

	c.AnimationEnded()
	assert.Equal(t, 1, calls)
}

func TestPrepare_BusyWhileInFlight(t *testing.T) {
	c, timers := newTestController()
	require.NoError(t, c.Prepare("a"))
	assert.ErrorIs(t, c.Prepare("b"), ErrBusy)

	_, err := c.Play(game.TransitionFade, "", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, c.Prepare("b"), ErrBusy)
	assert.Equal(t, "a", c.Target())

	(*timers)[0].Fire()
	assert.NoError(t, c.Prepare("b"))
}

func TestStaleTimerDoesNotFinishNextTransition(t *testing.T) {
	c, timers := newTestController()
	require.NoError(t, c.Prepare("a"))
	first := 0
	_, err := c.Play(game.TransitionFade, "", func() { first++ })
	require.NoError(t, err)
	c.AnimationEnded()

	require.NoError(t, c.Prepare("b"))
	second := 0
	_, err = c.Play(game.TransitionFade, "", func() { second++ })
	require.NoError(t, err)

	(*timers)[0].Fire()
	assert.Equal(t, 0, second, "old timer must not complete the new transition")
	(*timers)[1].Fire()
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, first)
}

func TestCancelAndPlayWithoutPrepare(t *testing.T) {
	c, _ := newTestController()
	_, err := c.Play(game.TransitionFade, "", nil)
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, c.Prepare("a"))
	c.Cancel()
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, "", c.Target())
}

func TestRealTimerFallback(t *testing.T) {
	c := New(10 * time.Millisecond)
	require.NoError(t, c.Prepare("a"))
	done := make(chan struct{})
	_, err := c.Play(game.TransitionWipeUp, "", func() { close(done) })
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout fallback never fired")
	}
	assert.Equal(t, Idle, c.State())
}

func TestReset_DropsInFlightTransition(t *testing.T) {
	c, timers := newTestController()
	require.NoError(t, c.Prepare("b"))
	calls := 0
	_, err := c.Play(game.TransitionFade, "", func() { calls++ })
	require.NoError(t, err)

	c.Reset()
	assert.Equal(t, Idle, c.State())
	assert.True(t, (*timers)[0].stopped)

	(*timers)[0].Fire()
	c.AnimationEnded()
	assert.Equal(t, 0, calls)
	assert.NoError(t, c.Prepare("c"))
}
