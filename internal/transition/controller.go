// Package transition sequences the visual hand-off between two scenes.
//
// A transition moves Idle -> Preparing(target) -> Animating -> Idle. The host
// animates according to the returned Plan and reports the end of the
// animation; if it never does, a timeout completes the transition anyway.
package transition

import (
	"errors"
	"sync"
	"time"

	"cyoa/internal/game"
)

// BlankImage is drawn when the incoming scene has no image.
const BlankImage = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

const (
	// DefaultTimeout is how long to wait for the host's end-of-animation
	// signal before forcing completion.
	DefaultTimeout = 1500 * time.Millisecond
	// OverlayDelay is how long the host should wait before fading the
	// scene-name overlay back in.
	OverlayDelay = 50 * time.Millisecond
)

// ErrBusy is returned when a transition is already in flight.
var ErrBusy = errors.New("transition in progress")

// State is the controller's position in its cycle.
type State int

const (
	Idle State = iota
	Preparing
	Animating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Animating:
		return "animating"
	default:
		return "unknown"
	}
}

// Plan tells the host how to animate the overlay.
type Plan struct {
	Target       string              `json:"target"`
	Type         game.TransitionType `json:"type"`
	Background   string              `json:"background,omitempty"`
	StartClass   string              `json:"startClass,omitempty"`
	TransClass   string              `json:"transClass,omitempty"`
	OverlayDelay time.Duration       `json:"overlayDelay"`
	Timeout      time.Duration       `json:"timeout,omitempty"`
	Sound        string              `json:"sound,omitempty"`
}

// Animated reports whether the host has to run an animation.
func (p Plan) Animated() bool {
	return p.Type != game.TransitionNone && p.Type != ""
}

// Timer is the part of *time.Timer the controller needs.
type Timer interface {
	Stop() bool
}

// Controller runs one transition at a time.
type Controller struct {
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
	// AfterFunc schedules the timeout fallback; nil means time.AfterFunc.
	AfterFunc func(d time.Duration, f func()) Timer

	mu     sync.Mutex
	state  State
	target string
	gen    uint64
	done   func()
	timer  Timer
}

// New returns an idle controller with the given fallback timeout.
func New(timeout time.Duration) *Controller {
	return &Controller{Timeout: timeout}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a transition is preparing or animating.
func (c *Controller) Busy() bool {
	return c.State() != Idle
}

// Target returns the scene the in-flight transition leads to.
func (c *Controller) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Prepare reserves the controller for a transition to target.
func (c *Controller) Prepare(target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return ErrBusy
	}
	c.state = Preparing
	c.target = target
	return nil
}

// Cancel releases a controller that was prepared but never played.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Preparing {
		c.state = Idle
		c.target = ""
	}
}

// Reset drops any in-flight transition without running its completion.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	c.state = Idle
	c.target = ""
	c.done = nil
	c.timer = nil
}

// Play starts the prepared transition. For TransitionNone (or an
// unrecognised type) done runs before Play returns. Otherwise done runs
// exactly once: on AnimationEnded or when the timeout fires, whichever is
// first. done is never called with the controller's lock held.
func (c *Controller) Play(kind game.TransitionType, background string, done func()) (Plan, error) {
	c.mu.Lock()
	if c.state != Preparing {
		c.mu.Unlock()
		return Plan{}, ErrBusy
	}
	if background == "" {
		background = BlankImage
	}
	plan := Plan{Target: c.target, Type: kind, OverlayDelay: OverlayDelay}

	startClass, transClass, animated := classes(kind)
	if !animated {
		plan.Type = game.TransitionNone
		c.state = Idle
		c.target = ""
		c.mu.Unlock()
		if done != nil {
			done()
		}
		return plan, nil
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	plan.Background = background
	plan.StartClass = startClass
	plan.TransClass = transClass
	plan.Timeout = timeout

	c.gen++
	gen := c.gen
	c.state = Animating
	c.done = done
	after := c.AfterFunc
	if after == nil {
		after = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	c.timer = after(timeout, func() { c.finish(gen) })
	c.mu.Unlock()
	return plan, nil
}

// AnimationEnded is the host's end-of-animation signal. It is a no-op when
// nothing is animating, so duplicate events are harmless.
func (c *Controller) AnimationEnded() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	c.finish(gen)
}

func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	if c.state != Animating || c.gen != gen {
		c.mu.Unlock()
		return
	}
	done := c.done
	if c.timer != nil {
		c.timer.Stop()
	}
	c.state = Idle
	c.target = ""
	c.done = nil
	c.timer = nil
	c.mu.Unlock()
	if done != nil {
		done()
	}
}

func classes(kind game.TransitionType) (start, trans string, animated bool) {
	switch kind {
	case game.TransitionFade:
		return "", "", true
	case game.TransitionWipeDown:
		return "wipe-down-start", "is-wiping", true
	case game.TransitionWipeUp:
		return "wipe-up-start", "is-wiping", true
	case game.TransitionWipeLeft:
		return "wipe-left-start", "is-wiping", true
	case game.TransitionWipeRight:
		return "wipe-right-start", "is-wiping", true
	default:
		return "", "", false
	}
}
