// Package transition sequences the cover → swap → uncover animation so a
// content change is never visible half-applied.
package transition

import (
	"sync"
	"time"

	"github.com/tinytelemetry/litclock/internal/clock"
	"github.com/tinytelemetry/litclock/internal/model"
)

// State is the phase of a transition.
type State int

const (
	Idle State = iota
	Covering
	Covered
	Uncovering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Covering:
		return "covering"
	case Covered:
		return "covered"
	case Uncovering:
		return "uncovering"
	default:
		return "unknown"
	}
}

// Durations holds the fixed phase lengths.
type Durations struct {
	Cover   time.Duration // D1
	Pause   time.Duration // D2
	Uncover time.Duration // D3
}

// DefaultDurations returns the shared defaults.
func DefaultDurations() Durations {
	return Durations{
		Cover:   model.DefaultTransitionCover,
		Pause:   model.DefaultTransitionPause,
		Uncover: model.DefaultTransitionUncover,
	}
}

// Controller is the transition state machine. At most one timer is owned
// at any instant; Play is rejected unless the controller is Idle.
type Controller struct {
	clock     clock.Clock
	durations Durations

	mu         sync.Mutex
	state      State
	timer      clock.Timer
	gen        uint64
	onCovered  func()
	onComplete func()

	// OnStateChange, when set, is called after every state change
	// outside the controller lock.
	OnStateChange func(State)
}

// NewController creates an idle controller. A nil clock uses clock.Real().
func NewController(c clock.Clock, d Durations) *Controller {
	if c == nil {
		c = clock.Real()
	}
	return &Controller{clock: c, durations: d}
}

// State returns the current phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Play starts a cycle. onCovered runs once the cover is complete, and
// onComplete (optional) after the uncover. Play reports false, and does
// nothing, when a cycle is already running.
func (c *Controller) Play(onCovered, onComplete func()) bool {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return false
	}
	c.onCovered = onCovered
	c.onComplete = onComplete
	c.gen++
	gen := c.gen
	c.state = Covering
	c.timer = c.clock.AfterFunc(c.durations.Cover, func() { c.covered(gen) })
	c.mu.Unlock()

	c.notify(Covering)
	return true
}

func (c *Controller) covered(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != Covering {
		c.mu.Unlock()
		return
	}
	c.state = Covered
	onCovered := c.onCovered
	c.onCovered = nil
	c.timer = c.clock.AfterFunc(c.durations.Pause, func() { c.uncover(gen) })
	c.mu.Unlock()

	c.notify(Covered)
	if onCovered != nil {
		onCovered()
	}
}

func (c *Controller) uncover(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != Covered {
		c.mu.Unlock()
		return
	}
	c.state = Uncovering
	c.timer = c.clock.AfterFunc(c.durations.Uncover, func() { c.finish(gen) })
	c.mu.Unlock()

	c.notify(Uncovering)
}

func (c *Controller) finish(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state != Uncovering {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	c.timer = nil
	onComplete := c.onComplete
	c.onComplete = nil
	c.mu.Unlock()

	c.notify(Idle)
	if onComplete != nil {
		onComplete()
	}
}

// Stop abandons a running cycle without invoking its callbacks.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.state = Idle
	c.onCovered = nil
	c.onComplete = nil
	c.mu.Unlock()

	c.notify(Idle)
}

func (c *Controller) notify(s State) {
	if c.OnStateChange != nil {
		c.OnStateChange(s)
	}
}
