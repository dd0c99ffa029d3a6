// Package engine runs the clock: on every minute it reads the time in the
// configured zone, makes the hour's quotes resident, picks a quote and
// hands it to a Renderer, optionally behind a cover transition.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/clock"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/prefs"
	"github.com/tinytelemetry/litclock/internal/quote"
	"github.com/tinytelemetry/litclock/internal/transition"
)

// ErrInvalidTimezone is returned by SetTimezone for ids time.LoadLocation
// does not accept.
var ErrInvalidTimezone = errors.New("engine: invalid timezone")

// noMinute marks that nothing has been displayed since the last reset.
const noMinute = -1

// Renderer is the display surface. RenderTime is called on every
// evaluation; RenderQuote only when the displayed minute changes. A nil
// quote means no quote exists for the minute.
type Renderer interface {
	RenderTime(digital string)
	RenderQuote(q *model.QuoteRecord, digital string)
}

// PartitionStore makes hour partitions resident.
type PartitionStore interface {
	EnsureLoaded(ctx context.Context, hourKey string) error
	PrefetchAround(t model.TimeOfDay)
}

// Resolver picks the quote for a minute.
type Resolver interface {
	Resolve(t model.TimeOfDay, use24Hour bool) (model.QuoteRecord, bool)
}

// PrefsSaver persists preference changes.
type PrefsSaver interface {
	Save(p prefs.Prefs)
}

// Config wires an Engine. Clock, Transition and Logger are optional.
type Config struct {
	Clock      clock.Clock
	Store      PartitionStore
	Resolver   Resolver
	Transition *transition.Controller
	Renderer   Renderer
	Saver      PrefsSaver
	Prefs      prefs.Prefs
	Logger     *zap.Logger
}

// State is a point-in-time copy of the engine state.
type State struct {
	Prefs           prefs.Prefs
	Running         bool
	Visible         bool
	LastMinuteIndex int
	Transition      transition.State
}

// HasDisplayedMinute reports whether LastMinuteIndex is set.
func (s State) HasDisplayedMinute() bool { return s.LastMinuteIndex != noMinute }

type renderJob struct {
	quote   *model.QuoteRecord
	digital string
}

// Engine owns the clock state. It is safe for concurrent use; scheduler
// ticks and user actions may overlap.
type Engine struct {
	clock      clock.Clock
	scheduler  *clock.Scheduler
	store      PartitionStore
	resolver   Resolver
	transition *transition.Controller
	renderer   Renderer
	saver      PrefsSaver
	logger     *zap.Logger

	mu         sync.Mutex
	prefs      prefs.Prefs
	loc        *time.Location
	lastMinute int
	seq        uint64
	running    bool
	visible    bool
	pending    *renderJob
	ctx        context.Context
	cancel     context.CancelFunc
}

// New validates cfg and returns a stopped engine. An invalid timezone in
// cfg.Prefs is replaced by the host zone.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil || cfg.Resolver == nil || cfg.Renderer == nil {
		return nil, errors.New("engine: store, resolver and renderer are required")
	}
	c := cfg.Clock
	if c == nil {
		c = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tr := cfg.Transition
	if tr == nil {
		tr = transition.NewController(c, transition.DefaultDurations())
	}

	p := cfg.Prefs
	loc, err := loadLocation(p.Timezone)
	if err != nil {
		logger.Warn("configured timezone rejected, using system zone",
			zap.String("timezone", p.Timezone), zap.Error(err))
		p.Timezone = prefs.SystemTimezone()
		if loc, err = loadLocation(p.Timezone); err != nil {
			p.Timezone, loc = prefs.LocalZone, time.Local
		}
	}
	if p.Theme == "" {
		p.Theme = model.DefaultTheme
	}

	return &Engine{
		clock:      c,
		scheduler:  clock.NewScheduler(c),
		store:      cfg.Store,
		resolver:   cfg.Resolver,
		transition: tr,
		renderer:   cfg.Renderer,
		saver:      cfg.Saver,
		logger:     logger.Named("engine"),
		prefs:      p,
		loc:        loc,
		lastMinute: noMinute,
		visible:    true,
	}, nil
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// Transition returns the controller driving the cover animation.
func (e *Engine) Transition() *transition.Controller { return e.transition }

// Start arms the minute scheduler and evaluates the current minute.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.running = true
	visible := e.visible
	loc := e.loc
	e.mu.Unlock()

	if !visible {
		return nil
	}
	e.scheduler.Start(loc, e.tick)
	return e.UpdateClock(ctx)
}

// Stop cancels the scheduler, any running transition and in-flight
// evaluations.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.seq++
	e.pending = nil
	cancel := e.cancel
	e.mu.Unlock()

	e.scheduler.Stop()
	e.transition.Stop()
	if cancel != nil {
		cancel()
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := e.UpdateClock(ctx); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("scheduled update failed", zap.Error(err))
	}
}

// UpdateClock evaluates the current minute. The digital time is always
// rendered; the quote only when the minute differs from the one last
// displayed.
func (e *Engine) UpdateClock(ctx context.Context) error {
	e.mu.Lock()
	now := e.clock.Now().In(e.loc)
	tod := model.TimeOfDayFrom(now)
	use24 := e.prefs.Use24Hour
	animate := e.prefs.Animation
	digital := quote.FormatDigital(tod, use24)
	if tod.MinuteIndex() == e.lastMinute {
		e.mu.Unlock()
		e.renderer.RenderTime(digital)
		return nil
	}
	e.lastMinute = tod.MinuteIndex()
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	e.renderer.RenderTime(digital)

	if err := e.store.EnsureLoaded(ctx, tod.HourKey()); err != nil {
		e.mu.Lock()
		if e.seq == seq {
			e.lastMinute = noMinute
		}
		e.mu.Unlock()
		return fmt.Errorf("load hour %s: %w", tod.HourKey(), err)
	}
	e.store.PrefetchAround(tod)

	var job renderJob
	job.digital = digital
	if q, ok := e.resolver.Resolve(tod, use24); ok {
		display := quote.Display(q)
		job.quote = &display
	}

	e.mu.Lock()
	if e.seq != seq {
		e.mu.Unlock()
		e.logger.Debug("discarding stale evaluation", zap.String("minute", tod.MinuteKey()))
		return nil
	}
	if !animate {
		e.mu.Unlock()
		e.renderer.RenderQuote(job.quote, job.digital)
		return nil
	}
	e.pending = &job
	e.mu.Unlock()

	e.play()
	return nil
}

// play runs a cover cycle that renders the newest pending job while
// covered. A rejected Play is fine: the running cycle picks the job up
// when it covers, or replays once it completes.
func (e *Engine) play() {
	ok := e.transition.Play(e.renderPending, e.replayIfPending)
	if !ok {
		e.logger.Debug("transition busy, quote queued")
	}
}

func (e *Engine) renderPending() {
	e.mu.Lock()
	job := e.pending
	e.pending = nil
	e.mu.Unlock()
	if job != nil {
		e.renderer.RenderQuote(job.quote, job.digital)
	}
}

func (e *Engine) replayIfPending() {
	e.mu.Lock()
	again := e.pending != nil && e.visible
	e.mu.Unlock()
	if again {
		e.play()
	}
}

// SetTimezone validates and applies an IANA zone id, persists it, realigns
// the scheduler and re-evaluates. Invalid ids leave all state untouched.
func (e *Engine) SetTimezone(name string) error {
	name = strings.TrimSpace(name)
	loc, err := loadLocation(name)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.prefs.Timezone = name
	e.loc = loc
	e.lastMinute = noMinute
	p := e.prefs
	rearm := e.running && e.visible
	e.mu.Unlock()

	e.save(p)
	if rearm {
		e.scheduler.Restart(loc, e.tick)
	}
	return e.reevaluate(rearm)
}

// SetUse24Hour switches the display format and re-evaluates the current
// minute.
func (e *Engine) SetUse24Hour(use24 bool) error {
	e.mu.Lock()
	changed := e.prefs.Use24Hour != use24
	e.prefs.Use24Hour = use24
	if changed {
		e.lastMinute = noMinute
	}
	p := e.prefs
	active := e.running && e.visible
	e.mu.Unlock()

	e.save(p)
	if !changed {
		return nil
	}
	return e.reevaluate(active)
}

// SetAnimation enables or disables the cover transition. Disabling it
// cancels a running cycle and renders any queued quote directly.
func (e *Engine) SetAnimation(enabled bool) {
	e.mu.Lock()
	e.prefs.Animation = enabled
	p := e.prefs
	var job *renderJob
	if !enabled {
		job = e.pending
		e.pending = nil
	}
	e.mu.Unlock()

	e.save(p)
	if !enabled {
		e.transition.Stop()
		if job != nil {
			e.renderer.RenderQuote(job.quote, job.digital)
		}
	}
}

// SetTheme persists the theme name.
func (e *Engine) SetTheme(theme string) {
	e.mu.Lock()
	e.prefs.Theme = theme
	p := e.prefs
	e.mu.Unlock()
	e.save(p)
}

// Hide stops the scheduler and any transition. Nothing renders until Show.
func (e *Engine) Hide() {
	e.mu.Lock()
	if !e.visible {
		e.mu.Unlock()
		return
	}
	e.visible = false
	e.seq++
	e.pending = nil
	e.mu.Unlock()

	e.scheduler.Stop()
	e.transition.Stop()
}

// Show realigns the scheduler and re-evaluates immediately, bypassing the
// minute dedupe.
func (e *Engine) Show() error {
	e.mu.Lock()
	if e.visible {
		e.mu.Unlock()
		return nil
	}
	e.visible = true
	e.lastMinute = noMinute
	running := e.running
	loc := e.loc
	e.mu.Unlock()

	if !running {
		return nil
	}
	e.scheduler.Restart(loc, e.tick)
	return e.reevaluate(true)
}

func (e *Engine) reevaluate(active bool) error {
	if !active {
		return nil
	}
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	return e.UpdateClock(ctx)
}

func (e *Engine) save(p prefs.Prefs) {
	if e.saver != nil {
		e.saver.Save(p)
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Prefs:           e.prefs,
		Running:         e.running,
		Visible:         e.visible,
		LastMinuteIndex: e.lastMinute,
		Transition:      e.transition.State(),
	}
}

// Location returns the configured zone.
func (e *Engine) Location() *time.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loc
}
