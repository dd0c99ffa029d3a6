package clock

import (
	"sync"
	"time"
)

// TickPeriod is the nominal interval between ticks once aligned.
const TickPeriod = time.Minute

// Scheduler fires a callback on every minute boundary of a timezone.
//
// Every tick arms a one-shot timer for the next boundary as read from the
// clock at that moment, so a late timer never pushes later ticks off the
// minute.
type Scheduler struct {
	clock Clock

	mu      sync.Mutex
	timer   Timer
	loc     *time.Location
	gen     uint64
	running bool
}

// NewScheduler creates a stopped scheduler. A nil clock uses Real().
func NewScheduler(c Clock) *Scheduler {
	if c == nil {
		c = Real()
	}
	return &Scheduler{clock: c}
}

// DelayToNextMinute returns the time from now until the next minute
// rollover as observed in loc. Zones with sub-minute offsets are honoured
// because the wall clock is read in loc.
func DelayToNextMinute(now time.Time, loc *time.Location) time.Duration {
	if loc != nil {
		now = now.In(loc)
	}
	into := time.Duration(now.Second())*time.Second + time.Duration(now.Nanosecond())
	return TickPeriod - into
}

// Start schedules onTick on each minute boundary in loc. A running
// scheduler is stopped first.
func (s *Scheduler) Start(loc *time.Location, onTick func()) {
	if onTick == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.gen++
	s.running = true
	s.loc = loc
	gen := s.gen

	delay := DelayToNextMinute(s.clock.Now(), loc)
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen, onTick) })
}

// fire runs one tick and arms the timer for the following boundary,
// unless the generation that armed it has been stopped in the meantime.
func (s *Scheduler) fire(gen uint64, onTick func()) {
	s.mu.Lock()
	if !s.running || s.gen != gen {
		s.mu.Unlock()
		return
	}
	delay := DelayToNextMinute(s.clock.Now(), s.loc)
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen, onTick) })
	s.mu.Unlock()

	onTick()
}

// Stop cancels the alignment and repeat timers. It is safe to call on a
// stopped scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.running = false
	s.gen++
}

// Restart is Stop followed by Start. Used on timezone change and when the
// host becomes visible again.
func (s *Scheduler) Restart(loc *time.Location, onTick func()) {
	s.Start(loc, onTick)
}

// Running reports whether a tick is scheduled.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
