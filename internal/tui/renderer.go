package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/transition"
)

// TimeMsg carries the digital time rendered on every evaluation.
type TimeMsg struct {
	Digital string
}

// QuoteMsg carries a new quote. A nil Quote means the minute has none.
type QuoteMsg struct {
	Quote   *model.QuoteRecord
	Digital string
}

// TransitionMsg reports a cover animation phase change.
type TransitionMsg struct {
	State transition.State
}

// Sender delivers messages into a running program. *tea.Program
// satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramRenderer turns engine callbacks into tea messages. It is created
// before the program exists; messages sent before Attach are dropped.
type ProgramRenderer struct {
	mu     sync.RWMutex
	sender Sender
}

// NewProgramRenderer returns an unattached renderer.
func NewProgramRenderer() *ProgramRenderer {
	return &ProgramRenderer{}
}

// Attach sets the destination program.
func (r *ProgramRenderer) Attach(s Sender) {
	r.mu.Lock()
	r.sender = s
	r.mu.Unlock()
}

func (r *ProgramRenderer) send(msg tea.Msg) {
	r.mu.RLock()
	s := r.sender
	r.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

// RenderTime implements engine.Renderer.
func (r *ProgramRenderer) RenderTime(digital string) {
	r.send(TimeMsg{Digital: digital})
}

// RenderQuote implements engine.Renderer. The record is copied so the
// engine may reuse its value.
func (r *ProgramRenderer) RenderQuote(q *model.QuoteRecord, digital string) {
	var cp *model.QuoteRecord
	if q != nil {
		v := *q
		cp = &v
	}
	r.send(QuoteMsg{Quote: cp, Digital: digital})
}

// TransitionChanged is meant for transition.Controller.OnStateChange.
func (r *ProgramRenderer) TransitionChanged(s transition.State) {
	r.send(TransitionMsg{State: s})
}
