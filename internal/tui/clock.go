package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"go.uber.org/zap"

	"github.com/tinytelemetry/litclock/internal/engine"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/prefs"
	"github.com/tinytelemetry/litclock/internal/transition"
)

const maxCardWidth = 72

// Controls is the part of the engine the clock page drives. Every call
// may render, so the page only invokes them from commands, never from
// Update itself.
type Controls interface {
	Start(ctx context.Context) error
	Snapshot() engine.State
	SetTimezone(name string) error
	SetUse24Hour(use24 bool) error
	SetAnimation(enabled bool)
	SetTheme(theme string)
	Hide()
	Show() error
}

// stateMsg reports the engine state after a command finished.
type stateMsg struct {
	op    string
	state engine.State
	err   error
}

// ClockPage shows the digital time and the quote for the current minute.
type ClockPage struct {
	ctx      context.Context
	controls Controls
	keys     KeyMap
	help     help.Model
	logger   *zap.Logger

	prefs    prefs.Prefs
	digital  string
	quote    *model.QuoteRecord
	hasQuote bool
	cover    transition.State
	status   string

	tzInput   textinput.Model
	editingTZ bool
	tzErr     string
}

// NewClockPage creates the clock page. ctx bounds engine work started
// from the page.
func NewClockPage(ctx context.Context, controls Controls, logger *zap.Logger) *ClockPage {
	if logger == nil {
		logger = zap.NewNop()
	}
	ti := textinput.New()
	ti.Placeholder = "Europe/Paris"
	ti.Prompt = "timezone> "
	ti.CharLimit = 64

	return &ClockPage{
		ctx:      ctx,
		controls: controls,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		logger:   logger.Named("tui"),
		prefs:    controls.Snapshot().Prefs,
		tzInput:  ti,
	}
}

func (p *ClockPage) ID() string { return PageClock }

// Theme returns the active theme; other pages read it when rendering.
func (p *ClockPage) Theme() Theme { return ThemeByName(p.prefs.Theme) }

// Init starts the engine the first time the page is shown.
func (p *ClockPage) Init() tea.Cmd {
	if p.controls.Snapshot().Running {
		return nil
	}
	return p.run("start", func() error { return p.controls.Start(p.ctx) })
}

// run executes fn off the event loop and reports the resulting state.
func (p *ClockPage) run(op string, fn func() error) tea.Cmd {
	controls := p.controls
	return func() tea.Msg {
		err := fn()
		return stateMsg{op: op, state: controls.Snapshot(), err: err}
	}
}

func (p *ClockPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case TimeMsg:
		p.digital = msg.Digital
	case QuoteMsg:
		p.digital = msg.Digital
		p.quote = msg.Quote
		p.hasQuote = true
	case TransitionMsg:
		p.cover = msg.State
	case tea.FocusMsg:
		return p.run("show", p.controls.Show), nil
	case tea.BlurMsg:
		return p.run("hide", func() error { p.controls.Hide(); return nil }), nil
	case stateMsg:
		p.applyState(msg)
	case tea.KeyMsg:
		if p.editingTZ {
			return p.updateTimezoneInput(msg), nil
		}
		return p.handleKey(msg)
	}
	return nil, nil
}

func (p *ClockPage) applyState(msg stateMsg) {
	p.prefs = msg.state.Prefs
	if msg.err == nil {
		p.status = ""
		if msg.op == "timezone" {
			p.closeTimezoneInput()
		}
		return
	}
	if msg.op == "timezone" && errors.Is(msg.err, engine.ErrInvalidTimezone) {
		p.tzErr = fmt.Sprintf("unknown timezone %q", strings.TrimSpace(p.tzInput.Value()))
		return
	}
	if msg.op == "timezone" {
		p.closeTimezoneInput()
	}
	p.logger.Warn("clock update failed", zap.String("op", msg.op), zap.Error(msg.err))
	p.status = "quotes unavailable right now"
}

func (p *ClockPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.Quit):
		return nil, &PageNav{Quit: true}
	case key.Matches(msg, p.keys.Help):
		return nil, navTo(PageHelp)
	case key.Matches(msg, p.keys.Stats):
		return nil, navTo(PageStats)
	case key.Matches(msg, p.keys.Toggle24h):
		use24 := !p.prefs.Use24Hour
		return p.run("24h", func() error { return p.controls.SetUse24Hour(use24) }), nil
	case key.Matches(msg, p.keys.Animation):
		enabled := !p.prefs.Animation
		return p.run("animation", func() error { p.controls.SetAnimation(enabled); return nil }), nil
	case key.Matches(msg, p.keys.Theme):
		theme := NextTheme(p.prefs.Theme)
		p.prefs.Theme = theme
		return p.run("theme", func() error { p.controls.SetTheme(theme); return nil }), nil
	case key.Matches(msg, p.keys.Timezone):
		p.editingTZ = true
		p.tzErr = ""
		p.tzInput.SetValue(p.prefs.Timezone)
		p.tzInput.CursorEnd()
		return p.tzInput.Focus(), nil
	}
	return nil, nil
}

func (p *ClockPage) updateTimezoneInput(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, p.keys.Back):
		p.closeTimezoneInput()
		return nil
	case key.Matches(msg, p.keys.Confirm):
		name := strings.TrimSpace(p.tzInput.Value())
		return p.run("timezone", func() error { return p.controls.SetTimezone(name) })
	}
	p.tzErr = ""
	var cmd tea.Cmd
	p.tzInput, cmd = p.tzInput.Update(msg)
	return cmd
}

func (p *ClockPage) closeTimezoneInput() {
	p.editingTZ = false
	p.tzErr = ""
	p.tzInput.Blur()
	p.tzInput.SetValue("")
}

func (p *ClockPage) View(width, height int) string {
	theme := p.Theme()
	cardWidth := min(maxCardWidth, max(width-4, 20))

	sections := []string{p.renderHeader(theme, cardWidth), p.renderBody(theme, cardWidth)}
	if p.status != "" {
		sections = append(sections, theme.errorText().Render(p.status))
	}
	if p.editingTZ {
		sections = append(sections, p.tzInput.View())
		if p.tzErr != "" {
			sections = append(sections, theme.errorText().Render(p.tzErr))
		}
	}
	p.help.Width = width
	sections = append(sections, "", p.help.View(p.keys))

	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if width <= 0 || height <= 0 {
		return content
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content,
		lipgloss.WithWhitespaceBackground(theme.Background))
}

func (p *ClockPage) renderHeader(theme Theme, width int) string {
	digital := p.digital
	if digital == "" {
		digital = "--:--"
	}
	format := "12h"
	if p.prefs.Use24Hour {
		format = "24h"
	}
	anim := "off"
	if p.prefs.Animation {
		anim = "on"
	}
	meta := theme.muted().Render(fmt.Sprintf("%s · %s · animation %s", p.prefs.Timezone, format, anim))
	left := theme.accent().Render(digital)
	gap := width - lipgloss.Width(left) - lipgloss.Width(meta)
	if gap < 1 {
		return lipgloss.JoinVertical(lipgloss.Left, left, meta)
	}
	return left + strings.Repeat(" ", gap) + meta
}

func (p *ClockPage) renderBody(theme Theme, width int) string {
	card := theme.card(width)
	inner := width - 6

	switch p.cover {
	case transition.Covering, transition.Covered:
		return card.Background(theme.Cover).Render(strings.Repeat("\n", 3))
	}

	if !p.hasQuote {
		return card.Render(theme.muted().Render("Loading…"))
	}
	if p.quote == nil {
		return card.Render(lipgloss.JoinVertical(lipgloss.Center,
			theme.accent().Render(p.digital),
			theme.muted().Render("No quote available"),
		))
	}
	return card.Render(renderQuote(*p.quote, theme, inner))
}

// renderQuote lays out the excerpt with the time phrase highlighted,
// wrapped to width, followed by the attribution.
func renderQuote(q model.QuoteRecord, theme Theme, width int) string {
	body := theme.base().Render(q.QuoteFirst) +
		theme.accent().Render(q.QuoteTimeCase) +
		theme.base().Render(q.QuoteLast)
	wrapped := wordwrap.String(body, max(width, 10))

	attribution := "— " + q.Title
	if q.Author != "" {
		attribution += ", " + q.Author
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		wrapped,
		"",
		theme.muted().Italic(true).Render(wordwrap.String(attribution, max(width, 10))),
	)
}
