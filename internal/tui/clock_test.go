package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/litclock/internal/engine"
	"github.com/tinytelemetry/litclock/internal/model"
	"github.com/tinytelemetry/litclock/internal/prefs"
	"github.com/tinytelemetry/litclock/internal/transition"
)

type fakeControls struct {
	mu      sync.Mutex
	state   engine.State
	calls   []string
	started bool
}

func newFakeControls() *fakeControls {
	return &fakeControls{state: engine.State{
		Prefs:   prefs.Prefs{Timezone: "UTC", Animation: true, Theme: "dark"},
		Visible: true,
	}}
}

func (f *fakeControls) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeControls) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeControls) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("start")
	f.state.Running = true
	return nil
}

func (f *fakeControls) Snapshot() engine.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeControls) SetTimezone(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("timezone:" + name)
	if name != "Asia/Tokyo" && name != "UTC" {
		return engine.ErrInvalidTimezone
	}
	f.state.Prefs.Timezone = name
	return nil
}

func (f *fakeControls) SetUse24Hour(use24 bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if use24 {
		f.record("24h:on")
	} else {
		f.record("24h:off")
	}
	f.state.Prefs.Use24Hour = use24
	return nil
}

func (f *fakeControls) SetAnimation(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("animation")
	f.state.Prefs.Animation = enabled
}

func (f *fakeControls) SetTheme(theme string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("theme:" + theme)
	f.state.Prefs.Theme = theme
}

func (f *fakeControls) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("hide")
	f.state.Visible = false
}

func (f *fakeControls) Show() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("show")
	f.state.Visible = true
	return nil
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// exec runs cmd and feeds its message back into the page.
func exec(t *testing.T, p *ClockPage, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	p.Update(cmd())
}

func sampleQuote() *model.QuoteRecord {
	return &model.QuoteRecord{
		QuoteFirst:    "The clock struck ",
		QuoteTimeCase: "a quarter past ten",
		QuoteLast:     " and nobody moved.",
		Author:        "Jane Doe",
		Title:         "The Long Room",
	}
}

func TestClockPage_InitStartsEngineOnce(t *testing.T) {
	t.Parallel()

	fc := newFakeControls()
	p := NewClockPage(context.Background(), fc, nil)

	exec(t, p, p.Init())
	if cmd := p.Init(); cmd != nil {
		t.Fatal("second Init should not restart the engine")
	}
	if got := fc.Calls(); len(got) != 1 || got[0] != "start" {
		t.Fatalf("calls = %v, want [start]", got)
	}
}

func TestClockPage_RendersQuote(t *testing.T) {
	t.Parallel()

	p := NewClockPage(context.Background(), newFakeControls(), nil)
	if view := p.View(100, 30); !strings.Contains(view, "Loading") {
		t.Fatalf("view before first quote should show loading:\n%s", view)
	}

	p.Update(QuoteMsg{Quote: sampleQuote(), Digital: "10:15 AM"})
	view := p.View(100, 30)
	for _, want := range []string{"10:15 AM", "a quarter past ten", "The Long Room, Jane Doe"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}
}

func TestClockPage_NoQuoteShowsDigitalTime(t *testing.T) {
	t.Parallel()

	p := NewClockPage(context.Background(), newFakeControls(), nil)
	p.Update(QuoteMsg{Quote: nil, Digital: "03:07 AM"})

	view := p.View(100, 30)
	if !strings.Contains(view, "No quote available") || !strings.Contains(view, "03:07 AM") {
		t.Fatalf("view = \n%s", view)
	}
}

func TestClockPage_TimeMsgKeepsQuote(t *testing.T) {
	t.Parallel()

	p := NewClockPage(context.Background(), newFakeControls(), nil)
	p.Update(QuoteMsg{Quote: sampleQuote(), Digital: "10:15 AM"})
	p.Update(TimeMsg{Digital: "10:16 AM"})

	view := p.View(100, 30)
	if !strings.Contains(view, "10:16 AM") || !strings.Contains(view, "quarter past ten") {
		t.Fatalf("view = \n%s", view)
	}
}

func TestClockPage_CoverHidesQuote(t *testing.T) {
	t.Parallel()

	p := NewClockPage(context.Background(), newFakeControls(), nil)
	p.Update(QuoteMsg{Quote: sampleQuote(), Digital: "10:15 AM"})

	for _, s := range []transition.State{transition.Covering, transition.Covered} {
		p.Update(TransitionMsg{State: s})
		if strings.Contains(p.View(100, 30), "quarter past ten") {
			t.Fatalf("quote visible while %s", s)
		}
	}
	p.Update(TransitionMsg{State: transition.Uncovering})
	if !strings.Contains(p.View(100, 30), "quarter past ten") {
		t.Fatal("quote hidden while uncovering")
	}
}

func TestClockPage_SettingsKeys(t *testing.T) {
	t.Parallel()

	fc := newFakeControls()
	p := NewClockPage(context.Background(), fc, nil)

	cmd, _ := p.Update(runeKey("t"))
	exec(t, p, cmd)
	if !p.prefs.Use24Hour {
		t.Fatal("t should enable 24 hour time")
	}

	cmd, _ = p.Update(runeKey("a"))
	exec(t, p, cmd)
	if p.prefs.Animation {
		t.Fatal("a should disable animation")
	}

	cmd, _ = p.Update(runeKey("T"))
	if p.Theme().Name != "light" {
		t.Fatalf("theme = %q, want light immediately", p.Theme().Name)
	}
	exec(t, p, cmd)

	want := []string{"24h:on", "animation", "theme:light"}
	got := fc.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestClockPage_TimezoneInput(t *testing.T) {
	t.Parallel()

	fc := newFakeControls()
	p := NewClockPage(context.Background(), fc, nil)

	p.Update(runeKey("z"))
	if !p.editingTZ {
		t.Fatal("z should open the timezone input")
	}
	p.tzInput.SetValue("")
	p.Update(runeKey("Mars/Base"))

	// Keys typed into the input must not toggle settings.
	p.Update(runeKey("t"))
	if p.prefs.Use24Hour {
		t.Fatal("typing t toggled 24 hour time")
	}
	p.tzInput.SetValue("Mars/Base")

	cmd, _ := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	exec(t, p, cmd)
	if !p.editingTZ {
		t.Fatal("input should stay open after a rejected zone")
	}
	if view := p.View(100, 30); !strings.Contains(view, `unknown timezone "Mars/Base"`) {
		t.Fatalf("view missing inline error:\n%s", view)
	}
	if p.prefs.Timezone != "UTC" {
		t.Fatalf("timezone = %q, want unchanged", p.prefs.Timezone)
	}

	p.tzInput.SetValue("Asia/Tokyo")
	cmd, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	exec(t, p, cmd)
	if p.editingTZ {
		t.Fatal("input should close after a valid zone")
	}
	if p.prefs.Timezone != "Asia/Tokyo" {
		t.Fatalf("timezone = %q, want Asia/Tokyo", p.prefs.Timezone)
	}
}

func TestClockPage_TimezoneInputEscape(t *testing.T) {
	t.Parallel()

	fc := newFakeControls()
	p := NewClockPage(context.Background(), fc, nil)
	p.Update(runeKey("z"))
	cmd, _ := p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd != nil || p.editingTZ {
		t.Fatal("esc should close the input without a command")
	}
	if len(fc.Calls()) != 0 {
		t.Fatalf("calls = %v, want none", fc.Calls())
	}
}

func TestClockPage_FocusBlur(t *testing.T) {
	t.Parallel()

	fc := newFakeControls()
	p := NewClockPage(context.Background(), fc, nil)

	cmd, _ := p.Update(tea.BlurMsg{})
	exec(t, p, cmd)
	cmd, _ = p.Update(tea.FocusMsg{})
	exec(t, p, cmd)

	got := fc.Calls()
	if len(got) != 2 || got[0] != "hide" || got[1] != "show" {
		t.Fatalf("calls = %v, want [hide show]", got)
	}
}

func TestClockPage_Navigation(t *testing.T) {
	t.Parallel()

	p := NewClockPage(context.Background(), newFakeControls(), nil)
	cases := map[string]*PageNav{
		"s": {PageID: PageStats},
		"?": {PageID: PageHelp},
		"q": {Quit: true},
	}
	for k, want := range cases {
		_, nav := p.Update(runeKey(k))
		if nav == nil || *nav != *want {
			t.Fatalf("key %q nav = %+v, want %+v", k, nav, want)
		}
	}
}

func TestRenderQuote_Wraps(t *testing.T) {
	t.Parallel()

	q := *sampleQuote()
	q.QuoteLast = strings.Repeat(" and nobody moved", 6) + "."
	out := renderQuote(q, ThemeByName("dark"), 30)
	for _, line := range strings.Split(out, "\n") {
		if w := len([]rune(stripANSI(line))); w > 30 {
			t.Fatalf("line %q is %d wide, want <= 30", line, w)
		}
	}
}
