package tui

import (
	"context"
	"fmt"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/litclock/internal/model"
)

// StatsFunc adapts a function to model.StatsReader.
type StatsFunc func(ctx context.Context) (model.DatasetStats, error)

func (f StatsFunc) Stats(ctx context.Context) (model.DatasetStats, error) { return f(ctx) }

type statsLoadedMsg struct {
	stats model.DatasetStats
	err   error
}

// StatsPage charts quotes per hour and minute coverage.
type StatsPage struct {
	ctx     context.Context
	source  model.StatsReader
	theme   func() Theme
	keys    KeyMap
	spinner spinner.Model

	loading bool
	loaded  bool
	stats   model.DatasetStats
	err     error
}

// NewStatsPage creates the stats page. theme may be nil.
func NewStatsPage(ctx context.Context, source model.StatsReader, theme func() Theme) *StatsPage {
	if theme == nil {
		theme = func() Theme { return ThemeByName(model.DefaultTheme) }
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &StatsPage{
		ctx:     ctx,
		source:  source,
		theme:   theme,
		keys:    DefaultKeyMap(),
		spinner: sp,
	}
}

func (p *StatsPage) ID() string { return PageStats }

// Init reloads the stats every time the page is opened.
func (p *StatsPage) Init() tea.Cmd {
	p.loading = true
	return tea.Batch(p.spinner.Tick, p.load())
}

func (p *StatsPage) load() tea.Cmd {
	ctx, source := p.ctx, p.source
	return func() tea.Msg {
		st, err := source.Stats(ctx)
		return statsLoadedMsg{stats: st, err: err}
	}
}

func (p *StatsPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case statsLoadedMsg:
		p.loading = false
		p.loaded = true
		p.stats = msg.stats
		p.err = msg.err
	case spinner.TickMsg:
		if !p.loading {
			return nil, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd, nil
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Back), key.Matches(msg, p.keys.Stats):
			return nil, navTo(PageClock)
		case key.Matches(msg, p.keys.Quit):
			return nil, &PageNav{Quit: true}
		case key.Matches(msg, p.keys.Refresh):
			if !p.loading {
				return p.Init(), nil
			}
		}
	}
	return nil, nil
}

func (p *StatsPage) View(width, height int) string {
	theme := p.theme()
	title := theme.title().Render("Dataset coverage")
	footer := theme.muted().Render("r: reload • esc: back • q: quit")

	var body string
	switch {
	case p.loading:
		body = theme.muted().Italic(true).Render(p.spinner.View() + " Loading...")
	case p.err != nil:
		body = theme.errorText().Render("stats unavailable: " + p.err.Error())
	case p.loaded:
		body = lipgloss.JoinVertical(lipgloss.Left,
			theme.base().Render(coverageLine(p.stats)),
			"",
			renderHourChart(p.stats, theme, min(max(width-4, 24), 96)),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body, "", footer)
	if width <= 0 || height <= 0 {
		return content
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content,
		lipgloss.WithWhitespaceBackground(theme.Background))
}

func coverageLine(st model.DatasetStats) string {
	pct := 100 * float64(st.MinutesCovered) / float64(model.MinutesPerDay)
	return fmt.Sprintf("%d quotes · %d/%d minutes covered (%.1f%%)",
		st.Total, st.MinutesCovered, model.MinutesPerDay, pct)
}

// renderHourChart draws one bar per hour. Labels need two columns per
// bar; narrower charts drop them.
func renderHourChart(st model.DatasetStats, theme Theme, width int) string {
	barWidth, gap := 2, 1
	labels := true
	if width < model.HoursPerDay*(barWidth+gap) {
		barWidth, gap = 1, 0
		labels = false
	}
	chartWidth := model.HoursPerDay * (barWidth + gap)

	opts := []barchart.Option{
		barchart.WithBarGap(gap),
		barchart.WithBarWidth(barWidth),
	}
	if !labels {
		opts = append(opts, barchart.WithNoAxis())
	}
	bc := barchart.New(chartWidth, 10, opts...)

	style := lipgloss.NewStyle().Foreground(theme.Accent).Background(theme.Accent)
	for h := 0; h < model.HoursPerDay; h++ {
		hk := model.HourKey(h)
		bc.Push(barchart.BarData{
			Label: hk,
			Values: []barchart.BarValue{
				{Name: hk, Value: float64(st.ByHour[h]), Style: style},
			},
		})
	}
	bc.Draw()
	return bc.View()
}
