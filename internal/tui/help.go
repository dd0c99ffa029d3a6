package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/litclock/internal/model"
)

const helpMarkdown = `# Literary clock

Every minute the clock shows a passage from a book that mentions the
current time. Minutes without a passage show the digital time alone.

## Keys

| Key | Action |
|-----|--------|
| t | switch between 12 and 24 hour time |
| a | turn the page-turn animation on or off |
| z | change timezone (IANA id such as ` + "`Asia/Tokyo`" + `) |
| T | cycle colour theme |
| s | dataset coverage |
| ? | this help |
| esc | back |
| q | quit |

## Notes

Passages written as "quarter past three" or "three in the afternoon" suit
either format and appear in both. Passages that spell out a 24 hour time
only appear when 24 hour time is on, unless no other passage exists for
the minute.

Settings are saved to ` + "`~/.config/litclock/prefs.yml`" + `.
`

// HelpPage renders the help text with glamour inside a scrolling viewport.
type HelpPage struct {
	theme func() Theme
	keys  KeyMap
	vp    viewport.Model

	renderedWidth int
	renderedTheme string
}

// NewHelpPage creates the help page. theme may be nil.
func NewHelpPage(theme func() Theme) *HelpPage {
	if theme == nil {
		theme = func() Theme { return ThemeByName(model.DefaultTheme) }
	}
	return &HelpPage{theme: theme, keys: DefaultKeyMap(), vp: viewport.New(0, 0)}
}

func (p *HelpPage) ID() string { return PageHelp }

func (p *HelpPage) Init() tea.Cmd {
	p.vp.GotoTop()
	return nil
}

func (p *HelpPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, p.keys.Back), key.Matches(msg, p.keys.Help):
			return nil, navTo(PageClock)
		case key.Matches(msg, p.keys.Quit):
			return nil, &PageNav{Quit: true}
		}
		var cmd tea.Cmd
		p.vp, cmd = p.vp.Update(msg)
		return cmd, nil
	}
	return nil, nil
}

// renderHelp renders the markdown for a theme and width. glamour's
// standard styles are used so rendering never queries the terminal.
func renderHelp(themeName string, width int) string {
	style := "dark"
	if themeName == "light" {
		style = "light"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return helpMarkdown
	}
	out, err := r.Render(helpMarkdown)
	if err != nil {
		return helpMarkdown
	}
	return out
}

func (p *HelpPage) View(width, height int) string {
	theme := p.theme()
	contentWidth := min(max(width-4, 40), 80)
	contentHeight := max(height-3, 10)

	if contentWidth != p.renderedWidth || theme.Name != p.renderedTheme {
		p.vp.SetContent(renderHelp(theme.Name, contentWidth-2))
		p.renderedWidth = contentWidth
		p.renderedTheme = theme.Name
	}
	p.vp.Width = contentWidth
	p.vp.Height = contentHeight

	status := theme.muted().Render("↑/↓: scroll • esc: back • q: quit")
	content := lipgloss.JoinVertical(lipgloss.Left, p.vp.View(), status)
	if width <= 0 || height <= 0 {
		return content
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content,
		lipgloss.WithWhitespaceBackground(theme.Background))
}
