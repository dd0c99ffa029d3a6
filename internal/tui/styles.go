package tui

import "github.com/charmbracelet/lipgloss"

// Theme is a named palette.
type Theme struct {
	Name       string
	Background lipgloss.Color
	Foreground lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Cover      lipgloss.Color
	Error      lipgloss.Color
}

var themes = []Theme{
	{
		Name:       "dark",
		Background: lipgloss.Color("#16161D"),
		Foreground: lipgloss.Color("#E6E1CF"),
		Accent:     lipgloss.Color("#E6B450"),
		Muted:      lipgloss.Color("#6C7380"),
		Cover:      lipgloss.Color("#2D2D3A"),
		Error:      lipgloss.Color("#F07178"),
	},
	{
		Name:       "light",
		Background: lipgloss.Color("#FAF8F5"),
		Foreground: lipgloss.Color("#2E2A24"),
		Accent:     lipgloss.Color("#A0522D"),
		Muted:      lipgloss.Color("#8A8578"),
		Cover:      lipgloss.Color("#E4DFD5"),
		Error:      lipgloss.Color("#C0392B"),
	},
}

// ThemeByName returns the named theme, or the first one.
func ThemeByName(name string) Theme {
	for _, t := range themes {
		if t.Name == name {
			return t
		}
	}
	return themes[0]
}

// NextTheme returns the name of the theme after name.
func NextTheme(name string) string {
	for i, t := range themes {
		if t.Name == name {
			return themes[(i+1)%len(themes)].Name
		}
	}
	return themes[0].Name
}

func (t Theme) base() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Foreground)
}

func (t Theme) muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Muted)
}

func (t Theme) accent() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true)
}

func (t Theme) title() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Accent).Bold(true).MarginBottom(1)
}

func (t Theme) errorText() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error)
}

func (t Theme) card(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted)
}
