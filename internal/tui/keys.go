package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all clock key bindings with built-in help text.
type KeyMap struct {
	// Global
	Quit      key.Binding
	ForceQuit key.Binding
	Help      key.Binding
	Back      key.Binding

	// Settings
	Toggle24h key.Binding
	Animation key.Binding
	Timezone  key.Binding
	Theme     key.Binding

	// Pages
	Stats   key.Binding
	Refresh key.Binding
	Confirm key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),

		Toggle24h: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "12/24h"),
		),
		Animation: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "animation"),
		),
		Timezone: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", "timezone"),
		),
		Theme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "theme"),
		),

		Stats: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stats"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply"),
		),
	}
}

// ShortHelp implements help.KeyMap for the clock page footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle24h, k.Animation, k.Timezone, k.Theme, k.Stats, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle24h, k.Animation, k.Timezone, k.Theme},
		{k.Stats, k.Help, k.Back, k.Quit},
	}
}
