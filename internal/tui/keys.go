package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left     key.Binding
	Right    key.Binding
	Up       key.Binding
	Down     key.Binding
	Grab     key.Binding
	Cancel   key.Binding
	Pipeline key.Binding
	Quit     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column")),
		Right:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "card")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "card")),
		Grab:     key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "pick up / drop")),
		Cancel:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Pipeline: key.NewBinding(key.WithKeys("p", "tab"), key.WithHelp("p", "pipeline")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Up, k.Grab, k.Cancel, k.Pipeline, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Up, k.Down},
		{k.Grab, k.Cancel, k.Pipeline, k.Quit},
	}
}
