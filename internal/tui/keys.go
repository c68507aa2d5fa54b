package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Run     key.Binding
	Cancel  key.Binding
	Focus   key.Binding
	History key.Binding
	Quit    key.Binding

	// history view
	Up     key.Binding
	Down   key.Binding
	Delete key.Binding
	Back   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Run:     key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "run")),
		Cancel:  key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "cancel")),
		Focus:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "editor/path")),
		History: key.NewBinding(key.WithKeys("ctrl+h"), key.WithHelp("ctrl+h", "history")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),

		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Delete: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Back:   key.NewBinding(key.WithKeys("esc", "q", "ctrl+h"), key.WithHelp("esc", "back")),
	}
}

// ShortHelp is the editor view's help line.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Cancel, k.Focus, k.History, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		k.ShortHelp(),
		{k.Up, k.Down, k.Delete, k.Back},
	}
}

// historyHelp is the help.KeyMap of the history view.
type historyHelp struct{ keyMap }

func (h historyHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.Up, h.Down, h.Delete, h.Back, h.Quit}
}
