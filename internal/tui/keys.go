package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	NextPane key.Binding
	Send     key.Binding
	Up       key.Binding
	Down     key.Binding
	Status   key.Binding
	Category key.Binding
	Search   key.Binding
	Resolve  key.Binding
	Refresh  key.Binding
	Escape   key.Binding
}

var keys = keyMap{
	Quit:     key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	NextPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch pane")),
	Send:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Status:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
	Category: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "category")),
	Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Resolve:  key.NewBinding(key.WithKeys("x", "enter"), key.WithHelp("x", "resolve")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Escape:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "done")),
}

func (k keyMap) chatHelp() []key.Binding {
	return []key.Binding{k.Send, k.NextPane, k.Quit}
}

func (k keyMap) boardHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Status, k.Category, k.Search, k.Resolve, k.Refresh, k.NextPane, k.Quit}
}
