package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/roasbeef/clinbox/internal/triage"
)

// KeyMap holds the bindings of the triage card.
type KeyMap struct {
	Archive key.Binding
	Delete  key.Binding
	Task    key.Binding
	Reply   key.Binding
	Open    key.Binding
	View    key.Binding
	Skip    key.Binding
	Quit    key.Binding

	// Up and Down scroll the full body.
	Up   key.Binding
	Down key.Binding

	Help key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Archive: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "archive"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Task: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "task"),
		),
		Reply: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reply"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open"),
		),
		View: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "full body"),
		),
		Skip: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "skip"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
	}
}

// commands pairs each command binding with its command, in display
// order.
func (k *KeyMap) commands() []struct {
	binding key.Binding
	command triage.Command
} {

	return []struct {
		binding key.Binding
		command triage.Command
	}{
		{k.Archive, triage.CommandArchive},
		{k.Delete, triage.CommandDelete},
		{k.Task, triage.CommandTask},
		{k.Reply, triage.CommandReply},
		{k.Open, triage.CommandOpen},
		{k.View, triage.CommandView},
		{k.Skip, triage.CommandSkip},
		{k.Quit, triage.CommandQuit},
	}
}

// ShortHelp implements help.KeyMap.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Archive, k.Delete, k.Task, k.Reply, k.Skip, k.Quit, k.Help,
	}
}

// FullHelp implements help.KeyMap.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Archive, k.Delete, k.Task, k.Reply},
		{k.Open, k.View, k.Skip, k.Quit},
		{k.Up, k.Down, k.Help},
	}
}
