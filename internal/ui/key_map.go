package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	toggle   key.Binding
	next     key.Binding
	previous key.Binding
	start    key.Binding
	like     key.Binding
	connect  key.Binding
	notes    key.Binding
	add      key.Binding
	react    key.Binding
	submit   key.Binding
	back     key.Binding
	help     key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:   key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next")),
		previous: key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous")),
		start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start listening")),
		like:     key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "like")),
		connect:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect spotify")),
		notes:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "notes")),
		add:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add note")),
		react:    key.NewBinding(key.WithKeys("1", "2", "3", "4", "5"), key.WithHelp("1-5", "react")),
		submit:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		back:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.notes, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.next, k.previous, k.start, k.like},
		{k.notes, k.add, k.react, k.back},
		{k.connect, k.help, k.quit},
	}
}
