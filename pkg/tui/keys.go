package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap определяет клавиатурные сокращения для TUI.
type KeyMap struct {
	Quit         key.Binding
	Cancel       key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
	ToggleHelp   key.Binding
	ToggleTools  key.Binding
	ConfirmInput key.Binding
	SaveToFile   key.Binding
}

// ShortHelp реализует help.KeyMap интерфейс.
func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.ConfirmInput, km.Cancel, km.ToggleHelp, km.Quit}
}

// FullHelp реализует help.KeyMap интерфейс.
func (km KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{km.ScrollUp, km.ScrollDown, km.ToggleHelp},
		{km.ConfirmInput, km.Cancel, km.ToggleTools, km.SaveToFile},
		{km.Quit},
	}
}

// DefaultKeyMap возвращает дефолтный KeyMap.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "quit"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "stop answer"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("Ctrl+U", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("Ctrl+D", "scroll down"),
		),
		ToggleHelp: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("Ctrl+H", "toggle help"),
		),
		ToggleTools: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("Ctrl+T", "show tool output"),
		),
		ConfirmInput: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		SaveToFile: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("Ctrl+S", "save transcript"),
		),
	}
}
