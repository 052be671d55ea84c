package tui

import "github.com/charmbracelet/lipgloss"

// ColorScheme определяет цвета элементов TUI.
// Каждое поле: lipgloss.Color (hex, ANSI или named color).
type ColorScheme struct {
	StatusBackground lipgloss.Color
	StatusForeground lipgloss.Color

	SystemMessage lipgloss.Color
	UserMessage   lipgloss.Color
	AIMessage     lipgloss.Color
	ErrorMessage  lipgloss.Color
	ToolCall      lipgloss.Color
	ToolResult    lipgloss.Color
	Thinking      lipgloss.Color

	Border lipgloss.Color
}

// ColorSchemes: предустановленные цветовые схемы.
var ColorSchemes = map[string]ColorScheme{
	"default": {
		StatusBackground: lipgloss.Color("235"),
		StatusForeground: lipgloss.Color("252"),
		SystemMessage:    lipgloss.Color("242"),
		UserMessage:      lipgloss.Color("226"),
		AIMessage:        lipgloss.Color("86"),
		ErrorMessage:     lipgloss.Color("196"),
		ToolCall:         lipgloss.Color("228"),
		ToolResult:       lipgloss.Color("154"),
		Thinking:         lipgloss.Color("99"),
		Border:           lipgloss.Color("240"),
	},
	"light": {
		StatusBackground: lipgloss.Color("255"),
		StatusForeground: lipgloss.Color("0"),
		SystemMessage:    lipgloss.Color("8"),
		UserMessage:      lipgloss.Color("130"),
		AIMessage:        lipgloss.Color("31"),
		ErrorMessage:     lipgloss.Color("1"),
		ToolCall:         lipgloss.Color("94"),
		ToolResult:       lipgloss.Color("28"),
		Thinking:         lipgloss.Color("90"),
		Border:           lipgloss.Color("8"),
	},
	"dracula": {
		StatusBackground: lipgloss.Color("#282a36"),
		StatusForeground: lipgloss.Color("#f8f8f2"),
		SystemMessage:    lipgloss.Color("#6272a4"),
		UserMessage:      lipgloss.Color("#f1fa8c"),
		AIMessage:        lipgloss.Color("#8be9fd"),
		ErrorMessage:     lipgloss.Color("#ff5555"),
		ToolCall:         lipgloss.Color("#ffb86c"),
		ToolResult:       lipgloss.Color("#50fa7b"),
		Thinking:         lipgloss.Color("#bd93f9"),
		Border:           lipgloss.Color("#44475a"),
	},
}

// GetColorScheme возвращает цветовую схему по имени, по умолчанию "default".
func GetColorScheme(name string) ColorScheme {
	if scheme, ok := ColorSchemes[name]; ok {
		return scheme
	}
	return ColorSchemes["default"]
}

// styles: стили, собранные из ColorScheme.
type styles struct {
	system     lipgloss.Style
	user       lipgloss.Style
	ai         lipgloss.Style
	err        lipgloss.Style
	toolCall   lipgloss.Style
	toolResult lipgloss.Style
	thinking   lipgloss.Style
	status     lipgloss.Style
	divider    lipgloss.Style
}

func newStyles(c ColorScheme) styles {
	return styles{
		system:     lipgloss.NewStyle().Foreground(c.SystemMessage),
		user:       lipgloss.NewStyle().Foreground(c.UserMessage).Bold(true),
		ai:         lipgloss.NewStyle().Foreground(c.AIMessage),
		err:        lipgloss.NewStyle().Foreground(c.ErrorMessage).Bold(true),
		toolCall:   lipgloss.NewStyle().Foreground(c.ToolCall),
		toolResult: lipgloss.NewStyle().Foreground(c.ToolResult),
		thinking:   lipgloss.NewStyle().Foreground(c.Thinking).Bold(true),
		status:     lipgloss.NewStyle().Foreground(c.StatusForeground).Background(c.StatusBackground).Bold(true),
		divider:    lipgloss.NewStyle().Foreground(c.Border),
	}
}

func (s styles) forKind(k entryKind) lipgloss.Style {
	switch k {
	case entryUser:
		return s.user
	case entryAI:
		return s.ai
	case entryError:
		return s.err
	case entryToolCall:
		return s.toolCall
	case entryToolResult:
		return s.toolResult
	default:
		return s.system
	}
}
