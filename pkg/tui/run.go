package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/tripmate/pkg/agent"
	"github.com/ilkoid/tripmate/pkg/events"
)

// Run запускает TUI и блокируется до выхода пользователя.
//
//	emitter := events.NewChanEmitter(64)
//	client, _ := agent.New(ctx, agent.Config{Emitter: emitter})
//	defer emitter.Close()
//	err := tui.Run(ctx, client, emitter.Subscribe(), tui.WithTitle("TripMate"))
func Run(ctx context.Context, runner agent.Runner, sub events.Subscriber, opts ...Option) error {
	if runner == nil {
		return fmt.Errorf("runner is nil")
	}

	model := NewModel(ctx, runner, sub, opts...)
	defer model.stop()

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// Option: функция для кастомизации TUI.
type Option func(*Model)

// WithTitle устанавливает заголовок.
func WithTitle(title string) Option {
	return func(m *Model) {
		if title != "" {
			m.title = title
		}
	}
}

// WithPlaceholder устанавливает подсказку в поле ввода.
func WithPlaceholder(text string) Option {
	return func(m *Model) {
		if text != "" {
			m.textarea.Placeholder = text
		}
	}
}

// WithTimeout устанавливает таймаут одного хода (по умолчанию 5 минут).
func WithTimeout(timeout time.Duration) Option {
	return func(m *Model) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithColorScheme выбирает цветовую схему из ColorSchemes.
func WithColorScheme(name string) Option {
	return func(m *Model) {
		m.styles = newStyles(GetColorScheme(name))
	}
}

// WithSaveDir задаёт каталог для Ctrl+S; он создаётся при сохранении.
func WithSaveDir(dir string) Option {
	return func(m *Model) {
		if dir != "" {
			m.saveDir = dir
		}
	}
}
