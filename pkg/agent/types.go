// Package agent: простой API для запуска TripMate из кода и из TUI.
//
// Client скрывает инициализацию компонентов (config, модели, клиенты
// внешних сервисов, инструменты) и хранит одну сессию диалога:
//
//	client, _ := agent.New(ctx, agent.Config{ConfigPath: "config.yaml"})
//	defer client.Close()
//	answer, _ := client.Run(ctx, "What should I eat near Jagalchi market?")
package agent

import (
	"context"

	"github.com/ilkoid/tripmate/pkg/events"
	"github.com/ilkoid/tripmate/pkg/session"
)

// Config определяет конфигурацию клиента. Все поля опциональны.
type Config struct {
	// ConfigPath: путь к config.yaml. Пустой: auto-discovery
	// (как в app.DefaultConfigPathFinder).
	ConfigPath string

	// Preset: имя пресета (app.Presets). Пустой: app.DefaultPreset.
	Preset string

	// SessionID: идентификатор сессии; сохранённые маршруты привязаны к нему.
	SessionID string

	// Emitter получает события хода. Задаётся до первого хода.
	Emitter events.Emitter
}

// Runner: то, что умеет выполнить ход диалога. Реализуется *Client.
type Runner interface {
	Ask(ctx context.Context, req session.Request) (session.Reply, error)
}

var _ Runner = (*Client)(nil)
