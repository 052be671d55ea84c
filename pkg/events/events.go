// Package events: порт для подписки UI на события агента.
//
// Библиотечный код (pkg/chain) зависит только от Emitter;
// конкретный UI (pkg/tui) читает события через Subscriber:
//
//	emitter := events.NewChanEmitter(64)
//	sess, _ := comps.NewSession(ctx, preset, app.SessionOptions{Emitter: emitter})
//	for event := range emitter.Subscribe().Events() {
//	    switch event.Type {
//	    case events.EventToolCall:
//	        ui.showTool(event.Data.(events.ToolCallData))
//	    case events.EventDone:
//	        ui.showAnswer(event.Data.(events.MessageData).Content)
//	    }
//	}
//
// Все реализации должны быть thread-safe: tool calls одной итерации
// выполняются параллельно и публикуют события из разных goroutine.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события от агента.
type EventType string

const (
	// EventThinking отправляется когда агент начинает обрабатывать ход.
	EventThinking EventType = "thinking"

	// EventIteration отправляется в начале каждой итерации ReAct цикла.
	EventIteration EventType = "iteration"

	// EventToolCall отправляется когда агент вызывает инструмент.
	EventToolCall EventType = "tool_call"

	// EventToolResult отправляется когда инструмент вернул результат или ошибку.
	EventToolResult EventType = "tool_result"

	// EventMessage отправляется для промежуточного текста модели.
	EventMessage EventType = "message"

	// EventError отправляется при ошибке хода.
	EventError EventType = "error"

	// EventDone отправляется с финальным ответом.
	EventDone EventType = "done"
)

// EventData: sealed interface для данных события.
//
// Только типы из пакета events могут его реализовать.
type EventData interface {
	eventData()
}

// ThinkingData содержит запрос пользователя.
type ThinkingData struct {
	Query string
}

func (ThinkingData) eventData() {}

// IterationData содержит номер итерации (с 1) и лимит.
type IterationData struct {
	Iteration int
	Max       int
}

func (IterationData) eventData() {}

// ToolCallData содержит данные о вызове инструмента.
type ToolCallData struct {
	ToolName string
	Args     string
}

func (ToolCallData) eventData() {}

// ToolResultData содержит результат выполнения инструмента.
type ToolResultData struct {
	ToolName string
	Result   string
	Success  bool
	Duration time.Duration
}

func (ToolResultData) eventData() {}

// MessageData содержит текст для EventMessage и EventDone.
type MessageData struct {
	Content   string
	Truncated bool // ответ частичный: исчерпан лимит итераций
}

func (MessageData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// Event: событие от агента.
type Event struct {
	Type      EventType
	Data      EventData
	Timestamp time.Time
}

// New создаёт событие с текущим временем.
func New(t EventType, data EventData) Event {
	return Event{Type: t, Data: data, Timestamp: time.Now()}
}

// Emitter: порт для отправки событий.
type Emitter interface {
	// Emit отправляет событие. Если ctx отменён, событие отбрасывается.
	Emit(ctx context.Context, event Event)
}

// Subscriber позволяет читать события из канала.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	Events() <-chan Event

	// Close освобождает подписчика.
	Close()
}

// Nop: Emitter, который ничего не делает.
type Nop struct{}

// Emit ничего не делает.
func (Nop) Emit(context.Context, Event) {}
