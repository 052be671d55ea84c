// Package session обрабатывает ходы диалога.
//
// Один ход это пайплайн из трёх стадий:
//
//	ContextLoader → Agent (chain.Chain) → ContextSaver
//
// Loader делает снимок истории, агент работает только с этим снимком,
// Saver после успешного ответа добавляет ровно два хода: user и assistant.
// Ходы одной сессии выполняются строго последовательно.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/memory"
	"github.com/ilkoid/tripmate/pkg/state"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// ContextProvider подбирает дополнительный контекст для запроса
// (например, фрагменты документов через retrieval).
type ContextProvider interface {
	Retrieve(ctx context.Context, query string, history []llm.Message) ([]string, error)
}

// Request: вход одного хода.
type Request struct {
	Query  string
	Images []string
}

// Reply: результат хода.
type Reply struct {
	Text        string
	Partial     bool
	Iterations  int
	ToolResults []chain.ToolResult
}

// Config: зависимости сессии.
type Config struct {
	// Agent выполняет ход. Обязателен.
	Agent chain.Chain

	// Memory: история; по умолчанию memory.NewConversation().
	Memory memory.Store

	// State: изменяемое состояние сессии; по умолчанию новое.
	State *state.Session

	// Context: опциональный источник дополнительного контекста.
	Context ContextProvider
}

// Session: диалог одного пользователя.
type Session struct {
	agent   chain.Chain
	memory  memory.Store
	state   *state.Session
	context ContextProvider

	// turnMu сериализует ходы: следующий начинается после сохранения предыдущего.
	turnMu sync.Mutex
}

// New создаёт сессию.
func New(cfg Config) (*Session, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("session agent is required")
	}
	if cfg.Memory == nil {
		cfg.Memory = memory.NewConversation()
	}
	if cfg.State == nil {
		cfg.State = state.NewSession("", nil)
	}
	return &Session{
		agent:   cfg.Agent,
		memory:  cfg.Memory,
		state:   cfg.State,
		context: cfg.Context,
	}, nil
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string {
	return s.state.ID()
}

// State возвращает изменяемое состояние сессии.
func (s *Session) State() *state.Session {
	return s.state
}

// History возвращает снимок истории.
func (s *Session) History() []memory.Turn {
	return s.memory.All()
}

// Ask выполняет один ход: загрузка контекста, агент, сохранение.
//
// При ошибке агента история не меняется. Частичный ответ (лимит итераций)
// сохраняется как обычный и помечается в Reply.Partial.
func (s *Session) Ask(ctx context.Context, req Request) (Reply, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Reply{}, fmt.Errorf("empty query")
	}

	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	pipeline := chain.Pipe3(
		ContextLoader(s.memory, s.context),
		chain.AsStage("agent", s.agent),
		ContextSaver(s.memory, req),
	)
	reply, err := pipeline.Run(ctx, req)
	if err != nil {
		utils.Error("turn failed", "session", s.ID(), "error", err)
		return Reply{}, err
	}
	return reply, nil
}

// ContextLoader: стадия, превращающая запрос во вход агента.
//
// История читается один раз в начале хода: изменения Store во время
// выполнения хода этому ходу не видны.
func ContextLoader(store memory.Store, provider ContextProvider) chain.Stage[Request, chain.ChainInput] {
	return chain.NewStage("context_loader", func(ctx context.Context, req Request) (chain.ChainInput, error) {
		history := TurnsToMessages(store.All())

		input := chain.ChainInput{
			UserQuery: req.Query,
			History:   history,
			Images:    req.Images,
		}
		if provider != nil {
			docs, err := provider.Retrieve(ctx, req.Query, history)
			if err != nil {
				return chain.ChainInput{}, fmt.Errorf("retrieve context: %w", err)
			}
			input.Context = docs
		}
		return input, nil
	})
}

// turnPayload: структурированные данные assistant хода.
type turnPayload struct {
	Iterations int      `json:"iterations"`
	Signal     string   `json:"signal"`
	Tools      []string `json:"tools,omitempty"`
}

// ContextSaver: стадия, добавляющая ход в историю.
//
// Добавляет ровно один user ход и один assistant ход, в этом порядке.
func ContextSaver(store memory.Store, req Request) chain.Stage[chain.ChainOutput, Reply] {
	return chain.NewStage("context_saver", func(_ context.Context, out chain.ChainOutput) (Reply, error) {
		payload := turnPayload{Iterations: out.Iterations, Signal: out.Signal.String()}
		for _, r := range out.ToolResults {
			payload.Tools = append(payload.Tools, r.Name)
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return Reply{}, fmt.Errorf("marshal turn payload: %w", err)
		}

		if err := store.Append(memory.NewTurn(memory.RoleUser, req.Query)); err != nil {
			return Reply{}, fmt.Errorf("save user turn: %w", err)
		}
		if err := store.Append(memory.NewTurn(memory.RoleAssistant, out.Result).WithPayload(raw)); err != nil {
			return Reply{}, fmt.Errorf("save assistant turn: %w", err)
		}

		return Reply{
			Text:        out.Result,
			Partial:     out.Partial(),
			Iterations:  out.Iterations,
			ToolResults: out.ToolResults,
		}, nil
	})
}

// TurnsToMessages конвертирует историю в сообщения модели.
// Tool ходы пропускаются: без исходных tool calls они невалидны для API.
func TurnsToMessages(turns []memory.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		if t.Role == memory.RoleTool {
			continue
		}
		out = append(out, llm.Message{Role: string(t.Role), Content: t.Content})
	}
	return out
}
