// Package memory хранит историю диалога одной сессии.
//
// Conversation только растёт: ходы добавляются в конец и никогда не
// переупорядочиваются, не изменяются и не удаляются.
package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role: роль автора хода.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Turn: один ход диалога. После добавления в Store не меняется.
type Turn struct {
	ID        string
	Role      Role
	Content   string
	Payload   json.RawMessage // опциональные структурированные данные (например, рекомендации)
	CreatedAt time.Time
}

// NewTurn создаёт ход с новым ID и текущим временем.
func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// WithPayload возвращает копию хода с прикреплёнными данными.
func (t Turn) WithPayload(payload json.RawMessage) Turn {
	t.Payload = clonePayload(payload)
	return t
}

// Store: хранилище Conversation.
type Store interface {
	// Append добавляет ход в конец.
	Append(turn Turn) error

	// All возвращает снимок всей истории в порядке добавления.
	All() []Turn

	// Len возвращает количество ходов.
	Len() int
}

// Conversation: Store в памяти процесса.
//
// Изменения истории между ходами защищены RWMutex; сессия всё равно
// обрабатывает ходы строго последовательно.
type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewConversation создаёт пустую историю.
func NewConversation() *Conversation {
	return &Conversation{turns: make([]Turn, 0)}
}

// Append добавляет ход в конец истории.
//
// Пустые ID и CreatedAt заполняются. Неизвестная роль: ошибка.
func (c *Conversation) Append(turn Turn) error {
	if !turn.Role.Valid() {
		return fmt.Errorf("invalid turn role %q", turn.Role)
	}
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now().UTC()
	}
	turn.Payload = clonePayload(turn.Payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
	return nil
}

// All возвращает копию истории. Изменения копии не видны Store.
func (c *Conversation) All() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		t.Payload = clonePayload(t.Payload)
		out[i] = t
	}
	return out
}

// Len возвращает количество ходов.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

func clonePayload(p json.RawMessage) json.RawMessage {
	if p == nil {
		return nil
	}
	return append(json.RawMessage(nil), p...)
}

var _ Store = (*Conversation)(nil)
