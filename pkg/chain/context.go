package chain

import (
	"strings"
	"sync"

	"github.com/ilkoid/tripmate/pkg/llm"
)

// ChainContext: состояние одного выполнения цикла.
//
// Все изменения проходят через методы типа под мьютексом: шаги
// инструментов пишут результаты из нескольких горутин.
type ChainContext struct {
	mu sync.RWMutex

	input        ChainInput
	systemPrompt string

	iteration int

	// messages: сообщения текущего хода, начиная с user.
	messages []llm.Message

	toolResults []ToolResult
}

// NewChainContext создаёт контекст выполнения и кладёт в него запрос пользователя.
func NewChainContext(input ChainInput, systemPrompt string) *ChainContext {
	c := &ChainContext{
		input:        input,
		systemPrompt: systemPrompt,
		messages:     make([]llm.Message, 0, 8),
	}
	c.messages = append(c.messages, llm.Message{
		Role:    llm.RoleUser,
		Content: input.UserQuery,
		Images:  input.Images,
	})
	return c
}

// Input возвращает входные данные хода.
func (c *ChainContext) Input() ChainInput {
	return c.input
}

// Iteration возвращает номер текущей итерации.
func (c *ChainContext) Iteration() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.iteration
}

// NextIteration увеличивает счётчик итераций.
func (c *ChainContext) NextIteration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.iteration++
	return c.iteration
}

// AppendMessage добавляет сообщение хода.
func (c *ChainContext) AppendMessage(msg llm.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

// Messages возвращает копию сообщений хода.
func (c *ChainContext) Messages() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// LastMessage возвращает последнее сообщение хода.
func (c *ChainContext) LastMessage() (llm.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return llm.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// AddToolResults сохраняет результаты инструментов итерации.
func (c *ChainContext) AddToolResults(results []ToolResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toolResults = append(c.toolResults, results...)
}

// ToolResults возвращает копию результатов инструментов.
func (c *ChainContext) ToolResults() []ToolResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ToolResult, len(c.toolResults))
	copy(out, c.toolResults)
	return out
}

// BuildPrompt собирает полный список сообщений для модели:
// system prompt, retrieved контекст, историю и сообщения хода.
func (c *ChainContext) BuildPrompt() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]llm.Message, 0, len(c.input.History)+len(c.messages)+2)
	if c.systemPrompt != "" {
		out = append(out, llm.Message{Role: llm.RoleSystem, Content: c.systemPrompt})
	}
	if len(c.input.Context) > 0 {
		out = append(out, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Relevant context:\n" + strings.Join(c.input.Context, "\n---\n"),
		})
	}
	out = append(out, c.input.History...)
	out = append(out, c.messages...)
	return out
}

// PartialAnswer строит детерминированный ответ, когда лимит итераций исчерпан.
//
// Предпочтение отдаётся последнему непустому тексту модели; если его нет,
// ответ собирается из результатов инструментов последней итерации.
// Результат никогда не бывает пустым.
func (c *ChainContext) PartialAnswer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Role == llm.RoleAssistant && strings.TrimSpace(msg.Content) != "" {
			return msg.Content
		}
	}

	var lastTools []string
	for i := len(c.messages) - 1; i >= 0; i-- {
		msg := c.messages[i]
		if msg.Role != llm.RoleTool {
			break
		}
		lastTools = append([]string{msg.Content}, lastTools...)
	}

	var b strings.Builder
	b.WriteString("I could not finish within the step limit.")
	if len(lastTools) > 0 {
		b.WriteString(" Latest tool results:\n")
		b.WriteString(strings.Join(lastTools, "\n"))
	}
	return b.String()
}
