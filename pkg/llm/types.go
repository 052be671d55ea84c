// Базовые типы - универсальный язык общения с моделями.
package llm

// Роли сообщений.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message: одно сообщение в диалоге с моделью.
type Message struct {
	Role    string
	Content string

	// ToolCalls заполняется в ответе assistant, когда модель просит вызвать инструменты.
	ToolCalls []ToolCall

	// ToolCallID связывает tool-сообщение с вызовом, на который оно отвечает.
	ToolCallID string

	// Images: data URI или https ссылки (vision модели).
	Images []string
}

// ToolCall: запрос модели на вызов инструмента.
type ToolCall struct {
	ID   string
	Name string
	Args string // JSON строка аргументов, как пришла от модели
}

// Usage: статистика токенов одного вызова.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}
