// Интерфейс Tool и структуры определений.

package tools

import "context"

// JSONSchema представляет JSON Schema для параметров инструмента.
//
// Формат соответствует JSON Schema для Function Calling API.
type JSONSchema map[string]any

// ToolDefinition описывает инструмент для LLM (Function Calling API format).
type ToolDefinition struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"` // JSON Schema объекта аргументов
}

// Tool: контракт, который должен реализовать любой инструмент.
//
// "Raw In, String Out": аргументы приходят сырым JSON от модели,
// результат возвращается строкой (обычно JSON).
type Tool interface {
	// Definition возвращает описание инструмента для LLM.
	Definition() ToolDefinition

	// Execute выполняет логику инструмента.
	// Ошибка означает ExecutionFailure: агент превратит её в tool-сообщение.
	Execute(ctx context.Context, argsJSON string) (string, error)
}

// FuncTool: инструмент из определения и функции.
type FuncTool struct {
	Def ToolDefinition
	Fn  func(ctx context.Context, argsJSON string) (string, error)
}

// Definition возвращает определение инструмента.
func (t FuncTool) Definition() ToolDefinition { return t.Def }

// Execute вызывает Fn.
func (t FuncTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	return t.Fn(ctx, argsJSON)
}

// ObjectSchema собирает JSON Schema объекта из свойств и списка обязательных полей.
func ObjectSchema(properties map[string]any, required ...string) JSONSchema {
	schema := JSONSchema{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// Prop описывает одно свойство схемы.
func Prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}
