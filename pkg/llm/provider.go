// Интерфейсы провайдеров, через которые работает всё приложение.
package llm

import "context"

// Provider: абстракция над chat completion API.
//
// Реализации: pkg/llm/openai (OpenAI и Azure OpenAI).
type Provider interface {
	// Generate отправляет историю сообщений и возвращает ответ модели.
	// Инструменты и формат ответа передаются через опции (WithTools, WithFormat).
	Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error)
}

// Embedder превращает тексты в векторы.
//
// Порядок векторов совпадает с порядком входных текстов.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Transcriber переводит аудиофайл в текст.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// ProviderFunc позволяет использовать функцию как Provider (удобно в тестах).
type ProviderFunc func(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error)

// Generate вызывает f.
func (f ProviderFunc) Generate(ctx context.Context, messages []Message, opts ...GenerateOption) (Message, error) {
	return f(ctx, messages, opts...)
}
