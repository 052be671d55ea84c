// Структуры данных - описывает формат YAML файла промпта.
package prompt

// PromptFile описывает структуру YAML-файла с промптом
type PromptFile struct {
	Name     string       `yaml:"-"`
	Config   PromptConfig `yaml:"config"`
	Messages []Message    `yaml:"messages"`
}

// PromptConfig - настройки модели для конкретного промпта.
// Нулевые значения означают "как у модели в config.yaml".
type PromptConfig struct {
	Model       string   `yaml:"model"`       // алиас из models.definitions
	Temperature *float64 `yaml:"temperature"` // nil - не задана
	MaxTokens   int      `yaml:"max_tokens"`
	Format      string   `yaml:"format"` // "json_object" или пусто для текста
}

// Message - одно сообщение в чате
type Message struct {
	Role    string `yaml:"role"`    // system, user, assistant
	Content string `yaml:"content"` // Шаблон с {{.Variables}}
}
