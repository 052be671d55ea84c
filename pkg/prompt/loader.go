// Загрузка и Рендер - чтение файла и text/template.

package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
)

// Имена встроенных промптов.
const (
	AgentSystem      = "agent_system"
	RecommendPlaces  = "recommend_places"
	ExtractKeywords  = "extract_keywords"
	BusinessCard     = "business_card"
	Contextualize    = "contextualize"
	AnalyzeQuestion  = "analyze_question"
	SummarizeMinutes = "summarize_minutes"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// Load загружает и парсит YAML файл промпта
func Load(path string) (*PromptFile, error) {
	// 1. Проверяем наличие
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("prompt file not found: %s", path)
	}

	// 2. Читаем байты
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, data)
}

// Parse разбирает YAML промпта из памяти.
func Parse(name string, data []byte) (*PromptFile, error) {
	var pf PromptFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("yaml parse error in prompt '%s': %w", name, err)
	}
	if len(pf.Messages) == 0 {
		return nil, fmt.Errorf("prompt '%s' has no messages", name)
	}
	pf.Name = name
	return &pf, nil
}

// Default возвращает встроенный промпт по имени.
func Default(name string) (*PromptFile, error) {
	data, err := defaultsFS.ReadFile("defaults/" + name + ".yaml")
	if err != nil {
		return nil, apperr.NotFound("prompt '%s'", name)
	}
	return Parse(name, data)
}

// MustDefault: Default, паникующий при ошибке. Только для встроенных имён.
func MustDefault(name string) *PromptFile {
	pf, err := Default(name)
	if err != nil {
		panic(err)
	}
	return pf
}

// RenderMessages принимает данные (struct или map) и возвращает готовые сообщения
// где все {{.Field}} заменены на значения.
func (pf *PromptFile) RenderMessages(data any) ([]llm.Message, error) {
	rendered := make([]llm.Message, len(pf.Messages))

	for i, msg := range pf.Messages {
		tmpl, err := template.New(pf.Name).Option("missingkey=error").Parse(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("template parse error in message #%d (%s): %w", i, msg.Role, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("template execute error in message #%d: %w", i, err)
		}

		rendered[i] = llm.Message{
			Role:    msg.Role,
			Content: strings.TrimSpace(buf.String()),
		}
	}

	return rendered, nil
}

// RenderSystem рендерит первое сообщение промпта (system prompt агента).
func (pf *PromptFile) RenderSystem(data any) (string, error) {
	msgs, err := pf.RenderMessages(data)
	if err != nil {
		return "", err
	}
	return msgs[0].Content, nil
}

// Options переводит config промпта в опции генерации.
func (pf *PromptFile) Options() []llm.GenerateOption {
	var opts []llm.GenerateOption
	if pf.Config.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*pf.Config.Temperature))
	}
	if pf.Config.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(pf.Config.MaxTokens))
	}
	if pf.Config.Format != "" {
		opts = append(opts, llm.WithFormat(pf.Config.Format))
	}
	return opts
}

// Library ищет промпты сначала в каталоге пользователя, затем среди встроенных.
type Library struct {
	dir string
}

// NewLibrary создаёт Library над каталогом (пустой: только встроенные).
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Get возвращает промпт {dir}/{name}.yaml или встроенный по умолчанию.
func (l *Library) Get(name string) (*PromptFile, error) {
	if l != nil && l.dir != "" {
		path := filepath.Join(l.dir, name+".yaml")
		if _, err := os.Stat(path); err == nil {
			pf, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load prompt from %s: %w", path, err)
			}
			return pf, nil
		}
	}
	return Default(name)
}
