// Package models: реестр chat моделей из config.yaml.
//
// Модели регистрируются по алиасу при старте; Provider(alias) возвращает
// провайдера, который при недоступности upstream переключается на
// fallback модель из ModelDef.Fallback.
package models

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/factory"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// Registry: потокобезопасное хранилище LLM провайдеров.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelEntry
}

// ModelEntry: провайдер с конфигурацией.
type ModelEntry struct {
	Provider llm.Provider
	Config   config.ModelDef
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]ModelEntry),
	}
}

// Register добавляет модель. Повторное имя: ошибка.
func (r *Registry) Register(name string, modelDef config.ModelDef, provider llm.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[name]; exists {
		return fmt.Errorf("model '%s' already registered", name)
	}
	r.models[name] = ModelEntry{Provider: provider, Config: modelDef}
	return nil
}

// Get возвращает провайдера по алиасу без fallback.
func (r *Registry) Get(name string) (llm.Provider, config.ModelDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[name]
	if !ok {
		return nil, config.ModelDef{}, apperr.NotFound("model '%s'", name)
	}
	return entry.Provider, entry.Config, nil
}

// Provider возвращает провайдера алиаса, обёрнутого цепочкой fallback.
func (r *Registry) Provider(name string) (llm.Provider, error) {
	if _, _, err := r.Get(name); err != nil {
		return nil, err
	}
	return &fallbackProvider{registry: r, name: name}, nil
}

// ListNames возвращает отсортированные алиасы.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig регистрирует все chat модели из cfg.Models.Definitions.
//
// Модели провайдеров без chat API (gemini) пропускаются: они используются
// только как embedder.
func NewRegistryFromConfig(cfg *config.AppConfig) (*Registry, error) {
	registry := NewRegistry()

	for name, modelDef := range cfg.Models.Definitions {
		if !factory.IsChatProvider(modelDef.Provider) {
			continue
		}
		provider, err := factory.NewLLMProvider(modelDef)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider for model '%s': %w", name, err)
		}
		if err := registry.Register(name, modelDef, provider); err != nil {
			return nil, fmt.Errorf("failed to register model '%s': %w", name, err)
		}
	}

	return registry, nil
}

// fallbackProvider пробует модель и её fallback'и по цепочке.
//
// Переключение происходит только на ErrUpstreamUnavailable; отмена контекста
// и прочие ошибки возвращаются сразу. Циклы в цепочке обрываются.
type fallbackProvider struct {
	registry *Registry
	name     string
}

func (p *fallbackProvider) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	visited := make(map[string]bool)
	name := p.name

	for {
		provider, def, err := p.registry.Get(name)
		if err != nil {
			return llm.Message{}, err
		}
		visited[name] = true

		msg, err := provider.Generate(ctx, messages, opts...)
		if err == nil {
			return msg, nil
		}
		if ctx.Err() != nil || !errors.Is(err, apperr.ErrUpstreamUnavailable) {
			return llm.Message{}, err
		}
		if def.Fallback == "" || visited[def.Fallback] {
			return llm.Message{}, err
		}

		utils.Warn("Model unavailable, switching to fallback",
			"model", name, "fallback", def.Fallback, "error", err)
		name = def.Fallback
	}
}
