// Package std содержит инструменты агента tripmate: места, погода,
// местное время, маршруты, поиск и распознавание визиток.
//
// Каждый инструмент получает зависимости через конструктор и реализует
// контракт tools.Tool "Raw In, String Out". Пустой результат поиска
// возвращается пустой строкой: агент подставит "No results.".
package std

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/tools"
)

// decodeArgs разбирает аргументы модели в T.
func decodeArgs[T any](argsJSON string) (T, error) {
	var args T
	if strings.TrimSpace(argsJSON) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return args, fmt.Errorf("invalid arguments: %w", err)
	}
	return args, nil
}

// toJSON сериализует результат инструмента.
func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(data), nil
}

// describe возвращает описание из config.yaml или встроенное.
func describe(cfg config.ToolConfig, fallback string) string {
	if cfg.Description != "" {
		return cfg.Description
	}
	return fallback
}

// emptyOnNotFound превращает ErrNotFound в пустой результат.
// Остальные ошибки возвращаются как есть.
func emptyOnNotFound(err error) (string, error) {
	if errors.Is(err, apperr.ErrNotFound) {
		return "", nil
	}
	return "", err
}

// requireText проверяет, что строковый аргумент не пустой.
func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must not be empty", field)
	}
	return nil
}

func definition(name, description string, props map[string]any, required ...string) tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        name,
		Description: description,
		Parameters:  tools.ObjectSchema(props, required...),
	}
}
