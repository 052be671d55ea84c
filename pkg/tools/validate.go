package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ValidateArgs проверяет сырые аргументы модели по схеме инструмента.
//
// Покрывает обязательные поля и примитивные типы верхнего уровня.
// Пустая строка аргументов считается пустым объектом.
func ValidateArgs(def ToolDefinition, argsJSON string) error {
	params := map[string]any{}
	if trimmed := strings.TrimSpace(argsJSON); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &params); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	for _, field := range requiredFields(def.Parameters) {
		if _, exists := params[field]; !exists {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	props, _ := def.Parameters["properties"].(map[string]any)
	for key, value := range params {
		propDef, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		expected, _ := propDef["type"].(string)
		if expected == "" {
			continue
		}
		if err := validateType(value, expected); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
	}

	return nil
}

// requiredFields понимает и []string (схемы из Go кода), и []any (схемы из JSON/YAML).
func requiredFields(schema JSONSchema) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if _, ok := value.(float64); ok {
			return nil
		}
	case "integer":
		if v, ok := value.(float64); ok && math.Trunc(v) == v {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}
