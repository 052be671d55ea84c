// Package utils предоставляет вспомогательные функции: очистку ответов LLM,
// обработку изображений, логирование и graceful shutdown.
package utils

import (
	"strings"
)

// CleanJsonBlock удаляет markdown-обёртку вокруг JSON.
//
// Модели часто возвращают JSON внутри ```json ... ``` даже при
// response_format=json_object.
//
// Примеры:
//
//	```json {"a": 1} ``` → {"a": 1}
//	``` {"a": 1} ``` → {"a": 1}
func CleanJsonBlock(s string) string {
	s = strings.TrimSpace(s)

	for _, prefix := range []string{"```json", "```JSON", "```Json", "```"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// ExtractJSON находит первый JSON объект в тексте по балансу фигурных скобок.
//
// Не валидирует JSON - только вырезает кандидата для json.Unmarshal.
// Скобки внутри строковых литералов учитываются.
// Возвращает пустую строку если открывающей скобки нет.
func ExtractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return s[start:]
}
