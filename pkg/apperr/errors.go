// Package apperr описывает таксономию ошибок приложения.
//
// Все ошибки возвращаются вверх по стеку и сравниваются через errors.Is:
//
//	if errors.Is(err, apperr.ErrNotFound) { ... }
//
// Конкретные пакеты оборачивают sentinel через fmt.Errorf("%w: ...").
package apperr

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable: внешний API ответил не-200 или недоступен по сети.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrParseFailure: в ответе модели нет ожидаемого структурированного поля
// или ответ не прошёл валидацию схемы.
var ErrParseFailure = errors.New("parse failure")

// ErrNotFound: пустой результат там, где результат обязателен,
// либо неизвестное имя (инструмент, сессия, маршрут).
var ErrNotFound = errors.New("not found")

// ErrIterationCapExceeded: агент исчерпал лимит итераций без финального ответа.
var ErrIterationCapExceeded = errors.New("iteration cap exceeded")

// UpstreamError описывает неуспешный ответ внешнего сервиса.
//
// Unwrap возвращает ErrUpstreamUnavailable, поэтому
// errors.Is(err, ErrUpstreamUnavailable) == true.
type UpstreamError struct {
	Service string // "google_places", "openweathermap", ...
	Status  int    // HTTP статус, 0 для сетевых ошибок
	Body    string // усечённое тело ответа
	Err     error  // исходная ошибка транспорта (может быть nil)
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: status %d, body: %s", e.Service, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s: status %d", e.Service, e.Status)
	}
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstreamUnavailable, e.Err}
	}
	return []error{ErrUpstreamUnavailable}
}

// ParseFailure оборачивает ErrParseFailure с пояснением что именно не так.
func ParseFailure(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParseFailure, fmt.Sprintf(format, args...))
}

// NotFound оборачивает ErrNotFound с пояснением.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Kind возвращает короткое имя категории ошибки для логов и CLI.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrIterationCapExceeded):
		return "iteration_cap_exceeded"
	default:
		return "internal"
	}
}
