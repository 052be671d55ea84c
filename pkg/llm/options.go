// Package llm provides options pattern for LLM generation parameters.
package llm

import "github.com/ilkoid/tripmate/pkg/tools"

// FormatJSONObject просит модель вернуть строго один JSON объект.
const FormatJSONObject = "json_object"

// GenerateOptions holds parameters for LLM generation.
// Zero values mean "use the model default from config.yaml".
type GenerateOptions struct {
	// Model is the model identifier (e.g., "gpt-4o-mini")
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic)
	Temperature *float64

	// MaxTokens limits the response length
	MaxTokens int

	// Format specifies response format ("json_object" for structured output)
	Format string

	// Tools are the function definitions the model may call.
	Tools []tools.ToolDefinition
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation.
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = &temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithFormat sets the response format for generation.
func WithFormat(format string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = format
	}
}

// WithTools passes tool definitions for function calling.
func WithTools(defs []tools.ToolDefinition) GenerateOption {
	return func(o *GenerateOptions) {
		o.Tools = defs
	}
}

// ApplyOptions собирает итоговые параметры из опций.
func ApplyOptions(opts ...GenerateOption) GenerateOptions {
	var o GenerateOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
