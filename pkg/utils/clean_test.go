package utils

import (
	"testing"
)

func TestCleanJsonBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain JSON",
			input:    `{"key": "value"}`,
			expected: `{"key": "value"}`,
		},
		{
			name:     "JSON in markdown code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "upper case language tag",
			input:    "```JSON\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "only triple backticks",
			input:    "```\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  ```json  \n  {\"key\": \"value\"}  \n  ```  ",
			expected: `{"key": "value"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanJsonBlock(tt.input); got != tt.expected {
				t.Errorf("CleanJsonBlock() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no object", "Keywords: cat, dog", ""},
		{"object with prose", `Here you go: {"keywords": ["cat"]} thanks`, `{"keywords": ["cat"]}`},
		{"nested", `x {"a": {"b": 1}} y`, `{"a": {"b": 1}}`},
		{"brace in string", `{"name": "a}b"} tail`, `{"name": "a}b"}`},
		{"escaped quote", `{"name": "say \"}\""} tail`, `{"name": "say \"}\""}`},
		{"unterminated", `{"a": 1`, `{"a": 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractJSON(tt.input); got != tt.expected {
				t.Errorf("ExtractJSON() = %q, want %q", got, tt.expected)
			}
		})
	}
}
