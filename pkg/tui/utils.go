package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// truncate укорачивает строку до maxLen рун.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// oneLine схлопывает переводы строк, чтобы JSON аргументов помещался в строку ленты.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// saveTranscript сохраняет ленту в markdown файл в dir и возвращает путь.
func saveTranscript(dir, title string, entries []entry, now time.Time) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", title)
	fmt.Fprintf(&md, "**Saved:** %s\n\n---\n\n", now.Format("2006-01-02 15:04:05"))
	for _, e := range entries {
		switch e.kind {
		case entryUser:
			md.WriteString("**You:** " + strings.TrimPrefix(e.text, userPrefix) + "\n\n")
		case entryAI:
			md.WriteString(e.text + "\n\n")
		case entryToolCall, entryToolResult:
			md.WriteString("> " + e.text + "\n\n")
		default:
			md.WriteString("_" + e.text + "_\n\n")
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create transcript dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("tripmate_%s.md", now.Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(md.String()), 0o644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}
	return path, nil
}
