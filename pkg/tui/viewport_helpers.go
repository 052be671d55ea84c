package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/muesli/reflow/wrap"
)

type entryKind int

const (
	entrySystem entryKind = iota
	entryUser
	entryAI
	entryError
	entryToolCall
	entryToolResult
)

// entry: одна запись ленты без стилей и переносов.
type entry struct {
	kind entryKind
	text string
}

// shouldGotoBottom проверяет, находится ли пользователь внизу ленты.
// Если он прокрутил вверх, новые сообщения не сдвигают позицию.
func shouldGotoBottom(vp viewport.Model) bool {
	return vp.YOffset+vp.Height >= vp.TotalLineCount()
}

// render переносит и раскрашивает записи под ширину width.
// Записи хранятся без переносов, поэтому при resize лента перестраивается.
// Результаты инструментов показываются только с showTools.
func render(entries []entry, st styles, width int, showTools bool) string {
	if width < 20 {
		width = 20
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.kind == entryToolResult && !showTools {
			continue
		}
		wrapped := wrap.String(e.text, width)
		lines = append(lines, st.forKind(e.kind).Render(wrapped))
	}
	return strings.Join(lines, "\n")
}

// refreshViewport перерисовывает ленту, сохраняя позицию прокрутки.
// wasAtBottom вычисляется до изменения контента и размеров.
func refreshViewport(vp *viewport.Model, content string, wasAtBottom bool) {
	vp.SetContent(content)
	if wasAtBottom {
		vp.GotoBottom()
		return
	}
	maxOffset := vp.TotalLineCount() - vp.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if vp.YOffset > maxOffset {
		vp.SetYOffset(maxOffset)
	}
}
