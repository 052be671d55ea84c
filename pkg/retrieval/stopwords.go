package retrieval

import "strings"

// DefaultStopwords: корейские служебные слова, которые удаляются
// из отзывов перед индексацией.
var DefaultStopwords = []string{
	"의", "가", "이", "은", "들", "는", "좀", "잘", "걍",
	"과", "도", "를", "으로", "자", "에", "와", "한", "하다", "nan",
}

// RemoveStopwords удаляет из текста слова, целиком совпадающие со стоп-словом.
//
// Слова выделяются по пробельным символам, переводы строк сохраняются,
// поэтому абзацы остаются видны Splitter.
func RemoveStopwords(text string, stopwords []string) string {
	if len(stopwords) == 0 {
		return text
	}
	drop := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		drop[w] = struct{}{}
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		words := strings.Fields(line)
		kept := words[:0]
		for _, w := range words {
			if _, ok := drop[w]; !ok {
				kept = append(kept, w)
			}
		}
		lines[i] = strings.Join(kept, " ")
	}
	return strings.Join(lines, "\n")
}
