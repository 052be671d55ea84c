// Package retrieval реализует RAG: разбиение текстов, эмбеддинги,
// векторное хранилище на SQLite и поиск по сходству.
package retrieval

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators: разделители по умолчанию, от крупных к мелким.
var DefaultSeparators = []string{"\n\n", ".", ","}

// Splitter рекурсивно режет текст на фрагменты не длиннее chunkSize
// символов с перекрытием overlap.
//
// Сначала используется первый разделитель, который встречается в тексте.
// Слишком длинные куски режутся следующими разделителями; если их не
// осталось, кусок попадает в результат как есть. Длина считается в рунах.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewSplitter создаёт Splitter. Пустой список разделителей заменяется на DefaultSeparators.
func NewSplitter(chunkSize, overlap int, separators []string) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, overlap)
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	return &Splitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: append([]string(nil), separators...),
	}, nil
}

// Split разбивает текст на фрагменты. Пробелы по краям фрагментов
// обрезаются, пустые фрагменты отбрасываются.
func (s *Splitter) Split(text string) []string {
	raw := s.split(text, s.separators)

	out := make([]string, 0, len(raw))
	for _, chunk := range raw {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *Splitter) split(text string, separators []string) []string {
	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return []string{text}
	}

	var (
		out   []string
		small []string
	)
	for _, piece := range strings.SplitAfter(text, sep) {
		if piece == "" {
			continue
		}
		if utf8.RuneCountInString(piece) < s.chunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			out = append(out, s.merge(small)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, piece)
		} else {
			out = append(out, s.split(piece, rest)...)
		}
	}
	if len(small) > 0 {
		out = append(out, s.merge(small)...)
	}
	return out
}

// merge склеивает короткие куски во фрагменты, оставляя в начале
// следующего фрагмента хвост предыдущего длиной не больше overlap.
func (s *Splitter) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > s.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ""))
			for total > s.overlap || (total+n > s.chunkSize && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// pickSeparator возвращает первый разделитель, встречающийся в тексте,
// и разделители после него.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep != "" && strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}
