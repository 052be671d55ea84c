// Package keywords извлекает ключевые слова из фразы пользователя
// и ищет по ним места через Places Text Search.
package keywords

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/maps"
	"github.com/ilkoid/tripmate/pkg/prompt"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// legacyPrefix: префикс строки ключевых слов в текстовом ответе модели.
const legacyPrefix = "keywords:"

type keywordsJSON struct {
	Keywords []string `json:"keywords"`
}

// ExtractKeywords разбирает ответ модели.
//
// Основной формат: JSON объект {"keywords": [...]}. Запасной: строка
// вида "Keywords: cat, dog, bird." (берётся текст после последнего
// "keywords:", делится по запятым, точка в конце слова отбрасывается).
// Слова приводятся к нижнему регистру. Если ни один формат не подошёл,
// возвращается ParseFailure.
func ExtractKeywords(content string) ([]string, error) {
	parsed, jsonErr := chain.ParseJSON(content, func(v keywordsJSON) error {
		if len(normalize(v.Keywords)) == 0 {
			return fmt.Errorf("keywords are empty")
		}
		return nil
	})
	if jsonErr == nil {
		return normalize(parsed.Keywords), nil
	}

	lower := strings.ToLower(content)
	idx := strings.LastIndex(lower, legacyPrefix)
	if idx < 0 {
		return nil, jsonErr
	}
	words := normalize(strings.Split(lower[idx+len(legacyPrefix):], ","))
	if len(words) == 0 {
		return nil, apperr.ParseFailure("keywords line is empty")
	}
	return words, nil
}

func normalize(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		w = strings.TrimSpace(strings.TrimSuffix(w, "."))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Extractor извлекает ключевые слова моделью: prompt → model → parser.
type Extractor struct {
	pipeline chain.Stage[string, []string]
}

// NewExtractor создаёт Extractor. nil pf: встроенный extract_keywords.
func NewExtractor(provider llm.Provider, pf *prompt.PromptFile) *Extractor {
	if pf == nil {
		pf = prompt.MustDefault(prompt.ExtractKeywords)
	}

	render := chain.NewStage("keywords_prompt", func(_ context.Context, text string) ([]llm.Message, error) {
		return pf.RenderMessages(map[string]any{"Text": text})
	})
	parse := chain.NewStage("keywords_parser", func(_ context.Context, msg llm.Message) ([]string, error) {
		return ExtractKeywords(msg.Content)
	})

	return &Extractor{
		pipeline: chain.Pipe3(render, chain.ModelStage(provider, pf.Options()...), parse),
	}
}

// Extract возвращает ключевые слова текста.
func (e *Extractor) Extract(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is empty")
	}
	words, err := e.pipeline.Run(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	return words, nil
}

// TextSearcher: часть maps.Client для поиска по тексту.
type TextSearcher interface {
	TextSearch(ctx context.Context, query string) ([]maps.Place, error)
}

// SearchResult: итог поиска мест по ключевым словам.
type SearchResult struct {
	Keywords []string     `json:"keywords"`
	Query    string       `json:"query"`
	Places   []maps.Place `json:"places"`
}

// PlaceFinder объединяет извлечение ключевых слов и поиск мест.
type PlaceFinder struct {
	extractor *Extractor
	places    TextSearcher
}

// NewPlaceFinder создаёт PlaceFinder.
func NewPlaceFinder(extractor *Extractor, places TextSearcher) *PlaceFinder {
	return &PlaceFinder{extractor: extractor, places: places}
}

// Find ищет места по ключевым словам фразы, объединённым в один запрос.
// Пустой результат поиска: ErrNotFound.
func (f *PlaceFinder) Find(ctx context.Context, text string) (SearchResult, error) {
	words, err := f.extractor.Extract(ctx, text)
	if err != nil {
		return SearchResult{}, err
	}

	res := SearchResult{Keywords: words, Query: strings.Join(words, " ")}
	places, err := f.places.TextSearch(ctx, res.Query)
	if err != nil {
		return res, fmt.Errorf("text search: %w", err)
	}
	if len(places) == 0 {
		return res, apperr.NotFound("no places for keywords %q", res.Query)
	}
	res.Places = places

	utils.Debug("places found by keywords", "query", res.Query, "count", len(places))
	return res, nil
}
