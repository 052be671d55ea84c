package std

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/search"
	"github.com/ilkoid/tripmate/pkg/tools"
)

// WikipediaAPI: поиск статей (search.Wikipedia).
type WikipediaAPI interface {
	Search(ctx context.Context, query string, limit int) ([]search.Article, error)
}

// WikipediaTool ищет справку о местах и истории в Википедии.
type WikipediaTool struct {
	api         WikipediaAPI
	description string
}

// NewWikipediaTool создаёт инструмент wikipedia_search.
func NewWikipediaTool(api WikipediaAPI, cfg config.ToolConfig) *WikipediaTool {
	return &WikipediaTool{
		api:         api,
		description: describe(cfg, "Look up background on a landmark, city or historical topic in Wikipedia. Returns article titles with summaries."),
	}
}

// Definition возвращает определение инструмента.
func (t *WikipediaTool) Definition() tools.ToolDefinition {
	return definition("wikipedia_search", t.description, map[string]any{
		"query": tools.Prop("string", "Topic to look up"),
		"limit": tools.Prop("integer", "Number of articles, 1-5"),
	}, "query")
}

// Execute выполняет инструмент.
func (t *WikipediaTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("query", args.Query); err != nil {
		return "", err
	}
	limit := min(max(args.Limit, 1), 5)
	if args.Limit == 0 {
		limit = 3
	}

	articles, err := t.api.Search(ctx, args.Query, limit)
	if err != nil {
		return emptyOnNotFound(err)
	}
	if len(articles) == 0 {
		return "", nil
	}
	return toJSON(articles)
}

// WebSearchAPI: веб-поиск (search.Tavily).
type WebSearchAPI interface {
	Search(ctx context.Context, query string) (search.WebAnswer, error)
}

// WebSearchTool ищет свежую информацию в интернете.
type WebSearchTool struct {
	api         WebSearchAPI
	description string
}

// NewWebSearchTool создаёт инструмент web_search.
func NewWebSearchTool(api WebSearchAPI, cfg config.ToolConfig) *WebSearchTool {
	return &WebSearchTool{
		api:         api,
		description: describe(cfg, "Search the web for fresh information: opening hours, events, prices, transport."),
	}
}

// Definition возвращает определение инструмента.
func (t *WebSearchTool) Definition() tools.ToolDefinition {
	return definition("web_search", t.description, map[string]any{
		"query": tools.Prop("string", "Search query"),
	}, "query")
}

// Execute выполняет инструмент.
func (t *WebSearchTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Query string `json:"query"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("query", args.Query); err != nil {
		return "", err
	}

	answer, err := t.api.Search(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("web search: %w", err)
	}
	if answer.Answer == "" && len(answer.Results) == 0 {
		return "", nil
	}
	return toJSON(answer)
}

// DocumentSearcher: поиск по проиндексированным документам (retrieval.Retriever).
type DocumentSearcher interface {
	Texts(ctx context.Context, query string) ([]string, error)
}

// chunkSeparator разделяет фрагменты в ответе txt_search.
const chunkSeparator = "\n---\n"

// DocumentSearchTool ищет по локальной базе путеводителей.
type DocumentSearchTool struct {
	searcher    DocumentSearcher
	description string
}

// NewDocumentSearchTool создаёт инструмент txt_search.
func NewDocumentSearchTool(s DocumentSearcher, cfg config.ToolConfig) *DocumentSearchTool {
	return &DocumentSearchTool{
		searcher:    s,
		description: describe(cfg, "Search the indexed travel guides for passages relevant to the question."),
	}
}

// Definition возвращает определение инструмента.
func (t *DocumentSearchTool) Definition() tools.ToolDefinition {
	return definition("txt_search", t.description, map[string]any{
		"query": tools.Prop("string", "Question or keywords"),
	}, "query")
}

// Execute выполняет инструмент.
func (t *DocumentSearchTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Query string `json:"query"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("query", args.Query); err != nil {
		return "", err
	}

	texts, err := t.searcher.Texts(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("document search: %w", err)
	}
	return strings.Join(texts, chunkSeparator), nil
}
