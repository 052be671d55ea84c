package search

import (
	"context"
	"fmt"

	"github.com/ilkoid/tripmate/pkg/apiclient"
	"github.com/ilkoid/tripmate/pkg/config"
)

// WebResult: результат веб-поиска.
type WebResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Tavily: клиент веб-поиска Tavily.
type Tavily struct {
	api        *apiclient.Client
	maxResults int
}

// NewTavily создаёт клиент.
func NewTavily(cfg config.TavilyConfig, opts ...apiclient.Option) (*Tavily, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search.tavily.api_key is required")
	}
	opts = append([]apiclient.Option{apiclient.WithHeader("Authorization", "Bearer "+cfg.APIKey)}, opts...)
	api, err := apiclient.New("tavily", cfg.APIConfig, opts...)
	if err != nil {
		return nil, err
	}
	n := cfg.MaxResults
	if n <= 0 {
		n = 5
	}
	return &Tavily{api: api, maxResults: n}, nil
}

type tavilyRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
}

type tavilyResponse struct {
	Answer  string      `json:"answer"`
	Results []WebResult `json:"results"`
}

// WebAnswer: ответ Tavily: краткий ответ и источники.
type WebAnswer struct {
	Answer  string      `json:"answer,omitempty"`
	Results []WebResult `json:"results"`
}

// Search выполняет веб-поиск.
func (t *Tavily) Search(ctx context.Context, query string) (WebAnswer, error) {
	var resp tavilyResponse
	req := tavilyRequest{Query: query, MaxResults: t.maxResults, IncludeAnswer: true}
	if err := t.api.Post(ctx, "search", "/search", req, &resp); err != nil {
		return WebAnswer{}, err
	}
	return WebAnswer{Answer: resp.Answer, Results: resp.Results}, nil
}
