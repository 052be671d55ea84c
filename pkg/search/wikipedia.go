// Package search: поисковые источники для агента: Wikipedia и Tavily.
package search

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/tripmate/pkg/apiclient"
	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
)

// Article: статья Википедии с кратким содержанием.
type Article struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url,omitempty"`
}

// Wikipedia: клиент REST API Википедии.
type Wikipedia struct {
	api *apiclient.Client
}

// NewWikipedia создаёт клиент. Язык задаётся base_url (https://{lang}.wikipedia.org).
func NewWikipedia(cfg config.WikipediaConfig, opts ...apiclient.Option) (*Wikipedia, error) {
	opts = append([]apiclient.Option{apiclient.WithHeader("User-Agent", "tripmate/1.0")}, opts...)
	api, err := apiclient.New("wikipedia", cfg.APIConfig, opts...)
	if err != nil {
		return nil, err
	}
	return &Wikipedia{api: api}, nil
}

type wikiSearchResponse struct {
	Pages []struct {
		Key     string `json:"key"`
		Title   string `json:"title"`
		Excerpt string `json:"excerpt"`
	} `json:"pages"`
}

type wikiSummaryResponse struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Search ищет статьи и загружает их краткое содержание параллельно.
// Порядок статей совпадает с порядком выдачи поиска. Пустой результат: не ошибка.
func (w *Wikipedia) Search(ctx context.Context, query string, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 3
	}
	params := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}

	var found wikiSearchResponse
	if err := w.api.Get(ctx, "search", "/w/rest.php/v1/search/page", params, &found); err != nil {
		return nil, err
	}

	articles := make([]Article, len(found.Pages))
	g, gctx := errgroup.WithContext(ctx)
	for i, page := range found.Pages {
		g.Go(func() error {
			var sum wikiSummaryResponse
			err := w.api.Get(gctx, "summary", "/api/rest_v1/page/summary/"+url.PathEscape(page.Key), nil, &sum)
			switch {
			case err == nil:
				articles[i] = Article{Title: sum.Title, Summary: sum.Extract, URL: sum.ContentURLs.Desktop.Page}
			case isNotFound(err):
				// статья без summary: остаётся отрывок из поиска
				articles[i] = Article{Title: page.Title, Summary: page.Excerpt}
			default:
				return fmt.Errorf("summary %q: %w", page.Key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return articles, nil
}

func isNotFound(err error) bool {
	var upstream *apperr.UpstreamError
	return errors.As(err, &upstream) && upstream.Status == 404
}
