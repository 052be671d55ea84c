package retrieval

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// Document: исходный текст для индексации.
type Document struct {
	Source string
	Text   string
}

// IndexerConfig: параметры пакетной генерации эмбеддингов.
type IndexerConfig struct {
	BatchSize  int           // фрагментов в одном запросе к API
	Workers    int           // одновременных запросов
	MaxRetries int           // повторов пакета при rate limit
	RetryDelay time.Duration // пауза перед повтором
	Stopwords  []string      // nil: стоп-слова не удаляются
}

func (c IndexerConfig) withDefaults() IndexerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 60 * time.Second
	}
	return c
}

// IndexStats: итог индексации.
type IndexStats struct {
	Documents int
	Chunks    int
	Batches   int
	Retries   int
	Duration  time.Duration
}

// Indexer режет документы на фрагменты, считает эмбеддинги пакетами
// в несколько воркеров и сохраняет фрагменты в Store.
//
// Пакеты, упёршиеся в rate limit или сетевую ошибку, повторяются после
// паузы. Фрагменты сохраняются одной транзакцией в исходном порядке,
// поэтому при ошибке в коллекцию не попадает ничего.
type Indexer struct {
	store    *Store
	embedder llm.Embedder
	splitter *Splitter
	cfg      IndexerConfig

	sleep func(ctx context.Context, d time.Duration) error
}

// NewIndexer создаёт Indexer.
func NewIndexer(store *Store, embedder llm.Embedder, splitter *Splitter, cfg IndexerConfig) *Indexer {
	return &Indexer{
		store:    store,
		embedder: embedder,
		splitter: splitter,
		cfg:      cfg.withDefaults(),
		sleep:    sleepContext,
	}
}

// Index индексирует документы в коллекцию.
func (ix *Indexer) Index(ctx context.Context, collection string, docs []Document) (IndexStats, error) {
	start := time.Now()
	stats := IndexStats{Documents: len(docs)}

	var chunks []Chunk
	for _, doc := range docs {
		text := doc.Text
		if len(ix.cfg.Stopwords) > 0 {
			text = RemoveStopwords(text, ix.cfg.Stopwords)
		}
		for _, piece := range ix.splitter.Split(text) {
			chunks = append(chunks, Chunk{Collection: collection, Source: doc.Source, Content: piece})
		}
	}
	stats.Chunks = len(chunks)
	if len(chunks) == 0 {
		stats.Duration = time.Since(start)
		return stats, nil
	}

	batches := makeBatches(len(chunks), ix.cfg.BatchSize)
	stats.Batches = len(batches)
	retries := make([]int, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Workers)
	for i, b := range batches {
		g.Go(func() error {
			texts := make([]string, 0, b.end-b.start)
			for _, c := range chunks[b.start:b.end] {
				texts = append(texts, c.Content)
			}

			vectors, n, err := ix.embedBatch(gctx, texts)
			retries[i] = n
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			for j, v := range vectors {
				chunks[b.start+j].Embedding = v
			}
			utils.Debug("batch embedded", "batch", i, "size", len(texts), "retries", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		stats.Duration = time.Since(start)
		return stats, err
	}
	for _, n := range retries {
		stats.Retries += n
	}

	if err := ix.store.Add(ctx, collection, chunks); err != nil {
		stats.Duration = time.Since(start)
		return stats, fmt.Errorf("store chunks: %w", err)
	}

	stats.Duration = time.Since(start)
	utils.Info("collection indexed",
		"collection", collection,
		"documents", stats.Documents,
		"chunks", stats.Chunks,
		"batches", stats.Batches,
		"retries", stats.Retries,
		"duration", stats.Duration,
	)
	return stats, nil
}

// embedBatch считает эмбеддинги пакета, повторяя его при временных ошибках.
func (ix *Indexer) embedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	for attempt := 0; ; attempt++ {
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, attempt, fmt.Errorf("got %d vectors for %d texts", len(vectors), len(texts))
			}
			return vectors, attempt, nil
		}
		if !isRetryable(err) || attempt >= ix.cfg.MaxRetries {
			return nil, attempt, err
		}
		utils.Warn("embedding batch failed, retrying",
			"attempt", attempt+1, "max", ix.cfg.MaxRetries, "delay", ix.cfg.RetryDelay, "error", err)
		if err := ix.sleep(ctx, ix.cfg.RetryDelay); err != nil {
			return nil, attempt, err
		}
	}
}

// isRetryable: 429, 5xx или сбой транспорта. Ошибка без HTTP статуса
// повторяется только если это сетевая ошибка; истёкший контекст окончателен.
func isRetryable(err error) bool {
	var upstream *apperr.UpstreamError
	if !errors.As(err, &upstream) {
		return false
	}
	switch {
	case upstream.Status == http.StatusTooManyRequests || upstream.Status >= 500:
		return true
	case upstream.Status != 0:
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

type batch struct {
	start, end int
}

func makeBatches(total, size int) []batch {
	var out []batch
	for start := 0; start < total; start += size {
		out = append(out, batch{start: start, end: min(start+size, total)})
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
