// Package app собирает компоненты tripmate из config.yaml и создаёт сессии
// агента для CLI и TUI.
//
// Клиенты внешних API необязательны: если ключ не задан, клиент остаётся
// nil, а зависящие от него инструменты не регистрируются.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/factory"
	"github.com/ilkoid/tripmate/pkg/keywords"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/maps"
	"github.com/ilkoid/tripmate/pkg/minutes"
	"github.com/ilkoid/tripmate/pkg/models"
	"github.com/ilkoid/tripmate/pkg/paramstore"
	"github.com/ilkoid/tripmate/pkg/places"
	"github.com/ilkoid/tripmate/pkg/prompt"
	"github.com/ilkoid/tripmate/pkg/retrieval"
	"github.com/ilkoid/tripmate/pkg/routes"
	"github.com/ilkoid/tripmate/pkg/s3storage"
	"github.com/ilkoid/tripmate/pkg/search"
	"github.com/ilkoid/tripmate/pkg/utils"
	"github.com/ilkoid/tripmate/pkg/vision"
	"github.com/ilkoid/tripmate/pkg/weather"
)

// Components содержит всё, что нужно сессиям и командам CLI.
//
// Поля с внешними клиентами могут быть nil.
type Components struct {
	Config  *config.AppConfig
	Models  *models.Registry
	Chat    llm.Provider
	Vision  llm.Provider
	Prompts *prompt.Library

	Maps      *maps.Client
	Weather   *weather.Client
	Wikipedia *search.Wikipedia
	Tavily    *search.Tavily
	S3        *s3storage.Client
	Routes    routes.Store

	// Store открывается лениво: только командам и инструментам retrieval.
	store *retrieval.Store
}

// ConfigPathFinder определяет стратегию поиска config.yaml.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder ищет config.yaml.
//
// Порядок поиска:
//  1. Флаг --config (если указан)
//  2. Переменная окружения TRIPMATE_CONFIG
//  3. Текущая директория
//  4. Директория бинарника
type DefaultConfigPathFinder struct {
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}
	if env := os.Getenv("TRIPMATE_CONFIG"); env != "" {
		return resolveAbsPath(env)
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return resolveAbsPath("config.yaml")
	}
	if execPath, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(execPath), "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	// Возвращаем дефолтный путь: config.Load вернёт понятную ошибку
	return resolveAbsPath("config.yaml")
}

// InitializeConfig загружает конфигурацию и подставляет секреты ssm:/path.
//
// AWS конфигурация загружается только если в config.yaml есть ссылки на SSM.
func InitializeConfig(ctx context.Context, finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	if cfg.HasSecretRefs() {
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, "", err
		}
		store, err := paramstore.New(ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
			}
		}))
		if err != nil {
			return nil, "", err
		}
		if err := cfg.ResolveSecrets(ctx, store); err != nil {
			return nil, "", fmt.Errorf("failed to resolve secrets: %w", err)
		}
		utils.Info("Secrets resolved from SSM")
	}

	return cfg, cfgPath, nil
}

// LoadAWSConfig загружает конфигурацию AWS SDK (credentials из окружения).
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// Initialize создаёт компоненты приложения.
//
// Обязательна только chat модель. Остальные клиенты создаются, если для
// них есть ключи, и логируются как пропущенные иначе.
func Initialize(ctx context.Context, cfg *config.AppConfig) (*Components, error) {
	c := &Components{
		Config:  cfg,
		Prompts: prompt.NewLibrary(cfg.App.PromptsDir),
	}

	registry, err := models.NewRegistryFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create model registry: %w", err)
	}
	c.Models = registry

	c.Chat, err = registry.Provider(cfg.Models.DefaultChat)
	if err != nil {
		return nil, fmt.Errorf("default_chat model: %w", err)
	}
	if cfg.Models.DefaultVision != "" {
		c.Vision, err = registry.Provider(cfg.Models.DefaultVision)
		if err != nil {
			return nil, fmt.Errorf("default_vision model: %w", err)
		}
	} else {
		c.Vision = c.Chat
	}
	utils.Info("Models ready", "chat", cfg.Models.DefaultChat, "vision", cfg.Models.DefaultVision)

	if cfg.Maps.APIKey != "" {
		if c.Maps, err = maps.NewClient(cfg.Maps); err != nil {
			return nil, fmt.Errorf("failed to create maps client: %w", err)
		}
	} else {
		utils.Warn("maps.api_key not set, place tools disabled")
	}

	if cfg.Weather.APIKey != "" {
		if c.Weather, err = weather.NewClient(cfg.Weather); err != nil {
			return nil, fmt.Errorf("failed to create weather client: %w", err)
		}
	} else {
		utils.Warn("weather.api_key not set, weather tool disabled")
	}

	if c.Wikipedia, err = search.NewWikipedia(cfg.Search.Wikipedia); err != nil {
		return nil, fmt.Errorf("failed to create wikipedia client: %w", err)
	}
	if cfg.Search.Tavily.APIKey != "" {
		if c.Tavily, err = search.NewTavily(cfg.Search.Tavily); err != nil {
			return nil, fmt.Errorf("failed to create tavily client: %w", err)
		}
	}

	if cfg.S3.Enabled() {
		if c.S3, err = s3storage.New(cfg.S3); err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		utils.Info("S3 client initialized", "bucket", cfg.S3.Bucket)
	}

	if c.Routes, err = newRouteStore(ctx, cfg); err != nil {
		return nil, err
	}

	return c, nil
}

// newRouteStore создаёт хранилище маршрутов по routes.backend.
func newRouteStore(ctx context.Context, cfg *config.AppConfig) (routes.Store, error) {
	if cfg.Routes.Backend != "dynamodb" {
		return routes.NewMemoryStore(), nil
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	api := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})
	store, err := routes.NewDynamoStore(api, cfg.Routes.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to create route store: %w", err)
	}
	utils.Info("Routes stored in DynamoDB", "table", cfg.Routes.Table)
	return store, nil
}

// Prompt возвращает промпт по имени (файл из prompts_dir или встроенный).
func (c *Components) Prompt(name string) *prompt.PromptFile {
	pf, err := c.Prompts.Get(name)
	if err != nil {
		utils.Warn("Prompt override is broken, using built-in", "name", name, "error", err)
		return prompt.MustDefault(name)
	}
	return pf
}

// Recommender создаёт рекомендатель мест. Требует maps.
func (c *Components) Recommender() (*places.Recommender, error) {
	if c.Maps == nil {
		return nil, fmt.Errorf("maps.api_key is required for recommendations")
	}
	return places.NewRecommender(c.Maps, c.Chat, places.Config{
		Count:  c.Config.Maps.Recommend,
		Prompt: c.Prompt(prompt.RecommendPlaces),
	}), nil
}

// PlaceFinder создаёт поиск мест по ключевым словам. Требует maps.
func (c *Components) PlaceFinder() (*keywords.PlaceFinder, error) {
	if c.Maps == nil {
		return nil, fmt.Errorf("maps.api_key is required for place search")
	}
	return keywords.NewPlaceFinder(c.KeywordExtractor(), c.Maps), nil
}

// KeywordExtractor создаёт извлечение ключевых слов.
func (c *Components) KeywordExtractor() *keywords.Extractor {
	return keywords.NewExtractor(c.Chat, c.Prompt(prompt.ExtractKeywords))
}

// CardReader создаёт распознавание визиток на vision модели.
func (c *Components) CardReader() *vision.CardReader {
	cfg := vision.Config{
		MaxWidth: c.Config.ImageProcessing.MaxWidth,
		Quality:  c.Config.ImageProcessing.Quality,
		Prompt:   c.Prompt(prompt.BusinessCard),
	}
	if c.S3 != nil {
		cfg.S3 = c.S3
	}
	return vision.NewCardReader(c.Vision, cfg)
}

// Embedder создаёт embedder модели embedding.model.
func (c *Components) Embedder(ctx context.Context) (llm.Embedder, error) {
	alias := c.Config.Embedding.Model
	if alias == "" {
		return nil, fmt.Errorf("embedding.model is not configured")
	}
	def, ok := c.Config.Models.Definitions[alias]
	if !ok {
		return nil, fmt.Errorf("embedding model '%s' is not defined", alias)
	}
	return factory.NewEmbedder(ctx, def)
}

// MinutesRecorder создаёт протокол встречи: распознавание речи моделью
// models.default_transcription, итоги моделью чата на языке agent.language.
func (c *Components) MinutesRecorder() (*minutes.Recorder, error) {
	def, ok := c.Config.GetTranscriptionModel("")
	if !ok {
		return nil, fmt.Errorf("models.default_transcription is not configured")
	}
	transcriber, err := factory.NewTranscriber(def)
	if err != nil {
		return nil, err
	}
	return minutes.NewRecorder(transcriber, c.Chat, minutes.Config{
		Language: c.Config.Agent.Language,
		Prompt:   c.Prompt(prompt.SummarizeMinutes),
	}), nil
}

// Store открывает векторное хранилище retrieval.db_path.
func (c *Components) Store() (*retrieval.Store, error) {
	if c.store != nil {
		return c.store, nil
	}
	store, err := retrieval.OpenStore(c.Config.Retrieval.DBPath)
	if err != nil {
		return nil, err
	}
	c.store = store
	return store, nil
}

// Retriever создаёт поиск по коллекции.
func (c *Components) Retriever(ctx context.Context, collection string) (*retrieval.Retriever, error) {
	store, err := c.Store()
	if err != nil {
		return nil, err
	}
	embedder, err := c.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	return retrieval.NewRetriever(store, embedder, collection, c.Config.Retrieval.TopK), nil
}

// SplitMode выбирает настройки разбиения документов для Indexer.
type SplitMode int

const (
	// SplitDataset: embedding.chunk_size и embedding.stopwords, режим по умолчанию.
	SplitDataset SplitMode = iota
	// SplitNotes: retrieval.chunk_size и retrieval.stopwords для коротких заметок.
	SplitNotes
)

// Indexer создаёт индексатор документов. Пакетные настройки всегда берутся
// из embedding, размеры чанков зависят от mode.
func (c *Components) Indexer(ctx context.Context, mode SplitMode) (*retrieval.Indexer, error) {
	store, err := c.Store()
	if err != nil {
		return nil, err
	}
	embedder, err := c.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	splitter, stopwords, err := c.splitterFor(mode)
	if err != nil {
		return nil, err
	}

	ixCfg := retrieval.IndexerConfig{
		BatchSize:  c.Config.Embedding.BatchSize,
		Workers:    c.Config.Embedding.Workers,
		MaxRetries: c.Config.Embedding.MaxRetries,
		RetryDelay: c.Config.Embedding.RetryDelay,
	}
	if stopwords {
		ixCfg.Stopwords = retrieval.DefaultStopwords
	}
	return retrieval.NewIndexer(store, embedder, splitter, ixCfg), nil
}

func (c *Components) splitterFor(mode SplitMode) (*retrieval.Splitter, bool, error) {
	size, overlap, stopwords := c.Config.Embedding.ChunkSize, c.Config.Embedding.ChunkOverlap, c.Config.Embedding.Stopwords
	if mode == SplitNotes {
		size, overlap, stopwords = c.Config.Retrieval.ChunkSize, c.Config.Retrieval.ChunkOverlap, c.Config.Retrieval.Stopwords
	}
	splitter, err := retrieval.NewSplitter(size, overlap, c.Config.Retrieval.Separators)
	return splitter, stopwords, err
}

// Close освобождает ресурсы.
func (c *Components) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// resolveAbsPath преобразует путь в абсолютный (если это не уже абсолютный путь).
func resolveAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
