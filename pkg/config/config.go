// Package config загружает конфигурацию tripmate из YAML.
//
// Порядок: чтение файла → os.ExpandEnv → yaml.Unmarshal → GetDefaults → validate.
// Секреты вида "ssm:/path" разрешаются отдельно через ResolveSecrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig: корневая структура конфигурации.
type AppConfig struct {
	Models          ModelsConfig          `yaml:"models"`
	Agent           AgentConfig           `yaml:"agent"`
	Tools           map[string]ToolConfig `yaml:"tools"`
	Maps            MapsConfig            `yaml:"maps"`
	Weather         WeatherConfig         `yaml:"weather"`
	Search          SearchConfig          `yaml:"search"`
	Retrieval       RetrievalConfig       `yaml:"retrieval"`
	Embedding       EmbeddingConfig       `yaml:"embedding"`
	S3              S3Config              `yaml:"s3"`
	Routes          RoutesConfig          `yaml:"routes"`
	AWS             AWSConfig             `yaml:"aws"`
	ImageProcessing ImageProcConfig       `yaml:"image_processing"`
	App             AppSpecific           `yaml:"app"`
}

// ModelsConfig: реестр моделей и алиасы по умолчанию.
type ModelsConfig struct {
	DefaultChat          string              `yaml:"default_chat"`
	DefaultVision        string              `yaml:"default_vision"`
	DefaultEmbedding     string              `yaml:"default_embedding"`
	DefaultTranscription string              `yaml:"default_transcription"`
	Definitions          map[string]ModelDef `yaml:"definitions"`
}

// ModelDef: описание одной модели.
type ModelDef struct {
	Provider    string        `yaml:"provider"`    // "openai", "azure", "gemini"
	ModelName   string        `yaml:"model_name"`  // реальное имя в API (для azure - deployment)
	APIKey      string        `yaml:"api_key"`     // поддерживает ${VAR} и ssm:/path
	BaseURL     string        `yaml:"base_url"`    // для azure - endpoint ресурса
	APIVersion  string        `yaml:"api_version"` // только azure
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Fallback    string        `yaml:"fallback"` // алиас модели на случай ошибки
}

// AgentConfig: параметры ReAct цикла.
type AgentConfig struct {
	MaxIterations int           `yaml:"max_iterations"`
	ParallelTools int           `yaml:"parallel_tools"` // сколько tool calls одной итерации выполнять одновременно
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
	SystemPrompt  string        `yaml:"system_prompt"` // имя prompt файла в prompts_dir
	Language      string        `yaml:"language"`      // язык ответов агента
}

// ToolConfig: включение и параметры отдельного инструмента.
type ToolConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Timeout     time.Duration `yaml:"timeout"`
	Description string        `yaml:"description"` // заменяет встроенное описание для модели
}

// APIConfig: общие параметры HTTP API с rate limit и retry.
type APIConfig struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	RateLimit     int    `yaml:"rate_limit"`     // запросов в минуту
	BurstLimit    int    `yaml:"burst_limit"`    // burst для rate limiter
	RetryAttempts int    `yaml:"retry_attempts"` // попыток на запрос
	Timeout       string `yaml:"timeout"`        // например "30s"
}

// GetDefaults возвращает копию с заполненными нулевыми полями.
func (c APIConfig) GetDefaults() APIConfig {
	if c.RateLimit <= 0 {
		c.RateLimit = 60
	}
	if c.BurstLimit <= 0 {
		c.BurstLimit = 5
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	return c
}

// MapsConfig: Google Maps Platform (Places, Geocoding, Time Zone).
type MapsConfig struct {
	APIConfig `yaml:",inline"`
	Language  string `yaml:"language"`   // язык результатов, по умолчанию "ko"
	Radius    int    `yaml:"radius"`     // радиус nearby search в метрах
	PlaceType string `yaml:"place_type"` // тип мест для nearby search
	Recommend int    `yaml:"recommend"`  // сколько мест рекомендовать
}

// WeatherConfig: OpenWeatherMap.
type WeatherConfig struct {
	APIConfig `yaml:",inline"`
	Units     string `yaml:"units"` // metric, imperial, standard
}

// SearchConfig: внешние поисковые инструменты.
type SearchConfig struct {
	Wikipedia WikipediaConfig `yaml:"wikipedia"`
	Tavily    TavilyConfig    `yaml:"tavily"`
}

// WikipediaConfig: REST API Википедии.
type WikipediaConfig struct {
	APIConfig `yaml:",inline"`
	Language  string `yaml:"language"`
}

// TavilyConfig: веб-поиск Tavily.
type TavilyConfig struct {
	APIConfig  `yaml:",inline"`
	MaxResults int `yaml:"max_results"`
}

// RetrievalConfig: разбиение текста и поиск по векторам.
type RetrievalConfig struct {
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	Separators    []string `yaml:"separators"`
	TopK          int      `yaml:"top_k"`
	DBPath        string   `yaml:"db_path"`
	Collection    string   `yaml:"collection"`    // коллекция по умолчанию для index и txt_search
	Stopwords     bool     `yaml:"stopwords"`     // удалять стоп-слова перед разбиением
	Contextualize bool     `yaml:"contextualize"` // переформулировать вопрос с учётом истории
}

// EmbeddingConfig: пакетная генерация эмбеддингов (tripmate index).
// Собственные размеры чанков крупнее, чем у retrieval: строки датасетов
// длиннее заметок.
type EmbeddingConfig struct {
	Model        string        `yaml:"model"` // алиас из models.definitions
	BatchSize    int           `yaml:"batch_size"`
	Workers      int           `yaml:"workers"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	Stopwords    bool          `yaml:"stopwords"`
}

// S3Config: S3-совместимое хранилище документов и изображений.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // поддерживает ${VAR} и ssm:/path
	SecretKey string `yaml:"secret_key"` // поддерживает ${VAR} и ssm:/path
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроено ли S3 хранилище.
func (c S3Config) Enabled() bool {
	return c.Endpoint != ""
}

// RoutesConfig: хранилище сохранённых маршрутов.
type RoutesConfig struct {
	Backend string `yaml:"backend"` // memory | dynamodb
	Table   string `yaml:"table"`
}

// AWSConfig: общие настройки AWS SDK (SSM, DynamoDB).
type AWSConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // для localstack
}

// ImageProcConfig: подготовка изображений для vision модели.
type ImageProcConfig struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// AppSpecific: поведение приложения.
type AppSpecific struct {
	Debug      bool   `yaml:"debug"`
	PromptsDir string `yaml:"prompts_dir"`
	LogDir     string `yaml:"log_dir"`
	LogLevel   string `yaml:"log_level"`
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает YAML из памяти (ExpandEnv, defaults, validate).
func Parse(raw []byte) (*AppConfig, error) {
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// applyDefaults заполняет пропущенные значения.
func (c *AppConfig) applyDefaults() {
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 10
	}
	if c.Agent.ParallelTools <= 0 {
		c.Agent.ParallelTools = 4
	}
	if c.Agent.ToolTimeout <= 0 {
		c.Agent.ToolTimeout = 30 * time.Second
	}
	if c.Agent.Language == "" {
		c.Agent.Language = "Korean"
	}

	c.Maps.APIConfig = c.Maps.APIConfig.GetDefaults()
	if c.Maps.BaseURL == "" {
		c.Maps.BaseURL = "https://maps.googleapis.com"
	}
	if c.Maps.Language == "" {
		c.Maps.Language = "ko"
	}
	if c.Maps.Radius <= 0 {
		c.Maps.Radius = 1000
	}
	if c.Maps.PlaceType == "" {
		c.Maps.PlaceType = "point_of_interest"
	}
	if c.Maps.Recommend <= 0 {
		c.Maps.Recommend = 3
	}

	c.Weather.APIConfig = c.Weather.APIConfig.GetDefaults()
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = "https://api.openweathermap.org"
	}
	if c.Weather.Units == "" {
		c.Weather.Units = "metric"
	}

	c.Search.Wikipedia.APIConfig = c.Search.Wikipedia.APIConfig.GetDefaults()
	if c.Search.Wikipedia.Language == "" {
		c.Search.Wikipedia.Language = "en"
	}
	if c.Search.Wikipedia.BaseURL == "" {
		c.Search.Wikipedia.BaseURL = fmt.Sprintf("https://%s.wikipedia.org", c.Search.Wikipedia.Language)
	}
	c.Search.Tavily.APIConfig = c.Search.Tavily.APIConfig.GetDefaults()
	if c.Search.Tavily.BaseURL == "" {
		c.Search.Tavily.BaseURL = "https://api.tavily.com"
	}
	if c.Search.Tavily.MaxResults <= 0 {
		c.Search.Tavily.MaxResults = 5
	}

	if c.Retrieval.ChunkSize <= 0 {
		c.Retrieval.ChunkSize = 200
	}
	if c.Retrieval.ChunkOverlap <= 0 {
		c.Retrieval.ChunkOverlap = 20
	}
	if len(c.Retrieval.Separators) == 0 {
		c.Retrieval.Separators = []string{"\n\n", ".", ","}
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 4
	}
	if c.Retrieval.DBPath == "" {
		c.Retrieval.DBPath = "tripmate.db"
	}
	if c.Retrieval.Collection == "" {
		c.Retrieval.Collection = "guides"
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = c.Models.DefaultEmbedding
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Embedding.Workers <= 0 {
		c.Embedding.Workers = 5
	}
	if c.Embedding.MaxRetries <= 0 {
		c.Embedding.MaxRetries = 5
	}
	if c.Embedding.RetryDelay <= 0 {
		c.Embedding.RetryDelay = 60 * time.Second
	}
	if c.Embedding.ChunkSize <= 0 {
		c.Embedding.ChunkSize = 500
	}
	if c.Embedding.ChunkOverlap <= 0 {
		c.Embedding.ChunkOverlap = 50
	}

	if c.Routes.Backend == "" {
		c.Routes.Backend = "memory"
	}
	if c.ImageProcessing.MaxWidth <= 0 {
		c.ImageProcessing.MaxWidth = 1024
	}
	if c.ImageProcessing.Quality <= 0 {
		c.ImageProcessing.Quality = 85
	}
	if c.App.PromptsDir == "" {
		c.App.PromptsDir = "prompts"
	}
}

// validate проверяет обязательные поля и ссылки между секциями.
func (c *AppConfig) validate() error {
	if c.Models.DefaultChat == "" {
		return fmt.Errorf("models.default_chat is required")
	}
	for _, alias := range []string{c.Models.DefaultChat, c.Models.DefaultVision, c.Embedding.Model, c.Models.DefaultTranscription} {
		if alias == "" {
			continue
		}
		if _, ok := c.Models.Definitions[alias]; !ok {
			return fmt.Errorf("model '%s' is not defined in models.definitions", alias)
		}
	}
	for alias, def := range c.Models.Definitions {
		if def.Fallback != "" {
			if _, ok := c.Models.Definitions[def.Fallback]; !ok {
				return fmt.Errorf("model '%s': fallback '%s' is not defined", alias, def.Fallback)
			}
		}
	}

	if c.Retrieval.ChunkOverlap >= c.Retrieval.ChunkSize {
		return fmt.Errorf("retrieval.chunk_overlap (%d) must be less than chunk_size (%d)",
			c.Retrieval.ChunkOverlap, c.Retrieval.ChunkSize)
	}
	if c.Embedding.ChunkOverlap >= c.Embedding.ChunkSize {
		return fmt.Errorf("embedding.chunk_overlap (%d) must be less than chunk_size (%d)",
			c.Embedding.ChunkOverlap, c.Embedding.ChunkSize)
	}

	switch c.Routes.Backend {
	case "memory":
	case "dynamodb":
		if c.Routes.Table == "" {
			return fmt.Errorf("routes.table is required for dynamodb backend")
		}
	default:
		return fmt.Errorf("routes.backend must be 'memory' or 'dynamodb', got '%s'", c.Routes.Backend)
	}

	if c.S3.Enabled() && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
	}

	return nil
}

// GetChatModel возвращает модель чата по алиасу (пустой: по умолчанию).
func (c *AppConfig) GetChatModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultChat
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

// GetVisionModel возвращает vision модель по алиасу (пустой: по умолчанию).
func (c *AppConfig) GetVisionModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultVision
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

// GetTranscriptionModel возвращает модель распознавания речи по алиасу
// (пустой: models.default_transcription).
func (c *AppConfig) GetTranscriptionModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.DefaultTranscription
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}

// ToolEnabled сообщает, включён ли инструмент. Отсутствующий в конфиге инструмент выключен.
func (c *AppConfig) ToolEnabled(name string) bool {
	return c.Tools[name].Enabled
}

// ToolTimeout возвращает timeout инструмента или общий agent.tool_timeout.
func (c *AppConfig) ToolTimeout(name string) time.Duration {
	if t := c.Tools[name].Timeout; t > 0 {
		return t
	}
	return c.Agent.ToolTimeout
}
