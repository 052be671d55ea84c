// Package vision распознаёт визитные карточки vision-моделью.
//
// Изображение берётся из файла, из S3 (s3://bucket/key) или по https
// ссылке. Локальные и S3 изображения уменьшаются и передаются модели
// base64 data URI, https ссылка передаётся как есть. Ответ модели:
// строгий JSON с пятью строковыми полями.
package vision

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/prompt"
	"github.com/ilkoid/tripmate/pkg/s3storage"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// Card: данные визитки.
type Card struct {
	Name  string `json:"name"`
	Job   string `json:"job"`   // компания или род деятельности
	Title string `json:"title"` // должность
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// String форматирует визитку для вывода в CLI.
func (c Card) String() string {
	var b strings.Builder
	for _, f := range []struct{ label, value string }{
		{"Name", c.Name},
		{"Job", c.Job},
		{"Title", c.Title},
		{"Phone", c.Phone},
		{"Email", c.Email},
	} {
		fmt.Fprintf(&b, "%-6s %s\n", f.label+":", f.value)
	}
	return strings.TrimRight(b.String(), "\n")
}

// cardJSON различает отсутствующее поле и пустую строку.
type cardJSON struct {
	Name  *string `json:"name"`
	Job   *string `json:"job"`
	Title *string `json:"title"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

func (c cardJSON) validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"name", c.Name}, {"job", c.Job}, {"title", c.Title}, {"phone", c.Phone}, {"email", c.Email},
	} {
		if f.value == nil {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	if *c.Name == "" && *c.Phone == "" && *c.Email == "" {
		return fmt.Errorf("card has no name, phone or email")
	}
	return nil
}

func (c cardJSON) card() Card {
	return Card{
		Name:  strings.TrimSpace(*c.Name),
		Job:   strings.TrimSpace(*c.Job),
		Title: strings.TrimSpace(*c.Title),
		Phone: strings.TrimSpace(*c.Phone),
		Email: strings.TrimSpace(*c.Email),
	}
}

// Fetcher скачивает объект по ссылке s3://. Реализуется s3storage.Client.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Config: параметры CardReader.
type Config struct {
	MaxWidth int                // ширина, до которой уменьшается изображение
	Quality  int                // качество JPEG
	Prompt   *prompt.PromptFile // nil: встроенный business_card
	S3       Fetcher            // nil: ссылки s3:// не поддерживаются
}

// CardReader распознаёт визитки.
type CardReader struct {
	provider llm.Provider
	cfg      Config
}

// NewCardReader создаёт CardReader над vision моделью.
func NewCardReader(provider llm.Provider, cfg Config) *CardReader {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1024
	}
	if cfg.Quality <= 0 {
		cfg.Quality = 85
	}
	if cfg.Prompt == nil {
		cfg.Prompt = prompt.MustDefault(prompt.BusinessCard)
	}
	return &CardReader{provider: provider, cfg: cfg}
}

// Read распознаёт визитку по источнику: путь к файлу, s3:// или https:// ссылка.
func (r *CardReader) Read(ctx context.Context, source string) (Card, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return Card{}, fmt.Errorf("image source is empty")
	case strings.HasPrefix(source, "https://"), strings.HasPrefix(source, "http://"):
		return r.readImage(ctx, source)
	case s3storage.IsURI(source):
		if r.cfg.S3 == nil {
			return Card{}, fmt.Errorf("s3 is not configured, cannot read %s", source)
		}
		data, err := r.cfg.S3.Fetch(ctx, source)
		if err != nil {
			return Card{}, fmt.Errorf("download card image: %w", err)
		}
		return r.ReadBytes(ctx, data)
	default:
		data, err := os.ReadFile(source)
		if err != nil {
			return Card{}, fmt.Errorf("read card image: %w", err)
		}
		return r.ReadBytes(ctx, data)
	}
}

// ReadBytes распознаёт визитку из байтов изображения (JPEG или PNG).
func (r *CardReader) ReadBytes(ctx context.Context, data []byte) (Card, error) {
	resized, err := utils.ResizeImage(data, r.cfg.MaxWidth, r.cfg.Quality)
	if err != nil {
		return Card{}, fmt.Errorf("prepare card image: %w", err)
	}
	return r.readImage(ctx, utils.ToDataURI(resized))
}

func (r *CardReader) readImage(ctx context.Context, image string) (Card, error) {
	messages, err := r.cfg.Prompt.RenderMessages(nil)
	if err != nil {
		return Card{}, fmt.Errorf("render card prompt: %w", err)
	}
	last := len(messages) - 1
	if messages[last].Role != llm.RoleUser {
		messages = append(messages, llm.Message{Role: llm.RoleUser})
		last++
	}
	messages[last].Images = []string{image}

	opts := append(r.cfg.Prompt.Options(), llm.WithFormat(llm.FormatJSONObject))
	stage := chain.Pipe(
		chain.ModelStage(r.provider, opts...),
		chain.JSONParser(func(c cardJSON) error { return c.validate() }),
	)
	parsed, err := stage.Run(ctx, messages)
	if err != nil {
		return Card{}, fmt.Errorf("read business card: %w", err)
	}
	card := parsed.card()
	utils.Debug("business card read", "name", card.Name, "has_email", card.Email != "")
	return card, nil
}
