package std

import (
	"context"
	"fmt"
	"strings"

	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/s3storage"
	"github.com/ilkoid/tripmate/pkg/tools"
	"github.com/ilkoid/tripmate/pkg/vision"
)

// CardReader: распознавание визиток (vision.CardReader).
type CardReader interface {
	Read(ctx context.Context, source string) (vision.Card, error)
}

// BusinessCardTool распознаёт визитку по фото.
type BusinessCardTool struct {
	reader      CardReader
	description string
}

// NewBusinessCardTool создаёт инструмент extract_business_card.
func NewBusinessCardTool(r CardReader, cfg config.ToolConfig) *BusinessCardTool {
	return &BusinessCardTool{
		reader:      r,
		description: describe(cfg, "Read a business card photo and return name, company, title, phone and email. Source is a local path, an https URL or s3://bucket/key."),
	}
}

// Definition возвращает определение инструмента.
func (t *BusinessCardTool) Definition() tools.ToolDefinition {
	return definition("extract_business_card", t.description, map[string]any{
		"source": tools.Prop("string", "Image location"),
	}, "source")
}

// Execute выполняет инструмент.
func (t *BusinessCardTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Source string `json:"source"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("source", args.Source); err != nil {
		return "", err
	}

	card, err := t.reader.Read(ctx, args.Source)
	if err != nil {
		return "", err
	}
	return toJSON(card)
}

// S3ListTool показывает файлы в бакете: фото визиток и документы для индексации.
type S3ListTool struct {
	store       s3storage.ObjectStore
	bucket      string
	description string
}

// NewS3ListTool создаёт инструмент list_s3_files.
func NewS3ListTool(c *s3storage.Client, cfg config.ToolConfig) *S3ListTool {
	return &S3ListTool{
		store:       c,
		bucket:      c.Bucket(),
		description: describe(cfg, "List files in the storage bucket under a prefix. Use it to find business card photos or guide documents before reading them."),
	}
}

// Definition возвращает определение инструмента.
func (t *S3ListTool) Definition() tools.ToolDefinition {
	return definition("list_s3_files", t.description, map[string]any{
		"prefix": tools.Prop("string", "Folder prefix, for example 'cards/'; empty for the bucket root"),
	})
}

type s3File struct {
	URI  string `json:"uri"`
	Size string `json:"size"`
}

// Execute выполняет инструмент.
func (t *S3ListTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Prefix string `json:"prefix"`
	}](argsJSON)
	if err != nil {
		return "", err
	}

	objects, err := t.store.ListFiles(ctx, strings.TrimPrefix(args.Prefix, "/"))
	if err != nil {
		return emptyOnNotFound(err)
	}
	files := make([]s3File, len(objects))
	for i, o := range objects {
		files[i] = s3File{
			URI:  s3storage.Scheme + t.bucket + "/" + o.Key,
			Size: humanSize(o.Size),
		}
	}
	return toJSON(files)
}

func humanSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
