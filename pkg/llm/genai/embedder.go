// Package genai реализует llm.Embedder через Google Gemini API.
package genai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
)

const (
	defaultModel = "gemini-embedding-001"
	serviceName  = "gemini"

	// TaskRetrievalDocument: для индексируемых фрагментов.
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	// TaskRetrievalQuery: для поисковых запросов.
	TaskRetrievalQuery = "RETRIEVAL_QUERY"
)

// Embedder генерирует эмбеддинги через Gemini.
type Embedder struct {
	client   *genai.Client
	model    string
	taskType string
}

// NewEmbedder создаёт Embedder. taskType: одна из констант Task*.
func NewEmbedder(ctx context.Context, apiKey, model, taskType string) (*Embedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if taskType == "" {
		taskType = TaskRetrievalDocument
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Embedder{client: client, model: model, taskType: taskType}, nil
}

// Embed возвращает эмбеддинги в порядке входных текстов (нативный batch).
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: e.taskType,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", wrapAPIError(err))
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embed: %w", &apperr.UpstreamError{
			Service: serviceName,
			Status:  200,
			Body:    fmt.Sprintf("got %d embeddings for %d inputs", len(result.Embeddings), len(texts)),
		})
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// wrapAPIError переносит HTTP код genai.APIError в UpstreamError,
// чтобы вызывающий код отличал 4xx от временных сбоев.
func wrapAPIError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &apperr.UpstreamError{Service: serviceName, Status: apiErr.Code, Body: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &apperr.UpstreamError{Service: serviceName, Status: apiErrPtr.Code, Body: apiErrPtr.Message, Err: err}
	}
	return &apperr.UpstreamError{Service: serviceName, Err: err}
}

var _ llm.Embedder = (*Embedder)(nil)
