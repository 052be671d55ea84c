// Package openai реализует llm.Provider, llm.Embedder и llm.Transcriber поверх
// OpenAI-совместимых API.
//
// Поддерживает Function Calling, vision (data URI изображения), JSON формат ответа
// и Azure OpenAI (provider: azure).
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/tools"
	"github.com/ilkoid/tripmate/pkg/utils"
)

const serviceName = "openai"

// Client реализует llm.Provider, llm.Embedder и llm.Transcriber.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float64
}

// NewClient создает клиент на основе конфигурации модели.
//
// provider "azure" использует DefaultAzureConfig: BaseURL: endpoint ресурса,
// ModelName: имя deployment.
func NewClient(modelDef config.ModelDef) *Client {
	var cfg openai.ClientConfig
	if modelDef.Provider == "azure" {
		cfg = openai.DefaultAzureConfig(modelDef.APIKey, modelDef.BaseURL)
		if modelDef.APIVersion != "" {
			cfg.APIVersion = modelDef.APIVersion
		}
		// deployment называется ровно так, как в конфиге
		cfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		cfg = openai.DefaultConfig(modelDef.APIKey)
		if modelDef.BaseURL != "" {
			cfg.BaseURL = modelDef.BaseURL
		}
	}
	if modelDef.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: modelDef.Timeout}
	}

	return &Client{
		api:         openai.NewClientWithConfig(cfg),
		model:       modelDef.ModelName,
		maxTokens:   modelDef.MaxTokens,
		temperature: modelDef.Temperature,
	}
}

// Model возвращает имя модели по умолчанию.
func (c *Client) Model() string {
	return c.model
}

// Generate выполняет chat completion.
//
// Алгоритм:
//  1. Конвертирует сообщения в формат SDK (изображения → MultiContent)
//  2. Применяет опции поверх значений из конфига модели
//  3. Добавляет tools (tool_choice=auto) и response_format
//  4. Маппит ответ и ToolCalls обратно
func (c *Client) Generate(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (llm.Message, error) {
	startTime := time.Now()
	o := llm.ApplyOptions(opts...)

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  make([]openai.ChatCompletionMessage, len(messages)),
		MaxTokens: c.maxTokens,
	}
	for i, m := range messages {
		req.Messages[i] = mapToOpenAI(m)
	}

	temperature := c.temperature
	if o.Temperature != nil {
		temperature = *o.Temperature
	}
	req.Temperature = float32(temperature)
	if o.Model != "" {
		req.Model = o.Model
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = o.MaxTokens
	}
	if o.Format == llm.FormatJSONObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if len(o.Tools) > 0 {
		req.Tools = convertToolsToOpenAI(o.Tools)
		req.ToolChoice = "auto"
	}

	utils.Debug("LLM request started",
		"model", req.Model,
		"messages_count", len(messages),
		"tools_count", len(req.Tools),
		"format", o.Format)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"model", req.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Message{}, fmt.Errorf("chat completion: %w", wrapAPIError(err))
	}
	if len(resp.Choices) == 0 {
		return llm.Message{}, fmt.Errorf("chat completion: %w", &apperr.UpstreamError{
			Service: serviceName, Status: http.StatusOK, Body: "no choices in response",
		})
	}

	choice := resp.Choices[0].Message
	result := llm.Message{
		Role:    llm.RoleAssistant,
		Content: choice.Content,
	}
	for _, tc := range choice.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, llm.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: tc.Function.Arguments,
		})
	}

	utils.Info("LLM response received",
		"model", req.Model,
		"tool_calls_count", len(result.ToolCalls),
		"content_length", len(result.Content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration_ms", time.Since(startTime).Milliseconds())

	return result, nil
}

// Embed возвращает эмбеддинги текстов в исходном порядке.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", wrapAPIError(err))
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("create embeddings: %w", &apperr.UpstreamError{
			Service: serviceName,
			Status:  http.StatusOK,
			Body:    fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts)),
		})
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		out[i] = d.Embedding
	}
	return out, nil
}

// Transcribe распознаёт речь в аудиофайле (модели whisper-1 и совместимые).
// Язык определяется моделью.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}

	startTime := time.Now()
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: path,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", path, wrapAPIError(err))
	}

	utils.Debug("Audio transcribed",
		"model", c.model,
		"file", path,
		"chars", len(resp.Text),
		"duration_ms", time.Since(startTime).Milliseconds())
	return resp.Text, nil
}

// wrapAPIError переводит ошибки SDK в apperr.UpstreamError со статусом.
func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &apperr.UpstreamError{Service: serviceName, Status: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &apperr.UpstreamError{Service: serviceName, Status: reqErr.HTTPStatusCode, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &apperr.UpstreamError{Service: serviceName, Err: err}
}

// mapToOpenAI конвертирует сообщение в формат SDK.
// Сообщение с картинками отправляется как MultiContent (vision).
func mapToOpenAI(m llm.Message) openai.ChatCompletionMessage {
	msg := openai.ChatCompletionMessage{
		Role:       m.Role,
		ToolCallID: m.ToolCallID,
	}

	for _, tc := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
			ID:   tc.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Args,
			},
		})
	}

	if len(m.Images) == 0 {
		msg.Content = m.Content
		return msg
	}

	parts := []openai.ChatMessagePart{{
		Type: openai.ChatMessagePartTypeText,
		Text: m.Content,
	}}
	for _, imgURL := range m.Images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    imgURL,
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	msg.MultiContent = parts
	return msg
}

// convertToolsToOpenAI конвертирует определения инструментов в формат Function Calling.
func convertToolsToOpenAI(defs []tools.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(defs))
	for i, def := range defs {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		}
	}
	return result
}

var (
	_ llm.Provider = (*Client)(nil)
	_ llm.Embedder = (*Client)(nil)
)
