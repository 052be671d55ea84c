// Package factory создаёт LLM провайдеры, embedder'ы и распознавание речи по ModelDef.
package factory

import (
	"context"
	"fmt"

	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/llm/genai"
	"github.com/ilkoid/tripmate/pkg/llm/openai"
)

// NewLLMProvider создаёт chat провайдера на основе конфигурации модели.
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	switch modelDef.Provider {
	case "openai", "azure":
		return openai.NewClient(modelDef), nil
	default:
		return nil, fmt.Errorf("unknown chat provider type: %s", modelDef.Provider)
	}
}

// NewEmbedder создаёт embedder на основе конфигурации модели.
func NewEmbedder(ctx context.Context, modelDef config.ModelDef) (llm.Embedder, error) {
	switch modelDef.Provider {
	case "openai", "azure":
		return openai.NewClient(modelDef), nil
	case "gemini":
		return genai.NewEmbedder(ctx, modelDef.APIKey, modelDef.ModelName, genai.TaskRetrievalDocument)
	default:
		return nil, fmt.Errorf("unknown embedding provider type: %s", modelDef.Provider)
	}
}

// NewTranscriber создаёт распознавание речи (whisper-1 через OpenAI или Azure).
func NewTranscriber(modelDef config.ModelDef) (llm.Transcriber, error) {
	switch modelDef.Provider {
	case "openai", "azure":
		return openai.NewClient(modelDef), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider type: %s", modelDef.Provider)
	}
}

// IsChatProvider сообщает, умеет ли provider chat completion.
func IsChatProvider(provider string) bool {
	return provider == "openai" || provider == "azure"
}
