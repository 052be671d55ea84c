package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/tools"
)

// LLMInvocationStep: шаг вызова модели.
//
// Передаёт модели определения всех инструментов реестра и добавляет
// её ответ в ChainContext. Если ответ не содержит tool calls, он финальный.
type LLMInvocationStep struct {
	provider llm.Provider
	registry *tools.Registry
	opts     []llm.GenerateOption

	observer IterationObserver
}

// Name возвращает имя шага.
func (s *LLMInvocationStep) Name() string {
	return "llm_invocation"
}

// Execute вызывает модель.
func (s *LLMInvocationStep) Execute(ctx context.Context, chainCtx *ChainContext) StepResult {
	if s.provider == nil {
		return Fail(fmt.Errorf("llm provider is not configured"))
	}

	opts := append([]llm.GenerateOption(nil), s.opts...)
	if s.registry != nil && s.registry.Len() > 0 {
		opts = append(opts, llm.WithTools(s.registry.Definitions()))
	}

	start := time.Now()
	resp, err := s.provider.Generate(ctx, chainCtx.BuildPrompt(), opts...)
	if err != nil {
		return Fail(fmt.Errorf("llm generation failed (iteration %d, %s): %w",
			chainCtx.Iteration(), time.Since(start).Round(time.Millisecond), err))
	}
	resp.Role = llm.RoleAssistant
	chainCtx.AppendMessage(resp)

	if len(resp.ToolCalls) == 0 {
		return Finish()
	}
	if s.observer != nil && resp.Content != "" {
		s.observer.OnThinking(ctx, resp.Content)
	}
	return Continue()
}
