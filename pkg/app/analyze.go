package app

import (
	"context"

	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/prompt"
)

// DefaultAngles: точки зрения для ask --analyze: имя → описание для промпта.
var DefaultAngles = map[string]string{
	"culture":   "local history and culture",
	"food":      "food and where to eat",
	"logistics": "transport, timing and practical tips",
}

// AnalyzeQuestion отвечает на вопрос с нескольких точек зрения одновременно.
// Каждая точка зрения: пайплайн prompt → model → text, все запускаются
// через chain.Parallel; ошибка одного отменяет остальные.
func (c *Components) AnalyzeQuestion(ctx context.Context, question string, angles map[string]string) (map[string]string, error) {
	if len(angles) == 0 {
		angles = DefaultAngles
	}
	pf := c.Prompt(prompt.AnalyzeQuestion)

	stages := make(map[string]chain.Stage[string, string], len(angles))
	for name, angle := range angles {
		render := chain.NewStage("prompt", func(_ context.Context, q string) ([]llm.Message, error) {
			return pf.RenderMessages(struct {
				Angle    string
				Question string
			}{angle, q})
		})
		stages[name] = chain.Pipe3(render, chain.ModelStage(c.Chat, pf.Options()...), chain.TextParser())
	}
	return chain.Parallel(stages).Run(ctx, question)
}
