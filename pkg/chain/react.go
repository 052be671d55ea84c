package chain

import (
	"context"
	"time"

	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/tools"
)

const (
	// DefaultMaxIterations: лимит итераций, если он не задан.
	DefaultMaxIterations = 10

	// DefaultToolTimeout: таймаут вызова инструмента по умолчанию.
	DefaultToolTimeout = 30 * time.Second

	// DefaultParallelTools: сколько tool calls одной итерации выполняются одновременно.
	DefaultParallelTools = 4
)

// ReActConfig: параметры цикла.
type ReActConfig struct {
	SystemPrompt  string
	MaxIterations int
	ParallelTools int
	ToolTimeout   time.Duration

	// ToolTimeouts переопределяет таймаут для отдельных инструментов.
	ToolTimeouts map[string]time.Duration

	// GenerateOptions передаются модели на каждой итерации.
	GenerateOptions []llm.GenerateOption
}

func (c ReActConfig) withDefaults() ReActConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ParallelTools <= 0 {
		c.ParallelTools = DefaultParallelTools
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	return c
}

// ReActCycle: шаблон ReAct цикла: модель рассуждает, вызывает инструменты,
// получает их результаты и повторяет, пока не даст финальный ответ или не
// исчерпает лимит итераций.
//
// ReActCycle иммутабелен: всё состояние выполнения живёт в ChainContext,
// который создаётся на каждый Execute.
type ReActCycle struct {
	provider  llm.Provider
	registry  *tools.Registry
	config    ReActConfig
	observers observerList
}

// NewReActCycle создаёт цикл над провайдером и реестром инструментов.
func NewReActCycle(provider llm.Provider, registry *tools.Registry, cfg ReActConfig) *ReActCycle {
	return &ReActCycle{
		provider: provider,
		registry: registry,
		config:   cfg.withDefaults(),
	}
}

// WithObservers возвращает копию цикла с дополнительными наблюдателями.
func (c *ReActCycle) WithObservers(observers ...ExecutionObserver) *ReActCycle {
	cp := *c
	cp.observers = append(append(observerList(nil), c.observers...), observers...)
	return &cp
}

// Config возвращает эффективную конфигурацию.
func (c *ReActCycle) Config() ReActConfig {
	return c.config
}

// Execute выполняет один ход.
//
// При исчерпании лимита возвращает частичный ответ с SignalIterationLimit
// и nil ошибкой; см. ChainOutput.Err. Ошибка возвращается только если
// упала модель или ход отменён.
func (c *ReActCycle) Execute(ctx context.Context, input ChainInput) (ChainOutput, error) {
	start := time.Now()
	chainCtx := NewChainContext(input, c.config.SystemPrompt)

	llmStep := &LLMInvocationStep{
		provider: c.provider,
		registry: c.registry,
		opts:     c.config.GenerateOptions,
		observer: c.observers,
	}
	toolStep := &ToolExecutionStep{
		registry:       c.registry,
		parallel:       c.config.ParallelTools,
		defaultTimeout: c.config.ToolTimeout,
		timeouts:       c.config.ToolTimeouts,
		observer:       c.observers,
	}

	c.observers.OnStart(ctx, input)

	finish := func(signal ExecutionSignal, result string, err error) (ChainOutput, error) {
		out := ChainOutput{
			Result:      result,
			Iterations:  chainCtx.Iteration(),
			Duration:    time.Since(start),
			FinalState:  chainCtx.Messages(),
			ToolResults: chainCtx.ToolResults(),
			Signal:      signal,
		}
		c.observers.OnFinish(ctx, out, err)
		return out, err
	}

	for chainCtx.Iteration() < c.config.MaxIterations {
		if err := ctx.Err(); err != nil {
			return finish(SignalError, "", err)
		}
		iteration := chainCtx.NextIteration()
		c.observers.OnIterationStart(ctx, iteration, c.config.MaxIterations)

		res := llmStep.Execute(ctx, chainCtx)
		if res.Action == ActionError {
			return finish(SignalError, "", res.Error)
		}
		if res.Action == ActionBreak {
			c.observers.OnIterationEnd(ctx, iteration)
			last, _ := chainCtx.LastMessage()
			return finish(SignalFinalAnswer, last.Content, nil)
		}

		res = toolStep.Execute(ctx, chainCtx)
		if res.Action == ActionError {
			return finish(SignalError, "", res.Error)
		}
		c.observers.OnIterationEnd(ctx, iteration)
	}

	return finish(SignalIterationLimit, chainCtx.PartialAnswer(), nil)
}

var _ Chain = (*ReActCycle)(nil)
