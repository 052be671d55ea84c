package chain

import (
	"context"

	"github.com/ilkoid/tripmate/pkg/events"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// IterationObserver получает события внутри итерации.
//
// OnToolCall вызывается из горутин параллельных tool calls,
// поэтому реализации должны быть thread-safe.
type IterationObserver interface {
	OnThinking(ctx context.Context, content string)
	OnToolCall(ctx context.Context, call llm.ToolCall)
	OnToolResult(ctx context.Context, result ToolResult)
}

// ExecutionObserver наблюдает за жизненным циклом выполнения.
//
// Контракт: OnStart один раз, OnIterationStart/OnIterationEnd на каждую
// итерацию, OnFinish один раз (и при успехе, и при ошибке).
type ExecutionObserver interface {
	IterationObserver
	OnStart(ctx context.Context, input ChainInput)
	OnIterationStart(ctx context.Context, iteration, max int)
	OnIterationEnd(ctx context.Context, iteration int)
	OnFinish(ctx context.Context, output ChainOutput, err error)
}

// NopObserver ничего не делает. Удобен для встраивания.
type NopObserver struct{}

func (NopObserver) OnThinking(context.Context, string) {}
func (NopObserver) OnToolCall(context.Context, llm.ToolCall) {}
func (NopObserver) OnToolResult(context.Context, ToolResult) {}
func (NopObserver) OnStart(context.Context, ChainInput) {}
func (NopObserver) OnIterationStart(context.Context, int, int) {}
func (NopObserver) OnIterationEnd(context.Context, int) {}
func (NopObserver) OnFinish(context.Context, ChainOutput, error) {}

// observerList рассылает уведомления всем наблюдателям по порядку.
type observerList []ExecutionObserver

func (l observerList) OnThinking(ctx context.Context, content string) {
	for _, o := range l {
		o.OnThinking(ctx, content)
	}
}

func (l observerList) OnToolCall(ctx context.Context, call llm.ToolCall) {
	for _, o := range l {
		o.OnToolCall(ctx, call)
	}
}

func (l observerList) OnToolResult(ctx context.Context, result ToolResult) {
	for _, o := range l {
		o.OnToolResult(ctx, result)
	}
}

func (l observerList) OnStart(ctx context.Context, input ChainInput) {
	for _, o := range l {
		o.OnStart(ctx, input)
	}
}

func (l observerList) OnIterationStart(ctx context.Context, iteration, max int) {
	for _, o := range l {
		o.OnIterationStart(ctx, iteration, max)
	}
}

func (l observerList) OnIterationEnd(ctx context.Context, iteration int) {
	for _, o := range l {
		o.OnIterationEnd(ctx, iteration)
	}
}

func (l observerList) OnFinish(ctx context.Context, output ChainOutput, err error) {
	for _, o := range l {
		o.OnFinish(ctx, output, err)
	}
}

// EmitterObserver транслирует жизненный цикл в events.Emitter (для TUI).
type EmitterObserver struct {
	emitter events.Emitter
}

// NewEmitterObserver создаёт EmitterObserver. nil emitter заменяется на events.Nop.
func NewEmitterObserver(emitter events.Emitter) *EmitterObserver {
	if emitter == nil {
		emitter = events.Nop{}
	}
	return &EmitterObserver{emitter: emitter}
}

func (o *EmitterObserver) OnStart(ctx context.Context, input ChainInput) {
	o.emitter.Emit(ctx, events.New(events.EventThinking, events.ThinkingData{Query: input.UserQuery}))
}

func (o *EmitterObserver) OnIterationStart(ctx context.Context, iteration, max int) {
	o.emitter.Emit(ctx, events.New(events.EventIteration, events.IterationData{Iteration: iteration, Max: max}))
}

func (o *EmitterObserver) OnIterationEnd(context.Context, int) {}

func (o *EmitterObserver) OnThinking(ctx context.Context, content string) {
	o.emitter.Emit(ctx, events.New(events.EventThinking, events.ThinkingData{Query: content}))
}

func (o *EmitterObserver) OnToolCall(ctx context.Context, call llm.ToolCall) {
	o.emitter.Emit(ctx, events.New(events.EventToolCall, events.ToolCallData{ToolName: call.Name, Args: call.Args}))
}

func (o *EmitterObserver) OnToolResult(ctx context.Context, r ToolResult) {
	o.emitter.Emit(ctx, events.New(events.EventToolResult, events.ToolResultData{
		ToolName: r.Name,
		Result:   r.Result,
		Success:  r.Success,
		Duration: r.Duration,
	}))
}

// OnFinish отправляет EventMessage и EventDone, либо EventError.
//
// Использует context.Background: ход мог быть отменён, а UI всё равно
// должен узнать о завершении.
func (o *EmitterObserver) OnFinish(_ context.Context, output ChainOutput, err error) {
	ctx := context.Background()
	if err != nil {
		o.emitter.Emit(ctx, events.New(events.EventError, events.ErrorData{Err: err}))
		return
	}
	o.emitter.Emit(ctx, events.New(events.EventMessage, events.MessageData{
		Content:   output.Result,
		Truncated: output.Partial(),
	}))
	o.emitter.Emit(ctx, events.New(events.EventDone, events.MessageData{Content: output.Result}))
}

// LoggingObserver пишет ход выполнения в структурированный лог.
type LoggingObserver struct{}

func (LoggingObserver) OnStart(_ context.Context, input ChainInput) {
	utils.Debug("chain started", "query_len", len(input.UserQuery), "history", len(input.History))
}

func (LoggingObserver) OnIterationStart(_ context.Context, iteration, max int) {
	utils.Debug("iteration started", "iteration", iteration, "max", max)
}

func (LoggingObserver) OnIterationEnd(_ context.Context, iteration int) {
	utils.Debug("iteration finished", "iteration", iteration)
}

func (LoggingObserver) OnThinking(context.Context, string) {}

func (LoggingObserver) OnToolCall(_ context.Context, call llm.ToolCall) {
	utils.Info("tool call", "tool", call.Name, "args", call.Args)
}

func (LoggingObserver) OnToolResult(_ context.Context, r ToolResult) {
	utils.Info("tool result", "tool", r.Name, "success", r.Success, "duration", r.Duration)
}

func (LoggingObserver) OnFinish(_ context.Context, output ChainOutput, err error) {
	if err != nil {
		utils.Error("chain failed", "error", err, "iterations", output.Iterations)
		return
	}
	utils.Info("chain finished",
		"iterations", output.Iterations,
		"signal", output.Signal.String(),
		"duration", output.Duration,
	)
}

var (
	_ ExecutionObserver = NopObserver{}
	_ ExecutionObserver = (*EmitterObserver)(nil)
	_ ExecutionObserver = LoggingObserver{}
	_ ExecutionObserver = observerList(nil)
)
