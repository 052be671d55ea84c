package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/tools"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// EmptyToolResult подставляется вместо пустого ответа инструмента.
// Пустой результат: валидный ответ "ничего не найдено", а не ошибка.
const EmptyToolResult = "No results."

// ToolResult: результат одного вызова инструмента.
type ToolResult struct {
	CallID   string
	Name     string
	Args     string
	Result   string
	Duration time.Duration
	Success  bool
	Error    error
}

// ToolExecutionStep: шаг выполнения tool calls последнего ответа модели.
//
// Вызовы одной итерации независимы и выполняются параллельно (не более
// parallel одновременно), у каждого свой таймаут. Результаты добавляются
// в ChainContext в том порядке, в котором их запросила модель.
// Ошибка инструмента не прерывает ход: она становится tool-сообщением
// вида "Error: ...".
type ToolExecutionStep struct {
	registry *tools.Registry

	parallel       int
	defaultTimeout time.Duration
	timeouts       map[string]time.Duration

	observer IterationObserver
}

// Name возвращает имя шага.
func (s *ToolExecutionStep) Name() string {
	return "tool_execution"
}

// Execute выполняет все tool calls последнего сообщения.
func (s *ToolExecutionStep) Execute(ctx context.Context, chainCtx *ChainContext) StepResult {
	last, ok := chainCtx.LastMessage()
	if !ok || len(last.ToolCalls) == 0 {
		return Continue()
	}

	calls := last.ToolCalls
	results := make([]ToolResult, len(calls))

	var g errgroup.Group
	if s.parallel > 0 {
		g.SetLimit(s.parallel)
	}
	for i, tc := range calls {
		g.Go(func() error {
			results[i] = s.executeToolCall(ctx, tc)
			return nil
		})
	}
	_ = g.Wait()

	// Отмена всего хода: единственная ошибка, прерывающая цикл.
	if err := ctx.Err(); err != nil {
		return Fail(fmt.Errorf("tool execution cancelled: %w", err))
	}

	for _, r := range results {
		chainCtx.AppendMessage(llm.Message{
			Role:       llm.RoleTool,
			Content:    r.Result,
			ToolCallID: r.CallID,
		})
		if s.observer != nil {
			s.observer.OnToolResult(ctx, r)
		}
	}
	chainCtx.AddToolResults(results)
	return Continue()
}

// executeToolCall выполняет один вызов с таймаутом.
func (s *ToolExecutionStep) executeToolCall(ctx context.Context, tc llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{CallID: tc.ID, Name: tc.Name, Args: tc.Args}

	if s.observer != nil {
		s.observer.OnToolCall(ctx, tc)
	}

	fail := func(err error) ToolResult {
		result.Duration = time.Since(start)
		result.Success = false
		result.Error = err
		result.Result = "Error: " + err.Error()
		utils.Warn("tool call failed", "tool", tc.Name, "error", err)
		return result
	}

	if s.registry == nil {
		return fail(fmt.Errorf("tool registry is not configured"))
	}
	tool, err := s.registry.Resolve(tc.Name)
	if err != nil {
		return fail(err)
	}

	args := utils.CleanJsonBlock(tc.Args)
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := tools.ValidateArgs(tool.Definition(), args); err != nil {
		return fail(err)
	}

	timeout := s.timeoutFor(tc.Name)
	toolCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execResult struct {
		output string
		err    error
	}
	done := make(chan execResult, 1)
	go func() {
		out, err := tool.Execute(toolCtx, args)
		done <- execResult{out, err}
	}()

	select {
	case <-toolCtx.Done():
		if errors.Is(toolCtx.Err(), context.DeadlineExceeded) {
			return fail(fmt.Errorf("tool %q exceeded timeout of %v", tc.Name, timeout))
		}
		return fail(toolCtx.Err())
	case res := <-done:
		if res.err != nil {
			return fail(res.err)
		}
		result.Duration = time.Since(start)
		result.Success = true
		result.Result = res.output
		if strings.TrimSpace(result.Result) == "" {
			result.Result = EmptyToolResult
		}
		return result
	}
}

func (s *ToolExecutionStep) timeoutFor(name string) time.Duration {
	if t, ok := s.timeouts[name]; ok && t > 0 {
		return t
	}
	if s.defaultTimeout > 0 {
		return s.defaultTimeout
	}
	return DefaultToolTimeout
}
