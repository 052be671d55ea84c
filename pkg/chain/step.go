package chain

import (
	"context"
	"fmt"
)

// NextAction определяет поведение цикла после выполнения Step.
type NextAction int

const (
	// ActionContinue: продолжить выполнение.
	ActionContinue NextAction = iota

	// ActionBreak: завершить цикл и вернуть результат.
	ActionBreak

	// ActionError: прервать выполнение с ошибкой.
	ActionError
)

// String возвращает строковое представление NextAction.
func (a NextAction) String() string {
	switch a {
	case ActionContinue:
		return "Continue"
	case ActionBreak:
		return "Break"
	case ActionError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// ExecutionSignal: причина завершения цикла.
type ExecutionSignal int

const (
	// SignalNone: цикл ещё не завершён.
	SignalNone ExecutionSignal = iota

	// SignalFinalAnswer: модель дала финальный ответ.
	SignalFinalAnswer

	// SignalIterationLimit: исчерпан лимит итераций, ответ частичный.
	SignalIterationLimit

	// SignalError: выполнение прервано ошибкой.
	SignalError
)

// String возвращает имя сигнала.
func (s ExecutionSignal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalFinalAnswer:
		return "final_answer"
	case SignalIterationLimit:
		return "iteration_limit"
	case SignalError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// StepResult: результат шага.
type StepResult struct {
	Action NextAction
	Signal ExecutionSignal
	Error  error
}

// Continue: шаг выполнен, цикл продолжается.
func Continue() StepResult { return StepResult{Action: ActionContinue} }

// Finish: шаг дал финальный ответ.
func Finish() StepResult { return StepResult{Action: ActionBreak, Signal: SignalFinalAnswer} }

// Fail: шаг завершился ошибкой.
func Fail(err error) StepResult {
	return StepResult{Action: ActionError, Signal: SignalError, Error: err}
}

// Step: атомарный шаг цикла.
//
// Step работает с ChainContext только через его thread-safe методы.
type Step interface {
	Name() string
	Execute(ctx context.Context, chainCtx *ChainContext) StepResult
}

// StepFunc: функциональная обёртка для простых шагов.
type StepFunc struct {
	StepName string
	Fn       func(ctx context.Context, chainCtx *ChainContext) StepResult
}

// Name возвращает имя шага.
func (s StepFunc) Name() string { return s.StepName }

// Execute вызывает Fn.
func (s StepFunc) Execute(ctx context.Context, chainCtx *ChainContext) StepResult {
	return s.Fn(ctx, chainCtx)
}
