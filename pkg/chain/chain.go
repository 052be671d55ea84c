// Package chain реализует цикл агента (ReAct) и типизированные пайплайны.
//
// Chain компонует поведение из простых шагов (Step): вызов модели,
// выполнение инструментов. Pipeline описывает цепочки вида
// prompt → model → parser как последовательность типизированных стадий.
package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
)

// Chain выполняет один пользовательский ход.
//
// Реализации иммутабельны после сборки и безопасны для параллельного Execute.
type Chain interface {
	Execute(ctx context.Context, input ChainInput) (ChainOutput, error)
}

// ChainInput: входные данные одного хода.
type ChainInput struct {
	// UserQuery: текст пользователя.
	UserQuery string

	// History: снимок истории разговора на начало хода.
	History []llm.Message

	// Context: дополнительные фрагменты (например, найденные retrieval-ом),
	// которые подмешиваются системным сообщением.
	Context []string

	// Images: data URI изображений, прикреплённых к запросу.
	Images []string
}

// ChainOutput: результат выполнения хода.
type ChainOutput struct {
	// Result: финальный (или частичный) ответ агента.
	Result string

	// Iterations: сколько итераций было выполнено.
	Iterations int

	// Duration: общее время выполнения.
	Duration time.Duration

	// FinalState: сообщения хода: user, ответы модели и результаты инструментов.
	FinalState []llm.Message

	// ToolResults: все вызовы инструментов хода в порядке запроса.
	ToolResults []ToolResult

	// Signal: как завершился цикл.
	Signal ExecutionSignal
}

// Err возвращает ErrIterationCapExceeded, если ответ частичный.
//
// Execute в этом случае возвращает nil: частичный ответ валиден,
// а вызывающий код сам решает, считать ли это ошибкой.
func (o ChainOutput) Err() error {
	if o.Signal == SignalIterationLimit {
		return fmt.Errorf("%w after %d iterations", apperr.ErrIterationCapExceeded, o.Iterations)
	}
	return nil
}

// Partial сообщает, что ответ собран после исчерпания лимита итераций.
func (o ChainOutput) Partial() bool {
	return o.Signal == SignalIterationLimit
}
