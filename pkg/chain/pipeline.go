package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// Stage: типизированная стадия пайплайна: потребляет I, производит O.
type Stage[I, O any] interface {
	Name() string
	Run(ctx context.Context, in I) (O, error)
}

// StageFunc: стадия из функции.
type StageFunc[I, O any] struct {
	StageName string
	Fn        func(ctx context.Context, in I) (O, error)
}

// Name возвращает имя стадии.
func (s StageFunc[I, O]) Name() string { return s.StageName }

// Run вызывает Fn.
func (s StageFunc[I, O]) Run(ctx context.Context, in I) (O, error) { return s.Fn(ctx, in) }

// NewStage оборачивает функцию в Stage.
func NewStage[I, O any](name string, fn func(ctx context.Context, in I) (O, error)) Stage[I, O] {
	return StageFunc[I, O]{StageName: name, Fn: fn}
}

// Pipe соединяет две стадии: выход first становится входом second.
// Ошибка любой стадии прерывает пайплайн и оборачивается её именем.
func Pipe[A, B, C any](first Stage[A, B], second Stage[B, C]) Stage[A, C] {
	return NewStage(first.Name()+" | "+second.Name(), func(ctx context.Context, in A) (C, error) {
		var zero C
		mid, err := first.Run(ctx, in)
		if err != nil {
			return zero, fmt.Errorf("stage %s: %w", first.Name(), err)
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		out, err := second.Run(ctx, mid)
		if err != nil {
			return zero, fmt.Errorf("stage %s: %w", second.Name(), err)
		}
		return out, nil
	})
}

// Pipe3 соединяет три стадии, например prompt → model → parser.
func Pipe3[A, B, C, D any](first Stage[A, B], second Stage[B, C], third Stage[C, D]) Stage[A, D] {
	return Pipe(Pipe(first, second), third)
}

// Parallel запускает стадии одновременно на одном входе и собирает результаты
// по именам. Первая ошибка отменяет остальные стадии.
func Parallel[I, O any](stages map[string]Stage[I, O]) Stage[I, map[string]O] {
	names := make([]string, 0, len(stages))
	for name := range stages {
		names = append(names, name)
	}
	sort.Strings(names)

	return NewStage("parallel("+strings.Join(names, ",")+")", func(ctx context.Context, in I) (map[string]O, error) {
		var mu sync.Mutex
		out := make(map[string]O, len(stages))

		g, gctx := errgroup.WithContext(ctx)
		for _, name := range names {
			stage := stages[name]
			g.Go(func() error {
				res, err := stage.Run(gctx, in)
				if err != nil {
					return fmt.Errorf("stage %s: %w", name, err)
				}
				mu.Lock()
				out[name] = res
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// AsStage представляет Chain стадией пайплайна.
func AsStage(name string, c Chain) Stage[ChainInput, ChainOutput] {
	return NewStage(name, c.Execute)
}

// ModelStage: стадия вызова модели.
func ModelStage(provider llm.Provider, opts ...llm.GenerateOption) Stage[[]llm.Message, llm.Message] {
	return NewStage("model", func(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
		return provider.Generate(ctx, msgs, opts...)
	})
}

// TextParser возвращает текст ответа модели без обрамляющих пробелов.
func TextParser() Stage[llm.Message, string] {
	return NewStage("text_parser", func(_ context.Context, msg llm.Message) (string, error) {
		return strings.TrimSpace(msg.Content), nil
	})
}

// ParseJSON разбирает JSON из ответа модели в T и проверяет его validate.
//
// Markdown-обёртки снимаются; если в тексте есть посторонние слова,
// берётся первый сбалансированный JSON объект. Любое несоответствие
// возвращается как ParseFailure, а не как пустой результат.
func ParseJSON[T any](content string, validate func(T) error) (T, error) {
	var v, zero T
	raw := utils.CleanJsonBlock(content)
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		extracted := utils.ExtractJSON(content)
		if extracted == "" {
			return zero, apperr.ParseFailure("model output is not JSON: %v", err)
		}
		var retry T
		if err := json.Unmarshal([]byte(extracted), &retry); err != nil {
			return zero, apperr.ParseFailure("model output is not valid JSON: %v", err)
		}
		v = retry
	}
	if validate != nil {
		if err := validate(v); err != nil {
			return zero, apperr.ParseFailure("model output does not match schema: %v", err)
		}
	}
	return v, nil
}

// JSONParser: стадия ParseJSON.
func JSONParser[T any](validate func(T) error) Stage[llm.Message, T] {
	return NewStage("json_parser", func(_ context.Context, msg llm.Message) (T, error) {
		return ParseJSON(msg.Content, validate)
	})
}
