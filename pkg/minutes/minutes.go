// Package minutes ведёт протокол встречи: распознаёт аудиозаписи, копит
// общую расшифровку и по запросу добавляет к протоколу краткий итог.
package minutes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/prompt"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// ErrEmptyTranscript: итог запрошен до первой расшифровки.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Config: настройки Recorder.
type Config struct {
	Language string             // язык итога, по умолчанию English
	Prompt   *prompt.PromptFile // nil: встроенный summarize_minutes
}

// Recorder копит расшифровку и итоги одной встречи. Безопасен для
// конкурентного использования.
type Recorder struct {
	transcriber llm.Transcriber
	summarize   chain.Stage[string, string]

	mu         sync.Mutex
	transcript strings.Builder
	summaries  []string
}

// NewRecorder создаёт Recorder: расшифровка через transcriber, итог
// пайплайном prompt → model → text.
func NewRecorder(transcriber llm.Transcriber, provider llm.Provider, cfg Config) *Recorder {
	pf := cfg.Prompt
	if pf == nil {
		pf = prompt.MustDefault(prompt.SummarizeMinutes)
	}
	language := cfg.Language
	if language == "" {
		language = "English"
	}

	render := chain.NewStage("minutes_prompt", func(_ context.Context, notes string) ([]llm.Message, error) {
		return pf.RenderMessages(map[string]any{"Notes": notes, "Language": language})
	})
	return &Recorder{
		transcriber: transcriber,
		summarize:   chain.Pipe3(render, chain.ModelStage(provider, pf.Options()...), chain.TextParser()),
	}
}

// Add распознаёт аудиофайл и дописывает текст в расшифровку отдельной строкой.
// Пустой результат не меняет расшифровку.
func (r *Recorder) Add(ctx context.Context, path string) (string, error) {
	text, err := r.transcriber.Transcribe(ctx, path)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		utils.Warn("Recording has no speech", "file", path)
		return "", nil
	}

	r.mu.Lock()
	r.transcript.WriteString(text)
	r.transcript.WriteString("\n")
	r.mu.Unlock()
	return text, nil
}

// Transcript возвращает всю расшифровку.
func (r *Recorder) Transcript() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transcript.String()
}

// Summarize подводит итог по всей текущей расшифровке и добавляет его
// к списку итогов. Повторный вызов после новых записей даёт ещё один итог.
func (r *Recorder) Summarize(ctx context.Context) (string, error) {
	notes := r.Transcript()
	if strings.TrimSpace(notes) == "" {
		return "", ErrEmptyTranscript
	}

	summary, err := r.summarize.Run(ctx, notes)
	if err != nil {
		return "", fmt.Errorf("summarize minutes: %w", err)
	}

	r.mu.Lock()
	r.summaries = append(r.summaries, summary)
	r.mu.Unlock()
	return summary, nil
}

// Summaries возвращает копию итогов в порядке создания.
func (r *Recorder) Summaries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.summaries...)
}

// FinalSummary склеивает все итоги через перевод строки.
func (r *Recorder) FinalSummary() string {
	return strings.Join(r.Summaries(), "\n")
}

// Document: текст для сохранения в файл.
func (r *Recorder) Document() string {
	return fmt.Sprintf("Transcript:\n%s\n\nFinal summary:\n%s", r.Transcript(), r.FinalSummary())
}

// Reset очищает расшифровку и итоги.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript.Reset()
	r.summaries = nil
}
