package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// RecorderConfig: параметры Recorder.
type RecorderConfig struct {
	// Dir: каталог для файлов debug_*.json.
	Dir string

	// SessionID попадает в каждый трейс.
	SessionID string

	// MaxResultSize обрезает результаты инструментов (в рунах). 0: без ограничений.
	MaxResultSize int

	// Now для тестов; по умолчанию time.Now.
	Now func() time.Time
}

// Recorder: chain.ExecutionObserver, который пишет трейс каждого хода.
//
// Ходы одной сессии последовательны, но tool calls одной итерации
// выполняются параллельно, поэтому состояние под мьютексом.
type Recorder struct {
	cfg RecorderConfig

	mu        sync.Mutex
	trace     TurnTrace
	current   *Iteration
	iterStart time.Time
	visited   map[string]struct{}
	lastPath  string
}

var _ chain.ExecutionObserver = (*Recorder)(nil)

// NewRecorder создаёт Recorder и каталог для трейсов.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Dir == "" {
		cfg.Dir = "debug_logs"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create debug directory: %w", err)
	}
	return &Recorder{cfg: cfg}, nil
}

// LastPath возвращает путь к последнему записанному трейсу.
func (r *Recorder) LastPath() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPath
}

func (r *Recorder) OnStart(_ context.Context, input chain.ChainInput) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.cfg.Now()
	r.trace = TurnTrace{
		RunID:     now.Format("20060102_150405") + "_" + uuid.NewString()[:8],
		SessionID: r.cfg.SessionID,
		Timestamp: now,
		UserQuery: input.UserQuery,
		Context:   input.Context,
	}
	r.current = nil
	r.visited = make(map[string]struct{})
}

func (r *Recorder) OnIterationStart(_ context.Context, iteration, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &Iteration{Number: iteration}
	r.iterStart = r.cfg.Now()
}

func (r *Recorder) OnThinking(_ context.Context, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.Thinking = content
	}
}

func (r *Recorder) OnToolCall(context.Context, llm.ToolCall) {}

func (r *Recorder) OnToolResult(_ context.Context, res chain.ToolResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exec := ToolExecution{
		Name:     res.Name,
		Args:     res.Args,
		Duration: res.Duration.Milliseconds(),
		Success:  res.Success,
	}
	exec.Result, exec.ResultTruncated = truncateRunes(res.Result, r.cfg.MaxResultSize)
	if res.Error != nil {
		exec.Error = res.Error.Error()
		r.trace.Summary.Errors = append(r.trace.Summary.Errors, res.Name+": "+exec.Error)
	}

	r.visited[res.Name] = struct{}{}
	r.trace.Summary.TotalToolsExecuted++
	r.trace.Summary.TotalToolDuration += exec.Duration
	if r.current != nil {
		r.current.ToolsExecuted = append(r.current.ToolsExecuted, exec)
	}
}

func (r *Recorder) OnIterationEnd(context.Context, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return
	}
	r.current.Duration = r.cfg.Now().Sub(r.iterStart).Milliseconds()
	r.trace.Iterations = append(r.trace.Iterations, *r.current)
	r.current = nil
}

// OnFinish дописывает итог и сохраняет файл. Ошибка записи только логируется:
// трейс не должен ломать ход.
func (r *Recorder) OnFinish(_ context.Context, output chain.ChainOutput, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.trace.Iterations = append(r.trace.Iterations, *r.current)
		r.current = nil
	}
	r.trace.Duration = output.Duration.Milliseconds()
	r.trace.FinalResult = output.Result
	r.trace.Partial = output.Partial()
	if err != nil {
		r.trace.Error = err.Error()
	}
	for name := range r.visited {
		r.trace.Summary.VisitedTools = append(r.trace.Summary.VisitedTools, name)
	}
	sort.Strings(r.trace.Summary.VisitedTools)

	path, werr := r.write()
	if werr != nil {
		utils.Warn("Failed to write debug trace", "error", werr)
		return
	}
	r.lastPath = path
	utils.Debug("Debug trace saved", "path", path)
}

func (r *Recorder) write() (string, error) {
	data, err := json.MarshalIndent(r.trace, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal trace: %w", err)
	}
	path := filepath.Join(r.cfg.Dir, "debug_"+r.trace.RunID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	return path, nil
}

func truncateRunes(s string, limit int) (string, bool) {
	if limit <= 0 {
		return s, false
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s, false
	}
	return string(runes[:limit]) + "...", true
}
