// Package debug записывает трейсы ходов агента в JSON файлы.
//
// Каждый ход пишется в отдельный файл: запрос, итерации ReAct цикла, вызовы инструментов,
// итоговый ответ или ошибка. Включается флагом app.debug.
package debug

import "time"

// TurnTrace: полный трейс одного хода.
type TurnTrace struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	UserQuery string    `json:"user_query"`
	Context   []string  `json:"context,omitempty"`
	Duration  int64     `json:"duration_ms"`

	Iterations []Iteration `json:"iterations"`
	Summary    Summary     `json:"summary"`

	FinalResult string `json:"final_result,omitempty"`
	Partial     bool   `json:"partial,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Iteration: одна итерация ReAct цикла.
type Iteration struct {
	Number        int             `json:"iteration"`
	Duration      int64           `json:"duration_ms"`
	Thinking      string          `json:"thinking,omitempty"`
	ToolsExecuted []ToolExecution `json:"tools_executed,omitempty"`
}

// ToolExecution: выполнение одного инструмента.
type ToolExecution struct {
	Name            string `json:"name"`
	Args            string `json:"args,omitempty"`
	Result          string `json:"result,omitempty"`
	ResultTruncated bool   `json:"result_truncated,omitempty"`
	Duration        int64  `json:"duration_ms"`
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
}

// Summary: агрегаты по ходу.
type Summary struct {
	TotalToolsExecuted int      `json:"total_tools_executed"`
	TotalToolDuration  int64    `json:"total_tool_duration_ms"`
	Errors             []string `json:"errors,omitempty"`
	VisitedTools       []string `json:"visited_tools,omitempty"`
}
