// Package tui: терминальный чат с агентом на Bubble Tea.
//
// Ответ агента приходит через agent.Runner, а ход выполнения (итерации,
// вызовы инструментов) через events.Subscriber. Модель не знает, как
// устроен агент, и видит только эти два порта.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/tripmate/pkg/agent"
	"github.com/ilkoid/tripmate/pkg/app"
	"github.com/ilkoid/tripmate/pkg/events"
	"github.com/ilkoid/tripmate/pkg/session"
)

const (
	userPrefix     = "You: "
	defaultTimeout = 5 * time.Minute
	toolTextLimit  = 160
)

// replyMsg: завершение хода.
type replyMsg struct {
	reply session.Reply
	err   error
}

// savedMsg: результат сохранения ленты.
type savedMsg struct {
	path string
	err  error
}

// Model: состояние чата.
type Model struct {
	ctx    context.Context
	runner agent.Runner
	sub    events.Subscriber

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model
	help     help.Model
	keys     KeyMap
	styles   styles

	title   string
	timeout time.Duration
	saveDir string
	now     func() time.Time

	entries   []entry
	busy      bool
	status    string
	cancel    context.CancelFunc
	showTools bool
	showHelp  bool

	ready         bool
	width, height int
}

// NewModel создаёт модель. sub может быть nil: тогда ход показывается
// только итоговым ответом.
func NewModel(ctx context.Context, runner agent.Runner, sub events.Subscriber, opts ...Option) *Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about places, routes, weather..."
	ta.Prompt = "┃ "
	ta.CharLimit = 1000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &Model{
		ctx:      ctx,
		runner:   runner,
		sub:      sub,
		textarea: ta,
		spinner:  sp,
		help:     help.New(),
		keys:     DefaultKeyMap(),
		styles:   newStyles(GetColorScheme("default")),
		title:    "TripMate",
		timeout:  defaultTimeout,
		saveDir:  ".",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.entries = append(m.entries, entry{kind: entrySystem, text: "Type a question and press Enter. Ctrl+H shows keys."})
	return m
}

// Init реализует tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, ReceiveEventCmd(m.sub))
}

// Update реализует tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EventMsg:
		m.handleEvent(events.Event(msg))
		return m, ReceiveEventCmd(m.sub)

	case eventsClosedMsg:
		m.sub = nil
		return m, nil

	case replyMsg:
		m.finishTurn(msg)
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.appendEntry(entryError, "Error: "+msg.err.Error())
		} else {
			m.appendEntry(entrySystem, "Transcript saved to "+msg.path)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.busy && m.cancel != nil {
			m.cancel()
			m.status = "stopping"
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleHelp):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		if m.ready {
			m.resize(m.width, m.height)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleTools):
		m.showTools = !m.showTools
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		m.viewport.ScrollUp(max(1, m.viewport.Height/2))
		return m, nil

	case key.Matches(msg, m.keys.ScrollDown):
		m.viewport.ScrollDown(max(1, m.viewport.Height/2))
		return m, nil

	case key.Matches(msg, m.keys.SaveToFile):
		entries := append([]entry(nil), m.entries...)
		dir, title, now := m.saveDir, m.title, m.now()
		return m, func() tea.Msg {
			path, err := saveTranscript(dir, title, entries, now)
			return savedMsg{path: path, err: err}
		}

	case key.Matches(msg, m.keys.ConfirmInput):
		if m.busy {
			return m, nil
		}
		query := strings.TrimSpace(m.textarea.Value())
		if query == "" {
			return m, nil
		}
		m.textarea.Reset()
		m.appendEntry(entryUser, userPrefix+query)
		return m, m.ask(query)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// ask запускает ход в goroutine Bubble Tea; результат придёт как replyMsg.
func (m *Model) ask(query string) tea.Cmd {
	ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
	m.busy = true
	m.status = "thinking"
	m.cancel = cancel

	runner := m.runner
	return func() tea.Msg {
		defer cancel()
		reply, err := runner.Ask(ctx, session.Request{Query: query})
		return replyMsg{reply: reply, err: err}
	}
}

func (m *Model) finishTurn(msg replyMsg) {
	m.busy = false
	m.status = ""
	m.cancel = nil

	switch {
	case errors.Is(msg.err, context.Canceled):
		m.appendEntry(entrySystem, "Stopped.")
	case msg.err != nil:
		m.appendEntry(entryError, "Error: "+app.HumanError(msg.err))
	default:
		m.appendEntry(entryAI, msg.reply.Text)
		if msg.reply.Partial {
			m.appendEntry(entrySystem, "(answer is incomplete: iteration limit reached)")
		}
	}
}

// handleEvent показывает ход выполнения. Итоговый ответ и ошибка
// приходят через replyMsg, поэтому EventDone и EventError только
// обновляют статус.
func (m *Model) handleEvent(e events.Event) {
	switch data := e.Data.(type) {
	case events.IterationData:
		m.status = fmt.Sprintf("step %d/%d", data.Iteration, data.Max)
	case events.ToolCallData:
		m.status = "calling " + data.ToolName
		m.appendEntry(entryToolCall, fmt.Sprintf("→ %s %s", data.ToolName, truncate(oneLine(data.Args), toolTextLimit)))
	case events.ToolResultData:
		outcome := "ok"
		if !data.Success {
			outcome = "failed"
		}
		m.appendEntry(entryToolResult, fmt.Sprintf("← %s %s (%s) %s",
			data.ToolName, outcome, data.Duration.Round(time.Millisecond), truncate(oneLine(data.Result), toolTextLimit)))
	}
	if e.Type == events.EventDone || e.Type == events.EventError {
		m.status = "finishing"
	}
}

func (m *Model) appendEntry(kind entryKind, text string) {
	m.entries = append(m.entries, entry{kind: kind, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	refreshViewport(&m.viewport, render(m.entries, m.styles, m.viewport.Width, m.showTools), shouldGotoBottom(m.viewport))
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height

	helpHeight := 1
	if m.showHelp {
		helpHeight = len(m.keys.FullHelp()) + 1
	}
	// статус + разделитель + поле ввода + помощь
	vpHeight := height - 2 - m.textarea.Height() - helpHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	wasAtBottom := !m.ready || shouldGotoBottom(m.viewport)
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.textarea.SetWidth(width)
	m.help.Width = width
	refreshViewport(&m.viewport, render(m.entries, m.styles, width, m.showTools), wasAtBottom)
}

// stop отменяет незавершённый ход.
func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

// View реализует tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	state := "ready"
	if m.busy {
		state = m.spinner.View() + " " + m.status
	}
	header := m.styles.status.Width(m.width).Render(" " + m.title + " | " + state)

	return strings.Join([]string{
		header,
		m.viewport.View(),
		m.styles.divider.Render(strings.Repeat("─", m.width)),
		m.textarea.View(),
		m.help.View(m.keys),
	}, "\n")
}
