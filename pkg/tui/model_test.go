package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/events"
	"github.com/ilkoid/tripmate/pkg/session"
)

type fakeRunner struct {
	reply session.Reply
	err   error
	got   []string
}

func (r *fakeRunner) Ask(_ context.Context, req session.Request) (session.Reply, error) {
	r.got = append(r.got, req.Query)
	return r.reply, r.err
}

func newTestModel(t *testing.T, r *fakeRunner, opts ...Option) *Model {
	t.Helper()
	m := NewModel(context.Background(), r, nil, opts...)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	require.True(t, m.ready)
	return m
}

// send вводит текст, жмёт Enter и доставляет результат хода в модель.
func send(t *testing.T, m *Model, text string) {
	t.Helper()
	m.textarea.SetValue(text)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	m.Update(cmd())
}

func kinds(m *Model) []entryKind {
	out := make([]entryKind, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.kind)
	}
	return out
}

func TestModel_AskShowsAnswer(t *testing.T) {
	r := &fakeRunner{reply: session.Reply{Text: "Try the fish market."}}
	m := newTestModel(t, r)

	send(t, m, "  dinner nearby?  ")

	assert.Equal(t, []string{"dinner nearby?"}, r.got)
	assert.False(t, m.busy)
	assert.Empty(t, m.textarea.Value())
	assert.Equal(t, []entryKind{entrySystem, entryUser, entryAI}, kinds(m))
	assert.Contains(t, m.View(), "Try the fish market.")
}

func TestModel_EmptyInputIsIgnored(t *testing.T) {
	m := newTestModel(t, &fakeRunner{})
	m.textarea.SetValue("   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
}

func TestModel_PartialAndErrors(t *testing.T) {
	r := &fakeRunner{reply: session.Reply{Text: "half", Partial: true}}
	m := newTestModel(t, r)
	send(t, m, "plan a day")
	assert.Contains(t, m.entries[len(m.entries)-1].text, "iteration limit reached")

	r.err = apperr.NotFound("no places")
	send(t, m, "again")
	last := m.entries[len(m.entries)-1]
	assert.Equal(t, entryError, last.kind)
	assert.Contains(t, last.text, "nothing found")

	r.err = context.Canceled
	send(t, m, "stop me")
	assert.Equal(t, "Stopped.", m.entries[len(m.entries)-1].text)
}

func TestModel_ToolEvents(t *testing.T) {
	m := newTestModel(t, &fakeRunner{})

	m.Update(EventMsg(events.New(events.EventIteration, events.IterationData{Iteration: 2, Max: 10})))
	assert.Equal(t, "step 2/10", m.status)

	m.Update(EventMsg(events.New(events.EventToolCall, events.ToolCallData{ToolName: "nearby_places", Args: "{\n\"lat\": 35.1\n}"})))
	m.Update(EventMsg(events.New(events.EventToolResult, events.ToolResultData{
		ToolName: "nearby_places", Result: `[{"name":"Cafe"}]`, Success: true, Duration: 120 * time.Millisecond,
	})))

	require.Equal(t, []entryKind{entrySystem, entryToolCall, entryToolResult}, kinds(m))
	assert.Equal(t, `→ nearby_places { "lat": 35.1 }`, m.entries[1].text)
	assert.NotContains(t, m.viewport.View(), "Cafe")

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.Contains(t, m.viewport.View(), "Cafe")
}

func TestModel_QuitCancelsTurn(t *testing.T) {
	m := newTestModel(t, &fakeRunner{})
	m.textarea.SetValue("hello")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.cancel)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
	assert.Nil(t, m.cancel)
}

func TestModel_SaveTranscript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	m := newTestModel(t, &fakeRunner{reply: session.Reply{Text: "Gukje market"}}, WithSaveDir(dir), WithTitle("Busan trip"))
	send(t, m, "where to shop?")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	msg := cmd().(savedMsg)
	require.NoError(t, msg.err)

	data, err := os.ReadFile(msg.path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Busan trip"))
	assert.Contains(t, text, "**You:** where to shop?")
	assert.Contains(t, text, "Gukje market")
}

func TestOptions_IgnoreEmptyValues(t *testing.T) {
	m := newTestModel(t, &fakeRunner{}, WithPlaceholder("Nearby recommendations and routes"), WithSaveDir(""))
	assert.Equal(t, "Nearby recommendations and routes", m.textarea.Placeholder)
	assert.Equal(t, ".", m.saveDir)

	m = newTestModel(t, &fakeRunner{}, WithPlaceholder(""))
	assert.NotEmpty(t, m.textarea.Placeholder)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "Пус...", truncate("Пусан", 3))
}

func TestRun_NilRunner(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, nil))
}
