package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/tripmate/pkg/events"
)

// EventMsg: событие агента как сообщение Bubble Tea.
type EventMsg events.Event

// eventsClosedMsg приходит, когда канал событий закрыт.
type eventsClosedMsg struct{}

// ReceiveEventCmd возвращает Cmd, который ждёт одно событие из sub.
//
// Cmd выполняется в отдельной goroutine Bubble Tea, поэтому блокирующее
// чтение не мешает отрисовке. После обработки события Update должен
// снова вернуть ReceiveEventCmd, иначе чтение остановится.
func ReceiveEventCmd(sub events.Subscriber) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg(event)
	}
}
