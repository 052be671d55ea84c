package events

import (
	"context"
	"sync"
)

// ChanEmitter: реализация Emitter через буферизованный канал.
type ChanEmitter struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewChanEmitter создаёт ChanEmitter с буфером buffer (0: небуферизованный).
func NewChanEmitter(buffer int) *ChanEmitter {
	return &ChanEmitter{
		ch: make(chan Event, buffer),
	}
}

// Emit отправляет событие в канал.
//
// Блокируется пока есть место в буфере или читатель; отмена ctx прерывает
// ожидание. После Close события молча отбрасываются.
func (e *ChanEmitter) Emit(ctx context.Context, event Event) {
	// RLock держится на время отправки, чтобы Close не закрыл канал под нами
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.ch <- event:
	case <-ctx.Done():
	}
}

// Subscribe возвращает Subscriber поверх общего канала.
func (e *ChanEmitter) Subscribe() Subscriber {
	return &chanSubscriber{ch: e.ch}
}

// Close закрывает канал. Повторный вызов безопасен.
func (e *ChanEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// chanSubscriber реализует Subscriber.
type chanSubscriber struct {
	ch <-chan Event
}

// Events возвращает read-only канал событий.
func (s *chanSubscriber) Events() <-chan Event {
	return s.ch
}

// Close: no-op: канал общий и закрывается через ChanEmitter.Close().
func (s *chanSubscriber) Close() {}

var (
	_ Emitter    = (*ChanEmitter)(nil)
	_ Emitter    = Nop{}
	_ Subscriber = (*chanSubscriber)(nil)
)
