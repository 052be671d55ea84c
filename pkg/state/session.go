// Package state хранит изменяемое состояние одной пользовательской сессии.
//
// Раньше список исключённых мест и сохранённые маршруты жили в глобальных
// переменных процесса. Теперь они принадлежат Session и передаются
// инструментам явно, поэтому две сессии не видят данных друг друга.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ilkoid/tripmate/pkg/routes"
)

// Location: последняя известная позиция пользователя.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Session: состояние сессии, общее для инструментов одного диалога.
//
// Thread-safe: инструменты одной итерации выполняются параллельно.
type Session struct {
	id     string
	routes routes.Store

	mu       sync.RWMutex
	excluded []string
	seen     map[string]struct{}
	location *Location
}

// NewSession создаёт состояние. Пустой id заменяется на UUID,
// nil store: на хранилище в памяти.
func NewSession(id string, store routes.Store) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if store == nil {
		store = routes.NewMemoryStore()
	}
	return &Session{
		id:     id,
		routes: store,
		seen:   make(map[string]struct{}),
	}
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string {
	return s.id
}

// AddExcluded добавляет place_id в список исключённых.
// Повторы и пустые значения игнорируются, порядок добавления сохраняется.
func (s *Session) AddExcluded(placeIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range placeIDs {
		if id == "" {
			continue
		}
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.excluded = append(s.excluded, id)
	}
}

// Excluded возвращает копию списка исключённых place_id.
func (s *Session) Excluded() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.excluded...)
}

// ResetExcluded очищает список исключённых мест.
func (s *Session) ResetExcluded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.excluded = nil
	s.seen = make(map[string]struct{})
}

// SetLocation запоминает позицию пользователя.
func (s *Session) SetLocation(lat, lng float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.location = &Location{Lat: lat, Lng: lng}
}

// Location возвращает позицию пользователя, если она известна.
func (s *Session) Location() (Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.location == nil {
		return Location{}, false
	}
	return *s.location, true
}

// SaveRoute сохраняет маршрут в хранилище сессии.
func (s *Session) SaveRoute(ctx context.Context, name string, stops []routes.Stop) (routes.Route, error) {
	if len(stops) == 0 {
		return routes.Route{}, fmt.Errorf("route %q has no stops", name)
	}
	return s.routes.Save(ctx, s.id, routes.Route{Name: name, Stops: stops})
}

// Routes возвращает маршруты сессии в порядке сохранения.
func (s *Session) Routes(ctx context.Context) ([]routes.Route, error) {
	return s.routes.List(ctx, s.id)
}
