package routes

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore держит маршруты в памяти процесса.
type MemoryStore struct {
	mu     sync.RWMutex
	routes map[string][]Route
	now    func() time.Time
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		routes: make(map[string][]Route),
		now:    time.Now,
	}
}

// Save добавляет маршрут в конец списка сессии.
func (s *MemoryStore) Save(ctx context.Context, sessionID string, r Route) (Route, error) {
	if sessionID == "" {
		return Route{}, errors.New("routes: session id is required")
	}
	r = prepare(sessionID, r, s.now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[sessionID] = append(s.routes[sessionID], cloneRoute(r))
	return r, nil
}

// List возвращает копию маршрутов сессии.
func (s *MemoryStore) List(ctx context.Context, sessionID string) ([]Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.routes[sessionID]
	out := make([]Route, len(stored))
	for i, r := range stored {
		out[i] = cloneRoute(r)
	}
	return out, nil
}

func prepare(sessionID string, r Route, now func() time.Time) Route {
	r.SessionID = sessionID
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now().UTC()
	}
	return r
}

func cloneRoute(r Route) Route {
	r.Stops = append([]Stop(nil), r.Stops...)
	return r
}
