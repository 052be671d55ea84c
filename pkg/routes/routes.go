// Package routes хранит маршруты, сохранённые пользователем в рамках сессии.
//
// Две реализации Store: в памяти процесса и в DynamoDB.
package routes

import (
	"context"
	"time"
)

// Stop: точка маршрута.
type Stop struct {
	PlaceID string  `json:"place_id"`
	Name    string  `json:"name"`
	Address string  `json:"address,omitempty"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Route: сохранённый маршрут.
type Route struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Name      string    `json:"name"`
	Stops     []Stop    `json:"stops"`
	CreatedAt time.Time `json:"created_at"`
}

// Store: хранилище маршрутов, разделённое по сессиям.
type Store interface {
	// Save сохраняет маршрут; пустые ID и CreatedAt заполняются.
	Save(ctx context.Context, sessionID string, r Route) (Route, error)

	// List возвращает маршруты сессии в порядке сохранения.
	List(ctx context.Context, sessionID string) ([]Route, error)
}
