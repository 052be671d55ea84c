package std

import (
	"context"
	"fmt"

	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/routes"
	"github.com/ilkoid/tripmate/pkg/state"
	"github.com/ilkoid/tripmate/pkg/tools"
)

// SaveRouteTool сохраняет маршрут из выбранных мест.
type SaveRouteTool struct {
	session     *state.Session
	description string
}

// NewSaveRouteTool создаёт инструмент save_route.
func NewSaveRouteTool(session *state.Session, cfg config.ToolConfig) *SaveRouteTool {
	return &SaveRouteTool{
		session:     session,
		description: describe(cfg, "Save a route the user agreed on: an ordered list of places with coordinates."),
	}
}

// Definition возвращает определение инструмента.
func (t *SaveRouteTool) Definition() tools.ToolDefinition {
	stop := tools.ObjectSchema(map[string]any{
		"place_id": tools.Prop("string", "Google place_id"),
		"name":     tools.Prop("string", "Place name"),
		"address":  tools.Prop("string", "Address"),
		"lat":      tools.Prop("number", "Latitude"),
		"lng":      tools.Prop("number", "Longitude"),
	}, "name", "lat", "lng")

	return definition("save_route", t.description, map[string]any{
		"name": tools.Prop("string", "Short route name, for example 'Day 1 in Gyeongju'"),
		"stops": map[string]any{
			"type":        "array",
			"items":       stop,
			"description": "Stops in visiting order",
		},
	}, "name", "stops")
}

// Execute выполняет инструмент.
func (t *SaveRouteTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Name  string        `json:"name"`
		Stops []routes.Stop `json:"stops"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("name", args.Name); err != nil {
		return "", err
	}

	saved, err := t.session.SaveRoute(ctx, args.Name, args.Stops)
	if err != nil {
		return "", fmt.Errorf("save route: %w", err)
	}
	return toJSON(saved)
}

// ListRoutesTool возвращает маршруты, сохранённые в этой сессии.
type ListRoutesTool struct {
	session     *state.Session
	description string
}

// NewListRoutesTool создаёт инструмент get_routes.
func NewListRoutesTool(session *state.Session, cfg config.ToolConfig) *ListRoutesTool {
	return &ListRoutesTool{
		session:     session,
		description: describe(cfg, "List routes saved earlier in this conversation."),
	}
}

// Definition возвращает определение инструмента.
func (t *ListRoutesTool) Definition() tools.ToolDefinition {
	return definition("get_routes", t.description, map[string]any{})
}

// Execute выполняет инструмент.
func (t *ListRoutesTool) Execute(ctx context.Context, _ string) (string, error) {
	list, err := t.session.Routes(ctx)
	if err != nil {
		return "", fmt.Errorf("list routes: %w", err)
	}
	if len(list) == 0 {
		return "", nil
	}
	return toJSON(list)
}
