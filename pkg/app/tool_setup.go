package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/tripmate/pkg/state"
	"github.com/ilkoid/tripmate/pkg/tools"
	"github.com/ilkoid/tripmate/pkg/tools/std"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// Имена инструментов, которые понимает SetupTools.
const (
	ToolCityTime        = "get_time_from_city"
	ToolCityWeather     = "get_weather_in_city"
	ToolSearchPlaces    = "search_places"
	ToolNearbyPlaces    = "nearby_places"
	ToolRecommendPlaces = "recommend_places"
	ToolPlaceDetails    = "place_details"
	ToolKeywordPlaces   = "find_places_by_keywords"
	ToolSaveRoute       = "save_route"
	ToolListRoutes      = "get_routes"
	ToolWikipedia       = "wikipedia_search"
	ToolWebSearch       = "web_search"
	ToolDocumentSearch  = "txt_search"
	ToolBusinessCard    = "extract_business_card"
	ToolListS3Files     = "list_s3_files"
)

// ToolFilter решает, регистрировать ли инструмент. nil: все включённые в config.yaml.
type ToolFilter func(name string) bool

// OnlyTools возвращает фильтр по списку имён.
func OnlyTools(names ...string) ToolFilter {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}
	return func(name string) bool { return allowed[name] }
}

// SetupTools создаёт реестр инструментов для одной сессии.
//
// Инструмент регистрируется, если он включён в config.yaml, проходит filter
// и его клиент создан. Инструменты мест и маршрутов получают st:
// исключённые места и маршруты у каждой сессии свои.
func (c *Components) SetupTools(ctx context.Context, st *state.Session, filter ToolFilter) (*tools.Registry, error) {
	registry := tools.NewRegistry()
	cfg := c.Config
	var registered, skipped []string

	register := func(name string, build func() (tools.Tool, error)) error {
		if !cfg.ToolEnabled(name) || (filter != nil && !filter(name)) {
			return nil
		}
		tool, err := build()
		if err != nil {
			return fmt.Errorf("failed to build tool '%s': %w", name, err)
		}
		if tool == nil {
			skipped = append(skipped, name)
			return nil
		}
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool '%s': %w", name, err)
		}
		registered = append(registered, name)
		return nil
	}

	steps := []struct {
		name  string
		build func() (tools.Tool, error)
	}{
		{ToolCityTime, func() (tools.Tool, error) {
			if c.Maps == nil {
				return nil, nil
			}
			return std.NewCityTimeTool(c.Maps, cfg.Tools[ToolCityTime]), nil
		}},
		{ToolCityWeather, func() (tools.Tool, error) {
			if c.Weather == nil {
				return nil, nil
			}
			return std.NewCityWeatherTool(c.Weather, cfg.Tools[ToolCityWeather]), nil
		}},
		{ToolSearchPlaces, func() (tools.Tool, error) {
			if c.Maps == nil {
				return nil, nil
			}
			return std.NewSearchPlacesTool(c.Maps, cfg.Tools[ToolSearchPlaces]), nil
		}},
		{ToolNearbyPlaces, func() (tools.Tool, error) {
			if c.Maps == nil {
				return nil, nil
			}
			return std.NewNearbyPlacesTool(c.Maps, st, cfg.Tools[ToolNearbyPlaces]), nil
		}},
		{ToolRecommendPlaces, func() (tools.Tool, error) {
			if c.Maps == nil {
				return nil, nil
			}
			rec, err := c.Recommender()
			if err != nil {
				return nil, err
			}
			return std.NewRecommendPlacesTool(rec, st, cfg.Tools[ToolRecommendPlaces]), nil
		}},
		{ToolPlaceDetails, func() (tools.Tool, error) {
			if c.Maps == nil {
				return nil, nil
			}
			return std.NewPlaceDetailsTool(c.Maps, cfg.Tools[ToolPlaceDetails]), nil
		}},
		{ToolKeywordPlaces, func() (tools.Tool, error) {
			if c.Maps == nil {
				return nil, nil
			}
			finder, err := c.PlaceFinder()
			if err != nil {
				return nil, err
			}
			return std.NewKeywordPlacesTool(finder, cfg.Tools[ToolKeywordPlaces]), nil
		}},
		{ToolSaveRoute, func() (tools.Tool, error) {
			return std.NewSaveRouteTool(st, cfg.Tools[ToolSaveRoute]), nil
		}},
		{ToolListRoutes, func() (tools.Tool, error) {
			return std.NewListRoutesTool(st, cfg.Tools[ToolListRoutes]), nil
		}},
		{ToolWikipedia, func() (tools.Tool, error) {
			if c.Wikipedia == nil {
				return nil, nil
			}
			return std.NewWikipediaTool(c.Wikipedia, cfg.Tools[ToolWikipedia]), nil
		}},
		{ToolWebSearch, func() (tools.Tool, error) {
			if c.Tavily == nil {
				return nil, nil
			}
			return std.NewWebSearchTool(c.Tavily, cfg.Tools[ToolWebSearch]), nil
		}},
		{ToolDocumentSearch, func() (tools.Tool, error) {
			if cfg.Embedding.Model == "" {
				return nil, nil
			}
			retriever, err := c.Retriever(ctx, cfg.Retrieval.Collection)
			if err != nil {
				return nil, err
			}
			return std.NewDocumentSearchTool(retriever, cfg.Tools[ToolDocumentSearch]), nil
		}},
		{ToolBusinessCard, func() (tools.Tool, error) {
			return std.NewBusinessCardTool(c.CardReader(), cfg.Tools[ToolBusinessCard]), nil
		}},
		{ToolListS3Files, func() (tools.Tool, error) {
			if c.S3 == nil {
				return nil, nil
			}
			return std.NewS3ListTool(c.S3, cfg.Tools[ToolListS3Files]), nil
		}},
	}

	for _, s := range steps {
		if err := register(s.name, s.build); err != nil {
			return nil, err
		}
	}

	utils.Info("Tools registered", "count", len(registered), "tools", registered)
	if len(skipped) > 0 {
		utils.Warn("Tools enabled but not configured", "tools", skipped)
	}
	return registry, nil
}

// ToolTimeouts собирает per-tool таймауты из config.yaml.
func (c *Components) ToolTimeouts() map[string]time.Duration {
	out := make(map[string]time.Duration)
	for name, tc := range c.Config.Tools {
		if tc.Timeout > 0 {
			out[name] = tc.Timeout
		}
	}
	return out
}
