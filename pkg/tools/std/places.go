package std

import (
	"context"
	"fmt"

	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/keywords"
	"github.com/ilkoid/tripmate/pkg/maps"
	"github.com/ilkoid/tripmate/pkg/places"
	"github.com/ilkoid/tripmate/pkg/state"
	"github.com/ilkoid/tripmate/pkg/tools"
)

// PlacesAPI: поиск мест (maps.Client).
type PlacesAPI interface {
	TextSearch(ctx context.Context, query string) ([]maps.Place, error)
	NearbySearch(ctx context.Context, req maps.NearbyRequest) ([]maps.Place, error)
	PlaceDetails(ctx context.Context, placeID string) (maps.PlaceDetails, error)
}

// placeSummary: место в ответе инструмента.
type placeSummary struct {
	PlaceID string   `json:"place_id"`
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Rating  float64  `json:"rating,omitempty"`
	OpenNow *bool    `json:"open_now,omitempty"`
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Dist    *float64 `json:"distance_m,omitempty"`
}

func summarize(ps []maps.Place, origin *maps.LatLng) []placeSummary {
	out := make([]placeSummary, len(ps))
	for i, p := range ps {
		out[i] = placeSummary{
			PlaceID: p.PlaceID,
			Name:    p.Name,
			Address: p.Address,
			Rating:  p.Rating,
			OpenNow: p.OpenNow,
			Lat:     p.Location.Lat,
			Lng:     p.Location.Lng,
		}
		if origin != nil {
			d := maps.Distance(*origin, p.Location)
			out[i].Dist = &d
		}
	}
	return out
}

// SearchPlacesTool: поиск мест по текстовому запросу.
type SearchPlacesTool struct {
	api         PlacesAPI
	description string
}

// NewSearchPlacesTool создаёт инструмент search_places.
func NewSearchPlacesTool(api PlacesAPI, cfg config.ToolConfig) *SearchPlacesTool {
	return &SearchPlacesTool{
		api:         api,
		description: describe(cfg, "Search places by a free-text query such as 'bibimbap in Jeonju' or 'Gyeongbokgung'. Returns name, address, rating and whether it is open now."),
	}
}

// Definition возвращает определение инструмента.
func (t *SearchPlacesTool) Definition() tools.ToolDefinition {
	return definition("search_places", t.description, map[string]any{
		"query": tools.Prop("string", "What and where to search"),
	}, "query")
}

// Execute выполняет инструмент.
func (t *SearchPlacesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Query string `json:"query"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("query", args.Query); err != nil {
		return "", err
	}

	found, err := t.api.TextSearch(ctx, args.Query)
	if err != nil {
		return "", fmt.Errorf("search places: %w", err)
	}
	if len(found) == 0 {
		return "", nil
	}
	return toJSON(summarize(found, nil))
}

// NearbyPlacesTool: места рядом с пользователем без уже исключённых.
type NearbyPlacesTool struct {
	api         PlacesAPI
	session     *state.Session
	description string
}

// NewNearbyPlacesTool создаёт инструмент nearby_places.
func NewNearbyPlacesTool(api PlacesAPI, session *state.Session, cfg config.ToolConfig) *NearbyPlacesTool {
	return &NearbyPlacesTool{
		api:         api,
		session:     session,
		description: describe(cfg, "List points of interest near a location. Omit lat/lng to use the user's last known location. Places already recommended in this session are skipped."),
	}
}

// Definition возвращает определение инструмента.
func (t *NearbyPlacesTool) Definition() tools.ToolDefinition {
	return definition("nearby_places", t.description, map[string]any{
		"lat":    tools.Prop("number", "Latitude"),
		"lng":    tools.Prop("number", "Longitude"),
		"radius": tools.Prop("integer", "Search radius in meters"),
		"type":   tools.Prop("string", "Google place type, for example 'cafe' or 'museum'"),
	})
}

type locationArgs struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// location возвращает координаты из аргументов или последние известные.
// Координаты из аргументов запоминаются в сессии.
func (a locationArgs) location(session *state.Session) (*maps.LatLng, error) {
	if a.Lat != nil && a.Lng != nil {
		session.SetLocation(*a.Lat, *a.Lng)
		return &maps.LatLng{Lat: *a.Lat, Lng: *a.Lng}, nil
	}
	last, ok := session.Location()
	if !ok {
		return nil, fmt.Errorf("user location is unknown, ask the user for coordinates or a place to start from")
	}
	return &maps.LatLng{Lat: last.Lat, Lng: last.Lng}, nil
}

// Execute выполняет инструмент.
func (t *NearbyPlacesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		locationArgs
		Radius int    `json:"radius"`
		Type   string `json:"type"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	origin, err := args.location(t.session)
	if err != nil {
		return "", err
	}

	found, err := t.api.NearbySearch(ctx, maps.NearbyRequest{Location: *origin, Radius: args.Radius, Type: args.Type})
	if err != nil {
		return "", fmt.Errorf("nearby search: %w", err)
	}
	found = places.ExcludePlaces(found, t.session.Excluded())
	if len(found) == 0 {
		return "", nil
	}
	return toJSON(summarize(found, origin))
}

// Recommender: рекомендации мест (places.Recommender).
type Recommender interface {
	Recommend(ctx context.Context, st *state.Session, req places.Request) (places.Result, error)
}

// RecommendPlacesTool: рекомендации мест рядом с пользователем.
type RecommendPlacesTool struct {
	recommender Recommender
	session     *state.Session
	description string
}

// NewRecommendPlacesTool создаёт инструмент recommend_places.
func NewRecommendPlacesTool(r Recommender, session *state.Session, cfg config.ToolConfig) *RecommendPlacesTool {
	return &RecommendPlacesTool{
		recommender: r,
		session:     session,
		description: describe(cfg, "Recommend a few places near the user for a request like 'quiet cafe' with reasons, reviews and distance. Each call suggests places not recommended before in this session."),
	}
}

// Definition возвращает определение инструмента.
func (t *RecommendPlacesTool) Definition() tools.ToolDefinition {
	return definition("recommend_places", t.description, map[string]any{
		"request": tools.Prop("string", "What the user is looking for"),
		"lat":     tools.Prop("number", "Latitude; omit to use the last known location"),
		"lng":     tools.Prop("number", "Longitude; omit to use the last known location"),
		"exclude": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "place_id values the user rejected",
		},
		"start_over": tools.Prop("boolean", "Forget places recommended earlier in this session"),
	}, "request")
}

// Execute выполняет инструмент.
func (t *RecommendPlacesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		locationArgs
		Request   string   `json:"request"`
		Exclude   []string `json:"exclude"`
		StartOver bool     `json:"start_over"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if args.StartOver {
		t.session.ResetExcluded()
	}
	origin, err := args.location(t.session)
	if err != nil {
		return "", err
	}

	res, err := t.recommender.Recommend(ctx, t.session, places.Request{
		Query:    args.Request,
		Location: origin,
		Exclude:  args.Exclude,
	})
	if err != nil {
		return emptyOnNotFound(err)
	}
	return toJSON(res)
}

// PlaceDetailsTool: подробности места с отзывами.
type PlaceDetailsTool struct {
	api         PlacesAPI
	description string
}

// NewPlaceDetailsTool создаёт инструмент place_details.
func NewPlaceDetailsTool(api PlacesAPI, cfg config.ToolConfig) *PlaceDetailsTool {
	return &PlaceDetailsTool{
		api:         api,
		description: describe(cfg, "Get details of a place by place_id: address, rating, location and recent reviews."),
	}
}

// Definition возвращает определение инструмента.
func (t *PlaceDetailsTool) Definition() tools.ToolDefinition {
	return definition("place_details", t.description, map[string]any{
		"place_id": tools.Prop("string", "Google place_id from a previous search"),
	}, "place_id")
}

// Execute выполняет инструмент.
func (t *PlaceDetailsTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		PlaceID string `json:"place_id"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("place_id", args.PlaceID); err != nil {
		return "", err
	}

	d, err := t.api.PlaceDetails(ctx, args.PlaceID)
	if err != nil {
		return "", fmt.Errorf("place details: %w", err)
	}
	return toJSON(d)
}

// PlaceFinder: поиск мест по ключевым словам (keywords.PlaceFinder).
type PlaceFinder interface {
	Find(ctx context.Context, text string) (keywords.SearchResult, error)
}

// KeywordPlacesTool: поиск мест по ключевым словам описания.
type KeywordPlacesTool struct {
	finder      PlaceFinder
	description string
}

// NewKeywordPlacesTool создаёт инструмент find_places_by_keywords.
func NewKeywordPlacesTool(f PlaceFinder, cfg config.ToolConfig) *KeywordPlacesTool {
	return &KeywordPlacesTool{
		finder:      f,
		description: describe(cfg, "Find places matching a long free-form description: keywords are extracted from the text and searched together."),
	}
}

// Definition возвращает определение инструмента.
func (t *KeywordPlacesTool) Definition() tools.ToolDefinition {
	return definition("find_places_by_keywords", t.description, map[string]any{
		"text": tools.Prop("string", "The user's description of the place"),
	}, "text")
}

// Execute выполняет инструмент.
func (t *KeywordPlacesTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		Text string `json:"text"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("text", args.Text); err != nil {
		return "", err
	}

	res, err := t.finder.Find(ctx, args.Text)
	if err != nil {
		return emptyOnNotFound(err)
	}
	return toJSON(struct {
		Keywords []string       `json:"keywords"`
		Places   []placeSummary `json:"places"`
	}{res.Keywords, summarize(res.Places, nil)})
}
