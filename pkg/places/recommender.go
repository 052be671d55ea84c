// Package places рекомендует места рядом с пользователем.
//
// Поток: nearby search → фильтр исключённых мест сессии → модель выбирает
// несколько мест строгим JSON → параллельная загрузка подробностей →
// расстояние от пользователя. Рекомендованные места попадают в список
// исключений сессии, поэтому повторный запрос даёт новые места.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/chain"
	"github.com/ilkoid/tripmate/pkg/llm"
	"github.com/ilkoid/tripmate/pkg/maps"
	"github.com/ilkoid/tripmate/pkg/prompt"
	"github.com/ilkoid/tripmate/pkg/state"
	"github.com/ilkoid/tripmate/pkg/utils"
)

// DefaultCount: сколько мест рекомендовать по умолчанию.
const DefaultCount = 3

// PlacesAPI: часть maps.Client, нужная рекомендациям.
type PlacesAPI interface {
	NearbySearch(ctx context.Context, req maps.NearbyRequest) ([]maps.Place, error)
	PlaceDetails(ctx context.Context, placeID string) (maps.PlaceDetails, error)
}

// Request: запрос рекомендации.
type Request struct {
	Query    string
	Location *maps.LatLng // nil: последняя известная позиция сессии
	Exclude  []string     // place_id, которые пользователь уже отклонил
}

// Recommendation: рекомендованное место с подробностями.
type Recommendation struct {
	PlaceID  string        `json:"place_id"`
	Name     string        `json:"name"`
	Reason   string        `json:"reason"`
	Rating   float64       `json:"rating,omitempty"`
	Address  string        `json:"address,omitempty"`
	Location maps.LatLng   `json:"location"`
	Distance float64       `json:"distance_m"`
	Reviews  []maps.Review `json:"reviews,omitempty"`
}

// Result: итог рекомендации.
type Result struct {
	Recommendations []Recommendation `json:"recommendations"`
	Candidates      int              `json:"candidates"` // мест после фильтра исключений
}

// Config: параметры Recommender.
type Config struct {
	Count  int
	Prompt *prompt.PromptFile // nil: встроенный recommend_places
}

// Recommender выбирает места с помощью модели.
type Recommender struct {
	api      PlacesAPI
	provider llm.Provider
	count    int
	prompt   *prompt.PromptFile
}

// NewRecommender создаёт Recommender.
func NewRecommender(api PlacesAPI, provider llm.Provider, cfg Config) *Recommender {
	if cfg.Count <= 0 {
		cfg.Count = DefaultCount
	}
	if cfg.Prompt == nil {
		cfg.Prompt = prompt.MustDefault(prompt.RecommendPlaces)
	}
	return &Recommender{api: api, provider: provider, count: cfg.Count, prompt: cfg.Prompt}
}

// ExcludePlaces убирает места с place_id из excluded, сохраняя порядок остальных.
func ExcludePlaces(places []maps.Place, excluded []string) []maps.Place {
	if len(excluded) == 0 {
		return append([]maps.Place(nil), places...)
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	out := make([]maps.Place, 0, len(places))
	for _, p := range places {
		if _, ok := skip[p.PlaceID]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// candidate: место в том виде, в котором его видит модель.
type candidate struct {
	PlaceID  string  `json:"place_id"`
	Name     string  `json:"name"`
	Rating   float64 `json:"rating,omitempty"`
	Address  string  `json:"address,omitempty"`
	Distance int     `json:"distance_m"`
}

type pick struct {
	PlaceID string `json:"place_id"`
	Name    string `json:"name"`
	Reason  string `json:"reason"`
}

type picksResponse struct {
	Recommendations []pick `json:"recommendations"`
}

// Recommend подбирает места для сессии.
//
// Возвращает ErrNotFound, если рядом ничего нет или все места исключены.
func (r *Recommender) Recommend(ctx context.Context, st *state.Session, req Request) (Result, error) {
	st.AddExcluded(req.Exclude...)

	origin, err := resolveLocation(st, req.Location)
	if err != nil {
		return Result{}, err
	}

	nearby, err := r.api.NearbySearch(ctx, maps.NearbyRequest{Location: origin})
	if err != nil {
		return Result{}, fmt.Errorf("nearby search: %w", err)
	}
	if len(nearby) == 0 {
		return Result{}, apperr.NotFound("no places near (%.5f, %.5f)", origin.Lat, origin.Lng)
	}

	candidates := ExcludePlaces(nearby, st.Excluded())
	if len(candidates) == 0 {
		return Result{}, apperr.NotFound("all %d nearby places were already recommended or excluded", len(nearby))
	}

	picks, err := r.pick(ctx, req.Query, origin, candidates)
	if err != nil {
		return Result{}, err
	}

	recs, err := r.details(ctx, origin, picks)
	if err != nil {
		return Result{}, err
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.PlaceID
	}
	st.AddExcluded(ids...)

	utils.Info("places recommended",
		"session", st.ID(),
		"candidates", len(candidates),
		"recommended", len(recs),
	)
	return Result{Recommendations: recs, Candidates: len(candidates)}, nil
}

func resolveLocation(st *state.Session, loc *maps.LatLng) (maps.LatLng, error) {
	if loc != nil {
		st.SetLocation(loc.Lat, loc.Lng)
		return *loc, nil
	}
	last, ok := st.Location()
	if !ok {
		return maps.LatLng{}, fmt.Errorf("user location is unknown")
	}
	return maps.LatLng{Lat: last.Lat, Lng: last.Lng}, nil
}

// pick просит модель выбрать места из кандидатов.
func (r *Recommender) pick(ctx context.Context, query string, origin maps.LatLng, candidates []maps.Place) ([]pick, error) {
	list := make([]candidate, len(candidates))
	known := make(map[string]struct{}, len(candidates))
	for i, p := range candidates {
		list[i] = candidate{
			PlaceID:  p.PlaceID,
			Name:     p.Name,
			Rating:   p.Rating,
			Address:  p.Address,
			Distance: int(math.Round(maps.Distance(origin, p.Location))),
		}
		known[p.PlaceID] = struct{}{}
	}
	placesJSON, err := json.Marshal(list)
	if err != nil {
		return nil, fmt.Errorf("marshal candidates: %w", err)
	}

	count := min(r.count, len(candidates))
	if strings.TrimSpace(query) == "" {
		query = "Interesting places to visit nearby"
	}
	messages, err := r.prompt.RenderMessages(map[string]any{
		"Query":  query,
		"Lat":    origin.Lat,
		"Lng":    origin.Lng,
		"Places": string(placesJSON),
		"Count":  count,
	})
	if err != nil {
		return nil, fmt.Errorf("render recommend prompt: %w", err)
	}

	validate := func(resp picksResponse) error {
		if len(resp.Recommendations) == 0 {
			return fmt.Errorf("recommendations are empty")
		}
		seen := make(map[string]struct{}, len(resp.Recommendations))
		for i, p := range resp.Recommendations {
			if p.PlaceID == "" {
				return fmt.Errorf("recommendations[%d].place_id is empty", i)
			}
			if _, ok := known[p.PlaceID]; !ok {
				return fmt.Errorf("recommendations[%d].place_id %q is not a candidate", i, p.PlaceID)
			}
			if _, dup := seen[p.PlaceID]; dup {
				return fmt.Errorf("recommendations[%d].place_id %q is repeated", i, p.PlaceID)
			}
			seen[p.PlaceID] = struct{}{}
		}
		return nil
	}

	opts := append(r.prompt.Options(), llm.WithFormat(llm.FormatJSONObject))
	stage := chain.Pipe(chain.ModelStage(r.provider, opts...), chain.JSONParser(validate))
	resp, err := stage.Run(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("recommend places: %w", err)
	}

	picks := resp.Recommendations
	if len(picks) > count {
		picks = picks[:count]
	}
	return picks, nil
}

// details загружает подробности выбранных мест параллельно, сохраняя порядок.
func (r *Recommender) details(ctx context.Context, origin maps.LatLng, picks []pick) ([]Recommendation, error) {
	recs := make([]Recommendation, len(picks))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range picks {
		g.Go(func() error {
			d, err := r.api.PlaceDetails(gctx, p.PlaceID)
			if err != nil {
				return fmt.Errorf("place details %s: %w", p.PlaceID, err)
			}
			name := d.Name
			if name == "" {
				name = p.Name
			}
			recs[i] = Recommendation{
				PlaceID:  p.PlaceID,
				Name:     name,
				Reason:   p.Reason,
				Rating:   d.Rating,
				Address:  d.Address,
				Location: d.Location,
				Distance: maps.Distance(origin, d.Location),
				Reviews:  d.Reviews,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return recs, nil
}
