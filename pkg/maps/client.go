// Package maps: клиент Google Maps Platform: Places (nearby, text search,
// details), Geocoding и Time Zone.
//
// Статус "ZERO_RESULTS": валидный пустой ответ. Остальные статусы кроме
// "OK" превращаются в apperr.UpstreamError.
package maps

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/tripmate/pkg/apiclient"
	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
)

const serviceName = "google_maps"

// DetailFields: поля, запрашиваемые у Place Details.
const DetailFields = "place_id,name,rating,formatted_address,reviews,geometry"

// Client: клиент Google Maps.
type Client struct {
	api       *apiclient.Client
	apiKey    string
	language  string
	radius    int
	placeType string
}

// NewClient создаёт клиент из секции maps конфигурации.
func NewClient(cfg config.MapsConfig, opts ...apiclient.Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("maps.api_key is required")
	}
	api, err := apiclient.New(serviceName, cfg.APIConfig, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		api:       api,
		apiKey:    cfg.APIKey,
		language:  cfg.Language,
		radius:    cfg.Radius,
		placeType: cfg.PlaceType,
	}, nil
}

// NearbyRequest: параметры поиска мест рядом.
// Нулевые Radius, Language и Type берутся из конфигурации.
type NearbyRequest struct {
	Location LatLng
	Radius   int
	Language string
	Type     string
}

// wire-форматы ответов Google.
type (
	geometryJSON struct {
		Location LatLng `json:"location"`
	}

	placeJSON struct {
		PlaceID          string       `json:"place_id"`
		Name             string       `json:"name"`
		Rating           float64      `json:"rating"`
		Vicinity         string       `json:"vicinity"`
		FormattedAddress string       `json:"formatted_address"`
		Geometry         geometryJSON `json:"geometry"`
		Types            []string     `json:"types"`
		OpeningHours     *struct {
			OpenNow bool `json:"open_now"`
		} `json:"opening_hours"`
		Reviews []Review `json:"reviews"`
	}

	placesResponse struct {
		Status       string      `json:"status"`
		ErrorMessage string      `json:"error_message"`
		Results      []placeJSON `json:"results"`
	}

	detailsResponse struct {
		Status       string    `json:"status"`
		ErrorMessage string    `json:"error_message"`
		Result       placeJSON `json:"result"`
	}

	geocodeResponse struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
		Results      []struct {
			FormattedAddress string       `json:"formatted_address"`
			Geometry         geometryJSON `json:"geometry"`
		} `json:"results"`
	}

	timezoneResponse struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
		TimeZoneID   string `json:"timeZoneId"`
		TimeZoneName string `json:"timeZoneName"`
		RawOffset    int    `json:"rawOffset"`
		DstOffset    int    `json:"dstOffset"`
	}
)

func (p placeJSON) toPlace() Place {
	addr := p.Vicinity
	if addr == "" {
		addr = p.FormattedAddress
	}
	place := Place{
		PlaceID:  p.PlaceID,
		Name:     p.Name,
		Rating:   p.Rating,
		Address:  addr,
		Location: p.Geometry.Location,
		Types:    p.Types,
	}
	if p.OpeningHours != nil {
		open := p.OpeningHours.OpenNow
		place.OpenNow = &open
	}
	return place
}

func (c *Client) checkStatus(status, message string) error {
	switch status {
	case "OK", "ZERO_RESULTS":
		return nil
	case "NOT_FOUND":
		return apperr.NotFound("%s: %s", serviceName, message)
	}
	body := status
	if message != "" {
		body += ": " + message
	}
	return &apperr.UpstreamError{Service: serviceName, Status: 200, Body: body}
}

// NearbySearch ищет места в радиусе от точки. Порядок результатов: как у API.
func (c *Client) NearbySearch(ctx context.Context, req NearbyRequest) ([]Place, error) {
	if req.Radius <= 0 {
		req.Radius = c.radius
	}
	if req.Language == "" {
		req.Language = c.language
	}
	if req.Type == "" {
		req.Type = c.placeType
	}

	params := url.Values{
		"location": {formatLatLng(req.Location)},
		"radius":   {strconv.Itoa(req.Radius)},
		"language": {req.Language},
		"key":      {c.apiKey},
	}
	if req.Type != "" {
		params.Set("type", req.Type)
	}

	var resp placesResponse
	if err := c.api.Get(ctx, "nearby_search", "/maps/api/place/nearbysearch/json", params, &resp); err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	return toPlaces(resp.Results), nil
}

// TextSearch ищет места по текстовому запросу.
func (c *Client) TextSearch(ctx context.Context, query string) ([]Place, error) {
	params := url.Values{
		"query":    {query},
		"language": {c.language},
		"key":      {c.apiKey},
	}
	var resp placesResponse
	if err := c.api.Get(ctx, "text_search", "/maps/api/place/textsearch/json", params, &resp); err != nil {
		return nil, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return nil, err
	}
	return toPlaces(resp.Results), nil
}

// PlaceDetails возвращает подробности места вместе с отзывами.
func (c *Client) PlaceDetails(ctx context.Context, placeID string) (PlaceDetails, error) {
	params := url.Values{
		"place_id": {placeID},
		"fields":   {DetailFields},
		"language": {c.language},
		"key":      {c.apiKey},
	}
	var resp detailsResponse
	if err := c.api.Get(ctx, "place_details", "/maps/api/place/details/json", params, &resp); err != nil {
		return PlaceDetails{}, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return PlaceDetails{}, err
	}
	if resp.Status == "ZERO_RESULTS" {
		return PlaceDetails{}, apperr.NotFound("place %s", placeID)
	}

	r := resp.Result
	id := r.PlaceID
	if id == "" {
		id = placeID
	}
	return PlaceDetails{
		PlaceID:  id,
		Name:     r.Name,
		Address:  r.FormattedAddress,
		Rating:   r.Rating,
		Location: r.Geometry.Location,
		Reviews:  r.Reviews,
	}, nil
}

// GeocodeResult: координаты адреса.
type GeocodeResult struct {
	Address  string
	Location LatLng
}

// Geocode переводит адрес или название города в координаты.
// Пустой результат: NotFound: без координат дальше идти некуда.
func (c *Client) Geocode(ctx context.Context, address string) (GeocodeResult, error) {
	params := url.Values{
		"address":  {address},
		"language": {c.language},
		"key":      {c.apiKey},
	}
	var resp geocodeResponse
	if err := c.api.Get(ctx, "geocode", "/maps/api/geocode/json", params, &resp); err != nil {
		return GeocodeResult{}, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return GeocodeResult{}, err
	}
	if len(resp.Results) == 0 {
		return GeocodeResult{}, apperr.NotFound("location %q", address)
	}
	first := resp.Results[0]
	return GeocodeResult{Address: first.FormattedAddress, Location: first.Geometry.Location}, nil
}

// TimeZone: часовой пояс точки.
type TimeZone struct {
	ID        string
	Name      string
	RawOffset time.Duration
	DstOffset time.Duration
}

// TimeZone возвращает часовой пояс точки на момент at.
func (c *Client) TimeZone(ctx context.Context, loc LatLng, at time.Time) (TimeZone, error) {
	params := url.Values{
		"location":  {formatLatLng(loc)},
		"timestamp": {strconv.FormatInt(at.Unix(), 10)},
		"language":  {c.language},
		"key":       {c.apiKey},
	}
	var resp timezoneResponse
	if err := c.api.Get(ctx, "timezone", "/maps/api/timezone/json", params, &resp); err != nil {
		return TimeZone{}, err
	}
	if err := c.checkStatus(resp.Status, resp.ErrorMessage); err != nil {
		return TimeZone{}, err
	}
	if resp.TimeZoneID == "" {
		return TimeZone{}, apperr.NotFound("time zone for %s", formatLatLng(loc))
	}
	return TimeZone{
		ID:        resp.TimeZoneID,
		Name:      resp.TimeZoneName,
		RawOffset: time.Duration(resp.RawOffset) * time.Second,
		DstOffset: time.Duration(resp.DstOffset) * time.Second,
	}, nil
}

func toPlaces(in []placeJSON) []Place {
	out := make([]Place, 0, len(in))
	for _, p := range in {
		out = append(out, p.toPlace())
	}
	return out
}

func formatLatLng(l LatLng) string {
	return strings.Join([]string{
		strconv.FormatFloat(l.Lat, 'f', -1, 64),
		strconv.FormatFloat(l.Lng, 'f', -1, 64),
	}, ",")
}
