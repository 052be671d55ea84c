// Package weather: клиент OpenWeatherMap (current weather, /data/2.5/weather).
package weather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ilkoid/tripmate/pkg/apiclient"
	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
)

const serviceName = "openweathermap"

// Snapshot: текущая погода.
type Snapshot struct {
	Country        string  `json:"country"`
	City           string  `json:"region"`
	Main           string  `json:"weather_main"`
	Description    string  `json:"weather_description"`
	Temperature    float64 `json:"current_temperature"`
	FeelsLike      float64 `json:"feels_like_temperature"`
	TempMin        float64 `json:"min_temperature"`
	TempMax        float64 `json:"max_temperature"`
	Humidity       int     `json:"humidity"`
	Clouds         int     `json:"cloudiness"`
	WindSpeed      float64 `json:"wind_speed"`
	WindDeg        int     `json:"wind_deg"`
	TimezoneOffset int     `json:"timezone_offset"` // секунды от UTC
	Units          string  `json:"units"`
}

// String: короткая сводка для ответа агента.
func (s Snapshot) String() string {
	tempUnit, windUnit := "°C", "m/s"
	switch s.Units {
	case "imperial":
		tempUnit, windUnit = "°F", "mph"
	case "standard":
		tempUnit = "K"
	}
	return fmt.Sprintf("%s: %s, %.1f%s (feels like %.1f%s), humidity %d%%, wind %.1f %s",
		s.City, s.Description, s.Temperature, tempUnit, s.FeelsLike, tempUnit, s.Humidity, s.WindSpeed, windUnit)
}

// Query: что спрашиваем: город или координаты.
// Координаты используются, если заданы оба поля.
type Query struct {
	City string
	Lat  *float64
	Lon  *float64
}

type currentResponse struct {
	Name     string `json:"name"`
	Timezone int    `json:"timezone"`
	Sys      struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Client: клиент OpenWeatherMap.
type Client struct {
	api    *apiclient.Client
	apiKey string
	units  string
}

// NewClient создаёт клиент из секции weather конфигурации.
func NewClient(cfg config.WeatherConfig, opts ...apiclient.Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("weather.api_key is required")
	}
	api, err := apiclient.New(serviceName, cfg.APIConfig, opts...)
	if err != nil {
		return nil, err
	}
	units := cfg.Units
	if units == "" {
		units = "metric"
	}
	return &Client{api: api, apiKey: cfg.APIKey, units: units}, nil
}

// Current возвращает текущую погоду по запросу.
func (c *Client) Current(ctx context.Context, q Query) (Snapshot, error) {
	if q.Lat != nil && q.Lon != nil {
		return c.ByCoords(ctx, *q.Lat, *q.Lon)
	}
	if strings.TrimSpace(q.City) == "" {
		return Snapshot{}, fmt.Errorf("weather query needs a city or coordinates")
	}
	return c.ByCity(ctx, q.City)
}

// ByCity возвращает погоду в городе.
func (c *Client) ByCity(ctx context.Context, city string) (Snapshot, error) {
	return c.current(ctx, url.Values{"q": {city}}, city)
}

// ByCoords возвращает погоду в точке.
func (c *Client) ByCoords(ctx context.Context, lat, lon float64) (Snapshot, error) {
	params := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	return c.current(ctx, params, fmt.Sprintf("%.4f,%.4f", lat, lon))
}

func (c *Client) current(ctx context.Context, params url.Values, what string) (Snapshot, error) {
	params.Set("units", c.units)
	params.Set("lang", "en")
	params.Set("appid", c.apiKey)

	var resp currentResponse
	if err := c.api.Get(ctx, "current_weather", "/data/2.5/weather", params, &resp); err != nil {
		var upstream *apperr.UpstreamError
		if errors.As(err, &upstream) && upstream.Status == http.StatusNotFound {
			return Snapshot{}, apperr.NotFound("weather for %q", what)
		}
		return Snapshot{}, err
	}

	snap := Snapshot{
		Country:        resp.Sys.Country,
		City:           resp.Name,
		Temperature:    resp.Main.Temp,
		FeelsLike:      resp.Main.FeelsLike,
		TempMin:        resp.Main.TempMin,
		TempMax:        resp.Main.TempMax,
		Humidity:       resp.Main.Humidity,
		Clouds:         resp.Clouds.All,
		WindSpeed:      resp.Wind.Speed,
		WindDeg:        resp.Wind.Deg,
		TimezoneOffset: resp.Timezone,
		Units:          c.units,
	}
	if len(resp.Weather) > 0 {
		snap.Main = resp.Weather[0].Main
		snap.Description = resp.Weather[0].Description
	}
	return snap, nil
}
