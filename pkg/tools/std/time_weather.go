package std

import (
	"context"
	"fmt"
	"time"

	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/maps"
	"github.com/ilkoid/tripmate/pkg/tools"
	"github.com/ilkoid/tripmate/pkg/weather"
)

// TimeZoneAPI: геокодинг и часовые пояса (maps.Client).
type TimeZoneAPI interface {
	Geocode(ctx context.Context, address string) (maps.GeocodeResult, error)
	TimeZone(ctx context.Context, loc maps.LatLng, at time.Time) (maps.TimeZone, error)
}

// CityTimeTool: местное время в городе: геокодинг → часовой пояс → время.
type CityTimeTool struct {
	api         TimeZoneAPI
	now         func() time.Time
	description string
}

// NewCityTimeTool создаёт инструмент get_time_from_city.
func NewCityTimeTool(api TimeZoneAPI, cfg config.ToolConfig) *CityTimeTool {
	return &CityTimeTool{
		api:         api,
		now:         time.Now,
		description: describe(cfg, "Get the current local date and time in a city. Use it for questions like 'what time is it in Paris'."),
	}
}

// Definition возвращает определение инструмента.
func (t *CityTimeTool) Definition() tools.ToolDefinition {
	return definition("get_time_from_city", t.description, map[string]any{
		"city": tools.Prop("string", "City name, for example 'Seoul' or 'New York'"),
	}, "city")
}

type cityTime struct {
	City      string `json:"city"`
	Address   string `json:"address"`
	TimeZone  string `json:"timezone"`
	LocalTime string `json:"local_time"`
	UTCOffset string `json:"utc_offset"`
}

// Execute выполняет инструмент.
func (t *CityTimeTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		City string `json:"city"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("city", args.City); err != nil {
		return "", err
	}

	geo, err := t.api.Geocode(ctx, args.City)
	if err != nil {
		return "", fmt.Errorf("geocode %q: %w", args.City, err)
	}

	now := t.now()
	tz, err := t.api.TimeZone(ctx, geo.Location, now)
	if err != nil {
		return "", fmt.Errorf("time zone for %q: %w", args.City, err)
	}

	loc, err := time.LoadLocation(tz.ID)
	if err != nil {
		// Нет tzdata в системе: хватит смещения из ответа API.
		loc = time.FixedZone(tz.ID, int((tz.RawOffset + tz.DstOffset).Seconds()))
	}
	local := now.In(loc)

	return toJSON(cityTime{
		City:      args.City,
		Address:   geo.Address,
		TimeZone:  tz.ID,
		LocalTime: local.Format("2006-01-02 15:04:05 Monday"),
		UTCOffset: local.Format("-07:00"),
	})
}

// WeatherAPI: текущая погода (weather.Client).
type WeatherAPI interface {
	ByCity(ctx context.Context, city string) (weather.Snapshot, error)
}

// CityWeatherTool: текущая погода в городе.
type CityWeatherTool struct {
	api         WeatherAPI
	description string
}

// NewCityWeatherTool создаёт инструмент get_weather_in_city.
func NewCityWeatherTool(api WeatherAPI, cfg config.ToolConfig) *CityWeatherTool {
	return &CityWeatherTool{
		api:         api,
		description: describe(cfg, "Get the current weather in a city: temperature, feels-like, min/max, humidity, clouds and wind."),
	}
}

// Definition возвращает определение инструмента.
func (t *CityWeatherTool) Definition() tools.ToolDefinition {
	return definition("get_weather_in_city", t.description, map[string]any{
		"city": tools.Prop("string", "City name in English, for example 'Busan'"),
	}, "city")
}

// Execute выполняет инструмент.
func (t *CityWeatherTool) Execute(ctx context.Context, argsJSON string) (string, error) {
	args, err := decodeArgs[struct {
		City string `json:"city"`
	}](argsJSON)
	if err != nil {
		return "", err
	}
	if err := requireText("city", args.City); err != nil {
		return "", err
	}

	snap, err := t.api.ByCity(ctx, args.City)
	if err != nil {
		return "", fmt.Errorf("weather in %q: %w", args.City, err)
	}
	return toJSON(snap)
}
