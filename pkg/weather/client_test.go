package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
)

const seoulJSON = `{"name":"Seoul","timezone":32400,"sys":{"country":"KR"},
"main":{"temp":18.3,"feels_like":17.9,"temp_min":16,"temp_max":20.5,"humidity":55},
"clouds":{"all":5},"wind":{"speed":2.1,"deg":270},
"weather":[{"main":"Clear","description":"clear sky"}],"cod":200}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(config.WeatherConfig{APIConfig: config.APIConfig{
		APIKey: "owm", BaseURL: srv.URL, RateLimit: 6000, BurstLimit: 10,
	}})
	require.NoError(t, err)
	return c
}

func TestByCity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "Seoul", q.Get("q"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "owm", q.Get("appid"))
		_, _ = w.Write([]byte(seoulJSON))
	})

	s, err := c.ByCity(context.Background(), "Seoul")
	require.NoError(t, err)
	assert.Equal(t, Snapshot{
		Country: "KR", City: "Seoul", Main: "Clear", Description: "clear sky",
		Temperature: 18.3, FeelsLike: 17.9, TempMin: 16, TempMax: 20.5,
		Humidity: 55, Clouds: 5, WindSpeed: 2.1, WindDeg: 270,
		TimezoneOffset: 32400, Units: "metric",
	}, s)
	assert.Equal(t, "Seoul: clear sky, 18.3°C (feels like 17.9°C), humidity 55%, wind 2.1 m/s", s.String())
}

func TestByCoords(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "37.5665", r.URL.Query().Get("lat"))
		assert.Equal(t, "126.978", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(seoulJSON))
	})
	lat, lon := 37.5665, 126.978
	s, err := c.Current(context.Background(), Query{City: "ignored", Lat: &lat, Lon: &lon})
	require.NoError(t, err)
	assert.Equal(t, "Seoul", s.City)

	_, err = c.Current(context.Background(), Query{})
	assert.Error(t, err)
}

func TestByCity_UnknownCityIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	})
	_, err := c.ByCity(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestByCity_ServerErrorIsUpstream(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.ByCity(context.Background(), "Seoul")
	assert.ErrorIs(t, err, apperr.ErrUpstreamUnavailable)
}
