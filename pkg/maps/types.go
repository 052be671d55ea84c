package maps

import "math"

// LatLng: географические координаты.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Place: место из nearby или text search.
type Place struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Rating   float64  `json:"rating,omitempty"`
	Address  string   `json:"address,omitempty"`
	Location LatLng   `json:"location"`
	OpenNow  *bool    `json:"open_now,omitempty"`
	Types    []string `json:"types,omitempty"`
}

// Review: отзыв о месте.
type Review struct {
	AuthorName   string `json:"author_name"`
	Rating       int    `json:"rating"`
	Text         string `json:"text"`
	RelativeTime string `json:"relative_time_description,omitempty"`
}

// PlaceDetails: подробности места по place_id.
type PlaceDetails struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Address  string   `json:"formatted_address"`
	Rating   float64  `json:"rating,omitempty"`
	Location LatLng   `json:"location"`
	Reviews  []Review `json:"reviews,omitempty"`
}

// earthRadiusMeters: средний радиус Земли.
const earthRadiusMeters = 6371000.0

// Distance возвращает расстояние между точками по формуле гаверсинусов, в метрах.
func Distance(a, b LatLng) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
