package std

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/apperr"
	"github.com/ilkoid/tripmate/pkg/config"
	"github.com/ilkoid/tripmate/pkg/keywords"
	"github.com/ilkoid/tripmate/pkg/maps"
	"github.com/ilkoid/tripmate/pkg/places"
	"github.com/ilkoid/tripmate/pkg/s3storage"
	"github.com/ilkoid/tripmate/pkg/search"
	"github.com/ilkoid/tripmate/pkg/state"
	"github.com/ilkoid/tripmate/pkg/tools"
	"github.com/ilkoid/tripmate/pkg/vision"
	"github.com/ilkoid/tripmate/pkg/weather"
)

type fakeMaps struct {
	text    []maps.Place
	nearby  []maps.Place
	details maps.PlaceDetails
	geo     maps.GeocodeResult
	tz      maps.TimeZone
	err     error

	nearbyReq maps.NearbyRequest
}

func (f *fakeMaps) TextSearch(context.Context, string) ([]maps.Place, error) {
	return f.text, f.err
}

func (f *fakeMaps) NearbySearch(_ context.Context, req maps.NearbyRequest) ([]maps.Place, error) {
	f.nearbyReq = req
	return f.nearby, f.err
}

func (f *fakeMaps) PlaceDetails(context.Context, string) (maps.PlaceDetails, error) {
	return f.details, f.err
}

func (f *fakeMaps) Geocode(context.Context, string) (maps.GeocodeResult, error) {
	return f.geo, f.err
}

func (f *fakeMaps) TimeZone(context.Context, maps.LatLng, time.Time) (maps.TimeZone, error) {
	return f.tz, f.err
}

func decode[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestDefinitions_AreValid(t *testing.T) {
	session := state.NewSession("s1", nil)
	api := &fakeMaps{}
	all := []tools.Tool{
		NewCityTimeTool(api, config.ToolConfig{}),
		NewCityWeatherTool(nil, config.ToolConfig{}),
		NewSearchPlacesTool(api, config.ToolConfig{}),
		NewNearbyPlacesTool(api, session, config.ToolConfig{}),
		NewRecommendPlacesTool(nil, session, config.ToolConfig{}),
		NewPlaceDetailsTool(api, config.ToolConfig{}),
		NewKeywordPlacesTool(nil, config.ToolConfig{}),
		NewSaveRouteTool(session, config.ToolConfig{}),
		NewListRoutesTool(session, config.ToolConfig{}),
		NewWikipediaTool(nil, config.ToolConfig{}),
		NewWebSearchTool(nil, config.ToolConfig{}),
		NewDocumentSearchTool(nil, config.ToolConfig{}),
		NewBusinessCardTool(nil, config.ToolConfig{}),
	}

	r := tools.NewRegistry()
	for _, tool := range all {
		require.NoError(t, r.Register(tool), tool.Definition().Name)
	}
	assert.Equal(t, len(all), r.Len())
}

func TestDescribe_ConfigOverride(t *testing.T) {
	tool := NewWebSearchTool(nil, config.ToolConfig{Description: "custom"})
	assert.Equal(t, "custom", tool.Definition().Description)
}

func TestCityTimeTool(t *testing.T) {
	api := &fakeMaps{
		geo: maps.GeocodeResult{Address: "Seoul, South Korea", Location: maps.LatLng{Lat: 37.56, Lng: 126.97}},
		tz:  maps.TimeZone{ID: "Asia/Seoul", Name: "Korean Standard Time", RawOffset: 9 * time.Hour},
	}
	tool := NewCityTimeTool(api, config.ToolConfig{})
	tool.now = func() time.Time { return time.Date(2024, 5, 1, 3, 4, 5, 0, time.UTC) }

	out, err := tool.Execute(context.Background(), `{"city":"Seoul"}`)
	require.NoError(t, err)

	got := decode[cityTime](t, out)
	assert.Equal(t, cityTime{
		City:      "Seoul",
		Address:   "Seoul, South Korea",
		TimeZone:  "Asia/Seoul",
		LocalTime: "2024-05-01 12:04:05 Wednesday",
		UTCOffset: "+09:00",
	}, got)
}

func TestCityTimeTool_Errors(t *testing.T) {
	tool := NewCityTimeTool(&fakeMaps{err: errors.New("boom")}, config.ToolConfig{})

	_, err := tool.Execute(context.Background(), `{"city":""}`)
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), `{"city":`)
	assert.Error(t, err)

	_, err = tool.Execute(context.Background(), `{"city":"Seoul"}`)
	assert.ErrorContains(t, err, "boom")
}

type fakeWeather struct{ snap weather.Snapshot }

func (f fakeWeather) ByCity(context.Context, string) (weather.Snapshot, error) { return f.snap, nil }

func TestCityWeatherTool(t *testing.T) {
	tool := NewCityWeatherTool(fakeWeather{snap: weather.Snapshot{City: "Busan", Temperature: 21.5, Units: "metric"}}, config.ToolConfig{})
	out, err := tool.Execute(context.Background(), `{"city":"Busan"}`)
	require.NoError(t, err)
	assert.Equal(t, 21.5, decode[weather.Snapshot](t, out).Temperature)
}

func TestSearchPlacesTool(t *testing.T) {
	open := true
	api := &fakeMaps{text: []maps.Place{{PlaceID: "p1", Name: "Gukbap House", Rating: 4.5, OpenNow: &open}}}
	tool := NewSearchPlacesTool(api, config.ToolConfig{})

	out, err := tool.Execute(context.Background(), `{"query":"gukbap in Busan"}`)
	require.NoError(t, err)
	got := decode[[]placeSummary](t, out)
	require.Len(t, got, 1)
	assert.Equal(t, "Gukbap House", got[0].Name)
	assert.True(t, *got[0].OpenNow)

	api.text = nil
	out, err = tool.Execute(context.Background(), `{"query":"nothing"}`)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNearbyPlacesTool_SkipsExcludedAndRemembersLocation(t *testing.T) {
	session := state.NewSession("s1", nil)
	session.AddExcluded("B")
	api := &fakeMaps{nearby: []maps.Place{{PlaceID: "A"}, {PlaceID: "B"}, {PlaceID: "C"}}}
	tool := NewNearbyPlacesTool(api, session, config.ToolConfig{})

	_, err := tool.Execute(context.Background(), `{}`)
	require.Error(t, err, "location is unknown until the user gives one")

	out, err := tool.Execute(context.Background(), `{"lat":35.1,"lng":129.0,"type":"cafe"}`)
	require.NoError(t, err)

	var ids []string
	for _, p := range decode[[]placeSummary](t, out) {
		ids = append(ids, p.PlaceID)
		require.NotNil(t, p.Dist)
	}
	assert.Equal(t, []string{"A", "C"}, ids)
	assert.Equal(t, "cafe", api.nearbyReq.Type)

	_, err = tool.Execute(context.Background(), `{}`)
	require.NoError(t, err)
	assert.Equal(t, maps.LatLng{Lat: 35.1, Lng: 129.0}, api.nearbyReq.Location)
}

type fakeRecommender struct {
	req places.Request
	res places.Result
	err error
}

func (f *fakeRecommender) Recommend(_ context.Context, _ *state.Session, req places.Request) (places.Result, error) {
	f.req = req
	return f.res, f.err
}

func TestRecommendPlacesTool(t *testing.T) {
	session := state.NewSession("s1", nil)
	rec := &fakeRecommender{res: places.Result{Recommendations: []places.Recommendation{{PlaceID: "A", Name: "Cafe"}}, Candidates: 5}}
	tool := NewRecommendPlacesTool(rec, session, config.ToolConfig{})

	out, err := tool.Execute(context.Background(), `{"request":"quiet cafe","lat":37.5,"lng":127.0,"exclude":["X"]}`)
	require.NoError(t, err)
	assert.Equal(t, "quiet cafe", rec.req.Query)
	assert.Equal(t, []string{"X"}, rec.req.Exclude)
	assert.Equal(t, &maps.LatLng{Lat: 37.5, Lng: 127.0}, rec.req.Location)
	assert.Equal(t, 5, decode[places.Result](t, out).Candidates)

	rec.err = apperr.NotFound("no places left")
	out, err = tool.Execute(context.Background(), `{"request":"quiet cafe"}`)
	require.NoError(t, err, "an exhausted neighbourhood is an empty answer")
	assert.Empty(t, out)

	rec.err = apperr.ParseFailure("bad json")
	_, err = tool.Execute(context.Background(), `{"request":"quiet cafe"}`)
	assert.ErrorIs(t, err, apperr.ErrParseFailure)
}

func TestRecommendPlacesTool_StartOverClearsExcluded(t *testing.T) {
	session := state.NewSession("s1", nil)
	session.AddExcluded("A", "B")
	rec := &fakeRecommender{}
	tool := NewRecommendPlacesTool(rec, session, config.ToolConfig{})

	_, err := tool.Execute(context.Background(), `{"request":"bakery","lat":37.5,"lng":127.0}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, session.Excluded())

	_, err = tool.Execute(context.Background(), `{"request":"bakery","lat":37.5,"lng":127.0,"start_over":true}`)
	require.NoError(t, err)
	assert.Empty(t, session.Excluded())
}

type fakeFinder struct{ err error }

func (f fakeFinder) Find(context.Context, string) (keywords.SearchResult, error) {
	return keywords.SearchResult{
		Keywords: []string{"sea", "view"},
		Places:   []maps.Place{{PlaceID: "p1", Name: "Ocean Cafe"}},
	}, f.err
}

func TestKeywordPlacesTool(t *testing.T) {
	out, err := NewKeywordPlacesTool(fakeFinder{}, config.ToolConfig{}).Execute(context.Background(), `{"text":"a cafe with a sea view"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"keywords":["sea","view"]`)
	assert.Contains(t, out, "Ocean Cafe")

	out, err = NewKeywordPlacesTool(fakeFinder{err: apperr.ErrNotFound}, config.ToolConfig{}).Execute(context.Background(), `{"text":"x"}`)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRouteTools(t *testing.T) {
	ctx := context.Background()
	session := state.NewSession("s1", nil)
	list := NewListRoutesTool(session, config.ToolConfig{})

	out, err := list.Execute(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = NewSaveRouteTool(session, config.ToolConfig{}).Execute(ctx,
		`{"name":"Day 1","stops":[{"place_id":"A","name":"Bulguksa","lat":35.79,"lng":129.33}]}`)
	require.NoError(t, err)

	_, err = NewSaveRouteTool(session, config.ToolConfig{}).Execute(ctx, `{"name":"Empty","stops":[]}`)
	assert.Error(t, err)

	out, err = list.Execute(ctx, "")
	require.NoError(t, err)
	saved := decode[[]struct {
		Name  string `json:"name"`
		Stops []struct {
			Name string `json:"name"`
		} `json:"stops"`
	}](t, out)
	require.Len(t, saved, 1)
	assert.Equal(t, "Day 1", saved[0].Name)
	assert.Equal(t, "Bulguksa", saved[0].Stops[0].Name)
}

type fakeWiki struct{ limit int }

func (f *fakeWiki) Search(_ context.Context, q string, limit int) ([]search.Article, error) {
	f.limit = limit
	return []search.Article{{Title: q}}, nil
}

func TestWikipediaTool_Limit(t *testing.T) {
	tests := []struct {
		args string
		want int
	}{
		{`{"query":"Hwaseong"}`, 3},
		{`{"query":"Hwaseong","limit":1}`, 1},
		{`{"query":"Hwaseong","limit":50}`, 5},
		{`{"query":"Hwaseong","limit":-2}`, 1},
	}
	for _, tt := range tests {
		api := &fakeWiki{}
		_, err := NewWikipediaTool(api, config.ToolConfig{}).Execute(context.Background(), tt.args)
		require.NoError(t, err)
		assert.Equal(t, tt.want, api.limit, tt.args)
	}
}

type fakeWeb struct{ answer search.WebAnswer }

func (f fakeWeb) Search(context.Context, string) (search.WebAnswer, error) { return f.answer, nil }

func TestWebSearchTool(t *testing.T) {
	out, err := NewWebSearchTool(fakeWeb{}, config.ToolConfig{}).Execute(context.Background(), `{"query":"x"}`)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = NewWebSearchTool(fakeWeb{answer: search.WebAnswer{Answer: "open 9-18"}}, config.ToolConfig{}).Execute(context.Background(), `{"query":"x"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "open 9-18")
}

type fakeDocs []string

func (f fakeDocs) Texts(context.Context, string) ([]string, error) { return f, nil }

func TestDocumentSearchTool(t *testing.T) {
	out, err := NewDocumentSearchTool(fakeDocs{"one", "two"}, config.ToolConfig{}).Execute(context.Background(), `{"query":"frog"}`)
	require.NoError(t, err)
	assert.Equal(t, "one\n---\ntwo", out)

	out, err = NewDocumentSearchTool(fakeDocs{}, config.ToolConfig{}).Execute(context.Background(), `{"query":"frog"}`)
	require.NoError(t, err)
	assert.Empty(t, out)
}

type fakeCards struct{ source string }

func (f *fakeCards) Read(_ context.Context, source string) (vision.Card, error) {
	f.source = source
	return vision.Card{Name: "Hong Gildong", Email: "h@x.kr"}, nil
}

func TestBusinessCardTool(t *testing.T) {
	reader := &fakeCards{}
	out, err := NewBusinessCardTool(reader, config.ToolConfig{}).Execute(context.Background(), `{"source":"s3://cards/hong.png"}`)
	require.NoError(t, err)
	assert.Equal(t, "s3://cards/hong.png", reader.source)
	assert.Equal(t, vision.Card{Name: "Hong Gildong", Email: "h@x.kr"}, decode[vision.Card](t, out))
}

type fakeObjects struct {
	objects []s3storage.StoredObject
	err     error
}

func (f fakeObjects) ListFiles(context.Context, string) ([]s3storage.StoredObject, error) {
	return f.objects, f.err
}

func (f fakeObjects) DownloadFile(context.Context, string) ([]byte, error) { return nil, nil }

func TestS3ListTool(t *testing.T) {
	tool := &S3ListTool{
		store:  fakeObjects{objects: []s3storage.StoredObject{{Key: "cards/a.png", Size: 2048}, {Key: "guides/b.txt", Size: 12}}},
		bucket: "trip",
	}
	out, err := tool.Execute(context.Background(), `{"prefix":"/"}`)
	require.NoError(t, err)

	want := []s3File{
		{URI: "s3://trip/cards/a.png", Size: "2.0 KB"},
		{URI: "s3://trip/guides/b.txt", Size: "12 B"},
	}
	if diff := cmp.Diff(want, decode[[]s3File](t, out)); diff != "" {
		t.Errorf("files mismatch (-want +got):\n%s", diff)
	}

	tool.store = fakeObjects{err: apperr.NotFound("empty")}
	out, err = tool.Execute(context.Background(), `{"prefix":"none/"}`)
	require.NoError(t, err)
	assert.Empty(t, out)
}
