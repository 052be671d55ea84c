package state

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/tripmate/pkg/routes"
)

func TestSession_ExcludedKeepsOrderAndDedups(t *testing.T) {
	s := NewSession("", nil)
	assert.NotEmpty(t, s.ID())

	s.AddExcluded("B", "A")
	s.AddExcluded("B", "", "C")
	assert.Equal(t, []string{"B", "A", "C"}, s.Excluded())

	s.ResetExcluded()
	assert.Empty(t, s.Excluded())
}

func TestSession_ExcludedIsConcurrencySafe(t *testing.T) {
	s := NewSession("sess", nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddExcluded("same")
			_ = s.Excluded()
		}()
	}
	wg.Wait()
	assert.Equal(t, []string{"same"}, s.Excluded())
}

func TestSession_Location(t *testing.T) {
	s := NewSession("sess", nil)
	_, ok := s.Location()
	assert.False(t, ok)

	s.SetLocation(37.5665, 126.978)
	loc, ok := s.Location()
	require.True(t, ok)
	assert.Equal(t, Location{Lat: 37.5665, Lng: 126.978}, loc)
}

func TestSession_RoutesAreIsolated(t *testing.T) {
	store := routes.NewMemoryStore()
	a := NewSession("a", store)
	b := NewSession("b", store)
	ctx := context.Background()

	_, err := a.SaveRoute(ctx, "day one", []routes.Stop{{PlaceID: "p1", Name: "Gyeongbokgung"}})
	require.NoError(t, err)

	got, err := a.Routes(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "day one", got[0].Name)

	other, err := b.Routes(ctx)
	require.NoError(t, err)
	assert.Empty(t, other)

	_, err = a.SaveRoute(ctx, "empty", nil)
	assert.Error(t, err)
}
