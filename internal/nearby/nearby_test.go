package nearby

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flourish-retail/gapcore/internal/model"
)

func at(id, name string, typ model.LocationType, lat, lon float64, stores int) model.Location {
	l := model.Location{
		ID:        id,
		Name:      name,
		Type:      typ,
		City:      "Manchester",
		Latitude:  model.Float64Ptr(lat),
		Longitude: model.Float64Ptr(lon),
	}
	if stores > 0 {
		l.NumberOfStores = model.IntPtr(stores)
	}
	return l
}

func manchester() (model.Location, []model.Location) {
	origin := at("trafford", "The Trafford Centre", model.LocationTypeShoppingCentre, 53.4668, -2.3480, 200)
	return origin, []model.Location{
		origin,
		at("arndale", "Manchester Arndale", model.LocationTypeShoppingCentre, 53.4831, -2.2400, 240),
		at("liverpool", "Liverpool ONE", model.LocationTypeShoppingCentre, 53.4010, -2.9870, 170),
		at("middlebrook", "Middlebrook Retail Park", model.LocationTypeRetailPark, 53.5710, -2.5330, 40),
		at("stretford", "Stretford Mall", model.LocationTypeShoppingCentre, 53.4460, -2.3090, 60),
		at("lowry", "Lowry Outlet", model.LocationTypeOutletCentre, 53.4720, -2.2960, 80),
		at("deansgate", "Deansgate", model.LocationTypeHighStreet, 53.4790, -2.2480, 0),
		{ID: "nocoords", Name: "No Coords Park", Type: model.LocationTypeRetailPark},
		at("zero", "Zero Island", model.LocationTypeShoppingCentre, 0, 0, 10),
	}
}

func ids(cs []Competitor) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func TestDistanceKm(t *testing.T) {
	a := Point(model.Location{Latitude: model.Float64Ptr(0.0001), Longitude: model.Float64Ptr(0.0001)})
	b := Point(model.Location{Latitude: model.Float64Ptr(1.0001), Longitude: model.Float64Ptr(0.0001)})
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.InDelta(t, 111.19, DistanceKm(a, b), 0.05)
	assert.InDelta(t, 0, DistanceKm(a, a), 1e-9)
}

func TestFind_DefaultRadius(t *testing.T) {
	origin, all := manchester()
	got, err := Find(origin, all, Options{})
	require.NoError(t, err)

	// Outlet centres and high streets are not competitors; neither is the
	// origin or anything without coordinates.
	assert.Equal(t, []string{"stretford", "arndale"}, ids(got))
	assert.InDelta(t, 3.47, got[0].DistanceKm, 0.01)
	assert.InDelta(t, 7.37, got[1].DistanceKm, 0.01)
}

func TestFind_NonFiniteRadiusFallsBackToDefault(t *testing.T) {
	origin, all := manchester()
	for _, r := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -3} {
		got, err := Find(origin, all, Options{RadiusKm: r})
		require.NoError(t, err)
		assert.Equal(t, []string{"stretford", "arndale"}, ids(got), r)
	}
}

func TestValidRadius(t *testing.T) {
	assert.True(t, ValidRadius(0.5))
	assert.False(t, ValidRadius(0))
	assert.False(t, ValidRadius(math.NaN()))
	assert.False(t, ValidRadius(math.Inf(1)))
}

func TestFind_Options(t *testing.T) {
	origin, all := manchester()

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"wide radius", Options{RadiusKm: 50}, []string{"stretford", "arndale", "middlebrook", "liverpool"}},
		{"min stores", Options{RadiusKm: 50, MinStores: 100}, []string{"arndale", "liverpool"}},
		{"limit", Options{RadiusKm: 50, Limit: 2}, []string{"stretford", "arndale"}},
		{"tight radius", Options{RadiusKm: 1}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Find(origin, all, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFind_TiesByName(t *testing.T) {
	origin := at("o", "Origin", model.LocationTypeShoppingCentre, 53.0, -2.0, 0)
	cands := []model.Location{
		at("b", "Bravo", model.LocationTypeRetailPark, 53.01, -2.0, 0),
		at("a", "Alpha", model.LocationTypeRetailPark, 53.01, -2.0, 0),
	}
	got, err := Find(origin, cands, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestFind_OriginWithoutCoordinates(t *testing.T) {
	_, all := manchester()
	_, err := Find(model.Location{ID: "x", Latitude: model.Float64Ptr(0), Longitude: model.Float64Ptr(0)}, all, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInsufficientData))
}
