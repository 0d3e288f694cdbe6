// Package nearby finds competing destinations around a location.
package nearby

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/flourish-retail/gapcore/internal/model"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Defaults applied when Options leaves a value unset.
const (
	DefaultRadiusKm = 10.0
	DefaultLimit    = 20
)

// Options narrows the search.
type Options struct {
	RadiusKm  float64
	Limit     int
	MinStores int
}

func (o Options) withDefaults() Options {
	if !ValidRadius(o.RadiusKm) {
		o.RadiusKm = DefaultRadiusKm
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	return o
}

// ValidRadius reports whether r is a positive, finite search radius.
func ValidRadius(r float64) bool {
	return r > 0 && !math.IsInf(r, 1)
}

// Competitor is a destination within range of the origin.
type Competitor struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	City           string  `json:"city,omitempty"`
	County         string  `json:"county,omitempty"`
	NumberOfStores *int    `json:"numberOfStores,omitempty"`
	DistanceKm     float64 `json:"distanceKm"`
}

// Point returns the location as an SRID 4326 point, or nil when it has no
// usable coordinates.
func Point(l model.Location) *geom.Point {
	if !l.HasCoordinates() {
		return nil
	}
	return geom.NewPointFlat(geom.XY, []float64{*l.Longitude, *l.Latitude}).SetSRID(4326)
}

// DistanceKm is the haversine distance between two XY (lon, lat) points.
func DistanceKm(a, b *geom.Point) float64 {
	lat1, lat2 := rad(a.Y()), rad(b.Y())
	dLat := lat2 - lat1
	dLon := rad(b.X() - a.X())

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func rad(deg float64) float64 { return deg * math.Pi / 180 }

// Find returns shopping centres and retail parks within opts.RadiusKm of
// origin, nearest first, ties broken by name. The origin itself and
// candidates without coordinates are skipped.
func Find(origin model.Location, candidates []model.Location, opts Options) ([]Competitor, error) {
	o := Point(origin)
	if o == nil {
		return nil, eris.Wrapf(model.ErrInsufficientData, "nearby: location %q has no coordinates", origin.ID)
	}
	opts = opts.withDefaults()

	out := []Competitor{}
	for _, c := range candidates {
		if c.ID == origin.ID || !c.Type.IsDestination() {
			continue
		}
		if opts.MinStores > 0 && (c.NumberOfStores == nil || *c.NumberOfStores < opts.MinStores) {
			continue
		}
		p := Point(c)
		if p == nil {
			continue
		}
		d := DistanceKm(o, p)
		if d > opts.RadiusKm {
			continue
		}
		out = append(out, Competitor{
			ID:             c.ID,
			Name:           c.Name,
			City:           c.City,
			County:         c.County,
			NumberOfStores: c.NumberOfStores,
			DistanceKm:     d,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
