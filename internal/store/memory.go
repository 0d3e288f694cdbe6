package store

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
)

// DefaultMaxCandidates caps fragment searches when the caller passes no limit.
const DefaultMaxCandidates = 200

// Fixture is a self-contained data set of locations and their tenants.
type Fixture struct {
	Locations []model.Location `yaml:"locations" json:"locations"`
	Tenants   []model.Tenant   `yaml:"tenants" json:"tenants"`
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read fixture %s", path)
	}
	return ParseFixture(data)
}

// ParseFixture decodes YAML fixture data and checks referential integrity.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "store: parse fixture")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks that ids are present and unique and that every tenant
// belongs to a known location.
func (f *Fixture) Validate() error {
	var errs []string
	locs := make(map[string]bool, len(f.Locations))
	for i, l := range f.Locations {
		switch {
		case l.ID == "":
			errs = append(errs, fmt.Sprintf("location #%d has no id", i))
		case locs[l.ID]:
			errs = append(errs, fmt.Sprintf("duplicate location id %s", l.ID))
		}
		locs[l.ID] = true
	}
	tenants := make(map[string]bool, len(f.Tenants))
	for i, t := range f.Tenants {
		switch {
		case t.ID == "":
			errs = append(errs, fmt.Sprintf("tenant #%d has no id", i))
		case tenants[t.ID]:
			errs = append(errs, fmt.Sprintf("duplicate tenant id %s", t.ID))
		}
		tenants[t.ID] = true
		if !locs[t.LocationID] {
			errs = append(errs, fmt.Sprintf("tenant %s references unknown location %q", t.ID, t.LocationID))
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("store: invalid fixture: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MemoryStore serves a Fixture from memory. It is never mutated after
// NewMemory returns, so concurrent reads need no locking.
type MemoryStore struct {
	locations []model.Location
	byID      map[string]int
	tenants   map[string][]model.Tenant
	folded    []string
}

var _ Store = (*MemoryStore)(nil)

// NewMemory builds a MemoryStore over the fixture. Locations keep their
// fixture order for fragment searches.
func NewMemory(f *Fixture) *MemoryStore {
	s := &MemoryStore{
		byID:    make(map[string]int),
		tenants: make(map[string][]model.Tenant),
	}
	if f == nil {
		return s
	}
	for _, l := range f.Locations {
		if _, dup := s.byID[l.ID]; dup {
			continue
		}
		s.byID[l.ID] = len(s.locations)
		s.locations = append(s.locations, l)
		s.folded = append(s.folded, normalize.Fold(l.Name))
	}
	for _, t := range f.Tenants {
		s.tenants[t.LocationID] = append(s.tenants[t.LocationID], t)
	}
	return s
}

// FindLocationsByNameFragment implements LocationReader.
func (s *MemoryStore) FindLocationsByNameFragment(_ context.Context, fragment string, limit int) ([]model.Location, error) {
	if limit <= 0 {
		limit = DefaultMaxCandidates
	}
	frag := normalize.Fold(fragment)

	out := make([]model.Location, 0)
	for i, name := range s.folded {
		if frag != "" && !strings.Contains(name, frag) {
			continue
		}
		out = append(out, s.locations[i])
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// GetLocation implements LocationReader.
func (s *MemoryStore) GetLocation(_ context.Context, id string) (*model.Location, error) {
	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	loc := s.locations[i]
	return &loc, nil
}

// GetTenants implements LocationReader.
func (s *MemoryStore) GetTenants(_ context.Context, locationID string) ([]model.Tenant, error) {
	src := s.tenants[locationID]
	out := make([]model.Tenant, len(src))
	copy(out, src)
	return out, nil
}

// ListLocations implements LocationReader.
func (s *MemoryStore) ListLocations(_ context.Context) ([]model.Location, error) {
	out := make([]model.Location, len(s.locations))
	copy(out, s.locations)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Ping implements Store.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
