package store

import (
	"context"

	"github.com/flourish-retail/gapcore/internal/model"
)

// LocationReader is the read-only data access the analytical core depends
// on. Implementations must be safe for concurrent use.
type LocationReader interface {
	// FindLocationsByNameFragment returns locations whose name contains the
	// folded fragment (or is trigram-similar to it, where the backend
	// supports that), capped at limit. limit <= 0 means the backend default.
	FindLocationsByNameFragment(ctx context.Context, fragment string, limit int) ([]model.Location, error)

	// GetLocation returns the location, or nil and no error when it does
	// not exist.
	GetLocation(ctx context.Context, id string) (*model.Location, error)

	// GetTenants returns every tenant of the location. An unknown location
	// yields an empty slice.
	GetTenants(ctx context.Context, locationID string) ([]model.Tenant, error)

	// ListLocations returns every location ordered by name then id.
	ListLocations(ctx context.Context) ([]model.Location, error)
}

// Store is a LocationReader with a lifecycle.
type Store interface {
	LocationReader

	Ping(ctx context.Context) error
	Close() error
}

// Seeder loads fixture data into a backend.
type Seeder interface {
	Migrate(ctx context.Context) error
	Seed(ctx context.Context, f *Fixture) error
}
