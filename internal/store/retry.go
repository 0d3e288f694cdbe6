package store

import (
	"context"

	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/resilience"
)

// RetryingReader retries every read of the wrapped reader that fails with a
// transient error. Missing rows are results, not errors, so they are never
// retried.
type RetryingReader struct {
	next LocationReader
	cfg  resilience.RetryConfig
}

var _ LocationReader = (*RetryingReader)(nil)

// NewRetryingReader wraps next. A zero cfg uses the resilience defaults.
func NewRetryingReader(next LocationReader, cfg resilience.RetryConfig) *RetryingReader {
	return &RetryingReader{next: next, cfg: cfg}
}

func (r *RetryingReader) config(op string) resilience.RetryConfig {
	cfg := r.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(op)
	}
	return cfg
}

// FindLocationsByNameFragment implements LocationReader.
func (r *RetryingReader) FindLocationsByNameFragment(ctx context.Context, fragment string, limit int) ([]model.Location, error) {
	return resilience.DoVal(ctx, r.config("find_locations"), func(ctx context.Context) ([]model.Location, error) {
		return r.next.FindLocationsByNameFragment(ctx, fragment, limit)
	})
}

// GetLocation implements LocationReader.
func (r *RetryingReader) GetLocation(ctx context.Context, id string) (*model.Location, error) {
	return resilience.DoVal(ctx, r.config("get_location"), func(ctx context.Context) (*model.Location, error) {
		return r.next.GetLocation(ctx, id)
	})
}

// GetTenants implements LocationReader.
func (r *RetryingReader) GetTenants(ctx context.Context, locationID string) ([]model.Tenant, error) {
	return resilience.DoVal(ctx, r.config("get_tenants"), func(ctx context.Context) ([]model.Tenant, error) {
		return r.next.GetTenants(ctx, locationID)
	})
}

// ListLocations implements LocationReader.
func (r *RetryingReader) ListLocations(ctx context.Context) ([]model.Location, error) {
	return resilience.DoVal(ctx, r.config("list_locations"), func(ctx context.Context) ([]model.Location, error) {
		return r.next.ListLocations(ctx)
	})
}
