// Package insight exposes the location resolution, gap analysis and
// completeness operations over a single injected LocationReader.
package insight

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/flourish-retail/gapcore/internal/completeness"
	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/gaps"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/nearby"
	"github.com/flourish-retail/gapcore/internal/resolve"
	"github.com/flourish-retail/gapcore/internal/store"
)

// Service wires the analytical packages to a data source. It keeps no
// mutable state and is safe for concurrent use.
type Service struct {
	reader   store.LocationReader
	resolver *resolve.Resolver
	engine   *gaps.Engine
	scorer   *completeness.Scorer
	nearby   config.NearbyConfig
	gapCfg   config.GapConfig
}

// New validates the relevant configuration sections and builds a Service.
func New(reader store.LocationReader, cfg *config.Config) (*Service, error) {
	if reader == nil {
		return nil, eris.New("insight: nil location reader")
	}
	if err := cfg.Resolver.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Gaps.Validate(); err != nil {
		return nil, err
	}

	resolver, err := resolve.NewResolver(reader, cfg.Resolver, cfg.Store.MaxCandidates)
	if err != nil {
		return nil, err
	}
	scorer, err := completeness.NewScorer(cfg.Completeness)
	if err != nil {
		return nil, err
	}

	return &Service{
		reader:   reader,
		resolver: resolver,
		engine:   gaps.NewEngine(reader, cfg.Gaps),
		scorer:   scorer,
		nearby:   cfg.Nearby,
		gapCfg:   cfg.Gaps,
	}, nil
}

// ResolveLocationName ranks stored locations against a free-text name.
// No match is an empty slice, not an error.
func (s *Service) ResolveLocationName(ctx context.Context, query, cityHint string, limit int) ([]resolve.Match, error) {
	return s.resolver.Resolve(ctx, query, cityHint, limit)
}

// ResolveOne returns the single location a name refers to.
func (s *Service) ResolveOne(ctx context.Context, query, cityHint string) (*resolve.Match, error) {
	return s.resolver.ResolveOne(ctx, query, cityHint)
}

// AnalyzeGaps compares the target's tenant mix with the competitors'.
func (s *Service) AnalyzeGaps(ctx context.Context, targetID string, competitorIDs []string, includeBrands bool) (*gaps.Result, error) {
	return s.engine.Analyze(ctx, targetID, competitorIDs, includeBrands)
}

// ScoreCompleteness scores a location already in hand.
func (s *Service) ScoreCompleteness(loc model.Location) completeness.Result {
	return s.scorer.Score(loc)
}

// LocationScore is the completeness of a stored location.
type LocationScore struct {
	Location model.LocationRef `json:"location"`
	completeness.Result
}

// ScoreLocation fetches a location by id and scores it.
func (s *Service) ScoreLocation(ctx context.Context, id string) (*LocationScore, error) {
	loc, err := s.location(ctx, id)
	if err != nil {
		return nil, err
	}
	return &LocationScore{Location: loc.Ref(), Result: s.scorer.Score(*loc)}, nil
}

// NearbyResult lists the destinations around an origin.
type NearbyResult struct {
	Origin      model.LocationRef   `json:"origin"`
	RadiusKm    float64             `json:"radiusKm"`
	Competitors []nearby.Competitor `json:"competitors"`
}

// FindNearbyCompetitors lists shopping centres and retail parks within
// radiusKm of the location. radiusKm <= 0 uses the configured radius.
func (s *Service) FindNearbyCompetitors(ctx context.Context, id string, radiusKm float64, minStores int) (*NearbyResult, error) {
	origin, err := s.location(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.nearbyOf(ctx, *origin, radiusKm, minStores, s.nearby.Limit)
}

func (s *Service) nearbyOf(ctx context.Context, origin model.Location, radiusKm float64, minStores, limit int) (*NearbyResult, error) {
	if !nearby.ValidRadius(radiusKm) {
		radiusKm = s.nearby.RadiusKm
	}
	if !nearby.ValidRadius(radiusKm) {
		radiusKm = nearby.DefaultRadiusKm
	}
	all, err := s.reader.ListLocations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "insight: list locations")
	}
	opts := nearby.Options{RadiusKm: radiusKm, Limit: limit, MinStores: minStores}
	competitors, err := nearby.Find(origin, all, opts)
	if err != nil {
		return nil, err
	}
	return &NearbyResult{
		Origin:      origin.Ref(),
		RadiusKm:    opts.RadiusKm,
		Competitors: competitors,
	}, nil
}

// AnalyzeGapsByName resolves the target and competitor names, then runs
// the gap analysis. With no competitor names the target's nearby
// destinations are used as the competitor set.
func (s *Service) AnalyzeGapsByName(ctx context.Context, target string, competitors []string, cityHint string, includeBrands bool) (*gaps.Result, error) {
	t, err := s.resolver.ResolveOne(ctx, target, cityHint)
	if err != nil {
		return nil, err
	}

	if len(nonBlank(competitors)) == 0 {
		return s.AnalyzeGapsNearby(ctx, t.LocationID, includeBrands)
	}
	matches, err := s.resolver.ResolveMany(ctx, nonBlank(competitors), "")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.LocationID
	}
	return s.engine.Analyze(ctx, t.LocationID, ids, includeBrands)
}

// AnalyzeGapsNearby compares the target with the destinations around it,
// capped at gaps.max_competitors. No destinations in range is
// ErrInsufficientData.
func (s *Service) AnalyzeGapsNearby(ctx context.Context, targetID string, includeBrands bool) (*gaps.Result, error) {
	loc, err := s.location(ctx, targetID)
	if err != nil {
		return nil, err
	}
	near, err := s.nearbyOf(ctx, *loc, 0, 0, s.gapCfg.MaxCompetitors)
	if err != nil {
		return nil, err
	}
	if len(near.Competitors) == 0 {
		return nil, eris.Wrapf(model.ErrInsufficientData, "insight: no competitors near %s", loc.Name)
	}
	ids := make([]string, len(near.Competitors))
	for i, c := range near.Competitors {
		ids[i] = c.ID
	}
	zap.L().Debug("insight: using nearby competitors",
		zap.String("target_id", loc.ID),
		zap.Int("competitors", len(ids)),
	)
	return s.engine.Analyze(ctx, loc.ID, ids, includeBrands)
}

// PrioritizeEnrichment returns the least complete locations first.
func (s *Service) PrioritizeEnrichment(ctx context.Context, limit int) ([]completeness.Target, error) {
	all, err := s.reader.ListLocations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "insight: list locations")
	}
	return s.scorer.Prioritize(all, limit), nil
}

// AuditFields measures field coverage across every stored location.
func (s *Service) AuditFields(ctx context.Context) (completeness.AuditReport, error) {
	all, err := s.reader.ListLocations(ctx)
	if err != nil {
		return completeness.AuditReport{}, eris.Wrap(err, "insight: list locations")
	}
	return completeness.Audit(all), nil
}

func (s *Service) location(ctx context.Context, id string) (*model.Location, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "insight: location id is required")
	}
	loc, err := s.reader.GetLocation(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "insight: get location %s", id)
	}
	if loc == nil {
		return nil, eris.Wrapf(model.ErrNotFound, "insight: location %s", id)
	}
	return loc, nil
}

func nonBlank(names []string) []string {
	var out []string
	for _, n := range names {
		if strings.TrimSpace(n) != "" {
			out = append(out, n)
		}
	}
	return out
}
