package gaps

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/store"
)

// Engine fetches locations and tenants through a LocationReader and runs
// Compare over them. It holds no mutable state.
type Engine struct {
	reader store.LocationReader
	cfg    config.GapConfig
}

// NewEngine creates an Engine.
func NewEngine(reader store.LocationReader, cfg config.GapConfig) *Engine {
	return &Engine{reader: reader, cfg: cfg}
}

// Analyze compares the target with the competitors. Blank and duplicate
// competitor ids and the target's own id are ignored; if none remain the
// request is invalid. Unknown ids yield model.ErrNotFound.
func (e *Engine) Analyze(ctx context.Context, targetID string, competitorIDs []string, includeBrands bool) (*Result, error) {
	targetID = strings.TrimSpace(targetID)
	if targetID == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "gaps: target id is required")
	}

	ids := cleanCompetitorIDs(targetID, competitorIDs)
	if len(ids) == 0 {
		return nil, eris.Wrap(model.ErrInvalidInput, "gaps: at least one competitor other than the target is required")
	}
	if e.cfg.MaxCompetitors > 0 && len(ids) > e.cfg.MaxCompetitors {
		return nil, eris.Wrapf(model.ErrInvalidInput, "gaps: %d competitors exceeds the limit of %d", len(ids), e.cfg.MaxCompetitors)
	}

	target, err := e.fetch(ctx, targetID)
	if err != nil {
		return nil, err
	}

	competitors := make([]Subject, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	if e.cfg.MaxConcurrency > 0 {
		g.SetLimit(e.cfg.MaxConcurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			s, err := e.fetch(gctx, id)
			if err != nil {
				return err
			}
			competitors[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := Compare(target, competitors, includeBrands, e.cfg)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("gaps: analysis complete",
		zap.String("target_id", targetID),
		zap.Int("competitors", len(ids)),
		zap.Int("missing", len(res.MissingCategories)),
		zap.Int("under_represented", len(res.UnderRepresented)),
		zap.Int("missing_brands", len(res.MissingBrands)),
	)
	return res, nil
}

func (e *Engine) fetch(ctx context.Context, id string) (Subject, error) {
	loc, err := e.reader.GetLocation(ctx, id)
	if err != nil {
		return Subject{}, eris.Wrapf(err, "gaps: get location %s", id)
	}
	if loc == nil {
		return Subject{}, eris.Wrapf(model.ErrNotFound, "gaps: location %s", id)
	}
	tenants, err := e.reader.GetTenants(ctx, id)
	if err != nil {
		return Subject{}, eris.Wrapf(err, "gaps: get tenants for %s", id)
	}
	return Subject{Location: *loc, Tenants: tenants}, nil
}

func cleanCompetitorIDs(targetID string, ids []string) []string {
	seen := map[string]bool{targetID: true}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
