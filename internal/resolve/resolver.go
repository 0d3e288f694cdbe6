package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/fuzzy"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/normalize"
	"github.com/flourish-retail/gapcore/internal/store"
)

// AmbiguousError is returned by ResolveOne when several locations match
// and none leads decisively.
type AmbiguousError struct {
	Query   string
	Matches []Match
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("resolve: multiple locations match %q: %s", e.Query, names(e.Matches))
}

// Unwrap lets errors.Is(err, model.ErrInvalidInput) succeed.
func (e *AmbiguousError) Unwrap() error { return model.ErrInvalidInput }

// Resolver fetches candidates from a LocationReader and ranks them.
type Resolver struct {
	reader        store.LocationReader
	matcher       *Matcher
	cfg           config.ResolverConfig
	maxCandidates int
}

// NewResolver builds a Resolver using the similarity named in cfg.
func NewResolver(reader store.LocationReader, cfg config.ResolverConfig, maxCandidates int) (*Resolver, error) {
	if reader == nil {
		return nil, eris.New("resolve: nil location reader")
	}
	sim, err := fuzzy.New(cfg.Similarity)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: similarity")
	}
	return &Resolver{
		reader:        reader,
		matcher:       NewMatcher(cfg, sim),
		cfg:           cfg,
		maxCandidates: maxCandidates,
	}, nil
}

// Matcher returns the underlying matcher.
func (r *Resolver) Matcher() *Matcher { return r.matcher }

// Resolve ranks stored locations against query. A blank query or no
// candidate above the floor yields an empty slice and no error. When no
// city hint is given, a trailing "in <city>" phrase in the query is used.
func (r *Resolver) Resolve(ctx context.Context, query, cityHint string, limit int) ([]Match, error) {
	query, cityHint = splitCityHint(query, cityHint)
	if query == "" {
		return []Match{}, nil
	}

	name := normalize.Name(query)
	if name.IsZero() {
		return []Match{}, nil
	}

	candidates, err := r.candidates(ctx, name)
	if err != nil {
		return nil, err
	}

	matches := r.matcher.Rank(name, cityHint, candidates, limit)
	zap.L().Debug("resolve: ranked candidates",
		zap.String("query", query),
		zap.String("city_hint", cityHint),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)),
	)
	return matches, nil
}

// splitCityHint trims query and, when cityHint is blank, takes the city from
// a trailing "in <city>" phrase.
func splitCityHint(query, cityHint string) (string, string) {
	query = strings.TrimSpace(query)
	cityHint = strings.TrimSpace(cityHint)
	if query == "" || cityHint != "" {
		return query, cityHint
	}
	if rest, city := normalize.ExtractCityHint(query); city != "" {
		return rest, city
	}
	return query, ""
}

// candidates narrows the search by the name key, then by each significant
// token, then falls back to every location so misspelt single-word queries
// still reach the fuzzy ranking.
func (r *Resolver) candidates(ctx context.Context, name normalize.NormalizedName) ([]model.Location, error) {
	found, err := r.reader.FindLocationsByNameFragment(ctx, name.Key, r.maxCandidates)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: find candidates for %q", name.Key)
	}
	if len(found) > 0 {
		return found, nil
	}

	tokens := significantTokens(name.Key)
	if len(tokens) > 1 {
		seen := make(map[string]bool)
		for _, tok := range tokens {
			locs, err := r.reader.FindLocationsByNameFragment(ctx, tok, r.maxCandidates)
			if err != nil {
				return nil, eris.Wrapf(err, "resolve: find candidates for token %q", tok)
			}
			for _, l := range locs {
				if !seen[l.ID] {
					seen[l.ID] = true
					found = append(found, l)
				}
			}
		}
		if len(found) > 0 {
			return found, nil
		}
	}

	all, err := r.reader.ListLocations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "resolve: list locations")
	}
	zap.L().Debug("resolve: no fragment hits, scanning all locations",
		zap.String("key", name.Key),
		zap.Int("locations", len(all)),
	)
	return all, nil
}

var stopTokens = map[string]bool{"the": true, "and": true, "of": true, "at": true, "in": true}

func significantTokens(key string) []string {
	var out []string
	for _, tok := range strings.Fields(key) {
		if len([]rune(tok)) < 3 || stopTokens[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// ResolveOne returns the single location a query refers to. It succeeds
// when exactly one candidate clears the floor, when exactly one candidate
// matches the name exactly, or when the best candidate leads the runner-up
// by more than the decisive margin. No candidate yields ErrNotFound and a
// close call yields an *AmbiguousError.
func (r *Resolver) ResolveOne(ctx context.Context, query, cityHint string) (*Match, error) {
	query, cityHint = splitCityHint(query, cityHint)
	if query == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "resolve: location name is required")
	}

	matches, err := r.Resolve(ctx, query, cityHint, r.cfg.MaxLimit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		if cityHint != "" {
			return nil, eris.Wrapf(model.ErrNotFound, "resolve: no location matches %q in %s", query, cityHint)
		}
		return nil, eris.Wrapf(model.ErrNotFound, "resolve: no location matches %q", query)
	}

	best := matches[0]
	if len(matches) == 1 {
		return &best, nil
	}

	var exact []Match
	for _, m := range matches {
		if m.ExactName {
			exact = append(exact, m)
		}
	}
	if len(exact) == 1 {
		return &exact[0], nil
	}

	if best.Confidence-matches[1].Confidence > r.cfg.DecisiveMargin {
		return &best, nil
	}
	return nil, &AmbiguousError{Query: query, Matches: matches}
}

// ResolveMany resolves each name independently. Names that fail are logged
// but do not stop the others. When nothing resolves the first failure is
// returned, so an *AmbiguousError still reaches the caller as one.
func (r *Resolver) ResolveMany(ctx context.Context, queries []string, cityHint string) ([]Match, error) {
	var out []Match
	var first error
	var failures []string
	for _, q := range queries {
		m, err := r.ResolveOne(ctx, q, cityHint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if first == nil {
				first = err
			}
			failures = append(failures, err.Error())
			continue
		}
		out = append(out, *m)
	}
	if len(out) == 0 && first != nil {
		return nil, eris.Wrapf(first, "resolve: none of %d locations resolved", len(queries))
	}
	if len(failures) > 0 {
		zap.L().Warn("resolve: some names did not resolve", zap.Strings("failures", failures))
	}
	return out, nil
}
