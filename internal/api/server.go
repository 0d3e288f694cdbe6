// Package api serves the insight operations over HTTP, including the
// tool-call endpoint used by the voice assistant.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/export"
	"github.com/flourish-retail/gapcore/internal/insight"
	"github.com/flourish-retail/gapcore/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Server holds the handlers' dependencies.
type Server struct {
	svc  *insight.Service
	ping func(context.Context) error
	cfg  config.ServerConfig
}

// NewServer creates a Server. ping backs the health check and may be nil.
func NewServer(svc *insight.Service, ping func(context.Context) error, cfg config.ServerConfig) *Server {
	return &Server{svc: svc, ping: ping, cfg: cfg}
}

// Handler builds the route tree with its middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(accessLog)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
		MaxAge:         300,
	}))
	if s.cfg.RateLimit > 0 {
		r.Use(newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst).rateLimit)
	}
	if s.cfg.TimeoutSecs > 0 {
		r.Use(chimw.Timeout(time.Duration(s.cfg.TimeoutSecs) * time.Second))
	}

	r.Get("/health", s.health)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Get("/locations/resolve", s.resolve)
		v1.Get("/locations/{id}/completeness", s.completeness)
		v1.Get("/locations/{id}/nearby", s.nearby)
		v1.Post("/gaps", s.gaps)
		v1.Get("/enrichment/priorities", s.priorities)
		v1.Get("/enrichment/audit", s.audit)
		v1.Post("/tools/{name}", s.tool)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := s.svc.ResolveLocationName(r.Context(), q.Get("q"), q.Get("city"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q.Get("q"), "matches": matches})
}

func (s *Server) completeness(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ScoreLocation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	radius, err := floatParam(q.Get("radius_km"), "radius_km")
	if err != nil {
		writeError(w, r, err)
		return
	}
	minStores, err := intParam(q.Get("min_stores"), "min_stores")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.svc.FindNearbyCompetitors(r.Context(), chi.URLParam(r, "id"), radius, minStores)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// gapRequest accepts either ids or names. Ids win when both are given.
type gapRequest struct {
	TargetID      string   `json:"targetId"`
	CompetitorIDs []string `json:"competitorIds"`
	Target        string   `json:"target"`
	Competitors   []string `json:"competitors"`
	City          string   `json:"city"`
	IncludeBrands bool     `json:"includeBrands"`
}

func (s *Server) gaps(w http.ResponseWriter, r *http.Request) {
	var req gapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, eris.Wrap(model.ErrInvalidInput, "api: invalid request body"))
		return
	}

	var (
		res any
		err error
	)
	switch {
	case strings.TrimSpace(req.TargetID) != "" && len(req.CompetitorIDs) == 0:
		res, err = s.svc.AnalyzeGapsNearby(r.Context(), req.TargetID, req.IncludeBrands)
	case strings.TrimSpace(req.TargetID) != "":
		res, err = s.svc.AnalyzeGaps(r.Context(), req.TargetID, req.CompetitorIDs, req.IncludeBrands)
	case strings.TrimSpace(req.Target) != "":
		res, err = s.svc.AnalyzeGapsByName(r.Context(), req.Target, req.Competitors, req.City, req.IncludeBrands)
	default:
		err = eris.Wrap(model.ErrInvalidInput, "api: targetId or target is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) priorities(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	targets, err := s.svc.PrioritizeEnrichment(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if wantsXLSX(r) {
		var buf bytes.Buffer
		if err := export.WritePrioritiesXLSX(&buf, targets); err != nil {
			writeError(w, r, err)
			return
		}
		writeXLSX(w, "enrichment-priorities.xlsx", buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.AuditFields(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if wantsXLSX(r) {
		var buf bytes.Buffer
		if err := export.WriteAuditXLSX(&buf, report); err != nil {
			writeError(w, r, err)
			return
		}
		writeXLSX(w, "field-audit.xlsx", buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func wantsXLSX(r *http.Request) bool {
	return r.URL.Query().Get("format") == "xlsx"
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, eris.Wrapf(model.ErrInvalidInput, "api: %s must be a non-negative integer", name)
	}
	return n, nil
}

func floatParam(raw, name string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, eris.Wrapf(model.ErrInvalidInput, "api: %s must be a non-negative number", name)
	}
	return f, nil
}
