package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/flourish-retail/gapcore/internal/config"
	"github.com/flourish-retail/gapcore/internal/insight"
	"github.com/flourish-retail/gapcore/internal/store"
)

func newTestHandler(t *testing.T, mutate func(*config.Config), ping func(context.Context) error) http.Handler {
	t.Helper()
	f, err := store.LoadFixture("../../testdata/fixtures/manchester.yaml")
	require.NoError(t, err)

	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	svc, err := insight.New(store.NewMemory(f), cfg)
	require.NoError(t, err)
	return NewServer(svc, ping, cfg.Server).Handler()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, nil, func(context.Context) error { return nil })
	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	down := newTestHandler(t, nil, func(context.Context) error { return errors.New("down") })
	rec = do(t, down, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode(t, rec)["status"])
}

func TestRequestID(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/v1/locations/nope/completeness", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", decode(t, rec)["requestId"])
}

func TestResolve(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/v1/locations/resolve?q=trafford+centre", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "trafford centre", body["query"])
	matches := body["matches"].([]any)
	require.NotEmpty(t, matches)
	assert.Equal(t, "trafford", matches[0].(map[string]any)["locationId"])

	rec = do(t, h, http.MethodGet, "/v1/locations/resolve?q=x&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompleteness(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/v1/locations/trafford/completeness", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 60, body["score"])
	assert.Equal(t, "GOOD", body["grade"])
	assert.Equal(t, "trafford", body["location"].(map[string]any)["id"])

	rec = do(t, h, http.MethodGet, "/v1/locations/nope/completeness", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])
}

func TestNearby(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/v1/locations/trafford/nearby", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 10, body["radiusKm"])
	competitors := body["competitors"].([]any)
	require.Len(t, competitors, 1)
	assert.Equal(t, "arndale", competitors[0].(map[string]any)["id"])

	rec = do(t, h, http.MethodGet, "/v1/locations/trafford/nearby?radius_km=100", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["competitors"].([]any), 2)

	for _, q := range []string{"radius_km=abc", "radius_km=-5", "radius_km=NaN", "radius_km=Inf", "min_stores=many"} {
		rec = do(t, h, http.MethodGet, "/v1/locations/trafford/nearby?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGaps(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"by ids", `{"targetId":"trafford","competitorIds":["arndale"],"includeBrands":true}`},
		{"by names", `{"target":"Trafford Centre","competitors":["Manchester Arndale"],"includeBrands":true}`},
		{"id with nearby competitors", `{"targetId":"trafford","includeBrands":true}`},
		{"ids win", `{"targetId":"trafford","competitorIds":["arndale"],"target":"Meadowhall","includeBrands":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/gaps", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, "trafford", body["target"].(map[string]any)["id"])
			missing := body["missingCategories"].([]any)
			require.Len(t, missing, 1)
			assert.Equal(t, "Toys", missing[0].(map[string]any)["category"])
			brands := body["missingBrands"].([]any)
			require.Len(t, brands, 1)
			assert.Equal(t, "Lego", brands[0].(map[string]any)["name"])
		})
	}
}

func TestGaps_Errors(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"no target", `{"competitorIds":["arndale"]}`, http.StatusBadRequest},
		{"unknown competitor", `{"targetId":"trafford","competitorIds":["nowhere"]}`, http.StatusNotFound},
		{"no nearby", `{"target":"Meadowhall"}`, http.StatusUnprocessableEntity},
		{"id with no nearby", `{"targetId":"meadowhall"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/gaps", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestPriorities(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/v1/enrichment/priorities", "")
	require.Equal(t, http.StatusOK, rec.Code)
	targets := decode(t, rec)["targets"].([]any)
	require.Len(t, targets, 3)
	first := targets[0].(map[string]any)
	assert.Equal(t, "arndale", first["location"].(map[string]any)["id"])

	rec = do(t, h, http.MethodGet, "/v1/enrichment/priorities?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["targets"].([]any), 1)
}

func TestPriorities_XLSX(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/v1/enrichment/priorities?format=xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "enrichment-priorities.xlsx")

	f, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	sheet, ok := f.Sheet["Priorities"]
	require.True(t, ok)
	// Header plus one row per location.
	assert.Len(t, sheet.Rows, 4)
	assert.Equal(t, "arndale", sheet.Rows[1].Cells[1].Value)
}

func TestAudit(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodGet, "/v1/enrichment/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	overview := decode(t, rec)["overview"].(map[string]any)
	assert.EqualValues(t, 3, overview["totalLocations"])
	assert.EqualValues(t, 2, overview["locationsWithWebsites"])

	rec = do(t, h, http.MethodGet, "/v1/enrichment/audit?format=xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := xlsx.OpenBinary(rec.Body.Bytes())
	require.NoError(t, err)
	_, ok := f.Sheet["Fields"]
	assert.True(t, ok)
	_, ok = f.Sheet["Summary"]
	assert.True(t, ok)
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, func(c *config.Config) {
		c.Server.RateLimit = 1
		c.Server.RateBurst = 1
	}, nil)

	rec := do(t, h, http.MethodGet, "/v1/locations/trafford/completeness", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/locations/trafford/completeness", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Health checks bypass the limiter.
	rec = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func forwardedFrom(t *testing.T, h http.Handler, ip string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/v1/locations/trafford/completeness", nil)
	req.Header.Set("X-Forwarded-For", ip)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_IgnoresForwardedHeaders(t *testing.T) {
	h := newTestHandler(t, func(c *config.Config) {
		c.Server.RateLimit = 1
		c.Server.RateBurst = 1
	}, nil)

	limited := 0
	for i := 0; i < 20; i++ {
		rec := forwardedFrom(t, h, fmt.Sprintf("10.0.0.%d", i+1))
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 19, limited)
}

func TestRateLimit_TrustedProxy(t *testing.T) {
	h := newTestHandler(t, func(c *config.Config) {
		c.Server.RateLimit = 1
		c.Server.RateBurst = 1
		c.Server.TrustProxy = true
	}, nil)

	assert.Equal(t, http.StatusOK, forwardedFrom(t, h, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, forwardedFrom(t, h, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, forwardedFrom(t, h, "10.0.0.2").Code)
}

func TestCORS(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIntParam(t *testing.T) {
	n, err := intParam("", "limit")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = intParam("7", "limit")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = intParam("-1", "limit")
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, statusFor(err))
}

func TestPublicMessage(t *testing.T) {
	err := errors.New("pq: password authentication failed")
	assert.Equal(t, "internal server error", publicMessage(err, statusFor(err)))
}
