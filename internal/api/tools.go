package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/flourish-retail/gapcore/internal/format"
	"github.com/flourish-retail/gapcore/internal/gaps"
	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/resolve"
)

// Tool names accepted by POST /v1/tools/{name}.
const (
	ToolSearchLocation          = "searchLocation"
	ToolAnalyzeTenantGaps       = "analyzeTenantGaps"
	ToolFindNearbyCompetitors   = "findNearbyCompetitors"
	ToolGetLocationCompleteness = "getLocationCompleteness"
)

// toolArgs is the union of every tool's arguments.
type toolArgs struct {
	Query         string   `json:"query"`
	LocationName  string   `json:"locationName"`
	LocationID    string   `json:"locationId"`
	City          string   `json:"city"`
	Limit         int      `json:"limit"`
	Competitors   []string `json:"competitors"`
	IncludeBrands *bool    `json:"includeBrands"`
	RadiusKm      float64  `json:"radiusKm"`
	MinStores     int      `json:"minStores"`
	DetailLevel   string   `json:"detailLevel"`
	UserQuery     string   `json:"userQuery"`
}

func (a toolArgs) name() string {
	if s := strings.TrimSpace(a.LocationName); s != "" {
		return s
	}
	return strings.TrimSpace(a.Query)
}

func (a toolArgs) level() format.DetailLevel {
	if a.DetailLevel != "" {
		return format.ParseDetailLevel(a.DetailLevel)
	}
	if a.UserQuery != "" {
		return format.DetectDetailLevel(a.UserQuery)
	}
	return format.DetectDetailLevel(a.Query)
}

// toolCall is one call in the assistant's webhook envelope.
type toolCall struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
	Parameters json.RawMessage `json:"parameters"`
}

// toolRequest covers the envelope shapes the assistant sends: a
// message.toolCallList, a message.toolWithToolCallList, or bare arguments
// with an optional toolCallId.
type toolRequest struct {
	Message *struct {
		ToolCallList         []toolCall `json:"toolCallList"`
		ToolWithToolCallList []struct {
			ToolCall toolCall `json:"toolCall"`
		} `json:"toolWithToolCallList"`
	} `json:"message"`
	ToolCallID string          `json:"toolCallId"`
	Parameters json.RawMessage `json:"parameters"`
}

// ToolResponse is returned for direct calls without an envelope.
type ToolResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	format.Response
	Error string `json:"error,omitempty"`
}

type toolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
}

type toolEnvelopeResponse struct {
	Results []toolResult `json:"results"`
}

// parseToolRequest extracts the call id and the raw arguments.
func parseToolRequest(body []byte) (string, []byte, error) {
	var req toolRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", nil, eris.Wrap(model.ErrInvalidInput, "api: invalid tool request body")
	}

	var call *toolCall
	if m := req.Message; m != nil {
		switch {
		case len(m.ToolCallList) > 0:
			call = &m.ToolCallList[0]
		case len(m.ToolWithToolCallList) > 0:
			call = &m.ToolWithToolCallList[0].ToolCall
		}
	}
	if call != nil {
		args, err := rawArguments(call.Function.Arguments)
		if err != nil {
			return call.ID, nil, err
		}
		if len(args) == 0 {
			args = call.Parameters
		}
		return call.ID, args, nil
	}

	if len(req.Parameters) > 0 {
		return req.ToolCallID, req.Parameters, nil
	}
	return req.ToolCallID, body, nil
}

// rawArguments accepts arguments either as an object or as a JSON string
// holding the object.
func rawArguments(raw json.RawMessage) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, eris.Wrap(model.ErrInvalidInput, "api: invalid tool arguments")
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return []byte(s), nil
}

func (s *Server) tool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, r, eris.Wrap(model.ErrInvalidInput, "api: read tool request"))
		return
	}

	callID, raw, err := parseToolRequest(body)
	var args toolArgs
	if err == nil && len(raw) > 0 {
		if jerr := json.Unmarshal(raw, &args); jerr != nil {
			err = eris.Wrap(model.ErrInvalidInput, "api: invalid tool arguments")
		}
	}

	var (
		data any
		resp format.Response
	)
	if err == nil {
		data, resp, err = s.runTool(r.Context(), name, args)
	}

	if callID != "" {
		result := toolResult{ToolCallID: callID}
		if err != nil {
			result.Error = toolErrorMessage(err)
		} else {
			result.Result = resp.Text()
		}
		zap.L().Debug("api: tool call",
			zap.String("tool", name),
			zap.String("tool_call_id", callID),
			zap.Bool("ok", err == nil),
		)
		// The assistant only reads results from a 200 response.
		writeJSON(w, http.StatusOK, toolEnvelopeResponse{Results: []toolResult{result}})
		return
	}

	if err != nil {
		status := statusFor(err)
		writeJSON(w, status, ToolResponse{Error: toolErrorMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, ToolResponse{Success: true, Data: data, Response: resp})
}

func (s *Server) runTool(ctx context.Context, name string, args toolArgs) (any, format.Response, error) {
	level := args.level()

	switch name {
	case ToolSearchLocation:
		matches, err := s.svc.ResolveLocationName(ctx, args.name(), args.City, args.Limit)
		if err != nil {
			return nil, format.Response{}, err
		}
		return matches, format.Matches(args.name(), matches, level), nil

	case ToolAnalyzeTenantGaps:
		includeBrands := args.IncludeBrands == nil || *args.IncludeBrands
		if args.LocationID != "" {
			var (
				res *gaps.Result
				err error
			)
			if len(args.Competitors) > 0 {
				res, err = s.svc.AnalyzeGaps(ctx, args.LocationID, args.Competitors, includeBrands)
			} else {
				res, err = s.svc.AnalyzeGapsNearby(ctx, args.LocationID, includeBrands)
			}
			if err != nil {
				return nil, format.Response{}, err
			}
			return res, format.GapAnalysis(res, level), nil
		}
		if args.name() == "" {
			return nil, format.Response{}, eris.Wrap(model.ErrInvalidInput, "api: locationName is required")
		}
		res, err := s.svc.AnalyzeGapsByName(ctx, args.name(), args.Competitors, args.City, includeBrands)
		if err != nil {
			return nil, format.Response{}, err
		}
		return res, format.GapAnalysis(res, level), nil

	case ToolFindNearbyCompetitors:
		id, err := s.locationID(ctx, args)
		if err != nil {
			return nil, format.Response{}, err
		}
		res, err := s.svc.FindNearbyCompetitors(ctx, id, args.RadiusKm, args.MinStores)
		if err != nil {
			return nil, format.Response{}, err
		}
		return res, format.Nearby(res.Origin.Name, res.Competitors, level), nil

	case ToolGetLocationCompleteness:
		id, err := s.locationID(ctx, args)
		if err != nil {
			return nil, format.Response{}, err
		}
		res, err := s.svc.ScoreLocation(ctx, id)
		if err != nil {
			return nil, format.Response{}, err
		}
		return res, format.Completeness(res.Location.Name, res.Result, level), nil

	default:
		return nil, format.Response{}, eris.Wrapf(model.ErrInvalidInput, "api: unknown tool %q", name)
	}
}

// locationID uses the given id, or resolves the location name to one.
func (s *Server) locationID(ctx context.Context, args toolArgs) (string, error) {
	if id := strings.TrimSpace(args.LocationID); id != "" {
		return id, nil
	}
	if args.name() == "" {
		return "", eris.Wrap(model.ErrInvalidInput, "api: locationName or locationId is required")
	}
	m, err := s.svc.ResolveOne(ctx, args.name(), args.City)
	if err != nil {
		return "", err
	}
	return m.LocationID, nil
}

// toolErrorMessage is the sentence spoken back when a tool fails.
func toolErrorMessage(err error) string {
	switch statusFor(err) {
	case http.StatusNotFound:
		return "I couldn't find that location. Could you check the name?"
	case http.StatusUnprocessableEntity:
		return "There isn't enough data to answer that yet."
	case http.StatusBadRequest:
		var amb *resolve.AmbiguousError
		if errors.As(err, &amb) {
			return ambiguityPrompt(amb)
		}
		return "I need a bit more detail to answer that. Which location did you mean?"
	default:
		return "Something went wrong while looking that up. Please try again."
	}
}

// ambiguityPrompt asks the caller to pick between the closest candidates.
func ambiguityPrompt(amb *resolve.AmbiguousError) string {
	var names []string
	for _, m := range amb.Matches {
		if len(names) == 3 {
			break
		}
		label := m.Name
		if m.City != "" {
			label += " in " + m.City
		}
		names = append(names, label)
	}
	if len(names) < 2 {
		return "I found more than one match for " + amb.Query + ". Which one did you mean?"
	}
	last := names[len(names)-1]
	return "I found several matches for " + amb.Query + ": " +
		strings.Join(names[:len(names)-1], ", ") + " or " + last + ". Which one did you mean?"
}
