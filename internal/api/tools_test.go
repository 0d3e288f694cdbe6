package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flourish-retail/gapcore/internal/model"
	"github.com/flourish-retail/gapcore/internal/resolve"
)

func TestParseToolRequest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantID   string
		wantArgs string
	}{
		{
			name:     "tool call list with object arguments",
			body:     `{"message":{"toolCallList":[{"id":"c1","function":{"name":"searchLocation","arguments":{"query":"trafford"}}}]}}`,
			wantID:   "c1",
			wantArgs: `{"query":"trafford"}`,
		},
		{
			name:     "tool call list with string arguments",
			body:     `{"message":{"toolCallList":[{"id":"c2","function":{"arguments":"{\"query\":\"arndale\"}"}}]}}`,
			wantID:   "c2",
			wantArgs: `{"query":"arndale"}`,
		},
		{
			name:     "parameters when arguments are empty",
			body:     `{"message":{"toolCallList":[{"id":"c3","function":{"arguments":""},"parameters":{"query":"x"}}]}}`,
			wantID:   "c3",
			wantArgs: `{"query":"x"}`,
		},
		{
			name:     "tool with tool call list",
			body:     `{"message":{"toolWithToolCallList":[{"toolCall":{"id":"c4","function":{"arguments":{"locationId":"trafford"}}}}]}}`,
			wantID:   "c4",
			wantArgs: `{"locationId":"trafford"}`,
		},
		{
			name:     "direct call id with parameters",
			body:     `{"toolCallId":"c5","parameters":{"locationId":"arndale"}}`,
			wantID:   "c5",
			wantArgs: `{"locationId":"arndale"}`,
		},
		{
			name:     "bare arguments",
			body:     `{"locationId":"arndale"}`,
			wantArgs: `{"locationId":"arndale"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, args, err := parseToolRequest([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.JSONEq(t, tt.wantArgs, string(args))
		})
	}
}

func TestParseToolRequest_Invalid(t *testing.T) {
	_, _, err := parseToolRequest([]byte(`not json`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
}

type envelopeBody struct {
	Results []struct {
		ToolCallID string `json:"toolCallId"`
		Result     string `json:"result"`
		Error      string `json:"error"`
	} `json:"results"`
}

func decodeEnvelope(t *testing.T, raw []byte) envelopeBody {
	t.Helper()
	var out envelopeBody
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	require.Len(t, out.Results, 1)
	return out
}

func TestTool_Envelope(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	tests := []struct {
		name     string
		tool     string
		body     string
		id       string
		contains []string
	}{
		{
			name:     "completeness",
			tool:     ToolGetLocationCompleteness,
			body:     `{"message":{"toolCallList":[{"id":"call-1","function":{"name":"getLocationCompleteness","arguments":{"locationName":"Trafford Centre"}}}]}}`,
			id:       "call-1",
			contains: []string{"The Trafford Centre has a data completeness score of 60 out of 100"},
		},
		{
			name:     "search with string arguments",
			tool:     ToolSearchLocation,
			body:     `{"message":{"toolCallList":[{"id":"call-2","function":{"name":"searchLocation","arguments":"{\"query\":\"Manchester Arndale\"}"}}]}}`,
			id:       "call-2",
			contains: []string{"Manchester Arndale"},
		},
		{
			name:     "nearby by id",
			tool:     ToolFindNearbyCompetitors,
			body:     `{"message":{"toolWithToolCallList":[{"toolCall":{"id":"call-3","function":{"arguments":{"locationId":"trafford"}}}}]}}`,
			id:       "call-3",
			contains: []string{"I found 1 nearby competitor to The Trafford Centre: Manchester Arndale."},
		},
		{
			name: "detailed gaps",
			tool: ToolAnalyzeTenantGaps,
			body: `{"message":{"toolCallList":[{"id":"call-4","function":{"arguments":{"locationName":"Trafford Centre","competitors":["Manchester Arndale"],"userQuery":"which brands are we missing"}}}]}}`,
			id:   "call-4",
			contains: []string{
				"The highest priority gap is Toys, which is completely missing.",
				"Popular brands in competitors but not in your location: Lego.",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/tools/"+tt.tool, tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			got := decodeEnvelope(t, rec.Body.Bytes())
			assert.Equal(t, tt.id, got.Results[0].ToolCallID)
			assert.Empty(t, got.Results[0].Error)
			assert.NotContains(t, got.Results[0].Result, "\n")
			for _, want := range tt.contains {
				assert.Contains(t, got.Results[0].Result, want)
			}
		})
	}
}

func TestTool_EnvelopeErrorsAre200(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodPost, "/v1/tools/"+ToolGetLocationCompleteness,
		`{"toolCallId":"call-9","parameters":{"locationId":"nope"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, "call-9", got.Results[0].ToolCallID)
	assert.Empty(t, got.Results[0].Result)
	assert.Equal(t, "I couldn't find that location. Could you check the name?", got.Results[0].Error)

	rec = do(t, h, http.MethodPost, "/v1/tools/bogus",
		`{"toolCallId":"call-10","parameters":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeEnvelope(t, rec.Body.Bytes())
	assert.NotEmpty(t, got.Results[0].Error)

	rec = do(t, h, http.MethodPost, "/v1/tools/"+ToolSearchLocation,
		`{"message":{"toolCallList":[{"id":"call-11","function":{"arguments":"not json"}}]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeEnvelope(t, rec.Body.Bytes())
	assert.Equal(t, "call-11", got.Results[0].ToolCallID)
	assert.Equal(t, "I need a bit more detail to answer that. Which location did you mean?", got.Results[0].Error)
}

func TestTool_Direct(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodPost, "/v1/tools/"+ToolGetLocationCompleteness, `{"locationId":"trafford","detailLevel":"detailed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["summary"], "60 out of 100")
	assert.NotEmpty(t, body["details"])
	assert.EqualValues(t, 60, body["data"].(map[string]any)["score"])
}

func TestTool_GapsByIDUsesNearby(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := do(t, h, http.MethodPost, "/v1/tools/"+ToolAnalyzeTenantGaps, `{"locationId":"trafford"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	competitors := data["competitors"].([]any)
	require.Len(t, competitors, 1)
	assert.Equal(t, "arndale", competitors[0].(map[string]any)["id"])

	rec = do(t, h, http.MethodPost, "/v1/tools/"+ToolAnalyzeTenantGaps, `{"locationId":"meadowhall"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}

func TestTool_DirectErrors(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	tests := []struct {
		name   string
		tool   string
		body   string
		status int
	}{
		{"unknown tool", "bogus", `{}`, http.StatusBadRequest},
		{"missing name", ToolFindNearbyCompetitors, `{}`, http.StatusBadRequest},
		{"missing gap target", ToolAnalyzeTenantGaps, `{"competitors":["arndale"]}`, http.StatusBadRequest},
		{"unknown location", ToolGetLocationCompleteness, `{"locationId":"nope"}`, http.StatusNotFound},
		{"no nearby competitors", ToolAnalyzeTenantGaps, `{"locationName":"Meadowhall"}`, http.StatusUnprocessableEntity},
		{"bad arguments", ToolSearchLocation, `{"limit":"ten"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/v1/tools/"+tt.tool, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestToolArgsLevel(t *testing.T) {
	assert.Equal(t, "detailed", string(toolArgs{DetailLevel: "Detailed"}.level()))
	assert.Equal(t, "high", string(toolArgs{DetailLevel: "brief", UserQuery: "tell me more"}.level()))
	assert.Equal(t, "detailed", string(toolArgs{UserQuery: "give me a breakdown"}.level()))
	assert.Equal(t, "detailed", string(toolArgs{Query: "list centres"}.level()))
	assert.Equal(t, "high", string(toolArgs{}.level()))
}

func TestToolErrorMessage(t *testing.T) {
	amb := &resolve.AmbiguousError{Query: "Westfield", Matches: []resolve.Match{
		{Name: "Westfield London", City: "London"},
		{Name: "Westfield Stratford City", City: "London"},
	}}
	assert.Equal(t,
		"I found several matches for Westfield: Westfield London in London or Westfield Stratford City in London. Which one did you mean?",
		toolErrorMessage(amb))
	// Ambiguity survives wrapping by the resolver and service layers.
	assert.Equal(t, toolErrorMessage(amb),
		toolErrorMessage(eris.Wrap(eris.Wrap(amb, "resolve: none of 2 locations resolved"), "insight: competitors")))

	assert.Equal(t, "There isn't enough data to answer that yet.",
		toolErrorMessage(eris.Wrap(model.ErrInsufficientData, "x")))
	assert.Equal(t, "Something went wrong while looking that up. Please try again.",
		toolErrorMessage(errors.New("boom")))
}
