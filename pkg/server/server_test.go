package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/poolleague/pkg/league"
	"github.com/richard-senior/poolleague/pkg/protocol"
	"github.com/richard-senior/poolleague/pkg/store"
	"github.com/richard-senior/poolleague/pkg/tools"
	"github.com/richard-senior/poolleague/pkg/transport"
)

func newTestServer(t *testing.T, tr transport.Transport) *Server {
	t.Helper()
	st, err := store.Open(store.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	kickoff := time.Date(2025, time.September, 4, 19, 30, 0, 0, time.UTC)
	require.NoError(t, st.SaveSources(&league.MemorySources{
		DivisionMap: map[string]league.Division{
			"D1": {Code: "D1", Name: "Premier", Teams: []string{"Anchor", "Bell", "Crown"}},
		},
		ResultList: []league.Result{
			{Division: "D1", Date: kickoff, Home: "Anchor", Away: "Bell", HomeScore: 7, AwayScore: 3},
		},
		FixtureList: []league.Fixture{
			{Division: "D1", Date: kickoff.AddDate(0, 0, 7), Home: "Bell", Away: "Crown"},
		},
	}))

	cfg := league.DefaultConfig()
	cfg.MatchTrials = 200
	cfg.SeasonTrials = 100
	cfg.Workers = 1
	engine, err := league.New(cfg)
	require.NoError(t, err)
	return New(tr, tools.NewLeagueToolkit(engine, st))
}

func request(t *testing.T, method string, params any, id any) *protocol.JsonRpcRequest {
	t.Helper()
	req, err := protocol.NewJsonRpcRequest(method, params, id)
	require.NoError(t, err)
	return req
}

func TestNewRegistersLeagueTools(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Len(t, s.GetTools(), 8)
}

func TestInitialize(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.HandleRequest(request(t, "initialize", map[string]any{"protocolVersion": "2025-03-26"}, 1))
	require.NotNil(t, resp)
	require.Nil(t, resp.Error)

	var out struct {
		ProtocolVersion string            `json:"protocolVersion"`
		ServerInfo      map[string]string `json:"serverInfo"`
		Capabilities    map[string]any    `json:"capabilities"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.Equal(t, "2025-03-26", out.ProtocolVersion)
	assert.Equal(t, "poolleague", out.ServerInfo["name"])
	assert.Contains(t, out.Capabilities, "tools")
	assert.Equal(t, 1, resp.ID)
}

func TestNotificationsGetNoResponse(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Nil(t, s.HandleRequest(request(t, "notifications/initialized", nil, nil)))
	assert.Nil(t, s.HandleRequest(request(t, "initialized", nil, nil)))
	assert.Nil(t, s.HandleRequest(request(t, "league_standings", map[string]any{"division": "D1"}, nil)))
}

func TestToolsList(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.HandleRequest(request(t, "tools/list", nil, "a"))
	require.Nil(t, resp.Error)
	var out protocol.ToolsResponse
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	require.Len(t, out.Tools, 8)
	assert.Equal(t, "league_divisions", out.Tools[0].Name)
}

func TestToolsCallWrapsResultAsText(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.HandleRequest(request(t, "tools/call", map[string]any{
		"name":      "league_standings",
		"arguments": map[string]any{"division": "D1"},
	}, 2))
	require.Nil(t, resp.Error)

	var out protocol.ToolCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.False(t, out.IsError)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "text", out.Content[0].Type)

	var body struct {
		Standings []league.StandingEntry `json:"standings"`
	}
	require.NoError(t, json.Unmarshal([]byte(out.Content[0].Text), &body))
	require.Len(t, body.Standings, 3)
	assert.Equal(t, "Anchor", body.Standings[0].Team)
}

func TestErrorCodes(t *testing.T) {
	s := newTestServer(t, nil)
	tests := []struct {
		name   string
		method string
		params any
		code   int
	}{
		{"unknown method", "resources/list", nil, protocol.ErrMethodNotFound},
		{"unknown tool", "tools/call", map[string]any{"name": "nope"}, protocol.ErrInvalidParams},
		{"missing argument", "tools/call", map[string]any{"name": "league_standings"}, protocol.ErrInvalidParams},
		{"unknown division", "tools/call", map[string]any{"name": "league_standings", "arguments": map[string]any{"division": "D9"}}, protocol.ErrToolExecutionFailed},
		{"tool called as method", "league_divisions", nil, protocol.ErrMethodNotFound},
		{"invoke without name", "invoke_tool", map[string]any{}, protocol.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.HandleRequest(request(t, tt.method, tt.params, 9))
			require.NotNil(t, resp)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Nil(t, resp.Result)
		})
	}
}

func TestInvokeToolReturnsRawResult(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.HandleRequest(request(t, "invoke_tool", map[string]any{
		"name":       "league_predict_fixture",
		"parameters": map[string]any{"division": "D1", "home": "Bell", "away": "Crown", "seed": 5},
	}, 3))
	require.Nil(t, resp.Error)
	var out league.PredictionResult
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.Equal(t, uint64(5), out.Seed)
	assert.InDelta(t, 1.0, out.PHomeWin+out.PDraw+out.PAwayWin, 1e-9)
}

func TestProcessRequestsOverStream(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":`,
		`}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/list"}`,
	}, "\n")
	var out bytes.Buffer
	s := newTestServer(t, transport.NewStreamTransport(strings.NewReader(in), &out))
	require.NoError(t, s.ProcessRequests())

	var responses []protocol.JsonRpcResponse
	scanner := bufio.NewScanner(&out)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		var resp protocol.JsonRpcResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 3)
	assert.Equal(t, float64(1), responses[0].ID)
	assert.Nil(t, responses[0].Error)
	require.NotNil(t, responses[1].Error)
	assert.Equal(t, protocol.ErrParse, responses[1].Error.Code)
	assert.Nil(t, responses[1].ID)
	assert.Equal(t, float64(3), responses[2].ID)
	assert.Nil(t, responses[2].Error)
}

func TestProcessRequestsWithoutTransport(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Error(t, s.ProcessRequests())
}
