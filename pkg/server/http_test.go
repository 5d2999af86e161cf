package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/poolleague/pkg/protocol"
)

func TestHealthz(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router([]string{"*"}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(8), body["tools"])
}

func TestRPCOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.Router([]string{"*"}))
	defer srv.Close()

	post := func(body string) *http.Response {
		resp, err := http.Post(srv.URL+"/rpc", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		return resp
	}

	resp := post(`{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"league_divisions"}}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rpc protocol.JsonRpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rpc))
	assert.Nil(t, rpc.Error)
	assert.Equal(t, float64(7), rpc.ID)
	var result protocol.ToolCallResult
	require.NoError(t, json.Unmarshal(rpc.Result, &result))
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, `"Premier"`)

	notify := post(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	notify.Body.Close()
	assert.Equal(t, http.StatusNoContent, notify.StatusCode)

	bad := post(`{"jsonrpc":"1.0","id":1,"method":"ping"}`)
	defer bad.Body.Close()
	var parseErr protocol.JsonRpcResponse
	require.NoError(t, json.NewDecoder(bad.Body).Decode(&parseErr))
	require.NotNil(t, parseErr.Error)
	assert.Equal(t, protocol.ErrParse, parseErr.Error.Code)
}

func TestRPCRejectsGet(t *testing.T) {
	s := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Router([]string{"*"}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rpc", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/rpc", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	s.Router([]string{"http://localhost:3000"}).ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
