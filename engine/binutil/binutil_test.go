package binutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/metrics"
)

func get(t *testing.T, url string) (int, string) {
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, string(body)
}

func TestRouter(t *testing.T) {
	metrics.SetConnections(3)
	srv := httptest.NewServer(NewRouter(Handlers{
		Stats: func() interface{} {
			return map[string]int{"frame": 42}
		},
	}))
	defer srv.Close()

	code, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.T(t, strings.Contains(body, "netgod_network_connections 3"), "metrics should expose netgod gauges")

	code, body = get(t, srv.URL+"/stats")
	assert.Equal(t, http.StatusOK, code)
	var stats map[string]int
	assert.Equal(t, nil, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, 42, stats["frame"])

	code, _ = get(t, srv.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, srv.URL+"/ws")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSetupHTTPServerDisabled(t *testing.T) {
	assert.T(t, SetupHTTPServer("127.0.0.1", 0, Handlers{}) == nil, "port 0 should disable http")
}

func TestRaiseFileLimit(t *testing.T) {
	_, err := RaiseFileLimit()
	assert.Equal(t, nil, err)
}
