package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/fwupdctl/internal/testutil/testlog"
	"github.com/danmuck/fwupdctl/internal/update"
)

type stubSource struct {
	status update.Status
}

func (s stubSource) Status() update.Status { return s.status }

func serve(t *testing.T, s *Server, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func newTestServer() *Server {
	return New("fwupdctl-test", ":0", nil, stubSource{status: update.Status{
		ID:       "c-1",
		Expected: 2,
		Progress: 42,
		Running:  true,
		Devices: []update.DeviceStatus{
			{Name: "fd0", State: "WaitForRequests", Phase: "download", BytesServed: 128},
			{Name: "fd1", State: "Complete", Phase: "idle", Done: true},
		},
	}})
}

func TestCampaignRoutes(t *testing.T) {
	testlog.Start(t)
	s := newTestServer()

	rr := serve(t, s, http.MethodGet, "/campaign", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var st update.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, "c-1", st.ID)
	assert.Equal(t, 42, st.Progress)
	assert.Len(t, st.Devices, 2)

	rr = serve(t, s, http.MethodGet, "/campaign/devices/fd0", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var dev update.DeviceStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dev))
	assert.Equal(t, uint64(128), dev.BytesServed)
	assert.Equal(t, "download", dev.Phase)

	rr = serve(t, s, http.MethodGet, "/campaign/devices/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	testlog.Start(t)
	s := newTestServer()

	rr := serve(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "fwupdctl-test", health["service"])

	rr = serve(t, s, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var ready map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ready))
	assert.Equal(t, true, ready["ready"])
	assert.Equal(t, "c-1", ready["campaign"])

	rr = serve(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "fwupdctl_http_requests_total"),
		"expected request counter in scrape output")
}

func TestCORSAllowsDefaultOrigin(t *testing.T) {
	testlog.Start(t)
	s := newTestServer()

	rr := serve(t, s, http.MethodGet, "/health", map[string]string{"Origin": "http://localhost:3000"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = serve(t, s, http.MethodGet, "/health", map[string]string{"Origin": "http://evil.example"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
