package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/fwupdctl/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)

	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("statusapi", "GET", "/health", 200, 12*time.Millisecond)
	RecordRequestSent("UpdateComponent", false)
	RecordResponseTimeout("UpdateComponent")
	RecordDeviceRequest("RequestFirmwareData", "SUCCESS")
	RecordSessionComplete("success", 3*time.Second)
}

func TestCampaignCountersAccumulate(t *testing.T) {
	testlog.Start(t)

	before := testutil.ToFloat64(firmwareBytes)
	RecordFirmwareBytes(64)
	RecordFirmwareBytes(0)
	RecordFirmwareBytes(36)
	if got := testutil.ToFloat64(firmwareBytes) - before; got != 100 {
		t.Fatalf("expected 100 firmware bytes recorded, got %v", got)
	}

	retries := uaRequests.WithLabelValues("ActivateFirmware", "true")
	start := testutil.ToFloat64(retries)
	RecordRequestSent("ActivateFirmware", true)
	RecordRequestSent("ActivateFirmware", true)
	if got := testutil.ToFloat64(retries) - start; got != 2 {
		t.Fatalf("expected 2 retries recorded, got %v", got)
	}

	SetCampaignProgress("metrics-test", 42)
	if got := testutil.ToFloat64(campaignProgress.WithLabelValues("metrics-test")); got != 42 {
		t.Fatalf("expected progress gauge 42, got %v", got)
	}
}

func TestHTTPMiddlewareCountsRoutes(t *testing.T) {
	testlog.Start(t)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HTTPMiddleware("mw-test", zerolog.Nop()))
	r.GET("/probe/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	ok := httpRequests.WithLabelValues("mw-test", http.MethodGet, "/probe/:id", "204")
	missing := httpRequests.WithLabelValues("mw-test", http.MethodGet, "unmatched", "404")
	okBefore, missingBefore := testutil.ToFloat64(ok), testutil.ToFloat64(missing)

	for _, path := range []string{"/probe/1", "/probe/2", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(ok) - okBefore; got != 2 {
		t.Fatalf("expected 2 requests on the route template, got %v", got)
	}
	if got := testutil.ToFloat64(missing) - missingBefore; got != 1 {
		t.Fatalf("expected 1 unmatched request, got %v", got)
	}
}
