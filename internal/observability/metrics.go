package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fwupdctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fwupdctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	uaRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fwupdctl",
			Subsystem: "ua",
			Name:      "requests_total",
			Help:      "Requests sent by the update agent, including retries.",
		},
		[]string{"command", "retry"},
	)
	uaTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fwupdctl",
			Subsystem: "ua",
			Name:      "response_timeouts_total",
			Help:      "Update agent requests whose response deadline expired.",
		},
		[]string{"command"},
	)
	fdRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fwupdctl",
			Subsystem: "fd",
			Name:      "requests_total",
			Help:      "Device-initiated requests answered by the update agent.",
		},
		[]string{"command", "completion_code"},
	)
	firmwareBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fwupdctl",
			Subsystem: "fd",
			Name:      "firmware_bytes_total",
			Help:      "Firmware image bytes served to devices.",
		},
	)
	sessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fwupdctl",
			Subsystem: "campaign",
			Name:      "sessions_total",
			Help:      "Finished device sessions by outcome.",
		},
		[]string{"outcome"},
	)
	sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fwupdctl",
			Subsystem: "campaign",
			Name:      "session_duration_seconds",
			Help:      "Device session duration in seconds.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"outcome"},
	)
	campaignProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fwupdctl",
			Subsystem: "campaign",
			Name:      "progress_percent",
			Help:      "Last reported campaign progress.",
		},
		[]string{"campaign"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			uaRequests, uaTimeouts,
			fdRequests, firmwareBytes,
			sessions, sessionDuration, campaignProgress,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordRequestSent(command string, retry bool) {
	RegisterMetrics()
	uaRequests.WithLabelValues(command, strconv.FormatBool(retry)).Inc()
}

func RecordResponseTimeout(command string) {
	RegisterMetrics()
	uaTimeouts.WithLabelValues(command).Inc()
}

func RecordDeviceRequest(command, completionCode string) {
	RegisterMetrics()
	fdRequests.WithLabelValues(command, completionCode).Inc()
}

func RecordFirmwareBytes(n int) {
	RegisterMetrics()
	if n > 0 {
		firmwareBytes.Add(float64(n))
	}
}

func RecordSessionComplete(outcome string, duration time.Duration) {
	RegisterMetrics()
	sessions.WithLabelValues(outcome).Inc()
	sessionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func SetCampaignProgress(campaign string, percent int) {
	RegisterMetrics()
	campaignProgress.WithLabelValues(campaign).Set(float64(percent))
}
