package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// backend calls issued by the API client, labelled by endpoint and outcome
	APIRequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adreward_api_requests_total",
			Help: "Total backend API calls issued by the mini app client",
		},
		[]string{"endpoint", "outcome"},
	)

	// backend call latency in seconds per endpoint
	APIRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adreward_api_request_duration_seconds",
			Help:    "Histogram of backend API call latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// activations dropped because the same action was already in flight
	GuardRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adreward_guard_rejections_total",
			Help: "Total user actions dropped by a single-flight guard",
		},
		[]string{"action"},
	)

	// terminal outcomes of ad-viewing sessions
	AdViewerOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adreward_ad_viewer_outcomes_total",
			Help: "Total ad viewer sessions by terminal outcome",
		},
		[]string{"outcome"},
	)

	// requests served by the contract stub backend
	StubRequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adreward_stub_requests_total",
			Help: "Total requests served by the stub backend",
		},
		[]string{"endpoint", "status"},
	)

	// stub backend request latency in seconds per endpoint
	StubRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adreward_stub_request_duration_seconds",
			Help:    "Histogram of stub backend request latencies",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// points credited by the stub backend, labelled by reason
	PointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adreward_points_awarded_total",
			Help: "Total points credited to users",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestCount,
		APIRequestLatency,
		GuardRejections,
		AdViewerOutcomes,
		StubRequestCount,
		StubRequestLatency,
		PointsAwarded,
	)
}
