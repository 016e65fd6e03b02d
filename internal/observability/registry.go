package observability

import "time"

// MetricsRegistry provides an interface for recording application metrics.
// Components receive it by injection instead of touching the Prometheus globals.
type MetricsRegistry interface {
	// API client metrics
	IncrementAPIRequests(endpoint, outcome string)
	RecordAPILatency(endpoint string, duration time.Duration)

	// Controller metrics
	IncrementGuardRejections(action string)
	IncrementAdViewerOutcome(outcome string)

	// Stub backend metrics
	IncrementStubRequests(endpoint, status string)
	RecordStubLatency(endpoint string, duration time.Duration)
	AddPointsAwarded(reason string, points int64)
}

// PrometheusRegistry implements MetricsRegistry using the global Prometheus metrics
type PrometheusRegistry struct{}

// NewPrometheusRegistry creates a new PrometheusRegistry
func NewPrometheusRegistry() *PrometheusRegistry {
	return &PrometheusRegistry{}
}

func (r *PrometheusRegistry) IncrementAPIRequests(endpoint, outcome string) {
	APIRequestCount.WithLabelValues(endpoint, outcome).Inc()
}

func (r *PrometheusRegistry) RecordAPILatency(endpoint string, duration time.Duration) {
	APIRequestLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) IncrementGuardRejections(action string) {
	GuardRejections.WithLabelValues(action).Inc()
}

func (r *PrometheusRegistry) IncrementAdViewerOutcome(outcome string) {
	AdViewerOutcomes.WithLabelValues(outcome).Inc()
}

func (r *PrometheusRegistry) IncrementStubRequests(endpoint, status string) {
	StubRequestCount.WithLabelValues(endpoint, status).Inc()
}

func (r *PrometheusRegistry) RecordStubLatency(endpoint string, duration time.Duration) {
	StubRequestLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (r *PrometheusRegistry) AddPointsAwarded(reason string, points int64) {
	PointsAwarded.WithLabelValues(reason).Add(float64(points))
}

// NoOpRegistry implements MetricsRegistry with no-op methods for testing
type NoOpRegistry struct{}

// NewNoOpRegistry creates a new NoOpRegistry
func NewNoOpRegistry() *NoOpRegistry {
	return &NoOpRegistry{}
}

func (r *NoOpRegistry) IncrementAPIRequests(endpoint, outcome string)             {}
func (r *NoOpRegistry) RecordAPILatency(endpoint string, duration time.Duration)  {}
func (r *NoOpRegistry) IncrementGuardRejections(action string)                    {}
func (r *NoOpRegistry) IncrementAdViewerOutcome(outcome string)                   {}
func (r *NoOpRegistry) IncrementStubRequests(endpoint, status string)             {}
func (r *NoOpRegistry) RecordStubLatency(endpoint string, duration time.Duration) {}
func (r *NoOpRegistry) AddPointsAwarded(reason string, points int64)              {}
