// Package apiclient talks to the mini app backend. Every call is a single JSON
// POST and every outcome, including transport failures, resolves to a
// models.Result; nothing is returned as an error and nothing panics.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickwarner/adreward/internal/host"
	"github.com/patrickwarner/adreward/internal/models"
	"github.com/patrickwarner/adreward/internal/observability"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Call outcomes used as the metrics label.
const (
	outcomeSuccess   = "success"
	outcomeRejected  = "rejected"
	outcomeHTTP      = "http_error"
	outcomeTransport = "transport_error"
	outcomeDecode    = "decode_error"
)

// maxErrorBody bounds how much of a failed response is read for its reason.
const maxErrorBody = 64 << 10

var tracer = observability.Tracer("apiclient")

// Client issues requests to the backend on behalf of the mini app.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	surface        host.Surface
	notifyDuration time.Duration
	logger         *zap.Logger
	metrics        observability.MetricsRegistry
}

// NewClient creates a client for the backend at baseURL. A zero timeout leaves
// requests unbounded apart from ctx. The surface shows the loading indicator
// around every call and receives a notification for every failure.
func NewClient(baseURL string, timeout time.Duration, surface host.Surface, logger *zap.Logger, metrics observability.MetricsRegistry) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		surface:        surface,
		notifyDuration: host.NotifyShort,
		logger:         logger,
		metrics:        metrics,
	}
}

// SetNotifyDuration changes how long failure notifications stay visible.
func (c *Client) SetNotifyDuration(d time.Duration) {
	if d > 0 {
		c.notifyDuration = d
	}
}

// GetUserData fetches the user's profile and balance.
func (c *Client) GetUserData(ctx context.Context, userID int64) models.Result {
	return c.Call(ctx, models.EndpointGetUserData, models.UserRequest{UserID: userID})
}

// ClaimDailyBonus asks the backend to credit today's bonus.
func (c *Client) ClaimDailyBonus(ctx context.Context, userID int64) models.Result {
	return c.Call(ctx, models.EndpointClaimDailyBonus, models.UserRequest{UserID: userID})
}

// GetAdForView asks the backend for an ad the user has not watched yet.
func (c *Client) GetAdForView(ctx context.Context, userID int64) models.Result {
	return c.Call(ctx, models.EndpointGetAdForView, models.UserRequest{UserID: userID})
}

// RecordAdView reports a completed ad view so the reward is credited.
func (c *Client) RecordAdView(ctx context.Context, userID, adID, reward int64) models.Result {
	return c.Call(ctx, models.EndpointRecordAdView, models.RecordViewRequest{UserID: userID, AdID: adID, Reward: reward})
}

// Call posts body to endpoint and returns the decoded envelope.
func (c *Client) Call(ctx context.Context, endpoint models.Endpoint, body any) models.Result {
	c.showLoading()
	defer c.hideLoading()

	ctx, span := tracer.Start(ctx, "apiclient."+string(endpoint),
		trace.WithAttributes(attribute.String("api.endpoint", string(endpoint))))
	defer span.End()

	requestID := uuid.NewString()
	logger := c.logger.With(
		zap.String("endpoint", string(endpoint)),
		zap.String("request_id", requestID),
	)

	start := time.Now()
	result, outcome := c.do(ctx, endpoint, requestID, body)
	c.metrics.IncrementAPIRequests(string(endpoint), outcome)
	c.metrics.RecordAPILatency(string(endpoint), time.Since(start))
	span.SetAttributes(attribute.String("api.outcome", outcome))

	if !result.Success {
		result.Normalize()
		if outcome != outcomeRejected {
			span.SetStatus(codes.Error, result.Message)
			logger.Warn("backend call failed", zap.String("outcome", outcome), zap.String("reason", result.Message))
			c.notify("Error: " + result.Message)
		} else {
			logger.Debug("backend rejected request", zap.String("reason", result.Message))
		}
		return result
	}

	logger.Debug("backend call succeeded", zap.Duration("latency", time.Since(start)))
	return result
}

// do performs the HTTP exchange. Transport, status and decoding failures are
// folded into a failed Result tagged with the matching outcome.
func (c *Client) do(ctx context.Context, endpoint models.Endpoint, requestID string, body any) (models.Result, string) {
	payload, err := json.Marshal(body)
	if err != nil {
		return models.Failure(fmt.Sprintf("marshal request: %v", err)), outcomeTransport
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint.Path(), bytes.NewReader(payload))
	if err != nil {
		return models.Failure(fmt.Sprintf("create request: %v", err)), outcomeTransport
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.Failure(err.Error()), outcomeTransport
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", zap.Error(err))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Failure(errorReason(resp)), outcomeHTTP
	}

	var result models.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return models.Failure(fmt.Sprintf("decode response: %v", err)), outcomeDecode
	}
	if !result.Success {
		return result, outcomeRejected
	}
	return result, outcomeSuccess
}

// errorReason extracts a human readable reason from a non-2xx response:
// detail, then message, then a generic status line.
func errorReason(resp *http.Response) string {
	fallback := fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return fallback
	}

	var body struct {
		Detail  any `json:"detail"`
		Message any `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return fallback
	}
	if s := reasonString(body.Detail); s != "" {
		return s
	}
	if s := reasonString(body.Message); s != "" {
		return s
	}
	return fallback
}

// reasonString renders a reason field that may be a string or structured JSON
// (FastAPI validation errors arrive as a list under detail).
func reasonString(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	default:
		b, err := json.Marshal(r)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func (c *Client) showLoading() {
	if c.surface != nil {
		c.surface.ShowLoading()
	}
}

func (c *Client) hideLoading() {
	if c.surface != nil {
		c.surface.HideLoading()
	}
}

func (c *Client) notify(msg string) {
	if c.surface != nil {
		c.surface.Notify(msg, c.notifyDuration)
	}
}
