package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/patrickwarner/adreward/internal/config"
	"github.com/patrickwarner/adreward/internal/db"
	"github.com/patrickwarner/adreward/internal/middleware"
	"github.com/patrickwarner/adreward/internal/models"
	"github.com/patrickwarner/adreward/internal/observability"
)

var tracer = otel.Tracer("adreward/stubbackend")

// Server groups dependencies for HTTP handlers.
type Server struct {
	Logger  *zap.Logger
	Store   *db.RewardStore
	Metrics observability.MetricsRegistry
	Config  config.Config
}

// NewServer constructs a Server.
func NewServer(logger *zap.Logger, store *db.RewardStore, metrics observability.MetricsRegistry, cfg config.Config) *Server {
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Server{
		Logger:  logger,
		Store:   store,
		Metrics: metrics,
		Config:  cfg,
	}
}

// Router registers the backend contract endpoints plus health and metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(models.EndpointGetUserData.Path(), s.GetUserDataHandler).Methods("POST")
	r.HandleFunc(models.EndpointClaimDailyBonus.Path(), s.ClaimDailyBonusHandler).Methods("POST")
	r.HandleFunc(models.EndpointGetAdForView.Path(), s.GetAdForViewHandler).Methods("POST")
	r.HandleFunc(models.EndpointRecordAdView.Path(), s.RecordAdViewHandler).Methods("POST")
	r.HandleFunc("/health", s.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Handler wraps the router with tracing and the request scoped logger.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(middleware.WithTraceLogger(s.Logger)(s.Router()), "stubbackend")
}

func (s *Server) observe(endpoint string, status int, start time.Time) {
	s.Metrics.IncrementStubRequests(endpoint, strconv.Itoa(status))
	s.Metrics.RecordStubLatency(endpoint, time.Since(start))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail answers with the {"detail": ...} body used for request errors.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
