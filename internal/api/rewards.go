package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/patrickwarner/adreward/internal/db"
	"github.com/patrickwarner/adreward/internal/middleware"
	"github.com/patrickwarner/adreward/internal/models"
)

// Messages returned in the envelope's message field.
const (
	MsgUserIDRequired    = "User ID is required"
	MsgViewFieldsMissing = "User ID, Ad ID, and Reward are required"
	MsgUserNotFound      = "User not found"
	MsgBonusTaken        = "You have already claimed today's daily bonus."
	MsgNoAds             = "There are no new ads for you right now."
	MsgAdNotFound        = "Ad not found."
	MsgAlreadyWatched    = "You have already watched this ad."
)

const maxBody = 1 << 16

func decodeBody(r *http.Request, v any) error {
	defer func() {
		_ = r.Body.Close()
	}()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

// serverError answers 500 with the error in the message field.
func (s *Server) serverError(w http.ResponseWriter, span trace.Span, logger *zap.Logger, endpoint string, start time.Time, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Error("store failure", zap.String("endpoint", endpoint), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, models.Failure(err.Error()))
	s.observe(endpoint, http.StatusInternalServerError, start)
}

// GetUserDataHandler handles POST /get_user_data.
func (s *Server) GetUserDataHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GetUserDataHandler")
	defer span.End()
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "get_user_data"

	var req models.UserRequest
	if err := decodeBody(r, &req); err != nil || req.UserID == 0 {
		writeDetail(w, http.StatusBadRequest, MsgUserIDRequired)
		s.observe(endpoint, http.StatusBadRequest, start)
		return
	}
	span.SetAttributes(attribute.Int64("user_id", req.UserID))

	user, err := s.Store.GetUser(ctx, req.UserID)
	if errors.Is(err, db.ErrUserNotFound) {
		writeDetail(w, http.StatusNotFound, MsgUserNotFound)
		s.observe(endpoint, http.StatusNotFound, start)
		return
	}
	if err != nil {
		s.serverError(w, span, logger, endpoint, start, err)
		return
	}

	writeJSON(w, http.StatusOK, models.Result{Success: true, User: &user})
	s.observe(endpoint, http.StatusOK, start)
}

// ClaimDailyBonusHandler handles POST /claim_daily_bonus.
func (s *Server) ClaimDailyBonusHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "ClaimDailyBonusHandler")
	defer span.End()
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "claim_daily_bonus"

	var req models.UserRequest
	if err := decodeBody(r, &req); err != nil || req.UserID == 0 {
		writeDetail(w, http.StatusBadRequest, MsgUserIDRequired)
		s.observe(endpoint, http.StatusBadRequest, start)
		return
	}
	span.SetAttributes(attribute.Int64("user_id", req.UserID))

	amount := int64(s.Config.DailyBonusAmount)
	if amount <= 0 {
		amount = 10
	}
	granted, err := s.Store.ClaimDailyBonus(ctx, req.UserID, amount)
	switch {
	case errors.Is(err, db.ErrUserNotFound):
		writeJSON(w, http.StatusOK, models.Failure(MsgUserNotFound+"."))
	case err != nil:
		s.serverError(w, span, logger, endpoint, start, err)
		return
	case !granted:
		writeJSON(w, http.StatusOK, models.Failure(MsgBonusTaken))
	default:
		s.Metrics.AddPointsAwarded("daily_bonus", amount)
		logger.Info("daily bonus granted", zap.Int64("user_id", req.UserID), zap.Int64("amount", amount))
		writeJSON(w, http.StatusOK, models.Result{
			Success: true,
			Message: fmt.Sprintf("You received %d points as your daily bonus!", amount),
		})
	}
	s.observe(endpoint, http.StatusOK, start)
}

// GetAdForViewHandler handles POST /get_ad_for_view.
func (s *Server) GetAdForViewHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "GetAdForViewHandler")
	defer span.End()
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "get_ad_for_view"

	var req models.UserRequest
	if err := decodeBody(r, &req); err != nil || req.UserID == 0 {
		writeDetail(w, http.StatusBadRequest, MsgUserIDRequired)
		s.observe(endpoint, http.StatusBadRequest, start)
		return
	}
	span.SetAttributes(attribute.Int64("user_id", req.UserID))

	ad, ok, err := s.Store.NextAdFor(ctx, req.UserID)
	if err != nil {
		s.serverError(w, span, logger, endpoint, start, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, models.Failure(MsgNoAds))
		s.observe(endpoint, http.StatusOK, start)
		return
	}
	blogger, err := s.Store.BloggerURL(ctx)
	if err != nil {
		s.serverError(w, span, logger, endpoint, start, err)
		return
	}

	desc := ad.Descriptor(blogger)
	span.SetAttributes(attribute.Int64("ad_id", desc.ID))
	writeJSON(w, http.StatusOK, models.Result{Success: true, Ad: &desc})
	s.observe(endpoint, http.StatusOK, start)
}

// RecordAdViewHandler handles POST /record_ad_view. The credited amount is the
// ad's own reward; a differing amount sent by the client is only logged.
func (s *Server) RecordAdViewHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "RecordAdViewHandler")
	defer span.End()
	logger := middleware.LoggerFromRequest(r, s.Logger)
	start := time.Now()
	const endpoint = "record_ad_view"

	var req models.RecordViewRequest
	if err := decodeBody(r, &req); err != nil || req.UserID == 0 || req.AdID == 0 || req.Reward == 0 {
		writeDetail(w, http.StatusBadRequest, MsgViewFieldsMissing)
		s.observe(endpoint, http.StatusBadRequest, start)
		return
	}
	span.SetAttributes(
		attribute.Int64("user_id", req.UserID),
		attribute.Int64("ad_id", req.AdID),
	)

	outcome, ad, err := s.Store.RecordView(ctx, req.UserID, req.AdID)
	switch {
	case errors.Is(err, db.ErrUserNotFound):
		writeDetail(w, http.StatusNotFound, MsgUserNotFound)
		s.observe(endpoint, http.StatusNotFound, start)
		return
	case errors.Is(err, db.ErrAdNotFound):
		writeJSON(w, http.StatusOK, models.Failure(MsgAdNotFound))
	case err != nil:
		s.serverError(w, span, logger, endpoint, start, err)
		return
	case outcome == db.ViewDuplicate:
		logger.Info("duplicate ad view", zap.Int64("user_id", req.UserID), zap.Int64("ad_id", req.AdID))
		writeJSON(w, http.StatusOK, models.Failure(MsgAlreadyWatched))
	default:
		reward := ad.Descriptor("").Reward
		if reward != req.Reward {
			logger.Warn("client reward differs from ad reward",
				zap.Int64("ad_id", req.AdID), zap.Int64("client", req.Reward), zap.Int64("ad", reward))
		}
		s.Metrics.AddPointsAwarded("ad_view", reward)
		writeJSON(w, http.StatusOK, models.Result{
			Success: true,
			Message: fmt.Sprintf("%d points have been added as your reward.", reward),
		})
	}
	s.observe(endpoint, http.StatusOK, start)
}
