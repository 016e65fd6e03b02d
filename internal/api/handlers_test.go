package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/patrickwarner/adreward/internal/apiclient"
	"github.com/patrickwarner/adreward/internal/config"
	"github.com/patrickwarner/adreward/internal/db"
	"github.com/patrickwarner/adreward/internal/host/hosttest"
	"github.com/patrickwarner/adreward/internal/models"
	"github.com/patrickwarner/adreward/internal/observability"
)

func newTestServer(t *testing.T) (*Server, *db.RewardStore) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(mr.Close)

	store := db.NewRewardStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(store.Close)

	srv := NewServer(zap.NewNop(), store, observability.NewNoOpRegistry(), config.Config{DailyBonusAmount: 10})
	return srv, store
}

func post(t *testing.T, h http.Handler, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec, out
}

func TestMissingUserID(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	for _, path := range []string{"/get_user_data", "/claim_daily_bonus", "/get_ad_for_view"} {
		rec, out := post(t, h, path, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, MsgUserIDRequired, out["detail"], path)
	}

	rec, out := post(t, h, "/record_ad_view", map[string]any{"user_id": 7, "ad_id": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgViewFieldsMissing, out["detail"])
}

func TestGetUserData(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()

	rec, out := post(t, h, "/get_user_data", models.UserRequest{UserID: 7})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgUserNotFound, out["detail"])

	require.NoError(t, store.PutUser(context.Background(), 7, models.UserData{Username: "alice", Balance: 1234}))
	rec, out = post(t, h, "/get_user_data", models.UserRequest{UserID: 7})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	user := out["user"].(map[string]any)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, float64(1234), user["balance"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestClaimDailyBonus(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()
	require.NoError(t, store.PutUser(context.Background(), 7, models.UserData{}))

	_, out := post(t, h, "/claim_daily_bonus", models.UserRequest{UserID: 7})
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "You received 10 points as your daily bonus!", out["message"])

	_, out = post(t, h, "/claim_daily_bonus", models.UserRequest{UserID: 7})
	assert.Equal(t, false, out["success"])
	assert.Equal(t, MsgBonusTaken, out["message"])

	_, out = post(t, h, "/claim_daily_bonus", models.UserRequest{UserID: 8})
	assert.Equal(t, false, out["success"])
}

func TestAdFlow(t *testing.T) {
	srv, store := newTestServer(t)
	h := srv.Handler()
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{}))
	require.NoError(t, store.SetBloggerURL(ctx, "https://blog.example.com/embed"))

	_, out := post(t, h, "/get_ad_for_view", models.UserRequest{UserID: 7})
	assert.Equal(t, false, out["success"])
	assert.Equal(t, MsgNoAds, out["message"])

	adID, err := store.PutAd(ctx, models.Ad{
		OwnerUserID: 1, Type: models.AdTypeVideoEmbed, Content: "https://v/1",
		Duration: 30, Reward: 10, TargetViews: 100, Status: models.AdStatusActive,
	})
	require.NoError(t, err)

	_, out = post(t, h, "/get_ad_for_view", models.UserRequest{UserID: 7})
	require.Equal(t, true, out["success"])
	ad := out["ad"].(map[string]any)
	assert.Equal(t, float64(adID), ad["ad_id"])
	assert.Equal(t, "video_embed", ad["ad_type"])
	assert.Equal(t, "https://blog.example.com/embed", ad["blogger_base_url"])

	req := models.RecordViewRequest{UserID: 7, AdID: adID, Reward: 10}
	_, out = post(t, h, "/record_ad_view", req)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "10 points have been added as your reward.", out["message"])

	_, out = post(t, h, "/record_ad_view", req)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, MsgAlreadyWatched, out["message"])

	_, out = post(t, h, "/record_ad_view", models.RecordViewRequest{UserID: 7, AdID: 999, Reward: 10})
	assert.Equal(t, MsgAdNotFound, out["message"])

	rec, _ := post(t, h, "/record_ad_view", models.RecordViewRequest{UserID: 8, AdID: adID, Reward: 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	user, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), user.Balance)
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

// The API client and the backend agree on the contract end to end.
func TestContractWithAPIClient(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Username: "alice", Balance: 5}))
	adID, err := store.PutAd(ctx, models.Ad{
		OwnerUserID: 1, Type: models.AdTypeDirectLink, Content: "https://example.com/x",
		Duration: 15, Reward: 10, TargetViews: 1, Status: models.AdStatusActive,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	rec := hosttest.NewRecorder(7)
	client := apiclient.NewClient(ts.URL, 0, rec, zap.NewNop(), nil)

	res := client.GetUserData(ctx, 7)
	require.True(t, res.Success)
	assert.Equal(t, int64(5), res.User.Balance)

	res = client.GetAdForView(ctx, 7)
	require.True(t, res.Success)
	assert.Equal(t, adID, res.Ad.ID)

	res = client.RecordAdView(ctx, 7, res.Ad.ID, res.Ad.Reward)
	assert.True(t, res.Success)

	res = client.GetAdForView(ctx, 7)
	assert.False(t, res.Success)
	assert.Equal(t, MsgNoAds, res.Message)

	res = client.GetUserData(ctx, 404)
	assert.False(t, res.Success)
	assert.Equal(t, MsgUserNotFound, res.Message)

	snap := rec.Snapshot()
	assert.Equal(t, snap.LoadingShown, snap.LoadingHidden)
	require.Len(t, snap.Notifications, 1, "only the HTTP error is notified")
	assert.Equal(t, "Error: "+MsgUserNotFound, snap.Notifications[0].Message)
}
