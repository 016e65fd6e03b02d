package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/patrickwarner/adreward/internal/host"
	"github.com/patrickwarner/adreward/internal/host/hosttest"
	"github.com/patrickwarner/adreward/internal/models"
	"github.com/patrickwarner/adreward/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *hosttest.Recorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	rec := hosttest.NewRecorder(1)
	return NewClient(server.URL, 0, rec, zap.NewNop(), observability.NewNoOpRegistry()), rec
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("Failed to encode response: %v", err)
	}
}

func TestClient_GetUserData(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_user_data", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err, "request id should be a uuid")

		var req models.UserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(4242), req.UserID)

		writeJSON(t, w, http.StatusOK, map[string]any{
			"success": true,
			"user":    map[string]any{"username": "alice", "balance": 1500, "language": "bn"},
		})
	})

	res := client.GetUserData(context.Background(), 4242)

	require.True(t, res.Success)
	require.NotNil(t, res.User)
	assert.Equal(t, models.UserData{Username: "alice", Balance: 1500, Language: "bn"}, *res.User)

	snap := rec.Snapshot()
	assert.Equal(t, 1, snap.LoadingShown)
	assert.Equal(t, 1, snap.LoadingHidden)
	assert.Empty(t, snap.Notifications)
}

func TestClient_RecordAdViewBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/record_ad_view", r.URL.Path)

		var req models.RecordViewRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.RecordViewRequest{UserID: 9, AdID: 31, Reward: 10}, req)

		writeJSON(t, w, http.StatusOK, map[string]any{"success": true, "message": "10 points added"})
	})

	res := client.RecordAdView(context.Background(), 9, 31, 10)

	assert.True(t, res.Success)
	assert.Equal(t, "10 points added", res.Message)
}

func TestClient_HTTPErrorReasons(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail wins", http.StatusNotFound, `{"detail":"User not found","message":"ignored"}`, "User not found"},
		{"message fallback", http.StatusInternalServerError, `{"success":false,"message":"database is locked"}`, "database is locked"},
		{"structured detail", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body","user_id"]}]}`, `[{"loc":["body","user_id"]}]`},
		{"empty body", http.StatusBadGateway, ``, "HTTP error! status: 502"},
		{"html body", http.StatusServiceUnavailable, `<html>down</html>`, "HTTP error! status: 503"},
		{"json without reason", http.StatusBadRequest, `{"success":false}`, "HTTP error! status: 400"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			res := client.ClaimDailyBonus(context.Background(), 1)

			assert.False(t, res.Success)
			assert.Equal(t, tc.want, res.Message)

			snap := rec.Snapshot()
			assert.Equal(t, 1, snap.LoadingHidden)
			require.Len(t, snap.Notifications, 1)
			assert.Equal(t, "Error: "+tc.want, snap.Notifications[0].Message)
			assert.Equal(t, host.NotifyShort, snap.Notifications[0].Duration)
		})
	}
}

func TestClient_MalformedJSON(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success": tru`))
	})

	res := client.GetAdForView(context.Background(), 1)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "decode response")
	snap := rec.Snapshot()
	assert.Equal(t, 1, snap.LoadingHidden)
	assert.Len(t, snap.Notifications, 1)
}

func TestClient_ApplicationRejection(t *testing.T) {
	t.Run("message is passed through without a notification", func(t *testing.T) {
		client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{"success": false, "message": "no new ads for you right now"})
		})

		res := client.GetAdForView(context.Background(), 1)

		assert.False(t, res.Success)
		assert.Equal(t, "no new ads for you right now", res.Message)
		assert.Empty(t, rec.Snapshot().Notifications)
	})

	t.Run("missing reason is filled in", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, http.StatusOK, map[string]any{"success": false})
		})

		res := client.GetAdForView(context.Background(), 1)

		assert.False(t, res.Success)
		assert.Equal(t, models.GenericFailure, res.Message)
	})
}

func TestClient_TransportFailureEveryEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	for _, endpoint := range models.Endpoints {
		t.Run(string(endpoint), func(t *testing.T) {
			rec := hosttest.NewRecorder(1)
			client := NewClient(url, 0, rec, zap.NewNop(), observability.NewNoOpRegistry())

			var res models.Result
			require.NotPanics(t, func() {
				res = client.Call(context.Background(), endpoint, models.UserRequest{UserID: 1})
			})

			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Message)
			snap := rec.Snapshot()
			assert.Equal(t, 1, snap.LoadingShown)
			assert.Equal(t, 1, snap.LoadingHidden)
			assert.Len(t, snap.Notifications, 1)
		})
	}
}

func TestClient_CancelledContext(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true})
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := client.GetUserData(ctx, 1)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "context canceled")
	assert.Equal(t, 1, rec.Snapshot().LoadingHidden)
}

func TestClient_UnmarshalableBody(t *testing.T) {
	client, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	res := client.Call(context.Background(), models.EndpointGetUserData, map[string]any{"bad": make(chan int)})

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "marshal request")
	assert.Equal(t, 1, rec.Snapshot().LoadingHidden)
}

func TestClient_TrailingSlashBaseURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get_user_data", r.URL.Path)
		writeJSON(t, w, http.StatusOK, map[string]any{"success": true})
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", 0, nil, nil, nil)
	assert.True(t, client.GetUserData(context.Background(), 1).Success)
}
