package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/adreward/internal/models"
)

func newTestStore(t *testing.T) (*RewardStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(mr.Close)

	store := NewRewardStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(store.Close)
	return store, mr
}

func activeAd(owner int64) models.Ad {
	return models.Ad{
		OwnerUserID: owner,
		Type:        models.AdTypeDirectLink,
		Content:     "https://example.com/x",
		Duration:    15,
		Reward:      10,
		TargetViews: 2,
		Status:      models.AdStatusActive,
	}
}

func TestUsers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetUser(ctx, 7)
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Username: "alice", Balance: 50, Language: "bn"}))
	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.UserData{Username: "alice", Balance: 50, Language: "bn"}, u)
}

func TestClaimDailyBonus_OncePerDay(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return day })
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Username: "alice"}))

	ok, err := store.ClaimDailyBonus(ctx, 7, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ClaimDailyBonus(ctx, 7, 10)
	require.NoError(t, err)
	assert.False(t, ok, "second claim on the same day")

	day = day.Add(24 * time.Hour)
	ok, err = store.ClaimDailyBonus(ctx, 7, 10)
	require.NoError(t, err)
	assert.True(t, ok, "next day")

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(20), u.Balance)

	txs, err := store.Transactions(ctx, 7)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxBonus, txs[0].Kind)
	assert.Equal(t, "daily", txs[0].Details["bonus_type"])
}

func TestClaimDailyBonus_UnknownUser(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.ClaimDailyBonus(context.Background(), 99, 10)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestClaimDailyBonus_Concurrent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ClaimDailyBonus(ctx, 7, 10)
			if err == nil && ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, granted)
	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.Balance)
}

func TestNextAdFor_Eligibility(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{}))

	own := activeAd(7)
	ownID, err := store.PutAd(ctx, own)
	require.NoError(t, err)

	pending := activeAd(1)
	pending.Status = models.AdStatusPending
	_, err = store.PutAd(ctx, pending)
	require.NoError(t, err)

	otherID, err := store.PutAd(ctx, activeAd(1))
	require.NoError(t, err)

	ad, ok, err := store.NextAdFor(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, otherID, ad.ID)
	assert.NotEqual(t, ownID, ad.ID)

	outcome, _, err := store.RecordView(ctx, 7, otherID)
	require.NoError(t, err)
	assert.Equal(t, ViewRecorded, outcome)

	_, ok, err = store.NextAdFor(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "every eligible ad was seen")
}

func TestRecordView_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Balance: 5}))
	adID, err := store.PutAd(ctx, activeAd(1))
	require.NoError(t, err)

	outcome, ad, err := store.RecordView(ctx, 7, adID)
	require.NoError(t, err)
	assert.Equal(t, ViewRecorded, outcome)
	assert.Equal(t, int64(1), ad.CurrentViews)

	outcome, _, err = store.RecordView(ctx, 7, adID)
	require.NoError(t, err)
	assert.Equal(t, ViewDuplicate, outcome)

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(15), u.Balance, "reward credited once")

	stored, err := store.GetAd(ctx, adID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.CurrentViews)
	assert.Equal(t, models.AdStatusActive, stored.Status)

	txs, err := store.Transactions(ctx, 7)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxAdReward, txs[0].Kind)
}

func TestRecordView_CompletesAtTarget(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{}))
	require.NoError(t, store.PutUser(ctx, 8, models.UserData{}))
	adID, err := store.PutAd(ctx, activeAd(1))
	require.NoError(t, err)

	_, _, err = store.RecordView(ctx, 7, adID)
	require.NoError(t, err)
	_, ad, err := store.RecordView(ctx, 8, adID)
	require.NoError(t, err)

	assert.Equal(t, models.AdStatusCompleted, ad.Status)
	stored, err := store.GetAd(ctx, adID)
	require.NoError(t, err)
	assert.Equal(t, models.AdStatusCompleted, stored.Status)
	assert.Equal(t, int64(2), stored.CurrentViews)
}

func TestRecordView_Unknown(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, _, err := store.RecordView(ctx, 7, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, store.PutUser(ctx, 7, models.UserData{}))
	_, _, err = store.RecordView(ctx, 7, 42)
	assert.ErrorIs(t, err, ErrAdNotFound)
}

func TestRecordView_DefaultReward(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{}))
	ad := activeAd(1)
	ad.Reward = 0
	adID, err := store.PutAd(ctx, ad)
	require.NoError(t, err)

	_, _, err = store.RecordView(ctx, 7, adID)
	require.NoError(t, err)

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(models.DefaultAdReward), u.Balance)
}

func TestSetAdStatus(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.SetAdStatus(ctx, 5, models.AdStatusActive), ErrAdNotFound)

	pending := activeAd(1)
	pending.Status = ""
	id, err := store.PutAd(ctx, pending)
	require.NoError(t, err)
	ad, err := store.GetAd(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AdStatusPending, ad.Status)

	require.NoError(t, store.SetAdStatus(ctx, id, models.AdStatusActive))
	ad, err = store.GetAd(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.AdStatusActive, ad.Status)
}

func TestBloggerURL(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	url, err := store.BloggerURL(ctx)
	require.NoError(t, err)
	assert.Empty(t, url)

	require.NoError(t, store.SetBloggerURL(ctx, "https://blog.example.com/embed"))
	url, err = store.BloggerURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example.com/embed", url)
}

func TestClaimDailyBonus_LedgerFailureKeepsDayClaimed(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return day })
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Username: "alice"}))
	// a string where the ledger list should be makes LPUSH fail inside EXEC
	require.NoError(t, mr.Set(ledgerKey(7), "not a list"))

	ok, err := store.ClaimDailyBonus(ctx, 7, 10)
	require.NoError(t, err)
	assert.True(t, ok, "balance was credited, so the claim succeeded")

	mr.Del(ledgerKey(7))
	ok, err = store.ClaimDailyBonus(ctx, 7, 10)
	require.NoError(t, err)
	assert.False(t, ok, "second claim on the same day")

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.Balance)
}

func TestClaimDailyBonus_FailedCreditReleasesDay(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return day })
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Username: "alice"}))
	mr.HSet(userKey(7), "balance", "abc")

	ok, err := store.ClaimDailyBonus(ctx, 7, 10)
	require.Error(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(bonusKey(7, "2026-03-01")))

	mr.HSet(userKey(7), "balance", "5")
	ok, err = store.ClaimDailyBonus(ctx, 7, 10)
	require.NoError(t, err)
	assert.True(t, ok, "retry after a failed credit")

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(15), u.Balance)
}

func TestRecordView_LedgerFailureStillRecorded(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Username: "alice"}))
	id, err := store.PutAd(ctx, activeAd(1))
	require.NoError(t, err)
	require.NoError(t, mr.Set(ledgerKey(7), "not a list"))

	outcome, ad, err := store.RecordView(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, ViewRecorded, outcome)
	assert.Equal(t, int64(1), ad.CurrentViews)

	outcome, _, err = store.RecordView(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, ViewDuplicate, outcome)

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.Balance)
}

func TestRecordView_FailedCreditReleasesGate(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutUser(ctx, 7, models.UserData{Username: "alice"}))
	id, err := store.PutAd(ctx, activeAd(1))
	require.NoError(t, err)
	mr.HSet(userKey(7), "balance", "abc")

	_, _, err = store.RecordView(ctx, 7, id)
	require.Error(t, err)

	seen, err := store.Client.SIsMember(ctx, viewersKey(id), "7").Result()
	require.NoError(t, err)
	assert.False(t, seen)
	ad, err := store.GetAd(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ad.CurrentViews)

	mr.HSet(userKey(7), "balance", "0")
	outcome, _, err := store.RecordView(ctx, 7, id)
	require.NoError(t, err)
	assert.Equal(t, ViewRecorded, outcome, "retry after a failed credit")

	u, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.Balance)
}
