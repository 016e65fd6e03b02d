package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickwarner/adreward/internal/db"
	"github.com/patrickwarner/adreward/internal/models"
)

func TestSeedDemo_Idempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	store := db.NewRewardStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, seedDemo(ctx, store, 1001))
	require.NoError(t, seedDemo(ctx, store, 1001))

	user, err := store.GetUser(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "demo", user.Username)

	url, err := store.BloggerURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, demoBloggerURL, url)

	seen := 0
	for {
		ad, ok, err := store.NextAdFor(ctx, 1001)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.Equal(t, models.AdStatusActive, ad.Status)
		outcome, _, err := store.RecordView(ctx, 1001, ad.ID)
		require.NoError(t, err)
		require.Equal(t, db.ViewRecorded, outcome)
		seen++
	}
	assert.Equal(t, len(demoAds), seen)
}
