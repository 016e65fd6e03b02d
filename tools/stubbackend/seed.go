package main

import (
	"context"
	"errors"

	"github.com/patrickwarner/adreward/internal/db"
	"github.com/patrickwarner/adreward/internal/models"
)

const demoBloggerURL = "https://demo-ads.blogspot.com/p/player.html"

var demoAds = []models.Ad{
	{Type: models.AdTypeDirectLink, Content: "https://example.com/", Duration: 15, Reward: 10, TargetViews: 1000},
	{Type: models.AdTypeVideoEmbed, Content: "https://www.youtube.com/embed/aqz-KE-bpKQ", Duration: 30, Reward: 25, TargetViews: 500},
	{Type: models.AdTypeDirectLink, Content: "https://go.dev/", Duration: 10, Reward: 5, TargetViews: 50},
}

// seedDemo creates the demo user, the blogger embed page and a few active ads.
// Existing data is left alone, so seeding twice is harmless.
func seedDemo(ctx context.Context, store *db.RewardStore, userID int64) error {
	if _, err := store.GetUser(ctx, userID); errors.Is(err, db.ErrUserNotFound) {
		if err := store.PutUser(ctx, userID, models.UserData{Username: "demo", Language: "en"}); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	url, err := store.BloggerURL(ctx)
	if err != nil {
		return err
	}
	if url == "" {
		if err := store.SetBloggerURL(ctx, demoBloggerURL); err != nil {
			return err
		}
	}

	if _, ok, err := store.NextAdFor(ctx, userID); err != nil || ok {
		return err
	}
	for _, ad := range demoAds {
		ad.Status = models.AdStatusActive
		if _, err := store.PutAd(ctx, ad); err != nil {
			return err
		}
	}
	return nil
}
