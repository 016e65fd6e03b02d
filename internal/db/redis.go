package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/patrickwarner/adreward/internal/models"
)

// ErrUserNotFound is returned for operations on a user that does not exist.
var ErrUserNotFound = errors.New("user not found")

// ErrAdNotFound is returned when an ad id is unknown.
var ErrAdNotFound = errors.New("ad not found")

// ViewOutcome tells what RecordView did.
type ViewOutcome int

const (
	ViewRecorded ViewOutcome = iota
	ViewDuplicate
)

const (
	adsIndexKey     = "ads"
	adSeqKey        = "ads:seq"
	settingsKey     = "settings"
	bloggerURLField = "blogger_page_url"
	ledgerLimit     = 100
)

func userKey(id int64) string { return fmt.Sprintf("user:%d", id) }
func ledgerKey(id int64) string { return fmt.Sprintf("user:%d:tx", id) }
func adKey(id int64) string { return fmt.Sprintf("ad:%d", id) }
func viewersKey(adID int64) string { return fmt.Sprintf("ad:%d:viewers", adID) }
func bonusKey(id int64, day string) string { return fmt.Sprintf("bonus:daily:%d:%s", id, day) }

// RewardStore keeps users, ads and views in Redis.
type RewardStore struct {
	Client *redis.Client
	now    func() time.Time
}

// InitRedis connects to Redis with tracing enabled and returns a RewardStore.
func InitRedis(ctx context.Context, addr string) (*RewardStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	zap.L().Info("Connected to Redis", zap.String("addr", addr))
	return NewRewardStore(client), nil
}

// NewRewardStore wraps an existing client.
func NewRewardStore(client *redis.Client) *RewardStore {
	return &RewardStore{Client: client, now: time.Now}
}

// SetClock overrides the store's notion of the current time.
func (r *RewardStore) SetClock(now func() time.Time) {
	r.now = now
}

// PutUser creates or replaces a user's profile. The balance is written as given.
func (r *RewardStore) PutUser(ctx context.Context, id int64, u models.UserData) error {
	return r.Client.HSet(ctx, userKey(id),
		"username", u.Username,
		"balance", u.Balance,
		"language", u.Language,
		"timezone", u.Timezone,
	).Err()
}

// GetUser loads a user's profile.
func (r *RewardStore) GetUser(ctx context.Context, id int64) (models.UserData, error) {
	fields, err := r.Client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return models.UserData{}, err
	}
	if len(fields) == 0 {
		return models.UserData{}, ErrUserNotFound
	}
	balance, _ := strconv.ParseInt(fields["balance"], 10, 64)
	return models.UserData{
		Username: fields["username"],
		Balance:  balance,
		Language: fields["language"],
		Timezone: fields["timezone"],
	}, nil
}

func (r *RewardStore) userExists(ctx context.Context, id int64) error {
	n, err := r.Client.Exists(ctx, userKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ClaimDailyBonus credits amount once per calendar day. It reports false when
// today's bonus was already taken.
func (r *RewardStore) ClaimDailyBonus(ctx context.Context, userID, amount int64) (bool, error) {
	if err := r.userExists(ctx, userID); err != nil {
		return false, err
	}
	day := r.now().Format("2006-01-02")
	key := bonusKey(userID, day)
	ok, err := r.Client.SetNX(ctx, key, 1, 48*time.Hour).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := r.credit(ctx, userID, amount, models.TxBonus, map[string]string{"bonus_type": "daily"}); err != nil {
		// the balance did not move, so the day is still unclaimed
		if derr := r.Client.Del(ctx, key).Err(); derr != nil {
			zap.L().Error("release daily bonus key", zap.String("key", key), zap.Error(derr))
		}
		return false, err
	}
	return true, nil
}

// credit adds amount to the balance and appends a ledger entry. MULTI does
// not roll back, so the error is returned only when the balance itself was
// not changed; a failed ledger write after a successful increment is logged.
func (r *RewardStore) credit(ctx context.Context, userID, amount int64, kind string, details map[string]string) error {
	entry, err := json.Marshal(models.Transaction{Kind: kind, Amount: amount, Details: details, At: r.now().UTC()})
	if err != nil {
		return err
	}
	var (
		incr *redis.IntCmd
		push *redis.IntCmd
		trim *redis.StatusCmd
	)
	_, err = r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, userKey(userID), "balance", amount)
		push = p.LPush(ctx, ledgerKey(userID), entry)
		trim = p.LTrim(ctx, ledgerKey(userID), 0, ledgerLimit-1)
		return nil
	})
	if incr == nil {
		return err
	}
	if ierr := incr.Err(); ierr != nil {
		return ierr
	}
	for _, cmd := range []redis.Cmder{push, trim} {
		if cerr := cmd.Err(); cerr != nil {
			zap.L().Warn("ledger write failed after credit",
				zap.Int64("user_id", userID),
				zap.String("kind", kind),
				zap.Int64("amount", amount),
				zap.Error(cerr))
			break
		}
	}
	return nil
}

// Transactions returns the user's most recent ledger entries, newest first.
func (r *RewardStore) Transactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	raw, err := r.Client.LRange(ctx, ledgerKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	txs := make([]models.Transaction, 0, len(raw))
	for _, s := range raw {
		var tx models.Transaction
		if err := json.Unmarshal([]byte(s), &tx); err != nil {
			return nil, fmt.Errorf("decode ledger entry: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// PutAd stores an ad. A zero ID allocates the next one, which is returned.
func (r *RewardStore) PutAd(ctx context.Context, ad models.Ad) (int64, error) {
	if ad.ID == 0 {
		id, err := r.Client.Incr(ctx, adSeqKey).Result()
		if err != nil {
			return 0, err
		}
		ad.ID = id
	}
	if ad.Status == "" {
		ad.Status = models.AdStatusPending
	}
	_, err := r.Client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, adKey(ad.ID),
			"owner_user_id", ad.OwnerUserID,
			"ad_type", string(ad.Type),
			"ad_content", ad.Content,
			"duration", ad.Duration,
			"reward", ad.Reward,
			"target_views", ad.TargetViews,
			"current_views", ad.CurrentViews,
			"status", string(ad.Status),
		)
		p.ZAdd(ctx, adsIndexKey, redis.Z{Score: float64(ad.ID), Member: ad.ID})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return ad.ID, nil
}

// GetAd loads one ad.
func (r *RewardStore) GetAd(ctx context.Context, id int64) (models.Ad, error) {
	fields, err := r.Client.HGetAll(ctx, adKey(id)).Result()
	if err != nil {
		return models.Ad{}, err
	}
	if len(fields) == 0 {
		return models.Ad{}, ErrAdNotFound
	}
	num := func(k string) int64 {
		v, _ := strconv.ParseInt(fields[k], 10, 64)
		return v
	}
	return models.Ad{
		ID:           id,
		OwnerUserID:  num("owner_user_id"),
		Type:         models.AdType(fields["ad_type"]),
		Content:      fields["ad_content"],
		Duration:     num("duration"),
		Reward:       num("reward"),
		TargetViews:  num("target_views"),
		CurrentViews: num("current_views"),
		Status:       models.AdStatus(fields["status"]),
	}, nil
}

// SetAdStatus moves an ad to a new lifecycle state, e.g. after moderation.
func (r *RewardStore) SetAdStatus(ctx context.Context, id int64, status models.AdStatus) error {
	n, err := r.Client.Exists(ctx, adKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAdNotFound
	}
	return r.Client.HSet(ctx, adKey(id), "status", string(status)).Err()
}

// NextAdFor returns the oldest active ad the user neither owns nor has seen.
// The second result is false when there is none.
func (r *RewardStore) NextAdFor(ctx context.Context, userID int64) (models.Ad, bool, error) {
	ids, err := r.Client.ZRange(ctx, adsIndexKey, 0, -1).Result()
	if err != nil {
		return models.Ad{}, false, err
	}
	member := strconv.FormatInt(userID, 10)
	for _, s := range ids {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		ad, err := r.GetAd(ctx, id)
		if errors.Is(err, ErrAdNotFound) {
			continue
		}
		if err != nil {
			return models.Ad{}, false, err
		}
		if ad.Status != models.AdStatusActive || ad.OwnerUserID == userID {
			continue
		}
		seen, err := r.Client.SIsMember(ctx, viewersKey(id), member).Result()
		if err != nil {
			return models.Ad{}, false, err
		}
		if !seen {
			return ad, true, nil
		}
	}
	return models.Ad{}, false, nil
}

// RecordView records that the user finished watching the ad and credits the
// ad's reward. A repeated view of the same ad by the same user credits nothing
// and reports ViewDuplicate. The ad completes once it reaches its target views.
func (r *RewardStore) RecordView(ctx context.Context, userID, adID int64) (ViewOutcome, models.Ad, error) {
	if err := r.userExists(ctx, userID); err != nil {
		return 0, models.Ad{}, err
	}
	ad, err := r.GetAd(ctx, adID)
	if err != nil {
		return 0, models.Ad{}, err
	}

	member := strconv.FormatInt(userID, 10)
	added, err := r.Client.SAdd(ctx, viewersKey(adID), member).Result()
	if err != nil {
		return 0, ad, err
	}
	if added == 0 {
		return ViewDuplicate, ad, nil
	}

	reward := ad.Descriptor("").Reward
	if err := r.credit(ctx, userID, reward, models.TxAdReward, map[string]string{"ad_id": strconv.FormatInt(adID, 10)}); err != nil {
		// nothing was credited; let the user watch it again
		if serr := r.Client.SRem(ctx, viewersKey(adID), member).Err(); serr != nil {
			zap.L().Error("release view gate", zap.Int64("ad_id", adID), zap.Int64("user_id", userID), zap.Error(serr))
		}
		return 0, ad, err
	}

	// The reward is paid from here on; view accounting errors only get logged.
	views, err := r.Client.HIncrBy(ctx, adKey(adID), "current_views", 1).Result()
	if err != nil {
		zap.L().Error("count ad view", zap.Int64("ad_id", adID), zap.Error(err))
		return ViewRecorded, ad, nil
	}
	ad.CurrentViews = views
	if ad.TargetViews > 0 && views >= ad.TargetViews {
		if err := r.Client.HSet(ctx, adKey(adID), "status", string(models.AdStatusCompleted)).Err(); err != nil {
			zap.L().Error("complete ad", zap.Int64("ad_id", adID), zap.Error(err))
			return ViewRecorded, ad, nil
		}
		ad.Status = models.AdStatusCompleted
	}
	return ViewRecorded, ad, nil
}

// BloggerURL returns the embed page used for video ads, or "" when unset.
func (r *RewardStore) BloggerURL(ctx context.Context) (string, error) {
	v, err := r.Client.HGet(ctx, settingsKey, bloggerURLField).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// SetBloggerURL configures the embed page used for video ads.
func (r *RewardStore) SetBloggerURL(ctx context.Context, url string) error {
	return r.Client.HSet(ctx, settingsKey, bloggerURLField, url).Err()
}

// Ping checks the connection.
func (r *RewardStore) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (r *RewardStore) Close() {
	if r != nil && r.Client != nil {
		if err := r.Client.Close(); err != nil {
			zap.L().Error("redis close", zap.Error(err))
		}
	}
}
