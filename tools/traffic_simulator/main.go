// Command traffic_simulator drives many simulated mini app users through the
// reward flow against a backend: load profile, claim the daily bonus, request
// an ad and record the view.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/patrickwarner/adreward/internal/api"
	"github.com/patrickwarner/adreward/internal/apiclient"
	"github.com/patrickwarner/adreward/internal/config"
	"github.com/patrickwarner/adreward/internal/db"
	"github.com/patrickwarner/adreward/internal/models"
	"github.com/patrickwarner/adreward/internal/observability"
)

const statsInterval = 5 * time.Second

// options configures one simulation run.
type options struct {
	Server        string
	Users         int
	FirstUserID   int64
	Sessions      int
	Concurrency   int
	Rate          float64
	BonusRate     float64
	DuplicateRate float64
	Label         string
}

// counters aggregates the outcome of every simulated session.
type counters struct {
	sessions   atomic.Uint64
	bonuses    atomic.Uint64
	views      atomic.Uint64
	noAd       atomic.Uint64
	duplicates atomic.Uint64
	rejected   atomic.Uint64
	errors     atomic.Uint64
}

// quietSurface swallows the client's loading and toast calls.
type quietSurface struct{}

func (quietSurface) ShowLoading()                 {}
func (quietSurface) HideLoading()                 {}
func (quietSurface) Notify(string, time.Duration) {}

func main() {
	var (
		opts      options
		stats     bool
		flush     bool
		createU   bool
		redisAddr string
		debug     bool
	)
	flag.StringVar(&opts.Server, "server", "http://localhost:8787", "backend base URL")
	flag.IntVar(&opts.Users, "users", 100, "number of unique users")
	flag.Int64Var(&opts.FirstUserID, "first-user", 2000, "id of the first simulated user")
	flag.IntVar(&opts.Sessions, "sessions", 1000, "total sessions to run")
	flag.IntVar(&opts.Concurrency, "concurrency", 20, "concurrent sessions")
	flag.Float64Var(&opts.Rate, "rate", 0, "sessions per second (0 for unlimited)")
	flag.Float64Var(&opts.BonusRate, "bonus-rate", 0.3, "probability a session claims the daily bonus")
	flag.Float64Var(&opts.DuplicateRate, "duplicate-rate", 0.05, "probability a session records its view twice")
	flag.StringVar(&opts.Label, "label", "", "label to identify this run")
	flag.BoolVar(&stats, "stats", false, "print aggregated stats periodically")
	flag.BoolVar(&flush, "flush", false, "forget views and bonus claims in redis before running")
	flag.BoolVar(&createU, "create-users", false, "create the simulated users in redis before running")
	flag.StringVar(&redisAddr, "redis", "", "redis address (defaults to REDIS_ADDR)")
	flag.BoolVar(&debug, "debug", false, "enable verbose debug logs")
	flag.Parse()

	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}
	logger, err := observability.InitLoggerWithLevel(level, "traffic-simulator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if opts.Label == "" {
		opts.Label = time.Now().Format(time.RFC3339)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if flush || createU {
		addr := redisAddr
		if addr == "" {
			addr = config.Load().RedisAddr
		}
		store, err := db.InitRedis(ctx, addr)
		if err != nil {
			logger.Fatal("redis connect", zap.Error(err))
		}
		if flush {
			n, err := flushActivity(ctx, store)
			if err != nil {
				logger.Error("flush", zap.Error(err))
			}
			logger.Info("redis activity flushed", zap.Int("keys_deleted", n), zap.String("note", "users and ads preserved"))
		}
		if createU {
			if err := createUsers(ctx, store, opts.FirstUserID, opts.Users); err != nil {
				logger.Fatal("create users", zap.Error(err))
			}
		}
		store.Close()
	}

	var c counters
	done := make(chan struct{})
	if stats {
		go func() {
			ticker := time.NewTicker(statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					printStats(logger, opts.Label, &c)
				case <-done:
					return
				}
			}
		}()
	}

	simulate(ctx, opts, logger, &c)
	close(done)
	printStats(logger, opts.Label, &c)
}

// simulate runs opts.Sessions sessions, at most opts.Concurrency at a time.
func simulate(ctx context.Context, opts options, logger *zap.Logger, c *counters) {
	client := apiclient.NewClient(opts.Server, 15*time.Second, quietSurface{}, logger, observability.NewNoOpRegistry())

	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	var interval time.Duration
	if opts.Rate > 0 {
		interval = time.Duration(float64(time.Second) / opts.Rate)
	}
	next := time.Now()

	var wg sync.WaitGroup
	sem := make(chan struct{}, max(opts.Concurrency, 1))
	for i := 0; i < opts.Sessions; i++ {
		if ctx.Err() != nil {
			break
		}
		if interval > 0 {
			if d := time.Until(next); d > 0 {
				time.Sleep(d)
			}
			next = next.Add(interval)
		}
		// users take turns so every one of them gets sessions
		userID := opts.FirstUserID + int64(i%max(opts.Users, 1))
		bonusRoll, dupRoll := r.Float64(), r.Float64()
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			session(ctx, client, userID, bonusRoll < opts.BonusRate, dupRoll < opts.DuplicateRate, logger, c)
		}()
	}
	wg.Wait()
}

// session plays one visit to the mini app.
func session(ctx context.Context, client *apiclient.Client, userID int64, bonus, duplicate bool, logger *zap.Logger, c *counters) {
	c.sessions.Add(1)

	if res := client.GetUserData(ctx, userID); !res.Success {
		c.errors.Add(1)
		logger.Debug("user data", zap.Int64("user_id", userID), zap.String("reason", res.Message))
		return
	}

	if bonus {
		if res := client.ClaimDailyBonus(ctx, userID); res.Success {
			c.bonuses.Add(1)
		} else {
			c.rejected.Add(1)
		}
	}

	res := client.GetAdForView(ctx, userID)
	if !res.Success || res.Ad == nil {
		c.noAd.Add(1)
		return
	}
	ad := *res.Ad

	attempts := 1
	if duplicate {
		attempts = 2
	}
	for i := 0; i < attempts; i++ {
		c.countView(client.RecordAdView(ctx, userID, ad.ID, ad.Reward))
	}
	logger.Debug("session", zap.Int64("user_id", userID), zap.Int64("ad_id", ad.ID), zap.Bool("bonus", bonus))
}

// countView classifies a record_ad_view answer. Concurrent sessions of one
// user can race on the same ad, so a duplicate is told by the backend's
// message rather than by which attempt it was.
func (c *counters) countView(rec models.Result) {
	switch {
	case rec.Success:
		c.views.Add(1)
	case rec.Message == api.MsgAlreadyWatched:
		c.duplicates.Add(1)
	default:
		c.rejected.Add(1)
	}
}

// flushActivity removes recorded views and bonus claims, keeping users and ads.
func flushActivity(ctx context.Context, store *db.RewardStore) (int, error) {
	deleted := 0
	for _, pattern := range []string{"ad:*:viewers", "bonus:daily:*"} {
		keys, err := store.Client.Keys(ctx, pattern).Result()
		if err != nil {
			return deleted, fmt.Errorf("keys %s: %w", pattern, err)
		}
		if len(keys) == 0 {
			continue
		}
		if err := store.Client.Del(ctx, keys...).Err(); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", pattern, err)
		}
		deleted += len(keys)
	}
	return deleted, nil
}

func createUsers(ctx context.Context, store *db.RewardStore, first int64, n int) error {
	for i := 0; i < n; i++ {
		id := first + int64(i)
		if _, err := store.GetUser(ctx, id); err == nil {
			continue
		}
		if err := store.PutUser(ctx, id, models.UserData{Username: fmt.Sprintf("sim%d", id)}); err != nil {
			return err
		}
	}
	return nil
}

func printStats(logger *zap.Logger, label string, c *counters) {
	logger.Info("stats",
		zap.String("run", label),
		zap.Uint64("sessions", c.sessions.Load()),
		zap.Uint64("bonuses", c.bonuses.Load()),
		zap.Uint64("views", c.views.Load()),
		zap.Uint64("no_ad", c.noAd.Load()),
		zap.Uint64("duplicates_refused", c.duplicates.Load()),
		zap.Uint64("rejected", c.rejected.Load()),
		zap.Uint64("errors", c.errors.Load()),
	)
}
