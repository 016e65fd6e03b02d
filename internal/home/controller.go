// Package home implements the mini app's main page: it hydrates the user's
// profile, renders the balance and runs the daily-bonus and watch-ad actions.
package home

import (
	"context"
	"errors"
	"sync"

	"github.com/patrickwarner/adreward/internal/guard"
	"github.com/patrickwarner/adreward/internal/host"
	"github.com/patrickwarner/adreward/internal/models"
	"github.com/patrickwarner/adreward/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// ErrNoIdentity is returned when the platform did not supply a user.
	ErrNoIdentity = errors.New("platform supplied no user identity")
	// ErrNotReady is returned by actions invoked before Start succeeded.
	ErrNotReady = errors.New("home page is not ready")
)

// MsgNoIdentity is shown when the platform supplied no user.
const MsgNoIdentity = "Error: Could not retrieve user data from Telegram."

// State is the controller's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateReady
)

func (s State) String() string {
	if s == StateReady {
		return "ready"
	}
	return "uninitialized"
}

// Backend is the part of the API client the main page uses.
type Backend interface {
	GetUserData(ctx context.Context, userID int64) models.Result
	ClaimDailyBonus(ctx context.Context, userID int64) models.Result
	GetAdForView(ctx context.Context, userID int64) models.Result
}

// Controller owns the main page's state. All of its methods are safe for
// concurrent use.
type Controller struct {
	platform   host.Platform
	surface    host.Surface
	view       host.HomeView
	backend    Backend
	viewerPage string
	logger     *zap.Logger
	metrics    observability.MetricsRegistry
	printer    *message.Printer

	bonus guard.Flight
	watch guard.Flight

	mu     sync.Mutex
	state  State
	userID int64
	user   models.UserData
}

// NewController wires a main page controller. viewerPage is the address of the
// ad viewer page that launch parameters are appended to.
func NewController(platform host.Platform, surface host.Surface, view host.HomeView, backend Backend, viewerPage string, logger *zap.Logger, metrics observability.MetricsRegistry) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Controller{
		platform:   platform,
		surface:    surface,
		view:       view,
		backend:    backend,
		viewerPage: viewerPage,
		logger:     logger.Named("home"),
		metrics:    metrics,
		printer:    message.NewPrinter(language.English),
	}
}

// Start signals readiness to the platform, loads the user's data and renders
// it. On failure the controller stays uninitialized and the actions stay inert;
// there is no retry.
func (c *Controller) Start(ctx context.Context) error {
	c.platform.Ready()
	c.platform.Expand()

	id, ok := c.platform.User()
	if !ok {
		c.logger.Warn("no user identity from platform")
		c.surface.Notify(MsgNoIdentity, host.NotifyLong)
		return ErrNoIdentity
	}

	res := c.backend.GetUserData(ctx, id.ID)
	if !res.Success || res.User == nil {
		msg := res.Message
		if msg == "" {
			msg = models.GenericFailure
		}
		c.surface.Notify(msg, host.NotifyLong)
		return errors.New(msg)
	}

	c.mu.Lock()
	c.userID = id.ID
	c.user = *res.User
	c.state = StateReady
	c.mu.Unlock()

	c.render()
	c.logger.Info("home ready", zap.Int64("user_id", id.ID))
	return nil
}

// ClaimDailyBonus claims today's bonus. The backend's message is always shown;
// only a successful claim triggers a refresh of the balance. It reports
// whether the action ran.
func (c *Controller) ClaimDailyBonus(ctx context.Context) bool {
	userID, ok := c.readyUser()
	if !ok {
		return false
	}
	ran := c.bonus.Do(ctx, func(ctx context.Context) {
		res := c.backend.ClaimDailyBonus(ctx, userID)
		c.surface.Notify(res.Message, host.NotifyShort)
		if res.Success {
			c.refresh(ctx, userID)
		}
	})
	if !ran {
		c.metrics.IncrementGuardRejections("daily_bonus")
	}
	return ran
}

// WatchAd requests an ad and opens the viewer page for it. On failure the
// reason is shown and nothing is opened. It reports whether the action ran.
func (c *Controller) WatchAd(ctx context.Context) bool {
	userID, ok := c.readyUser()
	if !ok {
		return false
	}
	ran := c.watch.Do(ctx, func(ctx context.Context) {
		res := c.backend.GetAdForView(ctx, userID)
		if !res.Success || res.Ad == nil {
			c.surface.Notify(res.Message, host.NotifyShort)
			return
		}
		launch := res.Ad.LaunchURL(c.viewerPage)
		c.logger.Debug("opening ad viewer", zap.Int64("ad_id", res.Ad.ID), zap.String("url", launch))
		c.platform.OpenLink(launch, host.LinkOptions{TryInstantView: true})
	})
	if !ran {
		c.metrics.IncrementGuardRejections("watch_ad")
	}
	return ran
}

// Refresh reloads the user's data and re-renders it.
func (c *Controller) Refresh(ctx context.Context) error {
	userID, ok := c.readyUser()
	if !ok {
		return ErrNotReady
	}
	if !c.refresh(ctx, userID) {
		return errors.New("refresh user data failed")
	}
	return nil
}

// State returns the controller's lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the cached user data.
func (c *Controller) User() models.UserData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// FormatBalance renders a balance with English digit grouping, e.g. 1,234,567.
func (c *Controller) FormatBalance(balance int64) string {
	return c.printer.Sprintf("%d", balance)
}

func (c *Controller) refresh(ctx context.Context, userID int64) bool {
	res := c.backend.GetUserData(ctx, userID)
	if !res.Success || res.User == nil {
		return false
	}
	c.mu.Lock()
	c.user = *res.User
	c.mu.Unlock()
	c.render()
	return true
}

func (c *Controller) render() {
	u := c.User()
	c.view.SetUsername(u.DisplayName())
	c.view.SetBalance(c.FormatBalance(u.Balance))
}

func (c *Controller) readyUser() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.state == StateReady
}
