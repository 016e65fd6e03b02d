// Package adviewer implements the ad viewing page: it loads the ad described by
// the launch address into the frame, counts down its duration, and submits the
// reward claim exactly once.
package adviewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/patrickwarner/adreward/internal/countdown"
	"github.com/patrickwarner/adreward/internal/guard"
	"github.com/patrickwarner/adreward/internal/host"
	"github.com/patrickwarner/adreward/internal/models"
	"github.com/patrickwarner/adreward/internal/observability"
	"go.uber.org/zap"
)

// ErrInvalidDuration is returned for launch addresses whose duration is not a
// positive number of seconds.
var ErrInvalidDuration = errors.New("invalid ad duration")

// Texts rendered by the viewer.
const (
	MsgLoadFailed   = "There was a problem loading the ad."
	MsgClaimable    = "You can claim your reward now!"
	LabelProcessing = "Processing..."
	msgNoIdentity   = "Could not retrieve user data from Telegram."
)

// State is the viewer's lifecycle state.
type State int

const (
	StateLoading State = iota
	StateCounting
	StateClaimable
	StateSubmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateCounting:
		return "counting"
	case StateClaimable:
		return "claimable"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend is the part of the API client the viewer uses.
type Backend interface {
	RecordAdView(ctx context.Context, userID, adID, reward int64) models.Result
}

// TimerText is the countdown line shown while the ad plays.
func TimerText(left int64) string {
	return fmt.Sprintf("Watch the ad for %d seconds", left)
}

// ClaimLabel is the claim control's label once the reward can be claimed.
func ClaimLabel(reward int64) string {
	return fmt.Sprintf("✅ Claim %d points", reward)
}

// Controller owns one ad viewing session.
type Controller struct {
	platform  host.Platform
	view      host.ViewerView
	backend   Backend
	logger    *zap.Logger
	metrics   observability.MetricsRegistry
	newTicker countdown.TickerFunc

	claim     guard.Flight
	claimable chan struct{}
	finished  chan struct{}
	endOnce   sync.Once

	mu       sync.Mutex
	state    State
	ad       models.AdDescriptor
	timeLeft int64
	timer    *countdown.Timer
}

// NewController wires a viewer for one session.
func NewController(platform host.Platform, view host.ViewerView, backend Backend, logger *zap.Logger, metrics observability.MetricsRegistry) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewNoOpRegistry()
	}
	return &Controller{
		platform:  platform,
		view:      view,
		backend:   backend,
		logger:    logger.Named("adviewer"),
		metrics:   metrics,
		claimable: make(chan struct{}),
		finished:  make(chan struct{}),
	}
}

// SetTicker replaces the countdown's ticker source.
func (c *Controller) SetTicker(fn countdown.TickerFunc) {
	c.newTicker = fn
}

// Start parses the launch address, loads the ad into the frame and starts the
// countdown. A launch address without a usable ad leaves the page in the failed
// state with no content loaded and no countdown running.
func (c *Controller) Start(ctx context.Context, launchURL string) error {
	c.platform.Ready()
	c.view.SetClaimEnabled(false)

	ad, err := models.ParseLaunch(launchURL)
	if err != nil {
		return c.fail(err)
	}
	if ad.Duration <= 0 {
		return c.fail(fmt.Errorf("%w: %d", ErrInvalidDuration, ad.Duration))
	}
	frame, err := ad.FrameURL()
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	c.ad = ad
	c.timeLeft = ad.Duration
	c.state = StateCounting
	c.mu.Unlock()

	c.view.SetFrameURL(frame)
	c.view.SetTimerText(TimerText(ad.Duration))
	c.logger.Debug("ad loaded", zap.Int64("ad_id", ad.ID), zap.String("ad_type", string(ad.Type)), zap.Int64("duration", ad.Duration))

	timer := countdown.Start(ctx, countdown.Config{
		Seconds:   ad.Duration,
		NewTicker: c.newTicker,
		OnTick:    c.onTick,
		OnDone:    c.onDone,
	})
	c.mu.Lock()
	c.timer = timer
	c.mu.Unlock()
	return nil
}

func (c *Controller) onTick(left int64) {
	c.mu.Lock()
	c.timeLeft = left
	c.mu.Unlock()
	c.view.SetTimerText(TimerText(left))
}

func (c *Controller) onDone() {
	c.mu.Lock()
	c.state = StateClaimable
	reward := c.ad.Reward
	c.mu.Unlock()

	c.view.SetTimerText(MsgClaimable)
	c.view.SetClaimEnabled(true)
	c.view.SetClaimLabel(ClaimLabel(reward))
	close(c.claimable)
}

// Claim submits the reward claim. Only the first activation after the
// countdown completed does anything; the control disables itself before the
// request is sent and never re-enables. Either outcome ends in an alert whose
// dismissal closes the page. It reports whether this activation submitted.
func (c *Controller) Claim(ctx context.Context) bool {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	if state != StateClaimable {
		return false
	}
	// never released: a session claims at most once
	if !c.claim.TryAcquire() {
		c.metrics.IncrementGuardRejections("claim_reward")
		return false
	}

	c.mu.Lock()
	c.state = StateSubmitting
	ad := c.ad
	c.mu.Unlock()

	c.view.SetClaimEnabled(false)
	c.view.SetClaimLabel(LabelProcessing)

	var res models.Result
	if id, ok := c.platform.User(); ok {
		res = c.backend.RecordAdView(ctx, id.ID, ad.ID, ad.Reward)
	} else {
		res = models.Failure(msgNoIdentity)
	}

	c.mu.Lock()
	c.state = StateDone
	c.mu.Unlock()
	c.end()

	if res.Success {
		c.metrics.IncrementAdViewerOutcome("claimed")
		c.logger.Info("ad view recorded", zap.Int64("ad_id", ad.ID), zap.Int64("reward", ad.Reward))
		c.platform.ShowAlert(fmt.Sprintf("Congratulations! You earned %d points.", ad.Reward), c.platform.Close)
		return true
	}
	c.metrics.IncrementAdViewerOutcome("claim_failed")
	c.logger.Warn("ad view not recorded", zap.Int64("ad_id", ad.ID), zap.String("reason", res.Message))
	c.platform.ShowAlert("Sorry! "+res.Message, c.platform.Close)
	return true
}

// Stop cancels a running countdown, e.g. when the page is torn down.
func (c *Controller) Stop() {
	c.mu.Lock()
	timer := c.timer
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

// State returns the viewer's lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TimeLeft returns the seconds remaining on the countdown.
func (c *Controller) TimeLeft() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeLeft
}

// Ad returns the ad of this session.
func (c *Controller) Ad() models.AdDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ad
}

// Claimable is closed when the countdown completes.
func (c *Controller) Claimable() <-chan struct{} {
	return c.claimable
}

// Finished is closed when the session reaches a terminal state.
func (c *Controller) Finished() <-chan struct{} {
	return c.finished
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()

	c.view.SetTimerText(MsgLoadFailed)
	c.metrics.IncrementAdViewerOutcome("invalid_launch")
	c.logger.Warn("cannot load ad", zap.Error(err))
	c.end()
	return err
}

func (c *Controller) end() {
	c.endOnce.Do(func() { close(c.finished) })
}
