// Package countdown runs the ad viewer's once-per-second countdown as an
// explicit, cancellable timer handle.
package countdown

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultInterval is the time between two ticks.
const DefaultInterval = time.Second

// Ticker is the subset of time.Ticker the countdown needs. Tests substitute a
// manually driven implementation.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Config describes one countdown.
type Config struct {
	Seconds   int64         // starting value; the timer completes when it reaches zero
	Interval  time.Duration // defaults to DefaultInterval
	NewTicker TickerFunc    // defaults to NewTicker
	// OnTick runs after every tick with the remaining seconds, including the final 0.
	OnTick func(left int64)
	// OnDone runs exactly once, after the final OnTick, when the countdown reaches zero.
	// It does not run when the timer is stopped early.
	OnDone func()
}

// Timer is a running countdown.
type Timer struct {
	cancel    context.CancelFunc
	done      chan struct{}
	left      atomic.Int64
	completed atomic.Bool
}

// Start begins counting down from cfg.Seconds. Callbacks run on the timer's own
// goroutine, one at a time. Cancelling ctx stops the timer like Stop does.
func Start(ctx context.Context, cfg Config) *Timer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTicker
	}

	ctx, cancel := context.WithCancel(ctx)
	t := &Timer{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	t.left.Store(cfg.Seconds)

	go t.run(ctx, cfg)
	return t
}

func (t *Timer) run(ctx context.Context, cfg Config) {
	defer close(t.done)
	defer t.cancel()

	left := cfg.Seconds
	if left <= 0 {
		t.finish(cfg)
		return
	}

	ticker := cfg.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			left--
			t.left.Store(left)
			if cfg.OnTick != nil {
				cfg.OnTick(left)
			}
			if left <= 0 {
				t.finish(cfg)
				return
			}
		}
	}
}

func (t *Timer) finish(cfg Config) {
	t.completed.Store(true)
	if cfg.OnDone != nil {
		cfg.OnDone()
	}
}

// Stop cancels the countdown. It is safe to call more than once and after the
// timer has completed.
func (t *Timer) Stop() {
	t.cancel()
}

// Done is closed once the timer has completed or been stopped.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// Left returns the remaining seconds.
func (t *Timer) Left() int64 {
	return t.left.Load()
}

// Completed reports whether the countdown reached zero.
func (t *Timer) Completed() bool {
	return t.completed.Load()
}
