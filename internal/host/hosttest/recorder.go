// Package hosttest provides an in-memory host for controller tests.
package hosttest

import (
	"sync"
	"time"

	"github.com/patrickwarner/adreward/internal/host"
)

// Notification is one recorded Surface.Notify call.
type Notification struct {
	Message  string
	Duration time.Duration
}

// OpenedLink is one recorded Platform.OpenLink call.
type OpenedLink struct {
	URL  string
	Opts host.LinkOptions
}

// Recorder implements host.Platform, host.Surface, host.HomeView and
// host.ViewerView, recording every call. Alerts are dismissed immediately
// unless HoldAlerts is set, in which case DismissAlert must be called.
type Recorder struct {
	mu sync.Mutex

	Identity   *host.Identity
	HoldAlerts bool

	ReadyCalls  int
	ExpandCalls int
	CloseCalls  int
	Links       []OpenedLink
	Alerts      []string
	pending     []func()

	LoadingShown  int
	LoadingHidden int
	Notifications []Notification

	Username     string
	Balance      string
	FrameURL     string
	TimerTexts   []string
	ClaimEnabled bool
	ClaimLabel   string
	enabledLog   []bool
}

// NewRecorder returns a Recorder whose platform reports the given user.
func NewRecorder(id int64) *Recorder {
	return &Recorder{Identity: &host.Identity{ID: id, Username: "tester"}}
}

func (r *Recorder) Ready() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ReadyCalls++
}

func (r *Recorder) Expand() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ExpandCalls++
}

func (r *Recorder) OpenLink(url string, opts host.LinkOptions) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Links = append(r.Links, OpenedLink{URL: url, Opts: opts})
}

func (r *Recorder) ShowAlert(message string, onClose func()) {
	r.mu.Lock()
	r.Alerts = append(r.Alerts, message)
	if r.HoldAlerts {
		r.pending = append(r.pending, onClose)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	if onClose != nil {
		onClose()
	}
}

// DismissAlert runs the callback of the oldest held alert.
func (r *Recorder) DismissAlert() bool {
	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		return false
	}
	cb := r.pending[0]
	r.pending = r.pending[1:]
	r.mu.Unlock()
	if cb != nil {
		cb()
	}
	return true
}

func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CloseCalls++
}

func (r *Recorder) User() (host.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Identity == nil {
		return host.Identity{}, false
	}
	return *r.Identity, true
}

func (r *Recorder) ShowLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LoadingShown++
}

func (r *Recorder) HideLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.LoadingHidden++
}

func (r *Recorder) Notify(message string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, Notification{Message: message, Duration: d})
}

func (r *Recorder) SetUsername(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Username = name
}

func (r *Recorder) SetBalance(balance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Balance = balance
}

func (r *Recorder) SetFrameURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FrameURL = url
}

func (r *Recorder) SetTimerText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TimerTexts = append(r.TimerTexts, text)
}

func (r *Recorder) SetClaimEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ClaimEnabled = enabled
	r.enabledLog = append(r.enabledLog, enabled)
}

func (r *Recorder) SetClaimLabel(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ClaimLabel = label
}

// Snapshot returns a copy of the recorded state that is safe to inspect
// while controller goroutines may still be running.
func (r *Recorder) Snapshot() Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Recorder{
		ReadyCalls:    r.ReadyCalls,
		ExpandCalls:   r.ExpandCalls,
		CloseCalls:    r.CloseCalls,
		Links:         append([]OpenedLink(nil), r.Links...),
		Alerts:        append([]string(nil), r.Alerts...),
		LoadingShown:  r.LoadingShown,
		LoadingHidden: r.LoadingHidden,
		Notifications: append([]Notification(nil), r.Notifications...),
		Username:      r.Username,
		Balance:       r.Balance,
		FrameURL:      r.FrameURL,
		TimerTexts:    append([]string(nil), r.TimerTexts...),
		ClaimEnabled:  r.ClaimEnabled,
		ClaimLabel:    r.ClaimLabel,
		enabledLog:    append([]bool(nil), r.enabledLog...),
	}
}

// ClaimEnabledLog returns every value passed to SetClaimEnabled, in order.
func (r *Recorder) ClaimEnabledLog() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.enabledLog...)
}
