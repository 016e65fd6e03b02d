// Package host declares the capabilities the mini app consumes from its
// embedding platform and from the page it renders into. Controllers receive
// these as interfaces so they can run against Telegram, a terminal or a fake.
package host

import "time"

// Identity is the user the platform launched the mini app for.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
}

// LinkOptions tunes how the platform opens a page.
type LinkOptions struct {
	TryInstantView bool
}

// Platform is the embedding platform's capability surface.
type Platform interface {
	// Ready tells the platform the page has loaded.
	Ready()
	// Expand asks for full-screen presentation.
	Expand()
	// OpenLink opens url as a new page.
	OpenLink(url string, opts LinkOptions)
	// ShowAlert shows a blocking dialog and calls onClose once it is dismissed.
	ShowAlert(message string, onClose func())
	// Close closes the current page.
	Close()
	// User returns the embedded user identity, if the platform supplied one.
	User() (Identity, bool)
}

// Surface is the page-wide busy indicator and transient notification area.
type Surface interface {
	ShowLoading()
	HideLoading()
	Notify(message string, d time.Duration)
}

// HomeView renders the main page.
type HomeView interface {
	SetUsername(name string)
	SetBalance(balance string)
}

// ViewerView renders the ad viewing page.
type ViewerView interface {
	SetFrameURL(url string)
	SetTimerText(text string)
	SetClaimEnabled(enabled bool)
	SetClaimLabel(label string)
}

// Notification durations used by the controllers.
const (
	NotifyShort = 3 * time.Second
	NotifyLong  = 5 * time.Second
)
