// Package terminal renders the mini app's pages in a terminal with pterm. A
// Page implements every host capability the controllers need.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"github.com/patrickwarner/adreward/internal/host"
)

// Opener receives the addresses passed to OpenLink.
type Opener func(url string, opts host.LinkOptions)

// Options configures a Page.
type Options struct {
	Out         io.Writer
	In          io.Reader
	Identity    *host.Identity
	AutoDismiss bool // alerts close without waiting for Enter
	Logger      *zap.Logger
}

// Page is one mini app page shown in the terminal.
type Page struct {
	out         io.Writer
	in          io.Reader
	identity    *host.Identity
	autoDismiss bool
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	readOnce sync.Once
	lines    chan string

	mu           sync.Mutex
	opener       Opener
	loading      *pterm.SpinnerPrinter
	loadingDepth int
	countdown    *pterm.SpinnerPrinter
	username     string
	balance      string
	frameURL     string
	timerText    string
	claimEnabled bool
	claimLabel   string
	closed       bool
}

// NewPage creates a page whose lifetime is bounded by parent and by Close.
func NewPage(parent context.Context, opts Options) *Page {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Page{
		out:         opts.Out,
		in:          opts.In,
		identity:    opts.Identity,
		autoDismiss: opts.AutoDismiss,
		logger:      opts.Logger.Named("terminal"),
		ctx:         ctx,
		cancel:      cancel,
		lines:       make(chan string),
	}
}

// Context is cancelled when the page closes.
func (p *Page) Context() context.Context {
	return p.ctx
}

// SetOpener registers where OpenLink sends addresses. Without one the address
// is printed.
func (p *Page) SetOpener(fn Opener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opener = fn
}

// WaitEnter blocks until the user presses Enter, input ends, or ctx is done.
func (p *Page) WaitEnter(ctx context.Context, prompt string) error {
	if prompt != "" {
		p.println(pterm.Info.Sprint(prompt))
	}
	p.readOnce.Do(func() { go p.readLines() })
	select {
	case _, ok := <-p.lines:
		if !ok {
			return io.EOF
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) readLines() {
	defer close(p.lines)
	scanner := bufio.NewScanner(p.in)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Page) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// Platform

func (p *Page) Ready() {
	p.logger.Debug("page ready")
}

func (p *Page) Expand() {
	p.println(pterm.DefaultBox.WithTitle("Ad Rewards").Sprint("Watch ads, earn points."))
}

func (p *Page) OpenLink(url string, opts host.LinkOptions) {
	p.mu.Lock()
	opener := p.opener
	p.mu.Unlock()
	p.logger.Debug("open link", zap.String("url", url), zap.Bool("instant_view", opts.TryInstantView))
	if opener == nil {
		p.println(pterm.Info.Sprint("Open " + url))
		return
	}
	opener(url, opts)
}

// ShowAlert prints a modal message and runs onClose once it is dismissed.
// It blocks the caller like a modal dialog.
func (p *Page) ShowAlert(message string, onClose func()) {
	p.println(pterm.DefaultBox.WithTitle("Notice").Sprint(message))
	if !p.autoDismiss {
		if err := p.WaitEnter(p.ctx, "Press Enter to continue"); err != nil && err != io.EOF {
			return
		}
	}
	if onClose != nil {
		onClose()
	}
}

func (p *Page) Close() {
	p.mu.Lock()
	p.closed = true
	p.stopSpinner(&p.countdown)
	p.stopSpinner(&p.loading)
	p.loadingDepth = 0
	p.mu.Unlock()
	p.cancel()
}

func (p *Page) User() (host.Identity, bool) {
	if p.identity == nil || p.identity.ID == 0 {
		return host.Identity{}, false
	}
	return *p.identity, true
}

// Surface

// ShowLoading starts the loading spinner. Nested calls share one spinner.
func (p *Page) ShowLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadingDepth++
	if p.loading != nil {
		return
	}
	spinner, err := pterm.DefaultSpinner.WithWriter(p.out).WithRemoveWhenDone(true).Start("Loading...")
	if err != nil {
		p.logger.Debug("spinner start", zap.Error(err))
		return
	}
	p.loading = spinner
}

func (p *Page) HideLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadingDepth > 0 {
		p.loadingDepth--
	}
	if p.loadingDepth == 0 {
		p.stopSpinner(&p.loading)
	}
}

// Notify prints a toast. A terminal line does not fade, so d is only logged.
func (p *Page) Notify(message string, d time.Duration) {
	p.logger.Debug("notify", zap.String("message", message), zap.Duration("duration", d))
	if strings.HasPrefix(message, "Error") {
		p.println(pterm.Warning.Sprint(message))
		return
	}
	p.println(pterm.Info.Sprint(message))
}

// HomeView

func (p *Page) SetUsername(name string) {
	p.mu.Lock()
	p.username = name
	p.mu.Unlock()
	p.println("Username: " + pterm.Bold.Sprint(name))
}

func (p *Page) SetBalance(balance string) {
	p.mu.Lock()
	p.balance = balance
	p.mu.Unlock()
	p.println("Balance:  " + pterm.Bold.Sprint(balance))
}

// ViewerView

func (p *Page) SetFrameURL(url string) {
	p.mu.Lock()
	p.frameURL = url
	p.mu.Unlock()
	p.println(pterm.Info.Sprint("Playing " + url))
}

// SetTimerText shows the countdown line on a spinner that is replaced in place.
func (p *Page) SetTimerText(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timerText = text
	if p.closed {
		return
	}
	if p.countdown == nil {
		spinner, err := pterm.DefaultSpinner.WithWriter(p.out).Start(text)
		if err != nil {
			fmt.Fprintln(p.out, text)
			return
		}
		p.countdown = spinner
		return
	}
	p.countdown.UpdateText(text)
}

// SetClaimEnabled settles the countdown line when the claim becomes available.
func (p *Page) SetClaimEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimEnabled = enabled
	if enabled && p.countdown != nil {
		p.countdown.Success(p.timerText)
		p.countdown = nil
	}
}

func (p *Page) SetClaimLabel(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.claimLabel = label
	fmt.Fprintln(p.out, pterm.Bold.Sprint("[ "+label+" ]"))
}

// Username returns the last rendered username.
func (p *Page) Username() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.username
}

// Balance returns the last rendered balance.
func (p *Page) Balance() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance
}

// FrameURL returns the address loaded into the ad frame.
func (p *Page) FrameURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameURL
}

// TimerText returns the current countdown line.
func (p *Page) TimerText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timerText
}

// ClaimEnabled reports whether the claim control is enabled.
func (p *Page) ClaimEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claimEnabled
}

// ClaimLabel returns the claim control's label.
func (p *Page) ClaimLabel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claimLabel
}

// stopSpinner must be called with p.mu held.
func (p *Page) stopSpinner(s **pterm.SpinnerPrinter) {
	if *s == nil {
		return
	}
	if err := (*s).Stop(); err != nil {
		p.logger.Debug("spinner stop", zap.Error(err))
	}
	*s = nil
}

var (
	_ host.Platform   = (*Page)(nil)
	_ host.Surface    = (*Page)(nil)
	_ host.HomeView   = (*Page)(nil)
	_ host.ViewerView = (*Page)(nil)
)
