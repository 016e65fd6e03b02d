package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/patrickwarner/adreward/internal/adviewer"
	"github.com/patrickwarner/adreward/internal/apiclient"
	"github.com/patrickwarner/adreward/internal/config"
	"github.com/patrickwarner/adreward/internal/countdown"
	"github.com/patrickwarner/adreward/internal/home"
	"github.com/patrickwarner/adreward/internal/host"
	"github.com/patrickwarner/adreward/internal/observability"
	"github.com/patrickwarner/adreward/internal/terminal"
)

// application holds what every command shares once flags are parsed.
type application struct {
	cfg     config.Config
	in      io.Reader
	out     io.Writer
	logger  *zap.Logger
	metrics observability.MetricsRegistry
	ticker  countdown.TickerFunc

	shutdownTracing func()
	metricsServer   *http.Server
	metricsAddr     net.Addr
}

func newApp(cfg config.Config, in io.Reader, out io.Writer) *cli.App {
	a := &application{cfg: cfg, in: in, out: out}
	return a.cliApp()
}

func (a *application) cliApp() *cli.App {
	cfg := a.cfg
	return &cli.App{
		Name:      "adreward",
		Usage:     "watch ads and collect reward points from the terminal",
		Writer:    a.out,
		ErrWriter: a.out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Value: cfg.APIBaseURL, Usage: "backend base URL"},
			&cli.Int64Flag{Name: "user-id", Value: cfg.UserID, Usage: "Telegram user id"},
			&cli.StringFlag{Name: "username", Value: cfg.Username, Usage: "Telegram username"},
			&cli.StringFlag{Name: "viewer-page", Value: cfg.ViewerPage, Usage: "ad viewer page the launch address points at"},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel, Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "metrics-addr", Value: cfg.MetricsAddr, Usage: "serve Prometheus metrics on this address while the command runs"},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:   "home",
				Usage:  "show username and balance",
				Action: a.homeAction,
			},
			{
				Name:   "bonus",
				Usage:  "claim the daily bonus",
				Action: a.bonusAction,
			},
			{
				Name:  "watch",
				Usage: "watch an ad and claim its reward",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "auto-claim", Usage: "claim as soon as the countdown ends"},
				},
				Action: a.watchAction,
			},
			{
				Name:  "view",
				Usage: "run the ad viewer on a launch address",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Required: true, Usage: "launch address"},
					&cli.BoolFlag{Name: "auto-claim", Usage: "claim as soon as the countdown ends"},
				},
				Action: a.viewAction,
			},
		},
	}
}

func (a *application) before(c *cli.Context) error {
	a.cfg.APIBaseURL = c.String("api")
	a.cfg.UserID = c.Int64("user-id")
	a.cfg.Username = c.String("username")
	a.cfg.ViewerPage = c.String("viewer-page")
	a.cfg.LogLevel = c.String("log-level")
	a.cfg.MetricsAddr = c.String("metrics-addr")

	if a.logger == nil {
		logger, err := observability.InitLoggerWithLevel(observability.ParseLevel(a.cfg.LogLevel), a.cfg.ServiceName)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		a.logger = logger
	}
	if a.cfg.MetricsAddr != "" {
		if err := a.serveMetrics(a.cfg.MetricsAddr); err != nil {
			return err
		}
	}
	if a.metrics == nil {
		if a.metricsServer != nil {
			a.metrics = observability.NewPrometheusRegistry()
		} else {
			a.metrics = observability.NewNoOpRegistry()
		}
	}

	if a.cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(c.Context, a.logger, a.cfg.ServiceName, a.cfg.TempoEndpoint, a.cfg.TracingSampleRate)
		if err != nil {
			a.logger.Warn("tracing disabled", zap.Error(err))
		} else {
			a.shutdownTracing = shutdown
		}
	}
	return nil
}

// serveMetrics exposes /metrics in the background until after() runs.
func (a *application) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	a.metricsServer = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	a.metricsAddr = ln.Addr()

	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server", zap.Error(err))
		}
	}()
	a.logger.Info("serving metrics", zap.String("addr", a.metricsAddr.String()))
	return nil
}

func (a *application) after(c *cli.Context) error {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
		cancel()
	}
	if a.shutdownTracing != nil {
		a.shutdownTracing()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return nil
}

func (a *application) identity() *host.Identity {
	if a.cfg.UserID == 0 {
		return nil
	}
	return &host.Identity{ID: a.cfg.UserID, Username: a.cfg.Username}
}

func (a *application) newPage(ctx context.Context, autoDismiss bool) *terminal.Page {
	return terminal.NewPage(ctx, terminal.Options{
		Out:         a.out,
		In:          a.in,
		Identity:    a.identity(),
		AutoDismiss: autoDismiss,
		Logger:      a.logger,
	})
}

func (a *application) newClient(surface host.Surface) *apiclient.Client {
	client := apiclient.NewClient(a.cfg.APIBaseURL, a.cfg.APITimeout, surface, a.logger, a.metrics)
	client.SetNotifyDuration(a.cfg.NotifyDuration)
	return client
}

func (a *application) startHome(ctx context.Context, page *terminal.Page) (*home.Controller, error) {
	ctl := home.NewController(page, page, page, a.newClient(page), a.cfg.ViewerPage, a.logger, a.metrics)
	if err := ctl.Start(ctx); err != nil {
		return nil, err
	}
	return ctl, nil
}

func (a *application) homeAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	page := a.newPage(ctx, true)
	defer page.Close()
	_, err := a.startHome(page.Context(), page)
	return err
}

func (a *application) bonusAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	page := a.newPage(ctx, true)
	defer page.Close()
	ctl, err := a.startHome(page.Context(), page)
	if err != nil {
		return err
	}
	ctl.ClaimDailyBonus(page.Context())
	return nil
}

func (a *application) watchAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	page := a.newPage(ctx, true)
	defer page.Close()
	ctl, err := a.startHome(page.Context(), page)
	if err != nil {
		return err
	}

	launches := make(chan string, 1)
	page.SetOpener(func(url string, _ host.LinkOptions) {
		select {
		case launches <- url:
		default:
		}
	})
	if !ctl.WatchAd(page.Context()) {
		return nil
	}

	var launch string
	select {
	case launch = <-launches:
	default:
		// the reason was already shown
		return nil
	}
	if err := a.runViewer(ctx, launch, c.Bool("auto-claim")); err != nil {
		return err
	}
	if err := ctl.Refresh(page.Context()); err != nil {
		a.logger.Warn("balance refresh after claim", zap.Error(err))
	}
	return nil
}

func (a *application) viewAction(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.runViewer(ctx, c.String("url"), c.Bool("auto-claim"))
}

// runViewer shows the ad viewer page until it closes itself after the claim.
func (a *application) runViewer(ctx context.Context, launch string, autoClaim bool) error {
	page := a.newPage(ctx, autoClaim)
	defer page.Close()

	viewer := adviewer.NewController(page, page, a.newClient(page), a.logger, a.metrics)
	if a.ticker != nil {
		viewer.SetTicker(a.ticker)
	}
	if err := viewer.Start(page.Context(), launch); err != nil {
		return err
	}
	defer viewer.Stop()

	select {
	case <-viewer.Claimable():
	case <-page.Context().Done():
		return ctx.Err()
	}

	if !autoClaim {
		if err := page.WaitEnter(page.Context(), page.ClaimLabel()+"  (press Enter)"); err != nil {
			return err
		}
	}
	viewer.Claim(page.Context())

	<-page.Context().Done()
	return nil
}
