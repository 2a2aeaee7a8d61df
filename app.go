package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/browser"
	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/config"
	"github.com/wricardo/kiosk-shell/kiosk/events"
	"github.com/wricardo/kiosk-shell/kiosk/factory"
	"github.com/wricardo/kiosk-shell/kiosk/idle"
	"github.com/wricardo/kiosk-shell/kiosk/lifecycle"
	"github.com/wricardo/kiosk-shell/kiosk/navigation"
	"github.com/wricardo/kiosk-shell/kiosk/record"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
	"github.com/wricardo/kiosk-shell/kiosk/retry"
	"github.com/wricardo/kiosk-shell/kiosk/service"
	"github.com/wricardo/kiosk-shell/kiosk/view"
	"github.com/wricardo/kiosk-shell/monitoring"
	"github.com/wricardo/kiosk-shell/transport/websocket"
)

// app holds the wired kiosk.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	metrics  *monitoring.Metrics
	hub      *websocket.Hub
	orch     *lifecycle.Orchestrator
	idle     *idle.Supervisor
	svc      service.KioskService
	launcher *browser.Launcher

	// quit is closed once the service has torn everything down
	quit     chan struct{}
	quitOnce sync.Once
}

// buildApp launches the browser and wires the kiosk around it.
func buildApp(cfg *config.Config, log *zap.Logger) (*app, error) {
	launcher, err := browser.Launch(browser.Options{
		Headless:    cfg.Browser.Headless,
		UserDataDir: cfg.Browser.UserDataDir,
		Channel:     cfg.Browser.Channel,
		Install:     cfg.Browser.Install,
		Host:        view.Size{Width: cfg.Kiosk.HostWidth, Height: cfg.Kiosk.HostHeight},
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	a, err := newApp(cfg, launcher, launcher, log)
	if err != nil {
		launcher.Close()
		return nil, err
	}
	a.launcher = launcher
	return a, nil
}

// newApp wires every kiosk component around a view factory.
func newApp(cfg *config.Config, f view.Factory, host view.Host, log *zap.Logger) (*app, error) {
	pages, err := catalog.NewManager(cfg.Kiosk.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	store, err := record.NewFileStore(cfg.Kiosk.RecordPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open kiosk record: %w", err)
	}

	metrics := monitoring.NewMetrics()
	hub := websocket.NewHub(metrics, log)
	bus := events.NewBus(hub)

	reg := registry.New()
	orch := lifecycle.New(lifecycle.Config{
		LoadTimeout:     cfg.Kiosk.LoadTimeout,
		SettleDelay:     cfg.Kiosk.SettleDelay,
		TeardownTimeout: cfg.Kiosk.TeardownTimeout,
	}, lifecycle.Deps{
		Pages:    pages,
		Registry: reg,
		Builder:  factory.NewBuilder(f, bus, navigation.NewMasker(cfg.Kiosk.MaskDelay, log), log),
		Placer:   record.NewModePlacer(store, host, log),
		Events:   bus,
		Metrics:  metrics,
		Logger:   log,
	})

	sup := idle.New(orch, idle.Options{
		Timeout: cfg.Kiosk.IdleTimeout,
		Events:  bus,
		Metrics: metrics,
		Logger:  log,
	})

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		hub:     hub,
		orch:    orch,
		idle:    sup,
		quit:    make(chan struct{}),
	}

	a.svc = service.NewKioskService(service.Deps{
		Lifecycle: orch,
		Navigator: navigation.NewBridge(orch, reg, retry.Policy{
			Attempts: cfg.Kiosk.URLRetryAttempts,
			Delay:    cfg.Kiosk.URLRetryDelay,
		}, log),
		Idle:   sup,
		Pages:  pages,
		Record: store,
		OnQuit: func() { a.quitOnce.Do(func() { close(a.quit) }) },
	}, log)

	hub.OnActivity(func(kind string) error {
		return a.svc.RecordActivity(context.Background(), kind)
	})

	log.Info("kiosk wired",
		zap.String("catalog", pages.Source()),
		zap.Int("pages", len(pages.Pages())),
		zap.Duration("idle_timeout", cfg.Kiosk.IdleTimeout))
	return a, nil
}

// start runs the background loops until ctx is cancelled.
func (a *app) start(ctx context.Context) {
	go a.hub.Run(ctx)
	go a.sweepLoop(ctx)
}

// sweepLoop prunes views whose page closed underneath the kiosk.
func (a *app) sweepLoop(ctx context.Context) {
	if a.cfg.Kiosk.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.Kiosk.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.orch.Sweep(ctx); removed > 0 {
				a.log.Info("pruned orphaned views", zap.Int("count", removed))
			}
		}
	}
}

func (a *app) close() error {
	if a.launcher == nil {
		return nil
	}
	return a.launcher.Close()
}
