package browser

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

// Options configure the native browser.
type Options struct {
	Headless    bool
	UserDataDir string
	Channel     string
	// Install downloads the Chromium build before starting.
	Install bool
	Host    view.Size
	Args    []string
}

// Launcher owns one persistent Chromium context. Every view is a page in
// that context, so cookies and storage are shared across catalog pages.
type Launcher struct {
	pw   *playwright.Playwright
	bctx playwright.BrowserContext
	host view.Size
	log  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// Launch starts Playwright and opens the persistent context.
func Launch(opts Options, log *zap.Logger) (*Launcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("browser")

	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if opts.Install {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	if opts.UserDataDir != "" {
		if err := os.MkdirAll(opts.UserDataDir, 0755); err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("failed to create user data dir: %w", err)
		}
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(opts.UserDataDir, launchOptions(opts))
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	log.Info("browser launched",
		zap.Bool("headless", opts.Headless),
		zap.String("user_data_dir", opts.UserDataDir),
		zap.Int("width", opts.Host.Width),
		zap.Int("height", opts.Host.Height))

	return &Launcher{pw: pw, bctx: bctx, host: opts.Host, log: log}, nil
}

func launchOptions(opts Options) playwright.BrowserTypeLaunchPersistentContextOptions {
	lo := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.Args,
	}
	if opts.Host.Width > 0 && opts.Host.Height > 0 {
		lo.Viewport = &playwright.Size{Width: opts.Host.Width, Height: opts.Host.Height}
	}
	if opts.Channel != "" {
		lo.Channel = playwright.String(opts.Channel)
	}
	if !opts.Headless && len(opts.Args) == 0 {
		lo.Args = []string{"--kiosk", "--disable-pinch", "--overscroll-history-navigation=0"}
	}
	return lo
}

// Create opens a page for the catalog entry. The page is not navigated; the
// caller loads the first URL.
func (l *Launcher) Create(ctx context.Context, page catalog.Page, obs view.Observer) (view.View, error) {
	type result struct {
		p   playwright.Page
		err error
	}
	ch := make(chan result, 1)
	go func() {
		p, err := l.bctx.NewPage()
		ch <- result{p, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("failed to open page: %w", r.err)
		}
		return newPageView(r.p, obs, l.log.With(zap.String("view", page.ID))), nil
	case <-ctx.Done():
		// the page may still arrive; release it
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.p.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// Size implements view.Host.
func (l *Launcher) Size() view.Size {
	return l.host
}

// Close shuts the context and the Playwright driver down.
func (l *Launcher) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = multierr.Append(l.bctx.Close(), l.pw.Stop())
		l.log.Info("browser closed", zap.Error(l.closeErr))
	})
	return l.closeErr
}
