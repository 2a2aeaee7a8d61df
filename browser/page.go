package browser

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/kiosk/view"
)

const popupSettle = 5 * time.Second

// pageView adapts a Playwright page to view.View. Playwright does not expose
// the tab's session history, so the view keeps its own.
type pageView struct {
	page    playwright.Page
	obs     view.Observer
	history *view.History
	log     *zap.Logger

	mu      sync.Mutex
	bounds  view.Rect
	loading bool
	closed  bool
	driving int
	lastURL string
}

func newPageView(p playwright.Page, obs view.Observer, log *zap.Logger) *pageView {
	v := &pageView{
		page:    p,
		obs:     obs,
		history: view.NewHistory(),
		log:     log,
	}

	p.OnFrameNavigated(func(f playwright.Frame) {
		if f == p.MainFrame() {
			v.onNavigated(f.URL())
		}
	})
	p.OnRequest(func(r playwright.Request) {
		if r.IsNavigationRequest() && r.Frame() == p.MainFrame() {
			v.onStart()
		}
	})
	p.OnLoad(func(playwright.Page) { v.onLoad() })
	p.OnRequestFailed(func(r playwright.Request) {
		if r.IsNavigationRequest() && r.Frame() == p.MainFrame() {
			v.onFailed(r.Failure())
		}
	})
	p.OnPopup(func(child playwright.Page) { go v.interceptPopup(child) })
	p.OnClose(func(playwright.Page) {
		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
	})
	return v
}

// passive reports whether a page-initiated event should be forwarded; events
// raised while Load or a traversal is driving the page are reported by them.
func (v *pageView) passive() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.driving == 0 && !v.closed
}

func (v *pageView) onNavigated(url string) {
	v.mu.Lock()
	if v.driving > 0 || v.closed {
		v.mu.Unlock()
		return
	}
	inPage := sameDocument(v.lastURL, url)
	v.lastURL = url
	v.mu.Unlock()

	v.history.Push(url)
	if v.obs != nil {
		v.obs.OnNavigate(url, inPage)
	}
}

func (v *pageView) onStart() {
	if !v.passive() {
		return
	}
	v.setLoading(true)
	if v.obs != nil {
		v.obs.OnStartLoading()
	}
}

func (v *pageView) onLoad() {
	if !v.passive() {
		return
	}
	v.setLoading(false)
	if v.obs != nil {
		v.obs.OnFinishLoad()
	}
}

func (v *pageView) onFailed(err error) {
	if err == nil || !v.passive() {
		return
	}
	v.setLoading(false)
	le := view.ParseNetError(err.Error())
	if v.obs != nil {
		v.obs.OnFailLoad(le.Code, le.Description)
	}
}

// interceptPopup closes a child window and hands its target URL to the
// observer so it can be loaded in place.
func (v *pageView) interceptPopup(child playwright.Page) {
	url := child.URL()
	if view.IsSentinel(url) {
		_ = child.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateDomcontentloaded,
			Timeout: playwright.Float(float64(popupSettle.Milliseconds())),
		})
		url = child.URL()
	}
	if err := child.Close(); err != nil {
		v.log.Warn("failed to close popup", zap.Error(err))
	}
	if view.IsSentinel(url) || v.obs == nil {
		return
	}
	v.obs.OnPopup(url)
}

func (v *pageView) setLoading(loading bool) {
	v.mu.Lock()
	v.loading = loading
	v.mu.Unlock()
}

func (v *pageView) begin() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	v.driving++
	v.loading = true
	return true
}

func (v *pageView) end(url string) {
	v.mu.Lock()
	v.driving--
	v.loading = false
	if url != "" {
		v.lastURL = url
	}
	v.mu.Unlock()
}

func (v *pageView) Load(ctx context.Context, url string) error {
	return v.navigate(ctx, url, true)
}

// navigate drives the page to url. push is false for history traversal,
// where the cursor has already moved.
func (v *pageView) navigate(ctx context.Context, url string, push bool) error {
	if !v.begin() {
		return view.ErrClosed
	}
	committed := ""
	defer func() { v.end(committed) }()

	if v.obs != nil {
		v.obs.OnStartLoading()
	}

	err := v.gotoURL(ctx, url)
	if v.Closed() {
		return view.ErrClosed
	}
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		le := translateGotoError(err)
		if v.obs != nil {
			v.obs.OnFailLoad(le.Code, le.Description)
		}
		return le
	}

	committed = v.page.URL()
	if push {
		v.history.Push(committed)
	}
	if v.obs != nil {
		v.obs.OnNavigate(committed, false)
		v.obs.OnFinishLoad()
	}
	return nil
}

func (v *pageView) gotoURL(ctx context.Context, url string) error {
	opts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(gotoTimeout(ctx)),
	}
	err := run(ctx, func() error {
		_, err := v.page.Goto(url, opts)
		return err
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		v.Stop()
	}
	return err
}

func (v *pageView) Stop() {
	if v.Closed() {
		return
	}
	if _, err := v.page.Evaluate("window.stop()"); err != nil {
		v.log.Debug("stop failed", zap.Error(err))
	}
}

func (v *pageView) IsLoading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

func (v *pageView) URL() (string, error) {
	if v.Closed() {
		return "", view.ErrClosed
	}
	url := v.page.URL()
	if url == "" {
		return "", view.ErrNotQueryable
	}
	return url, nil
}

func (v *pageView) GoBack(ctx context.Context) error {
	return v.traverse(ctx, v.history.Back)
}

func (v *pageView) GoForward(ctx context.Context) error {
	return v.traverse(ctx, v.history.Forward)
}

func (v *pageView) traverse(ctx context.Context, step func() (string, bool)) error {
	if v.Closed() {
		return view.ErrClosed
	}
	url, ok := step()
	if !ok {
		return nil
	}
	return v.navigate(ctx, url, false)
}

func (v *pageView) History() *view.History {
	return v.history
}

// SetBounds sizes the page and brings it to the front. A hidden rectangle is
// only recorded; the page stays behind whichever view comes forward next.
func (v *pageView) SetBounds(r view.Rect) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.bounds = r
	v.mu.Unlock()

	if r.Empty() {
		return nil
	}
	if err := v.page.SetViewportSize(r.Width, r.Height); err != nil {
		return err
	}
	return v.page.BringToFront()
}

func (v *pageView) Bounds() view.Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds
}

func (v *pageView) InsertCSS(ctx context.Context, css string) error {
	if v.Closed() {
		return view.ErrClosed
	}
	return run(ctx, func() error {
		_, err := v.page.AddStyleTag(playwright.PageAddStyleTagOptions{Content: playwright.String(css)})
		return err
	})
}

func (v *pageView) ExecuteScript(ctx context.Context, script string) error {
	if v.Closed() {
		return view.ErrClosed
	}
	return run(ctx, func() error {
		_, err := v.page.Evaluate(script)
		return err
	})
}

func (v *pageView) Close(ctx context.Context) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.bounds = view.Hidden
	v.mu.Unlock()

	return run(ctx, func() error { return v.page.Close() })
}

func (v *pageView) Closed() bool {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	return closed || v.page.IsClosed()
}

// run calls fn and returns when it finishes or ctx ends, whichever is first.
func run(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// gotoGrace keeps Playwright's own timeout behind the ctx deadline, so an
// expired load is reported as the context's error.
const gotoGrace = 2 * time.Second

// gotoTimeout converts the ctx deadline plus gotoGrace to Playwright
// milliseconds. Zero disables Playwright's own timeout.
func gotoTimeout(ctx context.Context) float64 {
	dl, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	left := time.Until(dl)
	if left < 0 {
		left = 0
	}
	return float64((left + gotoGrace).Milliseconds())
}

func translateGotoError(err error) *view.LoadError {
	if errors.Is(err, playwright.ErrTimeout) {
		return &view.LoadError{Code: view.CodeTimedOut, Description: "ERR_TIMED_OUT"}
	}
	return view.ParseNetError(err.Error())
}

// sameDocument reports whether next differs from prev only by fragment.
func sameDocument(prev, next string) bool {
	if prev == "" || next == "" || prev == next {
		return false
	}
	return stripFragment(prev) == stripFragment(next)
}

func stripFragment(url string) string {
	if i := strings.IndexByte(url, '#'); i >= 0 {
		return url[:i]
	}
	return url
}
