// Package viewtest provides a scriptable in-memory view.View for tests.
package viewtest

import (
	"context"
	"errors"
	"sync"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

// LoadFunc decides the outcome of a navigation. Returning nil commits url.
type LoadFunc func(ctx context.Context, url string) error

// View is a fake native view.
type View struct {
	Page catalog.Page

	mu         sync.Mutex
	obs        view.Observer
	history    *view.History
	bounds     view.Rect
	url        string
	loading    bool
	closed     bool
	closeCalls int
	stopCalls  int
	loads      []string
	css        []string
	scripts    []string
	boundsLog  []view.Rect

	load         LoadFunc
	closeErr     error
	cssErr       error
	unqueryable  int
	neverQueries bool
}

// NewView returns a fake view for page. A nil load commits every navigation.
func NewView(page catalog.Page, obs view.Observer, load LoadFunc) *View {
	return &View{
		Page:    page,
		obs:     obs,
		history: view.NewHistory(),
		load:    load,
	}
}

func (v *View) Load(ctx context.Context, url string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return view.ErrClosed
	}
	v.loading = true
	v.loads = append(v.loads, url)
	load := v.load
	obs := v.obs
	v.mu.Unlock()

	if obs != nil {
		obs.OnStartLoading()
	}

	var err error
	if load != nil {
		err = load(ctx, url)
	}
	if err == nil {
		err = ctx.Err()
	}

	v.mu.Lock()
	v.loading = false
	closed := v.closed
	if err == nil && !closed {
		v.url = url
		v.history.Push(url)
	}
	v.mu.Unlock()

	if closed {
		return view.ErrClosed
	}

	var loadErr *view.LoadError
	switch {
	case err == nil:
		if obs != nil {
			obs.OnNavigate(url, false)
			obs.OnFinishLoad()
		}
	case errors.As(err, &loadErr):
		if obs != nil {
			obs.OnFailLoad(loadErr.Code, loadErr.Description)
		}
	}
	return err
}

// NavigateInPage simulates a same-document navigation.
func (v *View) NavigateInPage(url string) {
	v.mu.Lock()
	v.url = url
	v.history.Push(url)
	obs := v.obs
	v.mu.Unlock()
	if obs != nil {
		obs.OnNavigate(url, true)
	}
}

// Popup simulates the page requesting a child window.
func (v *View) Popup(url string) {
	v.mu.Lock()
	obs := v.obs
	v.mu.Unlock()
	if obs != nil {
		obs.OnPopup(url)
	}
}

func (v *View) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopCalls++
	v.loading = false
}

func (v *View) IsLoading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loading
}

func (v *View) URL() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return "", view.ErrClosed
	}
	if v.neverQueries {
		return "", view.ErrNotQueryable
	}
	if v.unqueryable > 0 {
		v.unqueryable--
		return "", view.ErrNotQueryable
	}
	return v.url, nil
}

func (v *View) GoBack(ctx context.Context) error {
	return v.traverse(v.history.Back)
}

func (v *View) GoForward(ctx context.Context) error {
	return v.traverse(v.history.Forward)
}

func (v *View) traverse(step func() (string, bool)) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return view.ErrClosed
	}
	url, ok := step()
	if ok {
		v.url = url
	}
	obs := v.obs
	v.mu.Unlock()

	if ok && obs != nil {
		obs.OnNavigate(url, false)
	}
	return nil
}

func (v *View) History() *view.History {
	return v.history
}

func (v *View) SetBounds(r view.Rect) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.bounds = r
	v.boundsLog = append(v.boundsLog, r)
	return nil
}

func (v *View) Bounds() view.Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.bounds
}

func (v *View) InsertCSS(ctx context.Context, css string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return view.ErrClosed
	}
	if v.cssErr != nil {
		return v.cssErr
	}
	v.css = append(v.css, css)
	return nil
}

func (v *View) ExecuteScript(ctx context.Context, script string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return view.ErrClosed
	}
	v.scripts = append(v.scripts, script)
	return nil
}

func (v *View) Close(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeCalls++
	v.closed = true
	v.loading = false
	return v.closeErr
}

func (v *View) Closed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// MarkClosed simulates the native resource going away on its own.
func (v *View) MarkClosed() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
}

// FailClose makes Close report err while still releasing the view.
func (v *View) FailClose(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeErr = err
}

// FailCSS makes InsertCSS fail with err.
func (v *View) FailCSS(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cssErr = err
}

// Unqueryable makes the next n URL queries fail with view.ErrNotQueryable.
func (v *View) Unqueryable(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unqueryable = n
}

// NeverQueryable makes every URL query fail with view.ErrNotQueryable.
func (v *View) NeverQueryable() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.neverQueries = true
}

func (v *View) CloseCalls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closeCalls
}

func (v *View) StopCalls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stopCalls
}

func (v *View) Loads() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.loads...)
}

func (v *View) CSS() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.css...)
}

func (v *View) Scripts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.scripts...)
}

// BoundsLog returns every rectangle ever assigned to the view.
func (v *View) BoundsLog() []view.Rect {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]view.Rect(nil), v.boundsLog...)
}
