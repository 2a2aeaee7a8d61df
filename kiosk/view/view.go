package view

import (
	"context"

	"github.com/wricardo/kiosk-shell/catalog"
)

// SentinelURL is the neutral placeholder a view is sent to when it is hidden
// without being destroyed.
const SentinelURL = "about:blank"

// IsSentinel reports whether url is the neutral placeholder or empty.
func IsSentinel(url string) bool {
	return url == "" || url == SentinelURL
}

// Size is the host window size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect is a view's on-screen placement.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Hidden is the zero-area rectangle assigned to every view that is not visible.
var Hidden = Rect{}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// View is one embedded browser instance. Implementations wrap the native
// resource; every method must be safe to call after Close and must then fail
// with ErrClosed (or no-op for Stop and SetBounds).
type View interface {
	// Load navigates the primary frame and blocks until the document finished
	// loading, failed (*LoadError) or ctx ended.
	Load(ctx context.Context, url string) error

	// Stop halts any in-flight load.
	Stop()

	// IsLoading reports whether a navigation is in flight.
	IsLoading() bool

	// URL returns the committed URL. It fails with ErrNotQueryable while the
	// native resource is mid-transition.
	URL() (string, error)

	GoBack(ctx context.Context) error
	GoForward(ctx context.Context) error

	// History is the view's navigation history.
	History() *History

	SetBounds(r Rect) error
	Bounds() Rect

	// InsertCSS adds a stylesheet to the current document.
	InsertCSS(ctx context.Context, css string) error

	// ExecuteScript evaluates script in the current document.
	ExecuteScript(ctx context.Context, script string) error

	// Close releases the native resource and returns once destruction is
	// confirmed or ctx ends.
	Close(ctx context.Context) error

	Closed() bool
}

// Observer receives the native resource's navigation lifecycle callbacks.
// Callbacks may arrive on any goroutine and must not block.
type Observer interface {
	OnNavigate(url string, inPage bool)
	OnStartLoading()
	OnFinishLoad()
	OnFailLoad(code int, description string)

	// OnPopup is called instead of opening a child window; the native
	// resource never creates one.
	OnPopup(url string)
}

// Factory constructs native views bound to a catalog page.
type Factory interface {
	Create(ctx context.Context, page catalog.Page, obs Observer) (View, error)
}

// Host reports the host window geometry.
type Host interface {
	Size() Size
}

// StaticHost is a Host with a fixed size.
type StaticHost Size

// Size implements Host.
func (h StaticHost) Size() Size {
	return Size(h)
}
