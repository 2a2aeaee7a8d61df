package navigation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/factory"
	"github.com/wricardo/kiosk-shell/kiosk/lifecycle"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
	"github.com/wricardo/kiosk-shell/kiosk/retry"
	"github.com/wricardo/kiosk-shell/kiosk/view"
	"github.com/wricardo/kiosk-shell/kiosk/view/viewtest"
)

type fixture struct {
	bridge  *Bridge
	o       *lifecycle.Orchestrator
	factory *viewtest.Factory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	pages, err := catalog.NewStatic("test", []catalog.Page{
		{ID: "home", URL: "https://home.example/"},
	})
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	f := viewtest.NewFactory()
	reg := registry.New()
	o := lifecycle.New(lifecycle.Config{LoadTimeout: time.Second, TeardownTimeout: time.Second}, lifecycle.Deps{
		Pages:    pages,
		Registry: reg,
		Builder:  factory.NewBuilder(f, nil, nil, log),
		Placer:   lifecycle.PlacerFunc(func() view.Rect { return view.Rect{Width: 800, Height: 600} }),
		Logger:   log,
	})

	return &fixture{
		bridge:  NewBridge(o, reg, retry.Policy{Attempts: 10, Delay: time.Millisecond}, log),
		o:       o,
		factory: f,
	}
}

func (fx *fixture) show(t *testing.T) *viewtest.View {
	t.Helper()
	require.NoError(t, fx.o.Show(context.Background(), "home"))
	return fx.factory.Last("home")
}

func (fx *fixture) load(t *testing.T, url string) {
	t.Helper()
	require.NoError(t, fx.o.Do(context.Background(), "home", func(ctx context.Context, v view.View) error {
		return v.Load(ctx, url)
	}))
}

func TestCanGoBack(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)

	assert.False(t, fx.bridge.CanGoBack(ctx, "home"), "absent view")

	fx.show(t)
	assert.False(t, fx.bridge.CanGoBack(ctx, "home"), "single entry")

	fx.load(t, "https://home.example/a")
	assert.True(t, fx.bridge.CanGoBack(ctx, "home"))

	require.NoError(t, fx.bridge.LoadURL(ctx, "home", "https://home.example/b"))
	assert.False(t, fx.bridge.CanGoBack(ctx, "home"), "history cleared by LoadURL")

	fx.load(t, "https://home.example/c")
	assert.True(t, fx.bridge.CanGoBack(ctx, "home"))
}

func TestCanGoBackSkipsSentinel(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	fx.show(t)

	fx.load(t, view.SentinelURL)
	fx.load(t, "https://home.example/next")
	assert.False(t, fx.bridge.CanGoBack(ctx, "home"))
}

func TestControl(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t)
	v := fx.show(t)
	fx.load(t, "https://home.example/a")

	require.NoError(t, fx.bridge.Control(ctx, "home", Back))
	u, ok := fx.bridge.CurrentURL(ctx, "home")
	require.True(t, ok)
	assert.Equal(t, "https://home.example/", u)

	require.NoError(t, fx.bridge.Control(ctx, "home", Back), "boundary is a no-op")
	assert.Equal(t, 0, v.History().ActiveIndex())

	require.NoError(t, fx.bridge.Control(ctx, "home", Forward))
	u, _ = fx.bridge.CurrentURL(ctx, "home")
	assert.Equal(t, "https://home.example/a", u)

	require.NoError(t, fx.bridge.Control(ctx, "home", Forward))
	assert.ErrorIs(t, fx.bridge.Control(ctx, "home", Action("reload")), ErrInvalidAction)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Back ")
	require.NoError(t, err)
	assert.Equal(t, Back, a)

	_, err = ParseAction("sideways")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestLoadURLValidation(t *testing.T) {
	fx := newFixture(t)
	fx.show(t)

	assert.ErrorIs(t, fx.bridge.LoadURL(context.Background(), "home", "not a url"), ErrInvalidURL)
	assert.ErrorIs(t, fx.bridge.LoadURL(context.Background(), "home", "file:///etc/passwd"), ErrInvalidURL)
	assert.ErrorIs(t, fx.bridge.LoadURL(context.Background(), "missing", "https://x.example/"), registry.ErrSessionNotFound)
}

func TestCurrentURLRetries(t *testing.T) {
	fx := newFixture(t)
	v := fx.show(t)
	v.Unqueryable(3)

	u, ok := fx.bridge.CurrentURL(context.Background(), "home")
	assert.True(t, ok)
	assert.Equal(t, "https://home.example/", u)
}

func TestCurrentURLSoftFailure(t *testing.T) {
	fx := newFixture(t)

	start := time.Now()
	u, ok := fx.bridge.CurrentURL(context.Background(), "missing")
	assert.False(t, ok)
	assert.Equal(t, "", u)
	assert.GreaterOrEqual(t, time.Since(start), 9*time.Millisecond, "all attempts are spent")

	v := fx.show(t)
	v.NeverQueryable()
	_, ok = fx.bridge.CurrentURL(context.Background(), "home")
	assert.False(t, ok)
}

func TestRemoveElements(t *testing.T) {
	fx := newFixture(t)
	v := fx.show(t)

	require.NoError(t, fx.bridge.RemoveElements(context.Background(), "home", `div[data-x="1"]`))
	scripts := v.Scripts()
	require.Len(t, scripts, 1)
	assert.Contains(t, scripts[0], `document.querySelectorAll("div[data-x=\"1\"]")`)

	assert.ErrorIs(t, fx.bridge.RemoveElements(context.Background(), "home", "  "), ErrInvalidSelector)
}

func TestMaskerApply(t *testing.T) {
	page := catalog.Page{ID: "news", MaskSelectors: []string{".ad", "#promo"}}
	m := NewMasker(time.Millisecond, zaptest.NewLogger(t))
	ctx := context.Background()

	v := viewtest.NewView(page, nil, nil)
	require.NoError(t, v.Load(ctx, "https://news.example/"))
	require.NoError(t, m.Apply(ctx, v, page))
	assert.Equal(t, []string{".ad { display: none !important; }\n#promo { display: none !important; }"}, v.CSS())

	require.NoError(t, m.Apply(ctx, v, catalog.Page{ID: "plain"}), "no selectors, nothing to do")
	assert.Len(t, v.CSS(), 1)

	blank := viewtest.NewView(page, nil, nil)
	require.NoError(t, blank.Load(ctx, view.SentinelURL))
	require.NoError(t, m.Apply(ctx, blank, page))
	assert.Empty(t, blank.CSS(), "sentinel documents are not masked")

	failing := viewtest.NewView(page, nil, nil)
	require.NoError(t, failing.Load(ctx, "https://news.example/"))
	failing.FailCSS(errors.New("document gone"))
	assert.Error(t, m.Apply(ctx, failing, page))

	closed := viewtest.NewView(page, nil, nil)
	closed.MarkClosed()
	assert.ErrorIs(t, m.Apply(ctx, closed, page), view.ErrClosed)

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, NewMasker(time.Hour, nil).Apply(cctx, v, page), context.Canceled)
}

func TestMaskerSchedule(t *testing.T) {
	page := catalog.Page{ID: "news", MaskSelectors: []string{".ad"}}
	v := viewtest.NewView(page, nil, nil)
	require.NoError(t, v.Load(context.Background(), "https://news.example/"))

	NewMasker(time.Millisecond, zaptest.NewLogger(t)).Schedule(context.Background(), "news", v, page)
	assert.Eventually(t, func() bool { return len(v.CSS()) == 1 }, time.Second, 2*time.Millisecond)
}
