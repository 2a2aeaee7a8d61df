package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/events"
	"github.com/wricardo/kiosk-shell/kiosk/factory"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
	"github.com/wricardo/kiosk-shell/kiosk/view"
	"github.com/wricardo/kiosk-shell/kiosk/view/viewtest"
)

var screen = view.Rect{X: 0, Y: 0, Width: 1920, Height: 980}

type harness struct {
	o       *Orchestrator
	reg     *registry.Registry
	factory *viewtest.Factory
	events  *events.Recorder

	mu    sync.Mutex
	trace []string
}

func newHarness(t *testing.T, f *viewtest.Factory, cfg Config) *harness {
	t.Helper()
	pages, err := catalog.NewStatic("test", []catalog.Page{
		{ID: "home", URL: "https://home.example/"},
		{ID: "news", URL: "https://news.example/", MaskSelectors: []string{".ad"}},
		{ID: "maps", URL: "https://maps.example/"},
	})
	require.NoError(t, err)

	h := &harness{reg: registry.New(), factory: f, events: &events.Recorder{}}
	h.reg.OnTransition(func(id string, gen uint64, from, to registry.State) {
		h.mu.Lock()
		h.trace = append(h.trace, fmt.Sprintf("%s#%d %s->%s", id, gen, from, to))
		h.mu.Unlock()
	})

	log := zaptest.NewLogger(t)
	h.o = New(cfg, Deps{
		Pages:    pages,
		Registry: h.reg,
		Builder:  factory.NewBuilder(f, h.events, nil, log),
		Placer:   PlacerFunc(func() view.Rect { return screen }),
		Events:   h.events,
		Logger:   log,
	})
	return h
}

func testConfig() Config {
	return Config{
		LoadTimeout:     2 * time.Second,
		SettleDelay:     time.Millisecond,
		TeardownTimeout: 100 * time.Millisecond,
	}
}

func (h *harness) transitions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.trace...)
}

func (h *harness) state(id string) registry.State {
	s, err := h.reg.Get(id)
	if err != nil {
		return registry.Absent
	}
	return s.State()
}

func waitStarted(t *testing.T, g *viewtest.Gate) {
	t.Helper()
	select {
	case <-g.Started():
	case <-time.After(2 * time.Second):
		t.Fatal("load never started")
	}
}

func TestShowCreatesAndActivates(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())

	require.NoError(t, h.o.Show(context.Background(), "home"))

	assert.Equal(t, registry.Active, h.state("home"))
	assert.Equal(t, "home", h.o.Visibility().VisibleID())
	assert.Equal(t, screen, h.factory.Last("home").Bounds())
	assert.Equal(t, []string{"home#1 absent->creating", "home#1 creating->active"}, h.transitions())
	assert.Len(t, h.events.OfType(events.ViewVisible), 1)
}

func TestShowUnknownPage(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	err := h.o.Show(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownPage)
	assert.Equal(t, 0, h.reg.Count())
}

func TestReshowReusesView(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())

	require.NoError(t, h.o.Show(context.Background(), "home"))
	require.NoError(t, h.o.Show(context.Background(), "home"))

	assert.Equal(t, 1, h.factory.Created("home"))
	assert.Equal(t, []string{"https://home.example/", "https://home.example/"}, h.factory.Last("home").Loads())
	assert.Equal(t, registry.Active, h.state("home"))
}

func TestAtMostOneVisible(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())

	for _, id := range []string{"home", "news", "maps", "home"} {
		require.NoError(t, h.o.Show(context.Background(), id))
		assert.Equal(t, 1, h.o.Visibility().VisibleCount())
		assert.Equal(t, id, h.o.Visibility().VisibleID())
	}

	hidden := h.events.OfType(events.ViewHidden)
	require.Len(t, hidden, 3)
	assert.Equal(t, "home", hidden[0].ViewID)
	assert.Equal(t, "news", hidden[1].ViewID)
	assert.Equal(t, "maps", hidden[2].ViewID)
}

func TestAtMostOneVisibleUnderConcurrency(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())

	stop := make(chan struct{})
	var violations atomic.Int32
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				if h.o.Visibility().VisibleCount() > 1 {
					violations.Add(1)
				}
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		id := []string{"home", "news", "maps"}[i%3]
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.o.Show(context.Background(), id)
		}()
	}
	wg.Wait()
	close(stop)

	assert.Equal(t, int32(0), violations.Load())
	assert.LessOrEqual(t, h.o.Visibility().VisibleCount(), 1)
}

func TestDuplicateShowDropped(t *testing.T) {
	gate := viewtest.NewGate()
	f := viewtest.NewFactory()
	f.Load = gate.Load
	h := newHarness(t, f, testConfig())

	done := make(chan error, 1)
	go func() { done <- h.o.Show(context.Background(), "home") }()
	waitStarted(t, gate)

	assert.Equal(t, registry.Creating, h.state("home"))
	assert.NoError(t, h.o.Show(context.Background(), "home"), "duplicate is dropped, not queued")

	gate.Release(nil)
	require.NoError(t, <-done)
	assert.Equal(t, 1, h.factory.Created("home"))
	assert.Equal(t, registry.Active, h.state("home"))
	assert.Len(t, h.factory.Last("home").Loads(), 1)
}

func TestDestroyDuringShowReleasesOnce(t *testing.T) {
	gate := viewtest.NewGate()
	f := viewtest.NewFactory()
	f.Load = gate.Load
	h := newHarness(t, f, testConfig())

	done := make(chan error, 1)
	go func() { done <- h.o.Show(context.Background(), "home") }()
	waitStarted(t, gate)

	require.NoError(t, h.o.Destroy(context.Background(), "home"))

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("show did not return after destroy")
	}

	assert.Equal(t, registry.Absent, h.state("home"))
	assert.Equal(t, 0, h.reg.Count())
	assert.Equal(t, 1, h.factory.Created("home"))
	assert.Equal(t, 1, h.factory.Last("home").CloseCalls())
	assert.Equal(t, []string{
		"home#1 absent->creating",
		"home#1 creating->destroying",
		"home#1 destroying->absent",
	}, h.transitions())
	assert.Empty(t, h.events.OfType(events.LoadFailed), "cancellation is not surfaced")

	// a fresh create after absent
	f.Load = nil
	require.NoError(t, h.o.Show(context.Background(), "home"))
	assert.Equal(t, 2, h.factory.Created("home"))
}

func TestShowRejectedWhileDestroying(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	require.NoError(t, h.o.Show(context.Background(), "home"))

	entered := make(chan struct{})
	cancelled := make(chan struct{})
	hold := make(chan struct{})
	busy := make(chan error, 1)
	go func() {
		busy <- h.o.Do(context.Background(), "home", func(ctx context.Context, v view.View) error {
			close(entered)
			<-ctx.Done()
			close(cancelled)
			<-hold
			return ctx.Err()
		})
	}()
	<-entered

	destroyed := make(chan error, 1)
	go func() { destroyed <- h.o.Destroy(context.Background(), "home") }()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("destroy did not cancel the running operation")
	}
	assert.Equal(t, registry.Destroying, h.state("home"))
	assert.ErrorIs(t, h.o.Show(context.Background(), "home"), ErrDestroying)

	close(hold)
	assert.ErrorIs(t, <-busy, context.Canceled)
	require.NoError(t, <-destroyed)
	assert.Equal(t, registry.Absent, h.state("home"))

	require.NoError(t, h.o.Show(context.Background(), "home"), "fresh create once absent")
	assert.Equal(t, 2, h.factory.Created("home"))
}

func TestCreationTimeout(t *testing.T) {
	gate := viewtest.NewGate()
	f := viewtest.NewFactory()
	f.Load = gate.Load
	cfg := testConfig()
	cfg.LoadTimeout = 50 * time.Millisecond
	h := newHarness(t, f, cfg)

	err := h.o.Show(context.Background(), "home")
	assert.ErrorIs(t, err, ErrCreationTimeout)

	assert.Equal(t, 0, h.reg.Count())
	assert.Equal(t, 1, h.factory.Last("home").CloseCalls())

	failed := h.events.OfType(events.LoadFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, view.CodeTimedOut, failed[0].ErrorCode)
	assert.Equal(t, "home", failed[0].ViewID)
}

func TestLoadFailureOnCreateTearsDown(t *testing.T) {
	f := viewtest.NewFactory()
	f.Load = func(ctx context.Context, url string) error {
		return &view.LoadError{Code: view.CodeNameNotResolved, Description: "ERR_NAME_NOT_RESOLVED"}
	}
	h := newHarness(t, f, testConfig())

	err := h.o.Show(context.Background(), "home")
	var loadErr *view.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, view.CodeNameNotResolved, loadErr.Code)

	assert.Equal(t, 0, h.reg.Count())
	assert.Equal(t, 1, h.factory.Last("home").CloseCalls())
	assert.Len(t, h.events.OfType(events.LoadFailed), 1)
	assert.Empty(t, h.events.OfType(events.ViewVisible))
}

func TestFactoryFailureLeavesNothingBehind(t *testing.T) {
	f := viewtest.NewFactory()
	f.CreateErr = errors.New("out of renderers")
	h := newHarness(t, f, testConfig())

	err := h.o.Show(context.Background(), "home")
	assert.ErrorContains(t, err, "out of renderers")
	assert.Equal(t, 0, h.reg.Count())
	assert.Len(t, h.events.OfType(events.LoadFailed), 1)
}

func TestReshowFailureKeepsActive(t *testing.T) {
	var fail atomic.Bool
	f := viewtest.NewFactory()
	f.Load = func(ctx context.Context, url string) error {
		if fail.Load() {
			return &view.LoadError{Code: view.CodeConnectionRefused, Description: "ERR_CONNECTION_REFUSED"}
		}
		return nil
	}
	h := newHarness(t, f, testConfig())

	require.NoError(t, h.o.Show(context.Background(), "home"))
	fail.Store(true)

	assert.Error(t, h.o.Show(context.Background(), "home"))
	assert.Equal(t, registry.Active, h.state("home"))
	assert.Equal(t, 0, h.factory.Last("home").CloseCalls())
	assert.Len(t, h.events.OfType(events.LoadFailed), 1)
}

func TestHide(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())

	assert.NoError(t, h.o.Hide(context.Background(), "home"), "hide of absent view is a no-op")

	require.NoError(t, h.o.Show(context.Background(), "home"))
	require.NoError(t, h.o.Hide(context.Background(), "home"))

	s, err := h.reg.Get("home")
	require.NoError(t, err)
	assert.Equal(t, registry.Active, s.State())
	assert.True(t, s.Hidden())

	v := h.factory.Last("home")
	assert.True(t, v.Bounds().Empty())
	loads := v.Loads()
	assert.Equal(t, view.SentinelURL, loads[len(loads)-1])
	assert.Len(t, h.events.OfType(events.ViewHidden), 1)
	assert.Equal(t, "", h.o.Visibility().VisibleID())

	require.NoError(t, h.o.Show(context.Background(), "home"))
	assert.False(t, s.Hidden())
	assert.Equal(t, 1, h.factory.Created("home"), "hidden view is reused")
}

func TestDestroyAllBestEffort(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	for _, id := range []string{"home", "news", "maps"} {
		require.NoError(t, h.o.Show(context.Background(), id))
	}
	h.factory.Last("news").FailClose(errors.New("renderer hung"))

	err := h.o.DestroyAll(context.Background())

	var terr *TeardownError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "news", terr.ID)

	assert.Equal(t, 0, h.reg.Count())
	for _, v := range h.factory.Views() {
		assert.Equal(t, 1, v.CloseCalls(), v.Page.ID)
	}
	assert.Equal(t, 0, h.o.Visibility().VisibleCount())
}

func TestDestroyAbsentIsNoop(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	assert.NoError(t, h.o.Destroy(context.Background(), "home"))
	assert.NoError(t, h.o.DestroyAll(context.Background()))
}

func TestStateTraceIsValid(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	ctx := context.Background()

	ops := []string{"show", "hide", "show", "show", "destroy", "hide", "destroy", "show", "hide", "destroy", "show"}
	var wg sync.WaitGroup
	for i, op := range ops {
		op := op
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch op {
			case "show":
				_ = h.o.Show(ctx, "home")
			case "hide":
				_ = h.o.Hide(ctx, "home")
			case "destroy":
				_ = h.o.Destroy(ctx, "home")
			}
		}()
		if i%3 == 2 {
			wg.Wait()
		}
	}
	wg.Wait()

	allowed := map[string]bool{
		"absent->creating":     true,
		"creating->active":     true,
		"creating->destroying": true,
		"active->destroying":   true,
		"destroying->absent":   true,
	}

	last := map[string]string{}
	for _, entry := range h.transitions() {
		var id, edge string
		_, err := fmt.Sscanf(entry, "%s %s", &id, &edge)
		require.NoError(t, err)
		assert.True(t, allowed[edge], "unexpected edge %s", entry)

		var from, to string
		for i := 0; i < len(edge)-1; i++ {
			if edge[i] == '-' && edge[i+1] == '>' {
				from, to = edge[:i], edge[i+2:]
			}
		}
		if prev, ok := last[id]; ok {
			assert.Equal(t, prev, from, "trace of %s breaks at %s", id, entry)
		} else {
			assert.Equal(t, "absent", from)
		}
		last[id] = to
	}

	for _, v := range h.factory.Views() {
		assert.LessOrEqual(t, v.CloseCalls(), 1)
	}
}

func TestDo(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	ctx := context.Background()

	err := h.o.Do(ctx, "home", func(ctx context.Context, v view.View) error { return nil })
	assert.ErrorIs(t, err, registry.ErrSessionNotFound)

	require.NoError(t, h.o.Show(ctx, "home"))
	var got view.View
	require.NoError(t, h.o.Do(ctx, "home", func(ctx context.Context, v view.View) error {
		got = v
		return nil
	}))
	assert.Same(t, h.factory.Last("home"), got)
}

func TestPopupRedirectIsSerialized(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	require.NoError(t, h.o.Show(context.Background(), "home"))

	v := h.factory.Last("home")
	v.Popup("https://home.example/child")

	assert.Eventually(t, func() bool {
		loads := v.Loads()
		return loads[len(loads)-1] == "https://home.example/child"
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, h.factory.Views(), 1)
}

func TestPopupDuringCreationLoadsAfterShow(t *testing.T) {
	gate := viewtest.NewGate()
	f := viewtest.NewFactory()
	f.Load = gate.Load
	h := newHarness(t, f, testConfig())

	done := make(chan error, 1)
	go func() { done <- h.o.Show(context.Background(), "home") }()
	waitStarted(t, gate)
	require.Equal(t, registry.Creating, h.state("home"))

	v := h.factory.Last("home")
	v.Popup("https://home.example/child")

	gate.Release(nil)
	require.NoError(t, <-done)
	assert.Equal(t, registry.Active, h.state("home"))

	// the queued redirect now loads behind the finished show
	waitStarted(t, gate)
	gate.Release(nil)
	assert.Eventually(t, func() bool {
		url, err := v.URL()
		return err == nil && url == "https://home.example/child"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"https://home.example/", "https://home.example/child"}, v.Loads())
	assert.Len(t, h.factory.Views(), 1)
}

func TestPopupDroppedWhenViewDestroyed(t *testing.T) {
	gate := viewtest.NewGate()
	f := viewtest.NewFactory()
	f.Load = gate.Load
	h := newHarness(t, f, testConfig())

	done := make(chan error, 1)
	go func() { done <- h.o.Show(context.Background(), "home") }()
	waitStarted(t, gate)

	v := h.factory.Last("home")
	v.Popup("https://home.example/child")
	require.NoError(t, h.o.Destroy(context.Background(), "home"))
	assert.Error(t, <-done)

	assert.Never(t, func() bool {
		for _, url := range v.Loads() {
			if url == "https://home.example/child" {
				return true
			}
		}
		return false
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, registry.Absent, h.state("home"))
}

func TestSweepRemovesOrphans(t *testing.T) {
	h := newHarness(t, viewtest.NewFactory(), testConfig())
	require.NoError(t, h.o.Show(context.Background(), "home"))
	require.NoError(t, h.o.Show(context.Background(), "news"))

	h.factory.Last("home").MarkClosed()

	assert.Equal(t, 1, h.o.Sweep(context.Background()))
	assert.Equal(t, registry.Absent, h.state("home"))
	assert.Equal(t, registry.Active, h.state("news"))
	assert.Equal(t, 0, h.o.Sweep(context.Background()))
}
