package viewtest

import (
	"context"
	"sync"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

// Factory records every view it creates. Load, when set, scripts the
// navigation outcome of every created view.
type Factory struct {
	Load      LoadFunc
	CreateErr error

	// OnCreate runs after a view is constructed and before it is returned.
	OnCreate func(v *View)

	mu    sync.Mutex
	views []*View
}

// NewFactory returns a factory whose views commit every navigation.
func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(ctx context.Context, page catalog.Page, obs view.Observer) (view.View, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := NewView(page, obs, f.Load)
	f.mu.Lock()
	f.views = append(f.views, v)
	f.mu.Unlock()

	if f.OnCreate != nil {
		f.OnCreate(v)
	}
	return v, nil
}

// Views returns all views created so far, in creation order.
func (f *Factory) Views() []*View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*View(nil), f.views...)
}

// Created counts views created for page id.
func (f *Factory) Created(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, v := range f.views {
		if v.Page.ID == id {
			n++
		}
	}
	return n
}

// Last returns the most recent view created for page id.
func (f *Factory) Last(id string) *View {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.views) - 1; i >= 0; i-- {
		if f.views[i].Page.ID == id {
			return f.views[i]
		}
	}
	return nil
}

// Gate blocks loads of non-sentinel URLs until released. It lets tests hold a
// show in flight while issuing other operations.
type Gate struct {
	started chan string
	release chan error
}

// NewGate returns a closed-by-default gate.
func NewGate() *Gate {
	return &Gate{
		started: make(chan string, 16),
		release: make(chan error, 16),
	}
}

// Load implements LoadFunc.
func (g *Gate) Load(ctx context.Context, url string) error {
	if view.IsSentinel(url) {
		return nil
	}
	select {
	case g.started <- url:
	default:
	}
	select {
	case err := <-g.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Started returns a channel that receives the URL of each blocked load.
func (g *Gate) Started() <-chan string {
	return g.started
}

// Release lets one blocked load finish with err.
func (g *Gate) Release(err error) {
	g.release <- err
}
