// Package factory builds native views for catalog pages and binds their
// navigation callbacks to the kiosk's outward events.
package factory

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/events"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

// MaskScheduler applies a page's mask rules to a view after it settles.
type MaskScheduler interface {
	Schedule(ctx context.Context, viewID string, v view.View, page catalog.Page)
}

// Redirector loads url into the primary navigation of view id.
type Redirector func(ctx context.Context, id, url string) error

// Builder constructs views through a view.Factory.
type Builder struct {
	factory  view.Factory
	emit     events.Emitter
	mask     MaskScheduler
	redirect Redirector
	log      *zap.Logger
}

// NewBuilder returns a builder. mask may be nil to disable masking.
func NewBuilder(f view.Factory, emit events.Emitter, mask MaskScheduler, log *zap.Logger) *Builder {
	if emit == nil {
		emit = events.Discard
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{factory: f, emit: emit, mask: mask, log: log}
}

// SetRedirector routes pop-up navigations through r instead of loading them
// straight into the view.
func (b *Builder) SetRedirector(r Redirector) {
	b.redirect = r
}

// Build creates a view for page. The returned binding must be detached when
// the view is torn down.
func (b *Builder) Build(ctx context.Context, page catalog.Page) (view.View, *Binding, error) {
	bindCtx, cancel := context.WithCancel(context.Background())
	bind := &Binding{
		id:       page.ID,
		page:     page,
		emit:     b.emit,
		mask:     b.mask,
		redirect: b.redirect,
		log:      b.log.With(zap.String("view", page.ID)),
		ctx:      bindCtx,
		cancel:   cancel,
	}

	v, err := b.factory.Create(ctx, page, bind)
	if err != nil {
		bind.Detach()
		return nil, nil, fmt.Errorf("failed to create view %s: %w", page.ID, err)
	}

	bind.mu.Lock()
	bind.view = v
	bind.mu.Unlock()
	return v, bind, nil
}

// Binding is the view.Observer attached to one native view.
type Binding struct {
	id       string
	page     catalog.Page
	emit     events.Emitter
	mask     MaskScheduler
	redirect Redirector
	log      *zap.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	detached atomic.Bool

	mu      sync.Mutex
	view    view.View
	loading bool
}

// Detach stops every callback from having an effect and aborts pending
// masking and redirects.
func (b *Binding) Detach() {
	if b.detached.Swap(true) {
		return
	}
	b.cancel()
}

// Detached reports whether Detach was called.
func (b *Binding) Detached() bool {
	return b.detached.Load()
}

func (b *Binding) OnNavigate(url string, inPage bool) {
	if b.detached.Load() || view.IsSentinel(url) {
		return
	}
	b.emit.Emit(events.URL(b.id, url))
	if inPage {
		b.scheduleMask()
	}
}

func (b *Binding) OnStartLoading() {
	if b.detached.Load() || !b.setLoading(true) {
		return
	}
	b.emit.Emit(events.Loading(b.id, true))
}

func (b *Binding) OnFinishLoad() {
	if b.detached.Load() {
		return
	}
	b.scheduleMask()
	if b.setLoading(false) {
		b.emit.Emit(events.Loading(b.id, false))
	}
}

func (b *Binding) OnFailLoad(code int, description string) {
	if b.detached.Load() {
		return
	}
	if b.setLoading(false) {
		b.emit.Emit(events.Loading(b.id, false))
	}
	if view.IsBenignCode(code) {
		b.log.Debug("ignoring benign load failure", zap.Int("code", code))
		return
	}
	b.emit.Emit(events.Failed(b.id, code, description))
}

func (b *Binding) OnPopup(url string) {
	if b.detached.Load() || url == "" {
		return
	}
	b.log.Debug("redirecting pop-up into view", zap.String("url", url))

	go func() {
		var err error
		if b.redirect != nil {
			err = b.redirect(b.ctx, b.id, url)
		} else if v := b.currentView(); v != nil {
			err = v.Load(b.ctx, url)
		}
		if err != nil && b.ctx.Err() == nil {
			b.log.Warn("pop-up redirect failed", zap.String("url", url), zap.Error(err))
		}
	}()
}

func (b *Binding) scheduleMask() {
	if b.mask == nil || b.page.MaskCSS() == "" {
		return
	}
	v := b.currentView()
	if v == nil {
		return
	}
	b.mask.Schedule(b.ctx, b.id, v, b.page)
}

func (b *Binding) currentView() view.View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.view
}

// setLoading records the loading flag and reports whether it changed.
func (b *Binding) setLoading(loading bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.loading == loading {
		return false
	}
	b.loading = loading
	return true
}
