package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/events"
	"github.com/wricardo/kiosk-shell/kiosk/factory"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
	"github.com/wricardo/kiosk-shell/kiosk/view"
	"github.com/wricardo/kiosk-shell/kiosk/visibility"
	"github.com/wricardo/kiosk-shell/monitoring"
)

// Config holds the orchestrator's timing bounds.
type Config struct {
	LoadTimeout     time.Duration
	SettleDelay     time.Duration
	TeardownTimeout time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		LoadTimeout:     15 * time.Second,
		SettleDelay:     100 * time.Millisecond,
		TeardownTimeout: 5 * time.Second,
	}
}

// Pages resolves catalog page ids.
type Pages interface {
	Page(id string) (catalog.Page, bool)
}

// Placer computes the on-screen rectangle for the view being activated.
type Placer interface {
	Placement() view.Rect
}

// PlacerFunc adapts a function to Placer.
type PlacerFunc func() view.Rect

func (f PlacerFunc) Placement() view.Rect { return f() }

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Pages      Pages
	Registry   *registry.Registry
	Visibility *visibility.Controller
	Builder    *factory.Builder
	Placer     Placer
	Events     events.Emitter
	Metrics    *monitoring.Metrics
	Logger     *zap.Logger
}

// lane serializes every operation on one view id. A lane is created on first
// use and lives as long as the orchestrator; there is one per catalog page.
type lane struct {
	sem         chan struct{}
	showPending bool
}

func newLane() *lane {
	return &lane{sem: make(chan struct{}, 1)}
}

func (l *lane) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *lane) release() {
	<-l.sem
}

// Orchestrator creates, activates, hides and destroys views. All operations
// on one id are totally ordered; operations on different ids interleave.
type Orchestrator struct {
	cfg     Config
	pages   Pages
	reg     *registry.Registry
	vis     *visibility.Controller
	builder *factory.Builder
	placer  Placer
	emit    events.Emitter
	metrics *monitoring.Metrics
	log     *zap.Logger

	mu    sync.Mutex
	lanes map[string]*lane
}

// New returns an orchestrator. Pop-up redirects from views built by
// d.Builder are routed through the orchestrator's per-id serialization.
func New(cfg Config, d Deps) *Orchestrator {
	if d.Events == nil {
		d.Events = events.Discard
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Registry == nil {
		d.Registry = registry.New()
	}
	if d.Visibility == nil {
		d.Visibility = visibility.New(d.Registry, d.Logger)
	}

	o := &Orchestrator{
		cfg:     cfg,
		pages:   d.Pages,
		reg:     d.Registry,
		vis:     d.Visibility,
		builder: d.Builder,
		placer:  d.Placer,
		emit:    d.Events,
		metrics: d.Metrics,
		log:     d.Logger.Named("lifecycle"),
		lanes:   make(map[string]*lane),
	}

	o.reg.OnTransition(func(id string, gen uint64, from, to registry.State) {
		o.log.Debug("transition",
			zap.String("view", id),
			zap.Uint64("generation", gen),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		o.metrics.RecordTransition(from.String(), to.String())
	})
	if o.builder != nil {
		o.builder.SetRedirector(o.redirect)
	}
	return o
}

// Registry exposes the session registry for read-only snapshots.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.reg
}

// Visibility exposes the geometry controller.
func (o *Orchestrator) Visibility() *visibility.Controller {
	return o.vis
}

func (o *Orchestrator) laneLocked(id string) *lane {
	l, ok := o.lanes[id]
	if !ok {
		l = newLane()
		o.lanes[id] = l
	}
	return l
}

// Show creates the view for id if needed, loads its page and makes it the
// only visible view. A show issued while another show for the same id is
// still queued or running is dropped and returns nil.
func (o *Orchestrator) Show(ctx context.Context, id string) error {
	page, ok := o.pages.Page(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPage, id)
	}

	o.mu.Lock()
	l := o.laneLocked(id)
	if l.showPending {
		o.mu.Unlock()
		o.log.Debug("dropping duplicate show", zap.String("view", id))
		o.metrics.IncShowsDropped()
		return nil
	}
	if s, err := o.reg.Get(id); err == nil && s.State() == registry.Destroying {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDestroying, id)
	}
	l.showPending = true
	o.mu.Unlock()

	clearPending := func() {
		o.mu.Lock()
		l.showPending = false
		o.mu.Unlock()
	}

	if err := l.acquire(ctx); err != nil {
		clearPending()
		return err
	}
	defer func() {
		clearPending()
		l.release()
	}()

	return o.show(ctx, page)
}

// show runs with the lane held.
func (o *Orchestrator) show(ctx context.Context, page catalog.Page) error {
	start := time.Now()
	id := page.ID

	s, err := o.reg.Get(id)
	creating := false
	switch {
	case errors.Is(err, registry.ErrSessionNotFound):
		if s, err = o.reg.Insert(page); err != nil {
			return err
		}
		creating = true
		o.metrics.SetViewsRegistered(o.reg.Count())
	case err != nil:
		return err
	case s.State() == registry.Destroying:
		return fmt.Errorf("%w: %s", ErrDestroying, id)
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.LoadTimeout)
	defer cancel()
	s.BindCancel(cancel)
	defer s.BindCancel(nil)

	if !o.live(s) {
		return o.abort(opCtx, s, creating, fmt.Errorf("%w: %s", ErrDestroying, id))
	}

	if creating {
		v, bind, err := o.builder.Build(opCtx, page)
		if err != nil {
			return o.abort(opCtx, s, creating, err)
		}
		s.Attach(v, bind)
		o.metrics.IncViewsCreated()
	}

	v := s.View()
	if v == nil || v.Closed() {
		return o.abort(opCtx, s, true, fmt.Errorf("view %s: %w", id, view.ErrClosed))
	}

	o.emitHidden(o.vis.ConcealOthers(id))

	v.History().Clear()
	if err := v.Load(opCtx, page.URL); err != nil {
		return o.abort(opCtx, s, creating, err)
	}
	if err := sleep(opCtx, o.cfg.SettleDelay); err != nil {
		return o.abort(opCtx, s, creating, err)
	}
	if !o.live(s) {
		return o.abort(opCtx, s, creating, fmt.Errorf("%w: %s", ErrDestroying, id))
	}

	if creating {
		if err := o.reg.Transition(s, registry.Active); err != nil {
			return o.abort(opCtx, s, creating, err)
		}
	}
	s.SetHidden(false)

	rect := view.Rect{}
	if o.placer != nil {
		rect = o.placer.Placement()
	}
	hidden, err := o.vis.Place(s, rect)
	o.emitHidden(hidden)
	if err != nil {
		return o.abort(opCtx, s, creating, err)
	}
	o.emit.Emit(events.Visible(id))

	kind := "reshow"
	if creating {
		kind = "create"
	}
	o.metrics.ObserveShow(kind, time.Since(start))
	o.log.Info("view visible", zap.String("view", id), zap.String("kind", kind), zap.Uint64("generation", s.Generation))
	return nil
}

// abort handles a failed show. A view that never reached active is torn
// down; an active view stays registered with its load stopped.
func (o *Orchestrator) abort(opCtx context.Context, s *registry.Session, creating bool, err error) error {
	cancelled := errors.Is(err, ErrDestroying) || s.State() == registry.Destroying

	if !cancelled && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		o.emitFailure(s.ID, view.CodeTimedOut, "ERR_TIMED_OUT")
		if creating {
			err = fmt.Errorf("%w: %s after %s", ErrCreationTimeout, s.ID, o.cfg.LoadTimeout)
		} else {
			err = &view.LoadError{Code: view.CodeTimedOut, Description: "ERR_TIMED_OUT"}
		}
	} else if !cancelled {
		var loadErr *view.LoadError
		if errors.As(err, &loadErr) {
			// the view's binding already surfaced it
			if !loadErr.Benign() {
				o.metrics.RecordLoadFailure(loadErr.Code)
			}
		} else if !errors.Is(err, context.Canceled) {
			o.emitFailure(s.ID, view.CodeUnknown, err.Error())
		}
	}

	o.log.Warn("show failed",
		zap.String("view", s.ID),
		zap.Bool("creating", creating),
		zap.Bool("cancelled", cancelled),
		zap.Error(err))

	if creating || cancelled {
		if terr := o.teardown(s, "show-failed"); terr != nil {
			o.log.Warn("teardown after failed show", zap.String("view", s.ID), zap.Error(terr))
		}
		return err
	}

	if v := s.View(); v != nil && v.IsLoading() {
		v.Stop()
	}
	return err
}

func (o *Orchestrator) emitFailure(id string, code int, description string) {
	o.metrics.RecordLoadFailure(code)
	o.emit.Emit(events.Failed(id, code, description))
}

func (o *Orchestrator) emitHidden(ids []string) {
	for _, id := range ids {
		o.emit.Emit(events.Hidden(id))
	}
}

// live reports whether s is still registered and not being destroyed.
func (o *Orchestrator) live(s *registry.Session) bool {
	return o.reg.Current(s) && s.State() != registry.Destroying
}

// Hide moves an active view off screen and releases its page by loading the
// sentinel URL. The view stays registered for fast reuse. Hide of a view
// that is not active is a no-op.
func (o *Orchestrator) Hide(ctx context.Context, id string) error {
	s, err := o.reg.Get(id)
	if err != nil || s.State() != registry.Active {
		o.log.Debug("hide ignored", zap.String("view", id))
		return nil
	}

	o.mu.Lock()
	l := o.laneLocked(id)
	o.mu.Unlock()

	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	if !o.reg.Current(s) || s.State() != registry.Active {
		return nil
	}

	if o.vis.Conceal(s) {
		o.emit.Emit(events.Hidden(id))
	}
	s.SetHidden(true)

	v := s.View()
	if v == nil || v.Closed() {
		return nil
	}
	if v.IsLoading() {
		v.Stop()
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.LoadTimeout)
	defer cancel()
	s.BindCancel(cancel)
	defer s.BindCancel(nil)

	if err := v.Load(opCtx, view.SentinelURL); err != nil {
		o.log.Warn("failed to release hidden view", zap.String("view", id), zap.Error(err))
	}
	return nil
}

// Destroy tears down the view for id and removes it from the registry. It
// cancels any in-flight operation on the view, then waits for exclusive
// access. Destroying an absent id is a no-op.
func (o *Orchestrator) Destroy(ctx context.Context, id string) error {
	return o.destroy(id, "explicit")
}

func (o *Orchestrator) destroy(id, reason string) error {
	o.mu.Lock()
	s, err := o.reg.Get(id)
	if err != nil {
		o.mu.Unlock()
		return nil
	}
	l := o.laneLocked(id)
	if s.State() != registry.Destroying {
		if err := o.reg.Transition(s, registry.Destroying); err != nil {
			o.log.Warn("unexpected state on destroy", zap.String("view", id), zap.Error(err))
		}
	}
	o.mu.Unlock()

	s.Cancel()

	// The lane is always acquired: an abandoned destroy would leave the view
	// marked destroying forever.
	_ = l.acquire(context.Background())
	defer l.release()

	if !o.reg.Current(s) {
		return nil
	}
	return o.teardown(s, reason)
}

// teardown releases s's native view and removes the entry. It runs with the
// lane held and removes the entry even when the view fails to close.
func (o *Orchestrator) teardown(s *registry.Session, reason string) error {
	if st := s.State(); st != registry.Destroying && st != registry.Absent {
		if err := o.reg.Transition(s, registry.Destroying); err != nil {
			o.log.Warn("unexpected state on teardown", zap.String("view", s.ID), zap.Error(err))
		}
	}
	s.Cancel()

	if o.vis.Conceal(s) {
		o.emit.Emit(events.Hidden(s.ID))
	}
	s.Detach()

	var terr error
	if v := s.View(); v != nil {
		if v.IsLoading() {
			v.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.TeardownTimeout)
		if err := v.Close(ctx); err != nil {
			terr = &TeardownError{ID: s.ID, Err: err}
			o.metrics.IncTeardownErrors()
			o.log.Warn("view did not confirm destruction", zap.String("view", s.ID), zap.Error(err))
		}
		cancel()
	}

	o.reg.Remove(s)
	o.metrics.IncViewsDestroyed(reason)
	o.metrics.SetViewsRegistered(o.reg.Count())
	o.log.Info("view destroyed", zap.String("view", s.ID), zap.String("reason", reason), zap.Uint64("generation", s.Generation))
	return terr
}

// DestroyAll destroys every registered view concurrently and waits for all
// of them. One view failing never stops the others; every failure is
// returned combined.
func (o *Orchestrator) DestroyAll(ctx context.Context) error {
	return o.destroyAll("destroy-all")
}

func (o *Orchestrator) destroyAll(reason string) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, id := range o.reg.IDs() {
		id := id
		g.Go(func() error {
			if err := o.destroy(id, reason); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Reset destroys every view on behalf of the idle supervisor.
func (o *Orchestrator) Reset(ctx context.Context) error {
	return o.destroyAll("idle")
}

// Do runs fn against the active view for id with the lane held. The context
// passed to fn is cancelled when the view is destroyed.
func (o *Orchestrator) Do(ctx context.Context, id string, fn func(ctx context.Context, v view.View) error) error {
	s, err := o.reg.Get(id)
	if err != nil {
		return err
	}
	if err := o.checkActive(s); err != nil {
		return err
	}
	return o.run(ctx, s, fn)
}

// run acquires the lane for s and runs fn once s is active. The state is
// checked with the lane held, so work queued behind a show that is still
// creating s runs after the show completes.
func (o *Orchestrator) run(ctx context.Context, s *registry.Session, fn func(ctx context.Context, v view.View) error) error {
	id := s.ID
	o.mu.Lock()
	l := o.laneLocked(id)
	o.mu.Unlock()

	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer l.release()

	if !o.reg.Current(s) {
		return fmt.Errorf("%w: %s", registry.ErrSessionNotFound, id)
	}
	if err := o.checkActive(s); err != nil {
		return err
	}
	v := s.View()
	if v == nil || v.Closed() {
		return fmt.Errorf("view %s: %w", id, view.ErrClosed)
	}

	opCtx, cancel := context.WithTimeout(ctx, o.cfg.LoadTimeout)
	defer cancel()
	s.BindCancel(cancel)
	defer s.BindCancel(nil)

	return fn(opCtx, v)
}

func (o *Orchestrator) checkActive(s *registry.Session) error {
	switch s.State() {
	case registry.Active:
		return nil
	case registry.Destroying:
		return fmt.Errorf("%w: %s", ErrDestroying, s.ID)
	default:
		return fmt.Errorf("%w: %s is %s", ErrNotActive, s.ID, s.State())
	}
}

// redirect loads a pop-up target into the view that requested it. A pop-up
// raised while the view is being created waits for the show to finish and is
// dropped only if the view is destroyed meanwhile.
func (o *Orchestrator) redirect(ctx context.Context, id, url string) error {
	s, err := o.reg.Get(id)
	if err != nil {
		return err
	}
	if s.State() == registry.Destroying {
		return fmt.Errorf("%w: %s", ErrDestroying, id)
	}
	return o.run(ctx, s, func(ctx context.Context, v view.View) error {
		return v.Load(ctx, url)
	})
}

// Sweep destroys active views whose native resource went away on its own,
// such as a crashed renderer. It returns the number of views removed.
func (o *Orchestrator) Sweep(ctx context.Context) int {
	removed := 0
	for _, s := range o.reg.List() {
		if s.State() != registry.Active {
			continue
		}
		v := s.View()
		if v != nil && !v.Closed() {
			continue
		}
		o.log.Info("pruning orphaned view", zap.String("view", s.ID))
		if err := o.destroy(s.ID, "orphan"); err != nil {
			o.log.Warn("orphan teardown", zap.String("view", s.ID), zap.Error(err))
		}
		removed++
	}
	return removed
}

// Views snapshots every registered view.
func (o *Orchestrator) Views() []registry.Info {
	return o.reg.Infos()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
