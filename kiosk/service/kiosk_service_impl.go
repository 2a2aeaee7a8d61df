package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/idle"
	"github.com/wricardo/kiosk-shell/kiosk/lifecycle"
	"github.com/wricardo/kiosk-shell/kiosk/navigation"
	"github.com/wricardo/kiosk-shell/kiosk/record"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
)

var (
	ErrUnknownActivity = errors.New("unknown activity kind")
	ErrInvalidTimeout  = idle.ErrInvalidTimeout
)

// ActivityKinds are the input signals that count as kiosk use
var ActivityKinds = map[string]bool{
	"pointerdown": true,
	"mousedown":   true,
	"mousemove":   true,
	"touchstart":  true,
	"scroll":      true,
	"keydown":     true,
	"focus":       true,
	"ping":        true,
}

// kioskServiceImpl implements the KioskService interface
type kioskServiceImpl struct {
	deps     Deps
	log      *zap.Logger
	quitOnce sync.Once
}

// NewKioskService creates a new kiosk service instance
func NewKioskService(deps Deps, log *zap.Logger) KioskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &kioskServiceImpl{deps: deps, log: log.Named("service")}
}

// page resolves id against the catalog
func (s *kioskServiceImpl) page(id string) (catalog.Page, error) {
	p, ok := s.deps.Pages.Page(id)
	if !ok {
		return catalog.Page{}, fmt.Errorf("%w: %s", lifecycle.ErrUnknownPage, id)
	}
	return p, nil
}

// ShowView makes id the visible view, creating it if needed
func (s *kioskServiceImpl) ShowView(ctx context.Context, id string) error {
	if _, err := s.page(id); err != nil {
		return err
	}
	return s.deps.Lifecycle.Show(ctx, id)
}

// HideView backgrounds an active view
func (s *kioskServiceImpl) HideView(ctx context.Context, id string) error {
	if _, err := s.page(id); err != nil {
		return err
	}
	return s.deps.Lifecycle.Hide(ctx, id)
}

// NavigateView loads url into id with a fresh history
func (s *kioskServiceImpl) NavigateView(ctx context.Context, id, url string) error {
	if _, err := s.page(id); err != nil {
		return err
	}
	return s.deps.Navigator.LoadURL(ctx, id, strings.TrimSpace(url))
}

// NavigationControl moves id's history cursor back or forward
func (s *kioskServiceImpl) NavigationControl(ctx context.Context, id, action string) error {
	if _, err := s.page(id); err != nil {
		return err
	}
	a, err := navigation.ParseAction(action)
	if err != nil {
		return err
	}
	return s.deps.Navigator.Control(ctx, id, a)
}

// CanGoBack reports whether id has a meaningful back entry
func (s *kioskServiceImpl) CanGoBack(ctx context.Context, id string) (bool, error) {
	if _, err := s.page(id); err != nil {
		return false, err
	}
	return s.deps.Navigator.CanGoBack(ctx, id), nil
}

// CurrentURL returns id's committed URL; ok is false when it could not be read
func (s *kioskServiceImpl) CurrentURL(ctx context.Context, id string) (string, bool, error) {
	if _, err := s.page(id); err != nil {
		return "", false, err
	}
	url, ok := s.deps.Navigator.CurrentURL(ctx, id)
	return url, ok, nil
}

// RemoveElements deletes elements matching selector from id's document
func (s *kioskServiceImpl) RemoveElements(ctx context.Context, id, selector string) error {
	if _, err := s.page(id); err != nil {
		return err
	}
	return s.deps.Navigator.RemoveElements(ctx, id, selector)
}

// ListViews returns all registered views
func (s *kioskServiceImpl) ListViews(ctx context.Context) ([]registry.Info, error) {
	return s.deps.Lifecycle.Views(), nil
}

// DestroyAllViews tears every view down and waits for all of them
func (s *kioskServiceImpl) DestroyAllViews(ctx context.Context) error {
	return s.deps.Lifecycle.DestroyAll(ctx)
}

// SetIdleTimeout replaces the idle timeout
func (s *kioskServiceImpl) SetIdleTimeout(ctx context.Context, timeout time.Duration) error {
	return s.deps.Idle.SetTimeout(timeout)
}

// StopIdleTimer disarms the idle timer
func (s *kioskServiceImpl) StopIdleTimer(ctx context.Context) error {
	s.deps.Idle.Stop()
	return nil
}

// StartIdleTimer arms the idle timer
func (s *kioskServiceImpl) StartIdleTimer(ctx context.Context) error {
	s.deps.Idle.Start()
	return nil
}

// SuppressIdle raises or lowers idle suppression during long operations
func (s *kioskServiceImpl) SuppressIdle(ctx context.Context, suppressed bool) error {
	s.deps.Idle.SetSuppressed(suppressed)
	return nil
}

// RecordActivity resets the idle timer for a recognized input signal
func (s *kioskServiceImpl) RecordActivity(ctx context.Context, kind string) error {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !ActivityKinds[kind] {
		return fmt.Errorf("%w: %q", ErrUnknownActivity, kind)
	}
	s.deps.Idle.Activity()
	return nil
}

// IdleStatus reports the idle timer state
func (s *kioskServiceImpl) IdleStatus(ctx context.Context) (*idle.Status, error) {
	st := s.deps.Idle.Status()
	return &st, nil
}

// ListPages returns the catalog in order
func (s *kioskServiceImpl) ListPages(ctx context.Context) ([]catalog.Page, error) {
	return s.deps.Pages.Pages(), nil
}

// GetKiosk returns the persisted kiosk record
func (s *kioskServiceImpl) GetKiosk(ctx context.Context) (*record.Info, error) {
	info, err := s.deps.Record.Load()
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// SaveKiosk replaces the persisted kiosk record
func (s *kioskServiceImpl) SaveKiosk(ctx context.Context, info record.Info) error {
	info.Name = strings.TrimSpace(info.Name)
	info.Mode = strings.TrimSpace(info.Mode)
	return s.deps.Record.Save(info)
}

// ResetKiosk removes the persisted kiosk record
func (s *kioskServiceImpl) ResetKiosk(ctx context.Context) error {
	return s.deps.Record.Reset()
}

// Quit disarms the idle timer, destroys every view and then signals the
// process to exit. Teardown failures are logged and never block the exit.
func (s *kioskServiceImpl) Quit(ctx context.Context) error {
	s.deps.Idle.Stop()
	if err := s.deps.Lifecycle.DestroyAll(ctx); err != nil {
		s.log.Warn("teardown on quit finished with errors", zap.Error(err))
	}
	s.quitOnce.Do(func() {
		if s.deps.OnQuit != nil {
			s.deps.OnQuit()
		}
	})
	return nil
}
