// Package visibility assigns on-screen geometry to views. It never creates or
// releases a native view; at most one view holds a non-zero rectangle.
package visibility

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/kiosk/registry"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

// ErrNotPlaceable is returned when the session is no longer an active,
// registered session at the moment it would be placed.
var ErrNotPlaceable = errors.New("session cannot be placed")

// Controller owns view geometry.
type Controller struct {
	reg *registry.Registry
	log *zap.Logger

	mu      sync.Mutex
	visible string
}

// New returns a controller over the sessions in reg.
func New(reg *registry.Registry, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{reg: reg, log: log}
}

// Place hides every other view and then gives s the rectangle r. It returns
// the ids of the views it hid.
func (c *Controller) Place(s *registry.Session, r view.Rect) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hidden := c.concealLocked(s.ID)

	v := s.View()
	if v == nil || v.Closed() || !c.placeable(s) {
		return hidden, ErrNotPlaceable
	}
	if err := v.SetBounds(r); err != nil {
		return hidden, err
	}
	// a destroy may have started while the bounds were applied
	if !c.placeable(s) {
		c.hide(s.ID, v)
		return hidden, ErrNotPlaceable
	}
	if !r.Empty() {
		c.visible = s.ID
	}
	return hidden, nil
}

func (c *Controller) placeable(s *registry.Session) bool {
	return c.reg.Current(s) && s.State() == registry.Active
}

// Conceal gives s zero-area geometry and reports whether it was visible.
func (c *Controller) Conceal(s *registry.Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	was := c.hide(s.ID, s.View())
	if c.visible == s.ID {
		c.visible = ""
	}
	return was
}

// ConcealOthers hides every view except id and returns the ids it hid.
func (c *Controller) ConcealOthers(id string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.concealLocked(id)
}

// ConcealAll hides every view and returns the ids it hid.
func (c *Controller) ConcealAll() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.concealLocked("")
}

// VisibleID returns the id of the visible view, "" when none is.
func (c *Controller) VisibleID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// VisibleCount counts registered views with non-zero geometry.
func (c *Controller) VisibleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, s := range c.reg.List() {
		if v := s.View(); v != nil && !v.Closed() && !v.Bounds().Empty() {
			n++
		}
	}
	return n
}

func (c *Controller) concealLocked(except string) []string {
	var hidden []string
	for _, s := range c.reg.List() {
		if s.ID == except {
			continue
		}
		if c.hide(s.ID, s.View()) {
			hidden = append(hidden, s.ID)
		}
	}
	if c.visible != except {
		c.visible = ""
	}
	return hidden
}

func (c *Controller) hide(id string, v view.View) bool {
	if v == nil || v.Closed() {
		return false
	}
	was := !v.Bounds().Empty()
	if err := v.SetBounds(view.Hidden); err != nil {
		c.log.Warn("failed to conceal view", zap.String("view", id), zap.Error(err))
	}
	return was
}
