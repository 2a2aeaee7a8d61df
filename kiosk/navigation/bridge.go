// Package navigation exposes history and navigation operations on live views
// and applies per-page content masking.
package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/kiosk/registry"
	"github.com/wricardo/kiosk-shell/kiosk/retry"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

var (
	ErrInvalidAction   = errors.New("invalid navigation action")
	ErrInvalidURL      = errors.New("invalid url")
	ErrInvalidSelector = errors.New("invalid selector")
)

// Action is a history traversal.
type Action string

const (
	Back    Action = "back"
	Forward Action = "forward"
)

// ParseAction validates a traversal name.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Back, Forward:
		return a, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// Runner runs work against a live view with exclusive access to it.
type Runner interface {
	Do(ctx context.Context, id string, fn func(ctx context.Context, v view.View) error) error
}

// Bridge implements the navigation operations offered to collaborators.
type Bridge struct {
	run    Runner
	reg    *registry.Registry
	policy retry.Policy
	log    *zap.Logger
}

// NewBridge returns a bridge. policy bounds CurrentURL's retries.
func NewBridge(run Runner, reg *registry.Registry, policy retry.Policy, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{run: run, reg: reg, policy: policy, log: log.Named("navigation")}
}

// CanGoBack reports whether the view has a prior history entry that is not
// the sentinel or empty.
func (b *Bridge) CanGoBack(ctx context.Context, id string) bool {
	s, err := b.reg.Get(id)
	if err != nil || s.State() != registry.Active {
		return false
	}
	v := s.View()
	if v == nil || v.Closed() {
		return false
	}

	h := v.History()
	i := h.ActiveIndex()
	if i <= 0 {
		return false
	}
	prev, ok := h.EntryAt(i - 1)
	return ok && !view.IsSentinel(prev)
}

// Control moves the view's history cursor. It is a no-op at a boundary.
func (b *Bridge) Control(ctx context.Context, id string, action Action) error {
	switch action {
	case Back, Forward:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	return b.run.Do(ctx, id, func(ctx context.Context, v view.View) error {
		h := v.History()
		if action == Back {
			if !h.CanGoBack() {
				return nil
			}
			return v.GoBack(ctx)
		}
		if !h.CanGoForward() {
			return nil
		}
		return v.GoForward(ctx)
	})
}

// LoadURL clears the view's history and navigates to target, leaving it as
// the only entry.
func (b *Bridge) LoadURL(ctx context.Context, id, target string) error {
	if err := validateURL(target); err != nil {
		return err
	}
	return b.run.Do(ctx, id, func(ctx context.Context, v view.View) error {
		v.History().Clear()
		return v.Load(ctx, target)
	})
}

// CurrentURL returns the view's committed URL. The view may be mid-transition,
// so the query is retried; when every attempt fails it reports ("", false).
func (b *Bridge) CurrentURL(ctx context.Context, id string) (string, bool) {
	u, err := retry.Do(ctx, b.policy, func(ctx context.Context) (string, error) {
		s, err := b.reg.Get(id)
		if err != nil {
			return "", err
		}
		v := s.View()
		if v == nil {
			return "", view.ErrNotQueryable
		}
		u, err := v.URL()
		if err != nil {
			return "", err
		}
		if u == "" {
			return "", view.ErrNotQueryable
		}
		return u, nil
	})
	if err != nil {
		b.log.Debug("current url unavailable", zap.String("view", id), zap.Error(err))
		return "", false
	}
	return u, true
}

// RemoveElements deletes every element matching selector from the view's
// current document.
func (b *Bridge) RemoveElements(ctx context.Context, id, selector string) error {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return fmt.Errorf("%w: empty", ErrInvalidSelector)
	}
	script, err := removalScript(selector)
	if err != nil {
		return err
	}
	return b.run.Do(ctx, id, func(ctx context.Context, v view.View) error {
		return v.ExecuteScript(ctx, script)
	})
}

func removalScript(selector string) (string, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSelector, err)
	}
	return fmt.Sprintf("document.querySelectorAll(%s).forEach(function (el) { el.remove(); });", quoted), nil
}

func validateURL(target string) error {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, target)
	}
	return nil
}
