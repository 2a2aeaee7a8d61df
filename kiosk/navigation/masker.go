package navigation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

// DefaultMaskDelay lets the document finish laying out before masking.
const DefaultMaskDelay = 100 * time.Millisecond

// Masker hides a page's mask selectors once a navigation settles. Masking is
// cosmetic: failures are logged and never fail a load.
type Masker struct {
	delay time.Duration
	log   *zap.Logger
}

func NewMasker(delay time.Duration, log *zap.Logger) *Masker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Masker{delay: delay, log: log.Named("masker")}
}

// Schedule applies masking in the background.
func (m *Masker) Schedule(ctx context.Context, viewID string, v view.View, page catalog.Page) {
	go func() {
		if err := m.Apply(ctx, v, page); err != nil && ctx.Err() == nil {
			m.log.Warn("failed to apply content mask", zap.String("view", viewID), zap.Error(err))
		}
	}()
}

// Apply waits for the settle delay and inserts the page's mask stylesheet.
func (m *Masker) Apply(ctx context.Context, v view.View, page catalog.Page) error {
	css := page.MaskCSS()
	if css == "" {
		return nil
	}

	if m.delay > 0 {
		t := time.NewTimer(m.delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		}
	}

	if v.Closed() {
		return view.ErrClosed
	}
	if u, err := v.URL(); err == nil && view.IsSentinel(u) {
		return nil
	}
	return v.InsertCSS(ctx, css)
}
