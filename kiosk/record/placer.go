package record

import (
	"errors"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/kiosk/view"
)

// ChromeHeight is the vertical space reserved for the host window's chrome.
const ChromeHeight = 100

// ModePlacer computes view placement from the host size and the kiosk
// record's mode. Both are read on every activation.
type ModePlacer struct {
	store Store
	host  view.Host
	log   *zap.Logger
}

func NewModePlacer(store Store, host view.Host, log *zap.Logger) *ModePlacer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ModePlacer{store: store, host: host, log: log}
}

// Placement returns the rectangle for the view being shown.
func (p *ModePlacer) Placement() view.Rect {
	size := p.host.Size()

	y := 0
	info, err := p.store.Load()
	switch {
	case err == nil && info.Mode == ModeDid:
		y = ChromeHeight
	case err != nil && !errors.Is(err, ErrNoRecord):
		p.log.Warn("failed to read kiosk record", zap.Error(err))
	}

	height := size.Height - ChromeHeight
	if height < 0 {
		height = 0
	}
	return view.Rect{X: 0, Y: y, Width: size.Width, Height: height}
}
