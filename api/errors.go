package api

import (
	"errors"
	"net/http"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/idle"
	"github.com/wricardo/kiosk-shell/kiosk/lifecycle"
	"github.com/wricardo/kiosk-shell/kiosk/navigation"
	"github.com/wricardo/kiosk-shell/kiosk/record"
	"github.com/wricardo/kiosk-shell/kiosk/service"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

var errEmptyBody = errors.New("empty request body")

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var loadErr *view.LoadError
	switch {
	case errors.Is(err, lifecycle.ErrUnknownPage),
		errors.Is(err, catalog.ErrPageNotFound),
		errors.Is(err, record.ErrNoRecord):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrDestroying),
		errors.Is(err, lifecycle.ErrNotActive):
		return http.StatusConflict
	case errors.Is(err, navigation.ErrInvalidAction),
		errors.Is(err, navigation.ErrInvalidURL),
		errors.Is(err, navigation.ErrInvalidSelector),
		errors.Is(err, service.ErrUnknownActivity),
		errors.Is(err, idle.ErrInvalidTimeout),
		errors.Is(err, record.ErrInvalidRecord):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrCreationTimeout):
		return http.StatusGatewayTimeout
	case errors.As(err, &loadErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
