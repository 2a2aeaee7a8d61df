package api

import (
	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse acknowledges a command
type StatusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

// InfoResponse describes the server
type InfoResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

// PagesResponse lists the catalog
type PagesResponse struct {
	Count int            `json:"count"`
	Pages []catalog.Page `json:"pages"`
}

// ViewsResponse lists registered views
type ViewsResponse struct {
	Count   int             `json:"count"`
	Visible string          `json:"visible,omitempty"`
	Views   []registry.Info `json:"views"`
}

// CanGoBackResponse answers GET /api/views/{id}/can-go-back
type CanGoBackResponse struct {
	ID        string `json:"id"`
	CanGoBack bool   `json:"can_go_back"`
}

// URLResponse answers GET /api/views/{id}/url. URL is null when the view
// could not be queried.
type URLResponse struct {
	ID  string  `json:"id"`
	URL *string `json:"url"`
}

// NavigateRequest is the body of POST /api/views/{id}/navigate
type NavigateRequest struct {
	URL string `json:"url"`
}

// ControlRequest is the body of POST /api/views/{id}/control
type ControlRequest struct {
	Action string `json:"action"`
}

// RemoveElementsRequest is the body of POST /api/views/{id}/remove-elements
type RemoveElementsRequest struct {
	Selector string `json:"selector"`
}

// IdleTimeoutRequest is the body of PUT /api/idle/timeout
type IdleTimeoutRequest struct {
	TimeoutMS int64 `json:"timeout_ms"`
}

// SuppressRequest is the body of PUT /api/idle/suppress
type SuppressRequest struct {
	Suppressed bool `json:"suppressed"`
}

// ActivityRequest is the body of POST /api/activity
type ActivityRequest struct {
	Kind string `json:"kind"`
}
