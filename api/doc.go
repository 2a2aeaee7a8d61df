// Package api provides the HTTP REST surface of the kiosk shell.
//
// The api package implements:
//   - View commands (show, hide, navigate, back/forward, element removal)
//   - Idle timer control and activity reporting
//   - The persisted kiosk record
//   - WebSocket upgrade for the event stream
//   - Prometheus metrics and optional static file serving
//
// Endpoints:
//
// Catalog:
//   - GET /api/pages - List configured pages
//
// Views:
//   - GET /api/views - List registered views and the visible one
//   - DELETE /api/views - Destroy every view
//   - POST /api/views/{id}/show - Create or re-show a view
//   - POST /api/views/{id}/hide - Hide a view
//   - POST /api/views/{id}/navigate - Load a URL, {"url": "..."}
//   - POST /api/views/{id}/control - {"action": "back"|"forward"}
//   - GET /api/views/{id}/can-go-back
//   - GET /api/views/{id}/url - Current URL, null if unknown
//   - POST /api/views/{id}/remove-elements - {"selector": "..."}
//
// Idle:
//   - GET /api/idle - Timer status
//   - PUT /api/idle/timeout - {"timeout_ms": 60000}
//   - POST /api/idle/stop, POST /api/idle/start
//   - PUT /api/idle/suppress - {"suppressed": true}
//   - POST /api/activity - {"kind": "pointerdown"}
//
// Kiosk record:
//   - GET /api/kiosk, PUT /api/kiosk, DELETE /api/kiosk
//
// Lifecycle:
//   - POST /api/quit - Tear down all views and exit
//
// Errors are returned as {"error": "message"}. Unknown pages map to 404,
// views being torn down to 409, invalid input to 400, creation timeouts to
// 504 and page load failures to 502.
package api
