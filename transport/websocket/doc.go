// Package websocket streams kiosk events to the presentation layer.
//
// The websocket package implements:
//   - The outward event stream (view-visible, view-hidden, url-changed,
//     load-failed, loading-state, idle-fired)
//   - Optional per-view subscriptions
//   - Inbound activity signals
//   - Connection lifecycle management
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each client connection is handled by a read and a
// write goroutine. The Hub implements events.Emitter, so the lifecycle core
// publishes to it directly.
//
// Message Protocol:
//
// Outgoing messages are JSON-encoded events, one per frame:
//
//	{"id":"...","type":"url-changed","view_id":"news","url":"https://...","at":"..."}
//
// Incoming messages report user activity and keep the idle timer armed:
//
//	{"type":"activity","kind":"pointerdown"}
//
// Subscriptions:
//
// Clients may pass ?view=<id> when connecting to receive only that view's
// events. Events without a view (idle-fired) reach every client.
//
// Usage:
//
//	hub := websocket.NewHub(metrics, logger)
//	go hub.Run(ctx)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Backpressure:
//
// Emit never blocks the caller. When the hub's buffer is full the event is
// dropped and counted; a client whose own buffer is full is disconnected.
package websocket
