// Package service provides the kiosk's business logic layer.
//
// The service package implements:
//   - The operations offered to the presentation layer (show, hide, navigate,
//     history traversal, current URL, idle timer control, destroy-all)
//   - Catalog and kiosk record access
//   - Activity signal validation
//   - The app-quit path
//
// Core Types:
//
// KioskService is the interface every transport (REST, MCP) calls. It
// validates page ids against the catalog and delegates to the lifecycle
// orchestrator, the navigation bridge and the idle supervisor through the
// narrow Lifecycle, Navigator and IdleTimer interfaces.
//
// Usage:
//
//	svc := service.NewKioskService(service.Deps{
//		Lifecycle: orchestrator,
//		Navigator: bridge,
//		Idle:      supervisor,
//		Pages:     pages,
//		Record:    store,
//	}, logger)
//
//	if err := svc.ShowView(ctx, "home"); err != nil {
//		log.Fatal(err)
//	}
//
// Errors:
//
// Unknown page ids are reported with lifecycle.ErrUnknownPage, unrecognized
// activity kinds with ErrUnknownActivity and bad traversal names with
// navigation.ErrInvalidAction, so transports can map them to client errors.
package service
