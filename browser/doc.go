// Package browser is the Playwright-backed native view implementation.
//
// A Launcher starts one persistent Chromium context and implements both
// view.Factory and view.Host. Each catalog page becomes its own Playwright
// page; the visible view is the one most recently brought to the front.
// Pop-up windows are closed as soon as they open and their target URL is
// reported through view.Observer.OnPopup.
package browser
