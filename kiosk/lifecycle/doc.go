// Package lifecycle drives kiosk views through their state machine.
//
// The Orchestrator is the only writer of the session registry. Every
// operation on a view id runs inside that id's lane, a one-slot semaphore,
// so operations on one id are totally ordered while different ids proceed
// in parallel.
//
// Show:
//
// A show for an absent id inserts a creating session, builds the native view
// and waits for the initial load, bounded by Config.LoadTimeout. Every other
// view is moved off screen before the new one is placed, so at most one view
// is visible at any instant. A show that fails before the view turns active
// tears it down again. A show for an id that already has a show queued or
// running is dropped. A show for an id being destroyed fails with
// ErrDestroying.
//
// Destroy:
//
// Destroy marks the session destroying and cancels whatever runs on the view,
// then takes the lane and releases the native view. The registry entry is
// removed even when the view fails to confirm destruction; the failure is
// returned as a *TeardownError. A destroy racing a show therefore ends with
// the id absent and the native view closed exactly once.
//
// DestroyAll fans destroy out over every registered id and waits for all of
// them, combining failures instead of stopping at the first.
package lifecycle
