// Package registry holds the kiosk's live view sessions.
//
// The registry maps a catalog page id to at most one Session and tracks that
// session's lifecycle state:
//
//	absent -> creating -> active -> destroying -> absent
//
// Active sessions additionally carry a hidden sub-flag for views that were
// backgrounded but kept for fast reuse.
//
// Insert is the only way into the creating state and Remove the only way back
// to absent. Every other change goes through Transition, which rejects edges
// that are not part of the state machine and sessions that have already been
// replaced. Each Insert stamps the session with a fresh generation so a
// destroyed session is never mistaken for its successor.
//
// Concurrency:
//
// The registry is safe for concurrent use. It does not serialize operations
// on the same id; that job belongs to the lifecycle orchestrator, which is
// the only writer. Readers must tolerate state changing between a read and
// any later action and re-check with Current or State before acting.
//
// Observing transitions:
//
//	reg := registry.New()
//	reg.OnTransition(func(id string, gen uint64, from, to registry.State) {
//		log.Printf("%s#%d %s -> %s", id, gen, from, to)
//	})
package registry
