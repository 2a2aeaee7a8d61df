// Package events defines the notifications the kiosk raises outward and the
// plumbing that delivers them.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type names an outward notification.
type Type string

const (
	ViewVisible  Type = "view-visible"
	ViewHidden   Type = "view-hidden"
	URLChanged   Type = "url-changed"
	LoadFailed   Type = "load-failed"
	LoadingState Type = "loading-state"
	IdleFired    Type = "idle-fired"
)

// Event is one outward notification.
type Event struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	ViewID      string    `json:"view_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	ErrorCode   int       `json:"error_code,omitempty"`
	Description string    `json:"description,omitempty"`
	Loading     *bool     `json:"loading,omitempty"`
	At          time.Time `json:"at"`
}

// New returns an event of type t for viewID stamped with a fresh id.
func New(t Type, viewID string) Event {
	return Event{
		ID:     uuid.New().String(),
		Type:   t,
		ViewID: viewID,
		At:     time.Now(),
	}
}

// Visible reports that viewID became the visible view.
func Visible(viewID string) Event {
	return New(ViewVisible, viewID)
}

// Hidden reports that viewID is no longer visible.
func Hidden(viewID string) Event {
	return New(ViewHidden, viewID)
}

// URL reports a committed navigation in viewID.
func URL(viewID, url string) Event {
	e := New(URLChanged, viewID)
	e.URL = url
	return e
}

// Failed reports a navigation failure in viewID.
func Failed(viewID string, code int, description string) Event {
	e := New(LoadFailed, viewID)
	e.ErrorCode = code
	e.Description = description
	return e
}

// Loading reports a change of viewID's loading state.
func Loading(viewID string, loading bool) Event {
	e := New(LoadingState, viewID)
	e.Loading = &loading
	return e
}

// Idle reports that the idle timer fired and the kiosk returned to neutral.
func Idle() Event {
	return New(IdleFired, "")
}

// Emitter delivers events. Emit must not block.
type Emitter interface {
	Emit(e Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(e Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})

// Bus fans events out to every subscribed emitter.
type Bus struct {
	mu   sync.RWMutex
	subs []Emitter
}

// NewBus returns a bus delivering to subs.
func NewBus(subs ...Emitter) *Bus {
	return &Bus{subs: subs}
}

// Subscribe adds an emitter.
func (b *Bus) Subscribe(e Emitter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, e)
}

func (b *Bus) Emit(e Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, s := range subs {
		s.Emit(e)
	}
}

// Recorder keeps every event it receives. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Types returns the type of every recorded event, in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
