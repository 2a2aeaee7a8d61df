package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/view"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidTransition    = errors.New("invalid state transition")
)

// State is a session's lifecycle state.
type State int

const (
	Absent State = iota
	Creating
	Active
	Destroying
)

func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Creating:
		return "creating"
	case Active:
		return "active"
	case Destroying:
		return "destroying"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// validNext lists the transitions allowed out of each registered state.
var validNext = map[State][]State{
	Creating: {Active, Destroying},
	Active:   {Destroying},
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to State) bool {
	for _, s := range validNext[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Detacher disconnects a session's observers from its native view.
type Detacher interface {
	Detach()
}

// Session is one registered view and its lifecycle state.
type Session struct {
	ID         string
	Page       catalog.Page
	Generation uint64
	CreatedAt  time.Time

	mu          sync.Mutex
	state       State
	hidden      bool
	view        view.View
	binding     Detacher
	cancel      context.CancelFunc
	activatedAt time.Time
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Hidden reports the hidden sub-flag of an active session.
func (s *Session) Hidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

func (s *Session) SetHidden(hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hidden = hidden
}

// View returns the native view, nil until the factory has built it.
func (s *Session) View() view.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Attach records the native view and the binding that feeds its observers.
func (s *Session) Attach(v view.View, binding Detacher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view = v
	s.binding = binding
}

// Detach disconnects the observers. Safe to call more than once.
func (s *Session) Detach() {
	s.mu.Lock()
	b := s.binding
	s.binding = nil
	s.mu.Unlock()
	if b != nil {
		b.Detach()
	}
}

// BindCancel stores the cancel function of the operation currently running
// on the session's native view.
func (s *Session) BindCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
}

// Cancel aborts the in-flight operation, if any.
func (s *Session) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) ActivatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activatedAt
}

// Info is a point-in-time description of a session.
type Info struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	State       State     `json:"state"`
	Hidden      bool      `json:"hidden"`
	Visible     bool      `json:"visible"`
	URL         string    `json:"url,omitempty"`
	Generation  uint64    `json:"generation"`
	CreatedAt   time.Time `json:"created_at"`
	ActivatedAt time.Time `json:"activated_at"`
}

// Snapshot describes the session. The URL is best-effort and may be stale.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	info := Info{
		ID:          s.ID,
		Label:       s.Page.Label,
		State:       s.state,
		Hidden:      s.hidden,
		Generation:  s.Generation,
		CreatedAt:   s.CreatedAt,
		ActivatedAt: s.activatedAt,
	}
	v := s.view
	s.mu.Unlock()

	if v != nil && !v.Closed() {
		info.Visible = !v.Bounds().Empty()
		if url, err := v.URL(); err == nil {
			info.URL = url
		}
	}
	return info
}

// TransitionFunc observes every state change of every session.
type TransitionFunc func(id string, generation uint64, from, to State)

// Registry maps page ids to their live session
type Registry struct {
	sessions   map[string]*Session
	generation uint64
	observers  []TransitionFunc
	mu         sync.RWMutex
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// OnTransition registers fn to be called after every state change
func (r *Registry) OnTransition(fn TransitionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Insert registers a new session for page in the creating state
func (r *Registry) Insert(page catalog.Page) (*Session, error) {
	r.mu.Lock()
	if _, exists := r.sessions[page.ID]; exists {
		r.mu.Unlock()
		return nil, ErrSessionAlreadyExists
	}

	r.generation++
	s := &Session{
		ID:         page.ID,
		Page:       page,
		Generation: r.generation,
		CreatedAt:  time.Now(),
		state:      Creating,
	}
	r.sessions[page.ID] = s
	observers := r.observers
	r.mu.Unlock()

	notify(observers, s.ID, s.Generation, Absent, Creating)
	return s, nil
}

// Get retrieves the session registered under id
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Current reports whether s is still the session registered under its id
func (r *Registry) Current(s *Session) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[s.ID] == s
}

// Transition moves s to state to. It fails when s has been replaced or
// removed, or when the edge is not part of the state machine.
func (r *Registry) Transition(s *Session, to State) error {
	r.mu.RLock()
	if r.sessions[s.ID] != s {
		r.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, s.ID)
	}

	s.mu.Lock()
	from := s.state
	if !CanTransition(from, to) {
		s.mu.Unlock()
		r.mu.RUnlock()
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, s.ID, from, to)
	}
	s.state = to
	if to == Active {
		s.activatedAt = time.Now()
	}
	s.mu.Unlock()
	observers := r.observers
	r.mu.RUnlock()

	notify(observers, s.ID, s.Generation, from, to)
	return nil
}

// Remove unregisters s. The entry is dropped regardless of its state; it is
// a no-op when s is no longer the registered session.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	if r.sessions[s.ID] != s {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, s.ID)
	observers := r.observers
	r.mu.Unlock()

	s.mu.Lock()
	from := s.state
	s.state = Absent
	s.mu.Unlock()

	notify(observers, s.ID, s.Generation, from, Absent)
	return true
}

// List returns all registered sessions ordered by id
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// IDs returns the registered ids in order
func (r *Registry) IDs() []string {
	sessions := r.List()
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Infos snapshots every registered session
func (r *Registry) Infos() []Info {
	sessions := r.List()
	infos := make([]Info, len(sessions))
	for i, s := range sessions {
		infos[i] = s.Snapshot()
	}
	return infos
}

func notify(observers []TransitionFunc, id string, gen uint64, from, to State) {
	for _, fn := range observers {
		fn(id, gen, from, to)
	}
}
