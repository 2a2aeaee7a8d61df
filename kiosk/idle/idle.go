// Package idle resets the kiosk after a period without user activity.
package idle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wricardo/kiosk-shell/kiosk/events"
	"github.com/wricardo/kiosk-shell/monitoring"
)

// DefaultTimeout is used until SetTimeout is called.
const DefaultTimeout = 60 * time.Second

// ErrInvalidTimeout is returned for a non-positive timeout.
var ErrInvalidTimeout = errors.New("idle timeout must be positive")

// Timer is a pending fire that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfter(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Resetter returns the kiosk to its neutral state.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Options configure a Supervisor.
type Options struct {
	Timeout time.Duration
	Events  events.Emitter
	Metrics *monitoring.Metrics
	Logger  *zap.Logger

	// After replaces time.AfterFunc, for tests.
	After AfterFunc
}

// Supervisor owns the single process-wide idle timer.
type Supervisor struct {
	reset   Resetter
	emit    events.Emitter
	metrics *monitoring.Metrics
	log     *zap.Logger
	after   AfterFunc

	mu         sync.Mutex
	timeout    time.Duration
	armed      bool
	suppressed bool
	generation uint64
	timer      Timer
}

// New returns a disarmed supervisor that calls reset when the timer fires.
func New(reset Resetter, opts Options) *Supervisor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Events == nil {
		opts.Events = events.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.After == nil {
		opts.After = realAfter
	}
	return &Supervisor{
		reset:   reset,
		emit:    opts.Events,
		metrics: opts.Metrics,
		log:     opts.Logger.Named("idle"),
		after:   opts.After,
		timeout: opts.Timeout,
	}
}

// Activity re-arms the timer with the current timeout. It is ignored while
// suppression is raised.
func (s *Supervisor) Activity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suppressed {
		return
	}
	s.armLocked()
}

// Start arms the timer with the current timeout.
func (s *Supervisor) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armLocked()
	s.log.Debug("idle timer started", zap.Duration("timeout", s.timeout))
}

// Stop disarms the timer. A later activity signal arms it again.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
	s.log.Debug("idle timer stopped")
}

// SetTimeout changes the timeout and restarts the countdown with the new
// value, armed or not. While suppression is raised only the value is stored.
func (s *Supervisor) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return ErrInvalidTimeout
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
	if !s.suppressed {
		s.armLocked()
	}
	return nil
}

// SetSuppressed raises or lowers suppression. Raising it disarms the timer;
// lowering it leaves the timer disarmed until Start is called.
func (s *Supervisor) SetSuppressed(suppressed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppressed = suppressed
	if suppressed {
		s.disarmLocked()
	}
	s.log.Debug("idle suppression changed", zap.Bool("suppressed", suppressed))
}

// Status is a point-in-time view of the supervisor.
type Status struct {
	TimeoutMS  int64 `json:"timeout_ms"`
	Armed      bool  `json:"armed"`
	Suppressed bool  `json:"suppressed"`
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		TimeoutMS:  s.timeout.Milliseconds(),
		Armed:      s.armed,
		Suppressed: s.suppressed,
	}
}

func (s *Supervisor) Armed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

func (s *Supervisor) Timeout() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeout
}

func (s *Supervisor) armLocked() {
	s.disarmLocked()
	s.generation++
	gen := s.generation
	s.armed = true
	s.timer = s.after(s.timeout, func() { s.fire(gen) })
}

func (s *Supervisor) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.armed = false
	// invalidate a fire that already left the timer
	s.generation++
}

func (s *Supervisor) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || !s.armed {
		s.mu.Unlock()
		return
	}
	s.armed = false
	s.timer = nil
	if s.suppressed {
		s.mu.Unlock()
		s.log.Info("idle fire dropped while suppressed")
		return
	}
	timeout := s.timeout
	s.mu.Unlock()

	s.log.Info("idle timeout reached, resetting kiosk", zap.Duration("timeout", timeout))
	s.metrics.IncIdleFires()
	s.emit.Emit(events.Idle())

	if s.reset == nil {
		return
	}
	if err := s.reset.Reset(context.Background()); err != nil {
		s.log.Warn("idle reset finished with errors", zap.Error(err))
	}
}
