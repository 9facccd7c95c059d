// Package session enforces single-flight searches on a shared event sink.
//
// Each Start opens a new run with a larger epoch. Events are forwarded
// through the run, which drops anything emitted after the run was stopped,
// finished or superseded, so a sink sees exactly one terminal event per run.
//
// Accepted events go through an ordered outbox and reach the sink without
// the session lock held. A slow sink delays delivery but never blocks Stop,
// Start or State.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/akimixu/mksearch/internal/events"
)

// DefaultGrace is how long Start waits for a superseded run to unwind.
const DefaultGrace = 100 * time.Millisecond

const stoppedMessage = "Search stopped by user"

// State is a point-in-time view of the session.
type State struct {
	IsSearching bool   `json:"isSearching"`
	ShouldStop  bool   `json:"shouldStop"`
	Epoch       uint64 `json:"epoch"`
}

// Session owns the running/stop flags for one event sink.
type Session struct {
	sink   events.Sink
	grace  time.Duration
	logger *slog.Logger

	startMu sync.Mutex // serializes Start
	mu      sync.Mutex // guards epoch, active, run flags and the outbox
	epoch   uint64
	active  *Run

	outbox   []events.Event
	draining bool
}

// Option configures a Session.
type Option func(*Session)

// WithGrace sets the supersede wait. Default is DefaultGrace.
func WithGrace(d time.Duration) Option {
	return func(s *Session) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a session that forwards run events into sink.
func New(sink events.Sink, opts ...Option) *Session {
	if sink == nil {
		sink = events.Discard
	}
	s := &Session{sink: sink, grace: DefaultGrace, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run is one search invocation. It implements events.Sink.
type Run struct {
	session  *Session
	epoch    uint64
	ctx      context.Context
	cancel   context.CancelFunc
	finished chan struct{}
	once     sync.Once

	// guarded by session.mu
	done          bool
	stopRequested bool
}

// Start begins a new run derived from parent. A run still active is asked to
// stop and given up to the grace interval to unwind; if it has not emitted
// its own terminal event by then, searchStopped is emitted on its behalf.
func (s *Session) Start(parent context.Context) *Run {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	prev := s.active
	if prev != nil && !prev.done {
		prev.stopRequested = true
		prev.cancel()
	}
	s.mu.Unlock()

	if prev != nil {
		timer := time.NewTimer(s.grace)
		select {
		case <-prev.finished:
		case <-timer.C:
			s.logger.Debug("superseded run still unwinding", slog.Uint64("epoch", prev.epoch))
		}
		timer.Stop()
	}

	s.mu.Lock()
	if prev != nil && !prev.done {
		prev.done = true
		s.enqueueLocked(prev, events.Stopped(stoppedMessage))
	}
	s.epoch++
	ctx, cancel := context.WithCancel(parent)
	r := &Run{session: s, epoch: s.epoch, ctx: ctx, cancel: cancel, finished: make(chan struct{})}
	s.active = r
	s.mu.Unlock()

	s.flush()
	return r
}

// Stop requests the active run to stop and emits searchStopped right away.
// It reports whether a run was active.
func (s *Session) Stop() bool {
	s.mu.Lock()
	r := s.active
	if r == nil || r.done {
		s.mu.Unlock()
		return false
	}
	r.stopRequested = true
	r.done = true
	r.cancel()
	s.enqueueLocked(r, events.Stopped(stoppedMessage))
	s.mu.Unlock()

	s.flush()
	return true
}

// State reports whether a search is running, whether it was asked to stop
// and the current epoch.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Epoch: s.epoch}
	if r := s.active; r != nil {
		st.IsSearching = !r.done
		st.ShouldStop = r.stopRequested
	}
	return st
}

// Epoch returns the epoch of the latest run.
func (s *Session) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Session) enqueueLocked(r *Run, e events.Event) {
	e.Epoch = r.epoch
	s.outbox = append(s.outbox, e)
}

// flush delivers queued events in order. Only one goroutine delivers at a
// time; a caller that finds delivery in progress returns at once and leaves
// its events to the active deliverer.
func (s *Session) flush() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		for _, e := range batch {
			s.sink.Emit(e)
		}
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// Context is cancelled when the run is stopped or superseded.
func (r *Run) Context() context.Context { return r.ctx }

// Epoch identifies the run.
func (r *Run) Epoch() uint64 { return r.epoch }

// Emit forwards e unless the run already ended or was superseded.
func (r *Run) Emit(e events.Event) {
	s := r.session
	s.mu.Lock()
	if r.done || s.active != r {
		s.mu.Unlock()
		return
	}
	if e.Type.Terminal() {
		r.done = true
	}
	s.enqueueLocked(r, e)
	s.mu.Unlock()

	s.flush()
}

// Finish marks the run's work as returned. If no terminal event was emitted
// an error event is produced so the sink never sees an open run.
func (r *Run) Finish() {
	r.once.Do(func() {
		s := r.session
		s.mu.Lock()
		if !r.done && s.active == r {
			r.done = true
			s.enqueueLocked(r, events.Error("Search ended unexpectedly"))
		}
		r.done = true
		s.mu.Unlock()
		s.flush()
		r.cancel()
		close(r.finished)
	})
}

// Done is closed once Finish was called.
func (r *Run) Done() <-chan struct{} { return r.finished }
