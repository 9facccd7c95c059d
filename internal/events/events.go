// Package events defines the messages a search run emits to its host and
// the sinks that deliver them.
package events

import (
	"sync"

	"github.com/akimixu/mksearch/internal/models"
)

// Type names one kind of host-bound message.
type Type string

const (
	TypeStart            Type = "searchStart"
	TypeProgress         Type = "searchProgress"
	TypeResultItem       Type = "searchResultItem"
	TypeComplete         Type = "searchComplete"
	TypeStopped          Type = "searchStopped"
	TypeError            Type = "error"
	TypeWorkspaceChanged Type = "workspace.changed"
)

// Terminal reports whether t ends a run.
func (t Type) Terminal() bool {
	return t == TypeComplete || t == TypeStopped || t == TypeError
}

// BatchProgress accompanies searchProgress after each batch.
type BatchProgress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
	Found     int `json:"found"`
}

// ResultProgress accompanies each searchResultItem.
type ResultProgress struct {
	Current    int `json:"current"`
	Processed  int `json:"processed"`
	TotalFiles int `json:"totalFiles"`
}

// Event is one host-bound message. Only the fields relevant to Type are set.
type Event struct {
	Type     Type                `json:"type"`
	Message  string              `json:"message,omitempty"`
	Data     *models.MatchResult `json:"data,omitempty"`
	Progress any                 `json:"progress,omitempty"`
	// Epoch identifies the run that produced the event. Zero for events
	// not tied to a run.
	Epoch uint64 `json:"epoch,omitempty"`
}

// Start builds a searchStart event.
func Start(message string) Event { return Event{Type: TypeStart, Message: message} }

// Progress builds a per-batch searchProgress event.
func Progress(message string, p BatchProgress) Event {
	return Event{Type: TypeProgress, Message: message, Progress: p}
}

// Result builds a searchResultItem event.
func Result(r *models.MatchResult, p ResultProgress) Event {
	return Event{Type: TypeResultItem, Data: r, Progress: p}
}

// Complete builds a searchComplete event.
func Complete(message string) Event { return Event{Type: TypeComplete, Message: message} }

// Stopped builds a searchStopped event.
func Stopped(message string) Event { return Event{Type: TypeStopped, Message: message} }

// Error builds an error event.
func Error(message string) Event { return Event{Type: TypeError, Message: message} }

// Sink receives events. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit calls f(e).
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Multi fans one event out to several sinks in order.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}

// Recorder keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends e.
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	evs := r.Events()
	out := make([]Type, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

// Results returns the payloads of recorded searchResultItem events.
func (r *Recorder) Results() []*models.MatchResult {
	var out []*models.MatchResult
	for _, e := range r.Events() {
		if e.Type == TypeResultItem {
			out = append(out, e.Data)
		}
	}
	return out
}

// ChanSink delivers events on a channel. Emit blocks until the event is
// received or the sink is closed, after which events are dropped.
type ChanSink struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewChanSink returns a ChanSink with the given channel buffer.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{ch: make(chan Event, buffer), done: make(chan struct{})}
}

// Emit sends e unless the sink is closed.
func (c *ChanSink) Emit(e Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.ch <- e:
	case <-c.done:
	}
}

// C is the receive side. It is never closed.
func (c *ChanSink) C() <-chan Event { return c.ch }

// Done is closed by Close.
func (c *ChanSink) Done() <-chan struct{} { return c.done }

// Close unblocks pending and future Emit calls.
func (c *ChanSink) Close() {
	c.once.Do(func() { close(c.done) })
}
