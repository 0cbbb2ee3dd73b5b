// Package progress reports harvesting runs as they happen.
package progress

import (
	"sync"
	"time"
)

// Kind of a progress event.
type Kind int

const (
	SiteQueued Kind = iota
	SiteStarted
	PageFetched
	SiteFinished
)

func (k Kind) String() string {
	switch k {
	case SiteQueued:
		return "queued"
	case SiteStarted:
		return "started"
	case PageFetched:
		return "page"
	case SiteFinished:
		return "finished"
	}
	return "unknown"
}

// Event describes one step of a run.
type Event struct {
	Kind   Kind
	Site   string
	Worker int
	At     time.Time

	// Bound is the most pages the site will visit.
	Bound int

	// Page fields, set for PageFetched.
	Page      int
	URL       string
	Label     string
	Cards     int
	Added     int
	Blocked   bool
	Signature string
	Exhausted bool
	Attempts  int

	// Total is the site's unique record count so far.
	Total int
	// Err is set on SiteFinished when the session ended early.
	Err error
}

// Observer receives events. Implementations must be safe for concurrent
// use; sessions for different sites report from their own goroutines.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type fanout []Observer

// Fanout delivers every event to each non-nil observer in order.
func Fanout(observers ...Observer) Observer {
	var f fanout
	for _, o := range observers {
		if o != nil {
			f = append(f, o)
		}
	}
	return f
}

func (f fanout) Observe(e Event) {
	for _, o := range f {
		o.Observe(e)
	}
}

// Recorder keeps every event. Useful in tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
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

// Kinds filters the recorded events by kind.
func (r *Recorder) Kinds(k Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
