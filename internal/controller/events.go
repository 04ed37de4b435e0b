package controller

import (
	"sync"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// EventKind distinguishes what a subscriber is being told.
type EventKind int

const (
	// EventStateChanged means inputs, errors or phase changed. Re-read Snapshot.
	EventStateChanged EventKind = iota + 1
	// EventFieldRestored carries the value a field's control must show again
	// after a local rejection or a server-side rollback.
	EventFieldRestored
	// EventRequestSent means a pricing request was issued.
	EventRequestSent
	// EventPriced carries a new pricing result.
	EventPriced
	// EventCatalogChanged means a catalog was adopted (at start or after a
	// version conflict).
	EventCatalogChanged
	// EventNotice carries a transient, non-blocking message.
	EventNotice
)

func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventFieldRestored:
		return "field_restored"
	case EventRequestSent:
		return "request_sent"
	case EventPriced:
		return "priced"
	case EventCatalogChanged:
		return "catalog_changed"
	case EventNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Event is one notification to subscribers. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind    EventKind
	Seq     int64 // request seq for EventRequestSent and EventPriced
	Field   catalog.FieldID
	Value   value.Value
	Message string
	Version catalog.Version
	Result  *api.PriceResult
}

// eventQueue is a thread-safe FIFO of events awaiting delivery.
//
// The controller enqueues while holding its mutex and drains after
// releasing it, so subscribers never run under the state lock.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	return true
}

// TryDequeue removes and returns the front event without blocking.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Nil out the slot so the result and values can be collected.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events. Queued events can still be dequeued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
