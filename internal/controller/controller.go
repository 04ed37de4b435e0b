package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// DefaultDebounce coalesces bursts of edits (e.g. stepper clicks) into one request.
const DefaultDebounce = 150 * time.Millisecond

var (
	// ErrNotStarted is returned by edits before Start has loaded a catalog.
	ErrNotStarted = errors.New("controller not started")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("controller already started")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("controller closed")
)

// Phase is the request pipeline's position.
type Phase int

const (
	// PhaseIdle means no timer is armed and nothing is in flight.
	PhaseIdle Phase = iota
	// PhasePending means the debounce timer is armed. A request may also be
	// in flight; it will be cancelled when the timer fires.
	PhasePending
	// PhaseInFlight means a request (or its catalog refetch) is outstanding.
	PhaseInFlight
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseInFlight:
		return "inflight"
	default:
		return "idle"
	}
}

// FieldID aliases catalog.FieldID.
type FieldID = catalog.FieldID

// Option configures a Controller.
type Option func(*Controller)

// WithPersister sets the session storage. Default: none.
func WithPersister(p Persister) Option {
	return func(c *Controller) {
		c.persister = p
	}
}

// WithRequestLog sets the request log. Default: none.
func WithRequestLog(l RequestLog) Option {
	return func(c *Controller) {
		c.requests = l
	}
}

// WithScheduler replaces the debounce scheduler (tests use a manual one).
func WithScheduler(s Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

// WithDebounce sets the debounce delay. Default: DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(c *Controller) {
		c.debounce = d
	}
}

// WithPolicy sets which fields drive pricing. Default: catalog.DefaultPolicy().
func WithPolicy(p catalog.Policy) Option {
	return func(c *Controller) {
		c.policy = p
	}
}

// WithClock sets the request sequence clock, e.g. NewClockAt(lastSeq) when
// resuming a session.
func WithClock(clock *Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller is the pricing request controller for one quote session.
//
// Thread-safety: all methods are safe for concurrent use.
//
// INVARIANTS (held whenever mu is released):
//   - every key in inputs is also in lastValid
//   - at most one pending request; its seq is the only one whose
//     completion may be applied
//   - at most one armed debounce timer; only the callback carrying the
//     current timerGen may fire a request
type Controller struct {
	transport Transport
	persister Persister
	requests  RequestLog
	scheduler Scheduler
	policy    catalog.Policy
	debounce  time.Duration
	clock     *Clock
	logger    *slog.Logger

	// ctx parents every request context; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	started    bool
	closed     bool
	catalog    *catalog.Catalog
	version    catalog.Version
	inputs     value.InputSet
	lastValid  value.InputSet
	errors     map[FieldID]string
	result     *api.PriceResult
	pending    *pendingRequest
	timer      Timer
	timerGen   uint64
	idle       chan struct{}
	idleClosed bool
	subs       []subscriber
	nextSubID  int

	events    *eventQueue
	deliverMu sync.Mutex
	wg        sync.WaitGroup
}

type subscriber struct {
	id int
	fn func(Event)
}

// New creates a controller that prices through t. Call Start before editing.
func New(t Transport, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)

	c := &Controller{
		transport:  t,
		persister:  nopPersister{},
		requests:   nopRequestLog{},
		scheduler:  SystemScheduler{},
		policy:     catalog.DefaultPolicy(),
		debounce:   DefaultDebounce,
		clock:      NewClock(),
		logger:     slog.Default(),
		ctx:        ctx,
		cancel:     cancel,
		errors:     make(map[FieldID]string),
		idle:       idle,
		idleClosed: true,
		events:     newEventQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start fetches the catalog, rehydrates the persisted session against it and
// schedules an initial pricing request.
func (c *Controller) Start(ctx context.Context) error {
	cat, err := c.transport.Catalog(ctx)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}

	saved, ok, err := c.persister.Load(ctx)
	if err != nil {
		c.logger.Warn("session snapshot unreadable, using defaults", "error", err)
		ok = false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.catalog = cat
	c.version = cat.Version
	if ok {
		c.inputs = cat.Rehydrate(saved.Inputs)
		c.lastValid = cat.Rehydrate(saved.LastValid)
	} else {
		c.inputs = cat.Defaults()
		c.lastValid = cat.Defaults()
	}

	c.logger.Debug("controller started",
		"version", cat.Version,
		"fields", len(cat.Fields),
		"restored", ok,
	)

	c.persistLocked()
	c.emitLocked(Event{Kind: EventCatalogChanged, Version: cat.Version})
	c.emitLocked(Event{Kind: EventStateChanged})
	c.scheduleLocked()
	c.mu.Unlock()

	c.deliver()
	return nil
}

// SetField normalizes raw for field id and commits it.
//
// A numeric field given non-numeric text is rejected locally: the field error
// is recorded, the committed value is re-emitted as EventFieldRestored, and
// the *catalog.NormalizeError is returned. No request is made.
//
// Otherwise the value is committed, the field's error cleared and the session
// persisted. A pricing request is scheduled unless the policy says the field
// does not drive pricing.
func (c *Controller) SetField(id FieldID, raw string) error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	v, err := c.catalog.Normalize(id, raw)
	if err != nil {
		var ne *catalog.NormalizeError
		msg := err.Error()
		if errors.As(err, &ne) {
			msg = ne.Message()
		}
		c.errors[id] = msg
		if cur, ok := c.inputs[id]; ok {
			c.emitLocked(Event{Kind: EventFieldRestored, Field: id, Value: cur, Message: msg})
		}
		c.emitLocked(Event{Kind: EventStateChanged})
		c.mu.Unlock()

		c.logger.Debug("field rejected locally", "field", id, "raw", raw, "error", msg)
		c.deliver()
		return err
	}

	c.inputs[id] = v
	delete(c.errors, id)
	c.persistLocked()
	c.emitLocked(Event{Kind: EventStateChanged})

	drives := c.policy.Drives(id)
	if drives {
		c.scheduleLocked()
	}
	c.mu.Unlock()

	c.logger.Debug("field committed", "field", id, "value", v.String(), "schedules_request", drives)
	c.deliver()
	return nil
}

// ResetToDefaults replaces inputs and lastValid with catalog defaults, clears
// all field errors, persists and schedules a request.
func (c *Controller) ResetToDefaults() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}

	c.inputs = c.catalog.Defaults()
	c.lastValid = c.catalog.Defaults()
	clear(c.errors)
	c.persistLocked()
	c.emitLocked(Event{Kind: EventStateChanged})
	c.scheduleLocked()
	c.mu.Unlock()

	c.deliver()
	return nil
}

// State is a copy of the controller state for rendering.
type State struct {
	Catalog   *catalog.Catalog
	Version   catalog.Version
	Inputs    value.InputSet
	LastValid value.InputSet
	Errors    map[FieldID]string
	Result    *api.PriceResult
	Phase     Phase
	// InFlightSeq is the pending request's seq, 0 when none.
	InFlightSeq int64
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := State{
		Catalog:   c.catalog,
		Version:   c.version,
		Inputs:    c.inputs.Clone(),
		LastValid: c.lastValid.Clone(),
		Errors:    maps.Clone(c.errors),
		Result:    c.result,
		Phase:     c.phaseLocked(),
	}
	if c.pending != nil {
		s.InFlightSeq = c.pending.seq
	}
	return s
}

// Phase reports the pipeline position. An armed timer wins over an
// in-flight request because the timer will supersede it.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phaseLocked()
}

func (c *Controller) phaseLocked() Phase {
	switch {
	case c.timer != nil:
		return PhasePending
	case c.pending != nil:
		return PhaseInFlight
	default:
		return PhaseIdle
	}
}

// Subscribe registers fn for events. fn runs outside the state lock, one
// event at a time in emission order. The returned func unsubscribes.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.subs = slices.DeleteFunc(c.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Settle blocks until no timer is armed and no request is in flight, or ctx
// is done. Events for the final transition may still be in delivery.
func (c *Controller) Settle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every round trip goroutine has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops the debounce timer, cancels any in-flight request and waits
// for round trips to finish. Further edits return ErrClosed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		c.timerGen++
		if c.pending != nil {
			c.pending.cancel()
			c.pending = nil
		}
		c.cancel()
		c.updateIdleLocked()
	}
	c.mu.Unlock()

	c.wg.Wait()
	c.deliver()
	c.events.Close()
	return nil
}

func (c *Controller) usableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if !c.started {
		return ErrNotStarted
	}
	return nil
}

// persistLocked writes the session state. Storage failures are logged and
// never block editing.
func (c *Controller) persistLocked() {
	s := SessionState{
		Inputs:    c.inputs.Clone(),
		LastValid: c.lastValid.Clone(),
		Version:   c.version,
	}
	if err := c.persister.Save(c.ctx, s); err != nil {
		c.logger.Warn("persist session state", "error", err)
	}
}

func (c *Controller) emitLocked(ev Event) {
	c.events.Enqueue(ev)
}

// updateIdleLocked keeps the Settle channel in step with the phase.
func (c *Controller) updateIdleLocked() {
	busy := c.timer != nil || c.pending != nil
	switch {
	case busy && c.idleClosed:
		c.idle = make(chan struct{})
		c.idleClosed = false
	case !busy && !c.idleClosed:
		close(c.idle)
		c.idleClosed = true
	}
}

// deliver drains the event queue to subscribers. It must be called without
// mu held. A nested call from inside a subscriber returns immediately and
// the outer drain picks up its events.
func (c *Controller) deliver() {
	for {
		if !c.deliverMu.TryLock() {
			return
		}
		for {
			ev, ok := c.events.TryDequeue()
			if !ok {
				break
			}
			c.mu.Lock()
			subs := slices.Clone(c.subs)
			c.mu.Unlock()
			for _, s := range subs {
				s.fn(ev)
			}
		}
		c.deliverMu.Unlock()

		if c.events.Len() == 0 {
			return
		}
	}
}
