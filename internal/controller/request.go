package controller

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

// Notices shown for failures that leave the inputs untouched.
const (
	NoticeCatalogStale  = "The option catalog changed on the server and could not be refreshed. Reload to continue."
	NoticePricingFailed = "Pricing is temporarily unavailable. Your selections are kept."
)

// pendingRequest is the single request allowed in flight.
type pendingRequest struct {
	seq     int64
	cancel  context.CancelFunc
	retry   bool
	inputs  value.InputSet
	version catalog.Version
}

// scheduleLocked re-arms the debounce timer. A callback from a replaced
// timer that already started running sees a stale generation and does nothing.
func (c *Controller) scheduleLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerGen++
	gen := c.timerGen
	c.timer = c.scheduler.AfterFunc(c.debounce, func() { c.fire(gen) })
	c.updateIdleLocked()
}

// fire is the debounce timer callback.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	launch := c.sendLocked(false)
	c.mu.Unlock()

	c.deliver()
	launch()
}

// sendLocked cancels the pending request, if any, and prepares a new one
// carrying the full InputSet and believed version. The returned func starts
// the round trip and must be called after mu is released.
func (c *Controller) sendLocked(retry bool) (launch func()) {
	if prev := c.pending; prev != nil {
		prev.cancel()
		c.logger.Debug("price request superseded", "seq", prev.seq)
	}

	ctx, cancel := context.WithCancel(c.ctx)
	p := &pendingRequest{
		seq:     c.clock.Next(),
		cancel:  cancel,
		retry:   retry,
		inputs:  c.inputs.Clone(),
		version: c.version,
	}
	c.pending = p
	c.updateIdleLocked()
	c.emitLocked(Event{Kind: EventRequestSent, Seq: p.seq, Version: p.version})

	c.logger.Debug("price request sent", "seq", p.seq, "version", p.version, "retry", retry)

	c.wg.Add(1)
	return func() {
		go c.roundTrip(ctx, p)
	}
}

func (c *Controller) roundTrip(ctx context.Context, p *pendingRequest) {
	defer c.wg.Done()

	res, err := c.transport.Price(ctx, p.inputs, p.version)
	c.complete(ctx, p, res, err)
}

// complete applies a finished round trip if p is still the pending request.
func (c *Controller) complete(ctx context.Context, p *pendingRequest, res *api.PriceResult, err error) {
	c.mu.Lock()
	if c.pending != p {
		c.mu.Unlock()
		c.logger.Debug("price response dropped", "seq", p.seq)
		c.record(p, OutcomeSuperseded, nil)
		return
	}

	var (
		fe *api.FieldRejectedError
		ve *api.VersionConflictError
	)
	outcome := OutcomeFailed

	switch {
	case err == nil:
		c.applyResultLocked(p, res)
		outcome = OutcomePriced

	case errors.As(err, &ve):
		if !p.retry && catalog.Version(ve.ServerVersion) != p.version {
			// Keep p pending through the refetch so a newer edit can still
			// supersede it.
			c.mu.Unlock()
			c.logger.Info("catalog version moved, refetching",
				"seq", p.seq,
				"believed", p.version,
				"server", ve.ServerVersion,
			)
			c.record(p, OutcomeVersionConflict, err)
			c.refetchAndRetry(ctx, p)
			return
		}
		c.clearPendingLocked()
		c.emitLocked(Event{Kind: EventNotice, Message: NoticeCatalogStale})
		c.emitLocked(Event{Kind: EventStateChanged})
		outcome = OutcomeVersionConflict
		c.logger.Warn("catalog conflict unresolved",
			"seq", p.seq,
			"believed", p.version,
			"server", ve.ServerVersion,
			"retry", p.retry,
		)

	case errors.As(err, &fe):
		c.clearPendingLocked()
		c.rollbackLocked(FieldID(fe.Field), fe.Message)
		outcome = OutcomeFieldRejected

	default:
		c.clearPendingLocked()
		c.emitLocked(Event{Kind: EventNotice, Message: NoticePricingFailed})
		c.emitLocked(Event{Kind: EventStateChanged})
		c.logger.Warn("price request failed", "seq", p.seq, "error", err)
	}
	c.mu.Unlock()

	c.deliver()
	c.record(p, outcome, err)
}

// refetchAndRetry adopts the server's current catalog and re-sends once.
func (c *Controller) refetchAndRetry(ctx context.Context, p *pendingRequest) {
	cat, err := c.transport.Catalog(ctx)

	c.mu.Lock()
	if c.pending != p {
		c.mu.Unlock()
		return
	}
	c.clearPendingLocked()

	if err != nil {
		c.emitLocked(Event{Kind: EventNotice, Message: NoticeCatalogStale})
		c.emitLocked(Event{Kind: EventStateChanged})
		c.mu.Unlock()

		c.logger.Warn("catalog refetch failed", "seq", p.seq, "error", err)
		c.deliver()
		return
	}

	c.adoptCatalogLocked(cat)
	launch := c.sendLocked(true)
	c.mu.Unlock()

	c.deliver()
	launch()
}

// applyResultLocked commits a successful response. The whole of inputs is
// confirmed, including edits made while the request was in flight.
func (c *Controller) applyResultLocked(p *pendingRequest, res *api.PriceResult) {
	c.clearPendingLocked()
	if res.Version != "" {
		c.version = res.Version
	}
	c.result = res
	c.lastValid = c.inputs.Clone()
	clear(c.errors)
	c.persistLocked()
	c.emitLocked(Event{Kind: EventPriced, Seq: p.seq, Version: c.version, Result: res})
	c.emitLocked(Event{Kind: EventStateChanged})
}

// rollbackLocked restores exactly one field to its last confirmed value
// (or the catalog default) after a server rejection.
func (c *Controller) rollbackLocked(id FieldID, msg string) {
	if msg == "" {
		msg = "rejected by server"
	}

	restored, ok := c.lastValid[id]
	if !ok {
		restored, ok = c.catalog.Default(id)
	}
	if ok {
		c.inputs[id] = restored
		if _, known := c.lastValid[id]; !known {
			c.lastValid[id] = restored
		}
		c.emitLocked(Event{Kind: EventFieldRestored, Field: id, Value: restored, Message: msg})
	}
	c.errors[id] = msg

	label := string(id)
	if f, found := c.catalog.Field(id); found && f.Label != "" {
		label = f.Label
	}
	c.persistLocked()
	c.emitLocked(Event{Kind: EventNotice, Field: id, Message: fmt.Sprintf("%s: %s", label, msg)})
	c.emitLocked(Event{Kind: EventStateChanged})

	c.logger.Info("field rolled back", "field", id, "message", msg)
}

// adoptCatalogLocked switches to cat and rehydrates both InputSets against
// it. Errors for fields the catalog no longer declares are dropped.
func (c *Controller) adoptCatalogLocked(cat *catalog.Catalog) {
	c.catalog = cat
	c.version = cat.Version
	c.inputs = cat.Rehydrate(c.inputs)
	c.lastValid = cat.Rehydrate(c.lastValid)
	for id := range c.errors {
		if _, ok := cat.Field(id); !ok {
			delete(c.errors, id)
		}
	}
	c.persistLocked()
	c.emitLocked(Event{Kind: EventCatalogChanged, Version: cat.Version})
}

func (c *Controller) clearPendingLocked() {
	if c.pending != nil {
		c.pending.cancel()
		c.pending = nil
	}
	c.updateIdleLocked()
}

// record appends to the request log. Log failures never affect pricing.
func (c *Controller) record(p *pendingRequest, outcome Outcome, err error) {
	hash, herr := value.Hash(p.inputs)
	if herr != nil {
		c.logger.Warn("hash request inputs", "seq", p.seq, "error", herr)
	}

	rec := RequestRecord{
		Seq:        p.seq,
		Version:    p.version,
		InputsHash: hash,
		Outcome:    outcome,
		Retry:      p.retry,
	}
	var (
		fe *api.FieldRejectedError
		se *api.StatusError
	)
	if errors.As(err, &fe) {
		rec.Field = fe.Field
	}
	if errors.As(err, &se) {
		rec.Status = se.Status
	}
	if err != nil {
		rec.Detail = err.Error()
	}

	if lerr := c.requests.Record(context.Background(), rec); lerr != nil {
		c.logger.Warn("record price request", "seq", p.seq, "error", lerr)
	}
}
