package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/store"
	"github.com/roach88/rdsquote/internal/testutil"
	"github.com/roach88/rdsquote/internal/value"
)

// Harness runs one scenario against a real controller.
//
// Time is a ManualScheduler, the backend is a scripted transport and the
// session lives in an ephemeral SQLite store, so traces are reproducible.
type Harness struct {
	scenario  *Scenario
	store     *store.Store
	session   *store.SessionStore
	transport *testutil.FakeTransport
	scheduler *testutil.ManualScheduler
	ctrl      *controller.Controller
	logger    *slog.Logger

	mu        sync.Mutex
	trace     []TraceEvent
	responses []Response
	failures  []string
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Open a fresh in-memory session store and seed the saved snapshot
// 2. Build the scripted transport and a controller on a manual clock
// 3. Execute steps, waiting for round trips after every advance
// 4. Capture the end state, close the controller
// 5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.store.Close()

	ctx := context.Background()
	result := NewResult()

	closed := false
	for i, step := range scenario.Steps {
		err := h.execute(ctx, step)
		if step.Close {
			closed = true
		}
		switch {
		case step.ExpectError && err == nil:
			result.AddError(fmt.Sprintf("steps[%d]: expected an error, got none", i))
		case !step.ExpectError && err != nil:
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		}
	}

	if err := h.captureState(ctx, result); err != nil {
		return nil, err
	}
	if !closed {
		_ = h.ctrl.Close()
	}

	h.mu.Lock()
	result.Trace = append(result.Trace, h.trace...)
	for _, f := range h.failures {
		result.AddError(f)
	}
	h.mu.Unlock()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	cats := make([]*catalog.Catalog, 0, len(scenario.Catalogs))
	for i, spec := range scenario.Catalogs {
		cat, err := spec.Build()
		if err != nil {
			return nil, fmt.Errorf("catalogs[%d]: %w", i, err)
		}
		cats = append(cats, cat)
	}

	st, err := store.OpenEphemeral()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h := &Harness{
		scenario:  scenario,
		store:     st,
		session:   st.Session(scenario.Name),
		transport: testutil.NewFakeTransport(cats...),
		scheduler: testutil.NewManualScheduler(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		responses: append([]Response(nil), scenario.Responses...),
	}
	if scenario.CatalogError != "" {
		h.transport.CatalogErr = errors.New(scenario.CatalogError)
	}
	h.transport.PriceFunc = h.price

	if scenario.Saved != nil {
		inputs, lastValid, err := scenario.Saved.InputSets()
		if err != nil {
			st.Close()
			return nil, err
		}
		saved := controller.SessionState{
			Inputs:    inputs,
			LastValid: lastValid,
			Version:   catalog.Version(scenario.Saved.Version),
		}
		if err := h.session.Save(context.Background(), saved); err != nil {
			st.Close()
			return nil, fmt.Errorf("seed saved state: %w", err)
		}
	}

	opts := []controller.Option{
		controller.WithScheduler(h.scheduler),
		controller.WithPersister(h.session),
		controller.WithRequestLog(h),
		controller.WithLogger(h.logger),
	}
	if scenario.Policy != nil {
		opts = append(opts, controller.WithPolicy(*scenario.Policy))
	}
	h.ctrl = controller.New(tracingTransport{h}, opts...)
	h.ctrl.Subscribe(h.onEvent)
	return h, nil
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	var (
		ev  TraceEvent
		err error
	)
	switch {
	case step.Start:
		ev = TraceEvent{Type: TraceStart}
		h.append(ev)
		err = h.ctrl.Start(ctx)
	case step.Set != nil:
		ev = TraceEvent{Type: TraceSet, Field: step.Set.Field, Value: step.Set.Value}
		h.append(ev)
		err = h.ctrl.SetField(catalog.FieldID(step.Set.Field), step.Set.Value)
	case step.Advance != "":
		d := controller.DefaultDebounce
		if step.Advance != "debounce" {
			d, _ = time.ParseDuration(step.Advance)
		}
		h.append(TraceEvent{Type: TraceAdvance, Value: d.String()})
		h.scheduler.Advance(d)
		h.ctrl.Wait()
	case step.Reset:
		h.append(TraceEvent{Type: TraceReset})
		err = h.ctrl.ResetToDefaults()
	case step.Close:
		h.append(TraceEvent{Type: TraceClose})
		err = h.ctrl.Close()
	}
	return err
}

func (h *Harness) append(ev TraceEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = append(h.trace, ev)
}

func (h *Harness) fail(format string, args ...any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failures = append(h.failures, fmt.Sprintf(format, args...))
}

// onEvent traces every controller event except state changes.
func (h *Harness) onEvent(ev controller.Event) {
	if ev.Kind == controller.EventStateChanged {
		return
	}
	te := TraceEvent{
		Type:    ev.Kind.String(),
		Seq:     ev.Seq,
		Field:   string(ev.Field),
		Version: string(ev.Version),
		Message: ev.Message,
	}
	if ev.Value != nil {
		te.Value = ev.Value.String()
	}
	if ev.Result != nil {
		te.Grand = ev.Result.Totals.Grand.String()
	}
	h.append(te)
}

// Record implements controller.RequestLog: it traces the record and stores it.
func (h *Harness) Record(ctx context.Context, r controller.RequestRecord) error {
	h.append(TraceEvent{
		Type:    TraceRecord,
		Seq:     r.Seq,
		Field:   r.Field,
		Version: string(r.Version),
		Outcome: string(r.Outcome),
		Retry:   r.Retry,
	})
	return h.session.Record(ctx, r)
}

// price answers a price call from the scripted responses.
func (h *Harness) price(_ context.Context, call testutil.PriceCall) (*api.PriceResult, error) {
	ev := TraceEvent{Type: TracePrice, Version: string(call.Version)}
	if data, err := value.MarshalCanonical(call.Inputs); err == nil {
		ev.Inputs = string(data)
	}
	h.append(ev)

	h.mu.Lock()
	if len(h.responses) == 0 {
		h.mu.Unlock()
		h.fail("price request %d has no scripted response", len(h.transport.Calls()))
		return nil, &api.StatusError{Method: http.MethodPost, Path: "/api/price", Status: http.StatusInternalServerError, Detail: "unscripted"}
	}
	r := h.responses[0]
	h.responses = h.responses[1:]
	h.mu.Unlock()

	switch {
	case r.Reject != nil:
		return nil, &api.FieldRejectedError{Field: r.Reject.Field, Message: r.Reject.Message}
	case r.Conflict != "":
		return nil, &api.VersionConflictError{ServerVersion: r.Conflict, Message: "stale catalog"}
	case r.Fail != 0:
		return nil, &api.StatusError{Method: http.MethodPost, Path: "/api/price", Status: r.Fail}
	}

	grand, err := decimal.NewFromString(r.Grand)
	if err != nil {
		h.fail("response grand %q: %v", r.Grand, err)
		grand = decimal.Zero
	}
	version := call.Version
	if r.Version != "" {
		version = catalog.Version(r.Version)
	}
	return &api.PriceResult{
		Base:    grand,
		Totals:  api.Totals{Grand: grand},
		Version: version,
	}, nil
}

// tracingTransport traces catalog fetches made through the fake transport.
type tracingTransport struct {
	h *Harness
}

func (t tracingTransport) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	cat, err := t.h.transport.Catalog(ctx)
	ev := TraceEvent{Type: TraceCatalog}
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Version = string(cat.Version)
	}
	t.h.append(ev)
	return cat, err
}

func (t tracingTransport) Price(ctx context.Context, inputs value.InputSet, version catalog.Version) (*api.PriceResult, error) {
	return t.h.transport.Price(ctx, inputs, version)
}

// captureState flattens the controller and store state into result.
func (h *Harness) captureState(ctx context.Context, result *Result) error {
	s := h.ctrl.Snapshot()
	result.State["version"] = string(s.Version)
	result.State["phase"] = s.Phase.String()
	if s.Result != nil {
		result.State["grand"] = s.Result.Totals.Grand.String()
	}
	flattenInputs(result.State, "inputs", s.Inputs)
	flattenInputs(result.State, "last_valid", s.LastValid)
	for id, msg := range s.Errors {
		result.State["errors."+string(id)] = msg
	}

	stored, ok, err := h.session.Load(ctx)
	if err != nil {
		return fmt.Errorf("load stored session: %w", err)
	}
	if ok {
		result.State["stored.version"] = string(stored.Version)
		flattenInputs(result.State, "stored.inputs", stored.Inputs)
		flattenInputs(result.State, "stored.last_valid", stored.LastValid)
	}

	entries, err := h.store.ListRequests(ctx, h.session.ID(), "")
	if err != nil {
		return fmt.Errorf("list stored requests: %w", err)
	}
	for _, e := range entries {
		result.Outcomes = append(result.Outcomes, string(e.Outcome))
	}
	return nil
}

func flattenInputs(dst map[string]string, prefix string, s value.InputSet) {
	for k, v := range s {
		dst[prefix+"."+string(k)] = v.String()
	}
}
