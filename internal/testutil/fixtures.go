package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/value"
)

// XYCatalog is the two-field catalog used by rollback tests:
// x numeric in {1..5} default 3, y text in {left, right} default "left".
func XYCatalog(version catalog.Version) *catalog.Catalog {
	nums := make([]value.Value, 0, 5)
	for i := int64(1); i <= 5; i++ {
		nums = append(nums, value.NewNumber(i))
	}
	return mustCatalog(version,
		catalog.Field{ID: "x", Label: "X", Options: nums, Default: value.NewNumber(3)},
		catalog.Field{ID: "y", Label: "Y", Options: []value.Value{value.Text("left"), value.Text("right")}, Default: value.Text("left")},
	)
}

// RDSCatalog is a cut-down RDS catalog with one preview-only field, two
// quantity fields and one text field.
func RDSCatalog(version catalog.Version) *catalog.Catalog {
	return mustCatalog(version,
		catalog.Field{
			ID:      catalog.OrientationField,
			Label:   "Infeed Orientation",
			Options: []value.Value{value.Text("Left"), value.Text("Centered"), value.Text("Right")},
			Default: value.Text("Centered"),
		},
		catalog.Field{
			ID:      "sys.spare_parts_qty",
			Label:   "Spare Parts Package",
			Options: []value.Value{value.NewNumber(0), value.NewNumber(1)},
			Default: value.NewNumber(1),
		},
		catalog.Field{
			ID:      "sys.spare_saw_blades_qty",
			Label:   "Spare Saw Blades",
			Options: steps(0, 50, 10),
			Default: value.NewNumber(20),
		},
		catalog.Field{
			ID:      "sys.guarding",
			Label:   "Guarding",
			Options: []value.Value{value.Text("Standard"), value.Text("Tall"), value.Text("Tall w/ Netting")},
			Default: value.Text("Standard"),
		},
	)
}

func steps(from, to, step int64) []value.Value {
	var out []value.Value
	for i := from; i <= to; i += step {
		out = append(out, value.NewNumber(i))
	}
	return out
}

func mustCatalog(version catalog.Version, fields ...catalog.Field) *catalog.Catalog {
	c, err := catalog.New(version, fields...)
	if err != nil {
		panic(fmt.Sprintf("testutil: bad fixture catalog: %v", err))
	}
	return c
}

// PriceResult returns a minimal successful pricing result with the given grand total.
func PriceResult(grand int64, version catalog.Version) *api.PriceResult {
	return &api.PriceResult{
		Base:    decimal.NewFromInt(grand),
		Totals:  api.Totals{Grand: decimal.NewFromInt(grand)},
		Derived: api.Derived{PricePerQty: map[string]decimal.Decimal{}},
		Version: version,
	}
}

// PriceCall is one observed call to FakeTransport.Price.
type PriceCall struct {
	Ctx     context.Context
	Inputs  value.InputSet
	Version catalog.Version
}

// FakeTransport is an in-memory controller.Transport.
//
// Catalog serves Catalogs in order, repeating the last one. Price delegates
// to PriceFunc (a success with grand total 0 when nil).
type FakeTransport struct {
	mu           sync.Mutex
	catalogs     []*catalog.Catalog
	catalogCalls int
	calls        []PriceCall

	// CatalogErr, when set, fails every Catalog call after the first.
	CatalogErr error

	// PriceFunc answers Price calls. It runs without the transport lock.
	PriceFunc func(ctx context.Context, call PriceCall) (*api.PriceResult, error)
}

// NewFakeTransport serves the given catalogs.
func NewFakeTransport(catalogs ...*catalog.Catalog) *FakeTransport {
	return &FakeTransport{catalogs: catalogs}
}

// Catalog returns the next catalog in line.
func (f *FakeTransport) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.catalogCalls++
	if f.CatalogErr != nil && f.catalogCalls > 1 {
		return nil, f.CatalogErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.catalogs) == 0 {
		return nil, fmt.Errorf("fake transport: no catalog")
	}
	i := min(f.catalogCalls-1, len(f.catalogs)-1)
	return f.catalogs[i], nil
}

// Price records the call and delegates to PriceFunc.
func (f *FakeTransport) Price(ctx context.Context, inputs value.InputSet, version catalog.Version) (*api.PriceResult, error) {
	call := PriceCall{Ctx: ctx, Inputs: inputs.Clone(), Version: version}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	fn := f.PriceFunc
	f.mu.Unlock()

	if fn == nil {
		return PriceResult(0, version), nil
	}
	return fn(ctx, call)
}

// SetPriceFunc replaces PriceFunc while round trips may be running.
func (f *FakeTransport) SetPriceFunc(fn func(ctx context.Context, call PriceCall) (*api.PriceResult, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PriceFunc = fn
}

// Calls returns a copy of the recorded Price calls.
func (f *FakeTransport) Calls() []PriceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PriceCall(nil), f.calls...)
}

// CatalogCalls returns how many times Catalog was called.
func (f *FakeTransport) CatalogCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalogCalls
}

// MemoryPersister keeps the session state in memory.
type MemoryPersister struct {
	mu    sync.Mutex
	state controller.SessionState
	saved bool
	saves int
}

// NewMemoryPersister starts empty, or pre-loaded when initial is non-nil.
func NewMemoryPersister(initial *controller.SessionState) *MemoryPersister {
	p := &MemoryPersister{}
	if initial != nil {
		p.state = *initial
		p.saved = true
	}
	return p
}

// Save stores s.
func (p *MemoryPersister) Save(_ context.Context, s controller.SessionState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = controller.SessionState{
		Inputs:    s.Inputs.Clone(),
		LastValid: s.LastValid.Clone(),
		Version:   s.Version,
	}
	p.saved = true
	p.saves++
	return nil
}

// Load returns the stored state.
func (p *MemoryPersister) Load(context.Context) (controller.SessionState, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.saved, nil
}

// Saves returns how many times Save was called.
func (p *MemoryPersister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// RequestRecorder is an in-memory controller.RequestLog.
type RequestRecorder struct {
	mu      sync.Mutex
	records []controller.RequestRecord
}

// Record appends r.
func (l *RequestRecorder) Record(_ context.Context, r controller.RequestRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, r)
	return nil
}

// Records returns a copy of the recorded entries in arrival order.
func (l *RequestRecorder) Records() []controller.RequestRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]controller.RequestRecord(nil), l.records...)
}
