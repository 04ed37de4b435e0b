package render

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/store"
	"github.com/roach88/rdsquote/internal/value"
)

// Renderer writes human-readable views to w.
//
// Thread-safety: methods serialize writes, so a Renderer may be subscribed to
// a controller while the caller also writes through it.
type Renderer struct {
	mu sync.Mutex
	w  io.Writer
	f  Formatter
}

// New creates a Renderer using US English money formatting.
func New(w io.Writer) *Renderer {
	return &Renderer{w: w, f: NewFormatter(language.AmericanEnglish)}
}

// Formatter returns the renderer's formatter.
func (r *Renderer) Formatter() Formatter {
	return r.f
}

func (r *Renderer) printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

// Line writes one line of free text, serialized with event output.
func (r *Renderer) Line(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s\n", msg)
}

// Event renders one controller event. Priced events print the result;
// state changes and sent requests print nothing.
func (r *Renderer) Event(ev controller.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case controller.EventNotice:
		r.printf("! %s\n", ev.Message)
	case controller.EventFieldRestored:
		r.printf("  %s restored to %s (%s)\n", ev.Field, ev.Value, ev.Message)
	case controller.EventCatalogChanged:
		r.printf("Catalog %s loaded\n", ev.Version)
	case controller.EventPriced:
		r.price(ev.Result)
	}
}

// Price renders a pricing result.
func (r *Renderer) Price(res *api.PriceResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.price(res)
}

func (r *Renderer) price(res *api.PriceResult) {
	if res == nil {
		r.printf("No pricing yet\n")
		return
	}
	r.printf("%-16s %16s\n", "Base price", r.f.Money(res.Base))
	r.printf("%-16s %16s\n", "Options", r.f.Money(res.Totals.Options))
	r.printf("%-16s %16s\n", "Margin", r.f.Percent(res.Totals.Margin))
	r.printf("%-16s %16s\n", "Grand total", r.f.Money(res.Totals.Grand))

	if len(res.Options) > 0 {
		r.printf("\nOptions:\n")
		for _, o := range res.Options {
			r.printf("  %-28s %4s x %12s = %12s\n",
				o.Label, r.f.Number(o.Qty), r.f.Money(o.Unit), r.f.Money(o.Extended))
		}
	}

	if len(res.Derived.PricePerQty) > 0 {
		keys := make([]string, 0, len(res.Derived.PricePerQty))
		for k := range res.Derived.PricePerQty {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		r.printf("\nPer unit:\n")
		for _, k := range keys {
			r.printf("  %-28s %12s\n", k, r.f.Money(res.Derived.PricePerQty[k]))
		}
	}
}

// State renders the current inputs, field errors and pricing result.
func (r *Renderer) State(st controller.State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("Catalog %s, %s\n\n", st.Version, st.Phase)
	if st.Catalog != nil {
		r.fields(st.Catalog, st.Inputs, st.Errors)
	}
	r.printf("\n")
	r.price(st.Result)
}

// Catalog renders every field with its options and default.
func (r *Renderer) Catalog(cat *catalog.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("Catalog %s", cat.Version)
	if cat.UpdatedAt != "" {
		r.printf(" (updated %s)", cat.UpdatedAt)
	}
	r.printf("\n\n")
	for _, f := range cat.Fields {
		opts := make([]string, len(f.Options))
		for i, o := range f.Options {
			opts[i] = o.String()
		}
		r.printf("%s  %s [%s]\n", f.ID, f.Label, f.Kind)
		r.printf("    options: %s\n", strings.Join(opts, " | "))
		r.printf("    default: %s\n", f.Default)
		if f.Tooltip != "" {
			r.printf("    %s\n", f.Tooltip)
		}
	}
}

// fields lists each catalog field with its current value and any error.
func (r *Renderer) fields(cat *catalog.Catalog, inputs value.InputSet, errs map[catalog.FieldID]string) {
	for _, f := range cat.Fields {
		v := "-"
		if cur, ok := inputs[f.ID]; ok {
			v = cur.String()
		}
		r.printf("  %-28s %s\n", f.Label, v)
		if msg, bad := errs[f.ID]; bad {
			r.printf("  %-28s ^ %s\n", "", msg)
		}
	}
}

// Browse renders a directory listing. Workbooks are marked with '*'.
func (r *Renderer) Browse(res *api.BrowseResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("%s\n", res.Cwd)
	if res.Parent != "" && res.Parent != res.Cwd {
		r.printf("  ../\n")
	}
	for _, e := range res.Entries {
		switch {
		case e.IsDir:
			r.printf("  %s/\n", e.Name)
		case e.IsExcel:
			r.printf("* %s\n", e.Name)
		default:
			r.printf("  %s\n", e.Name)
		}
	}
}

// Summary renders the panel3 summary grid.
func (r *Renderer) Summary(s *api.Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("%-32s %6s %14s %14s %8s\n", "Description", "Qty", "Cost", "Sell price", "Margin")
	for _, row := range s.Rows {
		qty, margin := "", ""
		if row.Qty.Valid {
			qty = r.f.Number(row.Qty.Decimal)
		}
		if row.Margin.Valid {
			margin = r.f.Percent(row.Margin.Decimal)
		}
		r.printf("%-32s %6s %14s %14s %8s\n",
			row.Description, qty, r.f.MoneyOrBlank(row.Cost), r.f.MoneyOrBlank(row.SellPrice), margin)
	}
	if s.Meta.Path != "" {
		r.printf("\n%s (read %s)\n", s.Meta.Path, s.Meta.LastReadAt)
	}
}

// RawSummary renders the cost sheet summary range cell by cell.
func (r *Renderer) RawSummary(s *api.RawSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("%s!%s\n", s.Sheet, s.Range)
	for _, row := range s.Values {
		cells := make([]string, len(row))
		for i, c := range row {
			if c == nil {
				continue
			}
			cells[i] = fmt.Sprint(c)
		}
		r.printf("%s\n", strings.Join(cells, "\t"))
	}
}

// Quote renders a stored quote.
func (r *Renderer) Quote(q *api.Quote) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("Quote %s", q.QuoteNumber)
	if q.Customer != "" {
		r.printf(" for %s", q.Customer)
	}
	r.printf("\n")
	r.printf("  %-14s %16s\n", "Base total", r.f.Money(q.Pricing.BaseTotal))
	r.printf("  %-14s %16s\n", "Margin", r.f.Percent(q.Pricing.Margin))
	r.printf("  %-14s %16s\n", "Sell price", r.f.Money(q.Pricing.SellPrice))

	if len(q.Summary.Totals) > 0 {
		cells := make([]string, 0, len(q.Summary.Totals))
		for c := range q.Summary.Totals {
			cells = append(cells, c)
		}
		sort.Strings(cells)

		r.printf("\n")
		for _, c := range cells {
			mark := " "
			if _, ok := q.Summary.Toggles[c]; ok && q.Summary.Toggled(c) {
				mark = "x"
			}
			r.printf("  [%s] %-8s %16s\n", mark, c, r.f.Money(q.Summary.Totals[c]))
		}
	}
}

// Requests renders a session's request log.
func (r *Renderer) Requests(entries []store.RequestEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(entries) == 0 {
		r.printf("No requests recorded\n")
		return
	}
	for _, e := range entries {
		retry := ""
		if e.Retry {
			retry = " (retry)"
		}
		hash := e.InputsHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		r.printf("#%-4d %-16s %-6s %s%s\n", e.Seq, e.Outcome, e.Version, hash, retry)
		if e.Detail != "" {
			r.printf("      %s\n", e.Detail)
		}
	}
}

// Sessions renders stored sessions.
func (r *Renderer) Sessions(sessions []store.SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(sessions) == 0 {
		r.printf("No sessions\n")
		return
	}
	for _, s := range sessions {
		r.printf("%s  %s  %d request(s)", s.ID, s.CreatedAt, s.Requests)
		if s.Label != "" {
			r.printf("  %s", s.Label)
		}
		r.printf("\n")
	}
}
