package harness

import (
	"fmt"
	"strconv"
	"strings"
)

// TraceEvent is one line of a scenario trace: a step the scenario took, a
// controller event, a transport call or a request log record.
//
// State-changed events are not traced; Result.State holds the end state.
type TraceEvent struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Version string `json:"version,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Retry   bool   `json:"retry,omitempty"`
	Grand   string `json:"grand,omitempty"`
	Inputs  string `json:"inputs,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Trace event types besides the controller's own event kinds.
const (
	TraceStart   = "start"
	TraceSet     = "set"
	TraceAdvance = "advance"
	TraceReset   = "reset"
	TraceClose   = "close"
	TraceCatalog = "catalog"
	TracePrice   = "price"
	TraceRecord  = "record"
)

// Fields returns the event's non-empty attributes keyed by their JSON names.
// Assertions match against this map.
func (e TraceEvent) Fields() map[string]string {
	m := map[string]string{"type": e.Type}
	if e.Seq != 0 {
		m["seq"] = strconv.FormatInt(e.Seq, 10)
	}
	if e.Retry {
		m["retry"] = "true"
	}
	for k, v := range map[string]string{
		"field":   e.Field,
		"value":   e.Value,
		"version": e.Version,
		"outcome": e.Outcome,
		"grand":   e.Grand,
		"inputs":  e.Inputs,
		"message": e.Message,
		"error":   e.Error,
	} {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

// String renders the event as a single golden-file line.
func (e TraceEvent) String() string {
	var b strings.Builder
	b.WriteString(e.Type)
	if e.Seq != 0 {
		fmt.Fprintf(&b, " seq=%d", e.Seq)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, " field=%s", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value=%q", e.Value)
	}
	if e.Version != "" {
		fmt.Fprintf(&b, " version=%s", e.Version)
	}
	if e.Outcome != "" {
		fmt.Fprintf(&b, " outcome=%s", e.Outcome)
	}
	if e.Retry {
		b.WriteString(" retry")
	}
	if e.Grand != "" {
		fmt.Fprintf(&b, " grand=%s", e.Grand)
	}
	if e.Inputs != "" {
		fmt.Fprintf(&b, " inputs=%s", e.Inputs)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, " message=%q", e.Message)
	}
	if e.Error != "" {
		fmt.Fprintf(&b, " error=%q", e.Error)
	}
	return b.String()
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step behaved as expected and every assertion held.
	Pass bool `json:"pass"`

	// Trace lists steps, events, transport calls and records in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the flattened end state: "version", "phase", "grand",
	// "inputs.<id>", "last_valid.<id>", "errors.<id>", and "stored.*" keys
	// for what the session store holds.
	State map[string]string `json:"state,omitempty"`

	// Outcomes are the stored request log outcomes in seq order.
	Outcomes []string `json:"outcomes,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]string),
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
