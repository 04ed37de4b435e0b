package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(result.State, a)
		case AssertStoredRequests:
			err = assertStoredRequests(result.Outcomes, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertTraceContains checks that some event of the given type matches.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if event.Type == a.Event && matchFields(event.Fields(), a.Match) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s with %v", a.Event, a.Match),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrence of each event type
// appears in the given order. Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Type]; !seen && slices.Contains(a.Events, event.Type) {
			positions[event.Type] = i + 1
		}
	}

	for _, typ := range a.Events {
		if positions[typ] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", a.Events),
				Actual:   fmt.Sprintf("missing event: %s", typ),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Events); i++ {
		prev, curr := a.Events[i-1], a.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", a.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks how many events of the given type match.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == a.Event && matchFields(event.Fields(), a.Match) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %v", a.Count, a.Event, a.Match),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState compares state keys. A null expectation means the key
// must be absent.
func assertFinalState(state map[string]string, a Assertion) error {
	var mismatches []string
	for _, key := range sortedKeys(a.Expect) {
		want := a.Expect[key]
		got, ok := state[key]
		switch {
		case want == nil && ok:
			mismatches = append(mismatches, fmt.Sprintf("%s: expected absent, got %q", key, got))
		case want != nil && !ok:
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, absent", key, want))
		case want != nil && got != fmt.Sprint(want):
			mismatches = append(mismatches, fmt.Sprintf("%s: expected %v, got %q", key, want, got))
		}
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%v", a.Expect),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

// assertStoredRequests compares the stored request log outcomes exactly.
func assertStoredRequests(outcomes []string, a Assertion) error {
	if slices.Equal(outcomes, a.Outcomes) || (len(outcomes) == 0 && len(a.Outcomes) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertStoredRequests,
		Expected: fmt.Sprintf("%v", a.Outcomes),
		Actual:   fmt.Sprintf("%v", outcomes),
	}
}

// matchFields reports whether every expected key is present with an equal
// value. Values compare by their printed form, so YAML 3 matches "3".
func matchFields(actual map[string]string, expected map[string]any) bool {
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || got != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
