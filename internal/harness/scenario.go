package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/stubserver"
	"github.com/roach88/rdsquote/internal/testutil"
	"github.com/roach88/rdsquote/internal/value"
)

// Scenario drives one controller through a scripted session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Catalogs are served in order by the scripted transport; the first is
	// the one Start sees, later ones answer refetches. The last repeats.
	Catalogs []CatalogSpec `yaml:"catalogs"`

	// CatalogError, when set, fails every catalog fetch after the first.
	CatalogError string `yaml:"catalog_error,omitempty"`

	// Policy overrides the default field policy.
	Policy *catalog.Policy `yaml:"policy,omitempty"`

	// Saved is a session snapshot present before Start.
	Saved *SavedState `yaml:"saved,omitempty"`

	// Responses answer price requests in order.
	Responses []Response `yaml:"responses"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and end state.
	Assertions []Assertion `yaml:"assertions"`
}

// CatalogSpec is either a named preset ("xy", "rds") or inline dropdowns in
// the stub server's fixture format.
type CatalogSpec struct {
	Preset    string                       `yaml:"preset,omitempty"`
	Version   string                       `yaml:"version"`
	Dropdowns []stubserver.FixtureDropdown `yaml:"dropdowns,omitempty"`
}

// Build returns the catalog this spec describes.
func (s CatalogSpec) Build() (*catalog.Catalog, error) {
	v := catalog.Version(s.Version)
	switch s.Preset {
	case "xy":
		return testutil.XYCatalog(v), nil
	case "rds":
		return testutil.RDSCatalog(v), nil
	case "":
		f := &stubserver.Fixture{Version: s.Version, Dropdowns: s.Dropdowns}
		return f.Catalog()
	default:
		return nil, fmt.Errorf("unknown catalog preset %q", s.Preset)
	}
}

// SavedState is a persisted snapshot in scenario form.
type SavedState struct {
	Version   string         `yaml:"version"`
	Inputs    map[string]any `yaml:"inputs"`
	LastValid map[string]any `yaml:"last_valid"`
}

// InputSets converts the snapshot's maps to InputSets.
func (s SavedState) InputSets() (inputs, lastValid value.InputSet, err error) {
	if inputs, err = toInputSet(s.Inputs); err != nil {
		return nil, nil, fmt.Errorf("saved inputs: %w", err)
	}
	if lastValid, err = toInputSet(s.LastValid); err != nil {
		return nil, nil, fmt.Errorf("saved last_valid: %w", err)
	}
	return inputs, lastValid, nil
}

func toInputSet(m map[string]any) (value.InputSet, error) {
	out := make(value.InputSet, len(m))
	for k, raw := range m {
		v, err := value.FromAny(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[value.FieldID(k)] = v
	}
	return out, nil
}

// Response scripts one price response. Exactly one of Grand, Reject,
// Conflict or Fail is set.
type Response struct {
	// Grand answers with a success carrying this grand total.
	Grand string `yaml:"grand,omitempty"`

	// Version is reported on a success. Defaults to the version sent.
	Version string `yaml:"version,omitempty"`

	// Reject answers 400 naming one field.
	Reject *Rejection `yaml:"reject,omitempty"`

	// Conflict answers 409 with this server version.
	Conflict string `yaml:"conflict,omitempty"`

	// Fail answers with this HTTP status.
	Fail int `yaml:"fail,omitempty"`
}

// Rejection is a server-side field validation failure.
type Rejection struct {
	Field   string `yaml:"field"`
	Message string `yaml:"message"`
}

// Step is one user or clock action. Exactly one action field is set.
type Step struct {
	Start   bool     `yaml:"start,omitempty"`
	Set     *SetStep `yaml:"set,omitempty"`
	Advance string   `yaml:"advance,omitempty"` // Go duration, or "debounce"
	Reset   bool     `yaml:"reset,omitempty"`
	Close   bool     `yaml:"close,omitempty"`

	// ExpectError marks a step that must return an error.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// SetStep edits one field with raw user text.
type SetStep struct {
	Field string `yaml:"field"`
	Value string `yaml:"value"`
}

// Assertion validates the trace or end state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is a trace event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Match is a subset of the event's fields (trace_contains, trace_count).
	Match map[string]any `yaml:"match,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected order of event types (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Expect maps Result.State keys to values; null means absent (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Outcomes is the expected stored request log (stored_requests).
	Outcomes []string `yaml:"outcomes,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains  = "trace_contains"
	AssertTraceOrder     = "trace_order"
	AssertTraceCount     = "trace_count"
	AssertFinalState     = "final_state"
	AssertStoredRequests = "stored_requests"
)

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. Unknown fields are rejected so typos
// like "assertion:" fail loudly.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Catalogs) == 0 {
		return fmt.Errorf("at least one catalog is required")
	}
	for i, c := range s.Catalogs {
		if c.Version == "" {
			return fmt.Errorf("catalogs[%d]: version is required", i)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, r := range s.Responses {
		if err := validateResponse(r); err != nil {
			return fmt.Errorf("responses[%d]: %w", i, err)
		}
	}
	for i, st := range s.Steps {
		if err := validateStep(st); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateResponse(r Response) error {
	n := 0
	if r.Grand != "" {
		n++
	}
	if r.Reject != nil {
		n++
		if r.Reject.Field == "" {
			return fmt.Errorf("reject.field is required")
		}
	}
	if r.Conflict != "" {
		n++
	}
	if r.Fail != 0 {
		n++
	}
	if n != 1 {
		return fmt.Errorf("exactly one of grand, reject, conflict, fail is required")
	}
	return nil
}

func validateStep(st Step) error {
	n := 0
	for _, set := range []bool{st.Start, st.Set != nil, st.Advance != "", st.Reset, st.Close} {
		if set {
			n++
		}
	}
	if n != 1 {
		return fmt.Errorf("exactly one of start, set, advance, reset, close is required")
	}
	if st.Set != nil && st.Set.Field == "" {
		return fmt.Errorf("set.field is required")
	}
	if st.Advance != "" && st.Advance != "debounce" {
		if _, err := time.ParseDuration(st.Advance); err != nil {
			return fmt.Errorf("advance: %w", err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("event is required for trace_contains")
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("events list is required for trace_order")
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("event is required for trace_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for final_state")
		}
	case AssertStoredRequests:
		// An empty list asserts that nothing was logged.
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
