package catalog

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	json "github.com/goccy/go-json"

	"github.com/roach88/rdsquote/internal/value"
)

//go:embed schema.cue
var schemaCUE string

// FieldID is re-exported so callers rarely need the value package directly.
type FieldID = value.FieldID

// Version is the opaque catalog version token (e.g. "v1").
type Version string

// Kind is the declared scalar kind of a field.
type Kind int

const (
	// KindText fields pass raw input through unchanged.
	KindText Kind = iota
	// KindNumeric fields parse raw input to a number.
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "text"
}

// Field is one configurable input and its option domain.
type Field struct {
	ID      FieldID
	Label   string
	Options []value.Value
	Default value.Value
	Tooltip string
	Kind    Kind
}

// InDomain reports whether v is an allowed value for the field.
// A field with no declared options accepts any value of its kind.
func (f Field) InDomain(v value.Value) bool {
	if v == nil {
		return false
	}
	if len(f.Options) == 0 {
		_, isNum := v.(value.Number)
		return isNum == (f.Kind == KindNumeric)
	}
	for _, opt := range f.Options {
		if opt.Equal(v) {
			return true
		}
	}
	return false
}

// Catalog is the server-declared set of fields, options and defaults.
// Fields keep the server's declaration order.
type Catalog struct {
	Version   Version
	UpdatedAt string
	Fields    []Field

	byID map[FieldID]int
}

// New builds a catalog from fields, deriving each field's Kind and checking
// that IDs are unique and defaults are inside their domains.
func New(version Version, fields ...Field) (*Catalog, error) {
	if version == "" {
		return nil, fmt.Errorf("catalog version is required")
	}
	c := &Catalog{
		Version: version,
		Fields:  make([]Field, 0, len(fields)),
		byID:    make(map[FieldID]int, len(fields)),
	}
	for _, f := range fields {
		if f.ID == "" {
			return nil, fmt.Errorf("catalog field with empty id")
		}
		if _, dup := c.byID[f.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog field %q", f.ID)
		}
		f, err := f.Resolve()
		if err != nil {
			return nil, err
		}
		c.byID[f.ID] = len(c.Fields)
		c.Fields = append(c.Fields, f)
	}
	return c, nil
}

// Resolve derives the field's Kind and checks that its default is inside its
// domain.
func (f Field) Resolve() (Field, error) {
	if f.Default == nil {
		return Field{}, fmt.Errorf("field %q: default is required", f.ID)
	}
	f.Kind = deriveKind(f)
	if !f.InDomain(f.Default) {
		return Field{}, fmt.Errorf("field %q: default %s is not one of its options", f.ID, f.Default)
	}
	return f, nil
}

// deriveKind marks a field numeric when its default and every option are numbers.
func deriveKind(f Field) Kind {
	if _, ok := f.Default.(value.Number); !ok {
		return KindText
	}
	for _, opt := range f.Options {
		if _, ok := opt.(value.Number); !ok {
			return KindText
		}
	}
	return KindNumeric
}

// Field looks up a field by ID.
func (c *Catalog) Field(id FieldID) (Field, bool) {
	if c == nil {
		return Field{}, false
	}
	i, ok := c.byID[id]
	if !ok {
		return Field{}, false
	}
	return c.Fields[i], true
}

// IDs returns field IDs in declaration order.
func (c *Catalog) IDs() []FieldID {
	ids := make([]FieldID, len(c.Fields))
	for i, f := range c.Fields {
		ids[i] = f.ID
	}
	return ids
}

// Defaults returns a fresh InputSet holding every field's default.
func (c *Catalog) Defaults() value.InputSet {
	out := make(value.InputSet, len(c.Fields))
	for _, f := range c.Fields {
		out[f.ID] = f.Default
	}
	return out
}

// Default returns the default for one field.
func (c *Catalog) Default(id FieldID) (value.Value, bool) {
	f, ok := c.Field(id)
	if !ok {
		return nil, false
	}
	return f.Default, true
}

// InDomain reports whether v is allowed for field id. Unknown fields are never in domain.
func (c *Catalog) InDomain(id FieldID, v value.Value) bool {
	f, ok := c.Field(id)
	return ok && f.InDomain(v)
}

// wireCatalog mirrors the /api/dropdowns payload.
type wireCatalog struct {
	Version   string         `json:"version"`
	UpdatedAt string         `json:"updatedAt,omitempty"`
	Dropdowns []WireDropdown `json:"dropdowns"`
}

// WireDropdown is the JSON form of a single field, shared with the stub server
// and the dropdown detail endpoint.
type WireDropdown struct {
	ID        string            `json:"id"`
	Label     string            `json:"label"`
	Options   []json.RawMessage `json:"options"`
	Default   json.RawMessage   `json:"default"`
	Tooltip   string            `json:"tooltip,omitempty"`
	Version   string            `json:"version,omitempty"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

// Field converts the wire form to a Field. Kind is derived by New.
func (d WireDropdown) Field() (Field, error) {
	f := Field{ID: FieldID(d.ID), Label: d.Label, Tooltip: d.Tooltip}
	def, err := value.UnmarshalValue(d.Default)
	if err != nil {
		return Field{}, fmt.Errorf("field %q default: %w", d.ID, err)
	}
	f.Default = def
	for i, raw := range d.Options {
		opt, err := value.UnmarshalValue(raw)
		if err != nil {
			return Field{}, fmt.Errorf("field %q option %d: %w", d.ID, i, err)
		}
		f.Options = append(f.Options, opt)
	}
	return f, nil
}

// ToWire converts a Field back to its JSON form.
func ToWire(f Field) (WireDropdown, error) {
	d := WireDropdown{ID: string(f.ID), Label: f.Label, Tooltip: f.Tooltip, Options: []json.RawMessage{}}
	def, err := value.MarshalValue(f.Default)
	if err != nil {
		return WireDropdown{}, fmt.Errorf("field %q default: %w", f.ID, err)
	}
	d.Default = def
	for _, opt := range f.Options {
		raw, err := value.MarshalValue(opt)
		if err != nil {
			return WireDropdown{}, fmt.Errorf("field %q option: %w", f.ID, err)
		}
		d.Options = append(d.Options, raw)
	}
	return d, nil
}

// Decode validates a /api/dropdowns payload against the embedded CUE schema
// and builds a Catalog from it.
func Decode(data []byte) (*Catalog, error) {
	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var wire wireCatalog
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	fields := make([]Field, 0, len(wire.Dropdowns))
	for _, d := range wire.Dropdowns {
		f, err := d.Field()
		if err != nil {
			return nil, fmt.Errorf("decode catalog: %w", err)
		}
		fields = append(fields, f)
	}

	c, err := New(Version(wire.Version), fields...)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	c.UpdatedAt = wire.UpdatedAt
	return c, nil
}

// Encode produces the /api/dropdowns payload for a catalog.
func Encode(c *Catalog) ([]byte, error) {
	wire := wireCatalog{
		Version:   string(c.Version),
		UpdatedAt: c.UpdatedAt,
		Dropdowns: make([]WireDropdown, 0, len(c.Fields)),
	}
	for _, f := range c.Fields {
		d, err := ToWire(f)
		if err != nil {
			return nil, fmt.Errorf("encode catalog: %w", err)
		}
		wire.Dropdowns = append(wire.Dropdowns, d)
	}
	return json.Marshal(wire)
}

// validateSchema unifies the payload with #Catalog and requires a concrete result.
func validateSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}

	payload := ctx.CompileBytes(data, cue.Filename("dropdowns.json"))
	if err := payload.Err(); err != nil {
		return fmt.Errorf("parse catalog payload: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(payload)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("catalog payload does not match schema: %w", err)
	}
	return nil
}
