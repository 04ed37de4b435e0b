package stubserver

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/value"
)

//go:embed default.yaml
var defaultFixture []byte

// Fixture is the YAML document a stub server serves from.
//
// Price, Summary and Quotes are passed through to JSON unchanged, so they use
// the backend's field names.
type Fixture struct {
	Version   string            `yaml:"version"`
	UpdatedAt string            `yaml:"updated_at"`
	Dropdowns []FixtureDropdown `yaml:"dropdowns"`

	// Optional fields may be left out of a price request; their default is
	// used. Every other dropdown is required.
	Optional []string `yaml:"optional"`

	// CostGridPath is the initial cost grid setting.
	CostGridPath string `yaml:"cost_grid_path"`

	Price   map[string]any `yaml:"price"`
	Summary map[string]any `yaml:"summary"`
	Quotes  map[string]any `yaml:"quotes"`
}

// FixtureDropdown is one catalog field.
type FixtureDropdown struct {
	ID      string `yaml:"id"`
	Label   string `yaml:"label"`
	Options []any  `yaml:"options"`
	Default any    `yaml:"default"`
	Tooltip string `yaml:"tooltip"`
}

// DefaultFixture returns the built-in RDS v1 fixture.
func DefaultFixture() *Fixture {
	f, err := ParseFixture(defaultFixture)
	if err != nil {
		panic(fmt.Sprintf("stubserver: bad default fixture: %v", err))
	}
	return f
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if f.Version == "" {
		return nil, fmt.Errorf("parse fixture: version is required")
	}
	return &f, nil
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load fixture: %w", err)
	}
	return ParseFixture(data)
}

// Catalog builds the fixture's catalog.
func (f *Fixture) Catalog() (*catalog.Catalog, error) {
	fields := make([]catalog.Field, 0, len(f.Dropdowns))
	for _, d := range f.Dropdowns {
		field := catalog.Field{ID: catalog.FieldID(d.ID), Label: d.Label, Tooltip: d.Tooltip}
		def, err := value.FromAny(d.Default)
		if err != nil {
			return nil, fmt.Errorf("fixture field %q default: %w", d.ID, err)
		}
		field.Default = def
		for i, raw := range d.Options {
			opt, err := value.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("fixture field %q option %d: %w", d.ID, i, err)
			}
			field.Options = append(field.Options, opt)
		}
		fields = append(fields, field)
	}

	cat, err := catalog.New(catalog.Version(f.Version), fields...)
	if err != nil {
		return nil, fmt.Errorf("fixture catalog: %w", err)
	}
	cat.UpdatedAt = f.UpdatedAt
	return cat, nil
}

// IsOptional reports whether a price request may omit id.
func (f *Fixture) IsOptional(id catalog.FieldID) bool {
	return slices.Contains(f.Optional, string(id))
}
