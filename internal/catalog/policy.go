package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// OrientationField is the preview-only field in the RDS catalog. Changing it
// moves the layout illustration but has no pricing effect.
const OrientationField FieldID = "sys.infeed_orientation"

// Policy decides which field edits trigger a pricing request.
type Policy struct {
	// PreviewOnly fields never trigger pricing.
	PreviewOnly []FieldID `yaml:"preview_only"`

	// PriceDriving lists fields whose change requires recomputation.
	// Empty means every field that is not preview-only.
	PriceDriving []FieldID `yaml:"price_driving"`
}

// DefaultPolicy marks the infeed orientation as preview-only.
func DefaultPolicy() Policy {
	return Policy{PreviewOnly: []FieldID{OrientationField}}
}

// IsPreviewOnly reports whether id is a preview-only field.
func (p Policy) IsPreviewOnly(id FieldID) bool {
	return slices.Contains(p.PreviewOnly, id)
}

// Drives reports whether an edit to id must schedule a pricing request.
func (p Policy) Drives(id FieldID) bool {
	if p.IsPreviewOnly(id) {
		return false
	}
	if len(p.PriceDriving) == 0 {
		return true
	}
	return slices.Contains(p.PriceDriving, id)
}

// ParsePolicy decodes a YAML policy document. Unknown keys are rejected.
func ParsePolicy(data []byte) (Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	for _, id := range p.PriceDriving {
		if p.IsPreviewOnly(id) {
			return Policy{}, fmt.Errorf("parse policy: field %q is both preview-only and price-driving", id)
		}
	}
	return p, nil
}

// LoadPolicy reads a YAML policy file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("load policy: %w", err)
	}
	return ParsePolicy(data)
}
