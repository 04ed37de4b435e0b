package catalog

import "github.com/roach88/rdsquote/internal/value"

// Rehydrate merges a persisted InputSet into the catalog defaults.
//
// A stored value is kept only when its field is declared by this catalog and
// the value is inside the field's option domain; everything else silently
// falls back to the default. Fields unknown to the catalog are dropped.
// The result always holds exactly the catalog's fields.
func (c *Catalog) Rehydrate(stored value.InputSet) value.InputSet {
	out := c.Defaults()
	for _, f := range c.Fields {
		v, ok := stored[f.ID]
		if !ok {
			continue
		}
		if f.InDomain(v) {
			out[f.ID] = v
		}
	}
	return out
}
