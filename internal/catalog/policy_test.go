package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	assert.True(t, p.IsPreviewOnly(OrientationField))
	assert.False(t, p.Drives(OrientationField))
	assert.True(t, p.Drives("sys.guarding"))
	assert.True(t, p.Drives("anything.else"), "empty price-driving list means all non-preview fields")
}

func TestPolicy_ExplicitPriceDriving(t *testing.T) {
	p := Policy{PriceDriving: []FieldID{"sys.guarding"}}

	assert.True(t, p.Drives("sys.guarding"))
	assert.False(t, p.Drives("sys.transformer"))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy([]byte(`
preview_only:
  - sys.infeed_orientation
price_driving:
  - sys.guarding
  - sys.transformer
`))
	require.NoError(t, err)
	assert.Equal(t, []FieldID{"sys.infeed_orientation"}, p.PreviewOnly)
	assert.Equal(t, []FieldID{"sys.guarding", "sys.transformer"}, p.PriceDriving)
}

func TestParsePolicy_Conflict(t *testing.T) {
	_, err := ParsePolicy([]byte(`
preview_only: [a]
price_driving: [a]
`))
	assert.Error(t, err)
}

func TestParsePolicy_UnknownKey(t *testing.T) {
	_, err := ParsePolicy([]byte(`
preview_only: [sys.infeed_orientation]
price-driving: [sys.guarding]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price-driving")
}

func TestParsePolicy_Empty(t *testing.T) {
	p, err := ParsePolicy(nil)
	require.NoError(t, err)
	assert.True(t, p.Drives("sys.guarding"))
}

func TestLoadPolicy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preview_only: [x]\n"), 0644))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.True(t, p.IsPreviewOnly("x"))

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
