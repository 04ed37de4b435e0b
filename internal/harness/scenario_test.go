package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Valid(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: ok
description: minimal
catalogs:
  - preset: rds
    version: v1
policy:
  preview_only: [sys.infeed_orientation]
saved:
  version: v1
  inputs: { sys.guarding: Tall }
responses:
  - grand: "1"
  - reject: { field: x, message: bad }
  - conflict: v2
  - fail: 500
steps:
  - start: true
  - set: { field: sys.guarding, value: Tall }
  - advance: 50ms
  - reset: true
  - close: true
assertions:
  - type: stored_requests
    outcomes: []
`))
	require.NoError(t, err)

	assert.Equal(t, "ok", s.Name)
	require.NotNil(t, s.Policy)
	assert.True(t, s.Policy.IsPreviewOnly("sys.infeed_orientation"))
	assert.Len(t, s.Responses, 4)
	assert.Len(t, s.Steps, 5)

	inputs, lastValid, err := s.Saved.InputSets()
	require.NoError(t, err)
	assert.Equal(t, "Tall", inputs["sys.guarding"].String())
	assert.Empty(t, lastValid)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "catalogs: [{preset: xy, version: v1}]\nsteps: [{start: true}]\n",
			want: "name is required",
		},
		{
			name: "no catalogs",
			yaml: "name: a\nsteps: [{start: true}]\n",
			want: "at least one catalog",
		},
		{
			name: "catalog without version",
			yaml: "name: a\ncatalogs: [{preset: xy}]\nsteps: [{start: true}]\n",
			want: "catalogs[0]: version is required",
		},
		{
			name: "no steps",
			yaml: "name: a\ncatalogs: [{preset: xy, version: v1}]\n",
			want: "at least one step",
		},
		{
			name: "two actions in one step",
			yaml: "name: a\ncatalogs: [{preset: xy, version: v1}]\nsteps: [{start: true, reset: true}]\n",
			want: "steps[0]: exactly one of",
		},
		{
			name: "bad duration",
			yaml: "name: a\ncatalogs: [{preset: xy, version: v1}]\nsteps: [{advance: soon}]\n",
			want: "steps[0]: advance",
		},
		{
			name: "ambiguous response",
			yaml: "name: a\ncatalogs: [{preset: xy, version: v1}]\nresponses: [{grand: \"1\", fail: 500}]\nsteps: [{start: true}]\n",
			want: "responses[0]: exactly one of",
		},
		{
			name: "unknown assertion",
			yaml: "name: a\ncatalogs: [{preset: xy, version: v1}]\nsteps: [{start: true}]\nassertions: [{type: vibes}]\n",
			want: `unknown assertion type "vibes"`,
		},
		{
			name: "unknown field",
			yaml: "name: a\ncatalogs: [{preset: xy, version: v1}]\nsteps: [{start: true}]\nassertion: []\n",
			want: "failed to parse YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
