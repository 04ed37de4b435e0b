package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match its file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_FailedAssertionsAreReported(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: failing
catalogs:
  - preset: xy
    version: v1
responses:
  - grand: "100"
steps:
  - start: true
  - advance: debounce
assertions:
  - type: trace_count
    event: price
    count: 2
  - type: final_state
    expect: { version: v9 }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "trace_count")
	assert.Contains(t, result.Errors[1], "version: expected v9")
}

func TestRun_UnexpectedStepError(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: set_before_start
catalogs:
  - preset: xy
    version: v1
steps:
  - set: { field: x, value: "1" }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "steps[0]")
}

func TestRun_UnscriptedResponseFails(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: unscripted
catalogs:
  - preset: xy
    version: v1
steps:
  - start: true
  - advance: debounce
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "no scripted response")
	assert.Equal(t, []string{"failed"}, result.Outcomes)
}

func TestRun_InlineCatalog(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: inline
catalogs:
  - version: v7
    dropdowns:
      - id: sys.transformer
        label: Transformer
        options: ["None", Canada]
        default: "None"
responses:
  - grand: "10"
steps:
  - start: true
  - set: { field: sys.transformer, value: Canada }
  - advance: debounce
assertions:
  - type: trace_contains
    event: price
    match: { version: v7, inputs: '{"sys.transformer":"Canada"}' }
`))
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_UnknownPreset(t *testing.T) {
	scenario, err := ParseScenario([]byte(`
name: bad_preset
catalogs:
  - preset: nope
    version: v1
steps:
  - start: true
`))
	require.NoError(t, err)

	_, err = Run(scenario)
	assert.ErrorContains(t, err, "unknown catalog preset")
}
