package cli

import (
	"bytes"
	"errors"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.SuccessWithTrace(map[string]string{"version": "v1"}, "session-1")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "session-1", resp.TraceID)
	assert.Equal(t, map[string]any{"version": "v1"}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(ErrCodeFieldRejected, "field x rejected: bad", map[string]string{"field": "x"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFieldRejected, resp.Error.Code)
	assert.Equal(t, "field x rejected: bad", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("Margin reset"))
	assert.Equal(t, "Margin reset\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Error(ErrCodeGeneric, "backend unreachable", map[string]string{"server": "x"}))
	assert.Equal(t, "Error [E001]: backend unreachable\n", buf.String())
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	require.NoError(t, formatter.Error(ErrCodeGeneric, "backend unreachable", "dial tcp"))
	assert.Contains(t, buf.String(), "Details: dial tcp")
}

func TestOutputFormatter_TextErrorVerboseFields(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	details := map[string]string{"message": "invalid enum for sys.guarding", "field": "sys.guarding"}
	require.NoError(t, formatter.Error(ErrCodeFieldRejected, "field rejected", details))
	assert.Equal(t, "Error [E006]: field rejected\n"+
		"  field: sys.guarding\n"+
		"  message: invalid enum for sys.guarding\n", buf.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("Loaded catalog %s", "v1")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "Loaded catalog v1\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := WrapExitError(ExitFailure, "pricing failed", errors.New("boom"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "pricing failed: boom", wrapped.Error())
	assert.EqualError(t, errors.Unwrap(wrapped), "boom")
}
