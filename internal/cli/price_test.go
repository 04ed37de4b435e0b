package cli

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice_DefaultsJSON(t *testing.T) {
	srv, url := startStub(t)

	run := execute(t, "", "price", "--server", url, "--debounce", "1ms", "--format", "json")
	require.NoError(t, run.err, "stdout: %s", run.stdout)

	resp, data := decodeResponse(t, run.stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TraceID)
	assert.Equal(t, resp.TraceID, data["session"])
	assert.Equal(t, "v1", data["version"])

	inputs := data["inputs"].(map[string]any)
	assert.Equal(t, "Standard", inputs["sys.guarding"])

	result := data["result"].(map[string]any)
	totals := result["totals"].(map[string]any)
	assert.Equal(t, "427489.82", fmt.Sprint(totals["grand"]))
	assert.NotContains(t, data, "errors")

	assert.Equal(t, int64(1), srv.PriceCalls())
}

func TestPrice_SetText(t *testing.T) {
	_, url := startStub(t)

	run := execute(t, "", "price", "--server", url, "--debounce", "200ms",
		"--set", "sys.guarding=Tall", "--set", "sys.spare_saw_blades_qty=30")
	require.NoError(t, run.err, "stdout: %s\nstderr: %s", run.stdout, run.stderr)

	assert.Contains(t, run.stdout, "Catalog v1, idle")
	assert.Regexp(t, `Guarding\s+Tall`, run.stdout)
	assert.Regexp(t, `Spare Saw Blades\s+30`, run.stdout)
	assert.Regexp(t, `Grand total\s+\$427,489\.82`, run.stdout)
	assert.Contains(t, run.stdout, "Session ")
}

func TestPrice_RejectedValueRollsBack(t *testing.T) {
	_, url := startStub(t)

	run := execute(t, "", "price", "--server", url, "--debounce", "200ms",
		"--set", "sys.guarding=Tallest")
	require.Error(t, run.err)
	assert.Equal(t, ExitFailure, GetExitCode(run.err))

	assert.Contains(t, run.stderr, "sys.guarding restored to Standard (invalid enum for sys.guarding)")
	assert.Contains(t, run.stderr, "! Guarding: invalid enum for sys.guarding")
	assert.Regexp(t, `Guarding\s+Standard`, run.stdout)
	assert.Contains(t, run.stdout, "^ invalid enum for sys.guarding")
}

func TestPrice_LocalNormalizationFailure(t *testing.T) {
	srv, url := startStub(t)

	run := execute(t, "", "price", "--server", url, "--debounce", "200ms",
		"--set", "sys.spare_saw_blades_qty=lots")
	require.NoError(t, run.err, "stdout: %s\nstderr: %s", run.stdout, run.stderr)

	assert.Contains(t, run.stderr, "sys.spare_saw_blades_qty restored to 20 (value must be a number)")
	assert.Regexp(t, `Spare Saw Blades\s+20`, run.stdout)
	assert.Equal(t, int64(1), srv.PriceCalls(), "only the initial pricing reaches the backend")
}

func TestPrice_InvalidSetFlag(t *testing.T) {
	run := execute(t, "", "price", "--set", "no-equals-sign")
	require.Error(t, run.err)
	assert.Equal(t, ExitCommandError, GetExitCode(run.err))
	assert.Contains(t, run.stdout, "Error [E002]")
}

func TestPrice_InvalidSession(t *testing.T) {
	run := execute(t, "", "price", "--session", "not-a-uuid")
	require.Error(t, run.err)
	assert.Equal(t, ExitCommandError, GetExitCode(run.err))
	assert.Contains(t, run.stdout, "invalid session ID")
}

func TestPrice_Unreachable(t *testing.T) {
	ln := closedPort(t)

	run := execute(t, "", "price", "--server", ln, "--format", "json")
	require.Error(t, run.err)
	assert.Equal(t, ExitFailure, GetExitCode(run.err))

	resp, _ := decodeResponse(t, run.stdout)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeUnreachable, resp.Error.Code)
}

func TestPrice_ExportsWorkbook(t *testing.T) {
	_, url := startStub(t)
	out := filepath.Join(t.TempDir(), "quote.xlsx")

	run := execute(t, "", "price", "--server", url, "--debounce", "1ms", "--xlsx", out)
	require.NoError(t, run.err, "stdout: %s", run.stdout)
	assert.Contains(t, run.stdout, "Wrote "+out)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestPrice_ResumeSession(t *testing.T) {
	_, url := startStub(t)
	db := filepath.Join(t.TempDir(), "sessions.db")
	base := []string{"--server", url, "--debounce", "1ms", "--session-db", db, "--format", "json"}

	// The later --debounce wins, so the edit coalesces with the initial pricing.
	firstArgs := append(append([]string{"price", "--set", "sys.guarding=Tall"}, base...), "--debounce", "200ms")
	first := execute(t, "", firstArgs...)
	require.NoError(t, first.err, "stdout: %s", first.stdout)
	resp, _ := decodeResponse(t, first.stdout)
	session := resp.TraceID
	require.NotEmpty(t, session)

	second := execute(t, "", append([]string{"price", "--session", session}, base...)...)
	require.NoError(t, second.err, "stdout: %s", second.stdout)
	_, data := decodeResponse(t, second.stdout)
	inputs := data["inputs"].(map[string]any)
	assert.Equal(t, "Tall", inputs["sys.guarding"], "edit survives across runs")

	hist := execute(t, "", "history", "--session", session, "--session-db", db, "--format", "json")
	require.NoError(t, hist.err, "stdout: %s", hist.stdout)

	var entries []map[string]any
	histResp, _ := decodeResponse(t, hist.stdout)
	for _, e := range histResp.Data.([]any) {
		entries = append(entries, e.(map[string]any))
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "priced", entries[0]["outcome"])
	assert.Equal(t, "priced", entries[1]["outcome"])
	assert.Less(t, entries[0]["seq"].(float64), entries[1]["seq"].(float64), "seqs continue across runs")

	reset := execute(t, "", append([]string{"reset", "--session", session}, base...)...)
	require.NoError(t, reset.err, "stdout: %s", reset.stdout)
	_, data = decodeResponse(t, reset.stdout)
	inputs = data["inputs"].(map[string]any)
	assert.Equal(t, "Standard", inputs["sys.guarding"])
}

// closedPort returns a URL nothing is listening on.
func closedPort(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "http://" + addr
}

func TestParseSets(t *testing.T) {
	edits, err := parseSets([]string{"sys.guarding=Tall w/ Netting", " x =", "note=a=b"})
	require.NoError(t, err)
	require.Len(t, edits, 3)
	assert.Equal(t, fieldEdit{ID: "sys.guarding", Raw: "Tall w/ Netting"}, edits[0])
	assert.Equal(t, fieldEdit{ID: "x", Raw: ""}, edits[1])
	assert.Equal(t, fieldEdit{ID: "note", Raw: "a=b"}, edits[2])

	_, err = parseSets([]string{"=value"})
	assert.Error(t, err)
	_, err = parseSets([]string{"value"})
	assert.Error(t, err)
}
