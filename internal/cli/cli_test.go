package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rdsquote/internal/stubserver"
)

// startStub serves the default fixture on a loopback port.
func startStub(t *testing.T, opts ...stubserver.Option) (*stubserver.Server, string) {
	t.Helper()

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]stubserver.Option{stubserver.WithLogger(quiet)}, opts...)
	srv, err := stubserver.New(stubserver.DefaultFixture(), opts...)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = srv.Serve(ln)
	}()
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv, "http://" + ln.Addr().String()
}

type cliRun struct {
	stdout string
	stderr string
	err    error
}

// execute runs the root command with args and captured output.
func execute(t *testing.T, stdin string, args ...string) cliRun {
	t.Helper()

	cmd := NewRootCommand()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return cliRun{stdout: out.String(), stderr: errOut.String(), err: err}
}

// decodeResponse parses a JSON CLI response.
func decodeResponse(t *testing.T, out string) (CLIResponse, map[string]any) {
	t.Helper()

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	data, _ := resp.Data.(map[string]any)
	return resp, data
}
