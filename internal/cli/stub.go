package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/stubserver"
)

// StubServerOptions holds flags for the stub-server command.
type StubServerOptions struct {
	*RootOptions
	Fixture   string
	Addr      string
	UploadDir string

	// Listener overrides Addr (for testing).
	Listener net.Listener
}

// NewStubServerCommand creates the stub-server command.
func NewStubServerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StubServerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stub-server",
		Short: "Serve a fixture-driven pricing backend",
		Long: `Serve the catalog, pricing, summary and quote endpoints from a YAML
fixture for offline work and end-to-end tests. Prices are canned; requests
with a stale catalog version get 409 and out-of-domain values get 400.

Example:
  rdsquote stub-server --addr :8000
  rdsquote stub-server --fixture ./fixtures/rds-v2.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStubServer(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "YAML fixture file (default: built-in RDS v1 catalog)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringVar(&opts.UploadDir, "upload-dir", "", "directory for uploaded cost grids (uploads refused when empty)")

	return cmd
}

func runStubServer(opts *StubServerOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	fixture := stubserver.DefaultFixture()
	if opts.Fixture != "" {
		var err error
		if fixture, err = stubserver.LoadFixture(opts.Fixture); err != nil {
			return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
		}
	}
	srv, err := stubserver.New(fixture,
		stubserver.WithLogger(opts.Logger()),
		stubserver.WithUploadDir(opts.UploadDir),
	)
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	ln := opts.Listener
	if ln == nil {
		if ln, err = net.Listen("tcp", opts.Addr); err != nil {
			return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	fmt.Fprintf(f.GetErrWriter(), "Stub server on http://%s (catalog %s). Press Ctrl-C to stop.\n",
		ln.Addr(), srv.Catalog().Version)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return failWith(f, ExitFailure, ErrCodeGeneric, err.Error(), nil)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return failWith(f, ExitFailure, ErrCodeGeneric, fmt.Sprintf("shutdown: %v", err), nil)
	}
	opts.Logger().Info("stub server stopped")
	return nil
}
