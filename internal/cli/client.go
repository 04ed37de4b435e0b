package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/api"
)

// clientCall is what a one-shot backend command gets to work with.
type clientCall struct {
	ctx    context.Context
	client *api.Client
}

// writeError marks a local file write failure inside a backend call.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// withClient runs fn with a signal-aware context and a backend client, and
// reports any error fn returns through the formatter.
func withClient(cmd *cobra.Command, opts *RootOptions, fn func(*clientCall) error) error {
	f := opts.formatter(cmd)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	client, err := opts.newClient()
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	if err := fn(&clientCall{ctx: ctx, client: client}); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return err
		}
		var we *writeError
		if errors.As(err, &we) {
			return failWith(f, ExitFailure, ErrCodeWriteFailed, err.Error(), nil)
		}
		return fail(f, err)
	}
	return nil
}
