package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/render"
	"github.com/roach88/rdsquote/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Sessions bool
	Outcome  string
}

var validOutcomes = []controller.Outcome{
	controller.OutcomePriced,
	controller.OutcomeFieldRejected,
	controller.OutcomeVersionConflict,
	controller.OutcomeFailed,
	controller.OutcomeSuperseded,
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a session's pricing requests",
		Long: `List the pricing requests logged for --session, oldest first, with
their outcome and catalog version. With --sessions, list the stored sessions
instead. Both read --session-db.

Example:
  rdsquote history --session-db quotes.db --session 0190...
  rdsquote history --session-db quotes.db --sessions`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Sessions, "sessions", false, "list sessions instead of requests")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only show requests with this outcome")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	if !opts.Sessions && opts.Session == "" {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, "--session is required (or use --sessions)", nil)
	}
	outcome := controller.Outcome(opts.Outcome)
	if outcome != "" && !isValidOutcome(outcome) {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, "unknown outcome "+opts.Outcome, validOutcomes)
	}
	if opts.SessionDB == "" {
		f.VerboseLog("No --session-db given; the in-memory store has no history")
	}

	st, err := opts.openStore()
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	defer st.Close()

	r := render.New(f.Writer)
	if opts.Sessions {
		sessions, err := st.ListSessions(ctx)
		if err != nil {
			return failWith(f, ExitFailure, ErrCodeStoreFailed, err.Error(), nil)
		}
		if f.IsJSON() {
			return f.Success(sessions)
		}
		r.Sessions(sessions)
		return nil
	}

	if !store.ValidSessionID(opts.Session) {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, "invalid session ID "+opts.Session, nil)
	}
	entries, err := st.ListRequests(ctx, opts.Session, outcome)
	if err != nil {
		return failWith(f, ExitFailure, ErrCodeStoreFailed, err.Error(), nil)
	}
	if f.IsJSON() {
		return f.SuccessWithTrace(entries, opts.Session)
	}
	r.Requests(entries)
	return nil
}

func isValidOutcome(o controller.Outcome) bool {
	for _, v := range validOutcomes {
		if v == o {
			return true
		}
	}
	return false
}
