package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/render"
)

const replHelp = `Commands:
  set <field> <value>   edit a field (value may contain spaces)
  reset                 restore catalog defaults
  show                  wait for pricing and show inputs and totals
  fields                list catalog fields and options
  history               list this session's pricing requests
  help                  show this help
  quit                  end the session`

// NewReplCommand creates the repl command.
func NewReplCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Edit and price a quote interactively",
		Long: `Start an interactive session. Edits are priced in the background after
the debounce period; notices, rolled-back fields and new totals are printed as
they arrive.

` + replHelp,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(rootOpts, cmd)
		},
	}
	return cmd
}

func runRepl(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	if f.IsJSON() {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, "repl supports text output only", nil)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	ps, err := openPricingSession(ctx, opts, "repl")
	if err != nil {
		return sessionFailure(f, err)
	}
	defer ps.Close()

	r := render.New(f.Writer)
	ps.ctrl.Subscribe(r.Event)

	if err := ps.ctrl.Start(ctx); err != nil {
		return sessionFailure(f, err)
	}
	r.Line(fmt.Sprintf("Session %s. Type 'help' for commands.", ps.ID))

	repl := &replSession{ps: ps, r: r}
	repl.loop(ctx, cmd.InOrStdin())
	return nil
}

type replSession struct {
	ps *pricingSession
	r  *render.Renderer
}

// loop reads commands until quit, EOF or ctx is done.
func (s *replSession) loop(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for ctx.Err() == nil && scanner.Scan() {
		if !s.exec(ctx, strings.TrimSpace(scanner.Text())) {
			return
		}
	}
}

// exec runs one command line and reports whether to keep reading.
func (s *replSession) exec(ctx context.Context, line string) bool {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "":
	case "quit", "exit":
		return false
	case "help":
		s.println(replHelp)
	case "set":
		id, raw, ok := strings.Cut(rest, " ")
		if !ok || id == "" {
			s.println("usage: set <field> <value>")
			break
		}
		if err := s.ps.ctrl.SetField(catalog.FieldID(id), strings.TrimSpace(raw)); err != nil {
			s.println("! " + err.Error())
		}
	case "reset":
		if err := s.ps.ctrl.ResetToDefaults(); err != nil {
			s.println("! " + err.Error())
		}
	case "show":
		settleCtx, stop := context.WithTimeout(ctx, DefaultSettleTimeout)
		err := s.ps.Settle(settleCtx)
		stop()
		if err != nil {
			s.println("! still waiting for pricing")
		}
		s.r.State(s.ps.ctrl.Snapshot())
	case "fields", "catalog":
		if cat := s.ps.ctrl.Snapshot().Catalog; cat != nil {
			s.r.Catalog(cat)
		}
	case "history":
		entries, err := s.ps.store.ListRequests(ctx, s.ps.ID, "")
		if err != nil {
			s.println("! " + err.Error())
			break
		}
		s.r.Requests(entries)
	default:
		s.println(fmt.Sprintf("unknown command %q (try 'help')", verb))
	}
	return true
}

func (s *replSession) println(msg string) {
	s.r.Line(msg)
}
