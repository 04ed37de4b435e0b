package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/controller"
	"github.com/roach88/rdsquote/internal/export"
	"github.com/roach88/rdsquote/internal/render"
	"github.com/roach88/rdsquote/internal/value"
)

// DefaultSettleTimeout bounds how long price and reset wait for the
// backend once edits are in.
const DefaultSettleTimeout = 30 * time.Second

// PriceOptions holds flags for the price command.
type PriceOptions struct {
	*RootOptions
	Sets    []string // "id=value" edits applied in order
	XLSX    string   // optional workbook to export the result to
	Timeout time.Duration
}

// SessionOutput is the JSON payload of price and reset.
type SessionOutput struct {
	Session  string                     `json:"session"`
	Version  catalog.Version            `json:"version"`
	Inputs   value.InputSet             `json:"inputs"`
	Errors   map[catalog.FieldID]string `json:"errors,omitempty"`
	Result   *api.PriceResult           `json:"result"`
	Notices  []string                   `json:"notices,omitempty"`
	Exported string                     `json:"exported,omitempty"`
}

// NewPriceCommand creates the price command.
func NewPriceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PriceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price the session's inputs, applying edits first",
		Long: `Load the catalog, restore the session's inputs and price them.

Each --set edit goes through the same path as an interactive edit: numeric
fields must parse as numbers, and a value the backend rejects is rolled back
to the last accepted value. The command waits until the final pricing
request has been answered.

Example:
  rdsquote price --set sys.guarding=Tall --set sys.spare_saw_blades_qty=30
  rdsquote price --session 0190... --xlsx quote.xlsx --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := parseSets(opts.Sets)
			if err != nil {
				return failWith(opts.formatter(cmd), ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
			}
			return runSession(cmd, opts.RootOptions, sessionRun{
				label:   "price",
				timeout: opts.Timeout,
				xlsx:    opts.XLSX,
				edit: func(ctrl *controller.Controller) error {
					return applyEdits(ctrl, edits)
				},
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Sets, "set", nil, "field edit as id=value (repeatable)")
	cmd.Flags().StringVar(&opts.XLSX, "xlsx", "", "write the pricing result to this .xlsx file")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", DefaultSettleTimeout, "how long to wait for pricing")

	return cmd
}

// ResetOptions holds flags for the reset command.
type ResetOptions struct {
	*RootOptions
	Timeout time.Duration
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the session's inputs to catalog defaults and price them",
		Long: `Reset every field of the session to its catalog default, clear field
errors and price the defaults.

Example:
  rdsquote reset --session 0190... --session-db ~/.rdsquote.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, opts.RootOptions, sessionRun{
				label:   "reset",
				timeout: opts.Timeout,
				edit: func(ctrl *controller.Controller) error {
					return ctrl.ResetToDefaults()
				},
			})
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", DefaultSettleTimeout, "how long to wait for pricing")

	return cmd
}

// fieldEdit is one parsed --set flag.
type fieldEdit struct {
	ID  catalog.FieldID
	Raw string
}

// parseSets splits "id=value" flags. The value may be empty or contain '='.
func parseSets(sets []string) ([]fieldEdit, error) {
	edits := make([]fieldEdit, 0, len(sets))
	for _, s := range sets {
		id, raw, ok := strings.Cut(s, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --set %q: expected id=value", s)
		}
		edits = append(edits, fieldEdit{ID: catalog.FieldID(id), Raw: raw})
	}
	return edits, nil
}

// applyEdits applies edits in order. Values that fail local normalization
// stay recorded as field errors; anything else stops the run.
func applyEdits(ctrl *controller.Controller, edits []fieldEdit) error {
	for _, e := range edits {
		if err := ctrl.SetField(e.ID, e.Raw); err != nil && !catalog.IsNormalizeError(err) {
			return err
		}
	}
	return nil
}

// sessionRun describes one non-interactive pricing session.
type sessionRun struct {
	label   string
	timeout time.Duration
	xlsx    string
	edit    func(*controller.Controller) error
}

// runSession starts a controller, applies the edit, waits for pricing and
// prints the settled state.
//
// Exit status is ExitFailure when a field error remains or nothing could be
// priced, after the state has been printed.
func runSession(cmd *cobra.Command, o *RootOptions, run sessionRun) error {
	f := o.formatter(cmd)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	ps, err := openPricingSession(ctx, o, run.label)
	if err != nil {
		return sessionFailure(f, err)
	}
	defer ps.Close()

	r := render.New(f.GetErrWriter())
	if !f.IsJSON() {
		ps.ctrl.Subscribe(func(ev controller.Event) {
			if ev.Kind == controller.EventNotice || ev.Kind == controller.EventFieldRestored {
				r.Event(ev)
			}
		})
	}

	if err := ps.ctrl.Start(ctx); err != nil {
		return sessionFailure(f, err)
	}
	f.VerboseLog("Session %s on catalog %s", ps.ID, ps.ctrl.Snapshot().Version)

	if run.edit != nil {
		if err := run.edit(ps.ctrl); err != nil {
			return fail(f, err)
		}
	}

	timeout := run.timeout
	if timeout <= 0 {
		timeout = DefaultSettleTimeout
	}
	settleCtx, stop := context.WithTimeout(ctx, timeout)
	defer stop()
	if err := ps.Settle(settleCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failWith(f, ExitFailure, ErrCodeUnreachable,
				fmt.Sprintf("no pricing response within %s", timeout), nil)
		}
		return fail(f, err)
	}

	st := ps.ctrl.Snapshot()
	out := SessionOutput{
		Session: ps.ID,
		Version: st.Version,
		Inputs:  st.Inputs,
		Errors:  st.Errors,
		Result:  st.Result,
		Notices: ps.Notices(),
	}

	if run.xlsx != "" && st.Result != nil {
		q := export.Quote{Catalog: st.Catalog, Inputs: st.Inputs, Result: st.Result}
		if err := export.WritePricing(run.xlsx, q); err != nil {
			return failWith(f, ExitFailure, ErrCodeWriteFailed, err.Error(), nil)
		}
		out.Exported = run.xlsx
	}

	if f.IsJSON() {
		if err := f.SuccessWithTrace(out, ps.ID); err != nil {
			return err
		}
	} else {
		view := render.New(f.Writer)
		view.State(st)
		fmt.Fprintf(f.Writer, "\nSession %s\n", ps.ID)
		if run.xlsx != "" && st.Result != nil {
			fmt.Fprintf(f.Writer, "Wrote %s\n", run.xlsx)
		}
	}

	switch {
	case st.Result == nil:
		return NewExitError(ExitFailure, fmt.Sprintf("%s: session was not priced", ErrCodeNotPriced))
	case len(st.Errors) > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d field error(s)", ErrCodeFieldRejected, len(st.Errors)))
	}
	return nil
}
