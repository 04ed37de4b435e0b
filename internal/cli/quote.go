package cli

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/render"
)

// QuoteOptions holds flags for the quote subcommands.
type QuoteOptions struct {
	*RootOptions
	Data     string // JSON document, or @file
	Customer string
}

// NewQuoteCommand creates the quote command and its subcommands.
func NewQuoteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QuoteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Work with stored quotes",
		Long: `Read and update quotes stored by the backend: save their input document,
override or reset the margin, include or exclude optional lines and generate
the costing workbook and proposal documents.`,
	}

	cmd.AddCommand(newQuoteGetCommand(opts))
	cmd.AddCommand(newQuoteSaveCommand(opts))
	cmd.AddCommand(newQuoteMarginCommand(opts))
	cmd.AddCommand(newQuoteResetMarginCommand(opts))
	cmd.AddCommand(newQuoteToggleCommand(opts))
	cmd.AddCommand(newQuoteGenerateCommand(opts))

	return cmd
}

func newQuoteGetCommand(opts *QuoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <quote-id>",
		Short:         "Show a quote (created on first access)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				q, err := c.client.Quote(c.ctx, args[0])
				if err != nil {
					return err
				}
				if f.IsJSON() {
					return f.Success(q)
				}
				render.New(f.Writer).Quote(q)
				return nil
			})
		},
	}
}

func newQuoteSaveCommand(opts *QuoteOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <quote-id>",
		Short: "Replace a quote's input document and customer",
		Long: `Replace a quote's input document. --data takes inline JSON or @file.

Example:
  rdsquote quote save Q-1001 --customer "Acme Lumber" --data @inputs.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			data, err := readDataArg(opts.Data)
			if err != nil {
				return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
			}
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				q, err := c.client.SaveQuote(c.ctx, args[0], data, opts.Customer)
				if err != nil {
					return err
				}
				if f.IsJSON() {
					return f.Success(q)
				}
				render.New(f.Writer).Quote(q)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Data, "data", "{}", "input document as JSON, or @file")
	cmd.Flags().StringVar(&opts.Customer, "customer", "", "customer name")
	return cmd
}

// readDataArg resolves --data: inline JSON or @path. The result must be a JSON object.
func readDataArg(arg string) (json.RawMessage, error) {
	raw := []byte(arg)
	if len(arg) > 0 && arg[0] == '@' {
		b, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read --data: %w", err)
		}
		raw = b
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	return json.RawMessage(raw), nil
}

func newQuoteMarginCommand(opts *QuoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "margin <quote-id> <margin>",
		Short: "Override a quote's margin",
		Long: `Override a quote's margin. The margin is a fraction ("0.24") or a
percentage ("24%").`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			margin, err := parseMargin(args[1])
			if err != nil {
				return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
			}
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				res, err := c.client.SetQuoteMargin(c.ctx, args[0], margin)
				if err != nil {
					return err
				}
				return printFields(f, res)
			})
		},
	}
}

// parseMargin accepts "0.24" or "24%" and returns the fraction. Margins of
// 100% or more, and negative margins, are rejected.
func parseMargin(s string) (decimal.Decimal, error) {
	text := s
	percent := len(text) > 0 && text[len(text)-1] == '%'
	if percent {
		text = text[:len(text)-1]
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid margin %q", s)
	}
	if percent {
		d = d.Shift(-2)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, fmt.Errorf("margin %q must be at least 0 and below 100%%", s)
	}
	return d, nil
}

func newQuoteResetMarginCommand(opts *QuoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "reset-margin <quote-id>",
		Short:         "Restore a quote's default margin",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				res, err := c.client.ResetQuoteMargin(c.ctx, args[0])
				if err != nil {
					return err
				}
				return printFields(f, res)
			})
		},
	}
}

func newQuoteToggleCommand(opts *QuoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <quote-id> <cell> <on|off>",
		Short: "Include or exclude an optional line",
		Long: `Include (on) or exclude (off) the optional line behind a toggle cell.

Example:
  rdsquote quote toggle Q-1001 J40 on`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			var on bool
			switch args[2] {
			case "on", "1", "true":
				on = true
			case "off", "0", "false":
			default:
				return failWith(f, ExitCommandError, ErrCodeInvalidArg,
					fmt.Sprintf("invalid toggle state %q: must be on or off", args[2]), nil)
			}
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				res, err := c.client.ToggleQuoteCell(c.ctx, args[0], args[1], on)
				if err != nil {
					return err
				}
				return printFields(f, res)
			})
		},
	}
}

func newQuoteGenerateCommand(opts *QuoteOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "generate <quote-id>",
		Short:         "Generate the costing workbook and proposal documents",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				files, err := c.client.GenerateQuote(c.ctx, args[0])
				if err != nil {
					return err
				}
				if f.IsJSON() {
					return f.Success(files)
				}
				for _, line := range []struct{ name, path string }{
					{"Costing", files.Costing},
					{"Proposal (docx)", files.ProposalDOCX},
					{"Proposal (pdf)", files.ProposalPDF},
				} {
					if line.path == "" {
						line.path = "(skipped)"
					}
					fmt.Fprintf(f.Writer, "%-16s %s\n", line.name, line.path)
				}
				return nil
			})
		},
	}
}
