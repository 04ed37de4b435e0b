package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/api"
	"github.com/roach88/rdsquote/internal/export"
	"github.com/roach88/rdsquote/internal/render"
)

// SheetOptions holds flags shared by the sheet subcommands and browse.
type SheetOptions struct {
	*RootOptions
	Panel  string
	XLSX   string
	DryRun bool
}

func (o *SheetOptions) panel(f *OutputFormatter) (api.Panel, error) {
	p, err := api.ParsePanel(o.Panel)
	if err != nil {
		return "", failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}
	return p, nil
}

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SheetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "browse [path]",
		Short: "List a directory on the backend host",
		Long: `List a directory on the backend host to find a workbook. Workbooks are
marked with '*'. Without a path the backend's starting directory is listed.

Example:
  rdsquote browse /srv/quotes --panel panel3`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			panel, err := opts.panel(f)
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				res, err := c.client.Browse(c.ctx, panel, path)
				if err != nil {
					return err
				}
				if f.IsJSON() {
					return f.Success(res)
				}
				render.New(f.Writer).Browse(res)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Panel, "panel", string(api.PanelCostSheet), "workbook panel (cost-sheet|panel3)")

	return cmd
}

// NewSheetCommand creates the sheet command and its subcommands.
func NewSheetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SheetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sheet",
		Short: "Manage the workbooks the backend reads",
		Long: `Show or change the workbook path of a panel, read its summary, apply a
margin to the panel3 workbook or reconnect it. The cost-grid subcommands
manage the backend's cost grid setting.`,
	}
	cmd.PersistentFlags().StringVar(&opts.Panel, "panel", string(api.PanelPanel3), "workbook panel (cost-sheet|panel3)")

	cmd.AddCommand(newSheetPathCommand(opts))
	cmd.AddCommand(newSheetSetPathCommand(opts))
	cmd.AddCommand(newSheetSummaryCommand(opts))
	cmd.AddCommand(newSheetMarginCommand(opts))
	cmd.AddCommand(newSheetConnectCommand(opts))
	cmd.AddCommand(newCostGridCommand(opts))

	return cmd
}

func newSheetPathCommand(opts *SheetOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "path",
		Short:         "Show the panel's workbook path",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			panel, err := opts.panel(f)
			if err != nil {
				return err
			}
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				info, err := c.client.SheetPath(c.ctx, panel)
				if err != nil {
					return err
				}
				return printPath(f, info)
			})
		},
	}
}

func newSheetSetPathCommand(opts *SheetOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "set-path <path>",
		Short:         "Point the panel at a workbook",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			panel, err := opts.panel(f)
			if err != nil {
				return err
			}
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				info, err := c.client.SetSheetPath(c.ctx, panel, args[0])
				if err != nil {
					return err
				}
				return printPath(f, info)
			})
		},
	}
}

func newSheetSummaryCommand(opts *SheetOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Read the panel's summary",
		Long: `Read the summary of the panel's workbook. For panel3 this is the summary
grid (description, qty, cost, sell price, margin) and can be exported with
--xlsx; for cost-sheet it is the raw summary range.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			panel, err := opts.panel(f)
			if err != nil {
				return err
			}
			if panel == api.PanelCostSheet && opts.XLSX != "" {
				return failWith(f, ExitCommandError, ErrCodeInvalidArg, "--xlsx is only supported for panel3", nil)
			}
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				if panel == api.PanelCostSheet {
					raw, err := c.client.CostSheetSummary(c.ctx)
					if err != nil {
						return err
					}
					if f.IsJSON() {
						return f.Success(raw)
					}
					render.New(f.Writer).RawSummary(raw)
					return nil
				}

				s, err := c.client.Panel3Summary(c.ctx)
				if err != nil {
					return err
				}
				if opts.XLSX != "" {
					if err := export.WriteSummary(opts.XLSX, s); err != nil {
						return &writeError{err}
					}
					f.VerboseLog("Wrote %s", opts.XLSX)
				}
				if f.IsJSON() {
					return f.Success(s)
				}
				render.New(f.Writer).Summary(s)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.XLSX, "xlsx", "", "also write the panel3 summary to this .xlsx file")
	return cmd
}

func newSheetMarginCommand(opts *SheetOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "margin <margin>",
		Short: "Apply a margin to the panel3 workbook",
		Long: `Write a margin into the panel3 workbook and show the recomputed summary.
The margin is passed through as typed ("24%" or "0.24").`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				s, err := c.client.ApplyMargin(c.ctx, args[0])
				if err != nil {
					return err
				}
				if f.IsJSON() {
					return f.Success(s)
				}
				render.New(f.Writer).Summary(s)
				return nil
			})
		},
	}
}

func newSheetConnectCommand(opts *SheetOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "connect",
		Short:         "Reconnect the backend to the stored panel3 workbook",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				info, err := c.client.ConnectCostGrid(c.ctx)
				if err != nil {
					return err
				}
				return printPath(f, info)
			})
		},
	}
}

func newCostGridCommand(opts *SheetOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cost-grid",
		Short: "Show, set or upload the cost grid workbook",
		Long: `Manage the cost grid workbook the backend prices from. Accepted
extensions are .xls, .xlsb and .xlsx.

Example:
  rdsquote sheet cost-grid get
  rdsquote sheet cost-grid set /srv/quotes/grid.xlsx --dry-run
  rdsquote sheet cost-grid upload ./grid.xlsx`,
	}

	get := &cobra.Command{
		Use:           "get",
		Short:         "Show the cost grid path",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				res, err := c.client.CostGridPath(c.ctx)
				if err != nil {
					return err
				}
				return printCostGrid(f, res)
			})
		},
	}

	set := &cobra.Command{
		Use:           "set <path>",
		Short:         "Point the backend at a cost grid on its host",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				res, err := c.client.SetCostGridPath(c.ctx, args[0], opts.DryRun)
				if err != nil {
					return err
				}
				return printCostGrid(f, res)
			})
		},
	}
	set.Flags().BoolVar(&opts.DryRun, "dry-run", false, "only validate the path")

	upload := &cobra.Command{
		Use:           "upload <file>",
		Short:         "Upload a local workbook as the cost grid",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if err := api.CheckCostGridExt(args[0]); err != nil {
				return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
			}
			file, err := os.Open(args[0])
			if err != nil {
				return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
			}
			defer file.Close()

			return withClient(cmd, opts.RootOptions, func(c *clientCall) error {
				res, err := c.client.UploadCostGrid(c.ctx, args[0], file)
				if err != nil {
					return err
				}
				return printCostGrid(f, res)
			})
		},
	}

	cmd.AddCommand(get, set, upload)
	return cmd
}

func printCostGrid(f *OutputFormatter, res *api.CostGrid) error {
	switch {
	case f.IsJSON():
		return f.Success(res)
	case res.Validated:
		return f.Success("Valid cost grid: " + res.Path)
	case res.Path == "":
		return f.Success("No cost grid configured")
	}
	return f.Success(res.Path)
}

func printPath(f *OutputFormatter, info *api.PathInfo) error {
	if f.IsJSON() {
		return f.Success(info)
	}
	if info.Path == "" {
		return f.Success("No workbook configured")
	}
	return f.Success(info.Path)
}

// printFields prints a loosely typed backend reply as sorted key: value lines.
func printFields(f *OutputFormatter, m map[string]any) error {
	if f.IsJSON() {
		return f.Success(m)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(f.Writer, "%s: %v\n", k, m[k])
	}
	return nil
}
