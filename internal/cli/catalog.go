package cli

import (
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/catalog"
	"github.com/roach88/rdsquote/internal/render"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog [field-id]",
		Short: "Show the backend's field catalog",
		Long: `Fetch the field catalog (ids, labels, options, defaults) and its version.
With a field ID, fetch only that field.

Example:
  rdsquote catalog
  rdsquote catalog sys.guarding --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runCatalog(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx, cancel := signalContext(cmd)
	defer cancel()

	client, err := opts.newClient()
	if err != nil {
		return failWith(f, ExitCommandError, ErrCodeInvalidArg, err.Error(), nil)
	}

	var cat *catalog.Catalog
	if len(args) == 1 {
		field, version, err := client.Dropdown(ctx, catalog.FieldID(args[0]))
		if err != nil {
			return fail(f, err)
		}
		if version == "" {
			version = "unversioned"
		}
		if cat, err = catalog.New(version, field); err != nil {
			return fail(f, err)
		}
	} else if cat, err = client.Catalog(ctx); err != nil {
		return fail(f, err)
	}

	if f.IsJSON() {
		data, err := catalog.Encode(cat)
		if err != nil {
			return fail(f, err)
		}
		return f.Success(json.RawMessage(data))
	}
	render.New(f.Writer).Catalog(cat)
	return nil
}
