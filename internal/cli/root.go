package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rdsquote/internal/controller"
)

// Environment variables that provide flag defaults.
const (
	EnvServer    = "RDSQUOTE_SERVER"
	EnvSessionDB = "RDSQUOTE_SESSION_DB"
)

// DefaultServer is the backend URL used when neither --server nor
// RDSQUOTE_SERVER is set.
const DefaultServer = "http://localhost:8000"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Server    string
	SessionDB string        // empty means an in-memory store for this run
	Session   string        // session ID to resume; empty starts a new one
	Policy    string        // YAML field policy file
	Debounce  time.Duration // quiet period before a price request

	logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rdsquote CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rdsquote",
		Short: "rdsquote - RDS quoting client",
		Long: `A command-line client for the RDS quoting backend.

Edits are priced through a debounced, cancellable request controller that
keeps the last server-accepted inputs, rolls back rejected fields and retries
once after a catalog version change.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				f := &OutputFormatter{Format: "text", Writer: cmd.ErrOrStderr()}
				return failWith(f, ExitCommandError, ErrCodeInvalidArg,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}
			if opts.Debounce < 0 {
				return failWith(opts.formatter(cmd), ExitCommandError, ErrCodeInvalidArg, "--debounce must not be negative", nil)
			}
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr(EnvServer, DefaultServer), "backend base URL (env "+EnvServer+")")
	cmd.PersistentFlags().StringVar(&opts.SessionDB, "session-db", os.Getenv(EnvSessionDB), "SQLite session database; in-memory when empty (env "+EnvSessionDB+")")
	cmd.PersistentFlags().StringVar(&opts.Session, "session", "", "session ID to resume")
	cmd.PersistentFlags().StringVar(&opts.Policy, "policy", "", "YAML file naming preview-only and price-driving fields")
	cmd.PersistentFlags().DurationVar(&opts.Debounce, "debounce", controller.DefaultDebounce, "quiet period before an edit is priced")

	// Add subcommands
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewPriceCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewReplCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))
	cmd.AddCommand(NewSheetCommand(opts))
	cmd.AddCommand(NewQuoteCommand(opts))
	cmd.AddCommand(NewStubServerCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLogger builds the stderr text logger; --verbose lowers the level to debug.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// Logger returns the logger installed by the root command, or slog.Default
// when a subcommand runs on its own (as in tests).
func (o *RootOptions) Logger() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
