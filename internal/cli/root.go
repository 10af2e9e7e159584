package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	Config  string // explicit config file

	// Overrides of the config file.
	Schema string
	DSN    string
	Driver string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the pathql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pathql",
		Short: "pathql - field-path queries over relational data",
		Long: `Resolve, compile and run field-path queries.

Queries name a root entity type and select, sort, filter and group by dotted
field paths such as "profissao.categoria.nome". Collections are loaded by
separate statements and reassembled into nested objects.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			// Replaced by the configured level once settings are loaded.
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), slog.LevelWarn, opts.Verbose))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./pathql.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "schema file or CUE package directory (overrides schema.path)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "db", "", "database file or connection string (overrides database.dsn)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database driver sqlite|postgres (overrides database.driver)")

	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewExplainCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to keep structured output clean
		Verbose:   opts.Verbose,
	}
}
