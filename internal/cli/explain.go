package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	QueryFlags
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <root>",
		Short: "Print the SQL a query compiles to",
		Long: `Compile a field-path query without running it.

Prints the primary statement, its count variant and one statement per
collection loaded separately. Collection statements are shown for a single
placeholder parent key. No database connection is made.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], cmd)
		},
	}

	opts.QueryFlags.register(cmd)
	return cmd
}

func runExplain(opts *ExplainOptions, root string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	q, err := opts.QueryFlags.Query(root)
	if err != nil {
		return f.Fail(ErrCodeUsage, err)
	}

	env, err := loadEnvironment(cmd.Context(), opts.RootOptions, f, false)
	if err != nil {
		return err
	}
	defer env.close()

	sts, err := env.engine.Explain(q)
	if err != nil {
		return f.Fail(ErrCodeGeneric, err)
	}

	return f.Success(sts, func(w io.Writer) error {
		for _, st := range sts {
			fmt.Fprintf(w, "-- %s\n%s\n", st.Name, st.SQL)
			if len(st.Args) > 0 {
				fmt.Fprintf(w, "-- args: %v\n", st.Args)
			}
			fmt.Fprintln(w)
		}
		return nil
	})
}
