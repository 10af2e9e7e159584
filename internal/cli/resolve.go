package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pathql/internal/pathexpr"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Fields string
	Sort   string
}

// Resolution is the canonical form of a field and sort list.
type Resolution struct {
	Root   string   `json:"root" yaml:"root"`
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
	Sort   []string `json:"sort,omitempty" yaml:"sort,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <root>",
		Short: "Print the canonical paths of a field and sort list",
		Long: `Resolve field and sort lists against the schema.

Grouped paths are expanded, whole related objects are replaced by their
auto-included fields (or, for sorting, their identifier) and aliases are
applied. Every printed path is canonical.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Fields, "fields", "", "select list")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort list")
	return cmd
}

func runResolve(opts *ResolveOptions, root string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	env, err := loadEnvironment(cmd.Context(), opts.RootOptions, f, false)
	if err != nil {
		return err
	}
	defer env.close()

	resolver := env.engine.Resolver()
	ent, err := resolver.Entity(root)
	if err != nil {
		return f.Fail(ErrCodeGeneric, err)
	}

	res := Resolution{Root: ent.Name}
	if opts.Fields != "" {
		paths, err := resolver.ResolveList(ent, opts.Fields, pathexpr.Select)
		if err != nil {
			return f.Fail(ErrCodeGeneric, err)
		}
		for _, p := range paths {
			res.Fields = append(res.Fields, p.String())
		}
	}
	if opts.Sort != "" {
		paths, err := resolver.ResolveList(ent, opts.Sort, pathexpr.Sort)
		if err != nil {
			return f.Fail(ErrCodeGeneric, err)
		}
		for _, p := range paths {
			res.Sort = append(res.Sort, p.SortString())
		}
	}

	return f.Success(res, func(w io.Writer) error {
		if len(res.Fields) > 0 {
			fmt.Fprintf(w, "fields: %s\n", strings.Join(res.Fields, ","))
		}
		if len(res.Sort) > 0 {
			fmt.Fprintf(w, "sort: %s\n", strings.Join(res.Sort, ","))
		}
		return nil
	})
}
