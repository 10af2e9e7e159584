package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pathql/internal/engine"
	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/record"
)

// QueryFlags are the flags shared by explain and query.
type QueryFlags struct {
	Fields  string
	Sort    string
	Where   []string // path=expr
	Group   string
	Joins   []string // path[:kind][:fetch]
	Example string   // JSON object
}

func (q *QueryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.Fields, "fields", "", `select list, e.g. "nome,profissao{descricao}"`)
	cmd.Flags().StringVar(&q.Sort, "sort", "", `sort list, e.g. "-idade,nome"`)
	cmd.Flags().StringArrayVar(&q.Where, "where", nil, `criterion "path=expr", e.g. "idade=>=18" or "nome=%jo%" (repeatable)`)
	cmd.Flags().StringVar(&q.Group, "group", "", "group-by list")
	cmd.Flags().StringArrayVar(&q.Joins, "join", nil, `join directive "path[:inner|left|right][:fetch]" (repeatable)`)
	cmd.Flags().StringVar(&q.Example, "example", "", "query-by-example JSON object")
}

// Query builds the engine query rooted at root.
func (q *QueryFlags) Query(root string) (engine.Query, error) {
	out := engine.Query{Root: root, Fields: q.Fields, Sort: q.Sort, Group: q.Group}

	for _, w := range q.Where {
		path, expr, ok := strings.Cut(w, "=")
		if !ok || strings.TrimSpace(path) == "" {
			return out, fmt.Errorf("--where %q: want path=expr", w)
		}
		out.Where = append(out.Where, engine.Where{Path: strings.TrimSpace(path), Expr: expr})
	}

	for _, j := range q.Joins {
		parts := strings.Split(j, ":")
		d := engine.Join{Path: strings.TrimSpace(parts[0])}
		for _, p := range parts[1:] {
			if strings.EqualFold(p, "fetch") {
				d.Fetch = true
				continue
			}
			kind, err := filter.ParseJoinKind(p)
			if err != nil {
				return out, fmt.Errorf("--join %q: %w", j, err)
			}
			d.Kind = kind
		}
		out.Joins = append(out.Joins, d)
	}

	if q.Example != "" {
		var ex record.Object
		if err := json.Unmarshal([]byte(q.Example), &ex); err != nil {
			return out, fmt.Errorf("--example: %w", err)
		}
		out.Example = normalizeExample(ex)
	}
	return out, nil
}

// normalizeExample turns decoded JSON maps into record.Objects and arrays
// of objects into collections.
func normalizeExample(obj record.Object) record.Object {
	for k, v := range obj {
		switch x := v.(type) {
		case map[string]any:
			obj[k] = normalizeExample(record.Object(x))
		case []any:
			elems := make([]record.Object, 0, len(x))
			for _, e := range x {
				if m, ok := e.(map[string]any); ok {
					elems = append(elems, normalizeExample(record.Object(m)))
				}
			}
			obj[k] = elems
		}
	}
	return obj
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	QueryFlags
	Page  int
	Size  int
	One   bool
	Count bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <root>",
		Short: "Run a query and print the reassembled objects",
		Long: `Run a field-path query against the configured database.

Without --page every matching object is printed. With --page the count
runs first and one page of --size objects is printed with its totals.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.QueryFlags.register(cmd)
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number, 1-based (enables paging)")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "page size (default paging.default_size)")
	cmd.Flags().BoolVar(&opts.One, "one", false, "expect at most one result")
	cmd.Flags().BoolVar(&opts.Count, "count", false, "print the number of matching objects only")
	cmd.MarkFlagsMutuallyExclusive("page", "one", "count")

	return cmd
}

func runQuery(opts *QueryOptions, root string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	q, err := opts.QueryFlags.Query(root)
	if err != nil {
		return f.Fail(ErrCodeUsage, err)
	}

	env, err := loadEnvironment(ctx, opts.RootOptions, f, true)
	if err != nil {
		return err
	}
	defer env.close()

	switch {
	case opts.Count:
		n, err := env.engine.Count(ctx, q)
		if err != nil {
			return f.Fail(ErrCodeGeneric, err)
		}
		return f.Success(map[string]int64{"count": n}, func(w io.Writer) error {
			_, err := fmt.Fprintln(w, n)
			return err
		})

	case opts.One:
		obj, err := env.engine.FindOne(ctx, q)
		if err != nil {
			return f.Fail(ErrCodeGeneric, err)
		}
		return f.Success(obj, func(w io.Writer) error {
			if obj == nil {
				_, err := fmt.Fprintln(w, "No result")
				return err
			}
			return writeObjects(w, []record.Object{obj})
		})

	case opts.Page > 0:
		page, err := env.engine.FindPage(ctx, q, opts.Page, opts.Size)
		if err != nil {
			return f.Fail(ErrCodeGeneric, err)
		}
		return f.Success(page, func(w io.Writer) error {
			fmt.Fprintf(w, "Page %d of %d (%d element(s), %d per page)\n",
				page.CurrentPage, page.TotalPages, page.TotalElements, page.ElementsPerPage)
			return writeObjects(w, page.Elements)
		})

	default:
		objs, err := env.engine.Find(ctx, q)
		if err != nil {
			return f.Fail(ErrCodeGeneric, err)
		}
		f.VerboseLog("%d result(s)", len(objs))
		return f.Success(objs, func(w io.Writer) error {
			return writeObjects(w, objs)
		})
	}
}

// writeObjects prints one compact JSON object per line.
func writeObjects(w io.Writer, objs []record.Object) error {
	enc := json.NewEncoder(w)
	for _, o := range objs {
		if err := enc.Encode(o); err != nil {
			return err
		}
	}
	return nil
}
