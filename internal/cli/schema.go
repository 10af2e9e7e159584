package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/pathql/internal/meta"
)

// EntityInfo describes one registered entity type.
type EntityInfo struct {
	Name       string      `json:"name" yaml:"name"`
	Table      string      `json:"table" yaml:"table"`
	Identifier string      `json:"id,omitempty" yaml:"id,omitempty"`
	Fields     []FieldInfo `json:"fields" yaml:"fields"`
}

// FieldInfo describes one field as the query pipeline sees it.
type FieldInfo struct {
	Name      string `json:"name" yaml:"name"`
	Kind      string `json:"kind" yaml:"kind"`
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Column    string `json:"column" yaml:"column"`
	Transient bool   `json:"transient,omitempty" yaml:"transient,omitempty"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [entity...]",
		Short: "List registered entity types and their fields",
		Long: `Load the schema and print every entity type, or only the named ones,
with canonical field names, kinds, target types and storage columns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, names []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	env, err := loadEnvironment(cmd.Context(), opts, f, false)
	if err != nil {
		return err
	}
	defer env.close()

	if len(names) == 0 {
		names = env.registry.Names()
	}
	infos := make([]EntityInfo, 0, len(names))
	for _, name := range names {
		ent, ok := env.registry.Describe(name)
		if !ok {
			return f.Fail(ErrCodeSchema, fmt.Errorf("entity type %q is not registered", name))
		}
		infos = append(infos, describe(ent))
	}

	return f.Success(infos, func(w io.Writer) error {
		for _, info := range infos {
			fmt.Fprintf(w, "%s (table %s", info.Name, info.Table)
			if info.Identifier != "" {
				fmt.Fprintf(w, ", id %s", info.Identifier)
			}
			fmt.Fprintln(w, ")")
			for _, fi := range info.Fields {
				line := fmt.Sprintf("  %-16s %-9s %-12s %s", fi.Name, fi.Kind, fi.Type, fi.Column)
				if fi.Transient {
					line += " (transient)"
				}
				fmt.Fprintln(w, line)
			}
			fmt.Fprintln(w)
		}
		return nil
	})
}

func describe(ent *meta.Entity) EntityInfo {
	info := EntityInfo{Name: ent.Name, Table: ent.Table}
	if ent.HasIdentifier() {
		info.Identifier = ent.Identifier.CanonicalName()
	}
	for _, f := range ent.Fields {
		typ := f.Type
		if f.IsRelation() || f.Kind == meta.Embedded {
			typ = f.Target()
		}
		info.Fields = append(info.Fields, FieldInfo{
			Name:      f.CanonicalName(),
			Kind:      f.Kind.String(),
			Type:      typ,
			Column:    f.Column,
			Transient: f.Transient,
		})
	}
	return info
}
