package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/testutil"
)

const cueSchema = `
package fixture

entity: {
	Categoria: {
		fields: {
			id:   "int"
			nome: "string"
		}
	}
	Profissao: {
		table: "profissoes"
		fields: {
			id:        "int"
			descricao: "string"
			categoria: {type: "Categoria", kind: "to_one", fixed: true}
			tags: {kind: "to_many", collection: "set", noAutoInclude: true}
		}
	}
}
`

var wantCUE = []meta.Descriptor{
	{
		Name: "Categoria",
		Fields: []meta.FieldDescriptor{
			{Name: "id", Type: "int"},
			{Name: "nome", Type: "string"},
		},
	},
	{
		Name:  "Profissao",
		Table: "profissoes",
		Fields: []meta.FieldDescriptor{
			{Name: "id", Type: "int"},
			{Name: "descricao", Type: "string"},
			{Name: "categoria", Type: "Categoria", Kind: "to_one", Fixed: true},
			{Name: "tags", Kind: "to_many", Collection: "set", NoAutoInclude: true},
		},
	},
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseCUE(t *testing.T) {
	got, err := ParseCUE("schema.cue", []byte(cueSchema))
	require.NoError(t, err)
	assert.Equal(t, wantCUE, got)
}

func TestLoad_CUEFileAndDir(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "schema.cue", cueSchema)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, wantCUE, got)

	got, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, wantCUE, got)
}

func TestRegistry_FromCUE(t *testing.T) {
	path := writeFile(t, t.TempDir(), "schema.cue", cueSchema)

	reg, err := Registry(path)
	require.NoError(t, err)

	ent, ok := reg.Describe("Profissao")
	require.True(t, ok)
	assert.Equal(t, "profissoes", ent.Table)

	f, ok := ent.Field("categoria")
	require.True(t, ok)
	assert.Equal(t, meta.ToOne, f.Kind)
	assert.Equal(t, "categoria_id", f.Column)
}

func TestYAML_RoundTripFixtures(t *testing.T) {
	data, err := MarshalYAML(testutil.Descriptors())
	require.NoError(t, err)

	path := writeFile(t, t.TempDir(), "schema.yaml", string(data))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.Descriptors(), got)
}

func TestParseYAML(t *testing.T) {
	got, err := ParseYAML([]byte(`
entities:
  - name: Documento
    id: id
    fields:
      - {name: id, type: int}
      - {name: tipo, type: enum, values: [RG, CPF]}
      - {name: numero, type: string, column: num}
`))
	require.NoError(t, err)
	assert.Equal(t, []meta.Descriptor{{
		Name:       "Documento",
		Identifier: "id",
		Fields: []meta.FieldDescriptor{
			{Name: "id", Type: "int"},
			{Name: "tipo", Type: "enum", EnumValues: []string{"RG", "CPF"}},
			{Name: "numero", Type: "string", Column: "num"},
		},
	}}, got)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		file    string
		content string
	}{
		{"cue syntax", "s.cue", "entity: {"},
		{"cue no entity", "s.cue", "other: 1"},
		{"cue no fields", "s.cue", `entity: X: {table: "x"}`},
		{"cue bad field", "s.cue", `entity: X: {fields: {id: 1}}`},
		{"cue table not string", "s.cue", `entity: X: {table: 1, fields: {id: "int"}}`},
		{"yaml unknown key", "s.yaml", "entities:\n  - name: X\n    colour: red\n"},
		{"yaml no name", "s.yml", "entities:\n  - table: x\n"},
		{"yaml empty", "s.yaml", ""},
		{"extension", "s.json", "{}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tc.file, tc.content)
			_, err := Load(path)
			require.Error(t, err)

			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(nil)
	assert.Error(t, err)

	_, err = Build([]meta.Descriptor{{Name: "X", Fields: []meta.FieldDescriptor{{Name: "a", Type: "nope"}}}})
	assert.Error(t, err)
}
