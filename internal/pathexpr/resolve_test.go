package pathexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/testutil"
)

func newResolver(t *testing.T) (*Resolver, *meta.Entity) {
	t.Helper()
	r := NewResolver(testutil.Registry())
	root, err := r.Entity("Pessoa")
	require.NoError(t, err)
	return r, root
}

func strs(paths []Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.String()
	}
	return out
}

func sortStrs(paths []Path) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p.SortString()
	}
	return out
}

func TestResolveList_GroupEquivalence(t *testing.T) {
	r, root := newResolver(t)

	grouped, err := r.ResolveList(root, "profissao{id,descricao}", Select)
	require.NoError(t, err)
	flat, err := r.ResolveList(root, "profissao.id,profissao.descricao", Select)
	require.NoError(t, err)

	assert.Equal(t, []string{"profissao.id", "profissao.descricao"}, strs(grouped))
	assert.Equal(t, strs(flat), strs(grouped))
}

func TestResolveList_SortMarkers(t *testing.T) {
	r, root := newResolver(t)

	paths, err := r.ResolveList(root, "-nome,idade:desc,profissao{id:asc,descricao:desc}", Sort)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"nome:desc",
		"idade:desc",
		"profissao.id:asc",
		"profissao.descricao:desc",
	}, sortStrs(paths))
}

func TestResolveList_SortDefaults(t *testing.T) {
	r, root := newResolver(t)

	paths, err := r.ResolveList(root, "nome,+idade,-ativo:asc", Sort)
	require.NoError(t, err)

	// The suffix wins over a leading marker.
	assert.Equal(t, []string{"nome:asc", "idade:asc", "ativo:asc"}, sortStrs(paths))
}

func TestResolveList_Distinct(t *testing.T) {
	r, root := newResolver(t)

	paths, err := r.ResolveList(root, "nome,nome,idade,nome,apelido,nickname", Select)
	require.NoError(t, err)

	assert.Equal(t, []string{"nome", "idade", "apelido"}, strs(paths))
}

func TestResolveList_DistinctAfterExpansion(t *testing.T) {
	r, root := newResolver(t)

	paths, err := r.ResolveList(root, "profissao.descricao,profissao", Select)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"profissao.descricao",
		"profissao.id",
		"profissao.salario",
		"profissao.categoria.id",
		"profissao.categoria.nome",
	}, strs(paths))
}

func TestResolve_UnknownField(t *testing.T) {
	r, root := newResolver(t)

	paths := []string{
		"foo",
		"profissao.foo",
		"profissao.categoria.foo",
		"nome.foo",
		"senha",
		"profissao{id,foo}",
	}
	for _, p := range paths {
		t.Run(p, func(t *testing.T) {
			for _, mode := range []Mode{Select, Sort, Reference} {
				_, err := r.ResolveList(root, p, mode)
				require.Error(t, err)
				assert.True(t, queryerr.IsFieldNotFound(err), "mode %d: got %v", mode, err)
			}
		})
	}
}

func TestResolve_UnknownFieldCarriesPath(t *testing.T) {
	r, root := newResolver(t)

	_, err := r.Resolve(root, "profissao.foo", Select)

	var qe *queryerr.Error
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "profissao.foo", qe.Path)
	assert.Equal(t, "Pessoa", qe.Entity)
}

func TestResolve_Alias(t *testing.T) {
	r, root := newResolver(t)

	for _, name := range []string{"nickname", "apelido"} {
		paths, err := r.Resolve(root, name, Select)
		require.NoError(t, err)
		require.Len(t, paths, 1)
		assert.Equal(t, "apelido", paths[0].String())
		assert.Equal(t, "nickname", paths[0].Leaf().Name)
	}
}

func TestResolve_EnumStop(t *testing.T) {
	r, root := newResolver(t)

	paths, err := r.Resolve(root, "sexo.codigo.qualquer", Select)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "sexo", paths[0].String())
	assert.True(t, paths[0].EnumStop)

	paths, err = r.Resolve(root, "sexo", Select)
	require.NoError(t, err)
	assert.False(t, paths[0].EnumStop)
}

func TestResolve_EnumStopKeepsSortMarker(t *testing.T) {
	r, root := newResolver(t)

	paths, err := r.Resolve(root, "sexo.codigo:desc", Sort)
	require.NoError(t, err)
	assert.Equal(t, "sexo:desc", paths[0].SortString())
}

func TestResolve_ExpandWholeObject(t *testing.T) {
	r, root := newResolver(t)

	testCases := []struct {
		path string
		want []string
	}{
		{"contato", []string{"contato.email", "contato.telefone"}},
		{"profissao.categoria", []string{"profissao.categoria.id", "profissao.categoria.nome"}},
		{"endereco", []string{"endereco.id", "endereco.cidade", "endereco.cep", "endereco.uf", "endereco.telefones.id", "endereco.telefones.numero"}},
		{"enderecos.telefones", []string{"enderecos.telefones.id", "enderecos.telefones.numero"}},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			paths, err := r.Resolve(root, tc.path, Select)
			require.NoError(t, err)
			assert.Equal(t, tc.want, strs(paths))
		})
	}
}

func TestResolve_ExpandSkipsNoAutoInclude(t *testing.T) {
	reg := meta.NewRegistry()
	reg.MustRegister(
		meta.Descriptor{Name: "Root", Fields: []meta.FieldDescriptor{
			{Name: "id", Type: "int"},
			{Name: "child", Type: "Child", Kind: "to_one"},
		}},
		meta.Descriptor{Name: "Child", Fields: []meta.FieldDescriptor{
			{Name: "id", Type: "int"},
			{Name: "visible", Type: "string"},
			{Name: "hidden", Type: "string", NoAutoInclude: true},
			{Name: "secret", Type: "string", Transient: true},
		}},
	)
	r := NewResolver(reg)
	root, err := r.Entity("Root")
	require.NoError(t, err)

	paths, err := r.Resolve(root, "child", Select)
	require.NoError(t, err)
	assert.Equal(t, []string{"child.id", "child.visible"}, strs(paths))

	// Naming the field explicitly still works.
	paths, err = r.Resolve(root, "child.hidden", Select)
	require.NoError(t, err)
	assert.Equal(t, []string{"child.hidden"}, strs(paths))
}

func TestResolve_ExpandCycleAndFixed(t *testing.T) {
	reg := meta.NewRegistry()
	reg.MustRegister(
		meta.Descriptor{Name: "A", Fields: []meta.FieldDescriptor{
			{Name: "id", Type: "int"},
			{Name: "b", Type: "B", Kind: "to_one"},
			{Name: "owner", Type: "B", Kind: "to_one", Fixed: true},
		}},
		meta.Descriptor{Name: "B", Fields: []meta.FieldDescriptor{
			{Name: "id", Type: "int"},
			{Name: "label", Type: "string"},
			{Name: "a", Type: "A", Kind: "to_one"},
		}},
	)
	r := NewResolver(reg)
	root, err := r.Entity("A")
	require.NoError(t, err)

	paths, err := r.Resolve(root, "b", Select)
	require.NoError(t, err)
	assert.Equal(t, []string{"b.id", "b.label", "b.a.id"}, strs(paths))

	paths, err = r.Resolve(root, "owner", Select)
	require.NoError(t, err)
	assert.Equal(t, []string{"owner.id"}, strs(paths))
}

func TestResolve_CollectionTargetUndefined(t *testing.T) {
	r, root := newResolver(t)

	for _, p := range []string{"tags", "tags.nome"} {
		_, err := r.Resolve(root, p, Select)
		assert.True(t, queryerr.IsCollectionTargetUndefined(err), "%s: got %v", p, err)
	}
}

func TestResolve_SortWholeObject(t *testing.T) {
	r, root := newResolver(t)

	paths, err := r.Resolve(root, "-profissao", Sort)
	require.NoError(t, err)
	assert.Equal(t, []string{"profissao.id:desc"}, sortStrs(paths))

	_, err = r.Resolve(root, "enderecos", Sort)
	assert.True(t, queryerr.IsInvalidExpression(err), "got %v", err)

	_, err = r.Resolve(root, "contato", Sort)
	assert.True(t, queryerr.IsInvalidExpression(err), "got %v", err)
}

func TestResolveOne_KeepsRelation(t *testing.T) {
	r, root := newResolver(t)

	p, err := r.ResolveOne(root, "enderecos")
	require.NoError(t, err)
	assert.Equal(t, "enderecos", p.String())
	assert.Equal(t, meta.ToMany, p.Leaf().Kind)
	assert.Equal(t, 0, p.FirstToMany())
}

func TestResolve_Malformed(t *testing.T) {
	r, root := newResolver(t)

	for _, p := range []string{"", "  ", "profissao{id", "profissao..id", "nome."} {
		_, err := r.Resolve(root, p, Select)
		assert.True(t, queryerr.IsInvalidExpression(err), "%q: got %v", p, err)
	}
}

func TestResolver_UnknownEntity(t *testing.T) {
	r := NewResolver(testutil.Registry())

	_, err := r.Entity("Nada")
	assert.True(t, queryerr.IsFieldNotFound(err))
}

func TestPath_Helpers(t *testing.T) {
	r, root := newResolver(t)

	p, err := r.ResolveOne(root, "endereco.telefones.numero")
	require.NoError(t, err)

	assert.Equal(t, 3, p.Len())
	assert.Equal(t, "numero", p.Leaf().Name)
	assert.Equal(t, "endereco.telefones", p.Prefix(2).String())
	assert.Equal(t, 1, p.FirstToMany())

	tail := p.Tail(1)
	assert.Equal(t, "telefones.numero", tail.String())
	assert.Equal(t, "Endereco", tail.Root.Name)
}
