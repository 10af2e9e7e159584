package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/queryerr"
)

func selectionAliases(s *filter.Spec) []string {
	var out []string
	for _, sel := range s.Selections() {
		out = append(out, sel.Alias)
	}
	return out
}

func TestSplitCollections_MovesCollectionPaths(t *testing.T) {
	s := newSpec(t, "Pessoa").
		Select("nome,enderecos{cidade,uf},profissao.descricao").
		WhereEqual("enderecos.uf", "SP").
		WhereGreaterThan("idade", 18).
		OrderBy("enderecos.cidade,-nome")

	split, err := SplitCollections(s)
	require.NoError(t, err)

	assert.Equal(t, []string{"nome", "profissao.descricao"}, selectionAliases(split.Primary))
	require.Len(t, split.Primary.Criteria(), 1)
	assert.Equal(t, "idade", split.Primary.Criteria()[0].Path.String())
	require.Len(t, split.Primary.Orders(), 1)
	assert.Equal(t, "nome:desc", split.Primary.Orders()[0].SortString())

	require.Len(t, split.Relations, 1)
	rel := split.Relations[0]
	assert.Equal(t, "enderecos", rel.Name)
	assert.Equal(t, "pessoa_id", rel.BackRef)
	assert.Equal(t, "Endereco", rel.Spec.Root().Name)
	assert.Equal(t, []string{"cidade", "uf"}, selectionAliases(rel.Spec))
	c, ok := rel.Spec.Criterion("uf")
	require.True(t, ok)
	assert.Equal(t, []any{"SP"}, c.Conditions[0].Values)
	require.Len(t, rel.Spec.Orders(), 1)
	assert.Equal(t, "cidade:asc", rel.Spec.Orders()[0].SortString())

	assert.True(t, split.ForceID())
	assert.Len(t, split.Options(), 1)
}

func TestSplitCollections_PrimaryKeepsIDWhenSelectionsMoved(t *testing.T) {
	s := newSpec(t, "Pessoa").Select("enderecos.cidade")
	split, err := SplitCollections(s)
	require.NoError(t, err)

	p := build(t, split.Primary, split.Options()...)
	assert.Equal(t, TupleShape, p.Projection.Shape)
	assert.Equal(t, []string{ReservedIDAlias}, aliases(p.Projection.Items))
}

func TestSplitCollections_Isolation(t *testing.T) {
	s := newSpec(t, "Pessoa").Select("nome,enderecos.cidade,documentos.numero")
	split, err := SplitCollections(s)
	require.NoError(t, err)

	p := build(t, split.Primary, split.Options()...)
	assert.Empty(t, p.Joins, "no collection is joined into the primary")
	assert.False(t, p.Distinct)
	assert.Equal(t, []string{"nome", ReservedIDAlias}, aliases(p.Projection.Items))

	require.Len(t, split.Relations, 2)
	assert.Equal(t, "enderecos", split.Relations[0].Name)
	assert.Equal(t, "documentos", split.Relations[1].Name)
}

func TestSplitCollections_NullCheckStaysInPrimary(t *testing.T) {
	s := newSpec(t, "Pessoa").WhereIsNotNull("enderecos").WhereIsNull("enderecos.telefones")
	split, err := SplitCollections(s)
	require.NoError(t, err)

	_, ok := split.Primary.Criterion("enderecos")
	assert.True(t, ok)
	require.Len(t, split.Relations, 1)
	_, ok = split.Relations[0].Spec.Criterion("telefones")
	assert.True(t, ok)
}

func TestSplitCollections_Joins(t *testing.T) {
	s := newSpec(t, "Pessoa").
		JoinFetch("documentos", filter.Left).
		Join("enderecos", filter.Inner).
		JoinFetch("profissao", filter.Left)
	split, err := SplitCollections(s)
	require.NoError(t, err)

	require.Len(t, split.Relations, 1)
	assert.Equal(t, "documentos", split.Relations[0].Name)
	assert.Empty(t, split.Relations[0].Spec.Selections(), "fetched collection loads whole elements")

	var primary []string
	for _, d := range split.Primary.Joins() {
		primary = append(primary, d.Path.String())
	}
	assert.Equal(t, []string{"enderecos", "profissao"}, primary)
}

func TestSplitCollections_NestedJoinFollowsRelation(t *testing.T) {
	s := newSpec(t, "Pessoa").JoinFetch("enderecos.telefones", filter.Left)
	split, err := SplitCollections(s)
	require.NoError(t, err)

	require.Len(t, split.Relations, 1)
	rel := split.Relations[0]
	d, ok := rel.Spec.JoinAt("telefones")
	require.True(t, ok)
	assert.True(t, d.Fetch)

	// Split again at execution: telefones becomes a relation of Endereco.
	nested, err := SplitCollections(rel.Spec)
	require.NoError(t, err)
	require.Len(t, nested.Relations, 1)
	assert.Equal(t, "telefones", nested.Relations[0].Name)
	assert.Equal(t, "endereco_id", nested.Relations[0].BackRef)
}

func TestSplitCollections_OtherFieldAcrossCollection(t *testing.T) {
	s := newSpec(t, "Pessoa").WhereOtherField("enderecos.cidade", filter.EqualOtherField, "nome")
	_, err := SplitCollections(s)
	require.Error(t, err)
	assert.True(t, queryerr.IsInvalidExpression(err))

	s = newSpec(t, "Pessoa").WhereOtherField("enderecos.cidade", filter.NotEqualOtherField, "enderecos.uf")
	split, err := SplitCollections(s)
	require.NoError(t, err)
	c, ok := split.Relations[0].Spec.Criterion("cidade")
	require.True(t, ok)
	assert.Equal(t, "uf", c.Conditions[0].Other.String())
}

func TestSplitCollections_UndefinedTarget(t *testing.T) {
	s := newSpec(t, "Pessoa").JoinFetch("tags", filter.Left)
	_, err := SplitCollections(s)
	require.Error(t, err)
	assert.True(t, queryerr.IsCollectionTargetUndefined(err))
}
