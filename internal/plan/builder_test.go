package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/pathexpr"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/record"
	"github.com/roach88/pathql/internal/testutil"
)

func newSpec(t *testing.T, root string) *filter.Spec {
	t.Helper()
	r := pathexpr.NewResolver(testutil.Registry())
	ent, err := r.Entity(root)
	require.NoError(t, err)
	return filter.New(r, ent)
}

func build(t *testing.T, s *filter.Spec, opts ...Option) *Plan {
	t.Helper()
	p, err := Build(s, opts...)
	require.NoError(t, err)
	return p
}

func aliases(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Alias
	}
	return out
}

func joinPaths(p *Plan) []string {
	out := make([]string, len(p.Joins))
	for i, j := range p.Joins {
		out[i] = j.Path + ":" + j.Kind.String() + ":" + j.Table.Alias
	}
	return out
}

func TestBuild_EntityProjection(t *testing.T) {
	p := build(t, newSpec(t, "Pessoa"))

	assert.Equal(t, EntityShape, p.Projection.Shape)
	assert.Equal(t, []string{
		"id", "nome", "idade", "ativo", "nascimento", "sexo", "apelido",
		"contato.email", "contato.telefone",
	}, aliases(p.Projection.Items))
	assert.Equal(t, "t0.nickname", p.Projection.Items[6].Column.String())
	assert.Equal(t, "t0.contato_email", p.Projection.Items[7].Column.String())
	assert.Empty(t, p.Joins)
	assert.Nil(t, p.Where)
	assert.Equal(t, []OrderItem{{Column: Column{Alias: "t0", Name: "id"}, Direction: pathexpr.Asc}}, p.Orders)
}

func TestBuild_JoinsDeduplicatedByPrefix(t *testing.T) {
	s := newSpec(t, "Pessoa").
		Select("endereco.cidade,endereco.cep,profissao.categoria.nome").
		WhereEqual("endereco.uf", "SP").
		OrderBy("profissao.descricao")
	p := build(t, s)

	assert.Equal(t, []string{"endereco:INNER:t1", "profissao:INNER:t2", "profissao.categoria:INNER:t3"}, joinPaths(p))
	assert.Equal(t, ColumnsEqual{
		Left:  Column{Alias: "t1", Name: "id"},
		Right: Column{Alias: "t0", Name: "endereco_id"},
	}, p.Joins[0].On)
	assert.Equal(t, ColumnsEqual{
		Left:  Column{Alias: "t3", Name: "id"},
		Right: Column{Alias: "t2", Name: "categoria_id"},
	}, p.Joins[2].On)

	assert.Equal(t, TupleShape, p.Projection.Shape)
	assert.Equal(t, []string{"endereco.cidade", "endereco.cep", "profissao.categoria.nome"}, aliases(p.Projection.Items))
	assert.Equal(t, Cond{
		Column:    Column{Alias: "t1", Name: "uf"},
		Condition: filter.Condition{Op: filter.Equal, Values: []any{"SP"}},
	}, p.Where)
	require.Len(t, p.Orders, 2)
	assert.Equal(t, "t2.descricao", p.Orders[0].Column.String())
	assert.Equal(t, "t0.id", p.Orders[1].Column.String())
}

func TestBuild_ExplicitJoinKindWins(t *testing.T) {
	s := newSpec(t, "Pessoa").
		Select("nome,endereco.cidade").
		Join("endereco", filter.Left)
	p := build(t, s)

	assert.Equal(t, []string{"endereco:LEFT:t1"}, joinPaths(p))
}

func TestBuild_NullCheckJoinsAreLeft(t *testing.T) {
	s := newSpec(t, "Pessoa").
		WhereIsNull("profissao.categoria").
		WhereIsNull("profissao")
	p := build(t, s)

	assert.Equal(t, []string{"profissao:LEFT:t1"}, joinPaths(p))
	assert.Equal(t, And{Predicates: []Predicate{
		Cond{Column: Column{Alias: "t1", Name: "categoria_id"}, Condition: filter.Condition{Op: filter.IsNull}},
		Cond{Column: Column{Alias: "t0", Name: "profissao_id"}, Condition: filter.Condition{Op: filter.IsNull}},
	}}, p.Where)
}

func TestBuild_CollectionNullCheckIsExists(t *testing.T) {
	s := newSpec(t, "Pessoa").WhereIsNotNull("enderecos")
	p := build(t, s)

	assert.Empty(t, p.Joins)
	assert.Equal(t, Exists{
		Table: Table{Name: "endereco", Alias: "t1"},
		Correlation: ColumnsEqual{
			Left:  Column{Alias: "t1", Name: "pessoa_id"},
			Right: Column{Alias: "t0", Name: "id"},
		},
	}, p.Where)

	p = build(t, newSpec(t, "Pessoa").WhereIsNull("enderecos"))
	assert.True(t, p.Where.(Exists).Negated)
}

func TestBuild_EmbeddedColumnsShareAlias(t *testing.T) {
	s := newSpec(t, "Pessoa").Select("contato").WhereLikeAfter("contato.email", "joao")
	p := build(t, s)

	assert.Empty(t, p.Joins)
	assert.Equal(t, "t0.contato_email", p.Projection.Items[0].Column.String())
	assert.Equal(t, "t0.contato_telefone", p.Projection.Items[1].Column.String())
	assert.Equal(t, "t0.contato_email", p.Where.(Cond).Column.String())
}

func TestBuild_OtherField(t *testing.T) {
	s := newSpec(t, "Pessoa").WhereOtherField("idade", filter.LessThanOtherField, "profissao.salario")
	p := build(t, s)

	cond := p.Where.(Cond)
	assert.Equal(t, "t0.idade", cond.Column.String())
	assert.Equal(t, "t1.salario", cond.Other.String())
	assert.Equal(t, []string{"profissao:INNER:t1"}, joinPaths(p))
}

func TestBuild_Aggregates(t *testing.T) {
	s := newSpec(t, "Pessoa").
		Select("sexo").
		SelectAggregate("idade", filter.Avg, "").
		SelectAggregate("enderecos", filter.Count, "").
		GroupBy("sexo")
	p := build(t, s)

	assert.Equal(t, []string{"sexo", "avg_idade", "count_enderecos"}, aliases(p.Projection.Items))
	count := p.Projection.Items[2]
	assert.Equal(t, "t1.id", count.Column.String())
	assert.True(t, count.Distinct)
	assert.Equal(t, []string{"enderecos:LEFT:t1"}, joinPaths(p))
	assert.Equal(t, []Column{{Alias: "t0", Name: "sexo"}}, p.Groups)
	assert.Empty(t, p.Orders, "grouped plans get no identifier tiebreak")
}

func TestBuild_ForcedID(t *testing.T) {
	p := build(t, newSpec(t, "Pessoa").Select("nome"), WithForcedID())

	last := p.Projection.Items[len(p.Projection.Items)-1]
	assert.Equal(t, ReservedIDAlias, last.Alias)
	assert.True(t, last.Hidden)
	assert.Equal(t, "t0.id", last.Column.String())
}

func TestBuild_TupleThroughNestedCollection(t *testing.T) {
	s := newSpec(t, "Pessoa").Select("nome,endereco.telefones.numero")
	p := build(t, s)

	assert.Equal(t, []string{
		"nome", "endereco.telefones.numero", ReservedIDAlias, ReservedIDAlias + ".endereco.telefones",
	}, aliases(p.Projection.Items))
	assert.Equal(t, "t2.id", p.Projection.Items[3].Column.String())
}

func TestBuild_TupleFilteredThroughCollection(t *testing.T) {
	s := newSpec(t, "Pessoa").Select("nome").WhereLikeAnyBeforeAfter("endereco.telefones.numero", "-")
	p := build(t, s)

	assert.Equal(t, []string{"endereco:INNER:t1", "endereco.telefones:INNER:t2"}, joinPaths(p))
	assert.Equal(t, []string{"nome", ReservedIDAlias}, aliases(p.Projection.Items))
	assert.True(t, p.Distinct)

	plain := build(t, newSpec(t, "Pessoa").Select("nome,endereco.telefones.numero"))
	assert.False(t, plain.Distinct, "selected collections are correlated by element id")
}

func TestBuild_GroupedWithSplitCollection(t *testing.T) {
	s := newSpec(t, "Pessoa").
		Select("sexo").
		SelectAggregate("idade", filter.Count, "n").
		GroupBy("sexo")

	_, err := Build(s, WithForcedID())
	require.Error(t, err)
	assert.True(t, queryerr.IsInvalidExpression(err))

	p := build(t, s)
	assert.Equal(t, []Column{{Alias: "t0", Name: "sexo"}}, p.Groups)
}

func TestBuild_FetchedJoinsInEntityProjection(t *testing.T) {
	s := newSpec(t, "Pessoa").
		JoinFetch("profissao", filter.Left).
		JoinFetch("endereco.telefones", filter.Left)
	p := build(t, s)

	got := aliases(p.Projection.Items)
	assert.Contains(t, got, "profissao.descricao")
	assert.Contains(t, got, "profissao.salario")
	assert.Contains(t, got, "endereco.telefones.numero")
	assert.Contains(t, got, ReservedIDAlias+".endereco.telefones")
	assert.Contains(t, got, ReservedIDAlias)
	assert.NotContains(t, got, "endereco.cidade", "endereco is joined, not fetched")
	assert.False(t, p.Distinct)
}

func TestBuild_PlainCollectionJoinIsDistinct(t *testing.T) {
	p := build(t, newSpec(t, "Pessoa").Join("enderecos", filter.Inner))
	assert.True(t, p.Distinct)
}

func TestBuild_Example(t *testing.T) {
	example := record.Object{
		"nome":      "jo",
		"idade":     30,
		"ativo":     nil,
		"contato":   record.Object{"email": "joao@example.com"},
		"profissao": record.Object{"descricao": "Engenheiro"},
		"enderecos": []record.Object{{"cidade": "X"}},
	}
	s := newSpec(t, "Pessoa").
		WhereOperator("nome", filter.ILikeBoth).
		Ignore("idade").
		WhereGreaterThan("profissao.salario", 100)
	p := build(t, s, WithExample(example))

	and, ok := p.Where.(And)
	require.True(t, ok)
	assert.Equal(t, []Predicate{
		Cond{Column: Column{Alias: "t0", Name: "nome"}, Condition: filter.Condition{Op: filter.ILikeBoth, Values: []any{"jo"}}},
		Cond{Column: Column{Alias: "t0", Name: "contato_email"}, Condition: filter.Condition{Op: filter.Equal, Values: []any{"joao@example.com"}}},
		Cond{Column: Column{Alias: "t1", Name: "descricao"}, Condition: filter.Condition{Op: filter.Equal, Values: []any{"Engenheiro"}}},
		Cond{Column: Column{Alias: "t1", Name: "salario"}, Condition: filter.Condition{Op: filter.GreaterThan, Values: []any{float64(100)}}},
	}, and.Predicates)
	assert.Equal(t, []string{"profissao:INNER:t1"}, joinPaths(p), "enderecos has no join directive")
}

func TestBuild_ExampleCollectionWithJoin(t *testing.T) {
	example := record.Object{
		"enderecos": []record.Object{{"cidade": "Sao Paulo"}, {"cidade": "Campinas", "uf": "SP"}},
	}
	s := newSpec(t, "Pessoa").Join("enderecos", filter.Inner)
	p := build(t, s, WithExample(example))

	or, ok := p.Where.(Or)
	require.True(t, ok)
	require.Len(t, or.Predicates, 2)
	assert.Equal(t, Cond{
		Column:    Column{Alias: "t1", Name: "cidade"},
		Condition: filter.Condition{Op: filter.Equal, Values: []any{"Sao Paulo"}},
	}, or.Predicates[0])
	assert.Len(t, or.Predicates[1].(And).Predicates, 2)
}

func TestBuild_FromExampleWithoutExampleIsDropped(t *testing.T) {
	p := build(t, newSpec(t, "Pessoa").WhereOperator("nome", filter.Like))
	assert.Nil(t, p.Where)
}

func TestBuild_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		spec    func(*testing.T) *filter.Spec
		example record.Object
		check   func(error) bool
	}{
		{
			name:  "deferred spec error",
			spec:  func(t *testing.T) *filter.Spec { return newSpec(t, "Pessoa").WhereEqual("foo", 1) },
			check: queryerr.IsFieldNotFound,
		},
		{
			name:    "unknown example field",
			spec:    func(t *testing.T) *filter.Spec { return newSpec(t, "Pessoa") },
			example: record.Object{"foo": 1},
			check:   queryerr.IsFieldNotFound,
		},
		{
			name:    "example value of wrong type",
			spec:    func(t *testing.T) *filter.Spec { return newSpec(t, "Pessoa") },
			example: record.Object{"idade": "trinta"},
			check:   queryerr.IsInvalidExpression,
		},
		{
			name:    "example relation not an object",
			spec:    func(t *testing.T) *filter.Spec { return newSpec(t, "Pessoa") },
			example: record.Object{"profissao": 3},
			check:   queryerr.IsInvalidExpression,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []Option
			if tc.example != nil {
				opts = append(opts, WithExample(tc.example))
			}
			_, err := Build(tc.spec(t), opts...)
			require.Error(t, err)
			assert.True(t, tc.check(err), "got %v", err)
		})
	}
}

func TestPlan_CountVariant(t *testing.T) {
	s := newSpec(t, "Pessoa").
		Select("nome,endereco.cidade").
		WhereGreaterThan("idade", 20).
		OrderBy("-nome")
	p := build(t, s)
	p.Window(10, 5)

	c := p.CountVariant()
	assert.Equal(t, p.Joins, c.Joins)
	assert.Equal(t, p.Where, c.Where)
	assert.Empty(t, c.Orders)
	assert.Empty(t, c.Groups)
	assert.Zero(t, c.Limit)
	assert.Zero(t, c.Offset)
	require.Len(t, c.Projection.Items, 1)
	item := c.Projection.Items[0]
	assert.Equal(t, filter.Count, item.Aggregate)
	assert.True(t, item.Distinct)
	assert.Equal(t, "t0.id", item.Column.String())
}

func TestPlan_Correlate(t *testing.T) {
	p := build(t, newSpec(t, "Endereco").Select("cidade").WhereEqual("uf", "SP"))
	p.Correlate("pessoa_id", []any{int64(1), int64(2)})

	last := p.Projection.Items[len(p.Projection.Items)-1]
	assert.Equal(t, ReservedParentAlias, last.Alias)
	and := p.Where.(And)
	assert.Equal(t, InValues{Column: Column{Alias: "t0", Name: "pessoa_id"}, Values: []any{int64(1), int64(2)}}, and.Predicates[1])
	assert.Empty(t, p.Groups)

	agg := build(t, newSpec(t, "Endereco").SelectAggregate("id", filter.Count, "n"))
	agg.Correlate("pessoa_id", []any{int64(1)})
	assert.Equal(t, []Column{{Alias: "t0", Name: "pessoa_id"}}, agg.Groups)
}
